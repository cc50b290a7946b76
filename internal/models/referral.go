package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CodeKind identifies which registration program a referral code belongs to.
type CodeKind string

const (
	CodeKindAmbassador  CodeKind = "ambassador"
	CodeKindCampusGuide CodeKind = "campus_guide"
	CodeKindGeneral     CodeKind = "general"
)

// ReferralCode maps an opaque code string to the registrant who earns
// commission for conversions attributed to it. Codes are never reused:
// deactivated rows stay in place so historical conversions keep resolving.
type ReferralCode struct {
	ID        uuid.UUID      `gorm:"type:uuid;primary_key" json:"id"`
	Code      string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	OwnerID   *uuid.UUID     `gorm:"type:uuid;index" json:"owner_id,omitempty"`
	Kind      CodeKind       `gorm:"type:varchar(20);not null;index" json:"kind"`
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID primary key
func (r *ReferralCode) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
