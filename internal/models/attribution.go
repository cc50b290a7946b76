package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Attribution actions. The column is an open-ended string tag; these are
// the values the engine itself emits.
const (
	ActionPageVisit         = "page_visit"
	ActionLinkClick         = "link_click"
	ActionSignup            = "signup"
	ActionConversionTrigger = "conversion_trigger"
)

// AttributionEvent is a single observed attribution fact. Events are
// append-only and carry no foreign key to referral_codes: they are captured
// client-side before any server validation, so unknown or orphaned codes
// must be storable.
type AttributionEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	ReferralCode string    `gorm:"type:varchar(50);index" json:"referral_code"`
	Action       string    `gorm:"type:varchar(50);not null" json:"action"`
	Source       string    `gorm:"type:varchar(255)" json:"source"`
	Medium       string    `gorm:"type:varchar(255)" json:"medium"`
	Campaign     string    `gorm:"type:varchar(255)" json:"campaign"`
	RawParams    string    `gorm:"type:text" json:"raw_params"` // JSON object of accumulated misc params
	SessionID    string    `gorm:"type:varchar(64);index" json:"session_id"`
	PageLoads    int       `json:"page_loads"`
	UserAgent    string    `gorm:"type:text" json:"user_agent"`
	IP           string    `gorm:"type:varchar(64)" json:"ip"`
	Referer      string    `gorm:"type:text" json:"referer"`
	ObservedAt   time.Time `gorm:"not null;index" json:"observed_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeCreate assigns a UUID primary key
func (e *AttributionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
