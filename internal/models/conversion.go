package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversionStatus is the lifecycle state of a conversion record.
type ConversionStatus string

const (
	ConversionPending   ConversionStatus = "pending"
	ConversionConfirmed ConversionStatus = "confirmed"
	ConversionCancelled ConversionStatus = "cancelled"
)

// Conversion is a billing-relevant record of a referred customer engaging a
// paid service. It references a referral code by string; the code may be
// inactive or even unknown, reconciliation is best-effort.
type Conversion struct {
	Base
	ReferralCode  string           `gorm:"type:varchar(50);not null;index" json:"referral_code"`
	CustomerName  string           `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail string           `gorm:"type:varchar(255);not null" json:"customer_email"`
	CustomerPhone string           `gorm:"type:varchar(50)" json:"customer_phone"`
	ServiceType   string           `gorm:"type:varchar(255);not null" json:"service_type"`
	ServiceAmount *float64         `gorm:"type:decimal(20,2)" json:"service_amount"`
	ConversionDate time.Time       `gorm:"not null;index" json:"conversion_date"`
	Status        ConversionStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	// Resolved commission-earning party, nullable: resolution can fail when
	// the code does not map to a registered party at lookup time.
	AttributedKind    *CodeKind  `gorm:"type:varchar(20)" json:"attributed_kind,omitempty"`
	AttributedOwnerID *uuid.UUID `gorm:"type:uuid;index" json:"attributed_owner_id,omitempty"`
	AttributedName    string     `gorm:"type:varchar(255)" json:"attributed_name,omitempty"`
}
