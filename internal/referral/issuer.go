package referral

import (
	"errors"
	"fmt"
	"time"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCodeExhausted is returned when issuance keeps colliding with existing
// codes after the configured number of attempts.
var ErrCodeExhausted = errors.New("could not generate a unique referral code")

// ErrActiveCodeExists is returned when the owner already holds an active
// code of the requested kind.
var ErrActiveCodeExists = errors.New("owner already has an active code of this kind")

// GenerateFunc produces a candidate code for identity inputs.
type GenerateFunc func(email, name string, timestampMs int64, kind models.CodeKind) string

// Issuer creates referral codes, enforcing global code uniqueness with a
// bounded regenerate-on-collision loop and at most one active code per
// (owner, kind).
type Issuer struct {
	db          *gorm.DB
	generate    GenerateFunc
	maxAttempts int
}

// NewIssuer creates an issuer backed by the referral_codes table
func NewIssuer(db *gorm.DB, maxAttempts int) *Issuer {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Issuer{
		db:          db,
		generate:    Generate,
		maxAttempts: maxAttempts,
	}
}

// WithGenerator overrides the code generator. Used by tests to force
// collisions.
func (i *Issuer) WithGenerator(fn GenerateFunc) *Issuer {
	i.generate = fn
	return i
}

// Issue generates a unique code and persists it for the owner. Deactivated
// codes count as taken: a code string is never reused once issued.
func (i *Issuer) Issue(email, name string, kind models.CodeKind, ownerID *uuid.UUID) (*models.ReferralCode, error) {
	if email == "" || name == "" {
		return nil, fmt.Errorf("email and name are required to issue a code")
	}

	if ownerID != nil {
		var count int64
		if err := i.db.Model(&models.ReferralCode{}).
			Where("owner_id = ? AND kind = ? AND active = ?", ownerID, kind, true).
			Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to check existing codes: %w", err)
		}
		if count > 0 {
			return nil, ErrActiveCodeExists
		}
	}

	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		code := i.generate(email, name, time.Now().UnixMilli(), kind)

		var existing int64
		if err := i.db.Model(&models.ReferralCode{}).
			Unscoped().
			Where("code = ?", code).
			Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("failed to check code uniqueness: %w", err)
		}
		if existing > 0 {
			continue
		}

		record := &models.ReferralCode{
			Code:    code,
			OwnerID: ownerID,
			Kind:    kind,
			Active:  true,
		}
		if err := i.db.Create(record).Error; err != nil {
			return nil, fmt.Errorf("failed to persist referral code: %w", err)
		}
		return record, nil
	}

	return nil, ErrCodeExhausted
}

// Deactivate marks a code inactive. The row stays in place so historical
// conversions keep resolving to the original owner.
func (i *Issuer) Deactivate(code string) error {
	result := i.db.Model(&models.ReferralCode{}).
		Where("code = ?", code).
		Update("active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate code: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
