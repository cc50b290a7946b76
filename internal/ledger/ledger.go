package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/edupath/referral-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound means the conversion id does not exist.
var ErrNotFound = errors.New("conversion not found")

// ErrInvalidTransition means the requested status change is not allowed.
// Allowed transitions: pending→confirmed, pending→cancelled,
// confirmed→cancelled. Nothing leaves cancelled.
var ErrInvalidTransition = errors.New("invalid conversion status transition")

// dateLayout is the calendar date format accepted for conversion dates
const dateLayout = "2006-01-02"

// CreateInput carries the fields for a new conversion record
type CreateInput struct {
	ReferralCode   string                  `json:"referral_code"`
	CustomerName   string                  `json:"customer_name"`
	CustomerEmail  string                  `json:"customer_email"`
	CustomerPhone  string                  `json:"customer_phone"`
	ServiceType    string                  `json:"service_type"`
	ServiceAmount  *float64                `json:"service_amount"`
	ConversionDate string                  `json:"conversion_date"`
	Status         models.ConversionStatus `json:"status"`
}

// UpdateInput carries optional fields for updating a conversion
type UpdateInput struct {
	CustomerName   *string                  `json:"customer_name"`
	CustomerEmail  *string                  `json:"customer_email"`
	CustomerPhone  *string                  `json:"customer_phone"`
	ServiceType    *string                  `json:"service_type"`
	ServiceAmount  *float64                 `json:"service_amount"`
	ConversionDate *string                  `json:"conversion_date"`
	Status         *models.ConversionStatus `json:"status"`
}

// Summary is the aggregate view over conversions. Revenue counts only
// confirmed conversions with a non-null service amount.
type Summary struct {
	Count               int64   `json:"count"`
	ConfirmedCount      int64   `json:"confirmed_count"`
	ConfirmedRevenueSum float64 `json:"confirmed_revenue_sum"`
}

// Filter narrows aggregate queries
type Filter struct {
	ReferralCode string
	OwnerID      *uuid.UUID
}

// Ledger is the append/update store of conversion records. Backend
// failures on create/update/delete propagate to the caller so staff know
// the action did not take effect.
type Ledger struct {
	db         *gorm.DB
	reconciler *attribution.Reconciler
}

// NewLedger creates a ledger. reconciler may be nil, in which case new
// conversions start unattributed.
func NewLedger(db *gorm.DB, reconciler *attribution.Reconciler) *Ledger {
	return &Ledger{db: db, reconciler: reconciler}
}

// Create validates and persists a new conversion. Attribution is
// best-effort: an unknown or orphaned code leaves the conversion
// unattributed, it does not fail the create.
func (l *Ledger) Create(input CreateInput) (*models.Conversion, error) {
	if input.ReferralCode == "" {
		return nil, fmt.Errorf("referral code is required")
	}
	if input.CustomerName == "" {
		return nil, fmt.Errorf("customer name is required")
	}
	if input.CustomerEmail == "" {
		return nil, fmt.Errorf("customer email is required")
	}
	if input.ServiceType == "" {
		return nil, fmt.Errorf("service type is required")
	}
	if input.ServiceAmount != nil && *input.ServiceAmount < 0 {
		return nil, fmt.Errorf("service amount must not be negative")
	}

	conversionDate, err := time.Parse(dateLayout, input.ConversionDate)
	if err != nil {
		return nil, fmt.Errorf("invalid conversion date %q: expected YYYY-MM-DD", input.ConversionDate)
	}

	status := input.Status
	if status == "" {
		status = models.ConversionPending
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("invalid status %q", status)
	}

	conversion := &models.Conversion{
		ReferralCode:   input.ReferralCode,
		CustomerName:   input.CustomerName,
		CustomerEmail:  input.CustomerEmail,
		CustomerPhone:  input.CustomerPhone,
		ServiceType:    input.ServiceType,
		ServiceAmount:  input.ServiceAmount,
		ConversionDate: conversionDate,
		Status:         status,
	}

	l.stampAttribution(conversion)

	if err := l.db.Create(conversion).Error; err != nil {
		return nil, fmt.Errorf("failed to create conversion: %w", err)
	}
	return conversion, nil
}

// Update applies partial fields to a conversion, enforcing the status
// transition machine.
func (l *Ledger) Update(id uuid.UUID, input UpdateInput) (*models.Conversion, error) {
	var conversion models.Conversion
	if err := l.db.First(&conversion, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversion: %w", err)
	}

	if input.Status != nil && *input.Status != conversion.Status {
		if !validStatus(*input.Status) {
			return nil, fmt.Errorf("invalid status %q", *input.Status)
		}
		if !transitionAllowed(conversion.Status, *input.Status) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, conversion.Status, *input.Status)
		}
		conversion.Status = *input.Status
	}

	if input.CustomerName != nil {
		if *input.CustomerName == "" {
			return nil, fmt.Errorf("customer name must not be empty")
		}
		conversion.CustomerName = *input.CustomerName
	}
	if input.CustomerEmail != nil {
		if *input.CustomerEmail == "" {
			return nil, fmt.Errorf("customer email must not be empty")
		}
		conversion.CustomerEmail = *input.CustomerEmail
	}
	if input.CustomerPhone != nil {
		conversion.CustomerPhone = *input.CustomerPhone
	}
	if input.ServiceType != nil {
		if *input.ServiceType == "" {
			return nil, fmt.Errorf("service type must not be empty")
		}
		conversion.ServiceType = *input.ServiceType
	}
	if input.ServiceAmount != nil {
		if *input.ServiceAmount < 0 {
			return nil, fmt.Errorf("service amount must not be negative")
		}
		conversion.ServiceAmount = input.ServiceAmount
	}
	if input.ConversionDate != nil {
		parsed, err := time.Parse(dateLayout, *input.ConversionDate)
		if err != nil {
			return nil, fmt.Errorf("invalid conversion date %q: expected YYYY-MM-DD", *input.ConversionDate)
		}
		conversion.ConversionDate = parsed
	}

	if err := l.db.Save(&conversion).Error; err != nil {
		return nil, fmt.Errorf("failed to update conversion: %w", err)
	}
	return &conversion, nil
}

// Delete removes a conversion permanently
func (l *Ledger) Delete(id uuid.UUID) error {
	result := l.db.Unscoped().Delete(&models.Conversion{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete conversion: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads a conversion by id
func (l *Ledger) Get(id uuid.UUID) (*models.Conversion, error) {
	var conversion models.Conversion
	if err := l.db.First(&conversion, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load conversion: %w", err)
	}
	return &conversion, nil
}

// Aggregate computes counts and the confirmed revenue sum, optionally
// filtered by code or attributed owner
func (l *Ledger) Aggregate(filter Filter) (*Summary, error) {
	var summary Summary
	if err := l.scoped(filter).Count(&summary.Count).Error; err != nil {
		return nil, fmt.Errorf("failed to count conversions: %w", err)
	}

	if err := l.scoped(filter).
		Where("status = ?", models.ConversionConfirmed).
		Count(&summary.ConfirmedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count confirmed conversions: %w", err)
	}

	var sum *float64
	if err := l.scoped(filter).
		Where("status = ?", models.ConversionConfirmed).
		Select("SUM(service_amount)").
		Scan(&sum).Error; err != nil {
		return nil, fmt.Errorf("failed to sum confirmed revenue: %w", err)
	}
	if sum != nil {
		summary.ConfirmedRevenueSum = *sum
	}
	return &summary, nil
}

func (l *Ledger) scoped(filter Filter) *gorm.DB {
	query := l.db.Model(&models.Conversion{})
	if filter.ReferralCode != "" {
		query = query.Where("referral_code = ?", filter.ReferralCode)
	}
	if filter.OwnerID != nil {
		query = query.Where("attributed_owner_id = ?", filter.OwnerID)
	}
	return query
}

// ListByCode returns conversions for a referral code, newest first
func (l *Ledger) ListByCode(code string) ([]models.Conversion, error) {
	var conversions []models.Conversion
	if err := l.db.
		Where("referral_code = ?", code).
		Order("conversion_date DESC").
		Find(&conversions).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversions by code: %w", err)
	}
	return conversions, nil
}

// ListByOwner returns conversions attributed to a registrant, newest first
func (l *Ledger) ListByOwner(ownerID uuid.UUID) ([]models.Conversion, error) {
	var conversions []models.Conversion
	if err := l.db.
		Where("attributed_owner_id = ?", ownerID).
		Order("conversion_date DESC").
		Find(&conversions).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversions by owner: %w", err)
	}
	return conversions, nil
}

// stampAttribution fills the attributed-owner fields when the code
// resolves. Unresolved attribution is soft: the fields stay null.
func (l *Ledger) stampAttribution(conversion *models.Conversion) {
	if l.reconciler == nil {
		return
	}
	owner, err := l.reconciler.ResolveOwner(conversion.ReferralCode)
	if err != nil {
		return
	}
	kind := owner.Kind
	ownerID := owner.ID
	conversion.AttributedKind = &kind
	conversion.AttributedOwnerID = &ownerID
	conversion.AttributedName = owner.Name
}

func validStatus(s models.ConversionStatus) bool {
	switch s {
	case models.ConversionPending, models.ConversionConfirmed, models.ConversionCancelled:
		return true
	}
	return false
}

func transitionAllowed(from, to models.ConversionStatus) bool {
	switch from {
	case models.ConversionPending:
		return to == models.ConversionConfirmed || to == models.ConversionCancelled
	case models.ConversionConfirmed:
		return to == models.ConversionCancelled
	}
	// cancelled is terminal
	return false
}
