package attribution

import (
	"errors"
	"fmt"
	"strings"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrCodeNotFound means the referral code string does not exist at all.
var ErrCodeNotFound = errors.New("referral code not found")

// ErrUnresolved means the code exists but no registered party can be
// attributed: the owner record is missing, or the code is a general
// campaign code with no owner. Callers report this as "unknown owner"
// rather than failing.
var ErrUnresolved = errors.New("referral code has no resolvable owner")

// Owner is the commission-earning party a code resolves to, projected the
// same way for both registrant kinds.
type Owner struct {
	Kind   models.CodeKind `json:"kind"`
	ID     uuid.UUID       `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Phone  string          `json:"phone"`
	Code   string          `json:"code"`
	Active bool            `json:"active"`
}

// Resolution is one entry of a batch resolve. Err is ErrCodeNotFound or
// ErrUnresolved for non-attributable codes; other errors are backend
// failures.
type Resolution struct {
	Code  string
	Owner *Owner
	Err   error
}

// Reconciler resolves referral codes to their owning registrants
type Reconciler struct {
	db *gorm.DB
}

// NewReconciler creates a reconciler
func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{db: db}
}

// ResolveOwner maps a referral code to its owning registrant. Inactive
// codes still resolve: historical conversions under a since-deactivated
// code remain attributable.
func (r *Reconciler) ResolveOwner(code string) (*Owner, error) {
	var record models.ReferralCode
	if err := r.db.Where("code = ?", code).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to look up referral code: %w", err)
	}

	if record.OwnerID == nil {
		return nil, ErrUnresolved
	}

	switch record.Kind {
	case models.CodeKindAmbassador:
		var amb models.Ambassador
		if err := r.db.First(&amb, "id = ?", record.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnresolved
			}
			return nil, fmt.Errorf("failed to look up ambassador: %w", err)
		}
		return &Owner{
			Kind:   models.CodeKindAmbassador,
			ID:     amb.ID,
			Name:   amb.Name,
			Email:  amb.Email,
			Phone:  amb.Phone,
			Code:   record.Code,
			Active: record.Active,
		}, nil

	case models.CodeKindCampusGuide:
		var guide models.CampusGuide
		if err := r.db.First(&guide, "id = ?", record.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrUnresolved
			}
			return nil, fmt.Errorf("failed to look up campus guide: %w", err)
		}
		return &Owner{
			Kind:   models.CodeKindCampusGuide,
			ID:     guide.ID,
			Name:   guide.Name,
			Email:  guide.Email,
			Phone:  guide.Phone,
			Code:   record.Code,
			Active: record.Active,
		}, nil
	}

	// General campaign codes have no commission-earning party
	return nil, ErrUnresolved
}

// ResolveBatch resolves many codes for reporting. Unresolved or unknown
// codes never abort the batch; each entry carries its own outcome.
func (r *Reconciler) ResolveBatch(codes []string) []Resolution {
	results := make([]Resolution, 0, len(codes))
	for _, code := range codes {
		owner, err := r.ResolveOwner(code)
		results = append(results, Resolution{Code: code, Owner: owner, Err: err})
	}
	return results
}

// Search scans all registered ambassadors and campus guides for a
// case-insensitive substring match on name, email, phone or code. Used
// when staff manually attribute a conversion without a captured code.
func (r *Reconciler) Search(query string) ([]Owner, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"

	var ambassadors []models.Ambassador
	if err := r.db.
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(referral_code) LIKE ?",
			pattern, pattern, pattern, pattern).
		Find(&ambassadors).Error; err != nil {
		return nil, fmt.Errorf("failed to search ambassadors: %w", err)
	}

	var guides []models.CampusGuide
	if err := r.db.
		Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(phone) LIKE ? OR LOWER(referral_code) LIKE ?",
			pattern, pattern, pattern, pattern).
		Find(&guides).Error; err != nil {
		return nil, fmt.Errorf("failed to search campus guides: %w", err)
	}

	results := make([]Owner, 0, len(ambassadors)+len(guides))
	for _, amb := range ambassadors {
		results = append(results, Owner{
			Kind:   models.CodeKindAmbassador,
			ID:     amb.ID,
			Name:   amb.Name,
			Email:  amb.Email,
			Phone:  amb.Phone,
			Code:   amb.ReferralCode,
			Active: amb.Active,
		})
	}
	for _, guide := range guides {
		results = append(results, Owner{
			Kind:   models.CodeKindCampusGuide,
			ID:     guide.ID,
			Name:   guide.Name,
			Email:  guide.Email,
			Phone:  guide.Phone,
			Code:   guide.ReferralCode,
			Active: guide.Active,
		})
	}
	return results, nil
}
