package jobs

import (
	"errors"
	"log"
	"time"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/edupath/referral-backend/internal/models"
	"github.com/go-co-op/gocron"
	"gorm.io/gorm"
)

// AttributionSweepJob periodically retries owner resolution for
// conversions that were recorded before their referral code mapped to a
// registered party. Codes registered after the conversion arrived get
// linked retroactively.
type AttributionSweepJob struct {
	db         *gorm.DB
	reconciler *attribution.Reconciler
}

// NewAttributionSweepJob creates a sweep job
func NewAttributionSweepJob(db *gorm.DB, reconciler *attribution.Reconciler) *AttributionSweepJob {
	return &AttributionSweepJob{db: db, reconciler: reconciler}
}

// Schedule registers the sweep with the scheduler: hourly sweep plus a
// daily summary log line
func (j *AttributionSweepJob) Schedule(scheduler *gocron.Scheduler) error {
	if _, err := scheduler.Every(1).Hour().Do(j.Run); err != nil {
		return err
	}
	if _, err := scheduler.Every(1).Day().At("02:00").Do(j.logDailySummary); err != nil {
		return err
	}
	return nil
}

// Run resolves unattributed conversions. Unresolvable codes stay
// unattributed and are retried on the next sweep; one bad code never
// aborts the rest of the batch.
func (j *AttributionSweepJob) Run() {
	var conversions []models.Conversion
	if err := j.db.
		Where("attributed_owner_id IS NULL").
		Find(&conversions).Error; err != nil {
		log.Printf("attribution sweep: failed to load unattributed conversions: %v", err)
		return
	}

	if len(conversions) == 0 {
		return
	}

	linked := 0
	for _, conversion := range conversions {
		owner, err := j.reconciler.ResolveOwner(conversion.ReferralCode)
		if err != nil {
			if !errors.Is(err, attribution.ErrCodeNotFound) && !errors.Is(err, attribution.ErrUnresolved) {
				log.Printf("attribution sweep: resolve failed for code %q: %v", conversion.ReferralCode, err)
			}
			continue
		}

		updates := map[string]interface{}{
			"attributed_kind":     owner.Kind,
			"attributed_owner_id": owner.ID,
			"attributed_name":     owner.Name,
			"updated_at":          time.Now(),
		}
		if err := j.db.Model(&models.Conversion{}).
			Where("id = ?", conversion.ID).
			Updates(updates).Error; err != nil {
			log.Printf("attribution sweep: failed to link conversion %s: %v", conversion.ID, err)
			continue
		}
		linked++
	}

	log.Printf("attribution sweep: linked %d of %d unattributed conversions", linked, len(conversions))
}

func (j *AttributionSweepJob) logDailySummary() {
	var total, unattributed int64
	if err := j.db.Model(&models.Conversion{}).Count(&total).Error; err != nil {
		return
	}
	if err := j.db.Model(&models.Conversion{}).
		Where("attributed_owner_id IS NULL").
		Count(&unattributed).Error; err != nil {
		return
	}
	log.Printf("attribution summary: %d conversions, %d unattributed", total, unattributed)
}
