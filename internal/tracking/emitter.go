package tracking

import (
	"context"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/edupath/referral-backend/internal/models"
	"gorm.io/gorm"
)

// Emitter reports attribution events to the durable table and the legacy
// form mirror. Emission is fire-and-forget: it never blocks the caller,
// never returns an error, and a failed emission is not retried. Attribution
// data is advisory; billing-critical facts live in the conversion ledger.
type Emitter struct {
	db       *gorm.DB
	mirror   *LegacyMirror
	sessions *SessionTracker

	wg sync.WaitGroup
}

// NewEmitter creates an emitter. mirror and sessions may be nil.
func NewEmitter(db *gorm.DB, mirror *LegacyMirror, sessions *SessionTracker) *Emitter {
	return &Emitter{db: db, mirror: mirror, sessions: sessions}
}

// Emit records an attribution event in the background
func (e *Emitter) Emit(event models.AttributionEvent) {
	if event.ObservedAt.IsZero() {
		event.ObservedAt = time.Now()
	}

	if e.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		event.SessionID, event.PageLoads = e.sessions.Touch(ctx)
		cancel()
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.deliver(event)
	}()
}

// EmitSync records an attribution event and reports whether the durable
// write succeeded. Used by the tracking endpoint, which tells its caller
// whether the row was saved or skipped.
func (e *Emitter) EmitSync(event models.AttributionEvent) bool {
	if event.ObservedAt.IsZero() {
		event.ObservedAt = time.Now()
	}

	if e.sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		event.SessionID, event.PageLoads = e.sessions.Touch(ctx)
		cancel()
	}

	saved := e.persist(event)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.mirrorEvent(event)
	}()

	return saved
}

// Wait blocks until all in-flight emissions have finished. Used in tests
// and during shutdown.
func (e *Emitter) Wait() {
	e.wg.Wait()
}

func (e *Emitter) deliver(event models.AttributionEvent) {
	e.persist(event)
	e.mirrorEvent(event)
}

func (e *Emitter) persist(event models.AttributionEvent) bool {
	if e.db == nil {
		return false
	}
	if err := e.db.Create(&event).Error; err != nil {
		log.Printf("failed to persist attribution event for code %q: %v", event.ReferralCode, err)
		return false
	}
	return true
}

func (e *Emitter) mirrorEvent(event models.AttributionEvent) {
	if e.mirror == nil {
		return
	}

	fields := url.Values{}
	fields.Set("referralCode", event.ReferralCode)
	fields.Set("action", event.Action)
	fields.Set("source", event.Source)
	fields.Set("medium", event.Medium)
	fields.Set("campaign", event.Campaign)
	fields.Set("sessionId", event.SessionID)
	fields.Set("observedAt", event.ObservedAt.Format(time.RFC3339))
	e.mirror.Post(fields)
}
