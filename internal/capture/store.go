package capture

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/gosimple/slug"
)

// Storage keys. ref and referralCode mirror the current code for older code
// paths that read those keys directly.
const (
	keyParams       = "urlParams"
	keyRef          = "ref"
	keyReferralCode = "referralCode"
	keyReferralData = "referralData"
)

// clearParam is the reserved control parameter that wipes all tracked state
const clearParam = "clearStorage"

// allowedParams is the fixed allow-list of classification parameters, in
// merge order. ref takes priority over referrer for code capture.
var allowedParams = []string{"src", "ref", "med", "referrer", "campaign"}

// classifiedParams are normalized before accumulation; code-bearing params
// are stored verbatim.
var classifiedParams = map[string]bool{"src": true, "med": true, "campaign": true}

// EventSink receives attribution events produced during ingestion.
// Implementations must not block or fail the caller.
type EventSink interface {
	Emit(event models.AttributionEvent)
}

// ReferralData is the JSON payload stored under the referralData key
type ReferralData struct {
	Code      string `json:"code"`
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
}

// Store accumulates attribution parameters across page visits. Values merge
// with set-union-then-join semantics: comma-joined, first-seen order,
// duplicates dropped. Not safe against concurrent writes from multiple
// tabs; last write wins on the underlying key.
type Store struct {
	kv       KeyValue
	sink     EventSink
	ingested bool
	navCode  string
}

// NewStore creates a capture store over the given key/value backend
func NewStore(kv KeyValue, sink EventSink) *Store {
	return &Store{kv: kv, sink: sink}
}

// BeginNavigation resets the per-page-load state so the next Ingest call is
// processed. Call once per navigation.
func (s *Store) BeginNavigation() {
	s.ingested = false
	s.navCode = ""
}

// Ingest merges the query parameters of the current navigation into the
// accumulated state. It runs at most once per navigation: repeated calls
// are no-ops so a double-invoked page load cannot double-count values.
func (s *Store) Ingest(params url.Values) error {
	if s.ingested {
		return nil
	}
	s.ingested = true

	// Reserved control parameter: wipe everything and stop. No event.
	if params.Get(clearParam) != "" {
		s.kv.Delete(keyParams)
		s.kv.Delete(keyRef)
		s.kv.Delete(keyReferralCode)
		s.kv.Delete(keyReferralData)
		s.navCode = ""
		return nil
	}

	accumulated, firstVisit, err := s.loadAccumulated()
	if err != nil {
		return err
	}

	sawAllowed := false
	for _, key := range allowedParams {
		value := strings.TrimSpace(params.Get(key))
		if value == "" {
			continue
		}
		sawAllowed = true
		if classifiedParams[key] {
			value = slug.Make(value)
		}
		accumulated[key] = mergeValue(accumulated[key], value)
	}

	// Everything else lands in the misc bucket with the same accumulation
	// rule, keyed by whatever parameter names show up.
	for key, values := range params {
		if isAllowed(key) || key == clearParam || len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])
		if value == "" {
			continue
		}
		accumulated[key] = mergeValue(accumulated[key], value)
	}

	if firstVisit && !sawAllowed {
		accumulated["src"] = "direct"
	}

	if err := s.saveAccumulated(accumulated); err != nil {
		return err
	}

	// Referral capture: ref wins over referrer
	code := strings.TrimSpace(params.Get("ref"))
	if code == "" {
		code = strings.TrimSpace(params.Get("referrer"))
	}
	if code != "" {
		s.navCode = code
		s.mirrorCode(code, accumulated["src"])
		s.emitPageVisit(code, accumulated)
	}

	return nil
}

// CurrentCode returns the effective referral code: the URL-provided code of
// the current navigation if any, else the most recently stored code.
func (s *Store) CurrentCode() (string, bool) {
	if s.navCode != "" {
		return s.navCode, true
	}
	if code, ok := s.kv.Get(keyReferralCode); ok && code != "" {
		return code, true
	}
	if code, ok := s.kv.Get(keyRef); ok && code != "" {
		return code, true
	}
	return "", false
}

// Accumulated returns a copy of the accumulated parameter map
func (s *Store) Accumulated() (map[string]string, error) {
	accumulated, _, err := s.loadAccumulated()
	return accumulated, err
}

func (s *Store) loadAccumulated() (map[string]string, bool, error) {
	raw, ok := s.kv.Get(keyParams)
	if !ok || raw == "" {
		return make(map[string]string), true, nil
	}
	accumulated := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &accumulated); err != nil {
		return nil, false, fmt.Errorf("corrupt urlParams payload: %w", err)
	}
	return accumulated, false, nil
}

func (s *Store) saveAccumulated(accumulated map[string]string) error {
	raw, err := json.Marshal(accumulated)
	if err != nil {
		return fmt.Errorf("failed to encode urlParams payload: %w", err)
	}
	s.kv.Set(keyParams, string(raw))
	return nil
}

func (s *Store) mirrorCode(code, source string) {
	s.kv.Set(keyRef, code)
	s.kv.Set(keyReferralCode, code)

	data, err := json.Marshal(ReferralData{
		Code:      code,
		Timestamp: time.Now().UnixMilli(),
		Source:    source,
	})
	if err != nil {
		return
	}
	s.kv.Set(keyReferralData, string(data))
}

func (s *Store) emitPageVisit(code string, accumulated map[string]string) {
	if s.sink == nil {
		return
	}

	misc := make(map[string]string)
	for key, value := range accumulated {
		if !isAllowed(key) {
			misc[key] = value
		}
	}
	rawParams := ""
	if len(misc) > 0 {
		if encoded, err := json.Marshal(misc); err == nil {
			rawParams = string(encoded)
		}
	}

	s.sink.Emit(models.AttributionEvent{
		ReferralCode: code,
		Action:       models.ActionPageVisit,
		Source:       accumulated["src"],
		Medium:       accumulated["med"],
		Campaign:     accumulated["campaign"],
		RawParams:    rawParams,
		ObservedAt:   time.Now(),
	})
}

// mergeValue adds a value to a comma-joined set, preserving first-seen
// order and dropping duplicates
func mergeValue(existing, value string) string {
	if existing == "" {
		return value
	}
	for _, member := range strings.Split(existing, ",") {
		if member == value {
			return existing
		}
	}
	return existing + "," + value
}

func isAllowed(key string) bool {
	for _, allowed := range allowedParams {
		if key == allowed {
			return true
		}
	}
	return false
}
