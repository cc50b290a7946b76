package capture

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []models.AttributionEvent
}

func (r *recordingSink) Emit(event models.AttributionEvent) {
	r.events = append(r.events, event)
}

func accumulated(t *testing.T, kv KeyValue) map[string]string {
	raw, ok := kv.Get("urlParams")
	require.True(t, ok, "urlParams should be present")
	out := make(map[string]string)
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestIngestIdempotentAccumulation(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}}))

	assert.Equal(t, "newsletter", accumulated(t, kv)["src"])
}

func TestIngestUnionAccumulation(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"src": {"social"}}))

	// First-seen order is preserved
	assert.Equal(t, "newsletter,social", accumulated(t, kv)["src"])
}

func TestIngestRefTakesPriorityOverReferrer(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"ref": {"ABC"}, "referrer": {"XYZ"}}))

	code, ok := store.CurrentCode()
	require.True(t, ok)
	assert.Equal(t, "ABC", code)

	mirrored, _ := kv.Get("referralCode")
	assert.Equal(t, "ABC", mirrored)
}

func TestIngestClearStorageWipesEverything(t *testing.T) {
	kv := NewMemoryStore()
	sink := &recordingSink{}
	store := NewStore(kv, sink)

	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}, "ref": {"ABC"}, "fbclid": {"zz"}}))
	require.Len(t, sink.events, 1)

	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"clearStorage": {"1"}, "src": {"ignored"}}))

	for _, key := range []string{"urlParams", "ref", "referralCode", "referralData"} {
		_, ok := kv.Get(key)
		assert.False(t, ok, "key %q should be wiped", key)
	}
	// No event for the clearing navigation
	assert.Len(t, sink.events, 1)

	_, ok := store.CurrentCode()
	assert.False(t, ok)
}

func TestIngestRunsAtMostOncePerNavigation(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}}))
	// Double invocation within the same page load must not re-merge
	require.NoError(t, store.Ingest(url.Values{"src": {"social"}}))

	assert.Equal(t, "newsletter", accumulated(t, kv)["src"])
}

func TestIngestSeedsDirectOnFirstVisit(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"fbclid": {"zz"}}))

	params := accumulated(t, kv)
	assert.Equal(t, "direct", params["src"])
	assert.Equal(t, "zz", params["fbclid"])
}

func TestIngestDoesNotReseedDirectOnLaterVisits(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"src": {"newsletter"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{}))

	assert.Equal(t, "newsletter", accumulated(t, kv)["src"])
}

func TestIngestNormalizesClassifiedParams(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"campaign": {"Summer Fair"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"campaign": {"summer-fair"}}))

	assert.Equal(t, "summer-fair", accumulated(t, kv)["campaign"])
}

func TestIngestEmitsPageVisitOnCodeCapture(t *testing.T) {
	kv := NewMemoryStore()
	sink := &recordingSink{}
	store := NewStore(kv, sink)

	require.NoError(t, store.Ingest(url.Values{"ref": {"ABC123"}, "src": {"social"}}))

	require.Len(t, sink.events, 1)
	event := sink.events[0]
	assert.Equal(t, "ABC123", event.ReferralCode)
	assert.Equal(t, models.ActionPageVisit, event.Action)
	assert.Equal(t, "social", event.Source)
}

func TestIngestMiscParamsAccumulate(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"gclid": {"one"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"gclid": {"two"}}))
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"gclid": {"one"}}))

	assert.Equal(t, "one,two", accumulated(t, kv)["gclid"])
}

func TestCurrentCodeFallsBackToStoredCode(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"ref": {"STORED1"}}))

	// Next navigation carries no code; the stored mirror wins
	store.BeginNavigation()
	require.NoError(t, store.Ingest(url.Values{"src": {"social"}}))

	code, ok := store.CurrentCode()
	require.True(t, ok)
	assert.Equal(t, "STORED1", code)
}

func TestCurrentCodeEmptyWithoutHistory(t *testing.T) {
	store := NewStore(NewMemoryStore(), nil)
	_, ok := store.CurrentCode()
	assert.False(t, ok)
}

func TestReferralDataMirror(t *testing.T) {
	kv := NewMemoryStore()
	store := NewStore(kv, nil)

	require.NoError(t, store.Ingest(url.Values{"ref": {"ABC123"}, "src": {"social"}}))

	raw, ok := kv.Get("referralData")
	require.True(t, ok)

	var data ReferralData
	require.NoError(t, json.Unmarshal([]byte(raw), &data))
	assert.Equal(t, "ABC123", data.Code)
	assert.Equal(t, "social", data.Source)
	assert.NotZero(t, data.Timestamp)
}
