package tracking

import (
	"log"
	"net/http"
	"net/url"
	"time"
)

// LegacyMirror posts submissions to a legacy third-party form endpoint.
// The endpoint may be unreachable or may reject silently; this is a one-way
// mirror with no contract on success and responses are never inspected.
type LegacyMirror struct {
	endpoint string
	client   *http.Client
}

// NewLegacyMirror creates a mirror for the given endpoint. An empty
// endpoint disables mirroring.
func NewLegacyMirror(endpoint string, timeout time.Duration) *LegacyMirror {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &LegacyMirror{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Post sends a form-encoded submission. Failures are logged and swallowed.
func (m *LegacyMirror) Post(fields url.Values) {
	if m == nil || m.endpoint == "" {
		return
	}

	resp, err := m.client.PostForm(m.endpoint, fields)
	if err != nil {
		log.Printf("legacy mirror post failed: %v", err)
		return
	}
	resp.Body.Close()
}
