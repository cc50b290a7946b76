package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/edupath/referral-backend/internal/tracking"
	"github.com/gin-gonic/gin"
)

// TrackingHandler handles the public referral tracking endpoints
type TrackingHandler struct {
	emitter *tracking.Emitter
}

// TrackingRequest is the body of a tracking call
type TrackingRequest struct {
	ReferralCode string `json:"referralCode"`
	Action       string `json:"action"`
	UserAgent    string `json:"userAgent"`
	IP           string `json:"ip"`
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(emitter *tracking.Emitter) *TrackingHandler {
	return &TrackingHandler{emitter: emitter}
}

// Track records an attribution event. The durable write is attempted
// synchronously so the response can say whether the row was saved; the
// legacy mirror stays fire-and-forget. Failures never surface as an error
// status, attribution is advisory.
func (h *TrackingHandler) Track(c *gin.Context) {
	var req TrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid request body"})
		return
	}

	if req.ReferralCode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "referralCode is required"})
		return
	}

	action := req.Action
	if action == "" {
		action = models.ActionPageVisit
	}

	userAgent := req.UserAgent
	if userAgent == "" {
		userAgent = c.GetHeader("User-Agent")
	}
	ip := req.IP
	if ip == "" {
		ip = c.ClientIP()
	}

	referer := c.GetHeader("Referer")
	source, medium, campaign, rawParams := parseRefererParams(referer)

	event := models.AttributionEvent{
		ReferralCode: req.ReferralCode,
		Action:       action,
		Source:       source,
		Medium:       medium,
		Campaign:     campaign,
		RawParams:    rawParams,
		UserAgent:    userAgent,
		IP:           ip,
		Referer:      referer,
		ObservedAt:   time.Now(),
	}

	dbResult := "skipped"
	if h.emitter.EmitSync(event) {
		dbResult = "saved"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Tracking event recorded",
		"dbResult": dbResult,
	})
}

// Info is the informational stub for GET requests. Not real analytics.
func (h *TrackingHandler) Info(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "code query parameter is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"code":    code,
		"message": "Referral tracking is active for this code",
	})
}

// parseRefererParams extracts UTM-style classification from the referer
// URL's query string. Legacy utm_* names and the short names are both
// accepted; the short name wins when both are present.
func parseRefererParams(referer string) (source, medium, campaign, rawParams string) {
	if referer == "" {
		return "", "", "", ""
	}
	parsed, err := url.Parse(referer)
	if err != nil {
		return "", "", "", ""
	}
	query := parsed.Query()

	source = firstNonEmpty(query.Get("src"), query.Get("utm_source"))
	medium = firstNonEmpty(query.Get("med"), query.Get("utm_medium"))
	campaign = firstNonEmpty(query.Get("campaign"), query.Get("utm_campaign"))

	known := map[string]bool{
		"src": true, "utm_source": true,
		"med": true, "utm_medium": true,
		"campaign": true, "utm_campaign": true,
		"ref": true, "referrer": true,
	}
	misc := make(map[string]string)
	for key, values := range query {
		if known[key] || len(values) == 0 || values[0] == "" {
			continue
		}
		misc[key] = values[0]
	}
	if len(misc) > 0 {
		if encoded, err := json.Marshal(misc); err == nil {
			rawParams = string(encoded)
		}
	}
	return source, medium, campaign, rawParams
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
