package handlers

import (
	"errors"
	"net/http"

	"github.com/edupath/referral-backend/internal/attribution"
	"github.com/gin-gonic/gin"
)

// AttributionHandler exposes code resolution and registrant search to staff
type AttributionHandler struct {
	reconciler *attribution.Reconciler
}

// ResolveBatchRequest is the body of a batch resolve call
type ResolveBatchRequest struct {
	Codes []string `json:"codes" binding:"required"`
}

// NewAttributionHandler creates a new attribution handler
func NewAttributionHandler(reconciler *attribution.Reconciler) *AttributionHandler {
	return &AttributionHandler{reconciler: reconciler}
}

// Resolve maps a referral code to its owning registrant. Unresolved
// attribution is a soft outcome, reported as unknown owner rather than an
// error status.
func (h *AttributionHandler) Resolve(c *gin.Context) {
	code := c.Param("code")

	owner, err := h.reconciler.ResolveOwner(code)
	if err != nil {
		switch {
		case errors.Is(err, attribution.ErrCodeNotFound):
			c.JSON(http.StatusNotFound, gin.H{"resolved": false, "error": "Referral code not found"})
		case errors.Is(err, attribution.ErrUnresolved):
			c.JSON(http.StatusOK, gin.H{"resolved": false, "owner": nil, "message": "unknown owner"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve referral code"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": true, "owner": owner})
}

// ResolveBatch resolves many codes for reporting; unresolved entries do
// not abort the batch
func (h *AttributionHandler) ResolveBatch(c *gin.Context) {
	var req ResolveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resolutions := h.reconciler.ResolveBatch(req.Codes)

	results := make([]gin.H, 0, len(resolutions))
	for _, res := range resolutions {
		entry := gin.H{"code": res.Code, "resolved": res.Err == nil}
		if res.Err == nil {
			entry["owner"] = res.Owner
		} else {
			entry["message"] = res.Err.Error()
		}
		results = append(results, entry)
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Search finds registrants by free-text query for manual attribution
func (h *AttributionHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q query parameter is required"})
		return
	}

	owners, err := h.reconciler.Search(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Search failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": owners})
}
