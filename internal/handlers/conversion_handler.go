package handlers

import (
	"errors"
	"net/http"

	"github.com/edupath/referral-backend/internal/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversionHandler handles the staff-facing conversion ledger endpoints
type ConversionHandler struct {
	ledger *ledger.Ledger
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(l *ledger.Ledger) *ConversionHandler {
	return &ConversionHandler{ledger: l}
}

// Create records a new conversion
func (h *ConversionHandler) Create(c *gin.Context) {
	var input ledger.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversion, err := h.ledger.Create(input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, conversion)
}

// Get returns a single conversion
func (h *ConversionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversion id"})
		return
	}

	conversion, err := h.ledger.Get(id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversion not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load conversion"})
		return
	}

	c.JSON(http.StatusOK, conversion)
}

// Update applies partial fields to a conversion. Invalid status
// transitions are rejected so revenue aggregates cannot be corrupted by a
// cancelled conversion coming back to life.
func (h *ConversionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversion id"})
		return
	}

	var input ledger.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversion, err := h.ledger.Update(id, input)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversion not found"})
		case errors.Is(err, ledger.ErrInvalidTransition):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, conversion)
}

// Delete removes a conversion permanently
func (h *ConversionHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid conversion id"})
		return
	}

	if err := h.ledger.Delete(id); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Conversion not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete conversion"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversion deleted"})
}

// List returns conversions filtered by code or owner
func (h *ConversionHandler) List(c *gin.Context) {
	if code := c.Query("code"); code != "" {
		conversions, err := h.ledger.ListByCode(code)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversions"})
			return
		}
		c.JSON(http.StatusOK, conversions)
		return
	}

	if owner := c.Query("owner"); owner != "" {
		ownerID, err := uuid.Parse(owner)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner id"})
			return
		}
		conversions, err := h.ledger.ListByOwner(ownerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list conversions"})
			return
		}
		c.JSON(http.StatusOK, conversions)
		return
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "code or owner query parameter is required"})
}

// Stats returns the aggregate conversion summary, optionally filtered
func (h *ConversionHandler) Stats(c *gin.Context) {
	filter := ledger.Filter{ReferralCode: c.Query("code")}
	if owner := c.Query("owner"); owner != "" {
		ownerID, err := uuid.Parse(owner)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner id"})
			return
		}
		filter.OwnerID = &ownerID
	}

	summary, err := h.ledger.Aggregate(filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate conversions"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
