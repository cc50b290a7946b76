package handlers

import (
	"net/http"
	"time"

	"github.com/edupath/referral-backend/internal/config"
	"github.com/edupath/referral-backend/internal/models"
	"github.com/edupath/referral-backend/internal/utils"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler handles staff authentication
type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

// LoginRequest represents a staff login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

// Login authenticates a staff user and returns a JWT. Only emails on the
// staff allow-list can log in regardless of stored credentials.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.cfg.IsStaffEmail(req.Email) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Email is not authorized for staff access"})
		return
	}

	var staff models.StaffUser
	if err := h.db.First(&staff, "email = ?", req.Email).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.Password), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	expiration := time.Duration(h.cfg.JWT.Expiration) * time.Hour
	token, err := utils.GenerateToken(staff.ID, staff.Email, staff.IsAdmin, expiration)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"staff": gin.H{
			"id":       staff.ID,
			"name":     staff.Name,
			"email":    staff.Email,
			"is_admin": staff.IsAdmin,
		},
	})
}
