package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/edupath/referral-backend/internal/models"
	"github.com/edupath/referral-backend/internal/referral"
	"github.com/edupath/referral-backend/internal/tracking"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RegistrantHandler handles ambassador and campus guide registration
type RegistrantHandler struct {
	db      *gorm.DB
	issuer  *referral.Issuer
	emitter *tracking.Emitter
	mirror  *tracking.LegacyMirror
}

// AmbassadorRequest is the ambassador registration body
type AmbassadorRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	Occupation string `json:"occupation"`
}

// CampusGuideRequest is the campus guide registration body
type CampusGuideRequest struct {
	Name       string `json:"name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Phone      string `json:"phone"`
	University string `json:"university"`
}

// NewRegistrantHandler creates a new registrant handler
func NewRegistrantHandler(db *gorm.DB, issuer *referral.Issuer, emitter *tracking.Emitter, mirror *tracking.LegacyMirror) *RegistrantHandler {
	return &RegistrantHandler{db: db, issuer: issuer, emitter: emitter, mirror: mirror}
}

// RegisterAmbassador creates an ambassador and issues their referral code.
// Each step is a separate store call: if code issuance fails after the
// registrant row was written, the partial state is surfaced as an error
// rather than silently rolled back.
func (h *RegistrantHandler) RegisterAmbassador(c *gin.Context) {
	var req AmbassadorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ambassador := models.Ambassador{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Occupation: req.Occupation,
		Active:     true,
	}
	if err := h.db.Create(&ambassador).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create ambassador; email may already be registered"})
		return
	}

	code, err := h.issuer.Issue(req.Email, req.Name, models.CodeKindAmbassador, &ambassador.ID)
	if err != nil {
		h.issueFailure(c, err)
		return
	}

	ambassador.ReferralCode = code.Code
	if err := h.db.Model(&ambassador).Update("referral_code", code.Code).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Code issued but could not be linked to the ambassador"})
		return
	}

	h.afterRegistration(code.Code, "ambassador", req.Name, req.Email)

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Ambassador registered successfully",
		"ambassador":    ambassador,
		"referral_code": code.Code,
	})
}

// RegisterCampusGuide creates a campus guide and issues their referral code
func (h *RegistrantHandler) RegisterCampusGuide(c *gin.Context) {
	var req CampusGuideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	guide := models.CampusGuide{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		University: req.University,
		Active:     true,
	}
	if err := h.db.Create(&guide).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Failed to create campus guide; email may already be registered"})
		return
	}

	code, err := h.issuer.Issue(req.Email, req.Name, models.CodeKindCampusGuide, &guide.ID)
	if err != nil {
		h.issueFailure(c, err)
		return
	}

	guide.ReferralCode = code.Code
	if err := h.db.Model(&guide).Update("referral_code", code.Code).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Code issued but could not be linked to the campus guide"})
		return
	}

	h.afterRegistration(code.Code, "campus_guide", req.Name, req.Email)

	c.JSON(http.StatusCreated, gin.H{
		"message":       "Campus guide registered successfully",
		"campus_guide":  guide,
		"referral_code": code.Code,
	})
}

// ListAmbassadors returns all ambassadors (staff only)
func (h *RegistrantHandler) ListAmbassadors(c *gin.Context) {
	var ambassadors []models.Ambassador
	if err := h.db.Order("created_at DESC").Find(&ambassadors).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch ambassadors"})
		return
	}
	c.JSON(http.StatusOK, ambassadors)
}

// ListCampusGuides returns all campus guides (staff only)
func (h *RegistrantHandler) ListCampusGuides(c *gin.Context) {
	var guides []models.CampusGuide
	if err := h.db.Order("created_at DESC").Find(&guides).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch campus guides"})
		return
	}
	c.JSON(http.StatusOK, guides)
}

func (h *RegistrantHandler) issueFailure(c *gin.Context, err error) {
	if errors.Is(err, referral.ErrActiveCodeExists) {
		c.JSON(http.StatusConflict, gin.H{"error": "An active referral code already exists for this registrant"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Registrant saved but referral code issuance failed"})
}

// afterRegistration emits the signup attribution event and mirrors the
// registration to the legacy form sink. Both are best-effort.
func (h *RegistrantHandler) afterRegistration(code, kind, name, email string) {
	if h.emitter != nil {
		h.emitter.Emit(models.AttributionEvent{
			ReferralCode: code,
			Action:       models.ActionSignup,
			Source:       kind,
			ObservedAt:   time.Now(),
		})
	}
	if h.mirror != nil {
		fields := url.Values{}
		fields.Set("kind", kind)
		fields.Set("name", name)
		fields.Set("email", email)
		fields.Set("referralCode", code)
		go h.mirror.Post(fields)
	}
}
