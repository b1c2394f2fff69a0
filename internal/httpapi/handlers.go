package httpapi

import (
	"errors"
	"net/http"
	"time"

	"leadtracker/internal/audit"
	"leadtracker/internal/auth"
	"leadtracker/internal/leads"
	"leadtracker/internal/rbac"
	"leadtracker/internal/reporting"
	"leadtracker/internal/session"
	"leadtracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth     *auth.Manager
	Sessions *session.Registry
	Reports  *reporting.Service
	// Audit, when set, records lead changes. Failures are logged only.
	Audit *audit.Service

	// AllowDevLogin enables Login, which issues tokens without credentials.
	AllowDevLogin  bool
	MaxUploadBytes int64
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: Development only. There are no credentials to check.
func (h Handlers) Login(c *gin.Context) {
	if !h.AllowDevLogin {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		logger.FromGin(c).Error("token issuance failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// session resolves the caller's lead session. It writes the error response
// and returns false when there is none to work with. A session whose first
// load failed is still served; the failure is in its inbox and the next
// request retries the load.
func (h Handlers) session(c *gin.Context) (*session.Session, bool) {
	if h.Sessions == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions not configured"})
		return nil, false
	}
	userID, _ := auth.UserID(c.Request.Context())
	s, err := h.Sessions.Get(c.Request.Context(), userID)
	switch {
	case errors.Is(err, session.ErrNoUser):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return nil, false
	case errors.Is(err, session.ErrLoadFailed) && s != nil:
		logger.FromGin(c).Warn("serving session without persisted leads", "scope", s.Scope, "err", err)
	case err != nil:
		logger.FromGin(c).Error("session open failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to load leads"})
		return nil, false
	}
	return s, true
}

// abortLeadError maps repository and attachment errors to HTTP responses.
func abortLeadError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := err.Error()
	switch {
	case errors.Is(err, leads.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, leads.ErrUnknownField),
		errors.Is(err, leads.ErrInvalidValue),
		errors.Is(err, leads.ErrFieldNotApplicable),
		errors.Is(err, leads.ErrEmptyFile):
		status = http.StatusBadRequest
	case errors.Is(err, leads.ErrInvalidMimeType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, leads.ErrFileTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, leads.ErrDraftNotSaved):
		status = http.StatusConflict
		msg = "save the lead before uploading screenshots"
	case errors.Is(err, leads.ErrConflict):
		status = http.StatusConflict
		msg = "lead was already saved; list reloaded"
	case errors.Is(err, leads.ErrClaimHeld):
		status = http.StatusConflict
		msg = "lead is being saved by another session; try again shortly"
	case errors.Is(err, leads.ErrUploadFailed):
		status = http.StatusBadGateway
	default:
		logger.FromGin(c).Error("lead operation failed", "err", err)
		status = http.StatusBadGateway
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func parseWindow(c *gin.Context) (reporting.Window, bool) {
	w, err := reporting.ParseWindow(c.Query("window"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return w, true
}

func (h Handlers) reports() *reporting.Service {
	if h.Reports == nil {
		return reporting.NewService(nil)
	}
	return h.Reports
}

func (h Handlers) record(c *gin.Context, e audit.Event) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(c.Request.Context(), e); err != nil {
		logger.FromGin(c).Warn("audit append failed", "type", string(e.Type), "lead_id", e.LeadID, "err", err)
	}
}
