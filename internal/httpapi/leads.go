package httpapi

import (
	"errors"
	"io"
	"net/http"

	"leadtracker/internal/audit"
	"leadtracker/internal/leads"
	"leadtracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// multipartOverhead is the room left for multipart headers above the file limit.
const multipartOverhead = 1 << 20

type createLeadRequest struct {
	Overrides map[string]any `json:"overrides"`
}

type updateLeadRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// leadResponse carries a lead record. SyncError is set when the change was
// kept locally but the remote write failed.
type leadResponse struct {
	Lead      leads.Lead `json:"lead"`
	SyncError string     `json:"sync_error,omitempty"`
}

type deleteResponse struct {
	ID        string `json:"id"`
	SyncError string `json:"sync_error,omitempty"`
}

// ListLeads returns the caller's leads for ?window= with their stats.
func (h Handlers) ListLeads(c *gin.Context) {
	w, ok := parseWindow(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.reports().Dashboard(s.Repo.Leads(), w))
}

// RefreshLeads reloads the collection from the store.
func (h Handlers) RefreshLeads(c *gin.Context) {
	w, ok := parseWindow(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	if err := s.Repo.Load(c.Request.Context()); err != nil {
		logger.FromGin(c).Error("lead reload failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "failed to load leads"})
		return
	}
	c.JSON(http.StatusOK, h.reports().Dashboard(s.Repo.Leads(), w))
}

// CreateLead adds a local draft. Nothing is stored until the draft gets a name
// or salesperson.
func (h Handlers) CreateLead(c *gin.Context) {
	var req createLeadRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	patch := make(leads.Patch, len(req.Overrides))
	for name, v := range req.Overrides {
		f, err := leads.ParseField(name)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch[f] = v
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	draft, err := s.Repo.CreateDraft(c.Request.Context(), patch)
	if err != nil {
		abortLeadError(c, err)
		return
	}
	h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadCreated, LeadID: draft.ID})
	c.JSON(http.StatusCreated, leadResponse{Lead: draft})
}

// UpdateLead sets one field. A draft is saved by its first name or salesperson edit.
func (h Handlers) UpdateLead(c *gin.Context) {
	var req updateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	f, err := leads.ParseField(req.Field)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	lead, err := s.Repo.Update(c.Request.Context(), c.Param("id"), f, req.Value)
	if err != nil {
		if lead.ID == "" || isClientError(err) {
			abortLeadError(c, err)
			return
		}
		h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadUpdated, LeadID: lead.ID, Field: string(f), Message: "not synced: " + err.Error()})
		c.JSON(http.StatusOK, leadResponse{Lead: lead, SyncError: err.Error()})
		return
	}
	h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadUpdated, LeadID: lead.ID, Field: string(f)})
	c.JSON(http.StatusOK, leadResponse{Lead: lead})
}

// DeleteLead removes a lead locally and from the store.
func (h Handlers) DeleteLead(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := s.Repo.Remove(c.Request.Context(), id); err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			abortLeadError(c, err)
			return
		}
		h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadDeleted, LeadID: id, Message: "not synced: " + err.Error()})
		c.JSON(http.StatusOK, deleteResponse{ID: id, SyncError: err.Error()})
		return
	}
	h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventLeadDeleted, LeadID: id})
	c.JSON(http.StatusOK, deleteResponse{ID: id})
}

// UploadScreenshot attaches the multipart "file" to a saved lead.
func (h Handlers) UploadScreenshot(c *gin.Context) {
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = leads.DefaultMaxUploadBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			abortLeadError(c, leads.ErrFileTooLarge)
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	if fh.Size > limit {
		abortLeadError(c, leads.ErrFileTooLarge)
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}

	s, ok := h.session(c)
	if !ok {
		return
	}
	lead, err := s.Attachments.Attach(c.Request.Context(), c.Param("id"), fh.Filename, data)
	if err != nil {
		if lead.ID == "" || isClientError(err) {
			abortLeadError(c, err)
			return
		}
		c.JSON(http.StatusOK, leadResponse{Lead: lead, SyncError: err.Error()})
		return
	}
	h.record(c, audit.Event{Scope: s.Scope, Type: audit.EventScreenshotUploaded, LeadID: lead.ID, Message: fh.Filename})
	c.JSON(http.StatusOK, leadResponse{Lead: lead})
}

// Notifications drains the caller's pending notices.
func (h Handlers) Notifications(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": s.Inbox.Drain()})
}

func isClientError(err error) bool {
	return errors.Is(err, leads.ErrNotFound) ||
		errors.Is(err, leads.ErrUnknownField) ||
		errors.Is(err, leads.ErrInvalidValue) ||
		errors.Is(err, leads.ErrFieldNotApplicable) ||
		errors.Is(err, leads.ErrConflict)
}
