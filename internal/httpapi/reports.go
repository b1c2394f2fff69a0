package httpapi

import (
	"net/http"

	"leadtracker/internal/leads"
	"leadtracker/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Stats returns the dashboard summary for ?window=.
func (h Handlers) Stats(c *gin.Context) {
	w, ok := parseWindow(c)
	if !ok {
		return
	}
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.reports().Dashboard(s.Repo.Leads(), w).Stats)
}

// --- Admin ---
// Admin reports cover saved leads only; unsaved drafts are private to the editor.

func (h Handlers) AdminOverview(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, reporting.Overview(saved(s.Repo.Leads())))
}

func (h Handlers) AdminSalespeople(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"salespeople": reporting.GroupBySalesperson(saved(s.Repo.Leads()))})
}

func (h Handlers) AdminSources(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": reporting.GroupBySource(saved(s.Repo.Leads()))})
}

func saved(in []leads.Lead) []leads.Lead {
	out := make([]leads.Lead, 0, len(in))
	for _, l := range in {
		if !l.IsDraft() {
			out = append(out, l)
		}
	}
	return out
}
