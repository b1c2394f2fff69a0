package main

import (
	"database/sql"
	"net/http"
	"time"

	"leadtracker/internal/httpapi"
	"leadtracker/internal/metrics"
	"leadtracker/internal/rbac"
	"leadtracker/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerPublicRoutes wires health, metrics and uploaded screenshots.
func registerPublicRoutes(r *gin.Engine, db *sql.DB, publicPath, uploadDir string) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static(publicPath, uploadDir)
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")

	// Dev token issuance; the handler refuses when disabled.
	v1.POST("/auth/login", h.Login)

	protected := v1.Group("")
	protected.Use(authMW)
	protected.Use(rbac.RequireAnyRole(rbac.RoleSales))
	{
		protected.GET("/leads", h.ListLeads)
		protected.POST("/leads", h.CreateLead)
		protected.POST("/leads/refresh", h.RefreshLeads)
		protected.GET("/leads/export.csv", h.ExportCSV)
		protected.PATCH("/leads/:id", h.UpdateLead)
		protected.DELETE("/leads/:id", h.DeleteLead)
		protected.POST("/leads/:id/screenshot", h.UploadScreenshot)

		protected.GET("/stats", h.Stats)
		protected.GET("/notifications", h.Notifications)
	}

	// ADMIN routes
	admin := v1.Group("/admin")
	admin.Use(authMW)
	admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
	{
		admin.GET("/overview", h.AdminOverview)
		admin.GET("/salespeople", h.AdminSalespeople)
		admin.GET("/sources", h.AdminSources)
	}
}
