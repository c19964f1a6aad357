package server

import (
	"github.com/gin-gonic/gin"

	"svcdesk/internal/health"
)

// maxUploadMemory caps the multipart form kept in memory per request.
const maxUploadMemory = 32 << 20

// NewRouter builds the gin engine. evidenceDir, when set, is served at
// /evidence for the local evidence store.
func NewRouter(h *Handler, monitor *health.Monitor, evidenceDir string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = maxUploadMemory

	router.GET("/health", monitor.Handler())
	if evidenceDir != "" {
		router.Static("/evidence", evidenceDir)
	}

	api := router.Group("/api")
	SetupComplaintRoutes(api, h)
	SetupIntakeRoutes(api, h)
	SetupReportRoutes(api, h)

	return router
}

// SetupComplaintRoutes registers the complaint lifecycle routes.
func SetupComplaintRoutes(api *gin.RouterGroup, h *Handler) {
	complaints := api.Group("/complaints")
	{
		complaints.GET("", h.ListComplaints)
		complaints.POST("", h.CreateComplaint)
		complaints.GET("/:id", h.GetComplaint)
		complaints.PATCH("/:id/status", h.UpdateStatus)
		complaints.PATCH("/:id/technician", h.AssignTechnician)
		complaints.PATCH("/:id/parts", h.UpdateParts)
		complaints.POST("/:id/close", h.CloseComplaint)
		complaints.POST("/:id/reopen", h.ReopenComplaint)
		complaints.POST("/:id/evidence/:kind", h.UploadEvidence)
	}
}

// SetupIntakeRoutes registers the receive-form routes.
func SetupIntakeRoutes(api *gin.RouterGroup, h *Handler) {
	intake := api.Group("/intake")
	{
		intake.GET("", h.GetIntake)
		intake.PUT("", h.PutIntake)
		intake.POST("/parse", h.ParseIntake)
		intake.POST("/submit", h.SubmitIntake)
	}
}

// SetupReportRoutes registers the report, export and restore routes.
func SetupReportRoutes(api *gin.RouterGroup, h *Handler) {
	api.GET("/reports", h.GetReport)
	api.GET("/reports/summary.png", h.GetReportImage)

	exports := api.Group("/export")
	{
		exports.GET("/complaints.csv", h.ExportComplaints)
		exports.GET("/report.csv", h.ExportReport)
		exports.GET("/backup.json", h.ExportBackup)
	}
	api.POST("/restore", h.Restore)
}
