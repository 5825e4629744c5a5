package handlers

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the import API on group
func (h *ImportHandler) RegisterRoutes(group *gin.RouterGroup) {
	imports := group.Group("/imports")
	{
		imports.POST("/run", h.RunImport)
		imports.POST("/upload", h.UploadImport)
		imports.GET("/status", h.GetStatus)
		imports.GET("/runs", h.ListRuns)
		imports.GET("/template", h.GetImportTemplate)

		imports.GET("/settings", h.GetSettings)
		imports.PUT("/settings", h.UpdateSettings)
		imports.DELETE("/settings/source", h.DisconnectSource)

		imports.POST("/sources/test", h.TestSource)
		imports.POST("/sources/sample", h.SampleSource)
	}
}
