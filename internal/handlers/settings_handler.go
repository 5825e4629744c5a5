package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
)

// GetSettings returns the tenant's import settings without secrets
// GET /api/v1/imports/settings
func (h *ImportHandler) GetSettings(c *gin.Context) {
	settings, err := h.service.GetSettings(c.Request.Context(), middleware.GetTenantID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: settings})
}

// UpdateSettings applies a partial settings update
// PUT /api/v1/imports/settings
func (h *ImportHandler) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	settings, err := h.service.UpdateSettings(c.Request.Context(), middleware.GetTenantID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	message := "Settings saved"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: settings, Message: &message})
}

// DisconnectSource removes the stored connection of one source
// DELETE /api/v1/imports/settings/source?source=airtable
func (h *ImportHandler) DisconnectSource(c *gin.Context) {
	source := models.SourceType(c.Query("source"))
	if !source.Valid() {
		respondBadRequest(c, "INVALID_SOURCE", "A valid source query parameter is required")
		return
	}
	if err := h.service.DisconnectSource(c.Request.Context(), middleware.GetTenantID(c), source); err != nil {
		respondError(c, err)
		return
	}
	message := "Source disconnected"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// TestSource checks that the configured source can be read
// POST /api/v1/imports/sources/test
func (h *ImportHandler) TestSource(c *gin.Context) {
	var req models.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if !req.Source.Valid() {
		respondBadRequest(c, "INVALID_SOURCE", "Unknown source")
		return
	}

	if err := h.service.TestSource(c.Request.Context(), middleware.GetTenantID(c), req.Source); err != nil {
		respondError(c, err)
		return
	}
	message := "Connection successful"
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Message: &message})
}

// SampleSource fetches the first rows of a source and stores its headers
// POST /api/v1/imports/sources/sample
func (h *ImportHandler) SampleSource(c *gin.Context) {
	var req models.SourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}
	if !req.Source.Valid() {
		respondBadRequest(c, "INVALID_SOURCE", "Unknown source")
		return
	}

	sample, err := h.service.SampleSource(c.Request.Context(), middleware.GetTenantID(c), req.Source, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: sample})
}
