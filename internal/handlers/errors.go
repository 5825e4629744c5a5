package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"catalog-import-service/internal/catalog"
	"catalog-import-service/internal/importer"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
	"catalog-import-service/internal/sources"
)

// errorStatus maps service errors onto an HTTP status and error code
func errorStatus(err error) (int, string) {
	var (
		cfgErr   *importer.ConfigError
		fatalErr *importer.FatalError
		fetchErr *sources.FetchError
	)
	switch {
	case errors.Is(err, services.ErrImportInProgress):
		return http.StatusConflict, "IMPORT_IN_PROGRESS"
	case errors.Is(err, services.ErrInvalidSettings):
		return http.StatusBadRequest, "INVALID_SETTINGS"
	case errors.Is(err, services.ErrInvalidUpload):
		return http.StatusBadRequest, "INVALID_FILE"
	case errors.Is(err, sources.ErrNotConfigured):
		return http.StatusBadRequest, "SOURCE_NOT_CONFIGURED"
	case errors.As(err, &cfgErr):
		return http.StatusUnprocessableEntity, "IMPORT_NOT_CONFIGURED"
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway, "FETCH_FAILED"
	case errors.As(err, &fatalErr), catalog.IsUnavailable(err):
		return http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func errorBody(c *gin.Context, code, message string) models.ErrorResponse {
	return models.ErrorResponse{
		Success:   false,
		Error:     models.Error{Code: code, Message: message},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetString("request_id"),
	}
}

func respondError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "Internal server error"
	}
	c.JSON(status, errorBody(c, code, message))
}

func respondBadRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, errorBody(c, code, message))
}
