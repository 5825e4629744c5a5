package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"catalog-import-service/internal/middleware"
	"catalog-import-service/internal/models"
	"catalog-import-service/internal/services"
)

const (
	DefaultRunsLimit = 20
	MaxRunsLimit     = 100
)

// ImportService is the part of services.ImportService the handlers use
type ImportService interface {
	GetSettings(ctx context.Context, tenantID string) (*models.SettingsResponse, error)
	UpdateSettings(ctx context.Context, tenantID string, req *models.UpdateSettingsRequest) (*models.SettingsResponse, error)
	DisconnectSource(ctx context.Context, tenantID string, source models.SourceType) error
	TestSource(ctx context.Context, tenantID string, source models.SourceType) error
	SampleSource(ctx context.Context, tenantID string, source models.SourceType, limit int) (*models.SampleResponse, error)
	RunConfigured(ctx context.Context, tenantID, actor string, source models.SourceType) (*models.ImportRun, models.ImportResult, error)
	RunUpload(ctx context.Context, tenantID, actor, filename string, data []byte) (*models.ImportRun, models.ImportResult, error)
	LatestStatus(ctx context.Context, tenantID string, consume bool) (*models.ImportResult, error)
	ListRuns(ctx context.Context, tenantID string, page, limit int) ([]models.ImportRun, int64, error)
}

type ImportHandler struct {
	service        ImportService
	maxUploadBytes int64
	runTimeout     time.Duration
	logger         *logrus.Entry
}

func NewImportHandler(service ImportService, maxUploadBytes int64, runTimeout time.Duration, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		runTimeout:     runTimeout,
		logger:         logger.WithField("component", "import-handler"),
	}
}

// runContext detaches the run from the client connection so a dropped
// request does not leave a half-applied batch
func (h *ImportHandler) runContext(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(c.Request.Context())
	if h.runTimeout > 0 {
		return context.WithTimeout(ctx, h.runTimeout)
	}
	return context.WithCancel(ctx)
}

// RunImport imports from the configured source
// @Summary Run import
// @Description Fetch rows from the selected (or given) source and reconcile them into the catalog
// @Tags imports
// @Accept json
// @Produce json
// @Param request body models.StartImportRequest false "Source override"
// @Success 200 {object} models.SuccessResponse{data=models.RunResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /imports/run [post]
func (h *ImportHandler) RunImport(c *gin.Context) {
	var req models.StartImportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "INVALID_REQUEST", err.Error())
			return
		}
	}
	if req.Source != "" && !req.Source.Valid() {
		respondBadRequest(c, "INVALID_SOURCE", fmt.Sprintf("Unknown source %q", req.Source))
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	run, result, err := h.service.RunConfigured(ctx, middleware.GetTenantID(c), middleware.GetUserID(c), req.Source)
	h.respondRun(c, run, result, err)
}

// UploadImport imports an uploaded CSV or Excel file
// @Summary Upload import file
// @Description Import products from an uploaded CSV or XLSX file
// @Tags imports
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} models.SuccessResponse{data=models.RunResponse}
// @Failure 400 {object} models.ErrorResponse
// @Failure 413 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /imports/upload [post]
func (h *ImportHandler) UploadImport(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(c, "FILE_REQUIRED", "Please upload a CSV or Excel file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondBadRequest(c, "PARSE_ERROR", err.Error())
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(c, "FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d MB upload limit", h.maxUploadBytes>>20)))
		return
	}

	ctx, cancel := h.runContext(c)
	defer cancel()

	run, result, err := h.service.RunUpload(ctx, middleware.GetTenantID(c), middleware.GetUserID(c), header.Filename, data)
	h.respondRun(c, run, result, err)
}

// respondRun renders a run. Failed runs that produced a result still carry it.
func (h *ImportHandler) respondRun(c *gin.Context, run *models.ImportRun, result models.ImportResult, err error) {
	if err == nil {
		c.JSON(http.StatusOK, models.SuccessResponse{
			Success: true,
			Data:    models.RunResponse{Run: run, Result: result, Level: services.ResultLevel(result)},
		})
		return
	}

	status, code := errorStatus(err)
	if run == nil || status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("tenant_id", middleware.GetTenantID(c)).Warn("Import run rejected")
		respondError(c, err)
		return
	}
	body := errorBody(c, code, err.Error())
	c.JSON(status, gin.H{
		"success":   false,
		"error":     body.Error,
		"timestamp": body.Timestamp,
		"requestId": body.RequestID,
		"data":      models.RunResponse{Run: run, Result: result, Level: services.ResultLevel(result)},
	})
}

// GetStatus returns the latest run result while it is retained
// GET /api/v1/imports/status?consume=true
func (h *ImportHandler) GetStatus(c *gin.Context) {
	consume := c.DefaultQuery("consume", "false") == "true"
	result, err := h.service.LatestStatus(c.Request.Context(), middleware.GetTenantID(c), consume)
	if err != nil {
		respondError(c, err)
		return
	}
	if result == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    models.RunResponse{Result: *result, Level: services.ResultLevel(*result)},
	})
}

// ListRuns returns the import history, newest first
// GET /api/v1/imports/runs?page=1&limit=20
func (h *ImportHandler) ListRuns(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultRunsLimit)))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultRunsLimit
	}
	if limit > MaxRunsLimit {
		limit = MaxRunsLimit
	}

	runs, total, err := h.service.ListRuns(c.Request.Context(), middleware.GetTenantID(c), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if runs == nil {
		runs = []models.ImportRun{}
	}
	c.JSON(http.StatusOK, models.SuccessResponse{
		Success: true,
		Data:    models.RunListResponse{Runs: runs, Total: total, Page: page, Limit: limit},
	})
}

// GetImportTemplate returns the import template definition or file
// GET /api/v1/imports/template?format=csv|xlsx|json
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	template := models.ImportTemplate{
		Entity:  "products",
		Version: "1",
		Columns: models.ProductImportColumns(),
	}
	example := map[string]string{}
	for _, col := range template.Columns {
		example[col.Name] = col.Example
	}
	template.SampleData = []map[string]string{example}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate writes the header row and one example row
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	example := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
		example[i] = col.Example
	}
	if err := writer.Write(headers); err != nil {
		h.logger.WithError(err).Warn("Failed to write CSV template")
		return
	}
	_ = writer.Write(example)
}

// generateXLSXTemplate writes a Products sheet and an Instructions sheet
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		style := headerStyle
		if col.Required {
			// the file reader strips the " *" marker
			headerText = col.Name + " *"
			style = requiredStyle
		}
		f.SetCellValue(sheetName, cell, headerText)
		f.SetCellStyle(sheetName, cell, cell, style)

		exampleCell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(sheetName, exampleCell, col.Example)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		width := 20.0
		if col.Type == "json" {
			width = 60
		}
		f.SetColWidth(sheetName, colName, colName, width)
	}

	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Product Import Instructions")
	f.SetCellValue("Instructions", "A3", "Rows are matched on sku. Existing products are updated, new SKUs are created.")
	f.SetCellValue("Instructions", "A4", "attributes_json and variations_json hold JSON lists; invalid JSON fails the whole row.")
	f.SetCellValue("Instructions", "A5", "A variation without attributes, or with an incomplete attribute pair, is skipped.")

	f.SetCellValue("Instructions", "A7", "Column")
	f.SetCellValue("Instructions", "B7", "Description")
	f.SetCellValue("Instructions", "C7", "Required")
	f.SetCellValue("Instructions", "D7", "Type")
	f.SetCellValue("Instructions", "E7", "Example")

	for i, col := range template.Columns {
		row := i + 8
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		required := "Optional"
		if col.Required {
			required = "Required"
		}
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}

	f.SetColWidth("Instructions", "A", "A", 25)
	f.SetColWidth("Instructions", "B", "B", 70)
	f.SetColWidth("Instructions", "C", "D", 15)
	f.SetColWidth("Instructions", "E", "E", 60)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	if err := f.Write(c.Writer); err != nil {
		h.logger.WithError(err).Warn("Failed to write XLSX template")
	}
}
