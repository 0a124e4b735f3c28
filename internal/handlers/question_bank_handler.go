package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/services"
	"github.com/eduforge/exam-engine/internal/utils"
)

type QuestionBankHandler struct {
	BaseHandler
	service      services.QuestionBankService
	importExport services.ImportExportService
}

func NewQuestionBankHandler(service services.QuestionBankService, importExport services.ImportExportService, logger utils.Logger) *QuestionBankHandler {
	return &QuestionBankHandler{
		BaseHandler:  NewBaseHandler(logger),
		service:      service,
		importExport: importExport,
	}
}

// ===== CORE CRUD ENDPOINTS =====

// CreateQuestionBank creates a new question bank
// @Summary Create a new question bank
// @Description Create a new question bank with the provided details
// @Tags question-banks
// @Accept json
// @Produce json
// @Param request body services.CreateQuestionBankRequest true "Question Bank creation request"
// @Success 201 {object} services.QuestionBankResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks [post]
func (h *QuestionBankHandler) CreateQuestionBank(c *gin.Context) {
	var req services.CreateQuestionBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// GetQuestionBank retrieves a question bank by ID
// @Summary Get a question bank by ID
// @Description Retrieve a question bank with its basic information
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question Bank ID"
// @Success 200 {object} services.QuestionBankResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks/{id} [get]
func (h *QuestionBankHandler) GetQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateQuestionBank updates a question bank
// @Summary Update a question bank
// @Description Update a question bank's name, description, grade level or status
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question Bank ID"
// @Param request body services.UpdateQuestionBankRequest true "Question Bank update request"
// @Success 200 {object} services.QuestionBankResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks/{id} [put]
func (h *QuestionBankHandler) UpdateQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateQuestionBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.Update(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// DeleteQuestionBank deletes a question bank
// @Summary Delete a question bank
// @Description Delete an empty question bank owned by the caller
// @Tags question-banks
// @Accept json
// @Produce json
// @Param id path int true "Question Bank ID"
// @Success 204 "No content"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Conflict - bank still has questions"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks/{id} [delete]
func (h *QuestionBankHandler) DeleteQuestionBank(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListQuestionBanks lists question banks with optional filtering
// @Summary List question banks
// @Description Get a paginated list of question banks
// @Tags question-banks
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (draft, active, archived)"
// @Param q query string false "Search query (bank name)"
// @Param mine query bool false "Only banks created by the caller"
// @Success 200 {object} services.QuestionBankListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks [get]
func (h *QuestionBankHandler) ListQuestionBanks(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseBankFilters(c, userID)

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== IMPORT / EXPORT ENDPOINTS =====

// ImportQuestions imports questions into a bank from an Excel file
// @Summary Import questions from Excel
// @Description Upload an .xlsx file and create its questions in the bank
// @Tags question-banks
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Question Bank ID"
// @Param file formData file true "Excel file with a Questions sheet"
// @Success 200 {object} services.ImportResult
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks/{id}/import [post]
func (h *QuestionBankHandler) ImportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Failed to open uploaded file",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "bank_id", id, "filename", fileHeader.Filename)

	result, err := h.importExport.ImportQuestions(c.Request.Context(), id, file, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ExportQuestions exports a bank's questions as an Excel file
// @Summary Export questions to Excel
// @Description Download all questions of a bank as an .xlsx file
// @Tags question-banks
// @Accept json
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Question Bank ID"
// @Success 200 {file} binary "Excel file"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /question-banks/{id}/export [get]
func (h *QuestionBankHandler) ExportQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	data, err := h.importExport.ExportQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := "questions-" + strconv.FormatUint(uint64(id), 10) + ".xlsx"
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// ===== HELPER METHODS =====

func (h *QuestionBankHandler) parseBankFilters(c *gin.Context, userID string) repositories.BankFilters {
	page := 1
	size := 10

	if pageStr := c.Query("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			page = p
		}
	}
	if sizeStr := c.Query("size"); sizeStr != "" {
		if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
			size = s
		}
	}

	filters := repositories.BankFilters{
		Query:  c.Query("q"),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.BankStatus(statusStr)
		filters.Status = &status
	}

	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filters.CreatedBy = &userID
	}

	return filters
}
