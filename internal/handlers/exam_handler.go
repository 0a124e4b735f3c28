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

type ExamHandler struct {
	BaseHandler
	service services.ExamService
}

func NewExamHandler(service services.ExamService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CheckAccessRequest carries the optional password for an access probe
type CheckAccessRequest struct {
	AccessPassword *string `json:"access_password"`
}

// AssembleExam assembles a new exam from a matrix
// @Summary Assemble an exam
// @Description Materialize an exam by sampling questions according to a matrix
// @Tags exams
// @Accept json
// @Produce json
// @Param request body services.AssembleExamRequest true "Exam assembly request"
// @Success 201 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the matrix owner"
// @Failure 404 {object} ErrorResponse "Matrix not found"
// @Failure 422 {object} ErrorResponse "Validation failed or insufficient supply"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/assemble [post]
func (h *ExamHandler) AssembleExam(c *gin.Context) {
	var req services.AssembleExamRequest
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

	h.LogRequest(c, "Assembling exam", "matrix_id", req.MatrixID)

	response, err := h.service.Assemble(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response)
}

// PreviewExam performs a dry-run assembly
// @Summary Preview an exam draw
// @Description Draw questions and assign points exactly like assembly without persisting anything
// @Tags exams
// @Accept json
// @Produce json
// @Param request body services.PreviewExamRequest true "Exam preview request"
// @Success 200 {object} services.ExamPreviewResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the matrix owner"
// @Failure 404 {object} ErrorResponse "Matrix not found"
// @Failure 422 {object} ErrorResponse "Validation failed or insufficient supply"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/preview [post]
func (h *ExamHandler) PreviewExam(c *gin.Context) {
	var req services.PreviewExamRequest
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

	response, err := h.service.Preview(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetExam retrieves an exam by ID
// @Summary Get an exam by ID
// @Description Retrieve an exam without its question snapshot
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
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

// GetExamWithQuestions retrieves an exam with its full question snapshot
// @Summary Get an exam with questions
// @Description Retrieve an exam including its question snapshot and answer keys (owner only)
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Success 200 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id}/questions [get]
func (h *ExamHandler) GetExamWithQuestions(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	response, err := h.service.GetByIDWithQuestions(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// UpdateExam updates an exam
// @Summary Update an exam
// @Description Update an exam's title, description, password, or duration while still a draft
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Param request body services.UpdateExamRequest true "Exam update request"
// @Success 200 {object} services.ExamResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateExamRequest
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

// DeleteExam deletes an exam
// @Summary Delete an exam
// @Description Delete an exam that has no attempts
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Success 204 "No content"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Conflict - exam has attempts"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
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

// ListExams lists exams with optional filtering
// @Summary List exams
// @Description Get a paginated list of exams
// @Tags exams
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (Draft, Active, Inactive)"
// @Param matrix_id query int false "Filter by source matrix"
// @Param q query string false "Search query (exam title)"
// @Param mine query bool false "Only exams created by the caller"
// @Param sort_by query string false "Sort field (created_at, title)"
// @Param sort_order query string false "Sort order (asc, desc)"
// @Success 200 {object} services.ExamListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseExamFilters(c, userID)

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// PublishExam activates an exam for taking
// @Summary Publish an exam
// @Description Transition an exam from Draft to Active so students can start attempts
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Invalid status transition"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id}/publish [post]
func (h *ExamHandler) PublishExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Publishing exam", "exam_id", id)

	if err := h.service.Publish(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam published"})
}

// DeactivateExam closes an exam for new attempts
// @Summary Deactivate an exam
// @Description Transition an exam from Active to Inactive
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Invalid status transition"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id}/deactivate [post]
func (h *ExamHandler) DeactivateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Deactivating exam", "exam_id", id)

	if err := h.service.Deactivate(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Exam deactivated"})
}

// CheckExamAccess verifies an exam is open and the password matches
// @Summary Check exam access
// @Description Probe whether the caller could start an attempt on this exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path int true "Exam ID"
// @Param request body CheckAccessRequest true "Access check request"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - wrong password"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Conflict - exam not active"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /exams/{id}/access [post]
func (h *ExamHandler) CheckExamAccess(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req CheckAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if _, ok := h.requireUserID(c); !ok {
		return
	}

	if _, err := h.service.CheckAccess(c.Request.Context(), id, req.AccessPassword); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Access granted"})
}

// ===== HELPER METHODS =====

func (h *ExamHandler) parseExamFilters(c *gin.Context, userID string) repositories.ExamFilters {
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

	filters := repositories.ExamFilters{
		Query:     c.Query("q"),
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.ExamStatus(statusStr)
		filters.Status = &status
	}
	if matrixIDStr := c.Query("matrix_id"); matrixIDStr != "" {
		if matrixID, err := strconv.ParseUint(matrixIDStr, 10, 32); err == nil {
			id := uint(matrixID)
			filters.MatrixID = &id
		}
	}
	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filters.CreatedBy = &userID
	}

	return filters
}
