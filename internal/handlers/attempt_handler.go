package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/exam-engine/internal/models"
	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/services"
	"github.com/eduforge/exam-engine/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	service services.AttemptService
}

func NewAttemptHandler(service services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// StartAttempt starts or resumes an exam attempt
// @Summary Start exam attempt
// @Description Start a new attempt, or resume the caller's attempt already in progress
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body services.StartAttemptRequest true "Start attempt request"
// @Success 201 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - wrong password"
// @Failure 404 {object} ErrorResponse "Exam not found"
// @Failure 409 {object} ErrorResponse "Conflict - exam not active"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	h.LogRequest(c, "Starting exam attempt")

	var req services.StartAttemptRequest
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

	attempt, err := h.service.Start(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, attempt)
}

// SaveAnswer saves or replaces an answer on an attempt in progress
// @Summary Save an answer
// @Description Upsert the caller's answer to one question of an attempt in progress
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Param request body services.SaveAnswerRequest true "Answer payload"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the attempt owner"
// @Failure 404 {object} ErrorResponse "Attempt or question not found"
// @Failure 409 {object} ErrorResponse "Conflict - attempt already submitted"
// @Failure 410 {object} ErrorResponse "Gone - attempt time expired"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.SaveAnswerRequest
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

	if err := h.service.SaveAnswer(c.Request.Context(), id, &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer saved"})
}

// SubmitAttempt submits and grades an attempt
// @Summary Submit exam attempt
// @Description Finalize the caller's attempt and return the graded result
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.AttemptResult
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the attempt owner"
// @Failure 404 {object} ErrorResponse "Attempt not found"
// @Failure 409 {object} ErrorResponse "Conflict - attempt already submitted"
// @Failure 410 {object} ErrorResponse "Gone - attempt time expired"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "attempt_id", id)

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.service.Submit(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get an attempt by ID
// @Description Retrieve an attempt; in-progress attempts include the sanitized question set
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not visible to the caller"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.service.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// GetAttemptResult retrieves the graded result of a terminal attempt
// @Summary Get attempt result
// @Description Retrieve the per-question breakdown of a graded or expired attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path int true "Attempt ID"
// @Success 200 {object} services.AttemptResult
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not visible to the caller"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Conflict - attempt still in progress"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/{id}/result [get]
func (h *AttemptHandler) GetAttemptResult(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	result, err := h.service.GetResult(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListAttempts lists attempts with optional filtering
// @Summary List attempts
// @Description Get a paginated list of attempts; students only see their own
// @Tags attempts
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (in_progress, graded, expired)"
// @Param exam_id query int false "Filter by exam"
// @Param student_id query string false "Filter by student (teachers and admins)"
// @Param date_from query string false "Started at or after (RFC3339)"
// @Param date_to query string false "Started at or before (RFC3339)"
// @Param sort_by query string false "Sort field (created_at, started_at)"
// @Param sort_order query string false "Sort order (asc, desc)"
// @Success 200 {object} services.AttemptListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts [get]
func (h *AttemptHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// GetMyAttempts lists the caller's own attempts
// @Summary List my attempts
// @Description Get a paginated list of the caller's attempts
// @Tags attempts
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param status query string false "Filter by status (in_progress, graded, expired)"
// @Param exam_id query int false "Filter by exam"
// @Success 200 {object} services.AttemptListResponse
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /attempts/my [get]
func (h *AttemptHandler) GetMyAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseAttemptFilters(c)

	response, err := h.service.GetByStudent(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *AttemptHandler) parseAttemptFilters(c *gin.Context) repositories.AttemptFilters {
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

	filters := repositories.AttemptFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.AttemptStatus(statusStr)
		filters.Status = &status
	}
	if examIDStr := c.Query("exam_id"); examIDStr != "" {
		if examID, err := strconv.ParseUint(examIDStr, 10, 32); err == nil {
			id := uint(examID)
			filters.ExamID = &id
		}
	}
	if studentID := c.Query("student_id"); studentID != "" {
		filters.StudentID = &studentID
	}
	if fromStr := c.Query("date_from"); fromStr != "" {
		if from, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filters.DateFrom = &from
		}
	}
	if toStr := c.Query("date_to"); toStr != "" {
		if to, err := time.Parse(time.RFC3339, toStr); err == nil {
			filters.DateTo = &to
		}
	}

	return filters
}
