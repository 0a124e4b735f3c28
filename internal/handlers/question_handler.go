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

type QuestionHandler struct {
	BaseHandler
	service services.QuestionService
}

func NewQuestionHandler(service services.QuestionService, logger utils.Logger) *QuestionHandler {
	return &QuestionHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// BatchCreateRequest wraps a list of question creation requests
type BatchCreateRequest struct {
	Questions []*services.CreateQuestionRequest `json:"questions" binding:"required"`
}

// BatchCreateResponse reports the outcome of a batch creation
type BatchCreateResponse struct {
	Created []*services.QuestionResponse `json:"created"`
	Errors  []string                     `json:"errors,omitempty"`
}

// CreateQuestion creates a new question
// @Summary Create a new question
// @Description Create a question with its answer key in a bank owned by the caller
// @Tags questions
// @Accept json
// @Produce json
// @Param request body services.CreateQuestionRequest true "Question creation request"
// @Success 201 {object} services.QuestionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the bank owner"
// @Failure 404 {object} ErrorResponse "Bank not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions [post]
func (h *QuestionHandler) CreateQuestion(c *gin.Context) {
	var req services.CreateQuestionRequest
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

// BatchCreateQuestions creates multiple questions in one request
// @Summary Batch create questions
// @Description Create several questions at once, reporting per-question failures
// @Tags questions
// @Accept json
// @Produce json
// @Param request body BatchCreateRequest true "Batch creation request"
// @Success 201 {object} BatchCreateResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions/batch [post]
func (h *QuestionHandler) BatchCreateQuestions(c *gin.Context) {
	var req BatchCreateRequest
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

	created, errs := h.service.CreateBatch(c.Request.Context(), req.Questions, userID)

	response := BatchCreateResponse{Created: created}
	for _, err := range errs {
		response.Errors = append(response.Errors, err.Error())
	}

	status := http.StatusCreated
	if len(created) == 0 && len(errs) > 0 {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, response)
}

// GetQuestion retrieves a question by ID
// @Summary Get a question by ID
// @Description Retrieve a question including its answer key (authoring view)
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Success 200 {object} services.QuestionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions/{id} [get]
func (h *QuestionHandler) GetQuestion(c *gin.Context) {
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

// UpdateQuestion updates a question
// @Summary Update a question
// @Description Update a question's text, answer key, domain, difficulty or active flag
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Param request body services.UpdateQuestionRequest true "Question update request"
// @Success 200 {object} services.QuestionResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions/{id} [put]
func (h *QuestionHandler) UpdateQuestion(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateQuestionRequest
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

// DeleteQuestion deletes a question
// @Summary Delete a question
// @Description Delete a question owned by the caller
// @Tags questions
// @Accept json
// @Produce json
// @Param id path int true "Question ID"
// @Success 204 "No content"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions/{id} [delete]
func (h *QuestionHandler) DeleteQuestion(c *gin.Context) {
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

// ListQuestions lists questions with optional filtering
// @Summary List questions
// @Description Get a paginated list of questions
// @Tags questions
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param bank_id query int false "Filter by question bank"
// @Param type query string false "Filter by type (multiple_choice, fill_blank)"
// @Param difficulty query string false "Filter by difficulty (easy, medium, hard)"
// @Param domain query string false "Filter by domain tag"
// @Param is_active query bool false "Filter by active flag"
// @Param sort_by query string false "Sort field (created_at, difficulty)"
// @Param sort_order query string false "Sort order (asc, desc)"
// @Success 200 {object} services.QuestionListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions [get]
func (h *QuestionHandler) ListQuestions(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseQuestionFilters(c)

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// CountSupply probes the question supply for one slice
// @Summary Count eligible questions
// @Description Count how many active questions a bank/domain/difficulty slice currently supplies
// @Tags questions
// @Accept json
// @Produce json
// @Param bank_id query int true "Question bank"
// @Param domain query string false "Domain tag"
// @Param difficulty query string false "Difficulty (easy, medium, hard)"
// @Success 200 {object} services.SupplyCountResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Bank not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /questions/supply [get]
func (h *QuestionHandler) CountSupply(c *gin.Context) {
	if _, ok := h.requireUserID(c); !ok {
		return
	}

	bankID, err := strconv.ParseUint(c.Query("bank_id"), 10, 32)
	if err != nil || bankID == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid or missing bank_id"})
		return
	}

	criteria := repositories.SupplyCriteria{BankID: uint(bankID)}
	if domain := c.Query("domain"); domain != "" {
		criteria.Domain = &domain
	}
	if diffStr := c.Query("difficulty"); diffStr != "" {
		difficulty := models.DifficultyLevel(diffStr)
		criteria.Difficulty = &difficulty
	}

	response, err := h.service.CountSupply(c.Request.Context(), criteria)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ===== HELPER METHODS =====

func (h *QuestionHandler) parseQuestionFilters(c *gin.Context) repositories.QuestionFilters {
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

	filters := repositories.QuestionFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	if bankIDStr := c.Query("bank_id"); bankIDStr != "" {
		if bankID, err := strconv.ParseUint(bankIDStr, 10, 32); err == nil {
			id := uint(bankID)
			filters.BankID = &id
		}
	}
	if typeStr := c.Query("type"); typeStr != "" {
		qType := models.QuestionType(typeStr)
		filters.Type = &qType
	}
	if diffStr := c.Query("difficulty"); diffStr != "" {
		difficulty := models.DifficultyLevel(diffStr)
		filters.Difficulty = &difficulty
	}
	if domain := c.Query("domain"); domain != "" {
		filters.Domain = &domain
	}
	if activeStr := c.Query("is_active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filters.IsActive = &active
		}
	}

	return filters
}
