package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/exam-engine/internal/repositories"
	"github.com/eduforge/exam-engine/internal/services"
	"github.com/eduforge/exam-engine/internal/utils"
)

type MatrixHandler struct {
	BaseHandler
	service services.MatrixService
}

func NewMatrixHandler(service services.MatrixService, logger utils.Logger) *MatrixHandler {
	return &MatrixHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// CreateMatrix creates a new exam matrix
// @Summary Create an exam matrix
// @Description Create a reusable blueprint describing how exams are assembled
// @Tags matrices
// @Accept json
// @Produce json
// @Param request body services.CreateMatrixRequest true "Matrix creation request"
// @Success 201 {object} services.MatrixResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Referenced bank not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices [post]
func (h *MatrixHandler) CreateMatrix(c *gin.Context) {
	var req services.CreateMatrixRequest
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

// GetMatrix retrieves a matrix by ID
// @Summary Get a matrix by ID
// @Description Retrieve a matrix with its items
// @Tags matrices
// @Accept json
// @Produce json
// @Param id path int true "Matrix ID"
// @Success 200 {object} services.MatrixResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices/{id} [get]
func (h *MatrixHandler) GetMatrix(c *gin.Context) {
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

// UpdateMatrix updates a matrix
// @Summary Update a matrix
// @Description Update a matrix's name, totals or replace its items
// @Tags matrices
// @Accept json
// @Produce json
// @Param id path int true "Matrix ID"
// @Param request body services.UpdateMatrixRequest true "Matrix update request"
// @Success 200 {object} services.MatrixResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 422 {object} ErrorResponse "Validation failed"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices/{id} [put]
func (h *MatrixHandler) UpdateMatrix(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	var req services.UpdateMatrixRequest
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

// DeleteMatrix deletes a matrix
// @Summary Delete a matrix
// @Description Delete a matrix that no exam references
// @Tags matrices
// @Accept json
// @Produce json
// @Param id path int true "Matrix ID"
// @Success 204 "No content"
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 403 {object} ErrorResponse "Forbidden - not the owner"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 409 {object} ErrorResponse "Conflict - matrix is referenced by exams"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices/{id} [delete]
func (h *MatrixHandler) DeleteMatrix(c *gin.Context) {
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

// ListMatrices lists matrices with optional filtering
// @Summary List matrices
// @Description Get a paginated list of exam matrices
// @Tags matrices
// @Accept json
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param size query int false "Page size (default: 10, max: 100)"
// @Param q query string false "Search query (matrix name)"
// @Param mine query bool false "Only matrices created by the caller"
// @Success 200 {object} services.MatrixListResponse
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices [get]
func (h *MatrixHandler) ListMatrices(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	filters := h.parseMatrixFilters(c, userID)

	response, err := h.service.List(c.Request.Context(), filters, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

// ValidateMatrix checks a matrix against the current question supply
// @Summary Validate a matrix
// @Description Report whether the matrix can currently be assembled, with findings
// @Tags matrices
// @Accept json
// @Produce json
// @Param id path int true "Matrix ID"
// @Success 200 {object} services.MatrixValidationResult
// @Failure 400 {object} ErrorResponse "Bad request"
// @Failure 401 {object} ErrorResponse "Unauthorized"
// @Failure 404 {object} ErrorResponse "Not found"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /matrices/{id}/validate [post]
func (h *MatrixHandler) ValidateMatrix(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Validating matrix", "matrix_id", id)

	result, err := h.service.Validate(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ===== HELPER METHODS =====

func (h *MatrixHandler) parseMatrixFilters(c *gin.Context, userID string) repositories.MatrixFilters {
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

	filters := repositories.MatrixFilters{
		Query:  c.Query("q"),
		Limit:  size,
		Offset: (page - 1) * size,
	}

	if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
		filters.CreatedBy = &userID
	}

	return filters
}
