package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/eduforge/exam-engine/internal/services"
	"github.com/eduforge/exam-engine/internal/utils"
)

// BaseHandler provides shared helpers for all HTTP handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// ErrorResponse is the error payload returned by all endpoints
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse is the generic success payload
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// LogRequest logs an incoming request with the request-scoped fields
func (h *BaseHandler) LogRequest(c *gin.Context, msg string, keysAndValues ...interface{}) {
	fields := append([]interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}, keysAndValues...)
	h.logger.Info(msg, fields...)
}

// LogError logs a handler error
func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, keysAndValues ...interface{}) {
	fields := append([]interface{}{
		"error", err,
		"path", c.Request.URL.Path,
	}, keysAndValues...)
	h.logger.Error(msg, fields...)
}

// parseIDParam parses a numeric path parameter, writing a 400 response
// and returning 0 when it is missing or malformed
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid " + name + " parameter",
		})
		return 0
	}
	return uint(id)
}

// requireUserID pulls the authenticated user id from the context
func (h *BaseHandler) requireUserID(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

// handleServiceError maps service errors to HTTP status codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs services.ValidationErrors
	var permissionErr *services.PermissionError
	var businessErr *services.BusinessRuleError
	var supplyErr *services.InsufficientSupplyError

	switch {
	case errors.As(err, &validationErrs):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrs,
		})

	case errors.As(err, &supplyErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: "Insufficient question supply",
			Details: gin.H{
				"item_index": supplyErr.ItemIndex,
				"requested":  supplyErr.Requested,
				"available":  supplyErr.Available,
			},
		})

	case errors.As(err, &businessErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Message: businessErr.Message,
			Details: businessErr.Details,
		})

	case errors.As(err, &permissionErr):
		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: "Insufficient permissions",
			Details: permissionErr.Reason,
		})

	case errors.Is(err, services.ErrBankNotFound),
		errors.Is(err, services.ErrQuestionNotFound),
		errors.Is(err, services.ErrMatrixNotFound),
		errors.Is(err, services.ErrExamNotFound),
		errors.Is(err, services.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAttemptTimeExpired):
		c.JSON(http.StatusGone, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrExamNotActive),
		errors.Is(err, services.ErrAttemptNotActive),
		errors.Is(err, services.ErrAttemptSubmitted),
		errors.Is(err, services.ErrAttemptConflict),
		errors.Is(err, services.ErrResultNotReady),
		errors.Is(err, services.ErrBankHasQuestions),
		errors.Is(err, services.ErrMatrixInUse),
		errors.Is(err, services.ErrExamHasAttempts):
		c.JSON(http.StatusConflict, ErrorResponse{Message: err.Error()})

	default:
		h.LogError(c, err, "Unhandled service error")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
