package services

import (
	"errors"
	"fmt"

	"github.com/eduforge/exam-engine/internal/validator"
)

// Sentinel errors returned by services. Handlers map these to HTTP
// status codes.
var (
	ErrBankNotFound     = errors.New("question bank not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrMatrixNotFound   = errors.New("exam matrix not found")
	ErrExamNotFound     = errors.New("exam not found")
	ErrAttemptNotFound  = errors.New("attempt not found")

	ErrExamNotActive      = errors.New("exam is not active")
	ErrInvalidPassword    = errors.New("invalid access password")
	ErrAttemptNotActive   = errors.New("attempt is not in progress")
	ErrAttemptSubmitted   = errors.New("attempt has already been submitted")
	ErrAttemptTimeExpired = errors.New("attempt time has expired")
	ErrAttemptConflict    = errors.New("attempt was modified concurrently")
	ErrResultNotReady     = errors.New("attempt result is not available yet")

	ErrBankHasQuestions  = errors.New("question bank still has active questions")
	ErrMatrixInUse       = errors.New("matrix is referenced by existing exams")
	ErrExamHasAttempts   = errors.New("exam has existing attempts")
	ErrQuestionInUse     = errors.New("question is used by existing exams")
	ErrInsufficientSupply = errors.New("insufficient question supply")

	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient permissions")
)

// InsufficientSupplyError reports a matrix item whose slice of the
// question supply cannot cover the requested draw
type InsufficientSupplyError struct {
	ItemIndex int
	Requested int
	Available int
}

func (e *InsufficientSupplyError) Error() string {
	return fmt.Sprintf("insufficient question supply for item %d: requested %d, available %d",
		e.ItemIndex, e.Requested, e.Available)
}

func (e *InsufficientSupplyError) Unwrap() error {
	return ErrInsufficientSupply
}

// ValidationErrors re-exports the validator error collection so callers
// can errors.As against the services package alone
type ValidationErrors = validator.ValidationErrors

// NewValidationError builds a single-field validation failure
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{
		Field:   field,
		Message: message,
		Value:   value,
		Rule:    "business_logic",
	}}
}

// PermissionError describes a denied operation on a resource
type PermissionError struct {
	UserID     string
	ResourceID interface{}
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %s cannot %s %s %v: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

// NewPermissionError creates a permission error for a denied action
func NewPermissionError(userID string, resourceID interface{}, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError describes a request that is well formed but violates
// a domain rule
type BusinessRuleError struct {
	Rule    string
	Message string
	Details map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("%s: %s", e.Rule, e.Message)
}

// NewBusinessRuleError creates a business rule violation error
func NewBusinessRuleError(rule, message string, details map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Details: details,
	}
}
