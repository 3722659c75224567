package services

import (
	"errors"
	"fmt"

	apperrors "github.com/satprep/session-service/internal/errors"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Generic errors
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden - insufficient permissions")
	ErrValidationFailed = errors.New("validation failed")
	ErrInternalError    = errors.New("internal server error")
	ErrBadRequest       = errors.New("bad request")
	ErrConflict         = errors.New("resource conflict")

	// Session specific errors
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionAccessDenied  = errors.New("access denied to session")
	ErrSessionNotActive     = errors.New("session is not active")
	ErrSessionCompleted     = errors.New("session already completed")
	ErrSessionExpired       = errors.New("session time has expired")
	ErrSessionNotCompleted  = errors.New("session is not completed yet")
	ErrActiveSessionExists  = errors.New("an active session of this kind already exists")
	ErrInvalidAnswerPayload = errors.New("answer payload is empty or blank")

	// Question specific errors
	ErrQuestionNotFound     = errors.New("question not found")
	ErrQuestionNotInSession = errors.New("question is not part of the session")
	ErrInsufficientBank     = errors.New("question bank cannot satisfy the requested set")

	// Module specific errors
	ErrModuleNotFound         = errors.New("module not found")
	ErrModuleNotActive        = errors.New("module is not in progress")
	ErrModuleAlreadyCompleted = errors.New("module already completed")
	ErrModuleOutOfOrder       = errors.New("module cannot be started out of order")

	// Topic/taxonomy errors
	ErrTopicNotFound    = errors.New("topic not found")
	ErrCategoryNotFound = errors.New("category not found")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID string `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: message,
		Context: context,
	}
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrModuleNotFound) ||
		errors.Is(err, ErrTopicNotFound) ||
		errors.Is(err, ErrCategoryNotFound)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	if errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrSessionAccessDenied) {
		return true
	}
	var pe *PermissionError
	return errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrInvalidAnswerPayload) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a resource conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrSessionCompleted) ||
		errors.Is(err, ErrActiveSessionExists) ||
		errors.Is(err, ErrModuleAlreadyCompleted) ||
		errors.Is(err, ErrModuleOutOfOrder)
}
