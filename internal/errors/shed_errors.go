package errors

import (
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory represents the category of error
type ErrorCategory string

const (
	// ErrorCategoryConfiguration represents configuration file, env and flag errors
	ErrorCategoryConfiguration ErrorCategory = "CONFIGURATION"
	// ErrorCategoryValidation represents invalid user input
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	// ErrorCategoryPlan represents task graph loading and validation errors
	ErrorCategoryPlan ErrorCategory = "PLAN"
	// ErrorCategoryCapacity represents exhausted scheduler pools
	ErrorCategoryCapacity ErrorCategory = "CAPACITY"
	// ErrorCategoryScheduler represents broken scheduler usage contracts
	ErrorCategoryScheduler ErrorCategory = "SCHEDULER"
	// ErrorCategoryExecution represents failures while running frames
	ErrorCategoryExecution ErrorCategory = "EXECUTION"
)

// ShedError is a structured error with context and troubleshooting steps
type ShedError struct {
	Category        ErrorCategory
	Code            string
	Message         string
	Operation       string
	Context         map[string]interface{}
	Troubleshooting []string
	OriginalError   error
}

func (e *ShedError) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s-%s: %s", e.Category, e.Code, e.Message))

	if e.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nOperation: %s", e.Operation))
	}

	if len(e.Context) > 0 {
		sb.WriteString("\nContext:")
		for _, key := range e.contextKeys() {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", key, e.Context[key]))
		}
	}

	if len(e.Troubleshooting) > 0 {
		sb.WriteString("\nTroubleshooting:")
		for i, step := range e.Troubleshooting {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}

	if e.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nUnderlying error: %v", e.OriginalError))
	}

	return sb.String()
}

func (e *ShedError) contextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unwrap returns the original error for error chain compatibility
func (e *ShedError) Unwrap() error {
	return e.OriginalError
}

// NewShedError creates a new error with the specified parameters
func NewShedError(category ErrorCategory, code, message, operation string) *ShedError {
	return &ShedError{
		Category:        category,
		Code:            code,
		Message:         message,
		Operation:       operation,
		Context:         make(map[string]interface{}),
		Troubleshooting: []string{},
	}
}

func (e *ShedError) WithContext(key string, value interface{}) *ShedError {
	e.Context[key] = value
	return e
}

func (e *ShedError) WithTroubleshooting(steps ...string) *ShedError {
	e.Troubleshooting = append(e.Troubleshooting, steps...)
	return e
}

func (e *ShedError) WithOriginalError(err error) *ShedError {
	e.OriginalError = err
	return e
}

func NewConfigurationError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryConfiguration, code, message, operation)
}

func NewValidationError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryValidation, code, message, operation)
}

func NewPlanError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryPlan, code, message, operation)
}

func NewCapacityError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryCapacity, code, message, operation)
}

func NewSchedulerError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryScheduler, code, message, operation)
}

func NewExecutionError(code, message, operation string) *ShedError {
	return NewShedError(ErrorCategoryExecution, code, message, operation)
}
