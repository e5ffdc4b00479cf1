package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

func asShedError(err error) (*ShedError, bool) {
	var shedErr *ShedError
	if err != nil && stderrors.As(err, &shedErr) {
		return shedErr, true
	}
	return nil, false
}

// categoryLabel turns PLAN into Plan
func categoryLabel(c ErrorCategory) string {
	s := strings.ToLower(string(c))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DisplayErrorSummary provides a one-line summary of the error for logs
func DisplayErrorSummary(err error) string {
	if shedErr, ok := asShedError(err); ok {
		return fmt.Sprintf("%s-%s: %s", shedErr.Category, shedErr.Code, shedErr.Message)
	}

	errStr := err.Error()
	if len(errStr) > 100 {
		return errStr[:97] + "..."
	}
	return errStr
}

// FormatForCLI formats an error for command-line display
func FormatForCLI(err error) string {
	shedErr, ok := asShedError(err)
	if !ok {
		return fmt.Sprintf("\nError: %v\n", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\n%s Error [%s-%s]\n", categoryLabel(shedErr.Category), shedErr.Category, shedErr.Code))
	sb.WriteString(fmt.Sprintf("  %s\n", shedErr.Message))

	if shedErr.Operation != "" {
		sb.WriteString(fmt.Sprintf("\nFailed Operation: %s\n", shedErr.Operation))
	}

	if len(shedErr.Context) > 0 {
		sb.WriteString("\nDetails:\n")
		for _, key := range shedErr.contextKeys() {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", key, shedErr.Context[key]))
		}
	}

	if len(shedErr.Troubleshooting) > 0 {
		sb.WriteString("\nHow to resolve:\n")
		for i, step := range shedErr.Troubleshooting {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	if shedErr.OriginalError != nil {
		sb.WriteString(fmt.Sprintf("\nTechnical details: %v\n", shedErr.OriginalError))
	}

	return sb.String()
}

// IsUserError reports whether err stems from user input or configuration
func IsUserError(err error) bool {
	if shedErr, ok := asShedError(err); ok {
		switch shedErr.Category {
		case ErrorCategoryValidation, ErrorCategoryConfiguration, ErrorCategoryPlan:
			return true
		}
	}
	return false
}

// GetErrorCode extracts the error code for reporting
func GetErrorCode(err error) string {
	if shedErr, ok := asShedError(err); ok {
		return fmt.Sprintf("%s-%s", shedErr.Category, shedErr.Code)
	}
	return "UNKNOWN"
}
