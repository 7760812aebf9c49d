package section

import (
	"errors"
	"fmt"
	"strings"
)

// FieldError describes one problem with one input field
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult contains the result of validation
type ValidationResult struct {
	IsValid bool         `json:"is_valid"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// NewValidationResult returns an empty, valid result
func NewValidationResult() *ValidationResult {
	return &ValidationResult{IsValid: true}
}

// AddError records a problem with one field and marks the result invalid
func (r *ValidationResult) AddError(field, code, message string) {
	r.IsValid = false
	r.Errors = append(r.Errors, FieldError{Field: field, Code: code, Message: message})
}

// Err returns nil for a valid result and a *ValidationError otherwise
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError is returned for malformed section input or a malformed
// upstream report. Nothing is rendered when it is returned.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// RenderError is a backend rendering failure, including empty output
type RenderError struct {
	Backend string
	Op      string
	Err     error
}

func (e *RenderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("render %s: %s failed", e.Backend, e.Op)
	}
	return fmt.Sprintf("render %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ResourceError reports an external resource that could not be loaded.
// Essential resources (fonts, rendering engines) abort the render; the rest
// (banner images) are replaced locally.
type ResourceError struct {
	Resource  string
	Essential bool
	Err       error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s unavailable: %v", e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// UpstreamTimeout reports an LLM or image generation call that exceeded its
// bound. Callers may retry.
type UpstreamTimeout struct {
	Service  string
	Attempts int
	Err      error
}

func (e *UpstreamTimeout) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("%s timed out after %d attempts: %v", e.Service, e.Attempts, e.Err)
	}
	return fmt.Sprintf("%s timed out: %v", e.Service, e.Err)
}

func (e *UpstreamTimeout) Unwrap() error { return e.Err }

// Retryable is always true for upstream timeouts
func (e *UpstreamTimeout) Retryable() bool { return true }

// IsValidation reports whether err wraps a *ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEssentialResource reports whether err wraps an essential *ResourceError
func IsEssentialResource(err error) bool {
	var re *ResourceError
	return errors.As(err, &re) && re.Essential
}

// IsUpstreamTimeout reports whether err wraps an *UpstreamTimeout
func IsUpstreamTimeout(err error) bool {
	var ut *UpstreamTimeout
	return errors.As(err, &ut)
}
