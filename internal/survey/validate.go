package survey

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"ai-opportunities/report-portal/report-portal-backend/internal/reports/section"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report JSON names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate normalizes answers in place and reports every problem by JSON
// path as a *section.ValidationError
func Validate(a *Answers) error {
	if a == nil {
		result := section.NewValidationResult()
		result.AddError("answers", "required", "Survey answers are required")
		return result.Err()
	}
	a.normalize()

	err := validate.Struct(a)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate answers: %w", err)
	}

	result := section.NewValidationResult()
	for _, fe := range fieldErrs {
		result.AddError(fieldPath(fe.Namespace()), fe.Tag(), message(fe))
	}
	return result.Err()
}

func (a *Answers) normalize() {
	a.BusinessName = strings.TrimSpace(a.BusinessName)
	a.ContactName = strings.TrimSpace(a.ContactName)
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.Phone = strings.TrimSpace(a.Phone)
	a.Website = strings.TrimSpace(a.Website)
	a.Industry = strings.TrimSpace(a.Industry)
	a.CompanySize = CompanySize(strings.TrimSpace(string(a.CompanySize)))
	a.Budget = strings.TrimSpace(a.Budget)
	a.Timeline = strings.TrimSpace(a.Timeline)
	trimAll(a.Goals)
	trimAll(a.Challenges)
	trimAll(a.CurrentTools)
	for i := range a.Discovery {
		a.Discovery[i].Answer = strings.TrimSpace(a.Discovery[i].Answer)
	}
}

func trimAll(items []string) {
	for i, s := range items {
		items[i] = strings.TrimSpace(s)
	}
}

// fieldPath drops the root struct name: "Answers.goals[1]" -> "goals[1]"
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Must be a valid email address"
	case "url":
		return "Must be a valid URL"
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("Must have at least %s entries", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("Must have at most %s entries", fe.Param())
	}
	return fmt.Sprintf("Failed %s check", fe.Tag())
}
