// Package validation checks declaration documents before they are turned
// into a site model.
//
// Struct constraints are declared with go-playground/validator tags on the
// document types. Failures are reported field by field, using the names the
// author wrote in the declaration file rather than Go field names.
//
// # Usage Example
//
//	v := validation.New()
//	result := v.Validate(doc)
//	if !result.Valid {
//	    for _, err := range result.Errors {
//	        fmt.Printf("%s: %s\n", err.Field, err.Message)
//	    }
//	}
package validation

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates declaration documents.
type Validator struct {
	structValidator *validator.Validate
}

// ValidationError represents a single validation error with field-level details.
type ValidationError struct {
	// Field is the path of the field that failed, e.g. sites[0].pages[1].path
	Field string `json:"field"`

	// Message describes why the validation failed
	Message string `json:"message"`

	// Value is the invalid value that caused the error (optional)
	Value interface{} `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult represents the complete result of a validation operation.
type ValidationResult struct {
	// Valid is true if validation passed, false otherwise
	Valid bool `json:"valid"`

	// Errors contains all validation errors found (empty if Valid is true)
	Errors []ValidationError `json:"errors,omitempty"`
}

// Add records an error and marks the result invalid.
func (r *ValidationResult) Add(field, message string, value interface{}) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Value: value})
	r.Valid = false
}

// Err joins the recorded errors, or returns nil when the result is valid.
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// New creates a Validator with the declaration-specific rules registered:
//   - sitepath: an absolute page path, optionally ending in the wildcard,
//     or one starting with a ${placeholder}
//   - hostname_or_placeholder: a host name, an IP address, or a value
//     containing a ${placeholder} to be expanded later
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields under the names used in declaration files
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	// Both registrations use static tag names and cannot fail
	_ = v.RegisterValidation("sitepath", validSitePath)
	_ = v.RegisterValidation("hostname_or_placeholder", validHostname)

	return &Validator{structValidator: v}
}

// Validate checks s against its validate tags.
func (v *Validator) Validate(s interface{}) *ValidationResult {
	result := &ValidationResult{Valid: true}

	err := v.structValidator.Struct(s)
	if err == nil {
		return result
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		result.Add("document", err.Error(), nil)
		return result
	}
	for _, fe := range verrs {
		result.Add(fieldPath(fe), message(fe), fe.Value())
	}
	return result
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.Join(strings.Fields(fe.Param()), ", "))
	case "sitepath":
		return "must be an absolute path starting with '/'"
	case "hostname_or_placeholder":
		return "must be a host name or IP address"
	case "min":
		return fmt.Sprintf("must contain at least %s entries", fe.Param())
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

func validSitePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if strings.HasPrefix(p, "${") {
		return true
	}
	if !strings.HasPrefix(p, "/") || strings.ContainsAny(p, " \t\n?#") {
		return false
	}
	// The wildcard is only allowed as the last character
	if i := strings.Index(p, "*"); i >= 0 && i != len(p)-1 {
		return false
	}
	return true
}

func validHostname(fl validator.FieldLevel) bool {
	h := fl.Field().String()
	if h == "" {
		return false
	}
	if strings.Contains(h, "${") {
		return true
	}
	if net.ParseIP(h) != nil {
		return true
	}
	if len(h) > 253 || strings.HasPrefix(h, ".") || strings.HasSuffix(h, ".") {
		return false
	}
	for _, label := range strings.Split(h, ".") {
		if label == "" || len(label) > 63 || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !(r == '-' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
				return false
			}
		}
	}
	return true
}
