package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"evalgo.org/sitesync/internal/declfile"
	"evalgo.org/sitesync/models"
)

// APIError is the JSON body of every failed request.
type APIError struct {
	Code     int               `json:"code"`
	Message  string            `json:"message"`
	Details  string            `json:"details,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	Resource string            `json:"resource,omitempty"`
	Name     string            `json:"name,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

// NewAPIError creates an error with an arbitrary status code.
func NewAPIError(code int, message string, details string) *APIError {
	return &APIError{Code: code, Message: message, Details: details}
}

func BadRequestError(message, details string) *APIError {
	return NewAPIError(http.StatusBadRequest, message, details)
}

// NotFoundError names the kind of record and the name it was looked up by.
func NotFoundError(resource, name string) *APIError {
	return &APIError{
		Code:     http.StatusNotFound,
		Message:  resource + " not found",
		Resource: resource,
		Name:     name,
	}
}

// ValidationError reports declaration fields that failed their rules,
// keyed by field path.
func ValidationError(message string, fields map[string]string) *APIError {
	return &APIError{
		Code:    http.StatusUnprocessableEntity,
		Message: message,
		Fields:  fields,
	}
}

func InternalError(message, details string) *APIError {
	return NewAPIError(http.StatusInternalServerError, message, details)
}

func ConflictError(message, details string) *APIError {
	return NewAPIError(http.StatusConflict, message, details)
}

func UnprocessableError(message, details string) *APIError {
	return NewAPIError(http.StatusUnprocessableEntity, message, details)
}

// applyError maps an apply failure to the status a client can act on:
// declaration mistakes are 422, hostnames owned by another site are 409,
// everything else is a server error.
func applyError(message string, err error) *APIError {
	var (
		invalid  *models.InvalidDeclarationError
		notFound *models.ReferenceNotFoundError
		conflict *models.ModificationConflictError
	)
	switch {
	case errors.As(err, &conflict):
		return ConflictError(message, err.Error())
	case errors.As(err, &invalid), errors.As(err, &notFound), errors.Is(err, declfile.ErrUnsupportedFormat):
		return UnprocessableError(message, err.Error())
	}
	return InternalError(message, err.Error())
}

// toAPIError converts any handler error into the response body.
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return &APIError{
			Code:    he.Code,
			Message: statusMessage(he.Code),
			Details: fmt.Sprint(he.Message),
		}
	}
	return InternalError("Internal server error", err.Error())
}

// HTTPErrorHandler writes handler errors as APIError bodies. Details of
// server errors are only shown in debug mode.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	apiErr := toAPIError(err)
	if apiErr.Code >= http.StatusInternalServerError && !c.Echo().Debug {
		hidden := *apiErr
		hidden.Details = "An internal error occurred. Please try again later."
		apiErr = &hidden
	}

	if err := c.JSON(apiErr.Code, apiErr); err != nil {
		c.Logger().Error(err)
	}
}

var statusMessages = map[int]string{
	http.StatusBadRequest:            "Bad request",
	http.StatusUnauthorized:          "Unauthorized",
	http.StatusNotFound:              "Resource not found",
	http.StatusMethodNotAllowed:      "Method not allowed",
	http.StatusConflict:              "Conflict",
	http.StatusRequestEntityTooLarge: "Document too large",
	http.StatusUnsupportedMediaType:  "Unsupported media type",
	http.StatusUnprocessableEntity:   "Unprocessable entity",
	http.StatusTooManyRequests:       "Too many requests",
	http.StatusInternalServerError:   "Internal server error",
	http.StatusServiceUnavailable:    "Service unavailable",
}

// statusMessage returns the short message used for echo's own errors.
func statusMessage(code int) string {
	if msg, ok := statusMessages[code]; ok {
		return msg
	}
	return http.StatusText(code)
}
