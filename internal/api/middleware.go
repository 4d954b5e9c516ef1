package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
)

// declarationTypes are the request bodies /apply and /validate understand.
var declarationTypes = []string{
	"application/json",
	"application/yaml",
	"application/x-yaml",
	"text/yaml",
	"application/hcl",
	"text/hcl",
}

// ValidateContentType middleware ensures that requests with a body carry a
// declaration document format.
func ValidateContentType(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		method := c.Request().Method

		// Only check POST, PUT, PATCH requests
		if method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch {
			if c.Request().ContentLength == 0 {
				return next(c)
			}

			contentType := c.Request().Header.Get(echo.HeaderContentType)
			for _, allowed := range declarationTypes {
				if strings.HasPrefix(contentType, allowed) {
					return next(c)
				}
			}
			return BadRequestError(
				"Invalid Content-Type",
				"Content-Type must be JSON, YAML or HCL. Got: "+contentType,
			)
		}

		return next(c)
	}
}

// ValidateAcceptHeader middleware ensures that clients can accept JSON responses
func ValidateAcceptHeader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		accept := c.Request().Header.Get("Accept")

		// If no Accept header, assume */*
		if accept == "" {
			return next(c)
		}

		if !strings.Contains(accept, "application/json") &&
			!strings.Contains(accept, "*/*") &&
			!strings.Contains(accept, "application/*") {
			return BadRequestError(
				"Invalid Accept header",
				"API only returns JSON. Accept header must include 'application/json' or '*/*'. Got: "+accept,
			)
		}

		return next(c)
	}
}

// ValidateSiteName middleware rejects malformed :site and :name path parameters.
func ValidateSiteName(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, param := range []string{"site", "name"} {
			value := c.Param(param)
			if value == "" {
				continue
			}
			if strings.ContainsAny(value, " \t\r\n") {
				return BadRequestError("Invalid "+param, param+" cannot contain whitespace")
			}
			if len(value) > 256 {
				return BadRequestError("Invalid "+param, param+" must not exceed 256 characters")
			}
		}

		return next(c)
	}
}

// ValidateQueryParams middleware validates common query parameters
func ValidateQueryParams(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		for _, param := range []string{"limit", "offset"} {
			value := c.QueryParam(param)
			if value == "" {
				continue
			}
			if n, err := strconv.Atoi(value); err != nil || n < 0 {
				return BadRequestError(
					"Invalid "+param+" parameter",
					param+" must be a non-negative integer. Got: "+value,
				)
			}
		}

		if value := c.QueryParam("dry_run"); value != "" {
			if _, err := strconv.ParseBool(value); err != nil {
				return BadRequestError("Invalid dry_run parameter", "dry_run must be a boolean. Got: "+value)
			}
		}

		return next(c)
	}
}

// RequireAPIKey returns middleware that accepts a request only when it
// presents one of keys, either as X-API-Key or as a Bearer token. With no
// keys configured every request passes.
func RequireAPIKey(keys []string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if len(keys) == 0 {
				return next(c)
			}

			presented := c.Request().Header.Get("X-API-Key")
			if presented == "" {
				authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					presented = parts[1]
				}
			}
			if presented == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing API key")
			}

			for _, key := range keys {
				if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) == 1 {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid API key")
		}
	}
}

// SecurityHeaders middleware adds security headers to responses
func SecurityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("X-Content-Type-Options", "nosniff")
		c.Response().Header().Set("X-Frame-Options", "DENY")
		c.Response().Header().Set("X-XSS-Protection", "1; mode=block")
		c.Response().Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		return next(c)
	}
}
