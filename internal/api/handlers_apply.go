package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/sitesync/backend/memory"
	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/declfile"
	"evalgo.org/sitesync/internal/validation"
)

// maxDocumentSize bounds a declaration document sent in a request body.
const maxDocumentSize = 8 << 20

// applyDeclarations handles POST /api/v1/apply
//
// The body is a declaration document (YAML, JSON or HCL). An empty body
// re-applies the configured declaration paths. Query parameters: dry_run
// and site (repeatable or comma separated).
func (s *Server) applyDeclarations(c echo.Context) error {
	if !s.applying.TryLock() {
		return ConflictError("Apply in progress", "another apply or repair is running; retry later")
	}
	defer s.applying.Unlock()

	dryRun, err := queryBool(c, "dry_run", false)
	if err != nil {
		return err
	}
	opts := apply.Options{
		Sites:       querySites(c, s.config.Reconcile.Sites),
		StopOnError: !s.config.Reconcile.ContinueOnError,
		DryRun:      dryRun,
	}

	doc, err := readDocument(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var report *apply.Report
	if doc == nil {
		report, err = s.applier.Paths(ctx, s.config.Declarations.Paths, opts)
	} else {
		if result := declfile.Validate(doc); !result.Valid {
			return validationFailed(result)
		}
		report, err = s.applier.Document(ctx, doc, opts)
	}

	if report == nil {
		return applyError("Apply failed", err)
	}

	status := http.StatusOK
	resp := ApplyResponse{Report: report}
	if err != nil {
		status = applyError("Apply failed", err).Code
		resp.Error = err.Error()
		s.logger.Warn().Err(err).Int("failed", report.Failed).Msg("apply finished with failures")
	}
	return c.JSON(status, resp)
}

// validateDeclarations handles POST /api/v1/validate
//
// Checks the document in the body (or the configured paths) and, unless
// simulate=false, applies it to an empty in-memory store.
func (s *Server) validateDeclarations(c echo.Context) error {
	simulate, err := queryBool(c, "simulate", true)
	if err != nil {
		return err
	}

	doc, err := readDocument(c)
	if err != nil {
		return err
	}
	if doc == nil {
		if doc, err = declfile.LoadPaths(s.config.Declarations.Paths); err != nil {
			return BadRequestError("Failed to load declarations", err.Error())
		}
	}

	result := declfile.Validate(doc)
	if !result.Valid {
		resp := ValidateResponse{Valid: false}
		for _, e := range result.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
		return c.JSON(http.StatusUnprocessableEntity, resp)
	}

	simulator := apply.NewService(memory.New(), s.config.Placeholders, s.logger)
	reg, err := simulator.RegistryOf(doc)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ValidateResponse{Valid: false, Errors: []string{err.Error()}})
	}

	if simulate {
		report, err := simulator.Apply(c.Request().Context(), reg, apply.Options{})
		if err != nil {
			resp := ValidateResponse{Valid: false, Sites: reg.Len()}
			if report == nil {
				resp.Errors = []string{err.Error()}
			} else {
				for _, r := range report.Results {
					if r.Err != nil {
						resp.Errors = append(resp.Errors, r.Site+": "+r.Err.Error())
					}
				}
			}
			return c.JSON(http.StatusUnprocessableEntity, resp)
		}
	}

	return c.JSON(http.StatusOK, ValidateResponse{Valid: true, Sites: reg.Len()})
}

// readDocument decodes the request body. It returns nil for an empty body.
func readDocument(c echo.Context) (*declfile.Document, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxDocumentSize+1))
	if err != nil {
		return nil, BadRequestError("Failed to read request body", err.Error())
	}
	if len(data) > maxDocumentSize {
		return nil, NewAPIError(http.StatusRequestEntityTooLarge, "Document too large", "declaration documents are limited to 8 MiB")
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}

	var doc *declfile.Document
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.Contains(contentType, "hcl") {
		doc, err = declfile.DecodeHCL(data, "request.hcl")
	} else {
		// JSON is a subset of YAML
		doc, err = declfile.DecodeYAML(data, "request.yaml")
	}
	if err != nil {
		return nil, BadRequestError("Invalid declaration document", err.Error())
	}
	return doc, nil
}

// querySites returns the site query parameter values, or fallback.
func querySites(c echo.Context, fallback []string) []string {
	var sites []string
	for _, value := range c.QueryParams()["site"] {
		for _, site := range strings.Split(value, ",") {
			if site = strings.TrimSpace(site); site != "" {
				sites = append(sites, site)
			}
		}
	}
	if len(sites) == 0 {
		return fallback
	}
	return sites
}

func validationFailed(result *validation.ValidationResult) *APIError {
	fields := make(map[string]string, len(result.Errors))
	for _, e := range result.Errors {
		fields[e.Field] = e.Message
	}
	return ValidationError("Declaration validation failed", fields)
}
