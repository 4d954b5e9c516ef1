package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"evalgo.org/sitesync/internal/integrity"
)

// runAudit handles GET /api/v1/audit
//
// Query parameters: site, duplicates, references, orphans (default true),
// repair (default false), dry_run (default true) and risk (default low).
// A repair that is not a dry run takes the apply lock.
func (s *Server) runAudit(c echo.Context) error {
	opts := integrity.ScanOptions{Sites: querySites(c, nil)}
	var repair, dryRun bool
	for _, flag := range []struct {
		name string
		def  bool
		dst  *bool
	}{
		{"duplicates", true, &opts.Duplicates},
		{"references", true, &opts.References},
		{"orphans", true, &opts.Orphans},
		{"repair", false, &repair},
		{"dry_run", true, &dryRun},
	} {
		value, err := queryBool(c, flag.name, flag.def)
		if err != nil {
			return err
		}
		*flag.dst = value
	}

	if repair && !dryRun {
		if !s.applying.TryLock() {
			return ConflictError("Apply in progress", "another apply or repair is running; retry later")
		}
		defer s.applying.Unlock()
	}

	ctx := c.Request().Context()
	report, err := s.integrity.Scan(ctx, opts)
	if err != nil {
		return InternalError("Scan failed", err.Error())
	}

	resp := AuditResponse{Scan: report}
	if repair {
		risks := []integrity.RiskLevel{integrity.RiskLow}
		if value := c.QueryParam("risk"); value != "" {
			risks = nil
			for _, risk := range strings.Split(value, ",") {
				risks = append(risks, integrity.RiskLevel(strings.TrimSpace(risk)))
			}
		}

		plan := s.integrity.CreateRepairPlan(report, risks)
		plan.DryRun = dryRun
		if resp.Repair, err = s.integrity.ExecutePlan(ctx, s.store, plan); err != nil {
			return InternalError("Repair failed", err.Error())
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// auditHistory handles GET /api/v1/audit/history
func (s *Server) auditHistory(c echo.Context) error {
	if s.config.Integrity.AuditLog == "" {
		return NotFoundError("Audit log", "integrity.audit_log is not configured")
	}

	limit, _ := parsePagination(c)
	entries, err := integrity.ReadAuditLog(s.config.Integrity.AuditLog, limit)
	if err != nil {
		return InternalError("Failed to read audit log", err.Error())
	}

	return c.JSON(http.StatusOK, AuditHistoryResponse{
		Count:   len(entries),
		Entries: entries,
	})
}

// queryBool parses a boolean query parameter, returning def when it is
// absent. A value strconv.ParseBool rejects is a bad request.
func queryBool(c echo.Context, name string, def bool) (bool, error) {
	value := c.QueryParam(name)
	if value == "" {
		return def, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, BadRequestError("Invalid "+name+" parameter", name+" must be a boolean. Got: "+value)
	}
	return parsed, nil
}
