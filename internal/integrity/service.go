package integrity

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"evalgo.org/sitesync/backend"
)

// Service scans a store for integrity issues and repairs the ones that
// can be fixed by trashing records.
//
// Example usage:
//
//	svc := integrity.NewService(store, logger, audit)
//	report, err := svc.Scan(ctx, integrity.DefaultScanOptions())
//	plan := svc.CreateRepairPlan(report, []integrity.RiskLevel{integrity.RiskLow})
//	result, err := svc.ExecutePlan(ctx, store, plan)
type Service struct {
	lister backend.Lister
	logger zerolog.Logger
	audit  *AuditLogger
	now    func() time.Time
}

// ScanOptions configures what to scan for.
type ScanOptions struct {
	Duplicates bool
	References bool
	Orphans    bool

	// Sites limits the scan to these sites (empty = all)
	Sites []string
}

// DefaultScanOptions enables every check.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{Duplicates: true, References: true, Orphans: true}
}

// NewService creates a scanner over lister. audit may be nil.
func NewService(lister backend.Lister, logger zerolog.Logger, audit *AuditLogger) *Service {
	return &Service{
		lister: lister,
		logger: logger.With().Str("component", "integrity").Logger(),
		audit:  audit,
		now:    time.Now,
	}
}

// Scan reads every selected site and reports the issues found.
func (s *Service) Scan(ctx context.Context, options ScanOptions) (*ScanReport, error) {
	startTime := s.now()
	report := &ScanReport{
		ID:          uuid.New().String(),
		Timestamp:   startTime,
		IssuesFound: []Issue{},
		Summary: ScanSummary{
			ByType:     make(map[IssueType]int),
			BySeverity: make(map[Severity]int),
		},
	}

	sites, err := s.lister.ListSites(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sites: %w", err)
	}

	for _, site := range sites {
		if len(options.Sites) > 0 && !slices.Contains(options.Sites, site.Name) {
			continue
		}
		snap, err := s.snapshot(ctx, site.Name)
		if err != nil {
			return nil, err
		}
		report.Sites = append(report.Sites, site.Name)
		report.RecordsScanned += snap.records()

		var issues []Issue
		if options.Duplicates {
			issues = append(issues, snap.duplicates()...)
		}
		if options.References {
			issues = append(issues, snap.danglingReferences()...)
		}
		if options.Orphans {
			issues = append(issues, snap.orphans()...)
		}
		for i := range issues {
			issues[i].ID = uuid.New().String()
			issues[i].Site = site.Name
			issues[i].DetectedAt = startTime
		}
		report.IssuesFound = append(report.IssuesFound, issues...)
	}

	report.Summary.TotalIssues = len(report.IssuesFound)
	for _, issue := range report.IssuesFound {
		report.Summary.ByType[issue.Type]++
		report.Summary.BySeverity[issue.Severity]++
	}
	report.Summary.HealthScore = calculateHealthScore(report)
	report.Duration = s.now().Sub(startTime)

	if err := s.audit.LogScan(report); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write audit entry")
	}

	s.logger.Info().
		Str("scan", report.ID).
		Int("sites", len(report.Sites)).
		Int("records", report.RecordsScanned).
		Int("issues", report.Summary.TotalIssues).
		Int("health", report.Summary.HealthScore).
		Msg("integrity scan completed")

	return report, nil
}

// calculateHealthScore computes a 0-100 health score based on issues found.
func calculateHealthScore(report *ScanReport) int {
	score := 100
	for severity, count := range report.Summary.BySeverity {
		switch severity {
		case SeverityCritical:
			score -= count * 20
		case SeverityHigh:
			score -= count * 10
		case SeverityMedium:
			score -= count * 3
		case SeverityLow:
			score -= count
		}
	}
	if score < 0 {
		score = 0
	}
	return score
}
