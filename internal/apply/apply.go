// Package apply ties declaration loading to the reconciliation engine. The
// CLI and the admin API both go through it so an apply behaves the same
// whichever way it is triggered.
package apply

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/internal/declfile"
	"evalgo.org/sitesync/internal/placeholder"
	"evalgo.org/sitesync/reconcile"
)

// Options controls one apply.
type Options struct {
	// Sites limits the apply to these site ids; empty means all
	Sites []string

	StopOnError bool
	DryRun      bool
}

// Report is the outcome of one apply.
type Report struct {
	StartedAt time.Time          `json:"startedAt"`
	Duration  time.Duration      `json:"duration"`
	DryRun    bool               `json:"dryRun"`
	Results   []reconcile.Result `json:"results"`
	Failed    int                `json:"failed"`
}

// Succeeded reports whether every site reached done.
func (r *Report) Succeeded() bool {
	return r.Failed == 0
}

// Service builds registries from declarations and applies them.
type Service struct {
	store        backend.Store
	placeholders map[string]string
	logger       zerolog.Logger
}

// NewService creates an apply service over store. placeholders are the
// configured values; the environment is consulted after them.
func NewService(store backend.Store, placeholders map[string]string, logger zerolog.Logger) *Service {
	return &Service{store: store, placeholders: placeholders, logger: logger}
}

// Registry loads and builds every site declared under paths.
func (s *Service) Registry(paths []string) (*reconcile.Registry, error) {
	doc, err := declfile.LoadPaths(paths)
	if err != nil {
		return nil, err
	}
	return s.RegistryOf(doc)
}

// RegistryOf builds the sites of an already decoded document.
func (s *Service) RegistryOf(doc *declfile.Document) (*reconcile.Registry, error) {
	sites, err := declfile.Build(doc, placeholder.New(s.placeholders).Func())
	if err != nil {
		return nil, err
	}
	reg := reconcile.NewRegistry()
	for _, site := range sites {
		if err := reg.Register(site); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Paths loads the declarations under paths and applies them.
func (s *Service) Paths(ctx context.Context, paths []string, opts Options) (*Report, error) {
	reg, err := s.Registry(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to load declarations: %w", err)
	}
	return s.Apply(ctx, reg, opts)
}

// Document applies an already decoded document.
func (s *Service) Document(ctx context.Context, doc *declfile.Document, opts Options) (*Report, error) {
	reg, err := s.RegistryOf(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build declarations: %w", err)
	}
	return s.Apply(ctx, reg, opts)
}

// Apply reconciles every selected site of reg. Site failures are counted
// in the report and joined into the returned error; the report is returned
// either way once sites were attempted.
func (s *Service) Apply(ctx context.Context, reg *reconcile.Registry, opts Options) (*Report, error) {
	var engineOpts []reconcile.EngineOption
	if opts.DryRun {
		engineOpts = append(engineOpts, reconcile.WithDryRun())
	}
	engine := reconcile.NewEngine(s.store, s.logger, engineOpts...)

	report := &Report{StartedAt: time.Now(), DryRun: opts.DryRun}
	results, err := engine.ApplyAll(ctx, reg, reconcile.ApplyOptions{Sites: opts.Sites, StopOnError: opts.StopOnError})
	report.Duration = time.Since(report.StartedAt)
	report.Results = results
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
		}
	}

	// No results with an error means the site filter named an unknown site
	if err != nil && results == nil {
		return nil, err
	}
	return report, err
}
