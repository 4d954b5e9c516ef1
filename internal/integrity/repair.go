package integrity

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"evalgo.org/sitesync/backend"
)

// CreateRepairPlan turns the issues of report into trash operations.
// Duplicates trash every record but the one kept; orphaned content is
// trashed outright. Dangling references need a fresh apply and are only
// counted as skipped. An empty riskFilter admits every risk level.
func (s *Service) CreateRepairPlan(report *ScanReport, riskFilter []RiskLevel) *RepairPlan {
	plan := &RepairPlan{
		ID:         uuid.New().String(),
		Timestamp:  s.now(),
		ScanID:     report.ID,
		Operations: []RepairOperation{},
		DryRun:     true,
		RiskFilter: riskFilter,
	}

	for _, issue := range report.IssuesFound {
		var ops []RepairOperation
		switch issue.Type {
		case IssueTypeDuplicate:
			for _, key := range issue.Keys[1:] {
				ops = append(ops, RepairOperation{
					Type:   OpTrashDuplicate,
					Kind:   issue.Kind,
					Key:    key,
					Action: fmt.Sprintf("trash duplicate %s %q (keeping %s)", issue.Kind, issue.Name, issue.Keys[0]),
					Risk:   RiskMedium,
				})
			}
		case IssueTypeOrphaned:
			ops = append(ops, RepairOperation{
				Type:   OpTrashOrphaned,
				Kind:   issue.Kind,
				Key:    issue.Key,
				Action: fmt.Sprintf("trash orphaned content %q", issue.Name),
				Risk:   RiskLow,
			})
		}

		if len(ops) == 0 || (len(riskFilter) > 0 && !slices.Contains(riskFilter, ops[0].Risk)) {
			plan.Skipped++
			continue
		}
		for _, op := range ops {
			op.ID = uuid.New().String()
			op.IssueID = issue.ID
			op.Site = issue.Site
			plan.Operations = append(plan.Operations, op)
		}
	}

	s.logger.Debug().
		Str("plan", plan.ID).
		Int("operations", len(plan.Operations)).
		Int("skipped", plan.Skipped).
		Msg("repair plan created")
	return plan
}

// ExecutePlan runs the operations of plan against store. Each operation is
// its own unit of work, so one failure does not undo the others. A dry run
// only reports what would be done.
func (s *Service) ExecutePlan(ctx context.Context, store backend.Store, plan *RepairPlan) (*RepairResult, error) {
	startTime := s.now()
	result := &RepairResult{
		PlanID:      plan.ID,
		ExecutionID: uuid.New().String(),
		StartTime:   startTime,
		Operations:  []OperationResult{},
		DryRun:      plan.DryRun,
	}

	for _, op := range plan.Operations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		opResult := OperationResult{Operation: op, DryRun: plan.DryRun, Success: true}
		if !plan.DryRun {
			err := store.WithinUnit(ctx, func(b backend.Backend) error {
				return b.Trash(ctx, op.Kind, op.Key)
			})
			if err != nil {
				opResult.Success = false
				opResult.Error = err.Error()
			}
		}

		if opResult.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
			s.logger.Warn().Str("key", op.Key).Str("error", opResult.Error).Msg("repair operation failed")
		}
		result.Operations = append(result.Operations, opResult)
	}

	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(startTime)

	if err := s.audit.LogExecution(result); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write audit entry")
	}

	s.logger.Info().
		Str("plan", plan.ID).
		Bool("dry_run", plan.DryRun).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailureCount).
		Msg("repair plan executed")
	return result, nil
}
