package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"evalgo.org/sitesync/internal/integrity"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Scan the store for integrity issues",
	Long: `Scan the store for duplicate live records, keys that name no live record
and content that is neither placed, delegated nor mounted. With --repair
the issues that can be fixed by trashing records are repaired.`,
	RunE: runAudit,
}

var auditHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent entries of the audit log",
	RunE:  runAuditHistory,
}

func init() {
	auditCmd.Flags().StringSlice("site", nil, "sites to scan (empty = all)")
	auditCmd.Flags().Bool("duplicates", true, "scan for duplicate records")
	auditCmd.Flags().Bool("references", true, "scan for dangling references")
	auditCmd.Flags().Bool("orphans", true, "scan for orphaned content")
	auditCmd.Flags().Bool("json", false, "output results as JSON")
	auditCmd.Flags().Bool("repair", false, "repair issues after scanning")
	auditCmd.Flags().Bool("dry-run", true, "only report what a repair would do")
	auditCmd.Flags().StringSlice("risk", []string{"low"}, "risk levels a repair may take (low, medium)")

	auditHistoryCmd.Flags().Int("limit", 20, "number of entries to show")

	auditCmd.AddCommand(auditHistoryCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	sites, _ := cmd.Flags().GetStringSlice("site")
	duplicates, _ := cmd.Flags().GetBool("duplicates")
	references, _ := cmd.Flags().GetBool("references")
	orphans, _ := cmd.Flags().GetBool("orphans")
	outputJSON, _ := cmd.Flags().GetBool("json")
	repair, _ := cmd.Flags().GetBool("repair")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	riskLevels, _ := cmd.Flags().GetStringSlice("risk")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer store.Close()

	audit, err := integrity.NewAuditLogger(cfg.Integrity.AuditLog)
	if err != nil {
		return err
	}
	defer audit.Close()

	svc := integrity.NewService(store, logger, audit)
	ctx := context.Background()
	report, err := svc.Scan(ctx, integrity.ScanOptions{
		Duplicates: duplicates,
		References: references,
		Orphans:    orphans,
		Sites:      sites,
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var result *integrity.RepairResult
	if repair {
		var riskFilter []integrity.RiskLevel
		for _, risk := range riskLevels {
			riskFilter = append(riskFilter, integrity.RiskLevel(risk))
		}
		plan := svc.CreateRepairPlan(report, riskFilter)
		plan.DryRun = dryRun
		if result, err = svc.ExecutePlan(ctx, store, plan); err != nil {
			return fmt.Errorf("repair failed: %w", err)
		}
	}

	if outputJSON {
		data, err := json.MarshalIndent(map[string]interface{}{"scan": report, "repair": result}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printScanReport(report)
		if result != nil {
			printRepairResult(result)
		}
	}

	if report.Summary.HealthScore < cfg.Integrity.MinHealthScore {
		return fmt.Errorf("store health %d is below the configured minimum %d",
			report.Summary.HealthScore, cfg.Integrity.MinHealthScore)
	}
	return nil
}

func printScanReport(report *integrity.ScanReport) {
	fmt.Printf("Scan ID:         %s\n", report.ID)
	fmt.Printf("Duration:        %v\n", report.Duration)
	fmt.Printf("Sites:           %d\n", len(report.Sites))
	fmt.Printf("Records Scanned: %d\n", report.RecordsScanned)
	fmt.Printf("Issues Found:    %d\n", report.Summary.TotalIssues)
	fmt.Println()

	scoreColor := getScoreColor(report.Summary.HealthScore)
	fmt.Printf("Health Score:    %s%d/100%s\n", scoreColor, report.Summary.HealthScore, colorReset)
	fmt.Println()

	if len(report.IssuesFound) == 0 {
		fmt.Println("✅ No integrity issues found!")
		return
	}

	fmt.Println("Issues:")
	for i, issue := range report.IssuesFound {
		if i >= 20 {
			fmt.Printf("  ... and %d more issues\n", len(report.IssuesFound)-20)
			break
		}
		severityColor := getSeverityColor(issue.Severity)
		fmt.Printf("  [%s%s%s] %s/%s: %s\n", severityColor, issue.Severity, colorReset, issue.Site, issue.Type, issue.Description)
	}
	fmt.Println()
}

func printRepairResult(result *integrity.RepairResult) {
	if result.DryRun {
		fmt.Println("Repair (dry run):")
	} else {
		fmt.Println("Repair:")
	}
	for _, op := range result.Operations {
		status := "✓"
		if !op.Success {
			status = "✗ " + op.Error
		}
		fmt.Printf("  %s %s\n", status, op.Operation.Action)
	}
	fmt.Printf("  %d succeeded, %d failed\n", result.SuccessCount, result.FailureCount)
}

func runAuditHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if cfg.Integrity.AuditLog == "" {
		return fmt.Errorf("integrity.audit_log is not configured")
	}

	entries, err := integrity.ReadAuditLog(cfg.Integrity.AuditLog, limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "ok"
		if !e.Success {
			status = "failed"
		}
		fmt.Printf("%s  %-9s %-6s %v\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.OperationType, status, e.Details)
	}
	return nil
}

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorOrange = "\033[38;5;208m"
)

// getScoreColor returns the appropriate color for a health score
func getScoreColor(score int) string {
	if score >= 90 {
		return colorGreen
	} else if score >= 70 {
		return colorYellow
	} else if score >= 50 {
		return colorOrange
	}
	return colorRed
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity integrity.Severity) string {
	switch severity {
	case integrity.SeverityCritical:
		return colorRed
	case integrity.SeverityHigh:
		return colorOrange
	case integrity.SeverityMedium:
		return colorYellow
	case integrity.SeverityLow:
		return colorGreen
	default:
		return colorReset
	}
}
