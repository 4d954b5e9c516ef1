// Package integrity audits a reconciled store for records the engine would
// never produce on its own: duplicate live records, dangling keys and
// orphaned content. Such records appear after interrupted manual edits or
// when a store is shared with other writers.
package integrity

import (
	"time"

	"evalgo.org/sitesync/backend"
)

// IssueType represents the type of integrity issue detected.
type IssueType string

const (
	// IssueTypeDuplicate indicates several live records under one site and name
	IssueTypeDuplicate IssueType = "duplicate"

	// IssueTypeDanglingReference indicates a key that names no live record
	IssueTypeDanglingReference IssueType = "dangling_reference"

	// IssueTypeOrphaned indicates live content nothing places, delegates or mounts
	IssueTypeOrphaned IssueType = "orphaned"
)

// Severity represents how critical an issue is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskLevel indicates the risk of a repair operation.
type RiskLevel string

const (
	// RiskLow operations only trash records nothing refers to
	RiskLow RiskLevel = "low"

	// RiskMedium operations trash records that may still be referenced
	RiskMedium RiskLevel = "medium"
)

// ScanReport contains the results of an integrity scan.
type ScanReport struct {
	// ID uniquely identifies this scan
	ID string `json:"id"`

	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`

	// Sites lists the sites that were scanned
	Sites []string `json:"sites"`

	// RecordsScanned is the number of live records read
	RecordsScanned int `json:"records_scanned"`

	IssuesFound []Issue     `json:"issues_found"`
	Summary     ScanSummary `json:"summary"`
}

// ScanSummary provides aggregated scan statistics.
type ScanSummary struct {
	TotalIssues int               `json:"total_issues"`
	ByType      map[IssueType]int `json:"by_type"`
	BySeverity  map[Severity]int  `json:"by_severity"`

	// HealthScore is a 0-100 score indicating store health
	HealthScore int `json:"health_score"`
}

// Issue represents a single integrity problem.
type Issue struct {
	ID       string    `json:"id"`
	Type     IssueType `json:"type"`
	Severity Severity  `json:"severity"`

	// Site, Kind, Key and Name identify the affected record
	Site string       `json:"site"`
	Kind backend.Kind `json:"kind"`
	Key  string       `json:"key,omitempty"`
	Name string       `json:"name"`

	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
	DetectedAt  time.Time              `json:"detected_at"`

	// Keys lists the records involved; for duplicates the one kept comes first
	Keys []string `json:"keys,omitempty"`
}

// OperationType categorizes repair operations.
type OperationType string

const (
	// OpTrashDuplicate trashes a surplus duplicate record
	OpTrashDuplicate OperationType = "trash_duplicate"

	// OpTrashOrphaned trashes orphaned content
	OpTrashOrphaned OperationType = "trash_orphaned"
)

// RepairOperation represents a single repair action.
type RepairOperation struct {
	ID      string        `json:"id"`
	Type    OperationType `json:"type"`
	IssueID string        `json:"issue_id"`
	Site    string        `json:"site"`
	Kind    backend.Kind  `json:"kind"`
	Key     string        `json:"key"`
	Action  string        `json:"action"`
	Risk    RiskLevel     `json:"risk"`
}

// RepairPlan contains a sequence of operations to fix issues.
type RepairPlan struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	ScanID     string            `json:"scan_id"`
	Operations []RepairOperation `json:"operations"`

	// Skipped counts issues that have no automatic repair or were filtered out
	Skipped int `json:"skipped"`

	DryRun     bool        `json:"dry_run"`
	RiskFilter []RiskLevel `json:"risk_filter,omitempty"`
}

// RepairResult contains the outcome of executing a repair plan.
type RepairResult struct {
	PlanID       string            `json:"plan_id"`
	ExecutionID  string            `json:"execution_id"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Duration     time.Duration     `json:"duration"`
	Operations   []OperationResult `json:"operations"`
	SuccessCount int               `json:"success_count"`
	FailureCount int               `json:"failure_count"`
	DryRun       bool              `json:"dry_run"`
}

// OperationResult contains the outcome of a single operation.
type OperationResult struct {
	Operation RepairOperation `json:"operation"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
	DryRun    bool            `json:"dry_run"`
}

// AuditEntry records an integrity operation for auditing.
type AuditEntry struct {
	ID            string                 `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	OperationType string                 `json:"operation_type"`
	ScanID        string                 `json:"scan_id,omitempty"`
	PlanID        string                 `json:"plan_id,omitempty"`
	ExecutionID   string                 `json:"execution_id,omitempty"`
	Success       bool                   `json:"success"`
	Details       map[string]interface{} `json:"details,omitempty"`
}
