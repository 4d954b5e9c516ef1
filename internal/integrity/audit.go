package integrity

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditLogger appends scans and repair executions to a JSON lines file.
// A nil *AuditLogger discards everything.
type AuditLogger struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewAuditLogger opens path for appending. An empty path yields a nil
// logger.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if path == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &AuditLogger{path: path, file: file}, nil
}

// LogScan records a scan.
func (a *AuditLogger) LogScan(report *ScanReport) error {
	if a == nil {
		return nil
	}
	return a.writeEntry(AuditEntry{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		OperationType: "scan",
		ScanID:        report.ID,
		Success:       true,
		Details: map[string]interface{}{
			"duration_ms":     report.Duration.Milliseconds(),
			"sites":           report.Sites,
			"records_scanned": report.RecordsScanned,
			"issues_found":    report.Summary.TotalIssues,
			"health_score":    report.Summary.HealthScore,
		},
	})
}

// LogExecution records a repair execution with the keys it trashed.
func (a *AuditLogger) LogExecution(result *RepairResult) error {
	if a == nil {
		return nil
	}
	var trashed []string
	for _, op := range result.Operations {
		if op.Success && !op.DryRun {
			trashed = append(trashed, op.Operation.Key)
		}
	}
	return a.writeEntry(AuditEntry{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		OperationType: "execution",
		PlanID:        result.PlanID,
		ExecutionID:   result.ExecutionID,
		Success:       result.FailureCount == 0,
		Details: map[string]interface{}{
			"duration_ms":   result.Duration.Milliseconds(),
			"success_count": result.SuccessCount,
			"failure_count": result.FailureCount,
			"dry_run":       result.DryRun,
			"trashed":       trashed,
		},
	})
}

func (a *AuditLogger) writeEntry(entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := fmt.Fprintf(a.file, "%s\n", data); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Close closes the audit log file.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}

// ReadAuditLog returns the entries of an audit log file, newest last.
// A positive limit keeps only the last limit entries.
func ReadAuditLog(path string, limit int) ([]AuditEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	defer file.Close()

	var entries []AuditEntry
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("failed to decode audit entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
