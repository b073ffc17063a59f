package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/techatrix/zigserve/metrics"
)

// Report is the structured JSON summary written by --report.
type Report struct {
	Outcome      Status `json:"outcome"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	ErrorCount   uint32 `json:"error_count,omitempty"`
	ZigVersion   string `json:"zig_version,omitempty"`
	ExitCode     int    `json:"exit_code"`
	DurationMs   int64  `json:"duration_ms"`

	Metrics *metrics.Snapshot `json:"metrics"`
}

// BuildReport composes a Report from a resolved outcome and metrics snapshot.
func BuildReport(outcome *Outcome, snap metrics.Snapshot, duration time.Duration) *Report {
	report := &Report{
		Outcome:      outcome.Status,
		ArtifactPath: outcome.ArtifactPath,
		ZigVersion:   outcome.ZigVersion,
		ExitCode:     outcome.ExitCode,
		DurationMs:   duration.Milliseconds(),
		Metrics:      &snap,
	}

	if outcome.Bundle != nil {
		report.ErrorCount = outcome.Bundle.MessageCount()
	}

	return report
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		return writeReportTo(report, os.Stderr)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeReportTo writes report JSON to any writer (for testing).
func writeReportTo(report *Report, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
