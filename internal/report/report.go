// Package report persists run outcomes: a YAML document with the full
// report plus CSV tables for the summary, both finding sets, and the
// execution log, all under a timestamped run directory.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/runner"
)

// File names inside a run directory.
const (
	ReportFile         = "report.yaml"
	SummaryFile        = "summary.csv"
	ReconciliationFile = "reconciliation.csv"
	ValidationFile     = "validation.csv"
	ExecutionLogFile   = "execution_log.csv"
)

const logTimeFormat = "2006-01-02 15:04:05"

// Write persists the report under outputDir in a directory named after
// the project and run id, and returns the run directory path.
func Write(report *runner.Report, project, outputDir string) (string, error) {
	runDir := filepath.Join(outputDir, fmt.Sprintf("%s_%s", project, report.RunID))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", errors.WrapIO("create run directory", runDir, err)
	}

	if err := writeYAML(filepath.Join(runDir, ReportFile), report); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, SummaryFile), summaryRows(report)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, ReconciliationFile), reconciliationRows(report)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, ValidationFile), validationRows(report)); err != nil {
		return "", err
	}
	if err := writeCSV(filepath.Join(runDir, ExecutionLogFile), logRows(report)); err != nil {
		return "", err
	}

	logging.Info().
		Str("run_id", report.RunID).
		Str("dir", runDir).
		Str("status", string(report.Status)).
		Msg("Report written")
	return runDir, nil
}

func writeYAML(path string, report *runner.Report) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return errors.WrapParse("yaml", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.WrapIO("write report", path, err)
	}
	return nil
}

func writeCSV(path string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.WrapIO("write report table", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		return errors.WrapIO("write report table", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.WrapIO("write report table", path, err)
	}
	return file.Close()
}

// summaryRows renders the run summary table.
func summaryRows(report *runner.Report) [][]string {
	recon := report.Reconciliation.Summary
	validation := report.Validation.Summary

	rows := [][]string{
		{"metric", "value"},
		{"run_id", report.RunID},
		{"started_at", report.StartedAt.Format(logTimeFormat)},
		{"finished_at", report.FinishedAt.Format(logTimeFormat)},
		{"status", string(report.Status)},
		{"reconciliation_total", itoa(recon.Total)},
		{"reconciliation_passed", itoa(recon.Passed)},
		{"reconciliation_failed", itoa(recon.Failed)},
		{"reconciliation_errors", itoa(recon.Errors)},
		{"reconciliation_pass_rate", rate(recon)},
		{"validation_total", itoa(validation.Total)},
		{"validation_passed", itoa(validation.Passed)},
		{"validation_failed", itoa(validation.Failed)},
		{"validation_errors", itoa(validation.Errors)},
		{"validation_pass_rate", rate(validation)},
	}
	for _, severity := range []rules.Severity{rules.SeverityError, rules.SeverityWarning, rules.SeverityInfo} {
		if n, ok := validation.BySeverity[severity]; ok {
			rows = append(rows, []string{
				fmt.Sprintf("validation_%s_findings", severity), itoa(n),
			})
		}
	}
	return rows
}

func reconciliationRows(report *runner.Report) [][]string {
	rows := [][]string{{
		"rule_id", "rule_name", "record_key",
		"source1_value", "source2_value", "difference",
		"status", "severity", "detail",
	}}
	for _, f := range report.Reconciliation.Findings {
		rows = append(rows, []string{
			f.RuleID, f.RuleName, f.RecordKey,
			f.Value1, f.Value2, f.Difference,
			string(f.Status), string(f.Severity), f.Detail,
		})
	}
	return rows
}

func validationRows(report *runner.Report) [][]string {
	rows := [][]string{{
		"rule_id", "rule_name", "record_id", "column",
		"value", "expected", "status", "severity", "detail",
	}}
	for _, f := range report.Validation.Findings {
		rows = append(rows, []string{
			f.RuleID, f.RuleName, f.RecordID, f.Column,
			f.Value, f.Expected, string(f.Status), string(f.Severity), f.Detail,
		})
	}
	return rows
}

func logRows(report *runner.Report) [][]string {
	rows := [][]string{{"timestamp", "level", "component", "message"}}
	for _, e := range report.Log {
		rows = append(rows, []string{
			e.Timestamp.Format(logTimeFormat), e.Level, e.Component, e.Message,
		})
	}
	return rows
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}

func rate(s results.Summary) string {
	return fmt.Sprintf("%.2f%%", s.PassRate()*100)
}
