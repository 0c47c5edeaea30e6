// Package results defines the outcome shapes produced by the engines —
// per-record results, per-rule summaries — and the aggregator that folds
// them into rule-set and run-level summaries. Results are created fresh
// per run and owned by the caller; nothing here persists state.
package results

import (
	"sort"

	"github.com/crosscheckhq/crosscheck/pkg/rules"
)

// Status is the outcome of a single check or rule.
type Status string

const (
	// StatusPass indicates the check succeeded.
	StatusPass Status = "PASS"
	// StatusFail indicates the check found a discrepancy.
	StatusFail Status = "FAIL"
	// StatusError indicates the rule itself could not be evaluated.
	StatusError Status = "ERROR"
)

// Reconciliation is a single reconciliation finding.
type Reconciliation struct {
	RuleID     string         `yaml:"rule_id"`
	RuleName   string         `yaml:"rule_name"`
	RecordKey  string         `yaml:"record_key"`
	Value1     string         `yaml:"source1_value"`
	Value2     string         `yaml:"source2_value"`
	Difference string         `yaml:"difference"`
	Status     Status         `yaml:"status"`
	Severity   rules.Severity `yaml:"severity"`
	Detail     string         `yaml:"detail"`
}

// Validation is a single validation finding, traceable to a record via
// its resolved identifier.
type Validation struct {
	RuleID   string         `yaml:"rule_id"`
	RuleName string         `yaml:"rule_name"`
	RecordID string         `yaml:"record_id"`
	Column   string         `yaml:"column"`
	Value    string         `yaml:"value"`
	Expected string         `yaml:"expected"`
	Status   Status         `yaml:"status"`
	Severity rules.Severity `yaml:"severity"`
	Detail   string         `yaml:"detail"`
}

// Summary aggregates outcomes for a rule or a rule set.
type Summary struct {
	Total      int                    `yaml:"total"`
	Passed     int                    `yaml:"passed"`
	Failed     int                    `yaml:"failed"`
	Errors     int                    `yaml:"errors"`
	BySeverity map[rules.Severity]int `yaml:"by_severity,omitempty"`
}

// PassRate returns passed/total in [0,1], or 1 when nothing was evaluated.
func (s Summary) PassRate() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Passed) / float64(s.Total)
}

// Status derives the rule-set status: ERROR dominates FAIL dominates PASS.
func (s Summary) Status() Status {
	if s.Errors > 0 {
		return StatusError
	}
	if s.Failed > 0 {
		return StatusFail
	}
	return StatusPass
}

// Count records one outcome with an optional severity.
func (s *Summary) Count(status Status, severity rules.Severity) {
	s.Total++
	switch status {
	case StatusPass:
		s.Passed++
	case StatusError:
		s.Errors++
	default:
		s.Failed++
	}
	if status != StatusPass && severity != "" {
		if s.BySeverity == nil {
			s.BySeverity = make(map[rules.Severity]int)
		}
		s.BySeverity[severity]++
	}
}

// Merge folds another summary into this one. Merging is commutative, so
// summaries produced concurrently per rule can combine in any order.
func (s *Summary) Merge(other Summary) {
	s.Total += other.Total
	s.Passed += other.Passed
	s.Failed += other.Failed
	s.Errors += other.Errors
	if len(other.BySeverity) > 0 {
		if s.BySeverity == nil {
			s.BySeverity = make(map[rules.Severity]int)
		}
		for sev, n := range other.BySeverity {
			s.BySeverity[sev] += n
		}
	}
}

// MergeSummaries folds per-rule summaries into one rule-set summary.
func MergeSummaries(summaries ...Summary) Summary {
	var merged Summary
	for _, s := range summaries {
		merged.Merge(s)
	}
	return merged
}

// OverallStatus derives the run status from rule-set summaries: FAIL if
// any rule set is not fully passing, ERROR if any rule errored.
func OverallStatus(summaries ...Summary) Status {
	status := StatusPass
	for _, s := range summaries {
		switch s.Status() {
		case StatusError:
			return StatusError
		case StatusFail:
			status = StatusFail
		}
	}
	return status
}

// SortReconciliation orders findings by rule id then record key, making
// concurrent evaluation output deterministic.
func SortReconciliation(rs []Reconciliation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].RuleID != rs[j].RuleID {
			return rs[i].RuleID < rs[j].RuleID
		}
		return rs[i].RecordKey < rs[j].RecordKey
	})
}

// SortValidation orders findings by rule id then record id.
func SortValidation(vs []Validation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].RuleID != vs[j].RuleID {
			return vs[i].RuleID < vs[j].RuleID
		}
		return vs[i].RecordID < vs[j].RecordID
	})
}
