// Package rules defines the rule model shared by the reconciliation and
// validation engines: check kinds, tolerance specifications, severity
// levels, and the two rule variants. Rules are constructed by loaders
// and handed to the engines read-only.
package rules

import (
	"fmt"
	"strconv"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
)

// Severity classifies a validation failure.
type Severity string

const (
	// SeverityError marks a failure that must be fixed.
	SeverityError Severity = "ERROR"
	// SeverityWarning marks a failure worth reviewing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo marks an informational finding.
	SeverityInfo Severity = "INFO"
)

// ParseSeverity normalizes a severity string, defaulting to ERROR.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityWarning:
		return SeverityWarning
	case SeverityInfo:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// ReconKind identifies a reconciliation check.
type ReconKind string

const (
	// KeyMatch verifies keys exist in both datasets.
	KeyMatch ReconKind = "key_match"
	// ValueEquals compares mapped column values for matched keys.
	ValueEquals ReconKind = "value_equals"
	// FuzzyMatch compares text similarity for matched keys.
	FuzzyMatch ReconKind = "fuzzy_match"
	// AggregateSum compares column sums.
	AggregateSum ReconKind = "aggregate_sum"
	// AggregateCount compares record counts.
	AggregateCount ReconKind = "aggregate_count"
	// AggregateAvg compares column averages.
	AggregateAvg ReconKind = "aggregate_avg"
)

// CheckKind identifies a validation predicate. The catalogue is closed:
// the checker's registry covers exactly these kinds and an unknown kind
// is a configuration error, never a silent pass.
type CheckKind string

const (
	// NotNull fails on null/missing cells.
	NotNull CheckKind = "not_null"
	// NotEmpty fails on empty or whitespace-only strings.
	NotEmpty CheckKind = "not_empty"
	// GreaterThan requires value > parameter_1.
	GreaterThan CheckKind = "greater_than"
	// LessThan requires value < parameter_1.
	LessThan CheckKind = "less_than"
	// Between requires parameter_1 <= value <= parameter_2.
	Between CheckKind = "between"
	// Equals requires value == parameter_1.
	Equals CheckKind = "equals"
	// NotEquals requires value != parameter_1.
	NotEquals CheckKind = "not_equals"
	// IsInList requires membership in the delimited parameter_1 list.
	IsInList CheckKind = "is_in_list"
	// NotInList forbids membership in the delimited parameter_1 list.
	NotInList CheckKind = "not_in_list"
	// RegexMatch requires the value to match parameter_1 as a pattern.
	RegexMatch CheckKind = "regex_match"
	// StartsWith requires the literal prefix parameter_1.
	StartsWith CheckKind = "starts_with"
	// EndsWith requires the literal suffix parameter_1.
	EndsWith CheckKind = "ends_with"
	// Contains requires the literal substring parameter_1.
	Contains CheckKind = "contains"
	// IsNumeric requires coercion to a number to succeed.
	IsNumeric CheckKind = "is_numeric"
	// IsInteger requires coercion to an integer to succeed.
	IsInteger CheckKind = "is_integer"
	// IsDate requires coercion to a date (parameter_1 as optional format).
	IsDate CheckKind = "is_date"
	// Unique fails every record whose column value occurs more than once.
	Unique CheckKind = "unique"
	// MinLength requires len(string form) >= parameter_1.
	MinLength CheckKind = "min_length"
	// MaxLength requires len(string form) <= parameter_1.
	MaxLength CheckKind = "max_length"
)

// ToleranceType identifies how a tolerance value is interpreted.
type ToleranceType string

const (
	// TolerancePercentage interprets the value as a percentage of the
	// first dataset's value.
	TolerancePercentage ToleranceType = "percentage"
	// ToleranceAbsolute interprets the value as an absolute difference.
	ToleranceAbsolute ToleranceType = "absolute"
	// ToleranceDays interprets the value as a day count between dates.
	ToleranceDays ToleranceType = "days"
)

// Tolerance is an acceptable margin of difference before a comparison
// is flagged. Equality at exactly the boundary is a pass.
type Tolerance struct {
	Type  ToleranceType `yaml:"type" json:"type"`
	Value float64       `yaml:"value" json:"value"`
}

// Validate checks the tolerance specification.
func (t *Tolerance) Validate() error {
	switch t.Type {
	case TolerancePercentage, ToleranceAbsolute, ToleranceDays:
	default:
		return errors.NewConfigError("tolerance",
			fmt.Sprintf("unknown tolerance type %q", t.Type), nil)
	}
	if t.Value < 0 {
		return errors.NewConfigError("tolerance",
			fmt.Sprintf("tolerance value must be >= 0, got %v", t.Value), nil)
	}
	return nil
}

// ColumnMapping pairs a column in dataset 1 with the corresponding
// column in dataset 2, optionally tagged with an expected semantic type.
type ColumnMapping struct {
	Source1 string `yaml:"source1" json:"source1"`
	Source2 string `yaml:"source2" json:"source2"`
	Type    string `yaml:"type,omitempty" json:"type,omitempty"` // string, numeric, date
}

// Mappings is an ordered set of column mappings.
type Mappings []ColumnMapping

// Map translates a dataset-1 column name to its dataset-2 counterpart.
// Unmapped columns translate to themselves.
func (m Mappings) Map(source1Column string) string {
	for _, cm := range m {
		if cm.Source1 == source1Column {
			return cm.Source2
		}
	}
	return source1Column
}

// ReconciliationRule configures one check between two datasets.
type ReconciliationRule struct {
	ID             string     `yaml:"id" json:"id"`
	Name           string     `yaml:"name" json:"name"`
	Active         bool       `yaml:"active" json:"active"`
	Kind           ReconKind  `yaml:"check" json:"check"`
	KeyColumn1     string     `yaml:"key_column_1" json:"key_column_1"`
	KeyColumn2     string     `yaml:"key_column_2" json:"key_column_2"`
	CompareColumn1 string     `yaml:"compare_column_1,omitempty" json:"compare_column_1,omitempty"`
	CompareColumn2 string     `yaml:"compare_column_2,omitempty" json:"compare_column_2,omitempty"`
	Tolerance      *Tolerance `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`
}

// Validate rejects malformed reconciliation rules before evaluation.
func (r *ReconciliationRule) Validate() error {
	component := fmt.Sprintf("reconciliation rule %s", r.ID)
	switch r.Kind {
	case KeyMatch, ValueEquals, FuzzyMatch, AggregateSum, AggregateCount, AggregateAvg:
	default:
		return errors.NewConfigError(component,
			fmt.Sprintf("unknown check kind %q", r.Kind), errors.ErrUnknownCheck)
	}
	// Dataset-2 columns may be omitted; the comparator resolves them
	// through the column mappings.
	if r.Kind == KeyMatch || r.Kind == ValueEquals || r.Kind == FuzzyMatch {
		if r.KeyColumn1 == "" {
			return errors.NewConfigError(component, "key column is required", nil)
		}
	}
	if r.Kind == ValueEquals || r.Kind == FuzzyMatch || r.Kind == AggregateSum || r.Kind == AggregateAvg {
		if r.CompareColumn1 == "" {
			return errors.NewConfigError(component, "compare column is required", nil)
		}
	}
	if r.Tolerance != nil {
		if err := r.Tolerance.Validate(); err != nil {
			return errors.NewConfigError(component, "malformed tolerance", err)
		}
	}
	return nil
}

// ValidationRule configures one per-record predicate over a dataset.
type ValidationRule struct {
	ID       string    `yaml:"id" json:"id"`
	Name     string    `yaml:"name" json:"name"`
	Active   bool      `yaml:"active" json:"active"`
	Column   string    `yaml:"column" json:"column"`
	Kind     CheckKind `yaml:"check" json:"check"`
	Param1   string    `yaml:"parameter_1,omitempty" json:"parameter_1,omitempty"`
	Param2   string    `yaml:"parameter_2,omitempty" json:"parameter_2,omitempty"`
	Severity Severity  `yaml:"severity,omitempty" json:"severity,omitempty"`
}

// knownChecks is the closed validation catalogue.
var knownChecks = map[CheckKind]struct{}{
	NotNull: {}, NotEmpty: {},
	GreaterThan: {}, LessThan: {}, Between: {},
	Equals: {}, NotEquals: {},
	IsInList: {}, NotInList: {},
	RegexMatch: {}, StartsWith: {}, EndsWith: {}, Contains: {},
	IsNumeric: {}, IsInteger: {}, IsDate: {},
	Unique: {},
	MinLength: {}, MaxLength: {},
}

// KnownCheck reports whether the kind is in the validation catalogue.
func KnownCheck(kind CheckKind) bool {
	_, ok := knownChecks[kind]
	return ok
}

// Validate rejects malformed validation rules before evaluation.
func (r *ValidationRule) Validate() error {
	component := fmt.Sprintf("validation rule %s", r.ID)
	if !KnownCheck(r.Kind) {
		return errors.NewConfigError(component,
			fmt.Sprintf("unknown check kind %q", r.Kind), errors.ErrUnknownCheck)
	}
	if r.Column == "" {
		return errors.NewConfigError(component, "target column is required", nil)
	}
	if r.Kind == Between {
		low, err1 := strconv.ParseFloat(r.Param1, 64)
		high, err2 := strconv.ParseFloat(r.Param2, 64)
		if err1 != nil || err2 != nil {
			return errors.NewConfigError(component, "between requires numeric parameters", nil)
		}
		if low > high {
			return errors.NewConfigError(component,
				fmt.Sprintf("between bounds are inverted: %v > %v", low, high), nil)
		}
	}
	return nil
}

// ActiveReconciliation filters to active rules; inactive rules are
// excluded before evaluation and never appear in results.
func ActiveReconciliation(rs []ReconciliationRule) []ReconciliationRule {
	active := make([]ReconciliationRule, 0, len(rs))
	for _, r := range rs {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// ActiveValidation filters to active validation rules.
func ActiveValidation(rs []ValidationRule) []ValidationRule {
	active := make([]ValidationRule, 0, len(rs))
	for _, r := range rs {
		if r.Active {
			active = append(active, r)
		}
	}
	return active
}

// UniqueIDs verifies rule ids are unique within a rule set.
func UniqueIDs(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return errors.NewConfigError("rules",
				fmt.Sprintf("duplicate rule id %q", id), nil)
		}
		seen[id] = struct{}{}
	}
	return nil
}
