// Package validate implements the per-record validation checker: a
// closed catalogue of predicates evaluated over one dataset, producing
// traceable findings per failing record.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// maxValueWidth truncates long cell values in findings.
const maxValueWidth = 50

// identityColumns is the preference order for resolving a record's
// identifier; the first present column wins for the whole dataset.
var identityColumns = []string{"id", "record_id", "transaction_id"}

// RecordID resolves a stable identifier for record i: the first
// identity column the dataset carries, or a 1-based row label.
func RecordID(ds *tabular.Dataset, i int) string {
	for _, col := range identityColumns {
		if ds.HasColumn(col) {
			return ds.Record(i).Value(col).String()
		}
	}
	return fmt.Sprintf("row_%d", i+1)
}

// predicate is one compiled check: a per-cell test plus the expected
// description carried on findings. Tests return ok and, on failure, a
// human-readable detail.
type predicate struct {
	expected  string
	skipNulls bool
	test      func(v tabular.Value) (bool, string)
}

// builder compiles a rule's parameters into a predicate. Parameter
// errors surface here, before any record is visited.
type builder func(rule rules.ValidationRule) (predicate, error)

// Checker evaluates validation rules against a dataset. The predicate
// registry is built once at construction and never mutated, so a
// single Checker is safe for concurrent rule evaluation.
type Checker struct {
	registry map[rules.CheckKind]builder
}

// New creates a Checker with the full predicate catalogue registered.
func New() *Checker {
	c := &Checker{}
	c.registry = map[rules.CheckKind]builder{
		rules.NotNull:     buildNotNull,
		rules.NotEmpty:    buildNotEmpty,
		rules.GreaterThan: buildGreaterThan,
		rules.LessThan:    buildLessThan,
		rules.Between:     buildBetween,
		rules.Equals:      buildEquals,
		rules.NotEquals:   buildNotEquals,
		rules.IsInList:    buildIsInList,
		rules.NotInList:   buildNotInList,
		rules.RegexMatch:  buildRegexMatch,
		rules.StartsWith:  buildStartsWith,
		rules.EndsWith:    buildEndsWith,
		rules.Contains:    buildContains,
		rules.IsNumeric:   buildIsNumeric,
		rules.IsInteger:   buildIsInteger,
		rules.IsDate:      buildIsDate,
		rules.MinLength:   buildMinLength,
		rules.MaxLength:   buildMaxLength,
	}
	return c
}

// Evaluate runs one rule against the dataset. Failures inside the rule
// degrade to a single ERROR finding; they never propagate, so one bad
// rule cannot take down the run.
func (c *Checker) Evaluate(ctx context.Context, rule rules.ValidationRule, ds *tabular.Dataset) ([]results.Validation, results.Summary) {
	logger := logging.FromContext(ctx)
	logger.Info().
		Str("rule_id", rule.ID).
		Str("check", string(rule.Kind)).
		Str("column", rule.Column).
		Msg("Executing validation rule")

	findings, summary, err := c.evaluate(rule, ds)
	if err != nil {
		logger.Error().Err(err).Str("rule_id", rule.ID).Msg("Validation rule failed")
		finding := errorFinding(rule, errors.WrapRule(rule.ID, "validation", err))
		summary = results.Summary{}
		summary.Count(results.StatusError, rules.SeverityError)
		return []results.Validation{finding}, summary
	}
	return findings, summary
}

// evaluate counts every evaluated record into the summary, passing or
// not; findings carry only the failures (plus one PASS row when clean).
func (c *Checker) evaluate(rule rules.ValidationRule, ds *tabular.Dataset) ([]results.Validation, results.Summary, error) {
	if err := rule.Validate(); err != nil {
		return nil, results.Summary{}, err
	}
	if !ds.HasColumn(rule.Column) {
		return nil, results.Summary{}, errors.NewColumnError(rule.Column, ds.Name(), ds.Columns())
	}

	// Unique needs the whole column at once; everything else is a
	// per-cell predicate.
	if rule.Kind == rules.Unique {
		return c.unique(rule, ds)
	}

	build, ok := c.registry[rule.Kind]
	if !ok {
		return nil, results.Summary{}, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID),
			fmt.Sprintf("unknown check kind %q", rule.Kind), errors.ErrUnknownCheck)
	}
	pred, err := build(rule)
	if err != nil {
		return nil, results.Summary{}, err
	}

	severity := rules.ParseSeverity(string(rule.Severity))
	var summary results.Summary
	var findings []results.Validation
	for i := 0; i < ds.Len(); i++ {
		v := ds.Record(i).Value(rule.Column)
		if pred.skipNulls && v.IsNull() {
			continue
		}
		ok, detail := pred.test(v)
		if ok {
			summary.Count(results.StatusPass, "")
			continue
		}
		summary.Count(results.StatusFail, severity)
		findings = append(findings, results.Validation{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			RecordID: RecordID(ds, i),
			Column:   rule.Column,
			Value:    displayValue(v),
			Expected: pred.expected,
			Status:   results.StatusFail,
			Severity: severity,
			Detail:   detail,
		})
	}

	if len(findings) == 0 {
		findings = append(findings, passFinding(rule, summary.Total))
	}
	return findings, summary, nil
}

// unique flags every record whose column value occurs more than once.
// Nulls never count as duplicates of each other and are not evaluated.
func (c *Checker) unique(rule rules.ValidationRule, ds *tabular.Dataset) ([]results.Validation, results.Summary, error) {
	counts := make(map[string]int, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		v := ds.Record(i).Value(rule.Column)
		if v.IsNull() {
			continue
		}
		counts[v.String()]++
	}

	severity := rules.ParseSeverity(string(rule.Severity))
	var summary results.Summary
	var findings []results.Validation
	for i := 0; i < ds.Len(); i++ {
		v := ds.Record(i).Value(rule.Column)
		if v.IsNull() {
			continue
		}
		if counts[v.String()] <= 1 {
			summary.Count(results.StatusPass, "")
			continue
		}
		summary.Count(results.StatusFail, severity)
		findings = append(findings, results.Validation{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			RecordID: RecordID(ds, i),
			Column:   rule.Column,
			Value:    displayValue(v),
			Expected: "Unique value",
			Status:   results.StatusFail,
			Severity: severity,
			Detail:   fmt.Sprintf("Duplicate value %q found %d times", v.String(), counts[v.String()]),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, passFinding(rule, summary.Total))
	}
	return findings, summary, nil
}

func buildNotNull(rules.ValidationRule) (predicate, error) {
	return predicate{
		expected: "NOT NULL",
		test: func(v tabular.Value) (bool, string) {
			if v.IsNull() {
				return false, "Value is null or missing"
			}
			return true, ""
		},
	}, nil
}

func buildNotEmpty(rules.ValidationRule) (predicate, error) {
	return predicate{
		expected: "NOT EMPTY",
		test: func(v tabular.Value) (bool, string) {
			if v.IsNull() || strings.TrimSpace(v.String()) == "" {
				return false, "Value is empty"
			}
			return true, ""
		},
	}, nil
}

// numericParam parses parameter_1 as the threshold for a numeric check.
func numericParam(rule rules.ValidationRule) (float64, error) {
	f, err := strconv.ParseFloat(rule.Param1, 64)
	if err != nil {
		return 0, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID),
			fmt.Sprintf("parameter_1 %q is not numeric", rule.Param1), err)
	}
	return f, nil
}

// numericTest wraps a float comparison so non-numeric cells fail the
// record rather than being skipped.
func numericTest(cmp func(f float64) (bool, string)) func(v tabular.Value) (bool, string) {
	return func(v tabular.Value) (bool, string) {
		f, err := v.AsNumber()
		if err != nil {
			return false, fmt.Sprintf("Value %q is not numeric", v.String())
		}
		return cmp(f)
	}
}

func buildGreaterThan(rule rules.ValidationRule) (predicate, error) {
	threshold, err := numericParam(rule)
	if err != nil {
		return predicate{}, err
	}
	return predicate{
		expected:  fmt.Sprintf("> %v", threshold),
		skipNulls: true,
		test: numericTest(func(f float64) (bool, string) {
			if f > threshold {
				return true, ""
			}
			return false, fmt.Sprintf("Value %v is not greater than %v", f, threshold)
		}),
	}, nil
}

func buildLessThan(rule rules.ValidationRule) (predicate, error) {
	threshold, err := numericParam(rule)
	if err != nil {
		return predicate{}, err
	}
	return predicate{
		expected:  fmt.Sprintf("< %v", threshold),
		skipNulls: true,
		test: numericTest(func(f float64) (bool, string) {
			if f < threshold {
				return true, ""
			}
			return false, fmt.Sprintf("Value %v is not less than %v", f, threshold)
		}),
	}, nil
}

func buildBetween(rule rules.ValidationRule) (predicate, error) {
	low, err := strconv.ParseFloat(rule.Param1, 64)
	if err != nil {
		return predicate{}, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID), "parameter_1 is not numeric", err)
	}
	high, err := strconv.ParseFloat(rule.Param2, 64)
	if err != nil {
		return predicate{}, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID), "parameter_2 is not numeric", err)
	}
	return predicate{
		expected:  fmt.Sprintf("[%v, %v]", low, high),
		skipNulls: true,
		test: numericTest(func(f float64) (bool, string) {
			if f >= low && f <= high {
				return true, ""
			}
			return false, fmt.Sprintf("Value %v is not between %v and %v", f, low, high)
		}),
	}, nil
}

func buildEquals(rule rules.ValidationRule) (predicate, error) {
	expected := strings.TrimSpace(rule.Param1)
	return predicate{
		expected:  rule.Param1,
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if strings.TrimSpace(v.String()) == expected {
				return true, ""
			}
			return false, fmt.Sprintf("Value %q does not equal %q", v.String(), expected)
		},
	}, nil
}

func buildNotEquals(rule rules.ValidationRule) (predicate, error) {
	forbidden := strings.TrimSpace(rule.Param1)
	return predicate{
		expected:  fmt.Sprintf("NOT %q", forbidden),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if strings.TrimSpace(v.String()) != forbidden {
				return true, ""
			}
			return false, fmt.Sprintf("Value equals forbidden value %q", forbidden)
		},
	}, nil
}

// splitList parses the comma-delimited membership list in parameter_1.
func splitList(param string) []string {
	parts := strings.Split(param, ",")
	list := make([]string, 0, len(parts))
	for _, p := range parts {
		list = append(list, strings.TrimSpace(p))
	}
	return list
}

func buildIsInList(rule rules.ValidationRule) (predicate, error) {
	list := splitList(rule.Param1)
	members := make(map[string]struct{}, len(list))
	for _, m := range list {
		members[m] = struct{}{}
	}
	return predicate{
		expected:  fmt.Sprintf("One of: %s", strings.Join(list, ", ")),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if _, ok := members[strings.TrimSpace(v.String())]; ok {
				return true, ""
			}
			return false, fmt.Sprintf("Value %q is not in the allowed list", v.String())
		},
	}, nil
}

func buildNotInList(rule rules.ValidationRule) (predicate, error) {
	list := splitList(rule.Param1)
	members := make(map[string]struct{}, len(list))
	for _, m := range list {
		members[m] = struct{}{}
	}
	return predicate{
		expected:  fmt.Sprintf("Not one of: %s", strings.Join(list, ", ")),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if _, ok := members[strings.TrimSpace(v.String())]; !ok {
				return true, ""
			}
			return false, fmt.Sprintf("Value %q is in the forbidden list", v.String())
		},
	}, nil
}

func buildRegexMatch(rule rules.ValidationRule) (predicate, error) {
	re, err := regexp.Compile(rule.Param1)
	if err != nil {
		return predicate{}, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID),
			fmt.Sprintf("invalid pattern %q", rule.Param1), err)
	}
	return predicate{
		expected:  fmt.Sprintf("Match pattern: %s", rule.Param1),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if re.MatchString(v.String()) {
				return true, ""
			}
			return false, fmt.Sprintf("Value %q does not match pattern", v.String())
		},
	}, nil
}

func buildStartsWith(rule rules.ValidationRule) (predicate, error) {
	return predicate{
		expected:  fmt.Sprintf("Starts with: %s", rule.Param1),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if strings.HasPrefix(v.String(), rule.Param1) {
				return true, ""
			}
			return false, fmt.Sprintf("Value does not start with %q", rule.Param1)
		},
	}, nil
}

func buildEndsWith(rule rules.ValidationRule) (predicate, error) {
	return predicate{
		expected:  fmt.Sprintf("Ends with: %s", rule.Param1),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if strings.HasSuffix(v.String(), rule.Param1) {
				return true, ""
			}
			return false, fmt.Sprintf("Value does not end with %q", rule.Param1)
		},
	}, nil
}

func buildContains(rule rules.ValidationRule) (predicate, error) {
	return predicate{
		expected:  fmt.Sprintf("Contains: %s", rule.Param1),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if strings.Contains(v.String(), rule.Param1) {
				return true, ""
			}
			return false, fmt.Sprintf("Value does not contain %q", rule.Param1)
		},
	}, nil
}

func buildIsNumeric(rules.ValidationRule) (predicate, error) {
	return predicate{
		expected:  "Numeric value",
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if _, err := v.AsNumber(); err != nil {
				return false, fmt.Sprintf("Value %q is not numeric", v.String())
			}
			return true, ""
		},
	}, nil
}

func buildIsInteger(rules.ValidationRule) (predicate, error) {
	return predicate{
		expected:  "Integer value",
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if _, err := v.AsInteger(); err != nil {
				return false, fmt.Sprintf("Value %q is not an integer", v.String())
			}
			return true, ""
		},
	}, nil
}

func buildIsDate(rule rules.ValidationRule) (predicate, error) {
	format := rule.Param1
	display := format
	if display == "" {
		display = "YYYY-MM-DD"
	}
	return predicate{
		expected:  fmt.Sprintf("Valid date (%s)", display),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			if _, err := v.AsDate(format); err != nil {
				return false, fmt.Sprintf("Value %q is not a valid date", v.String())
			}
			return true, ""
		},
	}, nil
}

// lengthParam parses parameter_1 as a length bound.
func lengthParam(rule rules.ValidationRule) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(rule.Param1))
	if err != nil || n < 0 {
		return 0, errors.NewConfigError(
			fmt.Sprintf("validation rule %s", rule.ID),
			fmt.Sprintf("parameter_1 %q is not a valid length", rule.Param1), err)
	}
	return n, nil
}

func buildMinLength(rule rules.ValidationRule) (predicate, error) {
	min, err := lengthParam(rule)
	if err != nil {
		return predicate{}, err
	}
	return predicate{
		expected:  fmt.Sprintf("Min length: %d", min),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			n := len([]rune(v.String()))
			if n >= min {
				return true, ""
			}
			return false, fmt.Sprintf("Value length %d is less than %d", n, min)
		},
	}, nil
}

func buildMaxLength(rule rules.ValidationRule) (predicate, error) {
	max, err := lengthParam(rule)
	if err != nil {
		return predicate{}, err
	}
	return predicate{
		expected:  fmt.Sprintf("Max length: %d", max),
		skipNulls: true,
		test: func(v tabular.Value) (bool, string) {
			n := len([]rune(v.String()))
			if n <= max {
				return true, ""
			}
			return false, fmt.Sprintf("Value length %d exceeds %d", n, max)
		},
	}, nil
}

// displayValue renders a cell for a finding, truncating long values.
func displayValue(v tabular.Value) string {
	if v.IsNull() {
		return "NULL"
	}
	s := v.String()
	if r := []rune(s); len(r) > maxValueWidth {
		return string(r[:maxValueWidth]) + "..."
	}
	return s
}

// passFinding is the single PASS row emitted when every record passed.
func passFinding(rule rules.ValidationRule, count int) results.Validation {
	return results.Validation{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		RecordID: "ALL",
		Column:   rule.Column,
		Value:    fmt.Sprintf("%d values", count),
		Expected: "Valid",
		Status:   results.StatusPass,
		Severity: rules.SeverityInfo,
		Detail:   fmt.Sprintf("All %d records passed validation", count),
	}
}

// errorFinding converts a rule-boundary error into an ERROR finding.
func errorFinding(rule rules.ValidationRule, err error) results.Validation {
	return results.Validation{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		RecordID: "N/A",
		Column:   rule.Column,
		Value:    "N/A",
		Expected: "N/A",
		Status:   results.StatusError,
		Severity: rules.SeverityError,
		Detail:   err.Error(),
	}
}
