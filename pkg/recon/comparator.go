package recon

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// maxKeySamples bounds the unmatched-key sample carried on a key_match
// finding so reports stay readable on large datasets.
const maxKeySamples = 10

// Comparator evaluates reconciliation rules against a dataset pair.
// It is stateless across Evaluate calls and safe for concurrent use as
// long as the datasets honor the read-only run contract.
type Comparator struct {
	mappings rules.Mappings
}

// New creates a Comparator with the given column mappings.
func New(mappings rules.Mappings) *Comparator {
	return &Comparator{mappings: mappings}
}

// Evaluate runs one rule against the dataset pair. Any failure inside
// the rule — malformed configuration, missing column, unexpected error —
// degrades to a single ERROR-status finding; it never propagates.
func (c *Comparator) Evaluate(ctx context.Context, rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary) {
	logger := logging.FromContext(ctx)
	logger.Info().
		Str("rule_id", rule.ID).
		Str("check", string(rule.Kind)).
		Msg("Executing reconciliation rule")

	findings, summary, err := c.evaluate(rule, ds1, ds2)
	if err != nil {
		logger.Error().Err(err).Str("rule_id", rule.ID).Msg("Reconciliation rule failed")
		finding := errorFinding(rule, errors.WrapRule(rule.ID, "reconciliation", err))
		summary = results.Summary{}
		summary.Count(results.StatusError, rules.SeverityError)
		return []results.Reconciliation{finding}, summary
	}
	return findings, summary
}

// evaluate dispatches on the check kind; the closed kind set makes an
// unknown kind a configuration error surfaced by Validate. The summary
// counts every evaluated unit — keys for key_match, joined pairs for
// the value checks, one comparison for the aggregates — not the
// emitted findings.
func (c *Comparator) evaluate(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	if err := rule.Validate(); err != nil {
		return nil, results.Summary{}, err
	}

	switch rule.Kind {
	case rules.KeyMatch:
		return c.keyMatch(rule, ds1, ds2)
	case rules.ValueEquals:
		return c.valueEquals(rule, ds1, ds2)
	case rules.FuzzyMatch:
		return c.fuzzyMatch(rule, ds1, ds2)
	case rules.AggregateSum, rules.AggregateAvg:
		return c.aggregate(rule, ds1, ds2)
	case rules.AggregateCount:
		return c.aggregateCount(rule, ds1, ds2)
	default:
		return nil, results.Summary{}, errors.ErrUnknownCheck
	}
}

// keyColumns resolves the key column for each dataset, consulting the
// column mappings when the rule leaves the second side blank.
func (c *Comparator) keyColumns(rule rules.ReconciliationRule) (string, string) {
	key2 := rule.KeyColumn2
	if key2 == "" {
		key2 = c.mappings.Map(rule.KeyColumn1)
	}
	return rule.KeyColumn1, key2
}

// compareColumns resolves the compare column for each dataset.
func (c *Comparator) compareColumns(rule rules.ReconciliationRule) (string, string) {
	col2 := rule.CompareColumn2
	if col2 == "" {
		col2 = c.mappings.Map(rule.CompareColumn1)
	}
	return rule.CompareColumn1, col2
}

// keyMatch partitions the two key sets into matched, only-in-1, and
// only-in-2, and emits one finding summarizing the partition. The
// summary counts each distinct key across both sets.
func (c *Comparator) keyMatch(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	key1, key2 := c.keyColumns(rule)

	keys1, err := ds1.KeySet(key1)
	if err != nil {
		return nil, results.Summary{}, err
	}
	keys2, err := ds2.KeySet(key2)
	if err != nil {
		return nil, results.Summary{}, err
	}

	var matched, only1, only2 []string
	for k := range keys1 {
		if _, ok := keys2[k]; ok {
			matched = append(matched, k)
		} else {
			only1 = append(only1, k)
		}
	}
	for k := range keys2 {
		if _, ok := keys1[k]; !ok {
			only2 = append(only2, k)
		}
	}
	sort.Strings(only1)
	sort.Strings(only2)

	var summary results.Summary
	for range matched {
		summary.Count(results.StatusPass, "")
	}
	for i := 0; i < len(only1)+len(only2); i++ {
		summary.Count(results.StatusFail, rules.SeverityError)
	}

	if len(only1) == 0 && len(only2) == 0 {
		return []results.Reconciliation{{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			RecordKey:  "ALL",
			Value1:     fmt.Sprintf("%d keys", len(keys1)),
			Value2:     fmt.Sprintf("%d keys", len(keys2)),
			Difference: "0",
			Status:     results.StatusPass,
			Severity:   rules.SeverityInfo,
			Detail:     fmt.Sprintf("All %d keys matched between datasets", len(matched)),
		}}, summary, nil
	}

	detail := fmt.Sprintf("%d matched, %d only in %s, %d only in %s",
		len(matched), len(only1), ds1.Name(), len(only2), ds2.Name())
	if len(only1) > 0 {
		detail += fmt.Sprintf("; missing from %s: %s", ds2.Name(), sampleList(only1))
	}
	if len(only2) > 0 {
		detail += fmt.Sprintf("; missing from %s: %s", ds1.Name(), sampleList(only2))
	}

	return []results.Reconciliation{{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		RecordKey:  "ALL",
		Value1:     fmt.Sprintf("%d keys", len(keys1)),
		Value2:     fmt.Sprintf("%d keys", len(keys2)),
		Difference: fmt.Sprintf("%d unmatched", len(only1)+len(only2)),
		Status:     results.StatusFail,
		Severity:   rules.SeverityError,
		Detail:     detail,
	}}, summary, nil
}

// sampleList renders a bounded sample of keys for reporting.
func sampleList(keys []string) string {
	if len(keys) <= maxKeySamples {
		return strings.Join(keys, ", ")
	}
	return fmt.Sprintf("%s, ... (%d more)",
		strings.Join(keys[:maxKeySamples], ", "), len(keys)-maxKeySamples)
}

// matchedPair is one inner-joined record pair.
type matchedPair struct {
	key  string
	val1 tabular.Value
	val2 tabular.Value
}

// join inner-joins the datasets on their key columns and projects the
// compare columns. Keys present on only one side are key_match's
// concern, not reported here.
func (c *Comparator) join(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]matchedPair, error) {
	key1, key2 := c.keyColumns(rule)
	col1, col2 := c.compareColumns(rule)

	if !ds1.HasColumn(col1) {
		return nil, errors.NewColumnError(col1, ds1.Name(), ds1.Columns())
	}
	if !ds2.HasColumn(col2) {
		return nil, errors.NewColumnError(col2, ds2.Name(), ds2.Columns())
	}
	if !ds1.HasColumn(key1) {
		return nil, errors.NewColumnError(key1, ds1.Name(), ds1.Columns())
	}

	index2, err := ds2.Index(key2)
	if err != nil {
		return nil, err
	}

	pairs := make([]matchedPair, 0, ds1.Len())
	seen := make(map[string]struct{}, ds1.Len())
	for i := 0; i < ds1.Len(); i++ {
		rec1 := ds1.Record(i)
		key := rec1.Value(key1).String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		rec2, ok := index2[key]
		if !ok {
			continue
		}
		pairs = append(pairs, matchedPair{
			key:  key,
			val1: rec1.Value(col1),
			val2: rec2.Value(col2),
		})
	}
	return pairs, nil
}

// valueEquals compares mapped column values for every matched key under
// the rule's tolerance, producing one finding per failing pair. Every
// compared pair counts into the summary.
func (c *Comparator) valueEquals(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	pairs, err := c.join(rule, ds1, ds2)
	if err != nil {
		return nil, results.Summary{}, err
	}
	col1, col2 := c.compareColumns(rule)

	var summary results.Summary
	var findings []results.Reconciliation
	for _, p := range pairs {
		match, diff := Compare(p.val1, p.val2, rule.Tolerance)
		if match {
			summary.Count(results.StatusPass, "")
			continue
		}
		summary.Count(results.StatusFail, rules.SeverityError)
		findings = append(findings, results.Reconciliation{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			RecordKey:  p.key,
			Value1:     p.val1.String(),
			Value2:     p.val2.String(),
			Difference: diff.String(),
			Status:     results.StatusFail,
			Severity:   rules.SeverityError,
			Detail:     fmt.Sprintf("Value mismatch for %s/%s: %s vs %s", col1, col2, p.val1, p.val2),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, passFinding(rule,
			fmt.Sprintf("%d values", len(pairs)),
			fmt.Sprintf("All %d values matched within tolerance", len(pairs))))
	}
	return findings, summary, nil
}

// fuzzyMatch scores normalized text similarity for every matched key
// and fails pairs scoring below the rule's threshold.
func (c *Comparator) fuzzyMatch(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	pairs, err := c.join(rule, ds1, ds2)
	if err != nil {
		return nil, results.Summary{}, err
	}
	threshold := fuzzyThreshold(rule.Tolerance)

	var summary results.Summary
	var findings []results.Reconciliation
	for _, p := range pairs {
		ratio := NormalizedSimilarity(p.val1.String(), p.val2.String())
		if ratio >= threshold {
			summary.Count(results.StatusPass, "")
			continue
		}
		summary.Count(results.StatusFail, rules.SeverityWarning)
		findings = append(findings, results.Reconciliation{
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			RecordKey:  p.key,
			Value1:     p.val1.String(),
			Value2:     p.val2.String(),
			Difference: fmt.Sprintf("%.1f%%", ratio*100),
			Status:     results.StatusFail,
			Severity:   rules.SeverityWarning,
			Detail: fmt.Sprintf("Similarity below threshold (%.1f%% < %.0f%%)",
				ratio*100, threshold*100),
		})
	}

	if len(findings) == 0 {
		findings = append(findings, passFinding(rule,
			fmt.Sprintf("%d values", len(pairs)),
			fmt.Sprintf("All %d text values matched within similarity threshold", len(pairs))))
	}
	return findings, summary, nil
}

// fuzzyThreshold derives the similarity threshold from the rule's
// tolerance. Percentage tolerances are scaled to [0,1]; absent or zero
// tolerance uses the default.
func fuzzyThreshold(tol *rules.Tolerance) float64 {
	if tol == nil || tol.Value == 0 {
		return DefaultFuzzyThreshold
	}
	if tol.Value > 1 {
		return tol.Value / 100
	}
	return tol.Value
}

// aggregate compares a column statistic (sum or average) computed
// independently over each dataset, under the rule's tolerance. One
// comparison, one summary entry.
func (c *Comparator) aggregate(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	col1, col2 := c.compareColumns(rule)

	stat1, err := columnStat(ds1, col1, rule.Kind)
	if err != nil {
		return nil, results.Summary{}, err
	}
	stat2, err := columnStat(ds2, col2, rule.Kind)
	if err != nil {
		return nil, results.Summary{}, err
	}

	match, diff := Compare(tabular.Number(stat1), tabular.Number(stat2), rule.Tolerance)

	name := "Sum"
	key := "AGGREGATE_SUM"
	if rule.Kind == rules.AggregateAvg {
		name = "Average"
		key = "AGGREGATE_AVG"
	}

	finding := results.Reconciliation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		RecordKey:  key,
		Value1:     fmt.Sprintf("%.2f", stat1),
		Value2:     fmt.Sprintf("%.2f", stat2),
		Difference: diff.String(),
		Status:     results.StatusPass,
		Severity:   rules.SeverityInfo,
		Detail:     fmt.Sprintf("%s comparison: %s=%.2f vs %s=%.2f", name, col1, stat1, col2, stat2),
	}
	if !match {
		finding.Status = results.StatusFail
		finding.Severity = rules.SeverityError
	}
	var summary results.Summary
	summary.Count(finding.Status, finding.Severity)
	return []results.Reconciliation{finding}, summary, nil
}

// aggregateCount compares record counts; the compare column is ignored.
func (c *Comparator) aggregateCount(rule rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) ([]results.Reconciliation, results.Summary, error) {
	count1 := float64(ds1.Len())
	count2 := float64(ds2.Len())

	match, diff := Compare(tabular.Number(count1), tabular.Number(count2), rule.Tolerance)

	finding := results.Reconciliation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		RecordKey:  "AGGREGATE_COUNT",
		Value1:     fmt.Sprintf("%d", ds1.Len()),
		Value2:     fmt.Sprintf("%d", ds2.Len()),
		Difference: diff.String(),
		Status:     results.StatusPass,
		Severity:   rules.SeverityInfo,
		Detail: fmt.Sprintf("Record count: %s=%d, %s=%d",
			ds1.Name(), ds1.Len(), ds2.Name(), ds2.Len()),
	}
	if !match {
		finding.Status = results.StatusFail
		finding.Severity = rules.SeverityWarning
	}
	var summary results.Summary
	summary.Count(finding.Status, finding.Severity)
	return []results.Reconciliation{finding}, summary, nil
}

// columnStat computes the named statistic over a column, skipping null
// cells. A non-coercible cell fails the rule rather than one record;
// aggregate checks have no per-record granularity to degrade to.
func columnStat(ds *tabular.Dataset, column string, kind rules.ReconKind) (float64, error) {
	values, err := ds.Column(column)
	if err != nil {
		return 0, err
	}

	var sum float64
	var n int
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		f, err := v.AsNumber()
		if err != nil {
			return 0, err
		}
		sum += f
		n++
	}

	if kind == rules.AggregateAvg {
		if n == 0 {
			return 0, nil
		}
		return sum / float64(n), nil
	}
	return sum, nil
}

// passFinding builds the single PASS finding emitted when every
// compared pair matched.
func passFinding(rule rules.ReconciliationRule, counts, detail string) results.Reconciliation {
	return results.Reconciliation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		RecordKey:  "ALL",
		Value1:     counts,
		Value2:     counts,
		Difference: "0",
		Status:     results.StatusPass,
		Severity:   rules.SeverityInfo,
		Detail:     detail,
	}
}

// errorFinding converts a rule-boundary error into an ERROR finding so
// the report still carries one row for the rule.
func errorFinding(rule rules.ReconciliationRule, err error) results.Reconciliation {
	return results.Reconciliation{
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		RecordKey:  "N/A",
		Value1:     "N/A",
		Value2:     "N/A",
		Difference: "N/A",
		Status:     results.StatusError,
		Severity:   rules.SeverityError,
		Detail:     err.Error(),
	}
}
