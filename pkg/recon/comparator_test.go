package recon

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

func newDataset(t *testing.T, name string, columns []string, rows [][]string) *tabular.Dataset {
	t.Helper()
	records := make([]tabular.Record, len(rows))
	for i, row := range rows {
		require.Len(t, row, len(columns))
		rec := make(tabular.Record, len(columns))
		for j, col := range columns {
			rec[col] = tabular.Infer(row[j])
		}
		records[i] = rec
	}
	return tabular.NewDataset(name, columns, records)
}

func sourceDatasets(t *testing.T) (*tabular.Dataset, *tabular.Dataset) {
	t.Helper()
	ds1 := newDataset(t, "bank", []string{"transaction_id", "amount", "payee", "date"}, [][]string{
		{"T1", "100.00", "ACME Corporation", "2024-01-10"},
		{"T2", "250.50", "Globex Inc", "2024-01-11"},
		{"T3", "75.25", "Initech LLC", "2024-01-12"},
		{"T5", "2024.25", "Umbrella Corp", "2024-01-14"},
	})
	ds2 := newDataset(t, "ledger", []string{"txn_id", "total", "vendor", "posted"}, [][]string{
		{"T1", "100.00", "ACME Corp", "2024-01-10"},
		{"T2", "250.50", "Globex Inc", "2024-01-11"},
		{"T4", "13.00", "Hooli", "2024-01-13"},
		{"T5", "2024.25", "Umbrella Corp", "2024-01-14"},
	})
	return ds1, ds2
}

func testMappings() rules.Mappings {
	return rules.Mappings{
		{Source1: "transaction_id", Source2: "txn_id"},
		{Source1: "amount", Source2: "total", Type: "numeric"},
		{Source1: "payee", Source2: "vendor"},
		{Source1: "date", Source2: "posted", Type: "date"},
	}
}

func TestEvaluateKeyMatch(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:         "R001",
		Name:       "Transaction ids present in both sources",
		Active:     true,
		Kind:       rules.KeyMatch,
		KeyColumn1: "transaction_id",
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, results.StatusFail, f.Status)
	assert.Equal(t, "ALL", f.RecordKey)
	assert.Equal(t, "2 unmatched", f.Difference)
	assert.Contains(t, f.Detail, "3 matched")
	assert.Contains(t, f.Detail, "T3")
	assert.Contains(t, f.Detail, "T4")

	// Five distinct keys across both sources, two unmatched.
	assert.Equal(t, 5, summary.Total)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 2, summary.Failed)
}

func TestEvaluateKeyMatchAllPresent(t *testing.T) {
	ds := newDataset(t, "a", []string{"id"}, [][]string{{"1"}, {"2"}})
	c := New(nil)

	rule := rules.ReconciliationRule{ID: "R001", Kind: rules.KeyMatch, KeyColumn1: "id"}
	findings, summary := c.Evaluate(context.Background(), rule, ds, ds)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, results.StatusPass, summary.Status())
}

func TestEvaluateValueEquals(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:             "R002",
		Name:           "Amounts agree within 1%",
		Kind:           rules.ValueEquals,
		KeyColumn1:     "transaction_id",
		CompareColumn1: "amount",
		Tolerance:      &rules.Tolerance{Type: rules.TolerancePercentage, Value: 1},
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1, "all matched pairs agree, expect the single PASS row")
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, results.StatusPass, summary.Status())
	assert.Equal(t, 3, summary.Total, "T1, T2, and T5 join")
	assert.Equal(t, 3, summary.Passed)
}

func TestEvaluateValueEqualsMismatch(t *testing.T) {
	ds1 := newDataset(t, "a", []string{"id", "amount"}, [][]string{
		{"1", "100"},
		{"2", "200"},
		{"3", "300"},
	})
	ds2 := newDataset(t, "b", []string{"id", "amount"}, [][]string{
		{"1", "100"},
		{"2", "215"},
		{"3", ""},
	})
	c := New(nil)

	rule := rules.ReconciliationRule{
		ID:             "R002",
		Kind:           rules.ValueEquals,
		KeyColumn1:     "id",
		CompareColumn1: "amount",
		Tolerance:      &rules.Tolerance{Type: rules.ToleranceAbsolute, Value: 5},
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 2)
	results.SortReconciliation(findings)

	assert.Equal(t, "2", findings[0].RecordKey)
	assert.Equal(t, "15", findings[0].Difference)
	assert.Equal(t, "3", findings[1].RecordKey)
	assert.Equal(t, "NULL mismatch", findings[1].Difference)

	// Three joined pairs evaluated; the clean one counts as passed.
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, 1, summary.Passed)
}

func TestEvaluateFuzzyMatch(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:             "R003",
		Name:           "Payee names are similar",
		Kind:           rules.FuzzyMatch,
		KeyColumn1:     "transaction_id",
		CompareColumn1: "payee",
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	// "ACME Corporation" vs "ACME Corp" scores 0.72 against the 0.8
	// default; the other matched pairs are identical.
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusFail, findings[0].Status)
	assert.Equal(t, rules.SeverityWarning, findings[0].Severity)
	assert.Equal(t, "T1", findings[0].RecordKey)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.BySeverity[rules.SeverityWarning])
}

func TestEvaluateFuzzyMatchLooseThreshold(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:             "R003",
		Kind:           rules.FuzzyMatch,
		KeyColumn1:     "transaction_id",
		CompareColumn1: "payee",
		Tolerance:      &rules.Tolerance{Type: rules.TolerancePercentage, Value: 70},
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, results.StatusPass, summary.Status())
}

func TestEvaluateAggregateSum(t *testing.T) {
	ds1 := newDataset(t, "a", []string{"amount"}, [][]string{
		{"1000"}, {"1450"},
	})
	ds2 := newDataset(t, "b", []string{"amount"}, [][]string{
		{"1000"}, {"949.5"},
	})
	c := New(nil)

	rule := rules.ReconciliationRule{
		ID:             "R004",
		Kind:           rules.AggregateSum,
		CompareColumn1: "amount",
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)

	f := findings[0]
	assert.Equal(t, results.StatusFail, f.Status)
	assert.Equal(t, "AGGREGATE_SUM", f.RecordKey)
	assert.Equal(t, "2450.00", f.Value1)
	assert.Equal(t, "1949.50", f.Value2)
	assert.Equal(t, "500.5", f.Difference)
	assert.Equal(t, results.StatusFail, summary.Status())
}

func TestEvaluateAggregateSumSkipsNulls(t *testing.T) {
	ds1 := newDataset(t, "a", []string{"amount"}, [][]string{
		{"10"}, {""}, {"20"},
	})
	c := New(nil)

	rule := rules.ReconciliationRule{
		ID:             "R004",
		Kind:           rules.AggregateSum,
		CompareColumn1: "amount",
	}

	findings, _ := c.Evaluate(context.Background(), rule, ds1, ds1)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, "30.00", findings[0].Value1)
}

func TestEvaluateAggregateAvg(t *testing.T) {
	ds1 := newDataset(t, "a", []string{"v"}, [][]string{{"10"}, {"20"}})
	ds2 := newDataset(t, "b", []string{"v"}, [][]string{{"14"}, {"16"}})
	c := New(nil)

	rule := rules.ReconciliationRule{
		ID:             "R005",
		Kind:           rules.AggregateAvg,
		CompareColumn1: "v",
		Tolerance:      &rules.Tolerance{Type: rules.ToleranceAbsolute, Value: 1},
	}

	findings, _ := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, "AGGREGATE_AVG", findings[0].RecordKey)
}

func TestEvaluateAggregateCount(t *testing.T) {
	ds1 := newDataset(t, "a", []string{"v"}, [][]string{{"1"}, {"2"}, {"3"}})
	ds2 := newDataset(t, "b", []string{"v"}, [][]string{{"1"}, {"2"}})
	c := New(nil)

	rule := rules.ReconciliationRule{ID: "R006", Kind: rules.AggregateCount}

	findings, _ := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusFail, findings[0].Status)
	assert.Equal(t, "3", findings[0].Value1)
	assert.Equal(t, "2", findings[0].Value2)

	t.Run("tolerated count drift", func(t *testing.T) {
		rule.Tolerance = &rules.Tolerance{Type: rules.ToleranceAbsolute, Value: 1}
		findings, _ := c.Evaluate(context.Background(), rule, ds1, ds2)
		require.Len(t, findings, 1)
		assert.Equal(t, results.StatusPass, findings[0].Status)
	})
}

func TestEvaluateMissingColumn(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:             "R007",
		Kind:           rules.ValueEquals,
		KeyColumn1:     "transaction_id",
		CompareColumn1: "fee",
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusError, findings[0].Status)
	assert.Equal(t, "N/A", findings[0].RecordKey)
	assert.Contains(t, findings[0].Detail, "fee")
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, results.StatusError, summary.Status())
}

func TestEvaluateInvalidRule(t *testing.T) {
	ds1, ds2 := sourceDatasets(t)
	c := New(nil)

	rule := rules.ReconciliationRule{ID: "R008", Kind: "checksum"}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusError, findings[0].Status)
	assert.Equal(t, 1, summary.Errors)
}

func TestEvaluateMappedColumns(t *testing.T) {
	// Dataset-2 columns resolve through the mappings when the rule
	// leaves them blank.
	ds1, ds2 := sourceDatasets(t)
	c := New(testMappings())

	rule := rules.ReconciliationRule{
		ID:             "R009",
		Kind:           rules.ValueEquals,
		KeyColumn1:     "transaction_id",
		CompareColumn1: "date",
		Tolerance:      &rules.Tolerance{Type: rules.ToleranceDays, Value: 0},
	}

	findings, summary := c.Evaluate(context.Background(), rule, ds1, ds2)
	require.Len(t, findings, 1)
	assert.Equal(t, results.StatusPass, findings[0].Status)
	assert.Equal(t, results.StatusPass, summary.Status())
}
