package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
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

func quietRunner(opts ...Option) *Runner {
	opts = append([]Option{WithExecutionLog(NewExecutionLog(&logging.Nop))}, opts...)
	return New(nil, opts...)
}

func testInput(t *testing.T) Input {
	t.Helper()
	ds1 := newDataset(t, "bank", []string{"id", "amount"}, [][]string{
		{"T1", "100"},
		{"T2", "250"},
		{"T3", "75"},
	})
	ds2 := newDataset(t, "ledger", []string{"id", "amount"}, [][]string{
		{"T1", "100"},
		{"T2", "251"},
	})
	return Input{
		Dataset1: ds1,
		Dataset2: ds2,
		ReconRules: []rules.ReconciliationRule{
			{ID: "R001", Name: "keys", Active: true, Kind: rules.KeyMatch, KeyColumn1: "id"},
			{ID: "R002", Name: "amounts", Active: true, Kind: rules.ValueEquals,
				KeyColumn1: "id", CompareColumn1: "amount"},
			{ID: "R003", Name: "inactive", Active: false, Kind: rules.KeyMatch, KeyColumn1: "id"},
		},
		ValidationRules: []rules.ValidationRule{
			{ID: "V001", Name: "amount set", Active: true, Column: "amount", Kind: rules.NotNull},
			{ID: "V002", Name: "amount positive", Active: true, Column: "amount",
				Kind: rules.GreaterThan, Param1: "0"},
		},
	}
}

func TestRun(t *testing.T) {
	r := quietRunner(WithWorkers(2))
	report, err := r.Run(context.Background(), testInput(t))
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))
	assert.Equal(t, results.StatusFail, report.Status, "key mismatch and amount drift fail the run")

	// key_match evaluated 3 keys (one unmatched), value_equals 2 joined
	// pairs (one drifted); the inactive rule left no trace.
	assert.Equal(t, 5, report.Reconciliation.Summary.Total)
	assert.Equal(t, 3, report.Reconciliation.Summary.Passed)
	assert.Equal(t, 2, report.Reconciliation.Summary.Failed)
	for _, f := range report.Reconciliation.Findings {
		assert.NotEqual(t, "R003", f.RuleID)
	}

	// Both validation rules pass every record of the 3-row dataset.
	assert.Equal(t, 6, report.Validation.Summary.Passed)
	assert.Equal(t, results.StatusPass, report.Validation.Summary.Status())

	assert.NotEmpty(t, report.Log, "execution log captures run progress")
}

func TestRunDeterministicOrder(t *testing.T) {
	input := testInput(t)

	first, err := quietRunner(WithWorkers(4)).Run(context.Background(), input)
	require.NoError(t, err)
	second, err := quietRunner(WithWorkers(1)).Run(context.Background(), input)
	require.NoError(t, err)

	require.Equal(t, len(first.Reconciliation.Findings), len(second.Reconciliation.Findings))
	for i := range first.Reconciliation.Findings {
		assert.Equal(t, first.Reconciliation.Findings[i], second.Reconciliation.Findings[i])
	}
	assert.Equal(t, first.Reconciliation.Summary, second.Reconciliation.Summary)
	assert.Equal(t, first.Validation.Summary, second.Validation.Summary)
}

func TestRunDuplicateRuleIDs(t *testing.T) {
	input := testInput(t)
	input.ReconRules = append(input.ReconRules, rules.ReconciliationRule{
		ID: "R001", Active: true, Kind: rules.KeyMatch, KeyColumn1: "id",
	})

	_, err := quietRunner().Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRunValidationDefaultsToFirstDataset(t *testing.T) {
	input := testInput(t)
	input.ReconRules = nil
	input.ValidationData = nil

	report, err := quietRunner().Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Validation.Summary.Passed)
}

func TestRunMissingDatasets(t *testing.T) {
	input := testInput(t)
	input.Dataset2 = nil

	_, err := quietRunner().Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.IsConfig(err))
}

func TestRunCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := quietRunner().Run(ctx, testInput(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrCanceled)
}

func TestRuleErrorDoesNotStopRun(t *testing.T) {
	input := testInput(t)
	input.ReconRules = append(input.ReconRules, rules.ReconciliationRule{
		ID: "R004", Name: "bad column", Active: true, Kind: rules.ValueEquals,
		KeyColumn1: "id", CompareColumn1: "fee",
	})

	report, err := quietRunner().Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reconciliation.Summary.Errors)
	assert.Equal(t, results.StatusError, report.Status)

	var sawErrorRow bool
	for _, f := range report.Reconciliation.Findings {
		if f.RuleID == "R004" {
			sawErrorRow = true
			assert.Equal(t, results.StatusError, f.Status)
		}
	}
	assert.True(t, sawErrorRow, "errored rule still appears in findings")
}

func TestExecutionLogConcurrency(t *testing.T) {
	log := NewExecutionLog(&logging.Nop)
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				log.Infof("Worker", "entry %d/%d", n, j)
			}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}
	assert.Len(t, log.Entries(), 400)
}
