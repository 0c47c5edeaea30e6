package assist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

func fakeHelper(response string) (*Helper, *fakeGenerator) {
	gen := &fakeGenerator{response: response}
	return &Helper{model: "test-model", gen: gen}, gen
}

func TestNewDisabled(t *testing.T) {
	h, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.False(t, h.Available())

	_, err = h.ParseValidationRule(context.Background(), "amount must be set", nil)
	assert.ErrorIs(t, err, errors.ErrAPIKeyRequired)
}

func TestNewEnabledWithoutKey(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, Model: "m"})
	assert.ErrorIs(t, err, errors.ErrAPIKeyRequired)
}

func TestParseValidationRule(t *testing.T) {
	h, gen := fakeHelper(`{
		"id": "V010",
		"name": "Amount must be positive",
		"active": true,
		"column": "amount",
		"check": "greater_than",
		"parameter_1": "0",
		"severity": "ERROR"
	}`)

	rule, err := h.ParseValidationRule(context.Background(),
		"the amount column must always be positive", []string{"id", "amount"})
	require.NoError(t, err)

	assert.Equal(t, "V010", rule.ID)
	assert.Equal(t, rules.GreaterThan, rule.Kind)
	assert.Equal(t, "0", rule.Param1)
	assert.Equal(t, rules.SeverityError, rule.Severity)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Available columns: id, amount")
}

func TestParseValidationRuleFencedResponse(t *testing.T) {
	h, _ := fakeHelper("```json\n{\"id\": \"V011\", \"column\": \"status\", \"check\": \"not_null\"}\n```")

	rule, err := h.ParseValidationRule(context.Background(), "status is required", nil)
	require.NoError(t, err)
	assert.Equal(t, rules.NotNull, rule.Kind)
	assert.Equal(t, rules.SeverityError, rule.Severity, "severity defaults when the model omits it")
}

func TestParseValidationRuleRejectsInvalid(t *testing.T) {
	h, _ := fakeHelper(`{"id": "V012", "column": "x", "check": "is_prime"}`)
	_, err := h.ParseValidationRule(context.Background(), "x must be prime", nil)
	require.Error(t, err)
	assert.True(t, errors.IsUnknownCheck(err))
}

func TestParseValidationRuleMalformedResponse(t *testing.T) {
	h, _ := fakeHelper("sorry, I cannot help with that")
	_, err := h.ParseValidationRule(context.Background(), "whatever", nil)
	require.Error(t, err)
}

func TestParseReconciliationRule(t *testing.T) {
	h, _ := fakeHelper(`{
		"id": "R010",
		"name": "Amounts within 2 percent",
		"active": true,
		"check": "value_equals",
		"key_column_1": "transaction_id",
		"compare_column_1": "amount",
		"tolerance": {"type": "percentage", "value": 2}
	}`)

	rule, err := h.ParseReconciliationRule(context.Background(),
		"amounts should agree within two percent", nil)
	require.NoError(t, err)

	assert.Equal(t, rules.ValueEquals, rule.Kind)
	require.NotNil(t, rule.Tolerance)
	assert.Equal(t, rules.TolerancePercentage, rule.Tolerance.Type)
	assert.Equal(t, 2.0, rule.Tolerance.Value)
}

func TestSuggestRules(t *testing.T) {
	h, _ := fakeHelper(`[
		{
			"rule": {"id": "V020", "column": "amount", "check": "not_null"},
			"rationale": "No nulls observed in the sample"
		},
		{
			"rule": {"id": "V021", "column": "amount", "check": "is_prime"},
			"rationale": "Invalid suggestion that must be dropped"
		},
		{
			"rule": {"id": "V022", "check": "is_numeric"},
			"rationale": "Column defaults from the profile"
		}
	]`)

	profile := ColumnProfile{Column: "amount", TotalCount: 10, IsNumeric: true}
	suggestions, err := h.SuggestRules(context.Background(), profile)
	require.NoError(t, err)

	require.Len(t, suggestions, 2, "structurally invalid suggestions are dropped")
	assert.Equal(t, "V020", suggestions[0].Rule.ID)
	assert.Equal(t, "amount", suggestions[1].Rule.Column)
}

func TestExplainFinding(t *testing.T) {
	h, gen := fakeHelper("The amounts differ by 1.00, likely a rounding difference. Check the export precision.")

	explanation, err := h.ExplainFinding(context.Background(), results.Reconciliation{
		RuleID: "R002", RecordKey: "T2", Value1: "250", Value2: "251",
		Difference: "1", Status: results.StatusFail,
	})
	require.NoError(t, err)
	assert.Contains(t, explanation, "rounding")
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "T2")
}

func TestProfile(t *testing.T) {
	ds := tabular.NewDataset("txns", []string{"amount"}, []tabular.Record{
		{"amount": tabular.Number(10)},
		{"amount": tabular.Number(-5)},
		{"amount": tabular.Number(10)},
		{"amount": tabular.Null()},
	})

	profile, err := Profile(ds, "amount")
	require.NoError(t, err)

	assert.Equal(t, 4, profile.TotalCount)
	assert.Equal(t, 1, profile.NullCount)
	assert.InDelta(t, 0.25, profile.NullRate, 1e-9)
	assert.Equal(t, 2, profile.DistinctCount)
	assert.False(t, profile.AllUnique)
	assert.True(t, profile.IsNumeric)
	assert.True(t, profile.HasNegatives)
	require.NotNil(t, profile.Min)
	assert.Equal(t, -5.0, *profile.Min)
	require.NotNil(t, profile.Max)
	assert.Equal(t, 10.0, *profile.Max)
	require.NotNil(t, profile.Mean)
	assert.InDelta(t, 5.0, *profile.Mean, 1e-9)
	assert.Len(t, profile.Samples, 2)
}

func TestProfileStringColumn(t *testing.T) {
	ds := tabular.NewDataset("txns", []string{"payee"}, []tabular.Record{
		{"payee": tabular.String("ACME")},
		{"payee": tabular.String("Globex Inc")},
	})

	profile, err := Profile(ds, "payee")
	require.NoError(t, err)

	assert.False(t, profile.IsNumeric)
	assert.True(t, profile.AllUnique)
	assert.Equal(t, 4, profile.MinLength)
	assert.Equal(t, 10, profile.MaxLength)
	assert.Nil(t, profile.Mean)
}

func TestProfileMissingColumn(t *testing.T) {
	ds := tabular.NewDataset("txns", []string{"payee"}, nil)
	_, err := Profile(ds, "amount")
	require.Error(t, err)
}
