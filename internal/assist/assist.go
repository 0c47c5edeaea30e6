// Package assist provides optional model-assisted features: turning
// natural language rule descriptions into structured rules, suggesting
// validation rules from column profiles, and explaining discrepancies.
// Everything here degrades cleanly when no API key is configured; the
// engines never depend on it.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
)

// Config configures the helper.
type Config struct {
	Enabled bool
	Model   string
	APIKey  string
}

// generator abstracts the model call so the parsing and prompting
// logic is testable without network access.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// Helper implements the model-assisted operations.
type Helper struct {
	model string
	gen   generator
}

// New creates a Helper backed by the Gemini API. It fails with
// ErrAPIKeyRequired when assistance is enabled but no key is set, and
// returns a disabled helper when assistance is off.
func New(ctx context.Context, cfg Config) (*Helper, error) {
	if !cfg.Enabled {
		return &Helper{model: cfg.Model}, nil
	}
	if cfg.APIKey == "" {
		return nil, errors.ErrAPIKeyRequired
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	logging.Info().Str("model", cfg.Model).Msg("Model assistance enabled")
	return &Helper{
		model: cfg.Model,
		gen:   &genaiGenerator{client: client, model: cfg.Model},
	}, nil
}

// Available reports whether the helper can serve requests.
func (h *Helper) Available() bool {
	return h != nil && h.gen != nil
}

// genaiGenerator calls the Gemini API.
type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

const reconRuleSchema = `{
  "id": "rule id, e.g. R010",
  "name": "descriptive name",
  "active": true,
  "check": "one of: key_match, value_equals, fuzzy_match, aggregate_sum, aggregate_count, aggregate_avg",
  "key_column_1": "matching column in dataset 1",
  "key_column_2": "matching column in dataset 2 (omit if identical)",
  "compare_column_1": "column to compare in dataset 1 (if applicable)",
  "compare_column_2": "column to compare in dataset 2 (if applicable)",
  "tolerance": {"type": "percentage | absolute | days", "value": 0}
}`

const validationRuleSchema = `{
  "id": "rule id, e.g. V010",
  "name": "descriptive name",
  "active": true,
  "column": "column to validate",
  "check": "one of: not_null, not_empty, greater_than, less_than, between, equals, not_equals, is_in_list, not_in_list, regex_match, starts_with, ends_with, contains, is_numeric, is_integer, is_date, unique, min_length, max_length",
  "parameter_1": "first parameter (threshold, pattern, list)",
  "parameter_2": "second parameter (for between)",
  "severity": "ERROR, WARNING, or INFO"
}`

// ParseReconciliationRule turns a natural language description into a
// structured reconciliation rule.
func (h *Helper) ParseReconciliationRule(ctx context.Context, description string, columns []string) (rules.ReconciliationRule, error) {
	var rule rules.ReconciliationRule
	if !h.Available() {
		return rule, errors.ErrAPIKeyRequired
	}

	prompt := rulePrompt("reconciliation", description, reconRuleSchema, columns)
	raw, err := h.gen.generate(ctx, prompt)
	if err != nil {
		return rule, err
	}
	if err := decodeJSON(raw, &rule); err != nil {
		return rule, err
	}
	if err := rule.Validate(); err != nil {
		return rule, err
	}
	return rule, nil
}

// ParseValidationRule turns a natural language description into a
// structured validation rule.
func (h *Helper) ParseValidationRule(ctx context.Context, description string, columns []string) (rules.ValidationRule, error) {
	var rule rules.ValidationRule
	if !h.Available() {
		return rule, errors.ErrAPIKeyRequired
	}

	prompt := rulePrompt("validation", description, validationRuleSchema, columns)
	raw, err := h.gen.generate(ctx, prompt)
	if err != nil {
		return rule, err
	}
	if err := decodeJSON(raw, &rule); err != nil {
		return rule, err
	}
	rule.Severity = rules.ParseSeverity(string(rule.Severity))
	if err := rule.Validate(); err != nil {
		return rule, err
	}
	return rule, nil
}

// Suggestion is one proposed validation rule with its rationale.
type Suggestion struct {
	Rule      rules.ValidationRule `json:"rule"`
	Rationale string               `json:"rationale"`
}

// SuggestRules proposes validation rules for a profiled column.
// Suggestions that fail structural validation are dropped rather than
// surfaced; the caller reviews the survivors.
func (h *Helper) SuggestRules(ctx context.Context, profile ColumnProfile) ([]Suggestion, error) {
	if !h.Available() {
		return nil, errors.ErrAPIKeyRequired
	}

	profileJSON, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`You are a data quality expert. Based on the following profile of column %q, suggest appropriate validation rules.

Column profile:
%s

Return a JSON array. Each element must have this shape:
{
  "rule": %s,
  "rationale": "why this rule is suggested"
}

Return ONLY the JSON array, no explanation or markdown.`, profile.Column, profileJSON, validationRuleSchema)

	raw, err := h.gen.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var suggestions []Suggestion
	if err := decodeJSON(raw, &suggestions); err != nil {
		return nil, err
	}

	valid := suggestions[:0]
	for _, s := range suggestions {
		s.Rule.Severity = rules.ParseSeverity(string(s.Rule.Severity))
		if s.Rule.Column == "" {
			s.Rule.Column = profile.Column
		}
		if err := s.Rule.Validate(); err != nil {
			logging.Warn().Err(err).Str("rule_id", s.Rule.ID).Msg("Dropping invalid suggestion")
			continue
		}
		valid = append(valid, s)
	}
	return valid, nil
}

// ExplainFinding generates a short plain-language explanation for a
// reconciliation finding.
func (h *Helper) ExplainFinding(ctx context.Context, finding results.Reconciliation) (string, error) {
	if !h.Available() {
		return "", errors.ErrAPIKeyRequired
	}

	findingJSON, err := json.MarshalIndent(finding, "", "  ")
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf(`You are a data reconciliation expert. Explain the following discrepancy in plain English.

Discrepancy:
%s

Provide a concise explanation (2-3 sentences) covering what the discrepancy means, likely causes, and a recommended action.`, findingJSON)

	return h.gen.generate(ctx, prompt)
}

// rulePrompt builds the shared rule-translation prompt.
func rulePrompt(kind, description, schema string, columns []string) string {
	var context string
	if len(columns) > 0 {
		context = fmt.Sprintf("\n\nAvailable columns: %s", strings.Join(columns, ", "))
	}
	return fmt.Sprintf(`You are a data quality expert. Convert the following natural language rule into structured JSON.

Rule type: %s
Rule: %q

Expected JSON schema:
%s%s

Return ONLY the JSON object, no explanation or markdown formatting.`, kind, description, schema, context)
}

// decodeJSON parses a model response, tolerating markdown code fences.
func decodeJSON(raw string, v any) error {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		if i := strings.LastIndex(cleaned, "```"); i >= 0 {
			cleaned = cleaned[:i]
		}
		cleaned = strings.TrimSpace(cleaned)
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return errors.WrapParse("json", "model response", err)
	}
	return nil
}
