package app

import (
	"fmt"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/crosscheckhq/crosscheck/internal/assist"
	"github.com/crosscheckhq/crosscheck/internal/config"
	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/results"
)

// NewRunCommand creates the run command. It executes both the
// reconciliation and validation rule sets from the run configuration.
func (a *App) NewRunCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run reconciliation and validation",
		Long: `Run executes every active rule in the run configuration: the
reconciliation rules against the two configured sources, and the
validation rules against the validation target. Results are written
to a timestamped report directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd, args[0], true, true, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the run status is not PASS")
	return cmd
}

// NewReconcileCommand creates the reconcile command, which runs only
// the reconciliation rules.
func (a *App) NewReconcileCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "reconcile <config.yaml>",
		Short: "Run only the reconciliation rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd, args[0], true, false, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the run status is not PASS")
	return cmd
}

// NewValidateCommand creates the validate command, which runs only the
// validation rules.
func (a *App) NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Run only the validation rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd, args[0], false, true, strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when the run status is not PASS")
	return cmd
}

// runPipeline executes a configured run and optionally enforces a
// passing status for CI-style usage.
func (a *App) runPipeline(cmd *cobra.Command, configPath string, withRecon, withValidation, strict bool) error {
	status, err := a.executeRun(cmd.Context(), configPath, withRecon, withValidation)
	if err != nil {
		return err
	}
	if strict && status != results.StatusPass {
		return fmt.Errorf("run finished with status %s", status)
	}
	return nil
}

// NewSuggestCommand creates the suggest command. It profiles a column
// of a configured source and asks the model for candidate validation
// rules.
func (a *App) NewSuggestCommand() *cobra.Command {
	var (
		sourceName string
		column     string
	)

	cmd := &cobra.Command{
		Use:   "suggest <config.yaml>",
		Short: "Suggest validation rules for a column",
		Long: `Suggest profiles a column of a configured data source and asks the
configured model for validation rules that fit the observed data.
Model assistance must be enabled in the run configuration and the API
key environment variable must be set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadRunConfig(args[0])
			if err != nil {
				return err
			}

			helper, err := a.newAssistHelper(ctx, cfg)
			if err != nil {
				return err
			}
			if !helper.Available() {
				return errors.NewConfigError("assist", "model assistance is not enabled in the run configuration", nil)
			}

			src := cfg.Source1
			if sourceName != "" {
				found, err := cfg.SourceByName(sourceName)
				if err != nil {
					return err
				}
				src = found
			}
			ds, err := a.loadSource(cfg, src)
			if err != nil {
				return err
			}

			profile, err := assist.Profile(ds, column)
			if err != nil {
				return err
			}

			suggestions, err := helper.SuggestRules(ctx, profile)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Printf("No suggestions for column %q.\n", column)
				return nil
			}

			return printYAML(cmd, suggestions)
		},
	}

	cmd.Flags().StringVar(&sourceName, "source", "", "configured source to profile (default: source 1)")
	cmd.Flags().StringVar(&column, "column", "", "column to profile")
	_ = cmd.MarkFlagRequired("column")
	return cmd
}

// NewTranslateCommand creates the translate command. It turns a plain
// language description into a rule definition ready to paste into the
// run configuration.
func (a *App) NewTranslateCommand() *cobra.Command {
	var ruleType string

	cmd := &cobra.Command{
		Use:   "translate <config.yaml> <description>",
		Short: "Translate a plain language description into a rule",
		Long: `Translate asks the configured model to turn a plain language
description into a rule definition. The available columns of the
configured sources are given to the model as context.

Examples:
  crosscheck translate run.yaml "amounts should match within 2 percent"
  crosscheck translate run.yaml --type validation "email must not be empty"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := a.loadRunConfig(args[0])
			if err != nil {
				return err
			}

			helper, err := a.newAssistHelper(ctx, cfg)
			if err != nil {
				return err
			}
			if !helper.Available() {
				return errors.NewConfigError("assist", "model assistance is not enabled in the run configuration", nil)
			}

			columns, err := a.availableColumns(cfg)
			if err != nil {
				return err
			}

			description := args[1]
			switch strings.ToLower(ruleType) {
			case "reconciliation", "recon":
				rule, err := helper.ParseReconciliationRule(ctx, description, columns)
				if err != nil {
					return err
				}
				return printYAML(cmd, rule)
			case "validation":
				rule, err := helper.ParseValidationRule(ctx, description, columns)
				if err != nil {
					return err
				}
				return printYAML(cmd, rule)
			default:
				return errors.NewConfigError("translate",
					fmt.Sprintf("unknown rule type %q (expected reconciliation or validation)", ruleType), nil)
			}
		},
	}

	cmd.Flags().StringVar(&ruleType, "type", "reconciliation", "rule type to generate: reconciliation or validation")
	return cmd
}

// availableColumns collects the column names of the configured sources
// so the model knows what it may reference. Source 2 columns are
// included when it is configured, deduplicated against source 1.
func (a *App) availableColumns(cfg *config.RunConfig) ([]string, error) {
	ds1, err := a.loadSource(cfg, cfg.Source1)
	if err != nil {
		return nil, err
	}
	columns := ds1.Columns()

	if cfg.Source2.Path == "" {
		return columns, nil
	}
	ds2, err := a.loadSource(cfg, cfg.Source2)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		seen[c] = struct{}{}
	}
	for _, c := range ds2.Columns() {
		if _, ok := seen[c]; !ok {
			columns = append(columns, c)
		}
	}
	return columns, nil
}

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crosscheck %s (commit %s, built %s)\n", a.version, a.commit, a.date)
		},
	}
}

// printYAML renders a value as YAML on the command's stdout.
func printYAML(cmd *cobra.Command, v any) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}
