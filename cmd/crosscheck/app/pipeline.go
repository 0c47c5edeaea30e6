package app

import (
	"context"
	"fmt"

	"github.com/crosscheckhq/crosscheck/internal/assist"
	"github.com/crosscheckhq/crosscheck/internal/config"
	"github.com/crosscheckhq/crosscheck/internal/dataset"
	"github.com/crosscheckhq/crosscheck/internal/report"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/runner"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
)

// loadRunConfig loads the run configuration and applies CLI overrides.
func (a *App) loadRunConfig(path string) (*config.RunConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if a.config.Workers > 0 {
		cfg.Workers = a.config.Workers
	}
	if a.config.OutputDir != "" {
		cfg.OutputDir = a.config.OutputDir
	}
	return cfg, nil
}

// loadSource loads one configured data source.
func (a *App) loadSource(cfg *config.RunConfig, src config.Source) (*tabular.Dataset, error) {
	return dataset.LoadCSV(src.Name, cfg.ResolvePath(src.Path), src.Delimiter, src.Encoding)
}

// buildInput loads the datasets a run needs. Reconciliation sources
// load only when reconciliation rules are present; the validation
// target defaults to source 1.
func (a *App) buildInput(cfg *config.RunConfig, withRecon, withValidation bool) (runner.Input, error) {
	input := runner.Input{}
	if withRecon {
		input.ReconRules = cfg.ReconRules
	}
	if withValidation {
		input.ValidationRules = cfg.ValidationRules
	}

	if len(input.ReconRules) > 0 {
		ds1, err := a.loadSource(cfg, cfg.Source1)
		if err != nil {
			return input, err
		}
		ds2, err := a.loadSource(cfg, cfg.Source2)
		if err != nil {
			return input, err
		}
		input.Dataset1, input.Dataset2 = ds1, ds2
	}

	if len(input.ValidationRules) > 0 {
		switch {
		case cfg.ValidationData != nil:
			ds, err := a.loadSource(cfg, *cfg.ValidationData)
			if err != nil {
				return input, err
			}
			input.ValidationData = ds
		case input.Dataset1 != nil:
			input.ValidationData = input.Dataset1
		default:
			ds, err := a.loadSource(cfg, cfg.Source1)
			if err != nil {
				return input, err
			}
			input.Dataset1 = ds
		}
	}
	return input, nil
}

// executeRun runs the pipeline end to end, writes the report, and
// returns the overall run status.
func (a *App) executeRun(ctx context.Context, configPath string, withRecon, withValidation bool) (results.Status, error) {
	cfg, err := a.loadRunConfig(configPath)
	if err != nil {
		return results.StatusError, err
	}

	input, err := a.buildInput(cfg, withRecon, withValidation)
	if err != nil {
		return results.StatusError, err
	}

	ctx = logging.WithLogger(ctx, a.logger)
	r := runner.New(cfg.Mappings,
		runner.WithWorkers(cfg.Workers),
		runner.WithExecutionLog(runner.NewExecutionLog(a.logger)),
	)

	result, err := r.Run(ctx, input)
	if err != nil {
		return results.StatusError, err
	}

	runDir, err := report.Write(result, cfg.Project, cfg.ResolvePath(cfg.OutputDir))
	if err != nil {
		return result.Status, err
	}

	a.printSummary(result, runDir)
	return result.Status, nil
}

// printSummary prints the human-facing run summary to stdout.
func (a *App) printSummary(result *runner.Report, runDir string) {
	fmt.Printf("Run %s finished: %s\n", result.RunID, result.Status)
	recon := result.Reconciliation.Summary
	if recon.Total > 0 {
		fmt.Printf("  reconciliation: %d passed, %d failed, %d errors (%.1f%% pass rate)\n",
			recon.Passed, recon.Failed, recon.Errors, recon.PassRate()*100)
	}
	validation := result.Validation.Summary
	if validation.Total > 0 {
		fmt.Printf("  validation:     %d passed, %d failed, %d errors (%.1f%% pass rate)\n",
			validation.Passed, validation.Failed, validation.Errors, validation.PassRate()*100)
	}
	fmt.Printf("  report: %s\n", runDir)
}

// newAssistHelper builds the model-assistance helper from the run
// configuration and the environment.
func (a *App) newAssistHelper(ctx context.Context, cfg *config.RunConfig) (*assist.Helper, error) {
	return assist.New(ctx, assist.Config{
		Enabled: cfg.Assist.Enabled,
		Model:   cfg.Assist.Model,
		APIKey:  a.config.APIKey(cfg.Assist.APIKeyEnv),
	})
}
