// Package runner orchestrates a reconciliation and validation run:
// it fans active rules out over a bounded worker pool, folds per-rule
// summaries into run totals, and assembles the final report.
package runner

import (
	"context"
	"runtime"
	"sync"

	"github.com/agentstation/utc"

	"github.com/crosscheckhq/crosscheck/pkg/errors"
	"github.com/crosscheckhq/crosscheck/pkg/logging"
	"github.com/crosscheckhq/crosscheck/pkg/recon"
	"github.com/crosscheckhq/crosscheck/pkg/results"
	"github.com/crosscheckhq/crosscheck/pkg/rules"
	"github.com/crosscheckhq/crosscheck/pkg/tabular"
	"github.com/crosscheckhq/crosscheck/pkg/validate"
)

// Runner evaluates rule sets against datasets. Rules are independent of
// each other, so each worker evaluates whole rules; findings are sorted
// afterwards to keep output deterministic regardless of scheduling.
type Runner struct {
	comparator *recon.Comparator
	checker    *validate.Checker
	log        *ExecutionLog
	workers    int
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the rule worker pool. Values below 1 fall back to
// the default.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithExecutionLog attaches a shared execution log.
func WithExecutionLog(log *ExecutionLog) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// New creates a Runner with the given column mappings.
func New(mappings rules.Mappings, opts ...Option) *Runner {
	r := &Runner{
		comparator: recon.New(mappings),
		checker:    validate.New(),
		workers:    runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = NewExecutionLog(nil)
	}
	return r
}

// Log returns the runner's execution log.
func (r *Runner) Log() *ExecutionLog {
	return r.log
}

// ReconReport holds the reconciliation side of a run.
type ReconReport struct {
	Findings []results.Reconciliation `yaml:"findings"`
	Summary  results.Summary          `yaml:"summary"`
}

// ValidationReport holds the validation side of a run.
type ValidationReport struct {
	Findings []results.Validation `yaml:"findings"`
	Summary  results.Summary      `yaml:"summary"`
}

// Report is the complete outcome of one run.
type Report struct {
	RunID          string           `yaml:"run_id"`
	StartedAt      utc.Time         `yaml:"started_at"`
	FinishedAt     utc.Time         `yaml:"finished_at"`
	Status         results.Status   `yaml:"status"`
	Reconciliation ReconReport      `yaml:"reconciliation"`
	Validation     ValidationReport `yaml:"validation"`
	Log            []LogEntry       `yaml:"execution_log"`
}

// Reconcile evaluates the active reconciliation rules against the
// dataset pair. Inactive rules are skipped; every active rule appears
// in the findings as PASS, FAIL, or ERROR.
func (r *Runner) Reconcile(ctx context.Context, ruleSet []rules.ReconciliationRule, ds1, ds2 *tabular.Dataset) (ReconReport, error) {
	if err := uniqueReconIDs(ruleSet); err != nil {
		return ReconReport{}, err
	}
	active := rules.ActiveReconciliation(ruleSet)
	r.log.Infof("Reconciliation", "Starting reconciliation: %d active of %d rules", len(active), len(ruleSet))

	type outcome struct {
		findings []results.Reconciliation
		summary  results.Summary
	}
	outcomes := make([]outcome, len(active))

	err := r.forEachRule(ctx, len(active), func(i int) {
		rule := active[i]
		findings, summary := r.comparator.Evaluate(ctx, rule, ds1, ds2)
		outcomes[i] = outcome{findings: findings, summary: summary}
		if summary.Status() != results.StatusPass {
			r.log.Warnf("Reconciliation", "Rule %s finished with status %s", rule.ID, summary.Status())
		}
	})
	if err != nil {
		return ReconReport{}, err
	}

	var report ReconReport
	for _, o := range outcomes {
		report.Findings = append(report.Findings, o.findings...)
		report.Summary.Merge(o.summary)
	}
	results.SortReconciliation(report.Findings)

	r.log.Infof("Reconciliation", "Completed: %d passed, %d failed, %d errors",
		report.Summary.Passed, report.Summary.Failed, report.Summary.Errors)
	return report, nil
}

// Validate evaluates the active validation rules against the dataset.
func (r *Runner) Validate(ctx context.Context, ruleSet []rules.ValidationRule, ds *tabular.Dataset) (ValidationReport, error) {
	if err := uniqueValidationIDs(ruleSet); err != nil {
		return ValidationReport{}, err
	}
	active := rules.ActiveValidation(ruleSet)
	r.log.Infof("Validation", "Starting validation: %d active of %d rules", len(active), len(ruleSet))

	type outcome struct {
		findings []results.Validation
		summary  results.Summary
	}
	outcomes := make([]outcome, len(active))

	err := r.forEachRule(ctx, len(active), func(i int) {
		rule := active[i]
		findings, summary := r.checker.Evaluate(ctx, rule, ds)
		outcomes[i] = outcome{findings: findings, summary: summary}
		if summary.Status() != results.StatusPass {
			r.log.Warnf("Validation", "Rule %s finished with status %s", rule.ID, summary.Status())
		}
	})
	if err != nil {
		return ValidationReport{}, err
	}

	var report ValidationReport
	for _, o := range outcomes {
		report.Findings = append(report.Findings, o.findings...)
		report.Summary.Merge(o.summary)
	}
	results.SortValidation(report.Findings)

	r.log.Infof("Validation", "Completed: %d passed, %d failed, %d errors",
		report.Summary.Passed, report.Summary.Failed, report.Summary.Errors)
	return report, nil
}

// Input bundles everything a full run needs. ValidationData defaults to
// Dataset1 when unset, mirroring the common case of validating the
// primary source.
type Input struct {
	Dataset1        *tabular.Dataset
	Dataset2        *tabular.Dataset
	ValidationData  *tabular.Dataset
	ReconRules      []rules.ReconciliationRule
	ValidationRules []rules.ValidationRule
}

// Run executes reconciliation then validation and assembles the report.
// Either side may be empty; an empty rule set contributes a passing
// summary.
func (r *Runner) Run(ctx context.Context, input Input) (*Report, error) {
	started := utc.Now()
	report := &Report{
		RunID:     started.Format("20060102_150405"),
		StartedAt: started,
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	r.log.Infof("Runner", "Run %s started", report.RunID)

	if len(input.ReconRules) > 0 {
		if input.Dataset1 == nil || input.Dataset2 == nil {
			return nil, errors.NewConfigError("runner",
				"reconciliation rules require two datasets", nil)
		}
		reconReport, err := r.Reconcile(ctx, input.ReconRules, input.Dataset1, input.Dataset2)
		if err != nil {
			return nil, err
		}
		report.Reconciliation = reconReport
	}

	if len(input.ValidationRules) > 0 {
		target := input.ValidationData
		if target == nil {
			target = input.Dataset1
		}
		if target == nil {
			return nil, errors.NewConfigError("runner",
				"validation rules require a dataset", nil)
		}
		validationReport, err := r.Validate(ctx, input.ValidationRules, target)
		if err != nil {
			return nil, err
		}
		report.Validation = validationReport
	}

	report.Status = results.OverallStatus(report.Reconciliation.Summary, report.Validation.Summary)
	report.FinishedAt = utc.Now()
	report.Log = r.log.Entries()

	r.log.Infof("Runner", "Run %s finished with status %s", report.RunID, report.Status)
	return report, nil
}

// forEachRule runs fn for every rule index on a bounded worker pool.
// It stops handing out work once the context is canceled and reports
// the cancellation after in-flight rules drain.
func (r *Runner) forEachRule(ctx context.Context, n int, fn func(i int)) error {
	if n == 0 {
		return nil
	}
	workers := r.workers
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	var canceled bool
dispatch:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			canceled = true
			break dispatch
		default:
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			canceled = true
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if canceled {
		return errors.ErrCanceled
	}
	return nil
}

func uniqueReconIDs(rs []rules.ReconciliationRule) error {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return rules.UniqueIDs(ids)
}

func uniqueValidationIDs(rs []rules.ValidationRule) error {
	ids := make([]string, len(rs))
	for i, r := range rs {
		ids[i] = r.ID
	}
	return rules.UniqueIDs(ids)
}
