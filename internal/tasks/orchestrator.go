package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
)

const defaultWorkers = 5

// OrchestratorOpts configures a run.
type OrchestratorOpts struct {
	Workers int  // Concurrent account workflows (default: 5, max: 32)
	DryRun  bool // Plan only, never mutate remote collections
}

// RunResult is the outcome of one run over every account.
type RunResult struct {
	Summary models.RunSummary         // Reports in input order
	Records []models.CredentialRecord // Input records with updated tokens, in input order
	Plans   []*models.Plan            // Final plan per account; nil when planning never happened
}

// accountJob is one unit of work for the pool. index owns the result slot.
type accountJob struct {
	index  int
	record models.CredentialRecord
}

type accountResult struct {
	index  int
	report models.Report
	record models.CredentialRecord
	plan   *models.Plan
}

// Orchestrator runs one reconciliation workflow per account on a fixed-size worker pool.
type Orchestrator struct {
	auth   *Authenticator
	engine *ReconcileEngine
	logger *log.Logger
	opts   OrchestratorOpts
	now    func() time.Time
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(auth *Authenticator, engine *ReconcileEngine, logger *log.Logger, opts OrchestratorOpts) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	opts.Workers = shared.ReconcileConfig{Workers: opts.Workers}.WorkerCount()
	return &Orchestrator{auth: auth, engine: engine, logger: logger, opts: opts, now: time.Now}
}

// Workers returns the pool size.
func (o *Orchestrator) Workers() int { return o.opts.Workers }

// Run reconciles every record against desired and returns once every account has a terminal report.
//
// Records are copied; the caller's slice is never written. Progress updates are dropped when
// prog is nil or full.
func (o *Orchestrator) Run(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	records []models.CredentialRecord,
	desired *models.DesiredState,
) *RunResult {
	o.logger.Info("starting run", "accounts", len(records), "workers", o.opts.Workers, "desired", desired.Len(), "dry_run", o.opts.DryRun)
	return o.pool(ctx, prog, records, o.opts.DryRun, func(ctx context.Context, job accountJob) accountResult {
		return o.workflow(ctx, job, desired, prog)
	})
}

// Check obtains a session for every record without touching addon collections.
//
// Stale tokens are replaced the same way a run replaces them.
func (o *Orchestrator) Check(ctx context.Context, prog chan<- ProgressUpdate, records []models.CredentialRecord) *RunResult {
	o.logger.Info("checking accounts", "accounts", len(records), "workers", o.opts.Workers)
	return o.pool(ctx, prog, records, true, func(ctx context.Context, job accountJob) accountResult {
		return o.check(ctx, job, prog)
	})
}

// pool fans records out to the workers and collects one result per record in input order.
func (o *Orchestrator) pool(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	records []models.CredentialRecord,
	dryRun bool,
	fn func(context.Context, accountJob) accountResult,
) *RunResult {
	total := len(records)
	result := &RunResult{
		Summary: models.RunSummary{
			ID:      shared.GenerateID(),
			Started: o.now(),
			DryRun:  dryRun,
			Reports: make([]models.Report, total),
		},
		Records: make([]models.CredentialRecord, total),
		Plans:   make([]*models.Plan, total),
	}

	jobs := make(chan accountJob, total)
	results := make(chan accountResult, total)

	var wg sync.WaitGroup
	for i := 0; i < min(o.opts.Workers, max(total, 1)); i++ {
		wg.Add(1)
		go o.worker(ctx, &wg, jobs, results, prog, total, fn)
	}

	for i, rec := range records {
		jobs <- accountJob{index: i, record: rec}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Summary.Reports[res.index] = res.report
		result.Records[res.index] = res.record
		result.Plans[res.index] = res.plan
		sendProgress(prog, accountDoneUpdate(completed, total, res.report))
	}

	result.Summary.Finished = o.now()
	o.logger.Info("run finished",
		"accounts", total,
		"succeeded", result.Summary.Succeeded(),
		"failed", result.Summary.Failed(),
		"duration", result.Summary.Finished.Sub(result.Summary.Started).Round(time.Millisecond),
	)
	return result
}

// worker drains jobs until the channel closes.
func (o *Orchestrator) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan accountJob,
	results chan<- accountResult,
	prog chan<- ProgressUpdate,
	total int,
	fn func(context.Context, accountJob) accountResult,
) {
	defer wg.Done()

	for job := range jobs {
		sendProgress(prog, accountStartUpdate(job.index+1, total, job.record.Identifier))
		results <- fn(ctx, job)
	}
}

// workflow runs one account to a terminal report. Panics are converted into an error report.
func (o *Orchestrator) workflow(ctx context.Context, job accountJob, desired *models.DesiredState, prog chan<- ProgressUpdate) (res accountResult) {
	res.index = job.index
	res.record = job.record
	logger := shared.WithLogger(o.logger, "account", job.record.Identifier)

	report := &models.Report{
		Identifier: job.record.Identifier,
		DryRun:     o.opts.DryRun,
		Started:    o.now(),
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("workflow panicked", "panic", r, "stack", string(debug.Stack()))
			report.Outcome = models.OutcomeError
			report.Reason = fmt.Sprintf("panic: %v", r)
		}
		report.Finished = o.now()
		res.report = *report
	}()

	if err := ctx.Err(); err != nil {
		report.Outcome = models.OutcomeError
		report.Reason = fmt.Sprintf("run canceled before start: %v", err)
		return res
	}

	sendProgress(prog, authenticateUpdate(job.record.Identifier))
	sess, err := o.auth.Obtain(ctx, &res.record)
	if err != nil {
		logger.Error("authentication failed", "error", err)
		report.Outcome = models.OutcomeAuthFailed
		report.Reason = err.Error()
		return res
	}

	rep, plan, err := o.engine.Reconcile(ctx, sess, desired, o.opts.DryRun, prog)
	if errors.Is(err, shared.ErrNotAuthenticated) && sess.Reused {
		prior := rep
		sess, err = o.auth.Refresh(ctx, &res.record)
		if err != nil {
			logger.Error("re-authentication failed", "error", err)
			mergeAttempt(report, prior)
			report.Outcome = models.OutcomeAuthFailed
			report.Reason = err.Error()
			return res
		}
		report.TokenRefreshed = true

		rep, plan, err = o.engine.Reconcile(ctx, sess, desired, o.opts.DryRun, prog)
		if rep != nil && prior != nil {
			rep.Items = append(prior.Items, rep.Items...)
			if !o.opts.DryRun {
				finalize(rep)
			}
		}
	}
	res.plan = plan

	mergeAttempt(report, rep)
	switch {
	case errors.Is(err, shared.ErrNotAuthenticated):
		logger.Error("session rejected", "error", err)
		report.Outcome = models.OutcomeAuthFailed
		report.Reason = err.Error()
	case err != nil:
		logger.Error("reconciliation failed", "error", err)
		report.Outcome = models.OutcomeError
		report.Reason = err.Error()
	}
	return res
}

// check obtains a session for one account and reports whether it succeeded.
func (o *Orchestrator) check(ctx context.Context, job accountJob, prog chan<- ProgressUpdate) (res accountResult) {
	res.index = job.index
	res.record = job.record
	report := &models.Report{Identifier: job.record.Identifier, DryRun: true, Started: o.now()}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("account check panicked", "account", job.record.Identifier, "panic", r)
			report.Outcome = models.OutcomeError
			report.Reason = fmt.Sprintf("panic: %v", r)
		}
		report.Finished = o.now()
		res.report = *report
	}()

	sendProgress(prog, authenticateUpdate(job.record.Identifier))
	sess, err := o.auth.Obtain(ctx, &res.record)
	if err != nil {
		report.Outcome = models.OutcomeAuthFailed
		report.Reason = err.Error()
		return res
	}
	report.Outcome = models.OutcomeSuccess
	report.TokenRefreshed = !sess.Reused
	return res
}

// mergeAttempt copies the results of a reconcile pass into the workflow's report.
func mergeAttempt(dst, src *models.Report) {
	if src == nil {
		return
	}
	dst.Outcome = src.Outcome
	dst.Reason = src.Reason
	dst.Preserved = src.Preserved
	dst.Kept = src.Kept
	dst.Removed = src.Removed
	dst.Added = src.Added
	dst.Skipped = src.Skipped
	dst.Items = src.Items
}
