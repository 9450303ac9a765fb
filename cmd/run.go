package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/readdon/internal/formatter"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/desertthunder/readdon/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Run reconciles every account in the credential store against the desired addon list.
//
// The credential store is rewritten once, after every account has finished.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run") || r.config.Reconcile.DryRun
	format := cmd.String("format")
	switch format {
	case formatter.FormatText, formatter.FormatJSON, formatter.FormatMarkdown, "md":
	default:
		return fmt.Errorf("%w: --format %q", shared.ErrInvalidFlag, format)
	}

	store, err := r.credentials(cmd)
	if err != nil {
		return err
	}
	records := store.Records()
	if len(records) == 0 {
		return fmt.Errorf("%w: no accounts in %s", shared.ErrMissingCredentials, store.Path())
	}

	desired, err := r.loadDesired(ctx, r.desiredFile(cmd))
	if err != nil {
		return err
	}

	orch, err := r.orchestrator(int(cmd.Int("workers")), dryRun)
	if err != nil {
		return err
	}

	r.logger.Info("starting reconciliation", "accounts", len(records), "desired", desired.Len(), "dry_run", dryRun)

	prog := make(chan tasks.ProgressUpdate, 100)
	done := r.progress(prog)
	result := orch.Run(ctx, prog, records, desired)
	close(prog)
	<-done

	if dryRun {
		r.writePlainln("Planned changes:")
		for i, rep := range result.Summary.Reports {
			r.writePlain("%s", formatter.PlanToText(rep.Identifier, result.Plans[i]))
		}
		r.writePlain("\n")
	}

	updated := store.Update(result.Records)
	if err := store.Save(); err != nil {
		return err
	}
	r.logger.Info("credential store saved", "path", store.Path(), "updated", updated)

	if !cmd.Bool("no-history") {
		r.recordRun(&result.Summary)
	}

	if err := formatter.Write(r.output, &result.Summary, format); err != nil {
		return err
	}
	if out := cmd.String("output"); out != "" {
		if err := formatter.WriteFile(&result.Summary, out); err != nil {
			return err
		}
		r.logger.Info("summary written", "path", out)
	}

	if failed := result.Summary.Failed(); failed > 0 {
		r.logger.Warn("some accounts did not converge", "failed", failed, "accounts", len(records))
	}
	return nil
}

// loadDesired reads the desired addon list, prompting for it when the file does not exist yet.
func (r *Runner) loadDesired(ctx context.Context, file *repositories.DesiredStateFile) (*models.DesiredState, error) {
	desired, err := file.Load()
	if !errors.Is(err, shared.ErrMissingDesired) {
		return desired, err
	}

	r.logger.Info("no desired addon list found, starting prompt", "path", file.Path())
	addons, err := r.prompt(ctx, r.fetcher, nil)
	if err != nil {
		return nil, err
	}

	desired, err = models.NewDesiredState(addons...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidManifest, err)
	}
	if err := file.Save(desired); err != nil {
		return nil, err
	}
	r.logger.Info("desired addon list saved", "path", file.Path(), "addons", desired.Len())
	return desired, nil
}

// recordRun stores the summary in the history database. Failures are logged, never returned.
func (r *Runner) recordRun(summary *models.RunSummary) {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("run history unavailable", "error", err)
		return
	}
	defer db.Close()

	if err := repositories.NewRunRepository(db).Save(summary); err != nil {
		r.logger.Warn("failed to record run", "error", err)
		return
	}
	r.logger.Debug("run recorded", "id", summary.ID, "sequence", summary.Sequence)
}
