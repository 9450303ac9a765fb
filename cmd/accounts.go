package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/readdon/internal/shared"
	"github.com/desertthunder/readdon/internal/tasks"
	"github.com/urfave/cli/v3"
)

// AccountsList prints every account in the credential store. Secrets are never shown.
func (r *Runner) AccountsList(ctx context.Context, cmd *cli.Command) error {
	store, err := r.credentials(cmd)
	if err != nil {
		return err
	}

	records := store.Records()
	r.writePlainHeader(fmt.Sprintf("Accounts (%d) from %s", len(records), store.Path()))
	for i, rec := range records {
		token := "-"
		if rec.Token != "" {
			token = shared.MaskToken(rec.Token)
		}
		r.writePlain("%d. %-32s %s\n", i+1, rec.Identifier, token)
	}
	return nil
}

// AccountsCheck validates every cached token, re-authenticating where needed, and saves
// any new tokens. No collection is read or changed.
func (r *Runner) AccountsCheck(ctx context.Context, cmd *cli.Command) error {
	store, err := r.credentials(cmd)
	if err != nil {
		return err
	}
	records := store.Records()
	if len(records) == 0 {
		return fmt.Errorf("%w: no accounts in %s", shared.ErrMissingCredentials, store.Path())
	}

	orch, err := r.orchestrator(int(cmd.Int("workers")), true)
	if err != nil {
		return err
	}

	prog := make(chan tasks.ProgressUpdate, 100)
	done := r.progress(prog)
	result := orch.Check(ctx, prog, records)
	close(prog)
	<-done

	updated := store.Update(result.Records)
	if err := store.Save(); err != nil {
		return err
	}

	for _, rep := range result.Summary.Reports {
		state := "token valid"
		switch {
		case rep.Failed():
			state = "failed: " + rep.Reason
		case rep.TokenRefreshed:
			state = "token refreshed"
		}
		r.writePlain("%-32s %s\n", rep.Identifier, state)
	}
	r.writePlain("\n%d of %d accounts authenticated, %d tokens updated\n",
		result.Summary.Succeeded(), len(records), updated)
	return nil
}
