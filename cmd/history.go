package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/readdon/internal/formatter"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints the most recent runs.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return r.writePlain("No runs recorded\n")
	}

	_, err = r.output.Write(formatter.RunsToText(runs))
	return err
}

// HistoryShow prints one stored run. A numeric argument is a sequence number, anything else an ID.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("run")
	if ref == "" {
		return fmt.Errorf("%w: run sequence or id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewRunRepository(db)
	var summary *models.RunSummary
	if seq, convErr := strconv.Atoi(ref); convErr == nil {
		summary, err = repo.GetBySequence(seq)
	} else {
		summary, err = repo.Get(ref)
	}
	if err != nil {
		return err
	}

	return formatter.Write(r.output, summary, cmd.String("format"))
}

// HistoryAccount prints the recent reports of one account, newest first.
func (r *Runner) HistoryAccount(ctx context.Context, cmd *cli.Command) error {
	email := cmd.StringArg("email")
	if email == "" {
		return fmt.Errorf("%w: account identifier", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	reports, err := repositories.NewRunRepository(db).AccountHistory(email, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		return r.writePlain("No reports for %s\n", email)
	}

	r.writePlainHeader("History for " + email)
	for _, rep := range reports {
		line := fmt.Sprintf("%s  %-16s removed %d, added %d",
			rep.Started.Local().Format("2006-01-02 15:04:05"), rep.Outcome, len(rep.Removed), len(rep.Added))
		if rep.Reason != "" {
			line += "  (" + rep.Reason + ")"
		}
		r.writePlain("%s\n", line)
	}
	return nil
}
