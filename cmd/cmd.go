// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func loginsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "logins",
		Aliases: []string{"l"},
		Usage:   "Path to credential CSV (default: files.logins)",
	}
}

func addonsFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "addons",
		Aliases: []string{"a"},
		Usage:   "Path to desired addon list, .json or .yaml (default: files.addons)",
	}
}

func workersFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "workers",
		Aliases: []string{"w"},
		Usage:   "Concurrent account workflows (default: reconcile.workers)",
	}
}

// runCommand reconciles every account against the desired addon list
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Reconcile every account's addons against the desired list",
		Flags: []cli.Flag{
			loginsFlag(),
			addonsFlag(),
			workersFlag(),
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Authenticate and plan only, never change any collection",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Summary format: text, json or markdown",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Also write the summary to this file (.json, .md or text)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record the run in the history database",
			},
		},
		Action: r.Run,
	}
}

// addonsCommand manages the desired addon list
func addonsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "addons",
		Usage: "Manage the desired addon list",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List desired addons",
				Flags:  []cli.Flag{addonsFlag(), &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.AddonsList,
			},
			{
				Name:  "add",
				Usage: "Fetch an addon manifest and add it to the desired list",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags:  []cli.Flag{addonsFlag()},
				Action: r.AddonsAdd,
			},
			{
				Name:    "remove",
				Aliases: []string{"rm"},
				Usage:   "Remove an addon from the desired list by manifest id",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{addonsFlag()},
				Action: r.AddonsRemove,
			},
			{
				Name:   "prompt",
				Usage:  "Collect addon URLs interactively",
				Flags:  []cli.Flag{addonsFlag()},
				Action: r.AddonsPrompt,
			},
			{
				Name:   "refresh",
				Usage:  "Re-fetch every desired manifest from its URL",
				Flags:  []cli.Flag{addonsFlag()},
				Action: r.AddonsRefresh,
			},
		},
	}
}

// accountsCommand inspects the credential store
func accountsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "Inspect and verify accounts",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List accounts with masked tokens",
				Flags:  []cli.Flag{loginsFlag()},
				Action: r.AccountsList,
			},
			{
				Name:   "check",
				Usage:  "Validate or refresh every account's token and save the results",
				Flags:  []cli.Flag{loginsFlag(), workersFlag()},
				Action: r.AccountsCheck,
			},
		},
	}
}

// historyCommand reads recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show previous runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs", Value: 20},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show a run by sequence number or ID",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "text, json or markdown", Value: "text"},
				},
				Action: r.HistoryShow,
			},
			{
				Name:  "account",
				Usage: "Show recent reports for one account",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "email"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of reports", Value: 10},
				},
				Action: r.HistoryAccount,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a default config.toml",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}
