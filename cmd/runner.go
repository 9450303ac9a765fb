package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/readdon/internal/classifier"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/desertthunder/readdon/internal/tasks"
	"github.com/desertthunder/readdon/internal/ui"
	"github.com/urfave/cli/v3"
)

// PromptFunc collects desired addons interactively, starting from existing.
type PromptFunc func(ctx context.Context, fetcher services.Fetcher, existing []models.AddonDescriptor) ([]models.AddonDescriptor, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	svc        services.Service
	fetcher    services.Fetcher
	logger     *log.Logger
	output     io.Writer
	prompt     PromptFunc
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Service and Fetcher are built from Config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Service    services.Service
	Fetcher    services.Fetcher
	Logger     *log.Logger
	Output     io.Writer
	Prompt     PromptFunc
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Prompt == nil {
		opts.Prompt = func(ctx context.Context, f services.Fetcher, existing []models.AddonDescriptor) ([]models.AddonDescriptor, error) {
			return ui.RunAddonPrompt(ctx, f, existing)
		}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		svc:        opts.Service,
		fetcher:    opts.Fetcher,
		logger:     opts.Logger,
		output:     opts.Output,
		prompt:     opts.Prompt,
	}
	if r.svc == nil {
		r.svc = newStremioService(r.config)
	}
	if r.fetcher == nil {
		r.fetcher = services.NewManifestFetcher(r.config.Stremio.Timeout(), r.config.Stremio.UserAgent)
	}
	return r
}

func newStremioService(config *shared.Config) *services.StremioService {
	client := &http.Client{Timeout: config.Stremio.Timeout()}
	api := services.NewAPIService(config.Stremio.APIURL, client).WithUserAgent(config.Stremio.UserAgent)
	return services.NewStremioService(api, config.Stremio.RateLimit)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, addonsCommand, accountsCommand, historyCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure reloads the config named by --config and applies global flags.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" || path == r.configPath {
		return ctx, nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	if err := config.Validate(); err != nil {
		return ctx, err
	}

	r.config = config
	r.configPath = path
	r.svc = newStremioService(config)
	r.fetcher = services.NewManifestFetcher(config.Stremio.Timeout(), config.Stremio.UserAgent)
	return ctx, nil
}

// orchestrator wires the authenticator, engine and worker pool from the current config.
func (r *Runner) orchestrator(workers int, dryRun bool) (*tasks.Orchestrator, error) {
	c, err := classifier.FromConfig(r.config.Reconcile)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = r.config.Reconcile.Workers
	}

	auth := tasks.NewAuthenticator(r.svc, r.logger)
	engine := tasks.NewReconcileEngine(r.svc, r.fetcher, c, r.logger)
	return tasks.NewOrchestrator(auth, engine, r.logger, tasks.OrchestratorOpts{Workers: workers, DryRun: dryRun}), nil
}

// credentials loads the credential store named by --logins or the config.
func (r *Runner) credentials(cmd *cli.Command) (*repositories.CredentialStore, error) {
	path := r.config.Files.Logins
	if p := cmd.String("logins"); p != "" {
		path = p
	}

	store := repositories.NewCredentialStore(path)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

// desiredFile returns the desired-state artifact named by --addons or the config.
func (r *Runner) desiredFile(cmd *cli.Command) *repositories.DesiredStateFile {
	path := r.config.Files.Addons
	if p := cmd.String("addons"); p != "" {
		path = p
	}
	return repositories.NewDesiredStateFile(path)
}

// openDatabase opens the run history database and applies migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

// progress prints updates until prog is closed, then closes the returned channel.
func (r *Runner) progress(prog <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range prog {
			switch update.Phase {
			case tasks.AccountStart:
				r.logger.Debug(update.Message)
			case tasks.AddonOperation:
				r.writePlain("   %s\n", update.Message)
			case tasks.AccountDone:
				r.writePlain("%s\n", update.Message)
			default:
				r.logger.Debug(update.Message, "account", update.Identifier)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
