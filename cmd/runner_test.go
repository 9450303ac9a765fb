package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
	tu "github.com/desertthunder/readdon/internal/testing"
)

var (
	cinemeta  = tu.Addon("com.linvo.cinemeta", "Cinemeta", "https://v3-cinemeta.strem.io/manifest.json")
	torrentio = tu.Addon("community.torrentio", "Torrentio", "https://torrentio.strem.fun/manifest.json")
	mdblist   = tu.Addon("org.mdblist", "MDBList", "https://mdblist.example/manifest.json")
	stale     = tu.Addon("old.addon", "Old", "https://old.example/manifest.json")
)

type harness struct {
	runner  *Runner
	fake    *tu.FakeStremio
	fetcher *tu.FakeFetcher
	output  *bytes.Buffer
	config  *shared.Config
	prompts int
}

// newHarness builds a runner whose files all live in a temp dir and whose remote side is fake.
func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	config := shared.DefaultConfig()
	config.Files.Logins = filepath.Join(dir, "logins.csv")
	config.Files.Addons = filepath.Join(dir, "addons.json")
	config.Database.Path = filepath.Join(dir, "readdon.db")

	h := &harness{
		fake:    tu.NewFakeStremio(),
		fetcher: tu.NewFakeFetcher(torrentio, mdblist),
		output:  &bytes.Buffer{},
		config:  config,
	}
	h.runner = NewRunner(RunnerOpts{
		Config:  config,
		Service: h.fake,
		Fetcher: h.fetcher,
		Logger:  shared.NewLogger(io.Discard),
		Output:  h.output,
		Prompt: func(ctx context.Context, f services.Fetcher, existing []models.AddonDescriptor) ([]models.AddonDescriptor, error) {
			h.prompts++
			return append(existing, torrentio), nil
		},
	})
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	return newApp(h.runner).Run(context.Background(), append([]string{"readdon"}, args...))
}

func (h *harness) writeDesired(t *testing.T, addons ...models.AddonDescriptor) {
	t.Helper()
	ds, err := models.NewDesiredState(addons...)
	if err != nil {
		t.Fatalf("NewDesiredState: %v", err)
	}
	if err := repositories.NewDesiredStateFile(h.config.Files.Addons).Save(ds); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func (h *harness) desiredIDs(t *testing.T) []string {
	t.Helper()
	ds, err := repositories.NewDesiredStateFile(h.config.Files.Addons).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, d := range ds.Descriptors() {
		ids = append(ids, d.Key())
	}
	return ids
}

func (h *harness) records(t *testing.T) []models.CredentialRecord {
	t.Helper()
	store := repositories.NewCredentialStore(h.config.Files.Logins)
	if err := store.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return store.Records()
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			fake := tu.NewFakeStremio()
			fetcher := tu.NewFakeFetcher()

			runner := NewRunner(RunnerOpts{
				Config:  config,
				Logger:  logger,
				Output:  output,
				Service: fake,
				Fetcher: fetcher,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.svc != fake {
				t.Error("expected service to be set")
			}
			if runner.fetcher != fetcher {
				t.Error("expected fetcher to be set")
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if _, ok := runner.svc.(*services.StremioService); !ok {
				t.Errorf("expected StremioService, got %T", runner.svc)
			}
			if _, ok := runner.fetcher.(*services.ManifestFetcher); !ok {
				t.Errorf("expected ManifestFetcher, got %T", runner.fetcher)
			}
			if runner.prompt == nil {
				t.Error("expected default prompt")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if expected := `{"key":"value"}` + "\n"; output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		var names []string
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names = append(names, cmd.Name)
		}
		for _, want := range []string{"run", "addons", "accounts", "history", "setup"} {
			if !slices.Contains(names, want) {
				t.Errorf("missing command %q in %v", want, names)
			}
		}
	})
}

func TestRunCommand(t *testing.T) {
	t.Run("converges accounts and writes tokens back", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa", cinemeta, stale)
		h.fake.AddAccount("b@example.com", "pb", cinemeta)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password,auth_token\na@example.com,pa,\nb@example.com,pb,\n")
		h.writeDesired(t, torrentio)

		if err := h.run(t, "run", "--no-history"); err != nil {
			t.Fatalf("run: %v", err)
		}

		for _, id := range []string{"a@example.com", "b@example.com"} {
			if got := h.fake.InstalledIDs(id); !slices.Equal(got, []string{"com.linvo.cinemeta", "community.torrentio"}) {
				t.Errorf("%s installed = %v", id, got)
			}
		}
		for _, rec := range h.records(t) {
			if rec.Token == "" {
				t.Errorf("expected token for %s to be saved", rec.Identifier)
			}
		}
		if out := h.output.String(); !strings.Contains(out, "Accounts: 2, succeeded: 2, failed: 0") {
			t.Errorf("unexpected summary:\n%s", out)
		}
	})

	t.Run("saved token is reused on the next run", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa", cinemeta)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password,auth_token\na@example.com,pa,\n")
		h.writeDesired(t, torrentio)

		for range 2 {
			if err := h.run(t, "run", "--no-history"); err != nil {
				t.Fatalf("run: %v", err)
			}
		}
		if n := h.fake.AuthCalls("a@example.com"); n != 1 {
			t.Errorf("AuthCalls = %d, want 1", n)
		}
	})

	t.Run("dry run changes nothing", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa", cinemeta, stale)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password\na@example.com,pa\n")
		h.writeDesired(t, torrentio)

		if err := h.run(t, "run", "--dry-run", "--no-history"); err != nil {
			t.Fatalf("run: %v", err)
		}

		if h.fake.Calls(tu.OpInstall) != 0 || h.fake.Calls(tu.OpRemove) != 0 {
			t.Error("dry run must not mutate collections")
		}
		out := h.output.String()
		for _, want := range []string{"Planned changes", "- Old", "+ Torrentio", "Would remove"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("missing desired list starts the prompt", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa")
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password\na@example.com,pa\n")

		if err := h.run(t, "run", "--no-history"); err != nil {
			t.Fatalf("run: %v", err)
		}
		if h.prompts != 1 {
			t.Errorf("prompts = %d, want 1", h.prompts)
		}
		if got := h.desiredIDs(t); !slices.Equal(got, []string{"community.torrentio"}) {
			t.Errorf("saved desired = %v", got)
		}
	})

	t.Run("missing credential file is a persistence error", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio)

		if err := h.run(t, "run"); !errors.Is(err, shared.ErrPersistence) {
			t.Errorf("err = %v, want ErrPersistence", err)
		}
	})

	t.Run("empty credential file is rejected", func(t *testing.T) {
		h := newHarness(t)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password\n")
		h.writeDesired(t, torrentio)

		if err := h.run(t, "run"); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("err = %v, want ErrMissingCredentials", err)
		}
	})

	t.Run("invalid format is rejected", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "run", "--format", "xml"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("err = %v, want ErrInvalidFlag", err)
		}
	})

	t.Run("failed account still exits cleanly", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa")
		h.fake.AddAccount("b@example.com", "pb")
		h.fake.FailAuth("b@example.com", shared.ErrInvalidCredentials)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password\na@example.com,pa\nb@example.com,pb\n")
		h.writeDesired(t, torrentio)

		if err := h.run(t, "run", "--no-history"); err != nil {
			t.Fatalf("run: %v", err)
		}
		if out := h.output.String(); !strings.Contains(out, "failed: 1") {
			t.Errorf("unexpected summary:\n%s", out)
		}
	})

	t.Run("writes summary file", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa")
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password\na@example.com,pa\n")
		h.writeDesired(t, torrentio)
		out := filepath.Join(t.TempDir(), "summary.json")

		if err := h.run(t, "run", "--no-history", "--output", out); err != nil {
			t.Fatalf("run: %v", err)
		}
		tu.AssertFileExists(t, out)
		if content := tu.MustReadFile(t, out); !strings.Contains(content, `"identifier": "a@example.com"`) {
			t.Errorf("unexpected summary file:\n%s", content)
		}
	})
}

func TestAddonsCommand(t *testing.T) {
	t.Run("add creates the list", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(t, "addons", "add", torrentio.TransportURL); err != nil {
			t.Fatalf("add: %v", err)
		}
		if got := h.desiredIDs(t); !slices.Equal(got, []string{"community.torrentio"}) {
			t.Errorf("desired = %v", got)
		}
		if !strings.Contains(h.output.String(), "Added Torrentio") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("add normalizes stremio urls", func(t *testing.T) {
		h := newHarness(t)

		if err := h.run(t, "addons", "add", "stremio://mdblist.example/manifest.json"); err != nil {
			t.Fatalf("add: %v", err)
		}
		if fetched := h.fetcher.Fetched(); len(fetched) != 1 || fetched[0] != mdblist.TransportURL {
			t.Errorf("fetched = %v", fetched)
		}
	})

	t.Run("add replaces an existing entry", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, tu.Addon("community.torrentio", "Old", "https://old.example/manifest.json"))

		if err := h.run(t, "addons", "add", torrentio.TransportURL); err != nil {
			t.Fatalf("add: %v", err)
		}
		if !strings.Contains(h.output.String(), "Replaced") {
			t.Errorf("unexpected output %q", h.output.String())
		}
	})

	t.Run("add with failed fetch leaves the file alone", func(t *testing.T) {
		h := newHarness(t)

		err := h.run(t, "addons", "add", "https://missing.example/manifest.json")
		if !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("err = %v, want ErrFetchFailed", err)
		}
		if _, statErr := os.Stat(h.config.Files.Addons); statErr == nil {
			t.Error("desired file should not be created")
		}
	})

	t.Run("add without url", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "addons", "add"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("err = %v, want ErrMissingArgument", err)
		}
	})

	t.Run("remove", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio, mdblist)

		if err := h.run(t, "addons", "rm", "community.torrentio"); err != nil {
			t.Fatalf("remove: %v", err)
		}
		if got := h.desiredIDs(t); !slices.Equal(got, []string{"org.mdblist"}) {
			t.Errorf("desired = %v", got)
		}
	})

	t.Run("remove unknown id", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio)

		if err := h.run(t, "addons", "remove", "nope"); !errors.Is(err, shared.ErrAddonNotFound) {
			t.Errorf("err = %v, want ErrAddonNotFound", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio, mdblist)

		if err := h.run(t, "addons", "list"); err != nil {
			t.Fatalf("list: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "1. Torrentio (community.torrentio)") || !strings.Contains(out, "2. MDBList") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("list json", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio)

		if err := h.run(t, "addons", "list", "--json"); err != nil {
			t.Fatalf("list: %v", err)
		}
		if !strings.Contains(h.output.String(), `"transportUrl": "https://torrentio.strem.fun/manifest.json"`) {
			t.Errorf("unexpected output:\n%s", h.output.String())
		}
	})

	t.Run("prompt starts from the saved list", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, mdblist)

		if err := h.run(t, "addons", "prompt"); err != nil {
			t.Fatalf("prompt: %v", err)
		}
		if got := h.desiredIDs(t); !slices.Equal(got, []string{"org.mdblist", "community.torrentio"}) {
			t.Errorf("desired = %v", got)
		}
	})

	t.Run("cancelled prompt writes nothing", func(t *testing.T) {
		h := newHarness(t)
		h.runner.prompt = func(context.Context, services.Fetcher, []models.AddonDescriptor) ([]models.AddonDescriptor, error) {
			return nil, shared.ErrCancelled
		}

		if err := h.run(t, "addons", "prompt"); !errors.Is(err, shared.ErrCancelled) {
			t.Errorf("err = %v, want ErrCancelled", err)
		}
		if _, statErr := os.Stat(h.config.Files.Addons); statErr == nil {
			t.Error("desired file should not be created")
		}
	})

	t.Run("refresh re-fetches every manifest", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, tu.Addon("community.torrentio", "Stale Name", torrentio.TransportURL))

		if err := h.run(t, "addons", "refresh"); err != nil {
			t.Fatalf("refresh: %v", err)
		}
		ds, err := repositories.NewDesiredStateFile(h.config.Files.Addons).Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if got, _ := ds.Get("community.torrentio"); got.Manifest.Name != "Torrentio" {
			t.Errorf("name = %q, want Torrentio", got.Manifest.Name)
		}
	})

	t.Run("refresh stops on the first failure", func(t *testing.T) {
		h := newHarness(t)
		h.writeDesired(t, torrentio, stale)
		before := tu.MustReadFile(t, h.config.Files.Addons)

		if err := h.run(t, "addons", "refresh"); !errors.Is(err, shared.ErrFetchFailed) {
			t.Errorf("err = %v, want ErrFetchFailed", err)
		}
		if after := tu.MustReadFile(t, h.config.Files.Addons); after != before {
			t.Error("desired file must not change")
		}
	})
}

func TestAccountsCommand(t *testing.T) {
	t.Run("list masks tokens", func(t *testing.T) {
		h := newHarness(t)
		tu.MustWriteFile(t, h.config.Files.Logins, "email,password,auth_token\na@example.com,secret-pa,abcdefghijklmnop\nb@example.com,pb,\n")

		if err := h.run(t, "accounts", "list"); err != nil {
			t.Fatalf("list: %v", err)
		}
		out := h.output.String()
		if strings.Contains(out, "abcdefghijklmnop") || strings.Contains(out, "secret-pa") {
			t.Errorf("secrets leaked:\n%s", out)
		}
		if !strings.Contains(out, "a@example.com") || !strings.Contains(out, "b@example.com") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("check refreshes and saves tokens", func(t *testing.T) {
		h := newHarness(t)
		h.fake.AddAccount("a@example.com", "pa", cinemeta)
		h.fake.AddAccount("b@example.com", "pb")
		h.fake.AddAccount("c@example.com", "pc")
		h.fake.FailAuth("c@example.com", shared.ErrInvalidCredentials)
		valid := h.fake.IssueToken("a@example.com")
		tu.MustWriteFile(t, h.config.Files.Logins,
			"email,password,auth_token\na@example.com,pa,"+valid+"\nb@example.com,pb,\nc@example.com,pc,\n")

		if err := h.run(t, "accounts", "check"); err != nil {
			t.Fatalf("check: %v", err)
		}

		out := h.output.String()
		for _, want := range []string{"token valid", "token refreshed", "failed:", "2 of 3 accounts authenticated"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if h.fake.Calls(tu.OpAddons) != 0 {
			t.Error("check must not read collections")
		}

		records := h.records(t)
		if records[0].Token != valid {
			t.Errorf("valid token changed to %q", records[0].Token)
		}
		if records[1].Token == "" {
			t.Error("expected refreshed token to be saved")
		}
		if records[2].Token != "" {
			t.Error("failed account must keep its empty token")
		}
	})
}

func TestHistoryCommand(t *testing.T) {
	h := newHarness(t)
	h.fake.AddAccount("a@example.com", "pa", stale)
	tu.MustWriteFile(t, h.config.Files.Logins, "email,password\na@example.com,pa\n")
	h.writeDesired(t, torrentio)

	for range 2 {
		if err := h.run(t, "run"); err != nil {
			t.Fatalf("run: %v", err)
		}
	}

	t.Run("list", func(t *testing.T) {
		h.output.Reset()
		if err := h.run(t, "history", "list"); err != nil {
			t.Fatalf("list: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "#1 ") || !strings.Contains(out, "#2 ") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("show by sequence", func(t *testing.T) {
		h.output.Reset()
		if err := h.run(t, "history", "show", "--format", "json", "1"); err != nil {
			t.Fatalf("show: %v", err)
		}
		if out := h.output.String(); !strings.Contains(out, `"sequence": 1`) || !strings.Contains(out, "old.addon") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("show unknown run", func(t *testing.T) {
		if err := h.run(t, "history", "show", "99"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("err = %v, want ErrRunNotFound", err)
		}
	})

	t.Run("account", func(t *testing.T) {
		h.output.Reset()
		if err := h.run(t, "history", "account", "a@example.com"); err != nil {
			t.Fatalf("account: %v", err)
		}
		out := h.output.String()
		if !strings.Contains(out, "removed 1, added 1") || !strings.Contains(out, "removed 0, added 0") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})
}

func TestSetupCommand(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		h := newHarness(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := h.run(t, "--config", path, "setup", "config"); err != nil {
			t.Fatalf("setup config: %v", err)
		}
		tu.AssertFileExists(t, path)
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("created config does not load: %v", err)
		}
	})

	t.Run("database", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run(t, "setup", "database"); err != nil {
			t.Fatalf("setup database: %v", err)
		}
		tu.AssertFileExists(t, h.config.Database.Path)
	})
}
