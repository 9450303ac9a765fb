package formatter

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	th "github.com/desertthunder/readdon/internal/testing"
)

func ref(id, name string) models.AddonRef {
	return models.AddonRef{ID: id, Name: name, TransportURL: "https://" + id + "/manifest.json"}
}

func sampleSummary() *models.RunSummary {
	started := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.RunSummary{
		ID:       "run-1",
		Sequence: 7,
		Started:  started,
		Finished: started.Add(3 * time.Second),
		Reports: []models.Report{
			{
				Identifier:     "a@example.com",
				Outcome:        models.OutcomeSuccess,
				TokenRefreshed: true,
				Preserved:      []models.AddonRef{ref("com.linvo.cinemeta", "Cinemeta")},
				Kept:           []models.AddonRef{ref("community.torrentio", "Torrentio")},
				Removed:        []models.AddonRef{ref("old.addon", "Old Addon")},
				Added:          []models.AddonRef{ref("new.addon", "New Addon")},
			},
			{
				Identifier: "b@example.com",
				Outcome:    models.OutcomePartialFailure,
				Reason:     "1 of 1 addon operations failed",
				Items: []models.ItemResult{
					{Op: models.OpInstall, Addon: ref("new.addon", "New Addon"), Error: "addon operation failed: install New Addon: boom"},
				},
			},
			{
				Identifier: "c@example.com",
				Outcome:    models.OutcomeAuthFailed,
				Reason:     "invalid credentials",
			},
		},
	}
}

func TestSummaryFormats(t *testing.T) {
	t.Run("SummaryToText", func(t *testing.T) {
		output := string(SummaryToText(sampleSummary(), false))

		for _, want := range []string{
			"Run #7",
			"Accounts: 3, succeeded: 1, failed: 2",
			"a@example.com: success [token refreshed]",
			"Preserved: Cinemeta",
			"Kept: Torrentio",
			"Removed: Old Addon",
			"Added: New Addon",
			"b@example.com: partial_failure (1 of 1 addon operations failed)",
			"✗ addon operation failed: install New Addon: boom",
			"c@example.com: auth_failed (invalid credentials)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("text missing %q, got:\n%s", want, output)
			}
		}
		if strings.Contains(output, "\x1b[") {
			t.Error("unstyled output must not contain escape codes")
		}
	})

	t.Run("SummaryToText dry run labels", func(t *testing.T) {
		s := sampleSummary()
		s.DryRun = true
		s.Reports[0].DryRun = true
		output := string(SummaryToText(s, false))

		if !strings.Contains(output, "(dry run)") || !strings.Contains(output, "Would remove: Old Addon") {
			t.Errorf("unexpected dry run output:\n%s", output)
		}
	})

	t.Run("SummaryToMarkdown", func(t *testing.T) {
		output := string(SummaryToMarkdown(sampleSummary()))

		for _, want := range []string{
			"# Run #7",
			"**ID**: run-1",
			"| a@example.com | success | 1 | 1 |  |",
			"| c@example.com | auth_failed | 0 | 0 | invalid credentials |",
			"## a@example.com",
			"- Torrentio (`community.torrentio`)",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("SummaryToJSON", func(t *testing.T) {
		data, err := SummaryToJSON(sampleSummary())
		if err != nil {
			t.Fatalf("SummaryToJSON failed: %v", err)
		}

		var decoded models.RunSummary
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Reports[2].Outcome != models.OutcomeAuthFailed {
			t.Errorf("outcome = %v, want auth_failed", decoded.Reports[2].Outcome)
		}
		if !strings.Contains(string(data), `"outcome": "partial_failure"`) {
			t.Errorf("outcome should encode as a string, got:\n%s", data)
		}
	})
}

func TestWrite(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{format: "", want: "Run #7"},
		{format: FormatText, want: "Run #7"},
		{format: FormatJSON, want: `"id": "run-1"`},
		{format: FormatMarkdown, want: "# Run #7"},
		{format: "md", want: "# Run #7"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, sampleSummary(), tt.format)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("output missing %q", tt.want)
			}
		})
	}

	t.Run("writer error", func(t *testing.T) {
		if err := Write(&th.FWriter{}, sampleSummary(), FormatText); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("buffer is not a terminal", func(t *testing.T) {
		if IsTerminal(&bytes.Buffer{}) {
			t.Error("bytes.Buffer reported as terminal")
		}
	})
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json by extension", func(t *testing.T) {
		path := filepath.Join(dir, "summary.json")
		if err := WriteFile(sampleSummary(), path); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "{") {
			t.Errorf("expected JSON, got %q", content[:min(len(content), 20)])
		}
	})

	t.Run("markdown by extension", func(t *testing.T) {
		path := filepath.Join(dir, "summary.md")
		if err := WriteFile(sampleSummary(), path); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "# Run #7") {
			t.Errorf("expected markdown, got %q", content)
		}
	})

	t.Run("text otherwise", func(t *testing.T) {
		path := filepath.Join(dir, "summary.txt")
		if err := WriteFile(sampleSummary(), path); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
		if content := th.MustReadFile(t, path); !strings.HasPrefix(content, "Run #7") {
			t.Errorf("expected text, got %q", content)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		if err := WriteFile(sampleSummary(), filepath.Join(dir, "nope", "summary.txt")); err == nil {
			t.Error("expected error")
		}
	})
}

func TestPlanToText(t *testing.T) {
	t.Run("lists classes and changes", func(t *testing.T) {
		cinemeta := th.Addon("com.linvo.cinemeta", "Cinemeta", "https://c/manifest.json")
		cinemeta.Class = models.Default
		old := th.Addon("old.addon", "Old Addon", "https://o/manifest.json")
		old.Class = models.CustomUndesired
		plan := &models.Plan{
			Classified: []models.AddonDescriptor{cinemeta, old},
			Skipped:    []models.SkippedAddon{{TransportURL: "https://b/manifest.json", Reason: "status 404"}},
			Remove:     []models.AddonDescriptor{old},
			Install:    []models.AddonDescriptor{th.Addon("new.addon", "New Addon", "https://n/manifest.json")},
		}

		output := string(PlanToText("a@example.com", plan))
		for _, want := range []string{
			"default    Cinemeta (com.linvo.cinemeta)",
			"undesired  Old Addon (old.addon)",
			"skipped    https://b/manifest.json (status 404)",
			"  - Old Addon",
			"  + New Addon",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("plan missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty and nil plans", func(t *testing.T) {
		if !strings.Contains(string(PlanToText("a", &models.Plan{})), "no changes") {
			t.Error("empty plan should say no changes")
		}
		if !strings.Contains(string(PlanToText("a", nil)), "not planned") {
			t.Error("nil plan should say not planned")
		}
	})
}

func TestListings(t *testing.T) {
	t.Run("AddonsToText", func(t *testing.T) {
		output := string(AddonsToText([]models.AddonDescriptor{
			th.Addon("community.torrentio", "Torrentio", "https://torrentio.strem.fun/manifest.json"),
		}))
		if !strings.Contains(output, "1. Torrentio (community.torrentio)") ||
			!strings.Contains(output, "https://torrentio.strem.fun/manifest.json") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})

	t.Run("RunsToText", func(t *testing.T) {
		output := string(RunsToText([]repositories.RunRecord{
			{Sequence: 2, Started: time.Now(), Accounts: 3, Succeeded: 2, Failed: 1, DryRun: true},
		}))
		if !strings.Contains(output, "#2") || !strings.Contains(output, "3 accounts, 2 ok, 1 failed (dry run)") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})
}
