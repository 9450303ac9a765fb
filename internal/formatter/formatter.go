// package formatter renders run summaries, plans and history as text, Markdown or JSON
package formatter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/repositories"
	"github.com/desertthunder/readdon/internal/shared"
	"github.com/mattn/go-isatty"
)

// Output formats accepted by [Write].
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Write renders summary to w in the given format. Text is styled only when w is a terminal.
func Write(w io.Writer, summary *models.RunSummary, format string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case "", FormatText:
		data = SummaryToText(summary, IsTerminal(w))
	case FormatJSON:
		data, err = SummaryToJSON(summary)
	case FormatMarkdown, "md":
		data = SummaryToMarkdown(summary)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, format)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile renders summary to path, choosing the format from its extension.
func WriteFile(summary *models.RunSummary, path string) error {
	format := FormatText
	switch {
	case strings.HasSuffix(path, ".json"):
		format = FormatJSON
	case strings.HasSuffix(path, ".md"):
		format = FormatMarkdown
	}

	var buf bytes.Buffer
	if err := Write(&buf, summary, format); err != nil {
		return err
	}
	if err := shared.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}

// SummaryToJSON converts a run summary to indented JSON.
func SummaryToJSON(summary *models.RunSummary) ([]byte, error) {
	return shared.MarshalJSON(summary, true)
}

type painter struct{ styled bool }

func (p painter) paint(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p painter) outcome(o models.Outcome) string {
	switch o {
	case models.OutcomeSuccess:
		return p.paint(okStyle, o.String())
	case models.OutcomePartialFailure:
		return p.paint(warnStyle, o.String())
	default:
		return p.paint(errStyle, o.String())
	}
}

// SummaryToText converts a run summary to plain text, one block per account.
func SummaryToText(summary *models.RunSummary, styled bool) []byte {
	var buf bytes.Buffer
	p := painter{styled: styled}

	title := "Run"
	if summary.Sequence > 0 {
		title = fmt.Sprintf("Run #%d", summary.Sequence)
	}
	if summary.DryRun {
		title += " (dry run)"
	}
	buf.WriteString(p.paint(titleStyle, title) + "\n")
	fmt.Fprintf(&buf, "Accounts: %d, succeeded: %d, failed: %d\n\n",
		len(summary.Reports), summary.Succeeded(), summary.Failed())

	for _, r := range summary.Reports {
		fmt.Fprintf(&buf, "%s: %s", r.Identifier, p.outcome(r.Outcome))
		if r.Reason != "" {
			fmt.Fprintf(&buf, " (%s)", r.Reason)
		}
		if r.TokenRefreshed {
			buf.WriteString(p.paint(dimStyle, " [token refreshed]"))
		}
		buf.WriteString("\n")

		removedLabel, addedLabel := "Removed", "Added"
		if r.DryRun {
			removedLabel, addedLabel = "Would remove", "Would add"
		}
		writeRefs(&buf, "Preserved", r.Preserved)
		writeRefs(&buf, "Kept", r.Kept)
		writeRefs(&buf, removedLabel, r.Removed)
		writeRefs(&buf, addedLabel, r.Added)
		for _, s := range r.Skipped {
			fmt.Fprintf(&buf, "  Skipped: %s (%s)\n", s.TransportURL, s.Reason)
		}
		for _, it := range r.FailedItems() {
			buf.WriteString("  " + p.paint(errStyle, "✗") + " " + it.Error + "\n")
		}
	}

	return buf.Bytes()
}

func writeRefs(buf *bytes.Buffer, label string, refs []models.AddonRef) {
	if len(refs) == 0 {
		return
	}
	fmt.Fprintf(buf, "  %s: %s\n", label, joinRefs(refs))
}

func joinRefs(refs []models.AddonRef) string {
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.String())
	}
	return strings.Join(names, ", ")
}

// SummaryToMarkdown converts a run summary to Markdown with an outcome table and a section per account.
func SummaryToMarkdown(summary *models.RunSummary) []byte {
	var buf bytes.Buffer

	title := "Run"
	if summary.Sequence > 0 {
		title = fmt.Sprintf("Run #%d", summary.Sequence)
	}
	fmt.Fprintf(&buf, "# %s\n\n", title)
	fmt.Fprintf(&buf, "**ID**: %s\n", summary.ID)
	fmt.Fprintf(&buf, "**Started**: %s\n", summary.Started.Format(time.RFC3339))
	if summary.DryRun {
		buf.WriteString("**Mode**: dry run\n")
	}
	buf.WriteString("\n| Account | Outcome | Removed | Added | Reason |\n")
	buf.WriteString("|---|---|---|---|---|\n")
	for _, r := range summary.Reports {
		fmt.Fprintf(&buf, "| %s | %s | %d | %d | %s |\n",
			r.Identifier, r.Outcome, len(r.Removed), len(r.Added), strings.ReplaceAll(r.Reason, "|", "\\|"))
	}

	for _, r := range summary.Reports {
		fmt.Fprintf(&buf, "\n## %s\n\n", r.Identifier)
		for _, sec := range []struct {
			label string
			refs  []models.AddonRef
		}{
			{"Preserved", r.Preserved},
			{"Kept", r.Kept},
			{"Removed", r.Removed},
			{"Added", r.Added},
		} {
			if len(sec.refs) == 0 {
				continue
			}
			fmt.Fprintf(&buf, "**%s**:\n\n", sec.label)
			for _, ref := range sec.refs {
				fmt.Fprintf(&buf, "- %s (`%s`)\n", ref.String(), ref.ID)
			}
			buf.WriteString("\n")
		}
	}

	return buf.Bytes()
}

// PlanToText lists an account's classified addons and planned changes.
func PlanToText(identifier string, plan *models.Plan) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s\n", identifier)
	if plan == nil {
		buf.WriteString("  (not planned)\n")
		return buf.Bytes()
	}

	for _, a := range plan.Classified {
		fmt.Fprintf(&buf, "  %-10s %s (%s)\n", a.Class, a.DisplayName(), a.Key())
	}
	for _, s := range plan.Skipped {
		fmt.Fprintf(&buf, "  %-10s %s (%s)\n", "skipped", s.TransportURL, s.Reason)
	}
	for _, a := range plan.Remove {
		fmt.Fprintf(&buf, "  - %s\n", a.DisplayName())
	}
	for _, a := range plan.Install {
		fmt.Fprintf(&buf, "  + %s\n", a.DisplayName())
	}
	if plan.Empty() {
		buf.WriteString("  no changes\n")
	}
	return buf.Bytes()
}

// AddonsToText lists addon descriptors, one per line.
func AddonsToText(addons []models.AddonDescriptor) []byte {
	var buf bytes.Buffer
	for i, a := range addons {
		fmt.Fprintf(&buf, "%d. %s (%s)\n   %s\n", i+1, a.DisplayName(), a.Key(), a.TransportURL)
	}
	return buf.Bytes()
}

// RunsToText lists stored runs, newest first as given.
func RunsToText(runs []repositories.RunRecord) []byte {
	var buf bytes.Buffer
	for _, r := range runs {
		mode := ""
		if r.DryRun {
			mode = " (dry run)"
		}
		fmt.Fprintf(&buf, "#%d  %s  %d accounts, %d ok, %d failed%s\n",
			r.Sequence, r.Started.Local().Format("2006-01-02 15:04:05"), r.Accounts, r.Succeeded, r.Failed, mode)
	}
	return buf.Bytes()
}
