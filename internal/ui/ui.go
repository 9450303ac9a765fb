package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/services"
	"github.com/desertthunder/readdon/internal/shared"
)

// ViewState represents the current view in the prompt.
type ViewState int

const (
	InputView ViewState = iota
	ResolvingView
	ReviewView
	DoneView
)

// doneWord finishes the prompt when entered as a URL.
const doneWord = "done"

// AddonPrompt collects addon URLs interactively and resolves each one through a [services.Fetcher].
type AddonPrompt struct {
	ctx       context.Context
	fetcher   services.Fetcher
	view      ViewState
	input     textinput.Model
	review    list.Model
	addons    []models.AddonDescriptor
	status    string
	lastErr   error
	cancelled bool
	width     int
	height    int
	help      help.Model
	keys      keyMap
}

// NewAddonPrompt creates a prompt seeded with existing addons.
func NewAddonPrompt(ctx context.Context, fetcher services.Fetcher, existing []models.AddonDescriptor) *AddonPrompt {
	ti := textinput.New()
	ti.Placeholder = "https://example.strem.fun/manifest.json"
	ti.Prompt = "Addon URL: "
	ti.CharLimit = 2048
	ti.Width = 60
	ti.Focus()

	return &AddonPrompt{
		ctx:     ctx,
		fetcher: fetcher,
		view:    InputView,
		input:   ti,
		review:  list.New(nil, list.NewDefaultDelegate(), 0, 0),
		addons:  slices.Clone(existing),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Addons returns the collected descriptors in entry order.
func (m *AddonPrompt) Addons() []models.AddonDescriptor { return slices.Clone(m.addons) }

// Cancelled reports whether the user aborted the prompt.
func (m *AddonPrompt) Cancelled() bool { return m.cancelled }

// State returns the current view state.
func (m *AddonPrompt) State() ViewState { return m.view }

// Err returns the last resolution error shown to the user.
func (m *AddonPrompt) Err() error { return m.lastErr }

// Init starts the cursor blinking.
func (m *AddonPrompt) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *AddonPrompt) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.review.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.cancelled = true
			m.view = DoneView
			return m, tea.Quit
		}
		switch m.view {
		case InputView:
			return m.handleInputKeys(msg)
		case ReviewView:
			return m.handleReviewKeys(msg)
		case ResolvingView:
			return m, nil
		}

	case Msg:
		if msg.kind == MsgAddonResolved {
			return m.handleResolved(msg.data.(resolved))
		}
	}

	return m.updateInput(msg)
}

func (m *AddonPrompt) handleInputKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.finish):
		return m.finish()
	case key.Matches(msg, m.keys.review):
		m.review.SetItems(addonItems(m.addons))
		m.review.Title = "Desired Addons"
		m.view = ReviewView
		return m, nil
	case key.Matches(msg, m.keys.submit):
		value := strings.TrimSpace(m.input.Value())
		if strings.EqualFold(value, doneWord) {
			return m.finish()
		}
		if value == "" {
			return m, nil
		}
		m.view = ResolvingView
		m.status = fmt.Sprintf("Fetching %s...", value)
		m.lastErr = nil
		return m, m.resolve(value)
	}
	return m.updateInput(msg)
}

func (m *AddonPrompt) handleReviewKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = InputView
		return m, nil
	case key.Matches(msg, m.keys.finish):
		return m.finish()
	case key.Matches(msg, m.keys.remove):
		if i := m.review.Index(); i >= 0 && i < len(m.addons) {
			m.status = fmt.Sprintf("Removed %s", m.addons[i].DisplayName())
			m.addons = slices.Delete(m.addons, i, i+1)
			m.review.RemoveItem(i)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.review, cmd = m.review.Update(msg)
	return m, cmd
}

func (m *AddonPrompt) handleResolved(r resolved) (tea.Model, tea.Cmd) {
	m.view = InputView
	if r.err != nil {
		m.lastErr = r.err
		m.status = ""
		return m, nil
	}

	m.input.Reset()
	addon := *r.addon
	if i := slices.IndexFunc(m.addons, func(a models.AddonDescriptor) bool { return a.Key() == addon.Key() }); i >= 0 {
		m.addons[i] = addon
		m.status = fmt.Sprintf("Replaced %s (%s)", addon.DisplayName(), addon.Key())
		return m, nil
	}
	m.addons = append(m.addons, addon)
	m.status = fmt.Sprintf("Added %s (%s)", addon.DisplayName(), addon.Key())
	return m, nil
}

func (m *AddonPrompt) finish() (tea.Model, tea.Cmd) {
	m.view = DoneView
	return m, tea.Quit
}

func (m *AddonPrompt) updateInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != InputView {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *AddonPrompt) resolve(raw string) tea.Cmd {
	return func() tea.Msg {
		url, err := services.NormalizeURL(raw)
		if err != nil {
			return addonResolvedMsg(raw, nil, err)
		}
		addon, err := m.fetcher.Fetch(m.ctx, url)
		return addonResolvedMsg(url, addon, err)
	}
}

// View renders the prompt based on the current view state.
func (m *AddonPrompt) View() string {
	switch m.view {
	case ReviewView:
		helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.remove, m.keys.finish})
		return fmt.Sprintf("%s\n\n%s", m.review.View(), helpView)
	case DoneView:
		if m.cancelled {
			return styles.Warn("Cancelled.") + "\n"
		}
		return styles.OK(fmt.Sprintf("✓ %d addons collected", len(m.addons))) + "\n"
	}

	var b strings.Builder
	b.WriteString(styles.Title("Desired Addons"))
	b.WriteString("\n")
	for i, a := range m.addons {
		fmt.Fprintf(&b, "  %d. %s %s\n", i+1, a.DisplayName(), styles.ID(a.Key()))
	}
	if len(m.addons) == 0 {
		b.WriteString(styles.Help("  none yet") + "\n")
	}
	b.WriteString("\n" + m.input.View() + "\n")

	switch {
	case m.view == ResolvingView:
		b.WriteString(styles.Help(m.status) + "\n")
	case m.lastErr != nil:
		b.WriteString(styles.Err(m.lastErr.Error()) + "\n")
	case m.status != "":
		b.WriteString(styles.OK(m.status) + "\n")
	}

	b.WriteString(styles.Help(fmt.Sprintf("Type %q or press ctrl+d when finished.", doneWord)) + "\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.submit, m.keys.review, m.keys.finish, m.keys.quit}))
	return b.String()
}

// RunAddonPrompt runs the prompt on the terminal and returns the collected addons.
//
// Returns [shared.ErrCancelled] when the user aborts.
func RunAddonPrompt(ctx context.Context, fetcher services.Fetcher, existing []models.AddonDescriptor, opts ...tea.ProgramOption) ([]models.AddonDescriptor, error) {
	model := NewAddonPrompt(ctx, fetcher, existing)
	opts = append(opts, tea.WithContext(ctx))
	final, err := tea.NewProgram(model, opts...).Run()
	if err != nil {
		return nil, fmt.Errorf("addon prompt failed: %w", err)
	}

	prompt := final.(*AddonPrompt)
	if prompt.Cancelled() {
		return nil, shared.ErrCancelled
	}
	return prompt.Addons(), nil
}
