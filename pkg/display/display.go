// Package display shows a drawn number full screen for a fixed hold time
// before playback starts. Without a terminal it falls back to plain text.
package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/synrais/ROLL-GO/pkg/table"
)

// Outcome is how a display ended.
type Outcome int

const (
	Holding Outcome = iota
	Done
	Aborted
)

func (o Outcome) String() string {
	switch o {
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "holding"
	}
}

var (
	numberStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A")).
			Padding(0, 2)
	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f2f2f2"))
	invalidStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e53935"))
	hintStyle = lipgloss.NewStyle().
			Faint(true)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(1, 4).
			Align(lipgloss.Center)
)

type holdDoneMsg struct{}

// Model is the Bubble Tea model for one selection.
type Model struct {
	sel     table.Selection
	hold    time.Duration
	spinner spinner.Model
	outcome Outcome
	width   int
	height  int
}

func NewModel(sel table.Selection, hold time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return Model{sel: sel, hold: hold, spinner: sp}
}

// Outcome reports how the model finished.
func (m Model) Outcome() Outcome {
	return m.outcome
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.Tick(m.hold, func(time.Time) tea.Msg { return holdDoneMsg{} }),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case holdDoneMsg:
		if m.outcome == Holding {
			m.outcome = Done
		}
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.outcome = Aborted
			return m, tea.Quit
		case "enter", " ":
			// skip the rest of the hold
			m.outcome = Done
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	msg := messageStyle.Render(m.sel.Message)
	if !m.sel.HasVideo() {
		msg = invalidStyle.Render(m.sel.Message)
	}

	footer := hintStyle.Render("enter: play now  q: cancel")
	if m.sel.HasVideo() && m.outcome == Holding {
		footer = m.spinner.View() + " " + footer
	}

	box := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		numberStyle.Render(fmt.Sprintf("%d", m.sel.Number)),
		"",
		msg,
		"",
		footer,
	))
	if m.width == 0 || m.height == 0 {
		return box
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Show displays sel for hold, full screen when stdout is a terminal. It
// returns Done when playback should follow and Aborted when the user
// cancelled or ctx ended first.
func Show(ctx context.Context, sel table.Selection, hold time.Duration) (Outcome, error) {
	if !isTerminal() {
		return showPlain(ctx, os.Stdout, sel, hold)
	}

	p := tea.NewProgram(NewModel(sel, hold), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) || ctx.Err() != nil {
			return Aborted, nil
		}
		return Aborted, err
	}
	if m, ok := final.(Model); ok {
		return m.Outcome(), nil
	}
	return Aborted, nil
}

func showPlain(ctx context.Context, w io.Writer, sel table.Selection, hold time.Duration) (Outcome, error) {
	fmt.Fprintf(w, "%d\n%s\n", sel.Number, sel.Message)

	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-timer.C:
		return Done, nil
	case <-ctx.Done():
		return Aborted, nil
	}
}
