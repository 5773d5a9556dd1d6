package cli

import (
	"context"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"qlscan/internal/batch"
	"qlscan/internal/models"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// batchEventMsg carries one coordinator event; ok is false once the run
// has finished and the channel is closed.
type batchEventMsg struct {
	ev batch.Event
	ok bool
}

// batchModel is the bubbletea model for batch run progress.
type batchModel struct {
	events <-chan batch.Event
	cancel context.CancelFunc

	index   int
	total   int
	project string
	state   batch.State

	created int
	skipped int
	failed  int

	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
}

// newBatchModel creates a new progress model reading from events.
func newBatchModel(events <-chan batch.Event, cancel context.CancelFunc) batchModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return batchModel{
		events:   events,
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (start reading events).
func (m batchModel) Init() tea.Cmd {
	return tea.Batch(
		listenCmd(m.events),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Ctrl+C inside the UI is a key event, not a signal: cancel
			// the run here so the coordinator stops after the current unit.
			m.cancel()
			m.quitting = true
			return m, tea.Quit
		}

	case batchEventMsg:
		if !msg.ok {
			m.done = true
			return m, tea.Quit
		}

		ev := msg.ev
		m.index = ev.Index
		m.total = ev.Total
		m.project = ev.Project
		m.state = ev.State

		// Only terminal events carry a status; intermediate state changes
		// just move the status line.
		switch ev.Status {
		case models.UnitCreated:
			m.created++
		case models.UnitSkipped:
			m.skipped++
		case models.UnitError:
			m.failed++
		}

		return m, listenCmd(m.events)

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m batchModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m batchModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.total == 0 {
		return "Starting batch run...\n"
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.index-1) / float64(m.total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.state))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d projects", m.index, m.total)

	tallies := fmt.Sprintf("created %d · skipped %d · failed %d", m.created, m.skipped, m.failed)
	if m.failed > 0 {
		tallies = fmt.Sprintf("created %d · skipped %d · %s", m.created, m.skipped,
			m.theme.errorStyle().Render(fmt.Sprintf("failed %d", m.failed)))
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop after the current unit")

	return fmt.Sprintf("%s %s %s\n%s  %s\n%s\n", status, progressBar, counts, m.project, tallies, hint)
}

// finalView renders the completion message.
func (m batchModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nStopping after the current unit...\n")
	}

	var output string
	if m.failed > 0 {
		output += m.theme.errorStyle().Render("✗ Batch finished with failures") + "\n"
	} else {
		output += m.theme.completedStyle().Render("✓ Batch finished") + "\n"
	}
	output += fmt.Sprintf("  Created: %d\n  Skipped: %d\n  Failed:  %d\n", m.created, m.skipped, m.failed)
	return output
}

// listenCmd waits for the next coordinator event.
// Runs in a separate goroutine (command) to avoid blocking Update().
func listenCmd(events <-chan batch.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		return batchEventMsg{ev: ev, ok: ok}
	}
}

// runBatchProgress runs the interactive progress UI until the event channel
// closes or the user quits. Quitting cancels the run via cancel; the unit in
// flight still finishes and the caller prints the final summary either way.
func runBatchProgress(events <-chan batch.Event, cancel context.CancelFunc) error {
	p := tea.NewProgram(newBatchModel(events, cancel))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("progress UI error: %w", err)
	}
	return nil
}
