// Package tui renders a live view of a running broker.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/snowmerak/pubsub.go/lib/broker"
)

// Source is the part of a broker the view polls.
type Source interface {
	Modules() []broker.ModuleInfo
	Stats() broker.Stats
}

type refreshMsg time.Time

// model is a plain text Bubble Tea model. No icons, plain text only.
type model struct {
	title    string
	src      Source
	interval time.Duration
	modules  []broker.ModuleInfo
	stats    broker.Stats
	paused   bool
}

func newModel(title string, src Source, interval time.Duration) model {
	return model{title: title, src: src, interval: interval}
}

func (m model) refresh() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })
}

func (m model) Init() tea.Cmd { return m.refresh() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			return m, nil
		}
	case refreshMsg:
		if !m.paused {
			m.modules = m.src.Modules()
			m.stats = m.src.Stats()
		}
		return m, m.refresh()
	}
	return m, nil
}

func (m model) View() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (press 'p' to pause, 'q' to quit)\n\n", m.title)
	fmt.Fprintf(&sb, "%-4s %-16s %-6s %8s %8s %8s  %s\n", "ID", "MODULE", "STATE", "PENDING", "HANDLED", "FAILED", "TOPICS")
	for _, info := range m.modules {
		state := "alive"
		switch {
		case !info.Alive:
			state = "dead"
		case info.Stopped:
			state = "done"
		}
		fmt.Fprintf(&sb, "%-4d %-16s %-6s %8d %8d %8d  %s\n",
			info.ID, info.Name, state, info.Pending, info.Handled, info.Failed, strings.Join(info.Topics, ","))
	}

	s := m.stats
	fmt.Fprintf(&sb, "\nrouted %d  delivered %d  unrouted %d  acks %d  violations %d  failures %d\n",
		s.Routed, s.Delivered, s.Unrouted, s.Acks, s.Violations, s.Failures)
	if m.paused {
		sb.WriteString("\nStatus: paused\n")
	}
	return sb.String()
}

// Run shows the view until the user quits or ctx is done.
func Run(ctx context.Context, title string, src Source, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	_, err := tea.NewProgram(newModel(title, src, interval), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}
