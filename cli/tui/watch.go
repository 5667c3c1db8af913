package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/sextant/pipeline"
	"github.com/pithecene-io/sextant/result"
	"github.com/pithecene-io/sextant/types"
)

const (
	maxLogLines   = 8
	maxOrderLines = 5
	barWidth      = 30
)

type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// WatchModel renders the live state of one session.
type WatchModel struct {
	session   string
	transport string

	state    types.SessionState
	status   string
	message  string
	summary  result.Summary
	progress float64
	results  int
	logs     []LogMsg
	orders   []string

	done     bool
	err      error
	quitting bool
	width    int
}

// NewWatchModel creates a model for the named session.
func NewWatchModel(meta *types.SessionMeta) WatchModel {
	m := WatchModel{}
	if meta != nil {
		m.session, m.transport = meta.Name, meta.Transport
	}
	return m
}

// Init implements tea.Model.
func (m WatchModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	case ResultMsg:
		m.summary, m.progress = msg.Summary, msg.Progress
		m.results++
	case LogMsg:
		m.logs = appendBounded(m.logs, msg, maxLogLines)
	case OrderMsg:
		m.orders = appendBounded(m.orders, msg.Line, maxOrderLines)
	case StatusMsg:
		m.status, m.message = msg.Status, msg.Message
	case StateMsg:
		m.state = msg.State
	case DoneMsg:
		m.done, m.err = true, msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func appendBounded[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

// Quitting reports whether the user asked to quit.
func (m WatchModel) Quitting() bool { return m.quitting }

// View implements tea.Model.
func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("sextant · %s", m.session)))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  (%s)", m.transport)))
	b.WriteString("\n\n")

	b.WriteString(field("State", StateStyle(m.state.String()).Render(m.state.String())))
	if m.status != "" {
		status := StateStyle(m.status).Render(m.status)
		if m.message != "" {
			status += MutedStyle.Render("  " + m.message)
		}
		b.WriteString(field("Algorithm", status))
	}
	b.WriteString(field("Progress", progressBar(m.progress)))
	b.WriteString(field("Updates", fmt.Sprintf("%d", m.results)))

	s := m.summary
	if s.ResultType != "" {
		b.WriteString(field("Result", s.ResultType))
	}
	b.WriteString(field("Charts", fmt.Sprintf("%d (%d series, %d points)", s.Charts, s.Series, s.Points)))
	b.WriteString(field("Orders", fmt.Sprintf("%d (%d open)", s.Orders, s.OpenOrders)))
	b.WriteString(field("P&L", ProfitStyle(s.ProfitLoss.IsNegative()).Render(s.ProfitLoss.StringFixed(2))))

	if len(s.Statistics) > 0 {
		b.WriteString("\n")
		b.WriteString(BoxStyle.Render(statistics(s.Statistics)))
		b.WriteString("\n")
	}

	if len(m.orders) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Orders"))
		b.WriteString("\n")
		for _, o := range m.orders {
			b.WriteString("  " + o + "\n")
		}
	}

	if len(m.logs) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Log"))
		b.WriteString("\n")
		for _, l := range m.logs {
			style := ValueStyle
			switch l.Kind {
			case types.LogKindDebug:
				style = MutedStyle
			case types.LogKindError:
				style = ErrorStyle
			}
			b.WriteString("  " + style.Render(l.Text) + "\n")
		}
	}

	switch {
	case m.done && m.err != nil && !pipeline.IsCanceledError(m.err):
		b.WriteString("\n" + ErrorStyle.Render("session failed: "+m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n" + SuccessStyle.Render("session ended") + "\n")
	}

	b.WriteString(HelpStyle.Render("Press q or Ctrl+C to unsubscribe"))
	return b.String()
}

func field(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value) + "\n"
}

func progressBar(p float64) string {
	filled := int(p*barWidth + 0.5)
	filled = max(0, min(barWidth, filled))
	return barFilled.Render(strings.Repeat("█", filled)) +
		barEmpty.Render(strings.Repeat("░", barWidth-filled)) +
		fmt.Sprintf(" %3.0f%%", p*100)
}

func statistics(stats map[string]string) string {
	names := make([]string, 0, len(stats))
	width := 0
	for name := range stats {
		names = append(names, name)
		width = max(width, lipgloss.Width(name))
	}
	sort.Strings(names)
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = MutedStyle.Width(width+2).Render(name) + stats[name]
	}
	return strings.Join(lines, "\n")
}

// Run starts the program and blocks until it exits. start is called once
// the program exists, with its Send function, so the caller can subscribe
// with a Bridge. The returned model reports whether the user quit.
func Run(meta *types.SessionMeta, start func(send func(tea.Msg)) error, opts ...tea.ProgramOption) (WatchModel, error) {
	p := tea.NewProgram(NewWatchModel(meta), opts...)
	startErr := make(chan error, 1)
	go func() {
		startErr <- start(p.Send)
	}()
	go func() {
		if err := <-startErr; err != nil {
			p.Send(DoneMsg{Err: err})
		}
	}()
	final, err := p.Run()
	if err != nil {
		return WatchModel{}, err
	}
	m, _ := final.(WatchModel)
	return m, nil
}
