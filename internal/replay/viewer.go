package replay

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/perchlabs/echotree/internal/journal"
)

// ViewerModel is the bubbletea model for the interactive replay viewer.
type ViewerModel struct {
	session     *journal.SessionRecord
	events      []*journal.Event
	current     int
	playing     bool
	speed       float64 // 0.5, 1.0, 2.0, 4.0
	filter      Filter
	filteredIdx []int // indices into events that match the filter
	width       int
	height      int
	scrollY     int
	showHelp    bool
	quit        bool
}

// Filter controls which recorded actions are displayed.
type Filter struct {
	ShowSuccesses bool
	ShowFailures  bool
	EchoesOnly    bool
}

// DefaultFilter shows every recorded action.
func DefaultFilter() Filter {
	return Filter{
		ShowSuccesses: true,
		ShowFailures:  true,
		EchoesOnly:    false,
	}
}

// NewViewerModel creates a viewer over an already-loaded session.
func NewViewerModel(sess *journal.SessionRecord, events []*journal.Event) *ViewerModel {
	m := &ViewerModel{
		session: sess,
		events:  events,
		current: 0,
		playing: false,
		speed:   1.0,
		filter:  DefaultFilter(),
		width:   80,
		height:  24,
	}
	m.applyFilter()
	return m
}

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Background(lipgloss.Color("236")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	currentEventStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("212"))

	eventLineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	failureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)

	progressStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))
)

// Init implements tea.Model.
func (m *ViewerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *ViewerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quit = true
			return m, tea.Quit

		case " ", "p": // play/pause toggle
			m.playing = !m.playing
			if m.playing {
				return m, m.tickCmd()
			}

		case "enter", "n", "down", "j":
			m.playing = false
			m.nextEvent()

		case "N", "up", "k":
			m.playing = false
			m.prevEvent()

		case "g": // go to start
			m.current = 0
			m.updateScroll()

		case "G": // go to end
			if len(m.filteredIdx) > 0 {
				m.current = len(m.filteredIdx) - 1
				m.updateScroll()
			}

		case "1":
			m.speed = 0.5
		case "2":
			m.speed = 1.0
		case "3":
			m.speed = 2.0
		case "4":
			m.speed = 4.0

		case "s": // toggle successes
			m.filter.ShowSuccesses = !m.filter.ShowSuccesses
			m.applyFilter()
		case "f": // toggle failures
			m.filter.ShowFailures = !m.filter.ShowFailures
			m.applyFilter()
		case "e": // toggle echoes-only
			m.filter.EchoesOnly = !m.filter.EchoesOnly
			m.applyFilter()
		case "a": // show all
			m.filter = DefaultFilter()
			m.applyFilter()

		case "?", "h":
			m.showHelp = !m.showHelp

		case "pgup":
			for i := 0; i < 10; i++ {
				m.prevEvent()
			}
		case "pgdown":
			for i := 0; i < 10; i++ {
				m.nextEvent()
			}
		}

	case tickMsg:
		if m.playing {
			m.nextEvent()
			if m.current >= len(m.filteredIdx)-1 {
				m.playing = false
				return m, nil
			}
			return m, m.tickCmd()
		}
	}

	return m, nil
}

type tickMsg struct{}

func (m *ViewerModel) tickCmd() tea.Cmd {
	delay := time.Duration(float64(200*time.Millisecond) / m.speed)
	return tea.Tick(delay, func(t time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *ViewerModel) nextEvent() {
	if m.current < len(m.filteredIdx)-1 {
		m.current++
		m.updateScroll()
	}
}

func (m *ViewerModel) prevEvent() {
	if m.current > 0 {
		m.current--
		m.updateScroll()
	}
}

func (m *ViewerModel) updateScroll() {
	visibleLines := m.height - 8 // header + footer
	if m.current < m.scrollY {
		m.scrollY = m.current
	} else if m.current >= m.scrollY+visibleLines {
		m.scrollY = m.current - visibleLines + 1
	}
}

func (m *ViewerModel) applyFilter() {
	m.filteredIdx = nil
	for i, ev := range m.events {
		if m.matchesFilter(ev) {
			m.filteredIdx = append(m.filteredIdx, i)
		}
	}
	if m.current >= len(m.filteredIdx) {
		m.current = 0
	}
	m.updateScroll()
}

func (m *ViewerModel) matchesFilter(ev *journal.Event) bool {
	if m.filter.EchoesOnly && ev.Echo == "" {
		return false
	}
	if ev.Succeeded {
		return m.filter.ShowSuccesses
	}
	return m.filter.ShowFailures
}

// View implements tea.Model.
func (m *ViewerModel) View() string {
	if m.quit {
		return ""
	}

	if m.showHelp {
		return m.renderHelp()
	}

	var sb strings.Builder

	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")

	visibleLines := m.height - 8
	if visibleLines < 5 {
		visibleLines = 5
	}

	start := m.scrollY
	end := start + visibleLines
	if end > len(m.filteredIdx) {
		end = len(m.filteredIdx)
	}

	for i := start; i < end; i++ {
		ev := m.events[m.filteredIdx[i]]
		sb.WriteString(m.renderEvent(ev, i == m.current))
		sb.WriteString("\n")
	}

	// Pad remaining lines
	for i := end - start; i < visibleLines; i++ {
		sb.WriteString("\n")
	}

	sb.WriteString(m.renderFooter())

	return sb.String()
}

func (m *ViewerModel) renderHeader() string {
	var sb strings.Builder

	title := fmt.Sprintf(" ▶ %s ", m.session.ID)
	info := fmt.Sprintf(" Source: %s ", m.session.Source)
	if m.session.Source == "" {
		info = " Source: (unknown) "
	}

	sb.WriteString(headerStyle.Render(title))
	sb.WriteString(" ")
	sb.WriteString(statusStyle.Render(info))
	if cur := m.currentEvent(); cur != nil && cur.TurnKey != "" {
		sb.WriteString(statusStyle.Render(fmt.Sprintf(" Turn: %s ", cur.TurnKey)))
	}
	sb.WriteString("\n")

	if len(m.filteredIdx) > 0 {
		progress := float64(m.current+1) / float64(len(m.filteredIdx))
		barWidth := m.width - 30
		if barWidth < 10 {
			barWidth = 10
		}
		filled := int(progress * float64(barWidth))
		bar := strings.Repeat("━", filled) + strings.Repeat("─", barWidth-filled)

		playState := "⏸"
		if m.playing {
			playState = "▶"
		}

		sb.WriteString(fmt.Sprintf("%s %s [%d/%d] %.1fx",
			playState,
			progressStyle.Render(bar),
			m.current+1,
			len(m.filteredIdx),
			m.speed,
		))
	}
	sb.WriteString("\n")

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	return sb.String()
}

// currentEvent returns the event under the cursor, or nil when the filter
// matches nothing.
func (m *ViewerModel) currentEvent() *journal.Event {
	if m.current < 0 || m.current >= len(m.filteredIdx) {
		return nil
	}
	return m.events[m.filteredIdx[m.current]]
}

func (m *ViewerModel) renderEvent(ev *journal.Event, isCurrent bool) string {
	var sb strings.Builder

	ts := ev.CreatedAt.Format("15:04:05")
	prefix := fmt.Sprintf("%s #%-4d ", timestampStyle.Render(ts), ev.Seq)
	if isCurrent {
		prefix = "▶ " + prefix
	} else {
		prefix = "  " + prefix
	}
	sb.WriteString(prefix)

	content := m.formatEventContent(ev)

	style := eventLineStyle
	if isCurrent {
		style = currentEventStyle
	}
	if !ev.Succeeded {
		style = failureStyle
	}

	maxLen := m.width - len(prefix) - 2
	if maxLen < 10 {
		maxLen = 10
	}
	if len(content) > maxLen {
		content = truncate(content, maxLen)
	}

	sb.WriteString(style.Render(content))

	return sb.String()
}

func (m *ViewerModel) formatEventContent(ev *journal.Event) string {
	var sb strings.Builder

	sb.WriteString(actionIcon(ev.ActionKey))
	sb.WriteString(" ")
	sb.WriteString(ev.ActionKey)

	if ev.Succeeded {
		sb.WriteString(" ✓")
	} else {
		sb.WriteString(" ✗")
	}

	if ev.Echo != "" {
		sb.WriteString("  🔮 " + ev.Echo)
	}

	return sb.String()
}

func (m *ViewerModel) renderFooter() string {
	var sb strings.Builder

	sb.WriteString(strings.Repeat("─", m.width))
	sb.WriteString("\n")

	var filters []string
	if m.filter.ShowSuccesses {
		filters = append(filters, "Successes")
	}
	if m.filter.ShowFailures {
		filters = append(filters, "Failures")
	}
	if m.filter.EchoesOnly {
		filters = append(filters, "Echoes only")
	}

	sb.WriteString(statusStyle.Render(fmt.Sprintf("Showing: %s", strings.Join(filters, ", "))))
	sb.WriteString("\n")

	help := "Space: Play/Pause │ ↑↓: Navigate │ 1-4: Speed │ s/f/e: Filter │ ?: Help │ q: Quit"
	sb.WriteString(helpStyle.Render(help))

	return sb.String()
}

func (m *ViewerModel) renderHelp() string {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render(" Session Replay Viewer - Help "))
	sb.WriteString("\n\n")

	help := `
  NAVIGATION
  ─────────────────────────────────────
  Space, p      Play/Pause playback
  n, Enter, ↓   Next action
  N, ↑          Previous action
  g             Go to start
  G             Go to end
  PgUp/PgDn     Jump 10 actions

  SPEED CONTROL
  ─────────────────────────────────────
  1             0.5x speed (slow)
  2             1.0x speed (normal)
  3             2.0x speed (fast)
  4             4.0x speed (fastest)

  FILTERS
  ─────────────────────────────────────
  s             Toggle succeeded actions
  f             Toggle failed actions
  e             Toggle echoes-only mode
  a             Show all actions

  OTHER
  ─────────────────────────────────────
  ?, h          Toggle this help
  q, Ctrl+C     Quit viewer
`
	sb.WriteString(help)
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("Press any key to close help..."))

	return sb.String()
}

// RunViewer loads a session from the journal and starts the interactive TUI.
func RunViewer(store *journal.Store, sessionID string) error {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	events, err := store.Events(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load events for session %s: %w", sessionID, err)
	}

	model := NewViewerModel(sess, events)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// CheckTerminalSupport reports whether stdout is an interactive terminal.
func CheckTerminalSupport() bool {
	if fi, _ := os.Stdout.Stat(); (fi.Mode() & os.ModeCharDevice) == 0 {
		return false
	}
	return true
}
