package watch

import (
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultInterval is how often /stats is polled when New gets zero.
const DefaultInterval = 2 * time.Second

// Model is the main BubbleTea model for the watch TUI.
type Model struct {
	apiURL   string
	interval time.Duration
	client   *http.Client

	width  int
	height int

	// State
	ready   ReadyState
	ingest  IngestState
	senders table.Model

	// Live indicators
	ticker  Ticker
	spinner Spinner

	theme Theme

	// Error display
	lastError string
}

// New creates a new watch TUI model polling apiURL every interval.
func New(apiURL string, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Model{
		apiURL:   apiURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		senders:  newSendersTable(),
		ticker:   NewTicker(),
		spinner:  NewSpinner(),
		theme:    NewDefaultTheme(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.pollNow(),
		tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) }),
		tea.EnterAltScreen,
	)
}

func (m Model) pollNow() tea.Cmd {
	return func() tea.Msg { return poll(m.client, m.apiURL) }
}

func (m Model) pollLater() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return poll(m.client, m.apiURL) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.pollNow()
		}
		var cmd tea.Cmd
		m.senders, cmd = m.senders.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.spinner.Decay()
		return m, tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })

	case pollMsg:
		m.ticker.Tick()
		m.spinner.OnMessages(m.ingest.observe(msg.stats.TotalMessages, msg.at))
		m.ingest.Senders = msg.stats.SendersCount
		m.ingest.First = msg.stats.FirstMessageTS
		m.ingest.Last = msg.stats.LastMessageTS
		m.senders.SetRows(senderRows(msg.stats.MessagesPerSender, msg.stats.TotalMessages))

		m.ready.Status = msg.ready.Status
		m.ready.Checks = msg.ready.Checks
		m.ready.Connected = true
		m.ready.LastCheck = msg.at
		m.lastError = ""

		return m, m.pollLater()

	case errMsg:
		m.ready.Connected = false
		m.lastError = msg.Error()
		return m, m.pollLater()
	}

	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing watch..."
	}

	header := renderHeader(m.ready, m.ingest, m.ticker, m.spinner, m.theme, m.width)
	senders := renderSenders(m.senders, m.ingest, m.theme, m.width)

	var errBar string
	if m.lastError != "" {
		errBar = m.theme.StatusFailed.Render(fmt.Sprintf(" ⚠ %s", m.lastError))
	}

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(" [q] Quit • [r] Refresh • [↑/↓] Scroll Senders")

	parts := []string{header, senders}
	if errBar != "" {
		parts = append(parts, errBar)
	}
	parts = append(parts, help)

	return lipgloss.NewStyle().Margin(1, 2).Render(
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}
