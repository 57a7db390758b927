package watch

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ReadyState tracks service readiness from /health/ready polling.
type ReadyState struct {
	Status    string
	Checks    map[string]string
	Connected bool
	LastCheck time.Time
}

// IngestState tracks message volume between polls.
type IngestState struct {
	Total        int
	Senders      int
	PerMinute    float64
	First, Last  *time.Time
	lastTotal    int
	lastPollTime time.Time
}

// observe records a new total and returns how many messages arrived since
// the previous poll. The first observation only sets the baseline.
func (s *IngestState) observe(total int, at time.Time) int {
	defer func() {
		s.lastTotal = total
		s.lastPollTime = at
	}()
	s.Total = total
	if s.lastPollTime.IsZero() {
		return 0
	}
	delta := total - s.lastTotal
	if delta < 0 {
		delta = 0
	}
	if elapsed := at.Sub(s.lastPollTime); elapsed > 0 {
		s.PerMinute = float64(delta) / elapsed.Minutes()
	}
	return delta
}

func renderHeader(ready ReadyState, ingest IngestState, ticker Ticker, spinner Spinner, theme Theme, width int) string {
	innerWidth := width - 4

	// Status
	statusText := theme.StatusOK.Render("READY")
	statusIcon := "✅"
	if !ready.Connected {
		statusText = theme.StatusFailed.Render("CONNECTING")
		statusIcon = "🔌"
	} else if ready.Status != "ok" {
		statusText = theme.StatusFailed.Render("NOT READY")
		statusIcon = "⚠️"
	}

	lastArrival := "none this session"
	if !spinner.LastArrival().IsZero() {
		ago := time.Since(spinner.LastArrival()).Round(time.Second)
		lastArrival = fmt.Sprintf("%s ago", ago)
	}

	tickerStr := theme.Highlight.Render(ticker.Current())
	clock := theme.Dim.Render(time.Now().Format("15:04:05"))
	titleText := fmt.Sprintf(" INBOXD WATCH %s", tickerStr)

	titleWidth := lipgloss.Width(titleText)
	clockWidth := lipgloss.Width(clock)
	pad := innerWidth - titleWidth - clockWidth - 4
	if pad < 1 {
		pad = 1
	}
	titleLine := titleText + strings.Repeat(" ", pad) + clock + " "

	statsLine := fmt.Sprintf(" %s %s  Messages: %d  Senders: %d  Rate: %.1f/min",
		statusIcon, statusText,
		ingest.Total,
		ingest.Senders,
		ingest.PerMinute,
	)

	activityLine := fmt.Sprintf(" Last arrival: %s %s", lastArrival, spinner.Render(theme))

	lines := []string{titleLine, statsLine, activityLine}
	if checks := formatChecks(ready.Checks, theme); checks != "" && ready.Status != "ok" {
		lines = append(lines, " "+checks)
	}

	return theme.Border.Width(innerWidth).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// formatChecks renders failing readiness checks in name order.
func formatChecks(checks map[string]string, theme Theme) string {
	names := make([]string, 0, len(checks))
	for name, state := range checks {
		if state != "ok" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, theme.StatusFailed.Render(fmt.Sprintf("%s: %s", name, checks[name])))
	}
	return strings.Join(parts, "  ")
}

func formatAge(t *time.Time, now time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%s ago)", t.UTC().Format(time.RFC3339), formatDuration(now.Sub(*t)))
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	return fmt.Sprintf("%dd %dh", int(d.Hours())/24, int(d.Hours())%24)
}
