package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/inboxd/internal/store"
)

const barWidth = 20

func newSendersTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 3},
			{Title: "Sender", Width: 18},
			{Title: "Messages", Width: 9},
			{Title: "Share", Width: 7},
			{Title: "", Width: barWidth},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

// senderRows builds one row per sender. Share is relative to all stored
// messages, not just the listed senders.
func senderRows(senders []store.SenderCount, total int) []table.Row {
	rows := make([]table.Row, 0, len(senders))
	for i, s := range senders {
		share := 0.0
		if total > 0 {
			share = float64(s.Count) / float64(total)
		}
		rows = append(rows, table.Row{
			fmt.Sprintf("%d", i+1),
			s.From,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%.1f%%", share*100),
			bar(share, barWidth),
		})
	}
	return rows
}

func bar(share float64, width int) string {
	filled := int(share*float64(width) + 0.5)
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func renderSenders(t table.Model, ingest IngestState, theme Theme, width int) string {
	innerWidth := width - 4

	title := theme.Title.Render("TOP SENDERS")
	if len(t.Rows()) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			theme.Dim.Render("  No messages stored yet"),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	now := time.Now()
	span := lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left,
		theme.Dim.Render("First: ")+formatAge(ingest.First, now),
		theme.Dim.Render("Last:  ")+formatAge(ingest.Last, now),
	))

	content := lipgloss.JoinVertical(lipgloss.Left, title, t.View(), span)
	return theme.Border.Width(innerWidth).Render(content)
}
