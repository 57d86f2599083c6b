package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"promptduel/internal/tournament"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFB454"))
	badStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	cellStyle  = lipgloss.NewStyle().Padding(0, 1)
)

// decisionBadge colors a decision name.
func decisionBadge(d string) string {
	switch tournament.Decision(d) {
	case tournament.DecisionPromote:
		return okStyle.Render(d)
	case tournament.DecisionKeep:
		return labelStyle.Render(d)
	case tournament.DecisionRejectThreshold:
		return warnStyle.Render(d)
	}
	return badStyle.Render(d)
}

// roundLine is the one-line console summary of a round.
func roundLine(rec *tournament.RoundRecord) string {
	a, b := rec.Train.ASummary, rec.Train.BSummary
	return fmt.Sprintf("[round %02d] %s  A=%d/%d  B=%d/%d  %s",
		rec.Round, decisionBadge(string(rec.Decision.Decision)),
		a.PassCount, a.TotalCases, b.PassCount, b.TotalCases,
		labelStyle.Render(rec.Decision.Reason))
}

// renderTable lays rows out under a bold header with lipgloss/table.
func renderTable(header []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		BorderColumn(false).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cellStyle.Bold(true).Foreground(titleStyle.GetForeground())
			}
			return cellStyle
		})
	return t.String() + "\n"
}
