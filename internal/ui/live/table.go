package live

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	idWidth      = 12
	statusWidth  = 11
	elapsedWidth = 9
	tokensWidth  = 7
	minQuestion  = 20
)

// defaultColumns returns the columns used before the terminal size is known.
func defaultColumns() []table.Column {
	return columnsForWidth(100)
}

// columnsForWidth sizes the question column to the remaining width.
func columnsForWidth(width int) []table.Column {
	question := width - idWidth - statusWidth - elapsedWidth - tokensWidth - 10
	if question < minQuestion {
		question = minQuestion
	}
	return []table.Column{
		{Title: "Case", Width: idWidth},
		{Title: "Question", Width: question},
		{Title: "Status", Width: statusWidth},
		{Title: "Elapsed", Width: elapsedWidth},
		{Title: "Tokens", Width: tokensWidth},
	}
}

// tableStyles returns table styles for the UI.
func tableStyles(noColor bool) table.Styles {
	styles := table.DefaultStyles()
	if noColor {
		return styles
	}
	styles.Header = styles.Header.Foreground(lipgloss.Color("252"))
	return styles
}

// rowsForState converts UI state into table rows.
func rowsForState(state State, now time.Time, questionWidth int, noColor bool) []table.Row {
	rows := make([]table.Row, 0, len(state.Rows))
	for _, row := range state.Rows {
		rows = append(rows, table.Row{
			formatCaseID(row),
			formatQuestionText(row.Text, questionWidth),
			formatStatus(row, noColor),
			formatRowDuration(row, now),
			formatTokens(row.Tokens),
		})
	}
	return rows
}
