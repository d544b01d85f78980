package main

import (
	"fmt"
	"io"
	"strings"
	"uit-client/internal/job"

	"github.com/fatih/color"
)

const statusColumn = 4

var statusColors = map[string]func(a ...interface{}) string{
	job.StatusRunning:    color.New(color.FgHiGreen).SprintFunc(),
	job.StatusQueued:     color.New(color.FgHiYellow).SprintFunc(),
	job.StatusHeld:       color.New(color.FgHiMagenta).SprintFunc(),
	job.StatusExiting:    color.New(color.FgHiRed).SprintFunc(),
	job.StatusArrayBegun: color.New(color.FgHiCyan).SprintFunc(),
	job.StatusFinished:   color.New(color.FgHiBlue).SprintFunc(),
	job.StatusExpired:    color.New(color.FgHiBlue).SprintFunc(),
}

// renderStatusTable pads cells on their plain text and colors the status cell afterwards, so
// escape codes do not shift the columns.
func renderStatusTable(w io.Writer, statuses job.Statuses) error {
	rows := append([][]string{job.StatusColumns}, statuses.Table()...)

	widths := make([]int, len(job.StatusColumns))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for r, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			padded := cell + strings.Repeat(" ", widths[i]-len(cell))
			if colorize, ok := statusColors[cell]; ok && r > 0 && i == statusColumn {
				padded = colorize(padded)
			}
			cells[i] = padded
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " ")); err != nil {
			return err
		}
	}
	return nil
}
