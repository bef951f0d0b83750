package main

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	scale "github.com/luhtfiimanal/go-scale-reader"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

// reporter prints a styled timestamp header followed by the serialized
// reading.
func reporter(w io.Writer) func(time.Time, scale.Snapshot) {
	return func(now time.Time, s scale.Snapshot) {
		fmt.Fprintln(w, headerStyle.Render("Latest weight data for: "+now.Format(time.ANSIC)))
		fmt.Fprintln(w, s.Reading.Serialize())
	}
}
