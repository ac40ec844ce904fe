package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the tripflow banner to w.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"  _        _        __ _", "#38bdf8"},
		{" | |_ _ __(_)_ __  / _| | _____      __", "#22d3ee"},
		{" | __| '__| | '_ \\| |_| |/ _ \\ \\ /\\ / /", "#2dd4bf"},
		{" | |_| |  | | |_) |  _| | (_) \\ V  V /", "#34d399"},
		{"  \\__|_|  |_| .__/|_| |_|\\___/ \\_/\\_/", "#4ade80"},
		{"             |_|", "#a3e635"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
