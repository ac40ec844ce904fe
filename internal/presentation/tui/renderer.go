package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// Without a usable terminal style it returns the markdown unchanged.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return func(markdown string) (string, error) {
			return markdown, nil
		}
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// TripMarkdown describes a trip record as a markdown table.
func TripMarkdown(record *domain.TripRecord) string {
	var b strings.Builder
	b.WriteString("| Slot | Value |\n|---|---|\n")
	row := func(name, value string) {
		if value == "" {
			value = "_unknown_"
		}
		fmt.Fprintf(&b, "| %s | %s |\n", name, escape(value))
	}
	row("Source", domain.Value(record.Source))
	row("Destination", domain.Value(record.Destination))
	row("Trip type", displayEnum(string(record.TripType), string(domain.TripNotDecided)))
	row("Start", domain.Value(record.TripStartDate))
	row("End", domain.Value(record.TripEndDate))
	row("Vehicle", displayEnum(string(record.Preferences.VehicleType), string(domain.VehicleNone)))
	row("Language", displayEnum(string(record.Preferences.Language), string(domain.LangNone)))
	fmt.Fprintf(&b, "\nNext: **%s**\n", record.Intent)
	return b.String()
}

func displayEnum(value, unset string) string {
	if value == unset {
		return ""
	}
	return value
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
