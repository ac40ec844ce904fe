package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripflow/pkg/dispatch"
	"github.com/aretw0/tripflow/pkg/domain"
)

// Overlay marks a session's progress on the flow.
type Overlay struct {
	Resolved []domain.Intent
	Current  domain.Intent
}

type edge struct {
	from, to  domain.Intent
	condition string
	dotted    bool
}

// flow follows the order in which the reducer asks for slots.
var flow = []edge{
	{domain.IntentGreet, domain.IntentAskSource, "", false},
	{domain.IntentAskSource, domain.IntentAskDestination, "source", false},
	{domain.IntentAskDestination, domain.IntentAskTripType, "destination", false},
	{domain.IntentAskTripType, domain.IntentAskDate, "trip type", false},
	{domain.IntentAskDate, domain.IntentAskPreferences, "start date", false},
	{domain.IntentAskPreferences, domain.IntentUnknown, "preference", false},
	{domain.IntentAskPreferences, domain.IntentGeneral, "general query", true},
	{domain.IntentUnknown, domain.IntentGeneral, "general query", true},
}

// OverlayFor derives the overlay of a stored record.
func OverlayFor(record *domain.TripRecord) *Overlay {
	o := &Overlay{Current: record.Intent}
	if domain.IsSet(record.Source) {
		o.Resolved = append(o.Resolved, domain.IntentAskSource)
	}
	if domain.IsSet(record.Destination) {
		o.Resolved = append(o.Resolved, domain.IntentAskDestination)
	}
	if record.TripType.Decided() {
		o.Resolved = append(o.Resolved, domain.IntentAskTripType)
	}
	if domain.IsSet(record.TripStartDate) {
		o.Resolved = append(o.Resolved, domain.IntentAskDate)
	}
	if record.Preferences.KnownCount() > 0 {
		o.Resolved = append(o.Resolved, domain.IntentAskPreferences)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the conversation with the
// asset each intent plays. Shapes:
// - Greeting: ((Circle))
// - Slot question: [/Parallelogram/]
// - Fallbacks: [Rectangle]
func GenerateMermaid(table dispatch.Table, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, intent := range domain.Intents {
		opener, closer := "[", "]"
		switch {
		case intent == domain.IntentGreet:
			opener, closer = "((", "))"
		case strings.HasPrefix(string(intent), "ask_"):
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n",
			intent, opener, intent, strings.ReplaceAll(table.Asset(intent), "\"", "'"), closer)
	}

	for _, e := range flow {
		arrow := "-->"
		switch {
		case e.condition != "" && e.dotted:
			arrow = fmt.Sprintf("-. \"%s\" .->", e.condition)
		case e.condition != "":
			arrow = fmt.Sprintf("-- \"%s\" -->", e.condition)
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", e.from, arrow, e.to)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[domain.Intent]bool)
		for _, intent := range overlay.Resolved {
			if intent.Valid() && !seen[intent] {
				seen[intent] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", intent)
			}
		}
		if overlay.Current.Valid() {
			fmt.Fprintf(&sb, "    class %s current;\n", overlay.Current)
		}
	}

	return sb.String()
}
