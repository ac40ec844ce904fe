package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
)

// Kolkata is the zone TODAY_DATE is expressed in.
var Kolkata = loadKolkata()

func loadKolkata() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*60*60+30*60)
}

// Prompt renders the classification instructions shared by every provider.
type Prompt struct {
	Now func() time.Time
}

// System returns the fixed instructions: role, enums, flow and output shape.
func (p Prompt) System() string {
	var b strings.Builder
	b.WriteString("You classify one utterance of a cab booking call and extract trip details.\n")
	b.WriteString("Act as a deterministic state machine, not a chat partner. Reply with a single JSON object and nothing else.\n\n")

	b.WriteString("Allowed values:\n")
	fmt.Fprintf(&b, "- intent: %s\n", joinEnum(domain.Intents))
	fmt.Fprintf(&b, "- tripType: %s\n", joinEnum(domain.TripTypes))
	fmt.Fprintf(&b, "- preferences.vehicleType: %s\n", joinEnum(domain.VehicleTypes))
	fmt.Fprintf(&b, "- preferences.language (ISO 639-1): %s\n\n", joinEnum(domain.Languages))

	b.WriteString("Rules:\n")
	b.WriteString("- Only fill a field the caller actually said in this utterance; omit everything else. Never guess.\n")
	b.WriteString("- Write source and destination as English place names.\n")
	b.WriteString("- Dates use dd/mm/yyyy hh:mm AM/PM, resolved against TODAY_DATE.\n")
	b.WriteString("- tripEndDate only when the caller states a return time.\n")
	b.WriteString("- \"any\" for a preference means none.\n")
	b.WriteString("- Set greeting=true when the utterance is only a salutation.\n")
	b.WriteString("- Set generalQuery=true for questions about price, availability, timing or confirmation.\n")
	b.WriteString("- intent follows the flow: greet, then ask_source, ask_destination, ask_trip_type, ask_date, ")
	b.WriteString("then ask_preferences only while no preference is known; general for trip questions; unknown otherwise.\n")
	b.WriteString("- agentResponse is one short sentence to say back to the caller.\n\n")

	b.WriteString(`Output shape: {"intent":"","source":"","destination":"","tripType":"","tripStartDate":"","tripEndDate":"",`)
	b.WriteString(`"preferences":{"vehicleType":"","language":""},"greeting":false,"generalQuery":false,"agentResponse":""}`)
	b.WriteString("\n")
	return b.String()
}

// User returns the per-turn message: date, current record and utterance.
// The caller's identity is never sent to the model.
func (p Prompt) User(transcript string, previous *domain.TripRecord) (string, error) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}

	state := domain.NewTripRecord(domain.Identity{})
	if previous != nil {
		state = previous.Clone()
		state.User = domain.Identity{}
		state.LastTurnKey = ""
		state.TripEndDerived = false
	}
	stateJSON, err := json.MarshalIndent(struct {
		Intent        domain.Intent      `json:"intent"`
		Source        *string            `json:"source,omitempty"`
		Destination   *string            `json:"destination,omitempty"`
		TripType      domain.TripType    `json:"tripType"`
		TripStartDate *string            `json:"tripStartDate,omitempty"`
		TripEndDate   *string            `json:"tripEndDate,omitempty"`
		Preferences   domain.Preferences `json:"preferences"`
	}{
		state.Intent, state.Source, state.Destination, state.TripType,
		state.TripStartDate, state.TripEndDate, state.Preferences,
	}, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "TODAY_DATE: %s\n\n", now().In(Kolkata).Format("Monday, 02/01/2006 03:04 PM"))
	fmt.Fprintf(&b, "CURRENT TRIP STATE:\n%s\n\n", stateJSON)
	fmt.Fprintf(&b, "UTTERANCE:\n%q\n", transcript)
	return b.String(), nil
}

func joinEnum[T ~string](values []T) string {
	return strings.Join(stringsOf(values), ", ")
}
