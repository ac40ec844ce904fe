package domain

// SignalAgentResponse is the signal type telling listeners which response to play.
const SignalAgentResponse = "AGENT_RESPONSE"

// Signal is the payload broadcast to a session's listeners after a turn.
type Signal struct {
	Type     string `json:"type"`
	Intent   Intent `json:"intent"`
	AssetID  string `json:"assetId"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// SessionPrefix is the store key prefix used for trip records.
const SessionPrefix = "trip_state:"

// RoomName returns the notification room for a caller's phone.
func RoomName(phone string) string {
	return "trip_" + phone
}
