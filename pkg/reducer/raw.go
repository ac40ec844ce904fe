package reducer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// RawExtraction is the untrusted candidate proposed by an extractor for one utterance.
// Every field is optional. Nothing in it is trusted until Sanitize runs.
type RawExtraction struct {
	Intent        *string         `json:"intent,omitempty" mapstructure:"intent"`
	Source        *string         `json:"source,omitempty" mapstructure:"source"`
	Destination   *string         `json:"destination,omitempty" mapstructure:"destination"`
	TripType      *string         `json:"tripType,omitempty" mapstructure:"tripType"`
	TripStartDate *string         `json:"tripStartDate,omitempty" mapstructure:"tripStartDate"`
	TripEndDate   *string         `json:"tripEndDate,omitempty" mapstructure:"tripEndDate"`
	Preferences   *RawPreferences `json:"preferences,omitempty" mapstructure:"preferences"`

	// AgentResponse is the human-readable reply suggested by the extractor.
	AgentResponse *string `json:"agentResponse,omitempty" mapstructure:"agentResponse"`
	// Greeting flags an utterance that is only a salutation.
	Greeting *bool `json:"greeting,omitempty" mapstructure:"greeting"`
	// GeneralQuery flags a question about price, availability, timing or confirmation.
	GeneralQuery *bool `json:"generalQuery,omitempty" mapstructure:"generalQuery"`
}

// RawPreferences is the untrusted preferences object.
type RawPreferences struct {
	VehicleType *string `json:"vehicleType,omitempty" mapstructure:"vehicleType"`
	Language    *string `json:"language,omitempty" mapstructure:"language"`
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.+?)\\s*```")

// ParseExtraction decodes an extractor payload.
// Payloads wrapped in markdown fences or surrounding prose are tolerated; scalar
// fields are weakly typed (numbers and booleans become strings and vice versa).
// Anything that is not a JSON object with a decodable shape yields ErrExtractionMalformed.
func ParseExtraction(payload []byte) (RawExtraction, error) {
	var out RawExtraction

	obj, err := extractObject(payload)
	if err != nil {
		return out, fmt.Errorf("%w: %w", domain.ErrExtractionMalformed, err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return out, err
	}
	if err := decoder.Decode(obj); err != nil {
		return RawExtraction{}, fmt.Errorf("%w: %w", domain.ErrExtractionMalformed, err)
	}
	return out, nil
}

func extractObject(payload []byte) (map[string]any, error) {
	text := strings.TrimSpace(strings.TrimPrefix(string(payload), "\ufeff"))
	if text == "" {
		return nil, fmt.Errorf("empty payload")
	}

	candidates := []string{text}
	if m := fenceRe.FindStringSubmatch(text); len(m) > 1 {
		candidates = append(candidates, m[1])
	}
	if start := strings.IndexByte(text, '{'); start >= 0 {
		if balanced := balancedObject(text[start:]); balanced != "" {
			candidates = append(candidates, balanced)
		}
	}

	var lastErr error
	for _, c := range candidates {
		var v any
		dec := json.NewDecoder(bytes.NewReader([]byte(c)))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			lastErr = err
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			lastErr = fmt.Errorf("payload is %T, want object", v)
			continue
		}
		return obj, nil
	}
	return nil, lastErr
}

// balancedObject returns the first brace-balanced object in s, honoring string literals.
func balancedObject(s string) string {
	depth := 0
	inString := false
	escape := false
	for i, ch := range s {
		switch {
		case escape:
			escape = false
		case ch == '\\' && inString:
			escape = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
