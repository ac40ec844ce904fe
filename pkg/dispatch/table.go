package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/tripflow/pkg/domain"
)

// FallbackAsset is played for general and unknown intents.
const FallbackAsset = "general.mp3"

// Table maps every intent to one response asset.
type Table map[domain.Intent]string

// DefaultTable returns the built-in asset table.
func DefaultTable() Table {
	return Table{
		domain.IntentGreet:          "greet.mp3",
		domain.IntentAskSource:      "ask_source.mp3",
		domain.IntentAskDestination: "ask_destination.mp3",
		domain.IntentAskTripType:    "ask_trip_type.mp3",
		domain.IntentAskDate:        "ask_date.mp3",
		domain.IntentAskPreferences: "ask_price.mp3",
		domain.IntentGeneral:        FallbackAsset,
		domain.IntentUnknown:        FallbackAsset,
	}
}

// NewTable applies overrides on top of the defaults.
// Override keys must name intents and values must be non-empty.
func NewTable(overrides map[string]string) (Table, error) {
	t := DefaultTable()
	var bad []string
	for k, v := range overrides {
		intent := domain.Intent(strings.ToLower(strings.TrimSpace(k)))
		v = strings.TrimSpace(v)
		if !intent.Valid() || v == "" {
			bad = append(bad, k)
			continue
		}
		t[intent] = v
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("invalid asset table entries: %s", strings.Join(bad, ", "))
	}
	return t, nil
}

// Asset returns the asset for intent, using the general entry for anything unmapped.
func (t Table) Asset(intent domain.Intent) string {
	if a, ok := t[intent]; ok && a != "" {
		return a
	}
	if a, ok := t[domain.IntentGeneral]; ok && a != "" {
		return a
	}
	return FallbackAsset
}

// Assets returns the distinct asset names in the table, sorted.
func (t Table) Assets() []string {
	seen := make(map[string]bool)
	var out []string
	for _, intent := range domain.Intents {
		a := t.Asset(intent)
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}
