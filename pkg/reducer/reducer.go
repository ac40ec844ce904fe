package reducer

import (
	"strings"
	"time"

	"github.com/aretw0/tripflow/pkg/domain"
)

// EndDateOffset is added to a one-way trip's start to derive its end.
const EndDateOffset = 12 * time.Hour

// DateLayout is the date-time layout extractors are asked to produce (dd/mm/yyyy hh:mm AM/PM).
const DateLayout = "02/01/2006 03:04 PM"

// Clamp records an enum value outside its domain that was coerced to the field's sentinel.
type Clamp struct {
	Field string
	Value string
}

// Outcome is the result of one reduction.
type Outcome struct {
	Next    *domain.TripRecord
	Clamped []Clamp
	// AgentResponse is the extractor's suggested reply, passed through untouched.
	AgentResponse string
}

// Candidate is a sanitized extraction. Unset free-text slots are nil and
// unset enums hold their sentinel.
type Candidate struct {
	Intent        domain.Intent
	Source        *string
	Destination   *string
	TripType      domain.TripType
	TripStartDate *string
	TripEndDate   *string
	Preferences   domain.Preferences

	Greeting      *bool
	GeneralQuery  bool
	AgentResponse string
}

// Sanitize normalizes raw into the declared domains.
// Enums are trimmed and lower-cased; out-of-domain values become the sentinel and are reported.
// Free text is trimmed and whitespace-collapsed; empty becomes unset.
func Sanitize(raw RawExtraction) (Candidate, []Clamp) {
	var clamps []Clamp
	clamp := func(field, value string) {
		clamps = append(clamps, Clamp{Field: field, Value: value})
	}

	c := Candidate{
		Source:        cleanText(raw.Source),
		Destination:   cleanText(raw.Destination),
		TripType:      domain.TripNotDecided,
		TripStartDate: cleanText(raw.TripStartDate),
		TripEndDate:   cleanText(raw.TripEndDate),
		Preferences: domain.Preferences{
			VehicleType: domain.VehicleNone,
			Language:    domain.LangNone,
		},
		Greeting:      raw.Greeting,
		GeneralQuery:  raw.GeneralQuery != nil && *raw.GeneralQuery,
		AgentResponse: domain.Value(cleanText(raw.AgentResponse)),
	}

	if v, ok := cleanEnum(raw.Intent); ok {
		if i := domain.Intent(v); i.Valid() {
			c.Intent = i
		} else {
			c.Intent = domain.IntentUnknown
			clamp("intent", v)
		}
	}
	if v, ok := cleanEnum(raw.TripType); ok {
		if t := domain.TripType(v); t.Valid() {
			c.TripType = t
		} else {
			clamp("tripType", v)
		}
	}
	if raw.Preferences != nil {
		if v, ok := cleanEnum(raw.Preferences.VehicleType); ok {
			if vt := domain.VehicleType(v); vt.Valid() {
				c.Preferences.VehicleType = vt
			} else {
				clamp("preferences.vehicleType", v)
			}
		}
		if v, ok := cleanEnum(raw.Preferences.Language); ok {
			if l := domain.Language(v); l.Valid() {
				c.Preferences.Language = l
			} else {
				clamp("preferences.language", v)
			}
		}
	}
	return c, clamps
}

// Reduce folds a raw extraction onto previous and re-derives the intent.
// It is pure: identical inputs always produce an identical Outcome.
func Reduce(previous domain.TripRecord, raw RawExtraction) Outcome {
	cand, clamps := Sanitize(raw)
	next := Merge(&previous, cand)
	next.Intent = DeriveIntent(&previous, cand, next)
	DeriveEndDate(next)
	return Outcome{Next: next, Clamped: clamps, AgentResponse: cand.AgentResponse}
}

// ReduceJSON parses payload and reduces it onto previous.
// A payload that cannot be parsed yields domain.ErrExtractionMalformed and no merge.
func ReduceJSON(previous domain.TripRecord, payload []byte) (Outcome, error) {
	raw, err := ParseExtraction(payload)
	if err != nil {
		return Outcome{}, err
	}
	return Reduce(previous, raw), nil
}

// Merge carries every slot of previous forward unless cand defines it.
// Identity and the idempotency key are never taken from the candidate.
func Merge(previous *domain.TripRecord, cand Candidate) *domain.TripRecord {
	next := previous.Clone()

	next.Source = pickText(cand.Source, previous.Source)
	next.Destination = pickText(cand.Destination, previous.Destination)
	next.TripStartDate = pickText(cand.TripStartDate, previous.TripStartDate)
	next.TripEndDate = pickText(cand.TripEndDate, previous.TripEndDate)

	if cand.TripType.Decided() {
		next.TripType = cand.TripType
	}
	if cand.Preferences.VehicleType.Known() {
		next.Preferences.VehicleType = cand.Preferences.VehicleType
	}
	if cand.Preferences.Language.Known() {
		next.Preferences.Language = cand.Preferences.Language
	}

	// Records loaded from older payloads may hold values outside today's domains.
	if !next.TripType.Valid() {
		next.TripType = domain.TripNotDecided
	}
	if !next.Preferences.VehicleType.Valid() {
		next.Preferences.VehicleType = domain.VehicleNone
	}
	if !next.Preferences.Language.Valid() {
		next.Preferences.Language = domain.LangNone
	}

	// A derived end follows its start; a stated one is the caller's and stays.
	switch {
	case domain.IsSet(cand.TripEndDate):
		next.TripEndDerived = false
	case next.TripEndDerived && (next.TripType != domain.TripOneWay ||
		domain.Value(next.TripStartDate) != domain.Value(previous.TripStartDate)):
		next.TripEndDate = nil
		next.TripEndDerived = false
	}
	return next
}

// DeriveIntent picks the next conversational action from the merged record.
// The candidate's own intent is only advisory for the greeting and general branches.
func DeriveIntent(previous *domain.TripRecord, cand Candidate, merged *domain.TripRecord) domain.Intent {
	switch {
	case isPureGreeting(previous, cand):
		return domain.IntentGreet
	case !domain.IsSet(merged.Source):
		return domain.IntentAskSource
	case !domain.IsSet(merged.Destination):
		return domain.IntentAskDestination
	case !merged.TripType.Decided():
		return domain.IntentAskTripType
	case !domain.IsSet(merged.TripStartDate):
		return domain.IntentAskDate
	}

	general := cand.GeneralQuery || cand.Intent == domain.IntentGeneral
	switch {
	case merged.Preferences.KnownCount() == 0 && !general:
		return domain.IntentAskPreferences
	case general:
		return domain.IntentGeneral
	default:
		return domain.IntentUnknown
	}
}

// DeriveEndDate fills the end of a one-way trip from its start.
// A start in an unrecognized layout leaves the end unset.
func DeriveEndDate(r *domain.TripRecord) {
	if r.TripType != domain.TripOneWay || !domain.IsSet(r.TripStartDate) || domain.IsSet(r.TripEndDate) {
		return
	}
	start, layout, ok := ParseDate(*r.TripStartDate)
	if !ok {
		return
	}
	r.TripEndDate = domain.Str(start.Add(EndDateOffset).Format(layout))
	r.TripEndDerived = true
}

// dateLayouts are tried in order against the upper-cased input. Each pairs a
// lenient parse layout with the layout the result is written back in.
var dateLayouts = []struct{ parse, format string }{
	{"2/1/2006 3:04 PM", DateLayout},
	{"2/1/2006 3:04PM", DateLayout},
	{time.RFC3339, time.RFC3339},
}

// ParseDate reads a start date in DateLayout, tolerating single-digit fields
// and lower-case am/pm, or in RFC3339. It returns the layout to format derived dates with.
func ParseDate(s string) (time.Time, string, bool) {
	value := strings.ToUpper(strings.TrimSpace(s))
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.parse, value); err == nil {
			return t, l.format, true
		}
	}
	return time.Time{}, "", false
}

func isPureGreeting(previous *domain.TripRecord, cand Candidate) bool {
	greeting := cand.Intent == domain.IntentGreet
	if cand.Greeting != nil {
		greeting = *cand.Greeting
	}
	return greeting && !suppliesNewSlot(previous, cand)
}

// suppliesNewSlot reports whether cand defines any slot with a value previous does not already hold.
func suppliesNewSlot(previous *domain.TripRecord, cand Candidate) bool {
	newText := func(c, p *string) bool {
		return domain.IsSet(c) && domain.Value(c) != domain.Value(p)
	}
	return newText(cand.Source, previous.Source) ||
		newText(cand.Destination, previous.Destination) ||
		newText(cand.TripStartDate, previous.TripStartDate) ||
		newText(cand.TripEndDate, previous.TripEndDate) ||
		(cand.TripType.Decided() && cand.TripType != previous.TripType) ||
		(cand.Preferences.VehicleType.Known() && cand.Preferences.VehicleType != previous.Preferences.VehicleType) ||
		(cand.Preferences.Language.Known() && cand.Preferences.Language != previous.Preferences.Language)
}

func pickText(cand, prev *string) *string {
	if domain.IsSet(cand) {
		return domain.Str(*cand)
	}
	if domain.IsSet(prev) {
		return domain.Str(*prev)
	}
	return nil
}

func cleanText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.Join(strings.Fields(*s), " ")
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func cleanEnum(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.ToLower(strings.TrimSpace(*s))
	return v, v != ""
}
