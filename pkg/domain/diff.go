package domain

// TripDiff represents the changes a turn made to a record.
// It is designed to be serialized to JSON for partial updates on the client.
type TripDiff struct {
	// SessionKey is always present to identify the target.
	SessionKey string `json:"session_key"`

	Intent *Intent `json:"intent,omitempty"`

	// Slots maps changed slot names to their new value. Unset slots are nil.
	Slots map[string]any `json:"slots,omitempty"`
}

// Fields returns the changed slot names, intent first.
func (d *TripDiff) Fields() []string {
	if d == nil {
		return nil
	}
	var out []string
	if d.Intent != nil {
		out = append(out, "intent")
	}
	for _, name := range slotOrder {
		if _, ok := d.Slots[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *TripDiff) IsEmpty() bool {
	return d == nil || (d.Intent == nil && len(d.Slots) == 0)
}

var slotOrder = []string{
	"source", "destination", "tripType", "tripStartDate", "tripEndDate",
	"preferences.vehicleType", "preferences.language",
}

// Diff calculates the difference between old and new.
// If old is nil, it returns a diff representing the entire new record (initial load).
func Diff(sessionKey string, old, new *TripRecord) *TripDiff {
	if new == nil {
		return nil
	}
	diff := &TripDiff{SessionKey: sessionKey}

	if old == nil || old.Intent != new.Intent {
		intent := new.Intent
		diff.Intent = &intent
	}

	slots := make(map[string]any)
	diffText(slots, "source", pick(old, func(r *TripRecord) *string { return r.Source }), new.Source)
	diffText(slots, "destination", pick(old, func(r *TripRecord) *string { return r.Destination }), new.Destination)
	diffText(slots, "tripStartDate", pick(old, func(r *TripRecord) *string { return r.TripStartDate }), new.TripStartDate)
	diffText(slots, "tripEndDate", pick(old, func(r *TripRecord) *string { return r.TripEndDate }), new.TripEndDate)

	if old == nil || old.TripType != new.TripType {
		slots["tripType"] = new.TripType
	}
	if old == nil || old.Preferences.VehicleType != new.Preferences.VehicleType {
		slots["preferences.vehicleType"] = new.Preferences.VehicleType
	}
	if old == nil || old.Preferences.Language != new.Preferences.Language {
		slots["preferences.language"] = new.Preferences.Language
	}

	if len(slots) > 0 {
		diff.Slots = slots
	}
	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func pick(r *TripRecord, get func(*TripRecord) *string) *string {
	if r == nil {
		return nil
	}
	return get(r)
}

func diffText(out map[string]any, name string, old, new *string) {
	if IsSet(old) == IsSet(new) && Value(old) == Value(new) {
		return
	}
	if IsSet(new) {
		out[name] = *new
		return
	}
	out[name] = nil
}
