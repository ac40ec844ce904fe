package domain

// Intent is the single conversational action chosen after a turn.
type Intent string

const (
	IntentGreet          Intent = "greet"
	IntentAskSource      Intent = "ask_source"
	IntentAskDestination Intent = "ask_destination"
	IntentAskTripType    Intent = "ask_trip_type"
	IntentAskDate        Intent = "ask_date"
	IntentAskPreferences Intent = "ask_preferences"
	IntentGeneral        Intent = "general"
	IntentUnknown        Intent = "unknown"
)

// Intents lists every member of the intent domain in flow order.
var Intents = []Intent{
	IntentGreet,
	IntentAskSource,
	IntentAskDestination,
	IntentAskTripType,
	IntentAskDate,
	IntentAskPreferences,
	IntentGeneral,
	IntentUnknown,
}

// Valid reports whether i belongs to the intent domain.
func (i Intent) Valid() bool {
	for _, known := range Intents {
		if i == known {
			return true
		}
	}
	return false
}

// TripType is the shape of the booked trip.
type TripType string

const (
	TripOneWay     TripType = "one_way"
	TripRoundTrip  TripType = "round_trip"
	TripNotDecided TripType = "not_decided" // unset sentinel
)

// TripTypes lists the trip type domain.
var TripTypes = []TripType{TripOneWay, TripRoundTrip, TripNotDecided}

// Valid reports whether t belongs to the trip type domain.
func (t TripType) Valid() bool {
	return t == TripOneWay || t == TripRoundTrip || t == TripNotDecided
}

// Decided is false for the not_decided sentinel.
func (t TripType) Decided() bool {
	return t == TripOneWay || t == TripRoundTrip
}

// VehicleType is the preferred cab class.
type VehicleType string

const (
	VehicleSUV       VehicleType = "suv"
	VehicleSedan     VehicleType = "sedan"
	VehicleHatchback VehicleType = "hatchback"
	VehicleNone      VehicleType = "none" // unset sentinel
)

// VehicleTypes lists the vehicle type domain.
var VehicleTypes = []VehicleType{VehicleSUV, VehicleSedan, VehicleHatchback, VehicleNone}

// Valid reports whether v belongs to the vehicle type domain.
func (v VehicleType) Valid() bool {
	for _, known := range VehicleTypes {
		if v == known {
			return true
		}
	}
	return false
}

// Known is false for the none sentinel.
func (v VehicleType) Known() bool {
	return v.Valid() && v != VehicleNone
}

// Language is the preferred driver language.
type Language string

const (
	LangEnglish   Language = "en"
	LangHindi     Language = "hi"
	LangBengali   Language = "bn"
	LangTamil     Language = "ta"
	LangTelugu    Language = "te"
	LangMarathi   Language = "mr"
	LangGujarati  Language = "gu"
	LangKannada   Language = "kn"
	LangMalayalam Language = "ml"
	LangPunjabi   Language = "pa"
	LangOdia      Language = "or"
	LangAssamese  Language = "as"
	LangUrdu      Language = "ur"
	LangNone      Language = "none" // unset sentinel
)

// Languages lists the language domain.
var Languages = []Language{
	LangEnglish, LangHindi, LangBengali, LangTamil, LangTelugu, LangMarathi, LangGujarati,
	LangKannada, LangMalayalam, LangPunjabi, LangOdia, LangAssamese, LangUrdu, LangNone,
}

// Valid reports whether l belongs to the language domain.
func (l Language) Valid() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// Known is false for the none sentinel.
func (l Language) Known() bool {
	return l.Valid() && l != LangNone
}

// Identity identifies the caller that owns a session.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Preferences holds the optional trip preferences.
type Preferences struct {
	VehicleType VehicleType `json:"vehicleType"`
	Language    Language    `json:"language"`
}

// KnownCount returns how many preferences hold a real value.
func (p Preferences) KnownCount() int {
	n := 0
	if p.VehicleType.Known() {
		n++
	}
	if p.Language.Known() {
		n++
	}
	return n
}

// TripRecord is the authoritative, persisted state of one booking conversation.
// Free-text slots use nil as the unset value.
type TripRecord struct {
	User   Identity `json:"user"`
	Intent Intent   `json:"intent"`

	Source        *string  `json:"source,omitempty"`
	Destination   *string  `json:"destination,omitempty"`
	TripType      TripType `json:"tripType"`
	TripStartDate *string  `json:"tripStartDate,omitempty"`
	TripEndDate   *string  `json:"tripEndDate,omitempty"`
	// TripEndDerived marks an end date computed from the start rather than stated by the caller.
	TripEndDerived bool `json:"tripEndDerived,omitempty"`

	Preferences Preferences `json:"preferences"`

	// LastTurnKey is the idempotency key of the last committed turn.
	LastTurnKey string `json:"lastTurnKey,omitempty"`
}

// NewTripRecord creates the fresh-session record for a caller.
func NewTripRecord(user Identity) *TripRecord {
	return &TripRecord{
		User:     user,
		Intent:   IntentGreet,
		TripType: TripNotDecided,
		Preferences: Preferences{
			VehicleType: VehicleNone,
			Language:    LangNone,
		},
	}
}

// MandatoryResolved reports whether source, destination, trip type and start date are all known.
func (r *TripRecord) MandatoryResolved() bool {
	return IsSet(r.Source) && IsSet(r.Destination) && r.TripType.Decided() && IsSet(r.TripStartDate)
}

// Clone returns a deep copy so callers can never alias stored slot pointers.
func (r *TripRecord) Clone() *TripRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Source = cloneStr(r.Source)
	c.Destination = cloneStr(r.Destination)
	c.TripStartDate = cloneStr(r.TripStartDate)
	c.TripEndDate = cloneStr(r.TripEndDate)
	return &c
}

// Str returns a pointer to s.
func Str(s string) *string {
	return &s
}

// IsSet reports whether a free-text slot holds a defined value.
func IsSet(s *string) bool {
	return s != nil && *s != ""
}

// Value returns the slot value or "" when unset.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
