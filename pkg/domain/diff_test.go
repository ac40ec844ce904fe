package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestDiff(t *testing.T) {
	base := func() *TripRecord {
		r := NewTripRecord(Identity{ID: "u1", Name: "Asha", Phone: "9000000001"})
		r.Source = Str("Indore")
		return r
	}

	tests := []struct {
		name       string
		old        func() *TripRecord
		new        func() *TripRecord
		wantNil    bool
		wantFields []string
	}{
		{
			name:       "Initial Load (Old is Nil)",
			old:        func() *TripRecord { return nil },
			new:        base,
			wantFields: []string{"intent", "source", "tripType", "preferences.vehicleType", "preferences.language"},
		},
		{
			name:    "No Changes",
			old:     base,
			new:     base,
			wantNil: true,
		},
		{
			name: "Slot Added & Intent Changed",
			old:  base,
			new: func() *TripRecord {
				r := base()
				r.Destination = Str("Rewa")
				r.TripType = TripRoundTrip
				r.Intent = IntentAskDate
				return r
			},
			wantFields: []string{"intent", "destination", "tripType"},
		},
		{
			name: "Preference Changed",
			old:  base,
			new: func() *TripRecord {
				r := base()
				r.Preferences.VehicleType = VehicleSUV
				return r
			},
			wantFields: []string{"preferences.vehicleType"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff("sess-1", tt.old(), tt.new())
			if tt.wantNil {
				if got != nil {
					t.Errorf("Diff() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("Diff() = nil, want diff")
			}
			if got.SessionKey != "sess-1" {
				t.Errorf("SessionKey = %q, want sess-1", got.SessionKey)
			}
			if !reflect.DeepEqual(got.Fields(), tt.wantFields) {
				t.Errorf("Fields() = %v, want %v", got.Fields(), tt.wantFields)
			}
		})
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	t.Run("Cleared Slot as Null", func(t *testing.T) {
		old := NewTripRecord(Identity{})
		old.Destination = Str("Rewa")
		next := NewTripRecord(Identity{})

		diff := Diff("s", old, next)
		if diff == nil {
			t.Fatal("Expected diff, got nil")
		}
		bytes, _ := json.Marshal(diff)
		if !strings.Contains(string(bytes), `"destination":null`) {
			t.Errorf("JSON should contain destination:null, got: %s", string(bytes))
		}
	})

	t.Run("Unchanged Intent Omitted", func(t *testing.T) {
		old := NewTripRecord(Identity{})
		next := old.Clone()
		next.Source = Str("Bhopal")

		bytes, _ := json.Marshal(Diff("s", old, next))
		if strings.Contains(string(bytes), `"intent"`) {
			t.Errorf("JSON should not contain intent when unchanged, got: %s", string(bytes))
		}
	})
}
