package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/tripflow/pkg/domain"
)

// Codec converts trip records to and from their stored form.
type Codec interface {
	Marshal(record *domain.TripRecord) ([]byte, error)
	Unmarshal(data []byte) (*domain.TripRecord, error)
}

// JSON is the plain JSON codec.
type JSON struct{}

func (JSON) Marshal(record *domain.TripRecord) ([]byte, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte) (*domain.TripRecord, error) {
	var record domain.TripRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}
