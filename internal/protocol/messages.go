package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// ObservationMessage is a polled store status published to Kafka
type ObservationMessage struct {
	StoreID   int64     `json:"store_id"`
	Status    string    `json:"status"`
	Timestamp string    `json:"timestamp_utc"` // RFC3339
	PolledAt  time.Time `json:"polled_at,omitempty"`
}

// ParsedObservation contains the observation with parsed timestamp
type ParsedObservation struct {
	StoreID   int64
	Status    string
	Timestamp time.Time
}

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Parse validates the message and converts its timestamp to UTC
func (m *ObservationMessage) Parse() (*ParsedObservation, error) {
	if m.StoreID == 0 {
		return nil, fmt.Errorf("missing store_id")
	}
	if m.Status != StatusActive && m.Status != StatusInactive {
		return nil, fmt.Errorf("invalid status %q", m.Status)
	}

	ts, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp_utc: %w", err)
	}

	return &ParsedObservation{
		StoreID:   m.StoreID,
		Status:    m.Status,
		Timestamp: ts.UTC(),
	}, nil
}

// EncodeObservationMessage encodes an ObservationMessage to JSON
func EncodeObservationMessage(msg *ObservationMessage) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeObservationMessage decodes JSON to ObservationMessage
func DecodeObservationMessage(data []byte) (*ObservationMessage, error) {
	var msg ObservationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
