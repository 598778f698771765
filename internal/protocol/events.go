package protocol

import (
	"encoding/json"
	"time"
)

// ReportEvent announces that a report job reached a terminal state
type ReportEvent struct {
	Type         string    `json:"type"` // REPORT_COMPLETED, REPORT_FAILED
	ReportID     string    `json:"report_id"`
	ArtifactPath string    `json:"artifact_path,omitempty"`
	Error        string    `json:"error,omitempty"`
	Stores       int       `json:"stores"`
	Excluded     int       `json:"excluded"`
	FinishedAt   time.Time `json:"finished_at"`
}

const (
	ReportEventCompleted = "REPORT_COMPLETED"
	ReportEventFailed    = "REPORT_FAILED"
)

// EncodeReportEvent encodes a ReportEvent to JSON
func EncodeReportEvent(event *ReportEvent) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeReportEvent decodes JSON to ReportEvent
func DecodeReportEvent(data []byte) (*ReportEvent, error) {
	var event ReportEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
