package nats

import "encoding/json"

// MessageTypeReport is the envelope type of a published run report.
const MessageTypeReport = "cron_report"

// MessageEnvelope wraps all NATS messages with type information.
type MessageEnvelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"`
}

// ReportMessage is the payload of a cron_report envelope.
type ReportMessage struct {
	EventID     string         `json:"event_id"`
	Message     string         `json:"message"`
	Level       string         `json:"level"`
	TimeSpentMs int64          `json:"time_spent_ms"`
	Data        map[string]any `json:"data,omitempty"`
	Extra       map[string]any `json:"extra,omitempty"`
}
