package events

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned event shape written to the outbox and carried on
// the bus. Fields are append-only.
type Envelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	OccurredAt       time.Time       `json:"occurred_at"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    int             `json:"schema_version"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	Data             json.RawMessage `json:"data"`
}

// Outbox row states shared by every outbox adapter.
const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
)
