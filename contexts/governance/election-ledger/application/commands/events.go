package commands

import (
	"encoding/json"
	"time"

	"d21ledger/contexts/governance/election-ledger/ports"
)

const (
	EventElectionInitialized = "election.initialized"
	EventVoteCast            = "vote.cast"
	EventElectionFinalized   = "election.finalized"
)

func newLedgerEnvelope(
	eventID string,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (ports.EventEnvelope, error) {
	// Ledger events are partitioned by election so consumers see one
	// election's history in order.
	payload, err := json.Marshal(data)
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        eventType,
		OccurredAt:       occurredAt.UTC(),
		SourceService:    "election-ledger",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "election_id",
		PartitionKey:     electionID,
		Data:             payload,
	}, nil
}
