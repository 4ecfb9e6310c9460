package ports

import (
	"context"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	"d21ledger/internal/shared/events"
)

// BallotDecision is what a BallotFunc asks the repository to persist. Event,
// when set, is appended to the outbox in the same transaction as the counts.
type BallotDecision struct {
	Accepted []int
	Event    *EventEnvelope
}

// BallotFunc validates a ballot against the current election and voter record
// and returns the indices to count. The repository calls it while holding the
// per-voter write lock; a non-nil error aborts without side effects.
type BallotFunc func(election entities.Election, record entities.VoterRecord) (BallotDecision, error)

// TallyDecision is what a TallyFunc asks the repository to persist. Event is
// only written when Commit is true.
type TallyDecision struct {
	WinnerIndex int
	Commit      bool
	Event       *EventEnvelope
}

// TallyFunc decides the outcome of a tally against the locked election. When
// Commit is false the election is returned unchanged.
type TallyFunc func(election entities.Election) (TallyDecision, error)

type BallotReceipt struct {
	Election entities.Election
	Record   entities.VoterRecord
	Accepted []int
}

// ElectionRepository writes every state change together with its outbox
// event: either both are stored or neither is. A conflicting outbox row
// aborts the write with ErrConflict.
type ElectionRepository interface {
	CreateElection(ctx context.Context, election entities.Election, event *EventEnvelope) error
	GetElection(ctx context.Context, electionID string) (entities.Election, error)
	ListElections(ctx context.Context) ([]entities.Election, error)
	ListElectionsPendingTally(ctx context.Context, now int64, limit int) ([]entities.Election, error)
	GetVoterRecord(ctx context.Context, electionID string, voterID string) (entities.VoterRecord, bool, error)
	CastBallot(ctx context.Context, electionID string, voterID string, apply BallotFunc) (BallotReceipt, error)
	TallyElection(ctx context.Context, electionID string, finalizedAt time.Time, decide TallyFunc) (entities.Election, error)
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

// Metrics receives ledger counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ElectionCreated()
	VotesAccepted(count int)
	BallotRejected(code string)
	ElectionFinalized()
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ElectionCreated()      {}
func (NopMetrics) VotesAccepted(int)     {}
func (NopMetrics) BallotRejected(string) {}
func (NopMetrics) ElectionFinalized()    {}
