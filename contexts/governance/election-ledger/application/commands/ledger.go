package commands

import (
	"context"
	"log/slog"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	"d21ledger/contexts/governance/election-ledger/ports"

	"github.com/google/uuid"
)

const moduleName = "governance/election-ledger"

// RepeatTallyPolicy decides what a tally request does once the election is
// already finalized.
type RepeatTallyPolicy string

const (
	// RepeatTallyReplay returns the stored result and marks it replayed.
	RepeatTallyReplay RepeatTallyPolicy = "replay"
	// RepeatTallyReject fails with ErrElectionAlreadyFinalized.
	RepeatTallyReject RepeatTallyPolicy = "reject"
)

func (p RepeatTallyPolicy) Valid() bool {
	return p == RepeatTallyReplay || p == RepeatTallyReject
}

// LedgerUseCase runs the election write model: creation, ballots and
// finalization. Each command hands Elections one outbox event to store in the
// same write as the state change.
type LedgerUseCase struct {
	Elections             ports.ElectionRepository
	Clock                 ports.Clock
	IDGen                 ports.IDGenerator
	Metrics               ports.Metrics
	Quota                 entities.QuotaTable
	MaxCandidateNameBytes int
	RepeatTally           RepeatTallyPolicy
	Logger                *slog.Logger
}

func (uc LedgerUseCase) now() time.Time {
	if uc.Clock == nil {
		return time.Now().UTC()
	}
	return uc.Clock.Now().UTC()
}

func (uc LedgerUseCase) quota() entities.QuotaTable {
	if len(uc.Quota) == 0 {
		return entities.DefaultQuotaTable()
	}
	return uc.Quota
}

func (uc LedgerUseCase) maxNameBytes() int {
	if uc.MaxCandidateNameBytes <= 0 {
		return entities.DefaultMaxCandidateNameBytes
	}
	return uc.MaxCandidateNameBytes
}

func (uc LedgerUseCase) repeatTally() RepeatTallyPolicy {
	if !uc.RepeatTally.Valid() {
		return RepeatTallyReplay
	}
	return uc.RepeatTally
}

func (uc LedgerUseCase) metrics() ports.Metrics {
	if uc.Metrics == nil {
		return ports.NopMetrics{}
	}
	return uc.Metrics
}

func (uc LedgerUseCase) newID(ctx context.Context) (string, error) {
	if uc.IDGen == nil {
		return uuid.NewString(), nil
	}
	return uc.IDGen.NewID(ctx)
}

func (uc LedgerUseCase) newEvent(
	ctx context.Context,
	eventType string,
	electionID string,
	occurredAt time.Time,
	data map[string]any,
) (*ports.EventEnvelope, error) {
	eventID, err := uc.newID(ctx)
	if err != nil {
		return nil, err
	}
	envelope, err := newLedgerEnvelope(eventID, eventType, electionID, occurredAt, data)
	if err != nil {
		return nil, err
	}
	return &envelope, nil
}
