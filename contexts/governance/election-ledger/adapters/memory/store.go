package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/domain/services"
	"d21ledger/contexts/governance/election-ledger/ports"

	"github.com/google/uuid"
)

type outboxRecord struct {
	message   ports.OutboxMessage
	sequence  uint64
	published bool
}

// Store keeps the whole ledger behind one lock. Every ballot and tally runs
// its read-check-mutate under the write lock, so no two can interleave.
type Store struct {
	mu sync.RWMutex

	elections    map[string]entities.Election
	voterRecords map[string]entities.VoterRecord
	outbox       map[string]outboxRecord
	outboxSeq    uint64
}

func NewStore(seed []entities.Election) *Store {
	elections := make(map[string]entities.Election, len(seed))
	for _, election := range seed {
		elections[election.ElectionID] = election.Clone()
	}
	return &Store{
		elections:    elections,
		voterRecords: make(map[string]entities.VoterRecord),
		outbox:       make(map[string]outboxRecord),
	}
}

func (s *Store) CreateElection(_ context.Context, election entities.Election, event *ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	electionID := strings.TrimSpace(election.ElectionID)
	if _, exists := s.elections[electionID]; exists {
		return domainerrors.ErrElectionAlreadyExists
	}
	row, err := s.prepareOutboxLocked(event)
	if err != nil {
		return err
	}
	election.ElectionID = electionID
	s.elections[electionID] = election.Clone()
	s.putOutboxLocked(row)
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	election, ok := s.elections[strings.TrimSpace(electionID)]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return election.Clone(), nil
}

func (s *Store) ListElections(_ context.Context) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]entities.Election, 0, len(s.elections))
	for _, election := range s.elections {
		items = append(items, election.Clone())
	}
	sortElectionsByCreation(items)
	return items, nil
}

func (s *Store) ListElectionsPendingTally(_ context.Context, now int64, limit int) ([]entities.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.Election, 0)
	for _, election := range s.elections {
		if election.IsFinalized || election.EndTime > now {
			continue
		}
		items = append(items, election.Clone())
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].EndTime == items[j].EndTime {
			return items[i].ElectionID < items[j].ElectionID
		}
		return items[i].EndTime < items[j].EndTime
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) GetVoterRecord(_ context.Context, electionID string, voterID string) (entities.VoterRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.voterRecords[entities.VoterRecordID(strings.TrimSpace(voterID), strings.TrimSpace(electionID))]
	if !ok {
		return entities.VoterRecord{}, false, nil
	}
	return record.Clone(), true, nil
}

func (s *Store) CastBallot(
	_ context.Context,
	electionID string,
	voterID string,
	apply ports.BallotFunc,
) (ports.BallotReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	election, ok := s.elections[electionID]
	if !ok {
		return ports.BallotReceipt{}, domainerrors.ErrElectionNotFound
	}
	recordID := entities.VoterRecordID(voterID, electionID)
	record, ok := s.voterRecords[recordID]
	if !ok {
		record = entities.NewVoterRecord(voterID, electionID)
	}

	decision, err := apply(election.Clone(), record.Clone())
	if err != nil {
		return ports.BallotReceipt{}, err
	}
	row, err := s.prepareOutboxLocked(decision.Event)
	if err != nil {
		return ports.BallotReceipt{}, err
	}
	nextElection, nextRecord := services.ApplyBallot(election, record, decision.Accepted)
	s.elections[electionID] = nextElection
	s.voterRecords[recordID] = nextRecord
	s.putOutboxLocked(row)
	return ports.BallotReceipt{
		Election: nextElection.Clone(),
		Record:   nextRecord.Clone(),
		Accepted: append([]int(nil), decision.Accepted...),
	}, nil
}

func (s *Store) TallyElection(
	_ context.Context,
	electionID string,
	finalizedAt time.Time,
	decide ports.TallyFunc,
) (entities.Election, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	electionID = strings.TrimSpace(electionID)
	election, ok := s.elections[electionID]
	if !ok {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	decision, err := decide(election.Clone())
	if err != nil {
		return entities.Election{}, err
	}
	if !decision.Commit {
		return election.Clone(), nil
	}
	row, err := s.prepareOutboxLocked(decision.Event)
	if err != nil {
		return entities.Election{}, err
	}
	finalizedAt = finalizedAt.UTC()
	election = election.Clone()
	election.IsFinalized = true
	election.WinnerIndex = decision.WinnerIndex
	election.FinalizedAt = &finalizedAt
	election.UpdatedAt = finalizedAt
	s.elections[electionID] = election
	s.putOutboxLocked(row)
	return election.Clone(), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.prepareOutboxLocked(&envelope)
	if err != nil {
		return err
	}
	s.putOutboxLocked(row)
	return nil
}

// prepareOutboxLocked builds the row for envelope without storing it. A nil
// row means there is nothing to write: no envelope, or an identical row is
// already stored.
func (s *Store) prepareOutboxLocked(envelope *ports.EventEnvelope) (*outboxRecord, error) {
	if envelope == nil {
		return nil, nil
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}
	if existing, ok := s.outbox[outboxID]; ok {
		if !bytes.Equal(existing.message.Payload, payload) {
			return nil, domainerrors.ErrConflict
		}
		return nil, nil
	}
	createdAt := envelope.OccurredAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &outboxRecord{
		message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    strings.TrimSpace(envelope.EventType),
			PartitionKey: strings.TrimSpace(envelope.PartitionKey),
			Payload:      payload,
			CreatedAt:    createdAt,
		},
	}, nil
}

func (s *Store) putOutboxLocked(row *outboxRecord) {
	if row == nil {
		return
	}
	s.outboxSeq++
	row.sequence = s.outboxSeq
	s.outbox[row.message.OutboxID] = *row
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows := make([]outboxRecord, 0, len(s.outbox))
	for _, row := range s.outbox {
		if row.published {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].sequence < rows[j].sequence
	})
	if len(rows) > limit {
		rows = rows[:limit]
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.message)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrConflict
	}
	row.published = true
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

// PendingOutboxCount reports rows not yet relayed.
func (s *Store) PendingOutboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, row := range s.outbox {
		if !row.published {
			count++
		}
	}
	return count
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}

func sortElectionsByCreation(items []entities.Election) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ElectionID < items[j].ElectionID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

var _ ports.ElectionRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
var _ ports.Clock = (*Store)(nil)
var _ ports.IDGenerator = (*Store)(nil)
