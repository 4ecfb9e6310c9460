package badgeradapter

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/domain/services"
	"d21ledger/contexts/governance/election-ledger/ports"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	electionPrefix    = "election/"
	voterPrefix       = "voter/"
	outboxPrefix      = "outbox/"
	outboxIndexPrefix = "outbox-id/"
	outboxSequenceKey = "seq/outbox"

	maxConflictRetries = 1000
)

// Store persists the ledger in badger. Ballots and tallies run inside
// read-write transactions; badger rejects a commit whose reads went stale with
// ErrConflict, and the store reruns the whole read-check-mutate on fresh data.
type Store struct {
	db       *badger.DB
	sequence *badger.Sequence
	logger   *slog.Logger
}

// Open opens a badger store under dir, or an in-memory store when dir is
// empty.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if _, err := os.Stat(dir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read badger dir: %w", err)
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create badger dir: %w", err)
			}
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.
		WithLogger(newBadgerLogger(logger)).
		// The default INFO logging is a bit verbose
		WithLoggingLevel(badger.WARNING)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	sequence, err := db.GetSequence([]byte(outboxSequenceKey), 100)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open outbox sequence: %w", err)
	}
	return &Store{
		db:       db,
		sequence: sequence,
		logger:   logger,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.sequence.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func (s *Store) CreateElection(ctx context.Context, election entities.Election, event *ports.EventEnvelope) error {
	electionID := strings.TrimSpace(election.ElectionID)
	election.ElectionID = electionID
	err := s.update(ctx, func(txn *badger.Txn) error {
		key := electionKey(electionID)
		if _, err := txn.Get(key); err == nil {
			return domainerrors.ErrElectionAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := putValue(txn, key, electionRecordFromEntity(election)); err != nil {
			return err
		}
		return s.putOutbox(txn, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrElectionAlreadyExists) || errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
		return s.logError("ledger_badger_create_election_failed", err, "election_id", electionID)
	}
	return nil
}

func (s *Store) GetElection(_ context.Context, electionID string) (entities.Election, error) {
	var election entities.Election
	err := s.db.View(func(txn *badger.Txn) error {
		loaded, err := getElection(txn, strings.TrimSpace(electionID))
		if err != nil {
			return err
		}
		election = loaded
		return nil
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, s.logError("ledger_badger_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return election, nil
}

func (s *Store) ListElections(_ context.Context) ([]entities.Election, error) {
	items, err := s.scanElections(func(entities.Election) bool { return true })
	if err != nil {
		return nil, s.logError("ledger_badger_list_elections_failed", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ElectionID < items[j].ElectionID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *Store) ListElectionsPendingTally(_ context.Context, now int64, limit int) ([]entities.Election, error) {
	if limit <= 0 {
		limit = 100
	}
	items, err := s.scanElections(func(election entities.Election) bool {
		return !election.IsFinalized && election.EndTime <= now
	})
	if err != nil {
		return nil, s.logError("ledger_badger_list_pending_tally_failed", err, "now", now)
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
	recordID := entities.VoterRecordID(strings.TrimSpace(voterID), strings.TrimSpace(electionID))
	var (
		record entities.VoterRecord
		found  bool
	)
	err := s.db.View(func(txn *badger.Txn) error {
		var row voterRecordRow
		ok, err := getValue(txn, voterKey(recordID), &row)
		if err != nil || !ok {
			return err
		}
		record = row.toEntity()
		found = true
		return nil
	})
	if err != nil {
		return entities.VoterRecord{}, false, s.logError("ledger_badger_get_voter_record_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return record, found, nil
}

func (s *Store) CastBallot(
	ctx context.Context,
	electionID string,
	voterID string,
	apply ports.BallotFunc,
) (ports.BallotReceipt, error) {
	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	recordID := entities.VoterRecordID(voterID, electionID)

	var receipt ports.BallotReceipt
	err := s.update(ctx, func(txn *badger.Txn) error {
		election, err := getElection(txn, electionID)
		if err != nil {
			return err
		}
		record := entities.NewVoterRecord(voterID, electionID)
		var row voterRecordRow
		found, err := getValue(txn, voterKey(recordID), &row)
		if err != nil {
			return err
		}
		if found {
			record = row.toEntity()
		}

		decision, err := apply(election.Clone(), record.Clone())
		if err != nil {
			return err
		}
		nextElection, nextRecord := services.ApplyBallot(election, record, decision.Accepted)
		if err := putValue(txn, electionKey(electionID), electionRecordFromEntity(nextElection)); err != nil {
			return err
		}
		if err := putValue(txn, voterKey(recordID), voterRecordRowFromEntity(nextRecord)); err != nil {
			return err
		}
		if err := s.putOutbox(txn, decision.Event); err != nil {
			return err
		}
		receipt = ports.BallotReceipt{
			Election: nextElection,
			Record:   nextRecord,
			Accepted: append([]int(nil), decision.Accepted...),
		}
		return nil
	})
	if err != nil {
		if domainerrors.Code(err) != domainerrors.CodeInternal {
			return ports.BallotReceipt{}, err
		}
		return ports.BallotReceipt{}, s.logError("ledger_badger_cast_ballot_failed", err,
			"election_id", electionID,
			"voter_id", voterID,
		)
	}
	return receipt, nil
}

func (s *Store) TallyElection(
	ctx context.Context,
	electionID string,
	finalizedAt time.Time,
	decide ports.TallyFunc,
) (entities.Election, error) {
	electionID = strings.TrimSpace(electionID)
	var result entities.Election
	err := s.update(ctx, func(txn *badger.Txn) error {
		election, err := getElection(txn, electionID)
		if err != nil {
			return err
		}
		decision, err := decide(election.Clone())
		if err != nil {
			return err
		}
		if !decision.Commit {
			result = election
			return nil
		}
		at := finalizedAt.UTC()
		election.IsFinalized = true
		election.WinnerIndex = decision.WinnerIndex
		election.FinalizedAt = &at
		election.UpdatedAt = at
		if err := putValue(txn, electionKey(electionID), electionRecordFromEntity(election)); err != nil {
			return err
		}
		if err := s.putOutbox(txn, decision.Event); err != nil {
			return err
		}
		result = election
		return nil
	})
	if err != nil {
		if domainerrors.Code(err) != domainerrors.CodeInternal {
			return entities.Election{}, err
		}
		return entities.Election{}, s.logError("ledger_badger_tally_failed", err, "election_id", electionID)
	}
	return result, nil
}

func (s *Store) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	err := s.update(ctx, func(txn *badger.Txn) error {
		return s.putOutbox(txn, &envelope)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
		return s.logError("ledger_badger_append_outbox_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
		)
	}
	return nil
}

// putOutbox stages envelope in txn. An identical row under the same id is
// left alone; a different one fails with ErrConflict.
func (s *Store) putOutbox(txn *badger.Txn, envelope *ports.EventEnvelope) error {
	if envelope == nil {
		return nil
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		outboxID = uuid.NewString()
	}

	indexItem, err := txn.Get(outboxIndexKey(outboxID))
	if err == nil {
		existingKey, err := indexItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		var existing outboxRow
		if _, err := getValue(txn, existingKey, &existing); err != nil {
			return err
		}
		if !bytes.Equal(existing.Payload, payload) {
			return domainerrors.ErrConflict
		}
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	sequence, err := s.sequence.Next()
	if err != nil {
		return fmt.Errorf("next outbox sequence: %w", err)
	}
	key := outboxKey(sequence)
	if err := putValue(txn, key, outboxRow{
		OutboxID:     outboxID,
		Sequence:     sequence,
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		CreatedAt:    time.Now().UTC().UnixNano(),
	}); err != nil {
		return err
	}
	return txn.Set(outboxIndexKey(outboxID), key)
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(outboxPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(items) < limit; it.Next() {
			var row outboxRow
			if err := it.Item().Value(func(value []byte) error {
				return decodeValue(value, &row)
			}); err != nil {
				return err
			}
			if row.PublishedAt != 0 {
				continue
			}
			items = append(items, ports.OutboxMessage{
				OutboxID:     row.OutboxID,
				EventType:    row.EventType,
				PartitionKey: row.PartitionKey,
				Payload:      append([]byte(nil), row.Payload...),
				CreatedAt:    time.Unix(0, row.CreatedAt).UTC(),
			})
		}
		return nil
	})
	if err != nil {
		return nil, s.logError("ledger_badger_list_pending_outbox_failed", err, "limit", limit)
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	outboxID = strings.TrimSpace(outboxID)
	err := s.update(ctx, func(txn *badger.Txn) error {
		indexItem, err := txn.Get(outboxIndexKey(outboxID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domainerrors.ErrConflict
		}
		if err != nil {
			return err
		}
		key, err := indexItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		var row outboxRow
		if _, err := getValue(txn, key, &row); err != nil {
			return err
		}
		row.PublishedAt = publishedAt.UTC().UnixNano()
		return putValue(txn, key, row)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
		return s.logError("ledger_badger_mark_outbox_published_failed", err, "outbox_id", outboxID)
	}
	return nil
}

// update runs fn in a read-write transaction, rerunning it when badger
// reports a conflicting concurrent commit.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= maxConflictRetries {
			return domainerrors.ErrConflict
		}
	}
}

func (s *Store) scanElections(keep func(entities.Election) bool) ([]entities.Election, error) {
	items := make([]entities.Election, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(electionPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var row electionRecord
			if err := it.Item().Value(func(value []byte) error {
				return decodeValue(value, &row)
			}); err != nil {
				return err
			}
			election := row.toEntity()
			if keep(election) {
				items = append(items, election)
			}
		}
		return nil
	})
	return items, err
}

func (s *Store) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/election-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	s.logger.Error("ledger badger operation failed", fields...)
	return err
}

func getElection(txn *badger.Txn, electionID string) (entities.Election, error) {
	var row electionRecord
	found, err := getValue(txn, electionKey(electionID), &row)
	if err != nil {
		return entities.Election{}, err
	}
	if !found {
		return entities.Election{}, domainerrors.ErrElectionNotFound
	}
	return row.toEntity(), nil
}

func getValue(txn *badger.Txn, key []byte, dst any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := item.Value(func(value []byte) error {
		return decodeValue(value, dst)
	}); err != nil {
		return false, err
	}
	return true, nil
}

func putValue(txn *badger.Txn, key []byte, value any) error {
	payload, err := encodeValue(value)
	if err != nil {
		return err
	}
	return txn.Set(key, payload)
}

func electionKey(electionID string) []byte {
	return []byte(electionPrefix + electionID)
}

func voterKey(recordID string) []byte {
	return []byte(voterPrefix + recordID)
}

func outboxKey(sequence uint64) []byte {
	key := make([]byte, len(outboxPrefix)+8)
	copy(key, outboxPrefix)
	binary.BigEndian.PutUint64(key[len(outboxPrefix):], sequence)
	return key
}

func outboxIndexKey(outboxID string) []byte {
	return []byte(outboxIndexPrefix + outboxID)
}

var _ ports.ElectionRepository = (*Store)(nil)
var _ ports.OutboxWriter = (*Store)(nil)
var _ ports.OutboxRepository = (*Store)(nil)
