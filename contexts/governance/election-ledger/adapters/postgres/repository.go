package postgresadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/ports"
	"d21ledger/internal/shared/events"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists the ledger through gorm. It runs against Postgres in
// production and SQLite in tests; row locks are only requested on Postgres.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Migrate creates or updates the ledger tables.
func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(
		&electionModel{},
		&candidateModel{},
		&voterRecordModel{},
		&outboxModel{},
	); err != nil {
		return r.logError("ledger_repo_migrate_failed", err)
	}
	return nil
}

func (r *Repository) CreateElection(ctx context.Context, election entities.Election, event *ports.EventEnvelope) error {
	row := electionModelFromEntity(election)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		create := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "election_id"}},
			DoNothing: true,
		}).Create(&row)
		if create.Error != nil {
			return create.Error
		}
		if create.RowsAffected == 0 {
			return domainerrors.ErrElectionAlreadyExists
		}
		candidates := candidateModelsFromEntity(row.ElectionID, election.Candidates)
		if err := tx.Create(&candidates).Error; err != nil {
			return err
		}
		return appendOutboxTx(tx, event)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
		if errors.Is(err, domainerrors.ErrElectionAlreadyExists) || isUniqueViolation(err) {
			return domainerrors.ErrElectionAlreadyExists
		}
		return r.logError("ledger_repo_create_election_failed", err,
			"election_id", row.ElectionID,
		)
	}
	return nil
}

func (r *Repository) GetElection(ctx context.Context, electionID string) (entities.Election, error) {
	election, err := r.loadElection(r.db.WithContext(ctx), strings.TrimSpace(electionID), nil)
	if err != nil {
		if errors.Is(err, domainerrors.ErrElectionNotFound) {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("ledger_repo_get_election_failed", err,
			"election_id", strings.TrimSpace(electionID),
		)
	}
	return election, nil
}

func (r *Repository) ListElections(ctx context.Context) ([]entities.Election, error) {
	var rows []electionModel
	db := r.db.WithContext(ctx)
	if err := db.Order("created_at ASC").Order("election_id ASC").Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_elections_failed", err)
	}
	items, err := r.attachCandidates(db, rows)
	if err != nil {
		return nil, r.logError("ledger_repo_list_candidates_failed", err)
	}
	return items, nil
}

func (r *Repository) ListElectionsPendingTally(ctx context.Context, now int64, limit int) ([]entities.Election, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []electionModel
	db := r.db.WithContext(ctx)
	if err := db.
		Where("is_finalized = ?", false).
		Where("end_time <= ?", now).
		Order("end_time ASC").
		Order("election_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_tally_failed", err, "now", now, "limit", limit)
	}
	items, err := r.attachCandidates(db, rows)
	if err != nil {
		return nil, r.logError("ledger_repo_list_candidates_failed", err)
	}
	return items, nil
}

func (r *Repository) GetVoterRecord(ctx context.Context, electionID string, voterID string) (entities.VoterRecord, bool, error) {
	recordID := entities.VoterRecordID(strings.TrimSpace(voterID), strings.TrimSpace(electionID))
	var row voterRecordModel
	err := r.db.WithContext(ctx).Where("record_id = ?", recordID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.VoterRecord{}, false, nil
		}
		return entities.VoterRecord{}, false, r.logError("ledger_repo_get_voter_record_failed", err,
			"election_id", strings.TrimSpace(electionID),
			"voter_id", strings.TrimSpace(voterID),
		)
	}
	return row.toEntity(), true, nil
}

// CastBallot holds a shared lock on the election and an exclusive lock on the
// voter record for the whole transaction. The record row is inserted empty
// first so concurrent first ballots from one voter queue on the same row.
func (r *Repository) CastBallot(
	ctx context.Context,
	electionID string,
	voterID string,
	apply ports.BallotFunc,
) (ports.BallotReceipt, error) {
	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	var receipt ports.BallotReceipt
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := r.loadElection(tx, electionID, &clause.Locking{Strength: "SHARE"})
		if err != nil {
			return err
		}

		fresh := voterRecordModelFromEntity(entities.NewVoterRecord(voterID, electionID))
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "record_id"}},
			DoNothing: true,
		}).Create(&fresh).Error; err != nil {
			return err
		}
		var recordRow voterRecordModel
		if err := r.locked(tx, &clause.Locking{Strength: "UPDATE"}).
			Where("record_id = ?", fresh.RecordID).
			First(&recordRow).Error; err != nil {
			return err
		}
		record := recordRow.toEntity()

		decision, err := apply(election.Clone(), record.Clone())
		if err != nil {
			return err
		}
		accepted := decision.Accepted

		if err := tx.Model(&candidateModel{}).
			Where("election_id = ?", electionID).
			Where("position IN ?", accepted).
			Update("vote_count", gorm.Expr("vote_count + ?", 1)).Error; err != nil {
			return err
		}
		record.VotedCandidates = append(record.VotedCandidates, accepted...)
		record.VotesCastCount += len(accepted)
		if err := tx.Model(&voterRecordModel{}).
			Where("record_id = ?", record.RecordID).
			Updates(map[string]any{
				"votes_cast_count": record.VotesCastCount,
				"voted_candidates": intList(record.VotedCandidates),
			}).Error; err != nil {
			return err
		}

		if err := appendOutboxTx(tx, decision.Event); err != nil {
			return err
		}

		updated, err := r.loadElection(tx, electionID, nil)
		if err != nil {
			return err
		}
		receipt = ports.BallotReceipt{
			Election: updated,
			Record:   record,
			Accepted: append([]int(nil), accepted...),
		}
		return nil
	})
	if err != nil {
		if domainerrors.Code(err) != domainerrors.CodeInternal {
			return ports.BallotReceipt{}, err
		}
		return ports.BallotReceipt{}, r.logError("ledger_repo_cast_ballot_failed", err,
			"election_id", electionID,
			"voter_id", voterID,
		)
	}
	return receipt, nil
}

func (r *Repository) TallyElection(
	ctx context.Context,
	electionID string,
	finalizedAt time.Time,
	decide ports.TallyFunc,
) (entities.Election, error) {
	electionID = strings.TrimSpace(electionID)
	var result entities.Election
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		election, err := r.loadElection(tx, electionID, &clause.Locking{Strength: "UPDATE"})
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
		update := tx.Model(&electionModel{}).
			Where("election_id = ?", electionID).
			Where("is_finalized = ?", false).
			Updates(map[string]any{
				"is_finalized": true,
				"winner_index": decision.WinnerIndex,
				"finalized_at": at,
				"updated_at":   at,
			})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected != 1 {
			return domainerrors.ErrConflict
		}
		if err := appendOutboxTx(tx, decision.Event); err != nil {
			return err
		}
		election.IsFinalized = true
		election.WinnerIndex = decision.WinnerIndex
		election.FinalizedAt = &at
		election.UpdatedAt = at
		result = election
		return nil
	})
	if err != nil {
		if domainerrors.Code(err) != domainerrors.CodeInternal {
			return entities.Election{}, err
		}
		return entities.Election{}, r.logError("ledger_repo_tally_failed", err,
			"election_id", electionID,
		)
	}
	return result, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return appendOutboxTx(tx, &envelope)
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrConflict) {
			return err
		}
		return r.logError("ledger_repo_append_outbox_failed", err,
			"event_id", strings.TrimSpace(envelope.EventID),
			"event_type", strings.TrimSpace(envelope.EventType),
		)
	}
	return nil
}

// appendOutboxTx inserts envelope inside tx. Re-inserting an identical row is
// a no-op; a different payload under the same id fails with ErrConflict.
func appendOutboxTx(tx *gorm.DB, envelope *ports.EventEnvelope) error {
	if envelope == nil {
		return nil
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal outbox envelope: %w", err)
	}
	row := outboxModel{
		OutboxID:     strings.TrimSpace(envelope.EventID),
		EventType:    strings.TrimSpace(envelope.EventType),
		PartitionKey: strings.TrimSpace(envelope.PartitionKey),
		Payload:      payload,
		Status:       events.OutboxStatusPending,
		OccurredAt:   envelope.OccurredAt.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if row.OutboxID == "" {
		row.OutboxID = uuid.NewString()
	}
	create := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "outbox_id"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return create.Error
	}
	if create.RowsAffected > 0 {
		return nil
	}

	var existing outboxModel
	if err := tx.Select("payload").
		Where("outbox_id = ?", row.OutboxID).
		First(&existing).Error; err != nil {
		return err
	}
	if !bytes.Equal(existing.Payload, row.Payload) {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", events.OutboxStatusPending).
		Order("created_at ASC").
		Order("outbox_id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, r.logError("ledger_repo_list_pending_outbox_failed", err, "limit", limit)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.OutboxID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      append([]byte(nil), row.Payload...),
			CreatedAt:    row.CreatedAt.UTC(),
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("outbox_id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       events.OutboxStatusPublished,
			"published_at": publishedAt.UTC(),
		})
	if result.Error != nil {
		return r.logError("ledger_repo_mark_outbox_published_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}
	return nil
}

func (r *Repository) loadElection(db *gorm.DB, electionID string, locking *clause.Locking) (entities.Election, error) {
	var row electionModel
	err := r.locked(db, locking).Where("election_id = ?", electionID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.Election{}, domainerrors.ErrElectionNotFound
		}
		return entities.Election{}, err
	}
	var candidates []candidateModel
	if err := db.Where("election_id = ?", electionID).Order("position ASC").Find(&candidates).Error; err != nil {
		return entities.Election{}, err
	}
	return row.toEntity(candidates), nil
}

func (r *Repository) attachCandidates(db *gorm.DB, rows []electionModel) ([]entities.Election, error) {
	if len(rows) == 0 {
		return []entities.Election{}, nil
	}
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ElectionID)
	}
	var candidates []candidateModel
	if err := db.Where("election_id IN ?", ids).
		Order("election_id ASC").
		Order("position ASC").
		Find(&candidates).Error; err != nil {
		return nil, err
	}
	byElection := make(map[string][]candidateModel, len(rows))
	for _, candidate := range candidates {
		byElection[candidate.ElectionID] = append(byElection[candidate.ElectionID], candidate)
	}
	items := make([]entities.Election, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity(byElection[row.ElectionID]))
	}
	return items, nil
}

// locked adds a row lock on Postgres. SQLite serializes writers itself.
func (r *Repository) locked(db *gorm.DB, locking *clause.Locking) *gorm.DB {
	if locking == nil || db.Dialector.Name() != "postgres" {
		return db
	}
	return db.Clauses(*locking)
}

func (r *Repository) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "governance/election-ledger",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("ledger repository operation failed", fields...)
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ ports.ElectionRepository = (*Repository)(nil)
var _ ports.OutboxWriter = (*Repository)(nil)
var _ ports.OutboxRepository = (*Repository)(nil)
