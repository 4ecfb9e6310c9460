package postgresadapter

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
)

type electionModel struct {
	ElectionID     string     `gorm:"column:election_id;primaryKey"`
	Authority      string     `gorm:"column:authority"`
	StartTime      int64      `gorm:"column:start_time"`
	EndTime        int64      `gorm:"column:end_time;index"`
	CandidateCount int        `gorm:"column:candidate_count"`
	VotesPerVoter  int        `gorm:"column:votes_per_voter"`
	IsFinalized    bool       `gorm:"column:is_finalized;index"`
	WinnerIndex    int        `gorm:"column:winner_index"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
	FinalizedAt    *time.Time `gorm:"column:finalized_at"`
}

func (electionModel) TableName() string {
	return "elections"
}

func electionModelFromEntity(election entities.Election) electionModel {
	return electionModel{
		ElectionID:     election.ElectionID,
		Authority:      election.Authority,
		StartTime:      election.StartTime,
		EndTime:        election.EndTime,
		CandidateCount: len(election.Candidates),
		VotesPerVoter:  election.VotesPerVoter,
		IsFinalized:    election.IsFinalized,
		WinnerIndex:    election.WinnerIndex,
		CreatedAt:      election.CreatedAt.UTC(),
		UpdatedAt:      election.UpdatedAt.UTC(),
		FinalizedAt:    normalizeOptionalTime(election.FinalizedAt),
	}
}

func (m electionModel) toEntity(candidates []candidateModel) entities.Election {
	items := make([]entities.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		items = append(items, entities.Candidate{
			Name:      candidate.Name,
			VoteCount: uint64(candidate.VoteCount),
		})
	}
	return entities.Election{
		ElectionID:    m.ElectionID,
		Authority:     m.Authority,
		StartTime:     m.StartTime,
		EndTime:       m.EndTime,
		Candidates:    items,
		VotesPerVoter: m.VotesPerVoter,
		IsFinalized:   m.IsFinalized,
		WinnerIndex:   m.WinnerIndex,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
		FinalizedAt:   normalizeOptionalTime(m.FinalizedAt),
	}
}

type candidateModel struct {
	ElectionID string `gorm:"column:election_id;primaryKey"`
	Position   int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	Name       string `gorm:"column:name"`
	VoteCount  int64  `gorm:"column:vote_count"`
}

func (candidateModel) TableName() string {
	return "election_candidates"
}

func candidateModelsFromEntity(electionID string, candidates []entities.Candidate) []candidateModel {
	rows := make([]candidateModel, 0, len(candidates))
	for position, candidate := range candidates {
		rows = append(rows, candidateModel{
			ElectionID: electionID,
			Position:   position,
			Name:       candidate.Name,
			VoteCount:  int64(candidate.VoteCount),
		})
	}
	return rows
}

type voterRecordModel struct {
	RecordID        string  `gorm:"column:record_id;primaryKey"`
	ElectionID      string  `gorm:"column:election_id;index"`
	VoterID         string  `gorm:"column:voter_id"`
	VotesCastCount  int     `gorm:"column:votes_cast_count"`
	VotedCandidates intList `gorm:"column:voted_candidates;type:text"`
}

func (voterRecordModel) TableName() string {
	return "voter_records"
}

func voterRecordModelFromEntity(record entities.VoterRecord) voterRecordModel {
	return voterRecordModel{
		RecordID:        record.RecordID,
		ElectionID:      record.ElectionID,
		VoterID:         record.VoterID,
		VotesCastCount:  record.VotesCastCount,
		VotedCandidates: intList(record.VotedCandidates),
	}
}

func (m voterRecordModel) toEntity() entities.VoterRecord {
	return entities.VoterRecord{
		RecordID:        m.RecordID,
		VoterID:         m.VoterID,
		ElectionID:      m.ElectionID,
		VotesCastCount:  m.VotesCastCount,
		VotedCandidates: append([]int{}, m.VotedCandidates...),
	}
}

type outboxModel struct {
	OutboxID     string     `gorm:"column:outbox_id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status;index"`
	OccurredAt   time.Time  `gorm:"column:occurred_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
}

func (outboxModel) TableName() string {
	return "election_ledger_outbox"
}

// intList stores candidate indices as a JSON array.
type intList []int

func (l intList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	payload, err := json.Marshal([]int(l))
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func (l *intList) Scan(value any) error {
	var raw []byte
	switch typed := value.(type) {
	case nil:
		*l = intList{}
		return nil
	case string:
		raw = []byte(typed)
	case []byte:
		raw = typed
	default:
		return fmt.Errorf("scan intList: unsupported type %T", value)
	}
	var items []int
	if err := json.Unmarshal(raw, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

func normalizeOptionalTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	normalized := value.UTC()
	return &normalized
}
