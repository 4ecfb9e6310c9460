package badgeradapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("badger codec: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("badger codec: %v", err))
	}
}

func encodeValue(value any) ([]byte, error) {
	return encMode.Marshal(value)
}

func decodeValue(data []byte, dst any) error {
	return decMode.Unmarshal(data, dst)
}

type candidateRow struct {
	Name      string `cbor:"1,keyasint"`
	VoteCount uint64 `cbor:"2,keyasint"`
}

// Times are stored as unix nanoseconds; zero means unset.
type electionRecord struct {
	ElectionID    string         `cbor:"1,keyasint"`
	Authority     string         `cbor:"2,keyasint"`
	StartTime     int64          `cbor:"3,keyasint"`
	EndTime       int64          `cbor:"4,keyasint"`
	Candidates    []candidateRow `cbor:"5,keyasint"`
	VotesPerVoter int            `cbor:"6,keyasint"`
	IsFinalized   bool           `cbor:"7,keyasint"`
	WinnerIndex   int            `cbor:"8,keyasint"`
	CreatedAt     int64          `cbor:"9,keyasint"`
	UpdatedAt     int64          `cbor:"10,keyasint"`
	FinalizedAt   int64          `cbor:"11,keyasint,omitempty"`
}

func electionRecordFromEntity(election entities.Election) electionRecord {
	candidates := make([]candidateRow, 0, len(election.Candidates))
	for _, candidate := range election.Candidates {
		candidates = append(candidates, candidateRow{Name: candidate.Name, VoteCount: candidate.VoteCount})
	}
	row := electionRecord{
		ElectionID:    election.ElectionID,
		Authority:     election.Authority,
		StartTime:     election.StartTime,
		EndTime:       election.EndTime,
		Candidates:    candidates,
		VotesPerVoter: election.VotesPerVoter,
		IsFinalized:   election.IsFinalized,
		WinnerIndex:   election.WinnerIndex,
		CreatedAt:     unixNano(election.CreatedAt),
		UpdatedAt:     unixNano(election.UpdatedAt),
	}
	if election.FinalizedAt != nil {
		row.FinalizedAt = unixNano(*election.FinalizedAt)
	}
	return row
}

func (r electionRecord) toEntity() entities.Election {
	candidates := make([]entities.Candidate, 0, len(r.Candidates))
	for _, candidate := range r.Candidates {
		candidates = append(candidates, entities.Candidate{Name: candidate.Name, VoteCount: candidate.VoteCount})
	}
	election := entities.Election{
		ElectionID:    r.ElectionID,
		Authority:     r.Authority,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Candidates:    candidates,
		VotesPerVoter: r.VotesPerVoter,
		IsFinalized:   r.IsFinalized,
		WinnerIndex:   r.WinnerIndex,
		CreatedAt:     fromUnixNano(r.CreatedAt),
		UpdatedAt:     fromUnixNano(r.UpdatedAt),
	}
	if r.FinalizedAt != 0 {
		finalizedAt := fromUnixNano(r.FinalizedAt)
		election.FinalizedAt = &finalizedAt
	}
	return election
}

type voterRecordRow struct {
	RecordID        string `cbor:"1,keyasint"`
	VoterID         string `cbor:"2,keyasint"`
	ElectionID      string `cbor:"3,keyasint"`
	VotesCastCount  int    `cbor:"4,keyasint"`
	VotedCandidates []int  `cbor:"5,keyasint"`
}

func voterRecordRowFromEntity(record entities.VoterRecord) voterRecordRow {
	return voterRecordRow{
		RecordID:        record.RecordID,
		VoterID:         record.VoterID,
		ElectionID:      record.ElectionID,
		VotesCastCount:  record.VotesCastCount,
		VotedCandidates: append([]int{}, record.VotedCandidates...),
	}
}

func (r voterRecordRow) toEntity() entities.VoterRecord {
	return entities.VoterRecord{
		RecordID:        r.RecordID,
		VoterID:         r.VoterID,
		ElectionID:      r.ElectionID,
		VotesCastCount:  r.VotesCastCount,
		VotedCandidates: append([]int{}, r.VotedCandidates...),
	}
}

type outboxRow struct {
	OutboxID     string `cbor:"1,keyasint"`
	Sequence     uint64 `cbor:"2,keyasint"`
	EventType    string `cbor:"3,keyasint"`
	PartitionKey string `cbor:"4,keyasint"`
	Payload      []byte `cbor:"5,keyasint"`
	CreatedAt    int64  `cbor:"6,keyasint"`
	PublishedAt  int64  `cbor:"7,keyasint,omitempty"`
}

func unixNano(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixNano()
}

func fromUnixNano(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(0, value).UTC()
}

// badgerLogger routes badger's printf-style logging into slog.
type badgerLogger struct {
	logger *slog.Logger
}

func newBadgerLogger(logger *slog.Logger) *badgerLogger {
	return &badgerLogger{logger: logger}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log(slog.LevelError, format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log(slog.LevelWarn, format, args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log(slog.LevelInfo, format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log(slog.LevelDebug, format, args...)
}

func (l *badgerLogger) log(level slog.Level, format string, args ...any) {
	l.logger.Log(context.Background(), level, strings.TrimSpace(fmt.Sprintf(format, args...)),
		"module", "governance/election-ledger",
		"layer", "adapter",
		"component", "badger",
	)
}
