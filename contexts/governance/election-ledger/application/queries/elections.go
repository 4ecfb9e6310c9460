package queries

import (
	"context"
	"strings"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/domain/services"
	"d21ledger/contexts/governance/election-ledger/ports"
)

type ElectionView struct {
	Election    entities.Election
	WindowState entities.WindowState
}

type StandingsView struct {
	ElectionID  string
	WindowState entities.WindowState
	IsFinalized bool
	WinnerIndex int
	TotalVotes  uint64
	Standings   []services.Standing
}

type ElectionQueries struct {
	Elections ports.ElectionRepository
	Clock     ports.Clock
}

func (q ElectionQueries) GetElection(ctx context.Context, electionID string) (ElectionView, error) {
	electionID = strings.TrimSpace(electionID)
	if electionID == "" {
		return ElectionView{}, domainerrors.ErrElectionNotFound
	}
	election, err := q.Elections.GetElection(ctx, electionID)
	if err != nil {
		return ElectionView{}, err
	}
	return ElectionView{
		Election:    election,
		WindowState: entities.Classify(election, q.Now().Unix()),
	}, nil
}

func (q ElectionQueries) ListElections(ctx context.Context) ([]ElectionView, error) {
	items, err := q.Elections.ListElections(ctx)
	if err != nil {
		return nil, err
	}
	now := q.Now().Unix()
	views := make([]ElectionView, 0, len(items))
	for _, election := range items {
		views = append(views, ElectionView{
			Election:    election,
			WindowState: entities.Classify(election, now),
		})
	}
	return views, nil
}

// Standings ranks candidates by current count. Counts are live while the
// election is open.
func (q ElectionQueries) Standings(ctx context.Context, electionID string) (StandingsView, error) {
	view, err := q.GetElection(ctx, electionID)
	if err != nil {
		return StandingsView{}, err
	}
	return StandingsView{
		ElectionID:  view.Election.ElectionID,
		WindowState: view.WindowState,
		IsFinalized: view.Election.IsFinalized,
		WinnerIndex: view.Election.WinnerIndex,
		TotalVotes:  view.Election.TotalVotes(),
		Standings:   services.RankCandidates(view.Election.Candidates),
	}, nil
}

// GetVoterRecord returns the voter's record, or an empty record carrying the
// derived identity when the voter has not voted yet.
func (q ElectionQueries) GetVoterRecord(ctx context.Context, electionID string, voterID string) (entities.VoterRecord, error) {
	electionID = strings.TrimSpace(electionID)
	voterID = strings.TrimSpace(voterID)
	if voterID == "" {
		return entities.VoterRecord{}, domainerrors.ErrInvalidVoteInput
	}
	if _, err := q.GetElection(ctx, electionID); err != nil {
		return entities.VoterRecord{}, err
	}
	record, found, err := q.Elections.GetVoterRecord(ctx, electionID, voterID)
	if err != nil {
		return entities.VoterRecord{}, err
	}
	if !found {
		return entities.NewVoterRecord(voterID, electionID), nil
	}
	return record, nil
}

// Now is the instant window states are classified against.
func (q ElectionQueries) Now() time.Time {
	if q.Clock == nil {
		return time.Now().UTC()
	}
	return q.Clock.Now().UTC()
}
