package commands

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
)

func TestInitializeElectionSetsQuotaAndZeroCounts(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, "election-1", "Alice", "Bob", "Charlie")

	if election.VotesPerVoter != 2 {
		t.Fatalf("expected 2 votes per voter, got %d", election.VotesPerVoter)
	}
	if election.IsFinalized {
		t.Fatalf("expected new election not finalized")
	}
	for _, candidate := range election.Candidates {
		if candidate.VoteCount != 0 {
			t.Fatalf("expected zero counts, got %+v", election.Candidates)
		}
	}
	stored, err := f.store.GetElection(context.Background(), "election-1")
	if err != nil {
		t.Fatalf("load election failed: %v", err)
	}
	if stored.Candidates[2].Name != "Charlie" {
		t.Fatalf("expected roster order kept, got %+v", stored.Candidates)
	}
	if f.metrics.created != 1 {
		t.Fatalf("expected created metric, got %d", f.metrics.created)
	}
	if f.store.PendingOutboxCount() != 1 {
		t.Fatalf("expected initialized event in outbox")
	}
}

func TestInitializeElectionSevenCandidatesGetsThreeVotes(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, "election-7", "A", "B", "C", "D", "E", "F", "G")
	if election.VotesPerVoter != 3 {
		t.Fatalf("expected 3 votes per voter, got %d", election.VotesPerVoter)
	}
}

func TestInitializeElectionGeneratesID(t *testing.T) {
	f := newFixture()
	election := f.openElection(t, "", "A", "B")
	if strings.TrimSpace(election.ElectionID) == "" {
		t.Fatalf("expected generated election id")
	}
}

func TestInitializeElectionValidationOrder(t *testing.T) {
	longName := strings.Repeat("x", entities.DefaultMaxCandidateNameBytes+1)
	tooMany := make([]string, entities.MaxCandidates+1)
	for i := range tooMany {
		tooMany[i] = "c"
	}
	start := testEpoch.Unix()
	end := testEpoch.Add(time.Hour).Unix()

	cases := []struct {
		name string
		cmd  InitializeElectionCommand
		want error
	}{
		{
			name: "missing authority",
			cmd:  InitializeElectionCommand{CandidateNames: []string{"A"}, CandidateCount: 2, StartTime: start, EndTime: end},
			want: domainerrors.ErrInvalidElectionInput,
		},
		{
			name: "count mismatch beats long name",
			cmd:  InitializeElectionCommand{Authority: "a", CandidateNames: []string{longName}, CandidateCount: 2, StartTime: start, EndTime: end},
			want: domainerrors.ErrCandidateCountMismatch,
		},
		{
			name: "empty roster",
			cmd:  InitializeElectionCommand{Authority: "a", StartTime: start, EndTime: end},
			want: domainerrors.ErrInvalidCandidateCount,
		},
		{
			name: "roster too large",
			cmd:  InitializeElectionCommand{Authority: "a", CandidateNames: tooMany, CandidateCount: len(tooMany), StartTime: start, EndTime: end},
			want: domainerrors.ErrInvalidCandidateCount,
		},
		{
			name: "long name beats bad window",
			cmd:  InitializeElectionCommand{Authority: "a", CandidateNames: []string{"A", longName}, CandidateCount: 2, StartTime: end, EndTime: start},
			want: domainerrors.ErrCandidateNameTooLong,
		},
		{
			name: "empty window",
			cmd:  InitializeElectionCommand{Authority: "a", CandidateNames: []string{"A"}, CandidateCount: 1, StartTime: start, EndTime: start},
			want: domainerrors.ErrInvalidElectionWindow,
		},
	}
	for _, tc := range cases {
		f := newFixture()
		_, err := f.ledger.InitializeElection(context.Background(), tc.cmd)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
		elections, listErr := f.store.ListElections(context.Background())
		if listErr != nil {
			t.Fatalf("%s: list failed: %v", tc.name, listErr)
		}
		if len(elections) != 0 {
			t.Fatalf("%s: expected nothing persisted", tc.name)
		}
	}
}

func TestInitializeElectionNameLimitIsBytes(t *testing.T) {
	f := newFixture()
	// 17 three-byte runes: 51 bytes.
	name := strings.Repeat("€", 17)
	_, err := f.ledger.InitializeElection(context.Background(), InitializeElectionCommand{
		Authority:      "a",
		StartTime:      testEpoch.Unix(),
		EndTime:        testEpoch.Add(time.Hour).Unix(),
		CandidateNames: []string{name},
		CandidateCount: 1,
	})
	if !errors.Is(err, domainerrors.ErrCandidateNameTooLong) {
		t.Fatalf("expected name too long, got %v", err)
	}
}

func TestInitializeElectionNameAtLimitAccepted(t *testing.T) {
	f := newFixture()
	f.openElection(t, "election-limit", strings.Repeat("n", entities.DefaultMaxCandidateNameBytes))
}

func TestInitializeElectionCustomQuotaAndLimit(t *testing.T) {
	f := newFixture()
	f.ledger.Quota = entities.QuotaTable{{MinCandidates: 1, Votes: 1}, {MinCandidates: 3, Votes: 2}}
	f.ledger.MaxCandidateNameBytes = 3
	election := f.openElection(t, "custom", "Ann", "Bo", "Cy")
	if election.VotesPerVoter != 2 {
		t.Fatalf("expected custom quota 2, got %d", election.VotesPerVoter)
	}
	_, err := f.ledger.InitializeElection(context.Background(), InitializeElectionCommand{
		Authority:      "a",
		StartTime:      testEpoch.Unix(),
		EndTime:        testEpoch.Add(time.Hour).Unix(),
		CandidateNames: []string{"Anna"},
		CandidateCount: 1,
	})
	if !errors.Is(err, domainerrors.ErrCandidateNameTooLong) {
		t.Fatalf("expected custom name limit, got %v", err)
	}
}

func TestInitializeElectionDuplicateID(t *testing.T) {
	f := newFixture()
	f.openElection(t, "election-dup", "A", "B")
	_, err := f.ledger.InitializeElection(context.Background(), InitializeElectionCommand{
		ElectionID:     "election-dup",
		Authority:      "someone-else",
		StartTime:      testEpoch.Unix(),
		EndTime:        testEpoch.Add(time.Hour).Unix(),
		CandidateNames: []string{"X"},
		CandidateCount: 1,
	})
	if !errors.Is(err, domainerrors.ErrElectionAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	stored, err := f.store.GetElection(context.Background(), "election-dup")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if stored.Authority != "authority-1" || len(stored.Candidates) != 2 {
		t.Fatalf("expected original election untouched, got %+v", stored)
	}
}

func TestInitializeElectionOutboxConflictStoresNothing(t *testing.T) {
	f := newFixture()
	f.occupyEventID(t, "evt-taken")
	f.ledger.IDGen = fixedID("evt-taken")
	_, err := f.ledger.InitializeElection(context.Background(), InitializeElectionCommand{
		ElectionID:     "election-1",
		Authority:      "authority-1",
		StartTime:      testEpoch.Unix(),
		EndTime:        testEpoch.Add(time.Hour).Unix(),
		CandidateNames: []string{"A", "B"},
		CandidateCount: 2,
	})
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected outbox conflict, got %v", err)
	}
	if _, err := f.store.GetElection(context.Background(), "election-1"); !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected no election stored, got %v", err)
	}
	if f.metrics.created != 0 || f.store.PendingOutboxCount() != 1 {
		t.Fatalf("expected no created metric and no new outbox row")
	}
}
