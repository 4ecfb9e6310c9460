package commands

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
)

func TestTallyScenarioE(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "Alice", "Bob", "Charlie")
	for _, ballot := range []struct {
		voter   string
		indices []int
	}{
		{"v1", []int{0, 1}},
		{"v2", []int{0, 2}},
		{"v3", []int{0}},
	} {
		if _, err := f.vote("e", ballot.voter, ballot.indices...); err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}

	_, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e", CallerID: "anyone"})
	if !errors.Is(err, domainerrors.ErrTallyNotAllowedYet) {
		t.Fatalf("expected tally not allowed, got %v", err)
	}

	f.afterClose()
	result, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e", CallerID: "anyone"})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if !result.Election.IsFinalized || result.WinnerIndex != 0 {
		t.Fatalf("expected Alice finalized as winner, got %+v", result)
	}
	if result.WinnerName != "Alice" || result.WinnerVoteCount != 3 {
		t.Fatalf("unexpected winner detail %+v", result)
	}
	if result.Replayed {
		t.Fatalf("first tally must not be a replay")
	}
	if result.Election.FinalizedAt == nil {
		t.Fatalf("expected finalized_at set")
	}
	if f.metrics.finalized != 1 {
		t.Fatalf("expected finalized metric")
	}
}

func TestTallyTieGoesToLowestIndex(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "A", "B", "C")
	if _, err := f.vote("e", "v1", 1, 2); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	f.afterClose()
	result, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.WinnerIndex != 1 {
		t.Fatalf("expected tie broken to index 1, got %d", result.WinnerIndex)
	}
}

func TestTallyWithoutVotesPicksFirstCandidate(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "A", "B")
	f.afterClose()
	result, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	if result.WinnerIndex != 0 || result.WinnerVoteCount != 0 {
		t.Fatalf("expected index 0 with zero votes, got %+v", result)
	}
}

func TestTallyReplayPolicyReturnsStoredResult(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "A", "B")
	if _, err := f.vote("e", "v1", 1); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	f.afterClose()
	first, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if err != nil {
		t.Fatalf("first tally failed: %v", err)
	}
	second, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if err != nil {
		t.Fatalf("second tally failed: %v", err)
	}
	if !second.Replayed || second.WinnerIndex != first.WinnerIndex || second.WinnerName != "B" {
		t.Fatalf("expected replay of %+v, got %+v", first, second)
	}
	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	finalized := 0
	for _, row := range pending {
		if row.EventType == EventElectionFinalized {
			finalized++
		}
	}
	if finalized != 1 {
		t.Fatalf("expected exactly one finalized event, got %d", finalized)
	}
}

func TestTallyRejectPolicy(t *testing.T) {
	f := newFixture()
	f.ledger.RepeatTally = RepeatTallyReject
	f.openElection(t, "e", "A", "B")
	f.afterClose()
	if _, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"}); err != nil {
		t.Fatalf("first tally failed: %v", err)
	}
	_, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if !errors.Is(err, domainerrors.ErrElectionAlreadyFinalized) {
		t.Fatalf("expected already finalized, got %v", err)
	}
}

func TestTallyUnknownElection(t *testing.T) {
	f := newFixture()
	_, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "missing"})
	if !errors.Is(err, domainerrors.ErrElectionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTallyOutboxConflictLeavesElectionPending(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "A", "B")
	if _, err := f.vote("e", "v1", 1); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	f.afterClose()
	f.occupyEventID(t, "evt-taken")

	f.ledger.IDGen = fixedID("evt-taken")
	if _, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"}); !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected outbox conflict, got %v", err)
	}
	election, _ := f.store.GetElection(context.Background(), "e")
	if election.IsFinalized || election.FinalizedAt != nil {
		t.Fatalf("expected election left unfinalized, got %+v", election)
	}
	pendingTally, err := f.store.ListElectionsPendingTally(context.Background(), f.clock.Now().Unix(), 10)
	if err != nil {
		t.Fatalf("list pending tally failed: %v", err)
	}
	if len(pendingTally) != 1 || pendingTally[0].ElectionID != "e" {
		t.Fatalf("expected election still pending tally, got %+v", pendingTally)
	}
	if f.metrics.finalized != 0 {
		t.Fatalf("expected no finalized metric, got %d", f.metrics.finalized)
	}

	f.ledger.IDGen = f.store
	result, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e"})
	if err != nil {
		t.Fatalf("retry after conflict failed: %v", err)
	}
	if result.Replayed || result.WinnerIndex != 1 {
		t.Fatalf("expected a fresh finalization for B, got %+v", result)
	}
	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	finalized := 0
	for _, row := range pending {
		if row.EventType == EventElectionFinalized {
			finalized++
		}
	}
	if finalized != 1 {
		t.Fatalf("expected exactly one finalized event, got %d", finalized)
	}
}

func TestTallyFinalizedEventPayload(t *testing.T) {
	f := newFixture()
	f.openElection(t, "e", "A", "B")
	if _, err := f.vote("e", "v1", 1); err != nil {
		t.Fatalf("vote failed: %v", err)
	}
	f.afterClose()
	if _, err := f.ledger.TallyResults(context.Background(), TallyResultsCommand{ElectionID: "e", CallerID: "caller-9"}); err != nil {
		t.Fatalf("tally failed: %v", err)
	}
	pending, err := f.store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("list outbox failed: %v", err)
	}
	last := pending[len(pending)-1]
	if last.EventType != EventElectionFinalized {
		t.Fatalf("expected finalized event last, got %s", last.EventType)
	}
	var envelope struct {
		Data struct {
			WinnerIndex     int    `json:"winner_index"`
			WinnerName      string `json:"winner_name"`
			WinnerVoteCount uint64 `json:"winner_vote_count"`
			FinalizedBy     string `json:"finalized_by"`
		} `json:"data"`
	}
	if err := json.Unmarshal(last.Payload, &envelope); err != nil {
		t.Fatalf("decode payload failed: %v", err)
	}
	if envelope.Data.WinnerIndex != 1 || envelope.Data.WinnerName != "B" || envelope.Data.WinnerVoteCount != 1 {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if envelope.Data.FinalizedBy != "caller-9" {
		t.Fatalf("expected caller recorded, got %q", envelope.Data.FinalizedBy)
	}
}
