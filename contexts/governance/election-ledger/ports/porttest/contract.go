// Package porttest holds the behavior every ledger storage adapter must share.
// Adapter packages run it from their own tests against a fresh store.
package porttest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/domain/services"
	"d21ledger/contexts/governance/election-ledger/ports"
)

// Store is the full persistence surface of one adapter.
type Store interface {
	ports.ElectionRepository
	ports.OutboxWriter
	ports.OutboxRepository
}

var epoch = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

// NewElection builds an unfinalized election over names with the default
// quota, created at epoch plus offset.
func NewElection(electionID string, offset time.Duration, names ...string) entities.Election {
	candidates := make([]entities.Candidate, 0, len(names))
	for _, name := range names {
		candidates = append(candidates, entities.Candidate{Name: name})
	}
	createdAt := epoch.Add(offset)
	return entities.Election{
		ElectionID:    electionID,
		Authority:     "authority-1",
		StartTime:     createdAt.Unix(),
		EndTime:       createdAt.Add(time.Hour).Unix(),
		Candidates:    candidates,
		VotesPerVoter: entities.DefaultQuotaTable().VotesFor(len(names)),
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

// acceptAll counts every requested index, subject to the domain checks.
func acceptAll(indices ...int) ports.BallotFunc {
	return acceptWithEvent(nil, indices...)
}

// acceptWithEvent is acceptAll that also asks for event to be written.
func acceptWithEvent(event *ports.EventEnvelope, indices ...int) ports.BallotFunc {
	return func(election entities.Election, record entities.VoterRecord) (ports.BallotDecision, error) {
		if err := services.ValidateBallot(election, record, indices, election.StartTime); err != nil {
			return ports.BallotDecision{}, err
		}
		return ports.BallotDecision{Accepted: indices, Event: event}, nil
	}
}

func ledgerEvent(eventID string, eventType string, electionID string) *ports.EventEnvelope {
	return &ports.EventEnvelope{
		EventID:      eventID,
		EventType:    eventType,
		OccurredAt:   epoch,
		PartitionKey: electionID,
		Data:         []byte(`{"election_id":"` + electionID + `"}`),
	}
}

// Run exercises newStore against the shared adapter contract. newStore must
// return an empty store isolated from every other call.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		store := newStore(t)
		election := NewElection("election-1", 0, "Alice", "Bob", "Charlie")
		if err := store.CreateElection(ctx, election, nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		got, err := store.GetElection(ctx, "election-1")
		if err != nil {
			t.Fatalf("get election failed: %v", err)
		}
		if got.Authority != "authority-1" || got.StartTime != election.StartTime || got.EndTime != election.EndTime {
			t.Fatalf("unexpected election header %+v", got)
		}
		if len(got.Candidates) != 3 || got.Candidates[1].Name != "Bob" || got.Candidates[2].VoteCount != 0 {
			t.Fatalf("unexpected roster %+v", got.Candidates)
		}
		if got.VotesPerVoter != 2 || got.IsFinalized || got.FinalizedAt != nil {
			t.Fatalf("unexpected lifecycle fields %+v", got)
		}
		if !got.CreatedAt.Equal(election.CreatedAt) {
			t.Fatalf("expected created_at %s, got %s", election.CreatedAt, got.CreatedAt)
		}
	})

	t.Run("duplicate election id is rejected", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("dup", 0, "A", "B"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		err := store.CreateElection(ctx, NewElection("dup", time.Minute, "X"), nil)
		if !errors.Is(err, domainerrors.ErrElectionAlreadyExists) {
			t.Fatalf("expected already exists, got %v", err)
		}
		got, err := store.GetElection(ctx, "dup")
		if err != nil {
			t.Fatalf("get election failed: %v", err)
		}
		if len(got.Candidates) != 2 {
			t.Fatalf("expected original roster kept, got %+v", got.Candidates)
		}
	})

	t.Run("missing election", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.GetElection(ctx, "missing"); !errors.Is(err, domainerrors.ErrElectionNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
		_, err := store.CastBallot(ctx, "missing", "voter-1", acceptAll(0))
		if !errors.Is(err, domainerrors.ErrElectionNotFound) {
			t.Fatalf("expected not found on ballot, got %v", err)
		}
		_, err = store.TallyElection(ctx, "missing", epoch, func(entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{Commit: true}, nil
		})
		if !errors.Is(err, domainerrors.ErrElectionNotFound) {
			t.Fatalf("expected not found on tally, got %v", err)
		}
	})

	t.Run("list orders by creation", func(t *testing.T) {
		store := newStore(t)
		for _, election := range []entities.Election{
			NewElection("b", 2*time.Minute, "A"),
			NewElection("a", time.Minute, "A"),
			NewElection("c", 2*time.Minute, "A"),
		} {
			if err := store.CreateElection(ctx, election, nil); err != nil {
				t.Fatalf("create election failed: %v", err)
			}
		}
		items, err := store.ListElections(ctx)
		if err != nil {
			t.Fatalf("list elections failed: %v", err)
		}
		if len(items) != 3 || items[0].ElectionID != "a" || items[1].ElectionID != "b" || items[2].ElectionID != "c" {
			t.Fatalf("unexpected order %+v", items)
		}
	})

	t.Run("ballot updates counts and record atomically", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B", "C"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		if _, found, err := store.GetVoterRecord(ctx, "e", "voter-1"); err != nil || found {
			t.Fatalf("expected no record before voting, found=%v err=%v", found, err)
		}

		receipt, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(2))
		if err != nil {
			t.Fatalf("first ballot failed: %v", err)
		}
		if receipt.Election.Candidates[2].VoteCount != 1 || receipt.Record.VotesCastCount != 1 {
			t.Fatalf("unexpected receipt %+v", receipt)
		}
		if receipt.Record.RecordID != entities.VoterRecordID("voter-1", "e") {
			t.Fatalf("expected derived record id, got %q", receipt.Record.RecordID)
		}

		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(2)); !errors.Is(err, domainerrors.ErrAlreadyVotedForCandidate) {
			t.Fatalf("expected already voted, got %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(0)); err != nil {
			t.Fatalf("second ballot failed: %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(1)); !errors.Is(err, domainerrors.ErrVotesExhausted) {
			t.Fatalf("expected votes exhausted, got %v", err)
		}

		record, found, err := store.GetVoterRecord(ctx, "e", "voter-1")
		if err != nil || !found {
			t.Fatalf("expected stored record, found=%v err=%v", found, err)
		}
		if record.VotesCastCount != 2 || len(record.VotedCandidates) != 2 || record.VotedCandidates[0] != 2 || record.VotedCandidates[1] != 0 {
			t.Fatalf("unexpected record %+v", record)
		}
		election, err := store.GetElection(ctx, "e")
		if err != nil {
			t.Fatalf("get election failed: %v", err)
		}
		if election.Candidates[0].VoteCount != 1 || election.Candidates[1].VoteCount != 0 || election.Candidates[2].VoteCount != 1 {
			t.Fatalf("unexpected counts %+v", election.Candidates)
		}
	})

	t.Run("rejected first ballot leaves nothing behind", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B", "C"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(1, 1)); !errors.Is(err, domainerrors.ErrDuplicateVoteInSingleTx) {
			t.Fatalf("expected duplicate in request, got %v", err)
		}
		if _, found, err := store.GetVoterRecord(ctx, "e", "voter-1"); err != nil || found {
			t.Fatalf("expected no record after rejection, found=%v err=%v", found, err)
		}
		election, _ := store.GetElection(ctx, "e")
		if election.TotalVotes() != 0 {
			t.Fatalf("expected no counted votes, got %+v", election.Candidates)
		}
	})

	t.Run("tally commits once", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptAll(1)); err != nil {
			t.Fatalf("ballot failed: %v", err)
		}

		veto := errors.New("not yet")
		if _, err := store.TallyElection(ctx, "e", epoch, func(entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{}, veto
		}); !errors.Is(err, veto) {
			t.Fatalf("expected decide error returned, got %v", err)
		}

		finalizedAt := epoch.Add(2 * time.Hour)
		election, err := store.TallyElection(ctx, "e", finalizedAt, func(election entities.Election) (ports.TallyDecision, error) {
			if election.IsFinalized {
				return ports.TallyDecision{}, fmt.Errorf("expected unfinalized election")
			}
			return ports.TallyDecision{WinnerIndex: services.SelectWinner(election.Candidates), Commit: true}, nil
		})
		if err != nil {
			t.Fatalf("tally failed: %v", err)
		}
		if !election.IsFinalized || election.WinnerIndex != 1 || election.FinalizedAt == nil || !election.FinalizedAt.Equal(finalizedAt) {
			t.Fatalf("unexpected finalized election %+v", election)
		}

		replay, err := store.TallyElection(ctx, "e", finalizedAt.Add(time.Hour), func(election entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{WinnerIndex: election.WinnerIndex}, nil
		})
		if err != nil {
			t.Fatalf("replay tally failed: %v", err)
		}
		if !replay.IsFinalized || replay.WinnerIndex != 1 || !replay.FinalizedAt.Equal(finalizedAt) {
			t.Fatalf("expected stored result on replay, got %+v", replay)
		}
		stored, _ := store.GetElection(ctx, "e")
		if !stored.IsFinalized || stored.WinnerIndex != 1 {
			t.Fatalf("expected finalization persisted, got %+v", stored)
		}
	})

	t.Run("pending tally excludes open and finalized", func(t *testing.T) {
		store := newStore(t)
		ended := NewElection("ended", 0, "A")
		open := NewElection("open", 0, "A")
		open.EndTime = epoch.Add(3 * time.Hour).Unix()
		done := NewElection("done", 0, "A")
		for _, election := range []entities.Election{ended, open, done} {
			if err := store.CreateElection(ctx, election, nil); err != nil {
				t.Fatalf("create election failed: %v", err)
			}
		}
		if _, err := store.TallyElection(ctx, "done", epoch, func(entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{Commit: true}, nil
		}); err != nil {
			t.Fatalf("tally failed: %v", err)
		}

		items, err := store.ListElectionsPendingTally(ctx, ended.EndTime, 10)
		if err != nil {
			t.Fatalf("list pending failed: %v", err)
		}
		if len(items) != 1 || items[0].ElectionID != "ended" {
			t.Fatalf("expected only the ended election, got %+v", items)
		}
	})

	t.Run("concurrent ballots conserve counts", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B", "C", "D", "E", "F", "G"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		const voters = 12
		var wg sync.WaitGroup
		for i := 0; i < voters; i++ {
			for attempt := 0; attempt < 4; attempt++ {
				wg.Add(1)
				go func(i, attempt int) {
					defer wg.Done()
					_, _ = store.CastBallot(ctx, "e", fmt.Sprintf("voter-%d", i), acceptAll((i+attempt)%7))
				}(i, attempt)
			}
		}
		wg.Wait()

		election, err := store.GetElection(ctx, "e")
		if err != nil {
			t.Fatalf("get election failed: %v", err)
		}
		var recorded uint64
		for i := 0; i < voters; i++ {
			record, found, err := store.GetVoterRecord(ctx, "e", fmt.Sprintf("voter-%d", i))
			if err != nil || !found {
				t.Fatalf("expected record for voter %d, err=%v", i, err)
			}
			if record.VotesCastCount != 3 || len(record.VotedCandidates) != 3 {
				t.Fatalf("expected voter %d capped at quota, got %+v", i, record)
			}
			recorded += uint64(record.VotesCastCount)
		}
		if election.TotalVotes() != recorded {
			t.Fatalf("counts %d do not match records %d", election.TotalVotes(), recorded)
		}
	})

	t.Run("writes carry their outbox event", func(t *testing.T) {
		store := newStore(t)
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B"), ledgerEvent("evt-created", "election.initialized", "e")); err != nil {
			t.Fatalf("create election failed: %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptWithEvent(ledgerEvent("evt-vote", "vote.cast", "e"), 1)); err != nil {
			t.Fatalf("ballot failed: %v", err)
		}
		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptWithEvent(ledgerEvent("evt-rejected", "vote.cast", "e"), 1)); !errors.Is(err, domainerrors.ErrAlreadyVotedForCandidate) {
			t.Fatalf("expected already voted, got %v", err)
		}
		if _, err := store.TallyElection(ctx, "e", epoch, func(election entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{
				WinnerIndex: services.SelectWinner(election.Candidates),
				Commit:      true,
				Event:       ledgerEvent("evt-final", "election.finalized", "e"),
			}, nil
		}); err != nil {
			t.Fatalf("tally failed: %v", err)
		}
		if _, err := store.TallyElection(ctx, "e", epoch, func(election entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{
				WinnerIndex: election.WinnerIndex,
				Event:       ledgerEvent("evt-replay", "election.finalized", "e"),
			}, nil
		}); err != nil {
			t.Fatalf("replay tally failed: %v", err)
		}

		pending, err := store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("list outbox failed: %v", err)
		}
		want := []string{"evt-created", "evt-vote", "evt-final"}
		if len(pending) != len(want) {
			t.Fatalf("expected %v, got %+v", want, pending)
		}
		for i, id := range want {
			if pending[i].OutboxID != id {
				t.Fatalf("expected %v, got %+v", want, pending)
			}
		}
	})

	t.Run("conflicting outbox event rolls the write back", func(t *testing.T) {
		store := newStore(t)
		if err := store.AppendOutbox(ctx, *ledgerEvent("evt-taken", "ledger.unrelated", "elsewhere")); err != nil {
			t.Fatalf("append outbox failed: %v", err)
		}
		taken := ledgerEvent("evt-taken", "vote.cast", "e")

		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B"), taken); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected conflict on create, got %v", err)
		}
		if _, err := store.GetElection(ctx, "e"); !errors.Is(err, domainerrors.ErrElectionNotFound) {
			t.Fatalf("expected no election after conflict, got %v", err)
		}
		if err := store.CreateElection(ctx, NewElection("e", 0, "A", "B"), nil); err != nil {
			t.Fatalf("create election failed: %v", err)
		}

		if _, err := store.CastBallot(ctx, "e", "voter-1", acceptWithEvent(taken, 0)); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected conflict on ballot, got %v", err)
		}
		if _, found, err := store.GetVoterRecord(ctx, "e", "voter-1"); err != nil || found {
			t.Fatalf("expected no record after conflict, found=%v err=%v", found, err)
		}
		election, _ := store.GetElection(ctx, "e")
		if election.TotalVotes() != 0 {
			t.Fatalf("expected no counted votes, got %+v", election.Candidates)
		}

		if _, err := store.TallyElection(ctx, "e", epoch, func(entities.Election) (ports.TallyDecision, error) {
			return ports.TallyDecision{Commit: true, Event: taken}, nil
		}); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected conflict on tally, got %v", err)
		}
		election, _ = store.GetElection(ctx, "e")
		if election.IsFinalized || election.FinalizedAt != nil {
			t.Fatalf("expected election left unfinalized, got %+v", election)
		}

		pending, err := store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("list outbox failed: %v", err)
		}
		if len(pending) != 1 || pending[0].OutboxID != "evt-taken" {
			t.Fatalf("expected only the unrelated row, got %+v", pending)
		}
	})

	t.Run("outbox relays in order", func(t *testing.T) {
		store := newStore(t)
		for i, eventType := range []string{"election.initialized", "vote.cast", "election.finalized"} {
			if err := store.AppendOutbox(ctx, ports.EventEnvelope{
				EventID:      fmt.Sprintf("evt-%d", i+1),
				EventType:    eventType,
				OccurredAt:   epoch.Add(time.Duration(i) * time.Second),
				PartitionKey: "e",
				Data:         []byte(`{"election_id":"e"}`),
			}); err != nil {
				t.Fatalf("append outbox failed: %v", err)
			}
		}
		duplicate := ports.EventEnvelope{
			EventID:      "evt-1",
			EventType:    "election.initialized",
			OccurredAt:   epoch,
			PartitionKey: "e",
			Data:         []byte(`{"election_id":"e"}`),
		}
		if err := store.AppendOutbox(ctx, duplicate); err != nil {
			t.Fatalf("expected identical re-append to be a no-op, got %v", err)
		}
		duplicate.PartitionKey = "other"
		if err := store.AppendOutbox(ctx, duplicate); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected conflict for divergent payload, got %v", err)
		}

		pending, err := store.ListPendingOutbox(ctx, 2)
		if err != nil {
			t.Fatalf("list outbox failed: %v", err)
		}
		if len(pending) != 2 || pending[0].OutboxID != "evt-1" || pending[1].OutboxID != "evt-2" {
			t.Fatalf("unexpected pending batch %+v", pending)
		}
		if pending[1].EventType != "vote.cast" || pending[1].PartitionKey != "e" {
			t.Fatalf("unexpected row metadata %+v", pending[1])
		}
		if err := store.MarkOutboxPublished(ctx, "evt-1", epoch); err != nil {
			t.Fatalf("mark published failed: %v", err)
		}
		if err := store.MarkOutboxPublished(ctx, "evt-404", epoch); !errors.Is(err, domainerrors.ErrConflict) {
			t.Fatalf("expected conflict for unknown row, got %v", err)
		}
		pending, err = store.ListPendingOutbox(ctx, 10)
		if err != nil {
			t.Fatalf("list outbox failed: %v", err)
		}
		if len(pending) != 2 || pending[0].OutboxID != "evt-2" || pending[1].OutboxID != "evt-3" {
			t.Fatalf("expected remaining rows in order, got %+v", pending)
		}
	})
}
