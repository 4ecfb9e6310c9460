package workers_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"d21ledger/contexts/governance/election-ledger/adapters/memory"
	"d21ledger/contexts/governance/election-ledger/application/commands"
	"d21ledger/contexts/governance/election-ledger/application/workers"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/ports"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type recordingPublisher struct {
	topics  []string
	events  []ports.EventEnvelope
	failOn  string
	failErr error
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.failOn != "" && topic == p.failOn {
		return p.failErr
	}
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

var workerEpoch = time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

func seedLedger(t *testing.T, store *memory.Store, clock ports.Clock, electionID string, end time.Time) commands.LedgerUseCase {
	t.Helper()
	ledger := commands.LedgerUseCase{
		Elections: store,
		Clock:     clock,
		IDGen:     store,
	}
	_, err := ledger.InitializeElection(context.Background(), commands.InitializeElectionCommand{
		ElectionID:     electionID,
		Authority:      "authority-1",
		StartTime:      end.Add(-time.Hour).Unix(),
		EndTime:        end.Unix(),
		CandidateNames: []string{"A", "B", "C"},
		CandidateCount: 3,
	})
	if err != nil {
		t.Fatalf("initialize election %s failed: %v", electionID, err)
	}
	return ledger
}

func TestOutboxRelayPublishesInOrderAndMarksRows(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{now: workerEpoch}
	ledger := seedLedger(t, store, clock, "election-1", workerEpoch.Add(time.Hour))
	if _, err := ledger.CastVote(context.Background(), commands.CastVoteCommand{
		ElectionID:       "election-1",
		VoterID:          "voter-1",
		CandidateIndices: []int{1},
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	publisher := &recordingPublisher{}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: clock, BatchSize: 10}
	published, err := relay.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("relay failed: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected 2 published events, got %d", published)
	}
	if publisher.topics[0] != commands.EventElectionInitialized || publisher.topics[1] != commands.EventVoteCast {
		t.Fatalf("unexpected topic order %v", publisher.topics)
	}
	if publisher.events[1].PartitionKey != "election-1" {
		t.Fatalf("expected election partition key, got %q", publisher.events[1].PartitionKey)
	}
	if store.PendingOutboxCount() != 0 {
		t.Fatalf("expected outbox drained")
	}

	published, err = relay.RunOnce(context.Background())
	if err != nil || published != 0 {
		t.Fatalf("expected idle second cycle, got %d %v", published, err)
	}
}

func TestOutboxRelayStopsOnPublishFailure(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{now: workerEpoch}
	ledger := seedLedger(t, store, clock, "election-1", workerEpoch.Add(time.Hour))
	if _, err := ledger.CastVote(context.Background(), commands.CastVoteCommand{
		ElectionID:       "election-1",
		VoterID:          "voter-1",
		CandidateIndices: []int{0},
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	broker := errors.New("broker down")
	publisher := &recordingPublisher{failOn: commands.EventVoteCast, failErr: broker}
	relay := workers.OutboxRelay{Outbox: store, Publisher: publisher, Clock: clock}
	published, err := relay.RunOnce(context.Background())
	if !errors.Is(err, broker) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if published != 1 || store.PendingOutboxCount() != 1 {
		t.Fatalf("expected only the first row relayed, published=%d pending=%d", published, store.PendingOutboxCount())
	}

	publisher.failOn = ""
	published, err = relay.RunOnce(context.Background())
	if err != nil || published != 1 {
		t.Fatalf("expected retry to relay remaining row, got %d %v", published, err)
	}
}

func TestTallySweeperFinalizesEndedElections(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{now: workerEpoch.Add(-30 * time.Minute)}
	ledger := seedLedger(t, store, clock, "ended", workerEpoch)
	seedLedger(t, store, clock, "open", workerEpoch.Add(time.Hour))
	if _, err := ledger.CastVote(context.Background(), commands.CastVoteCommand{
		ElectionID:       "ended",
		VoterID:          "voter-1",
		CandidateIndices: []int{2},
	}); err != nil {
		t.Fatalf("cast vote failed: %v", err)
	}

	closed := fixedClock{now: workerEpoch}
	ledger.Clock = closed
	sweeper := workers.TallySweeper{Elections: store, Tally: ledger, Clock: closed}
	finalized, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if finalized != 1 {
		t.Fatalf("expected one finalized election, got %d", finalized)
	}
	ended, err := store.GetElection(context.Background(), "ended")
	if err != nil {
		t.Fatalf("load ended election failed: %v", err)
	}
	if !ended.IsFinalized || ended.WinnerIndex != 2 {
		t.Fatalf("expected ended election finalized with winner 2, got %+v", ended)
	}
	open, _ := store.GetElection(context.Background(), "open")
	if open.IsFinalized {
		t.Fatalf("expected open election untouched")
	}

	finalized, err = sweeper.RunOnce(context.Background())
	if err != nil || finalized != 0 {
		t.Fatalf("expected nothing left to sweep, got %d %v", finalized, err)
	}
}

type finalizedTallier struct {
	calls int
}

func (f *finalizedTallier) TallyResults(context.Context, commands.TallyResultsCommand) (commands.TallyResult, error) {
	f.calls++
	return commands.TallyResult{}, domainerrors.ErrElectionAlreadyFinalized
}

func TestTallySweeperSkipsElectionsFinalizedElsewhere(t *testing.T) {
	store := memory.NewStore(nil)
	clock := fixedClock{now: workerEpoch}
	seedLedger(t, store, clock, "ended-1", workerEpoch)
	seedLedger(t, store, clock, "ended-2", workerEpoch)

	tallier := &finalizedTallier{}
	sweeper := workers.TallySweeper{Elections: store, Tally: tallier, Clock: clock, CallerID: "sweeper-1"}
	finalized, err := sweeper.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("expected already-finalized to be skipped, got %v", err)
	}
	if finalized != 0 || tallier.calls != 2 {
		t.Fatalf("expected both elections attempted and none counted, got %d/%d", finalized, tallier.calls)
	}
}
