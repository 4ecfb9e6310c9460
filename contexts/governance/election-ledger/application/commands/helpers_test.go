package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"d21ledger/contexts/governance/election-ledger/adapters/memory"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	"d21ledger/contexts/governance/election-ledger/ports"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now.UTC()}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

type recordingMetrics struct {
	mu        sync.Mutex
	created   int
	accepted  int
	rejected  map[string]int
	finalized int
}

func (m *recordingMetrics) ElectionCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created++
}

func (m *recordingMetrics) VotesAccepted(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted += count
}

func (m *recordingMetrics) BallotRejected(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejected == nil {
		m.rejected = map[string]int{}
	}
	m.rejected[code]++
}

func (m *recordingMetrics) ElectionFinalized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finalized++
}

// fixedID hands out the same id on every call.
type fixedID string

func (id fixedID) NewID(context.Context) (string, error) {
	return string(id), nil
}

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *memory.Store
	clock   *manualClock
	metrics *recordingMetrics
	ledger  LedgerUseCase
}

func newFixture() fixture {
	store := memory.NewStore(nil)
	clock := newManualClock(testEpoch)
	metrics := &recordingMetrics{}
	return fixture{
		store:   store,
		clock:   clock,
		metrics: metrics,
		ledger: LedgerUseCase{
			Elections: store,
			Clock:     clock,
			IDGen:     store,
			Metrics:   metrics,
		},
	}
}

// openElection creates an election whose window started a minute ago and
// closes in an hour.
func (f fixture) openElection(t *testing.T, electionID string, names ...string) entities.Election {
	t.Helper()
	election, err := f.ledger.InitializeElection(context.Background(), InitializeElectionCommand{
		ElectionID:     electionID,
		Authority:      "authority-1",
		StartTime:      testEpoch.Add(-time.Minute).Unix(),
		EndTime:        testEpoch.Add(time.Hour).Unix(),
		CandidateNames: names,
		CandidateCount: len(names),
	})
	if err != nil {
		t.Fatalf("initialize election failed: %v", err)
	}
	return election
}

func (f fixture) vote(electionID string, voterID string, indices ...int) (CastVoteResult, error) {
	return f.ledger.CastVote(context.Background(), CastVoteCommand{
		ElectionID:       electionID,
		VoterID:          voterID,
		CandidateIndices: indices,
	})
}

func (f fixture) afterClose() {
	f.clock.Set(testEpoch.Add(time.Hour))
}

// occupyEventID stores an unrelated outbox row under eventID, so the next
// event written with that id conflicts.
func (f fixture) occupyEventID(t *testing.T, eventID string) {
	t.Helper()
	if err := f.store.AppendOutbox(context.Background(), ports.EventEnvelope{
		EventID:      eventID,
		EventType:    "ledger.unrelated",
		PartitionKey: "elsewhere",
	}); err != nil {
		t.Fatalf("occupy event id failed: %v", err)
	}
}
