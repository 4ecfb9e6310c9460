package badgeradapter

import (
	"context"
	"testing"
	"time"

	"d21ledger/contexts/governance/election-ledger/ports/porttest"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	store, err := Open("", nil)
	if err != nil {
		t.Fatalf("open badger failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close badger failed: %v", err)
		}
	})
	return store
}

func TestStoreContract(t *testing.T) {
	porttest.Run(t, func(t *testing.T) porttest.Store {
		return openInMemory(t)
	})
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("open badger failed: %v", err)
	}
	if err := store.CreateElection(ctx, porttest.NewElection("durable", 0, "A", "B"), nil); err != nil {
		t.Fatalf("create election failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close badger failed: %v", err)
	}

	reopened, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen badger failed: %v", err)
	}
	defer reopened.Close()
	election, err := reopened.GetElection(ctx, "durable")
	if err != nil {
		t.Fatalf("expected election after reopen, got %v", err)
	}
	if len(election.Candidates) != 2 || election.Candidates[1].Name != "B" {
		t.Fatalf("unexpected roster after reopen %+v", election.Candidates)
	}
}

func TestElectionRecordCodecKeepsOptionalTimes(t *testing.T) {
	election := porttest.NewElection("codec", 0, "A")
	at := election.CreatedAt.Add(90 * time.Minute)
	election.IsFinalized = true
	election.FinalizedAt = &at

	encoded, err := encodeValue(electionRecordFromEntity(election))
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var row electionRecord
	if err := decodeValue(encoded, &row); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	decoded := row.toEntity()
	if decoded.FinalizedAt == nil || !decoded.FinalizedAt.Equal(at) {
		t.Fatalf("expected finalized_at %s, got %v", at, decoded.FinalizedAt)
	}
	if !decoded.CreatedAt.Equal(election.CreatedAt) {
		t.Fatalf("expected created_at %s, got %s", election.CreatedAt, decoded.CreatedAt)
	}
}
