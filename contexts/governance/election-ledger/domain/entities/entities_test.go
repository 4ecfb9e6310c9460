package entities

import "testing"

func TestClassifyWindowBoundaries(t *testing.T) {
	election := Election{StartTime: 1000, EndTime: 2000}
	cases := []struct {
		now  int64
		want WindowState
	}{
		{now: 999, want: WindowNotStarted},
		{now: 1000, want: WindowActive},
		{now: 1999, want: WindowActive},
		{now: 2000, want: WindowEnded},
		{now: 5000, want: WindowEnded},
	}
	for _, tc := range cases {
		if got := Classify(election, tc.now); got != tc.want {
			t.Fatalf("Classify(now=%d) = %s, want %s", tc.now, got, tc.want)
		}
	}
}

func TestDefaultQuotaFixedPoints(t *testing.T) {
	table := DefaultQuotaTable()
	if got := table.VotesFor(3); got != 2 {
		t.Fatalf("expected 2 votes for 3 candidates, got %d", got)
	}
	if got := table.VotesFor(7); got != 3 {
		t.Fatalf("expected 3 votes for 7 candidates, got %d", got)
	}
	if got := table.VotesFor(6); got != 2 {
		t.Fatalf("expected 2 votes for 6 candidates, got %d", got)
	}
	if got := table.VotesFor(MaxCandidates); got != 3 {
		t.Fatalf("expected 3 votes for %d candidates, got %d", MaxCandidates, got)
	}
}

func TestDefaultQuotaIsMonotone(t *testing.T) {
	table := DefaultQuotaTable()
	if err := table.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}
	prev := 0
	for n := 1; n <= MaxCandidates; n++ {
		votes := table.VotesFor(n)
		if votes < 1 {
			t.Fatalf("expected a positive quota for %d candidates", n)
		}
		if votes < prev {
			t.Fatalf("quota decreased at %d candidates: %d -> %d", n, prev, votes)
		}
		prev = votes
	}
}

func TestQuotaTableValidateRejectsBadBrackets(t *testing.T) {
	cases := map[string]QuotaTable{
		"empty":      {},
		"no base":    {{MinCandidates: 2, Votes: 2}},
		"zero votes": {{MinCandidates: 1, Votes: 0}},
		"decreasing": {{MinCandidates: 1, Votes: 3}, {MinCandidates: 5, Votes: 2}},
		"duplicate":  {{MinCandidates: 1, Votes: 2}, {MinCandidates: 1, Votes: 3}},
	}
	for name, table := range cases {
		if err := table.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestQuotaTableUnsortedInput(t *testing.T) {
	table := QuotaTable{{MinCandidates: 10, Votes: 4}, {MinCandidates: 1, Votes: 1}}
	if err := table.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := table.VotesFor(12); got != 4 {
		t.Fatalf("expected 4 votes, got %d", got)
	}
	if got := table.VotesFor(9); got != 1 {
		t.Fatalf("expected 1 vote, got %d", got)
	}
}

func TestVoterRecordIDDeterministic(t *testing.T) {
	first := VoterRecordID("voter-1", "election-1")
	second := VoterRecordID("voter-1", "election-1")
	if first != second {
		t.Fatalf("expected identical ids, got %s and %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 32-byte hex id, got %q", first)
	}
	if first == VoterRecordID("voter-2", "election-1") {
		t.Fatalf("expected distinct ids for distinct voters")
	}
	if first == VoterRecordID("voter-1", "election-2") {
		t.Fatalf("expected distinct ids for distinct elections")
	}
	if VoterRecordID("ab", "c") == VoterRecordID("a", "bc") {
		t.Fatalf("expected length prefixing to separate concatenation collisions")
	}
}

func TestElectionCloneIsolation(t *testing.T) {
	election := Election{Candidates: []Candidate{{Name: "A"}, {Name: "B"}}}
	clone := election.Clone()
	clone.Candidates[0].VoteCount = 9
	if election.Candidates[0].VoteCount != 0 {
		t.Fatalf("expected clone to be isolated from source")
	}
}

func TestWinnerRequiresFinalization(t *testing.T) {
	election := Election{Candidates: []Candidate{{Name: "A", VoteCount: 1}}}
	if _, ok := election.Winner(); ok {
		t.Fatalf("expected no winner before finalization")
	}
	election.IsFinalized = true
	winner, ok := election.Winner()
	if !ok || winner.Name != "A" {
		t.Fatalf("expected winner A, got %+v ok=%v", winner, ok)
	}
}
