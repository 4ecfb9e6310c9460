package entities

import "time"

const (
	// MaxCandidates bounds the roster size of a single election.
	MaxCandidates = 255
	// DefaultMaxCandidateNameBytes is the stored-name limit, in bytes.
	DefaultMaxCandidateNameBytes = 50
)

type Candidate struct {
	Name      string
	VoteCount uint64
}

type Election struct {
	ElectionID    string
	Authority     string
	StartTime     int64
	EndTime       int64
	Candidates    []Candidate
	VotesPerVoter int
	IsFinalized   bool
	WinnerIndex   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	FinalizedAt   *time.Time
}

// Clone returns a copy that shares no candidate storage with e.
func (e Election) Clone() Election {
	out := e
	out.Candidates = append([]Candidate(nil), e.Candidates...)
	if e.FinalizedAt != nil {
		finalizedAt := *e.FinalizedAt
		out.FinalizedAt = &finalizedAt
	}
	return out
}

func (e Election) CandidateCount() int {
	return len(e.Candidates)
}

func (e Election) TotalVotes() uint64 {
	var total uint64
	for _, candidate := range e.Candidates {
		total += candidate.VoteCount
	}
	return total
}

// Winner returns the finalized winner. ok is false until the election has
// been tallied.
func (e Election) Winner() (Candidate, bool) {
	if !e.IsFinalized || e.WinnerIndex < 0 || e.WinnerIndex >= len(e.Candidates) {
		return Candidate{}, false
	}
	return e.Candidates[e.WinnerIndex], true
}

type WindowState string

const (
	WindowNotStarted WindowState = "not_started"
	WindowActive     WindowState = "active"
	WindowEnded      WindowState = "ended"
)

// Classify places now (unix seconds) relative to the voting window. The start
// bound is inclusive and the end bound exclusive.
func Classify(election Election, now int64) WindowState {
	switch {
	case now < election.StartTime:
		return WindowNotStarted
	case now < election.EndTime:
		return WindowActive
	default:
		return WindowEnded
	}
}
