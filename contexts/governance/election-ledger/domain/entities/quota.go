package entities

import (
	"errors"
	"fmt"
	"sort"
)

// QuotaBracket grants Votes to every election with at least MinCandidates.
type QuotaBracket struct {
	MinCandidates int `yaml:"min_candidates" json:"min_candidates"`
	Votes         int `yaml:"votes" json:"votes"`
}

// QuotaTable maps roster size to the per-voter vote quota. The bracket with
// the largest MinCandidates not above N applies.
type QuotaTable []QuotaBracket

// DefaultQuotaTable grants 2 votes below 7 candidates and 3 from 7 upward.
func DefaultQuotaTable() QuotaTable {
	return QuotaTable{
		{MinCandidates: 1, Votes: 2},
		{MinCandidates: 7, Votes: 3},
	}
}

func (t QuotaTable) VotesFor(candidateCount int) int {
	votes := 0
	for _, bracket := range t.sorted() {
		if candidateCount >= bracket.MinCandidates {
			votes = bracket.Votes
		}
	}
	return votes
}

// Validate requires a bracket starting at one candidate, strictly increasing
// thresholds and a non-decreasing positive quota.
func (t QuotaTable) Validate() error {
	if len(t) == 0 {
		return errors.New("quota table is empty")
	}
	brackets := t.sorted()
	if brackets[0].MinCandidates != 1 {
		return fmt.Errorf("quota table must start at 1 candidate, got %d", brackets[0].MinCandidates)
	}
	for i, bracket := range brackets {
		if bracket.Votes < 1 {
			return fmt.Errorf("quota bracket %d grants %d votes", bracket.MinCandidates, bracket.Votes)
		}
		if i == 0 {
			continue
		}
		prev := brackets[i-1]
		if bracket.MinCandidates == prev.MinCandidates {
			return fmt.Errorf("quota bracket %d is defined twice", bracket.MinCandidates)
		}
		if bracket.Votes < prev.Votes {
			return fmt.Errorf("quota bracket %d lowers the quota from %d to %d", bracket.MinCandidates, prev.Votes, bracket.Votes)
		}
	}
	return nil
}

func (t QuotaTable) sorted() QuotaTable {
	out := append(QuotaTable(nil), t...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].MinCandidates < out[j].MinCandidates
	})
	return out
}
