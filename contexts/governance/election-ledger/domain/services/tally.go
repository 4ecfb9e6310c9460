package services

import (
	"sort"

	"d21ledger/contexts/governance/election-ledger/domain/entities"
)

// SelectWinner returns the index of the candidate with the most votes. Ties,
// including an election with no votes at all, go to the lowest index.
func SelectWinner(candidates []entities.Candidate) int {
	winner := 0
	var best uint64
	for index, candidate := range candidates {
		if candidate.VoteCount > best {
			best = candidate.VoteCount
			winner = index
		}
	}
	return winner
}

type Standing struct {
	Index     int
	Name      string
	VoteCount uint64
}

// RankCandidates orders candidates by votes descending, then by index.
func RankCandidates(candidates []entities.Candidate) []Standing {
	items := make([]Standing, 0, len(candidates))
	for index, candidate := range candidates {
		items = append(items, Standing{
			Index:     index,
			Name:      candidate.Name,
			VoteCount: candidate.VoteCount,
		})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].VoteCount != items[j].VoteCount {
			return items[i].VoteCount > items[j].VoteCount
		}
		return items[i].Index < items[j].Index
	})
	return items
}
