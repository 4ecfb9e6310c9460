package services

import (
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
)

// ValidateBallot runs the ordered ballot checks for one request. The first
// failing check decides the error:
//  1. the voting window must be open
//  2. the request must be non-empty and every index in range
//  3. the request must not repeat an index
//  4. the voter must have enough quota left
//  5. no index may have been chosen by the voter before
//
// ValidateBallot is pure; callers apply the ballot only when it returns nil.
func ValidateBallot(election entities.Election, record entities.VoterRecord, indices []int, now int64) error {
	if err := checkWindow(election, now); err != nil {
		return err
	}
	if err := checkBounds(election, indices); err != nil {
		return err
	}
	if err := checkRequestDuplicates(indices); err != nil {
		return err
	}
	if record.VotesCastCount+len(indices) > election.VotesPerVoter {
		return domainerrors.ErrVotesExhausted
	}
	for _, index := range indices {
		if record.HasVotedFor(index) {
			return domainerrors.ErrAlreadyVotedForCandidate
		}
	}
	return nil
}

// ApplyBallot returns copies of election and record with the accepted ballot
// counted. indices must already have passed ValidateBallot.
func ApplyBallot(election entities.Election, record entities.VoterRecord, indices []int) (entities.Election, entities.VoterRecord) {
	nextElection := election.Clone()
	nextRecord := record.Clone()
	for _, index := range indices {
		nextElection.Candidates[index].VoteCount++
		nextRecord.VotedCandidates = append(nextRecord.VotedCandidates, index)
	}
	nextRecord.VotesCastCount += len(indices)
	return nextElection, nextRecord
}

func checkWindow(election entities.Election, now int64) error {
	if election.IsFinalized {
		return domainerrors.ErrElectionAlreadyEnded
	}
	switch entities.Classify(election, now) {
	case entities.WindowNotStarted:
		return domainerrors.ErrElectionNotStarted
	case entities.WindowEnded:
		return domainerrors.ErrElectionAlreadyEnded
	}
	return nil
}

func checkBounds(election entities.Election, indices []int) error {
	if len(indices) == 0 {
		return domainerrors.ErrInvalidCandidateIndex
	}
	count := election.CandidateCount()
	for _, index := range indices {
		if index < 0 || index >= count {
			return domainerrors.ErrInvalidCandidateIndex
		}
	}
	return nil
}

func checkRequestDuplicates(indices []int) error {
	seen := make(map[int]struct{}, len(indices))
	for _, index := range indices {
		if _, ok := seen[index]; ok {
			return domainerrors.ErrDuplicateVoteInSingleTx
		}
		seen[index] = struct{}{}
	}
	return nil
}
