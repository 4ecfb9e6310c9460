package commands

import (
	"context"
	"strings"

	application "d21ledger/contexts/governance/election-ledger/application"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/domain/services"
	"d21ledger/contexts/governance/election-ledger/ports"
)

// CastVoteCommand submits one ballot of candidate indices for VoterID.
type CastVoteCommand struct {
	ElectionID       string
	VoterID          string
	CandidateIndices []int
}

type CastVoteResult struct {
	Election entities.Election
	Record   entities.VoterRecord
	Accepted []int
}

// CastVote runs the ballot pipeline and, when every check passes, counts the
// whole ballot. A rejected ballot changes nothing.
func (uc LedgerUseCase) CastVote(ctx context.Context, cmd CastVoteCommand) (CastVoteResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	voterID := strings.TrimSpace(cmd.VoterID)
	logger.Info("ballot processing started",
		"event", "election_ballot_started",
		"module", moduleName,
		"layer", "application",
		"election_id", electionID,
		"voter_id", voterID,
		"candidate_indices", cmd.CandidateIndices,
	)
	if electionID == "" || voterID == "" {
		uc.metrics().BallotRejected(domainerrors.CodeInvalidVoteInput)
		return CastVoteResult{}, domainerrors.ErrInvalidVoteInput
	}

	now := uc.now()
	indices := append([]int(nil), cmd.CandidateIndices...)
	eventID, err := uc.newID(ctx)
	if err != nil {
		return CastVoteResult{}, err
	}
	receipt, err := uc.Elections.CastBallot(ctx, electionID, voterID,
		func(election entities.Election, record entities.VoterRecord) (ports.BallotDecision, error) {
			if err := services.ValidateBallot(election, record, indices, now.Unix()); err != nil {
				return ports.BallotDecision{}, err
			}
			event, err := newLedgerEnvelope(eventID, EventVoteCast, electionID, now, map[string]any{
				"election_id":          electionID,
				"voter_id":             voterID,
				"voter_record_id":      record.RecordID,
				"candidates_voted_for": indices,
				"votes_cast_count":     record.VotesCastCount + len(indices),
				"timestamp":            now.Unix(),
			})
			if err != nil {
				return ports.BallotDecision{}, err
			}
			return ports.BallotDecision{Accepted: indices, Event: &event}, nil
		},
	)
	if err != nil {
		code := domainerrors.Code(err)
		if code == domainerrors.CodeInternal {
			logger.Error("ballot processing failed",
				"event", "election_ballot_failed",
				"module", moduleName,
				"layer", "application",
				"election_id", electionID,
				"voter_id", voterID,
				"error", err.Error(),
			)
			return CastVoteResult{}, err
		}
		uc.metrics().BallotRejected(code)
		logger.Warn("ballot rejected",
			"event", "election_ballot_rejected",
			"module", moduleName,
			"layer", "application",
			"election_id", electionID,
			"voter_id", voterID,
			"code", code,
		)
		return CastVoteResult{}, err
	}

	uc.metrics().VotesAccepted(len(receipt.Accepted))

	logger.Info("ballot accepted",
		"event", "election_ballot_accepted",
		"module", moduleName,
		"layer", "application",
		"election_id", electionID,
		"voter_id", voterID,
		"votes_cast_count", receipt.Record.VotesCastCount,
	)
	return CastVoteResult{
		Election: receipt.Election,
		Record:   receipt.Record,
		Accepted: receipt.Accepted,
	}, nil
}
