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

// TallyResultsCommand finalizes an ended election. Anyone may tally; CallerID
// is only recorded.
type TallyResultsCommand struct {
	ElectionID string
	CallerID   string
}

// TallyResult is the finalized outcome. Replayed is set when the election had
// already been finalized by an earlier tally.
type TallyResult struct {
	Election        entities.Election
	WinnerIndex     int
	WinnerName      string
	WinnerVoteCount uint64
	Replayed        bool
}

func (uc LedgerUseCase) TallyResults(ctx context.Context, cmd TallyResultsCommand) (TallyResult, error) {
	logger := application.ResolveLogger(uc.Logger)
	electionID := strings.TrimSpace(cmd.ElectionID)
	callerID := strings.TrimSpace(cmd.CallerID)
	logger.Info("tally started",
		"event", "election_tally_started",
		"module", moduleName,
		"layer", "application",
		"election_id", electionID,
		"caller_id", callerID,
	)
	if electionID == "" {
		return TallyResult{}, domainerrors.ErrElectionNotFound
	}

	now := uc.now()
	policy := uc.repeatTally()
	eventID, err := uc.newID(ctx)
	if err != nil {
		return TallyResult{}, err
	}
	replayed := false
	election, err := uc.Elections.TallyElection(ctx, electionID, now,
		func(election entities.Election) (ports.TallyDecision, error) {
			replayed = false
			if entities.Classify(election, now.Unix()) != entities.WindowEnded {
				return ports.TallyDecision{}, domainerrors.ErrTallyNotAllowedYet
			}
			if election.IsFinalized {
				if policy == RepeatTallyReject {
					return ports.TallyDecision{}, domainerrors.ErrElectionAlreadyFinalized
				}
				replayed = true
				return ports.TallyDecision{WinnerIndex: election.WinnerIndex}, nil
			}
			winnerIndex := services.SelectWinner(election.Candidates)
			var winner entities.Candidate
			if winnerIndex < len(election.Candidates) {
				winner = election.Candidates[winnerIndex]
			}
			event, err := newLedgerEnvelope(eventID, EventElectionFinalized, electionID, now, map[string]any{
				"election_id":       electionID,
				"winner_index":      winnerIndex,
				"winner_name":       winner.Name,
				"winner_vote_count": winner.VoteCount,
				"finalized_by":      callerID,
				"timestamp":         now.Unix(),
			})
			if err != nil {
				return ports.TallyDecision{}, err
			}
			return ports.TallyDecision{
				WinnerIndex: winnerIndex,
				Commit:      true,
				Event:       &event,
			}, nil
		},
	)
	if err != nil {
		logger.Warn("tally rejected",
			"event", "election_tally_rejected",
			"module", moduleName,
			"layer", "application",
			"election_id", electionID,
			"caller_id", callerID,
			"code", domainerrors.Code(err),
			"error", err.Error(),
		)
		return TallyResult{}, err
	}

	winner, _ := election.Winner()
	result := TallyResult{
		Election:        election,
		WinnerIndex:     election.WinnerIndex,
		WinnerName:      winner.Name,
		WinnerVoteCount: winner.VoteCount,
		Replayed:        replayed,
	}
	if replayed {
		logger.Info("tally replayed",
			"event", "election_tally_replayed",
			"module", moduleName,
			"layer", "application",
			"election_id", electionID,
			"winner_index", result.WinnerIndex,
		)
		return result, nil
	}

	uc.metrics().ElectionFinalized()

	logger.Info("election finalized",
		"event", "election_tally_completed",
		"module", moduleName,
		"layer", "application",
		"election_id", electionID,
		"winner_index", result.WinnerIndex,
		"winner_vote_count", result.WinnerVoteCount,
	)
	return result, nil
}
