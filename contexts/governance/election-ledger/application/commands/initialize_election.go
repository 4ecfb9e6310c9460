package commands

import (
	"context"
	"strings"

	application "d21ledger/contexts/governance/election-ledger/application"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
)

// InitializeElectionCommand creates an election. ElectionID is optional; a
// fresh identity is generated when it is empty.
type InitializeElectionCommand struct {
	ElectionID     string
	Authority      string
	StartTime      int64
	EndTime        int64
	CandidateNames []string
	CandidateCount int
}

// InitializeElection validates the roster and window, fixes the per-voter
// quota and persists the election with every count at zero.
func (uc LedgerUseCase) InitializeElection(ctx context.Context, cmd InitializeElectionCommand) (entities.Election, error) {
	logger := application.ResolveLogger(uc.Logger)
	authority := strings.TrimSpace(cmd.Authority)
	logger.Info("election initialize started",
		"event", "election_initialize_started",
		"module", moduleName,
		"layer", "application",
		"authority", authority,
		"candidate_count", cmd.CandidateCount,
	)

	if err := uc.validateInitialize(cmd); err != nil {
		logger.Warn("election initialize validation failed",
			"event", "election_initialize_validation_failed",
			"module", moduleName,
			"layer", "application",
			"authority", authority,
			"code", domainerrors.Code(err),
		)
		return entities.Election{}, err
	}

	electionID := strings.TrimSpace(cmd.ElectionID)
	if electionID == "" {
		generated, err := uc.newID(ctx)
		if err != nil {
			return entities.Election{}, err
		}
		electionID = generated
	}

	now := uc.now()
	candidates := make([]entities.Candidate, 0, len(cmd.CandidateNames))
	for _, name := range cmd.CandidateNames {
		candidates = append(candidates, entities.Candidate{Name: name})
	}
	election := entities.Election{
		ElectionID:    electionID,
		Authority:     authority,
		StartTime:     cmd.StartTime,
		EndTime:       cmd.EndTime,
		Candidates:    candidates,
		VotesPerVoter: uc.quota().VotesFor(len(candidates)),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	names := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		names = append(names, candidate.Name)
	}
	event, err := uc.newEvent(ctx, EventElectionInitialized, electionID, now, map[string]any{
		"election_id":     electionID,
		"authority":       authority,
		"start_time":      election.StartTime,
		"end_time":        election.EndTime,
		"candidates":      names,
		"votes_per_voter": election.VotesPerVoter,
	})
	if err != nil {
		return entities.Election{}, err
	}
	if err := uc.Elections.CreateElection(ctx, election, event); err != nil {
		logger.Warn("election initialize persist failed",
			"event", "election_initialize_persist_failed",
			"module", moduleName,
			"layer", "application",
			"election_id", electionID,
			"error", err.Error(),
		)
		return entities.Election{}, err
	}

	uc.metrics().ElectionCreated()

	logger.Info("election initialized",
		"event", "election_initialize_completed",
		"module", moduleName,
		"layer", "application",
		"election_id", electionID,
		"candidate_count", len(candidates),
		"votes_per_voter", election.VotesPerVoter,
	)
	return election, nil
}

func (uc LedgerUseCase) validateInitialize(cmd InitializeElectionCommand) error {
	if strings.TrimSpace(cmd.Authority) == "" {
		return domainerrors.ErrInvalidElectionInput
	}
	if cmd.CandidateCount != len(cmd.CandidateNames) {
		return domainerrors.ErrCandidateCountMismatch
	}
	if cmd.CandidateCount < 1 || cmd.CandidateCount > entities.MaxCandidates {
		return domainerrors.ErrInvalidCandidateCount
	}
	limit := uc.maxNameBytes()
	for _, name := range cmd.CandidateNames {
		if len(name) > limit {
			return domainerrors.ErrCandidateNameTooLong
		}
	}
	if cmd.StartTime >= cmd.EndTime {
		return domainerrors.ErrInvalidElectionWindow
	}
	return nil
}
