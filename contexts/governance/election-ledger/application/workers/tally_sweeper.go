package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "d21ledger/contexts/governance/election-ledger/application"
	"d21ledger/contexts/governance/election-ledger/application/commands"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	"d21ledger/contexts/governance/election-ledger/ports"
)

// Tallier is the slice of the ledger write model the sweeper drives.
type Tallier interface {
	TallyResults(ctx context.Context, cmd commands.TallyResultsCommand) (commands.TallyResult, error)
}

// TallySweeper finalizes elections whose window closed without anyone calling
// tally. Racing a manual tally is harmless: the loser sees the stored result.
type TallySweeper struct {
	Elections ports.ElectionRepository
	Tally     Tallier
	Clock     ports.Clock
	BatchSize int
	CallerID  string
	Logger    *slog.Logger
}

func (j TallySweeper) RunOnce(ctx context.Context) (int, error) {
	logger := application.ResolveLogger(j.Logger)
	now := time.Now().UTC()
	if j.Clock != nil {
		now = j.Clock.Now().UTC()
	}
	limit := j.BatchSize
	if limit <= 0 {
		limit = 100
	}
	callerID := j.CallerID
	if callerID == "" {
		callerID = "tally-sweeper"
	}

	pending, err := j.Elections.ListElectionsPendingTally(ctx, now.Unix(), limit)
	if err != nil {
		logger.Error("tally sweep list failed",
			"event", "ledger_tally_sweep_list_failed",
			"module", moduleName,
			"layer", "worker",
			"error", err.Error(),
		)
		return 0, err
	}

	finalized := 0
	for _, election := range pending {
		result, err := j.Tally.TallyResults(ctx, commands.TallyResultsCommand{
			ElectionID: election.ElectionID,
			CallerID:   callerID,
		})
		if errors.Is(err, domainerrors.ErrElectionAlreadyFinalized) {
			continue
		}
		if err != nil {
			logger.Error("tally sweep finalize failed",
				"event", "ledger_tally_sweep_finalize_failed",
				"module", moduleName,
				"layer", "worker",
				"election_id", election.ElectionID,
				"error", err.Error(),
			)
			return finalized, err
		}
		if !result.Replayed {
			finalized++
		}
	}
	if finalized > 0 {
		logger.Info("tally sweep completed",
			"event", "ledger_tally_sweep_completed",
			"module", moduleName,
			"layer", "worker",
			"finalized_count", finalized,
		)
	}
	return finalized, nil
}
