package electionledger

import (
	"log/slog"

	httpadapter "d21ledger/contexts/governance/election-ledger/adapters/http"
	"d21ledger/contexts/governance/election-ledger/adapters/memory"
	"d21ledger/contexts/governance/election-ledger/application/commands"
	"d21ledger/contexts/governance/election-ledger/application/queries"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	"d21ledger/contexts/governance/election-ledger/ports"
)

type Module struct {
	Handler httpadapter.Handler
	Ledger  commands.LedgerUseCase
	Queries queries.ElectionQueries
	Store   *memory.Store
}

type Dependencies struct {
	Elections             ports.ElectionRepository
	Clock                 ports.Clock
	IDGen                 ports.IDGenerator
	Metrics               ports.Metrics
	Quota                 entities.QuotaTable
	MaxCandidateNameBytes int
	RepeatTally           commands.RepeatTallyPolicy
	Logger                *slog.Logger
}

func NewModule(deps Dependencies) Module {
	ledger := commands.LedgerUseCase{
		Elections:             deps.Elections,
		Clock:                 deps.Clock,
		IDGen:                 deps.IDGen,
		Metrics:               deps.Metrics,
		Quota:                 deps.Quota,
		MaxCandidateNameBytes: deps.MaxCandidateNameBytes,
		RepeatTally:           deps.RepeatTally,
		Logger:                deps.Logger,
	}
	electionQueries := queries.ElectionQueries{
		Elections: deps.Elections,
		Clock:     deps.Clock,
	}
	return Module{
		Handler: httpadapter.Handler{
			Ledger:  ledger,
			Queries: electionQueries,
			Logger:  deps.Logger,
		},
		Ledger:  ledger,
		Queries: electionQueries,
	}
}

// NewInMemoryModule wires the module to a process-local store with default
// quota, name limit and repeat-tally policy.
func NewInMemoryModule(seed []entities.Election, logger *slog.Logger) Module {
	store := memory.NewStore(seed)
	module := NewModule(Dependencies{
		Elections: store,
		Clock:     store,
		IDGen:     store,
		Logger:    logger,
	})
	module.Store = store
	return module
}
