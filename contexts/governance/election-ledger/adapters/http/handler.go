package httpadapter

import (
	"context"
	"log/slog"
	"time"

	application "d21ledger/contexts/governance/election-ledger/application"
	"d21ledger/contexts/governance/election-ledger/application/commands"
	"d21ledger/contexts/governance/election-ledger/application/queries"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	httptransport "d21ledger/contexts/governance/election-ledger/transport/http"
)

type Handler struct {
	Ledger  commands.LedgerUseCase
	Queries queries.ElectionQueries
	Logger  *slog.Logger
}

// InitializeElectionHandler godoc
// @Summary Initialize an election
// @Description Creates an election with a fixed candidate roster and voting window. The caller becomes the authority.
// @Tags election-ledger
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Authority identity"
// @Param request body httptransport.InitializeElectionRequest true "Election definition"
// @Success 201 {object} httptransport.ElectionResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/elections [post]
func (h Handler) InitializeElectionHandler(
	ctx context.Context,
	authority string,
	req httptransport.InitializeElectionRequest,
) (httptransport.ElectionResponse, error) {
	h.received("initialize election request received", "http_initialize_election_received",
		"authority", authority,
		"candidate_count", len(req.CandidateNames),
	)
	count := len(req.CandidateNames)
	if req.CandidateCount != nil {
		count = *req.CandidateCount
	}
	election, err := h.Ledger.InitializeElection(ctx, commands.InitializeElectionCommand{
		ElectionID:     req.ElectionID,
		Authority:      authority,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		CandidateNames: req.CandidateNames,
		CandidateCount: count,
	})
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(election, entities.Classify(election, h.Queries.Now().Unix())), nil
}

// GetElectionHandler godoc
// @Summary Get an election
// @Tags election-ledger
// @Produce json
// @Param election_id path string true "Election id"
// @Success 200 {object} httptransport.ElectionResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/elections/{election_id} [get]
func (h Handler) GetElectionHandler(ctx context.Context, electionID string) (httptransport.ElectionResponse, error) {
	view, err := h.Queries.GetElection(ctx, electionID)
	if err != nil {
		return httptransport.ElectionResponse{}, err
	}
	return mapElection(view.Election, view.WindowState), nil
}

// ListElectionsHandler godoc
// @Summary List elections
// @Tags election-ledger
// @Produce json
// @Success 200 {object} httptransport.ListElectionsResponse
// @Router /v1/elections [get]
func (h Handler) ListElectionsHandler(ctx context.Context) (httptransport.ListElectionsResponse, error) {
	views, err := h.Queries.ListElections(ctx)
	if err != nil {
		return httptransport.ListElectionsResponse{}, err
	}
	items := make([]httptransport.ElectionResponse, 0, len(views))
	for _, view := range views {
		items = append(items, mapElection(view.Election, view.WindowState))
	}
	return httptransport.ListElectionsResponse{Items: items}, nil
}

// StandingsHandler godoc
// @Summary Current standings
// @Description Candidates ranked by votes, ties by roster index. Counts are live while the election is open.
// @Tags election-ledger
// @Produce json
// @Param election_id path string true "Election id"
// @Success 200 {object} httptransport.StandingsResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/elections/{election_id}/standings [get]
func (h Handler) StandingsHandler(ctx context.Context, electionID string) (httptransport.StandingsResponse, error) {
	view, err := h.Queries.Standings(ctx, electionID)
	if err != nil {
		return httptransport.StandingsResponse{}, err
	}
	items := make([]httptransport.StandingItem, 0, len(view.Standings))
	for rank, standing := range view.Standings {
		items = append(items, httptransport.StandingItem{
			Rank:      rank + 1,
			Index:     standing.Index,
			Name:      standing.Name,
			VoteCount: standing.VoteCount,
		})
	}
	resp := httptransport.StandingsResponse{
		ElectionID:  view.ElectionID,
		WindowState: string(view.WindowState),
		IsFinalized: view.IsFinalized,
		TotalVotes:  view.TotalVotes,
		Items:       items,
	}
	if view.IsFinalized {
		winner := view.WinnerIndex
		resp.WinnerIndex = &winner
	}
	return resp, nil
}

// CastVoteHandler godoc
// @Summary Cast votes
// @Description Casts one or more votes for distinct candidates. The whole ballot is accepted or rejected.
// @Tags election-ledger
// @Accept json
// @Produce json
// @Param X-User-Id header string true "Voter identity"
// @Param election_id path string true "Election id"
// @Param request body httptransport.CastVoteRequest true "Candidate indices"
// @Success 200 {object} httptransport.CastVoteResponse
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 401 {object} httptransport.ErrorResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/elections/{election_id}/votes [post]
func (h Handler) CastVoteHandler(
	ctx context.Context,
	voterID string,
	electionID string,
	req httptransport.CastVoteRequest,
) (httptransport.CastVoteResponse, error) {
	h.received("cast vote request received", "http_cast_vote_received",
		"election_id", electionID,
		"voter_id", voterID,
	)
	result, err := h.Ledger.CastVote(ctx, commands.CastVoteCommand{
		ElectionID:       electionID,
		VoterID:          voterID,
		CandidateIndices: req.CandidateIndices,
	})
	if err != nil {
		return httptransport.CastVoteResponse{}, err
	}
	return httptransport.CastVoteResponse{
		ElectionID: result.Election.ElectionID,
		Accepted:   result.Accepted,
		Record:     mapVoterRecord(result.Record, result.Election.VotesPerVoter),
	}, nil
}

// TallyHandler godoc
// @Summary Tally results
// @Description Finalizes an ended election and records the winner. Anyone may call it.
// @Tags election-ledger
// @Produce json
// @Param X-User-Id header string false "Caller identity"
// @Param election_id path string true "Election id"
// @Success 200 {object} httptransport.TallyResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Failure 409 {object} httptransport.ErrorResponse
// @Router /v1/elections/{election_id}/tally [post]
func (h Handler) TallyHandler(ctx context.Context, callerID string, electionID string) (httptransport.TallyResponse, error) {
	h.received("tally request received", "http_tally_received",
		"election_id", electionID,
		"caller_id", callerID,
	)
	result, err := h.Ledger.TallyResults(ctx, commands.TallyResultsCommand{
		ElectionID: electionID,
		CallerID:   callerID,
	})
	if err != nil {
		return httptransport.TallyResponse{}, err
	}
	return httptransport.TallyResponse{
		ElectionID:      result.Election.ElectionID,
		WinnerIndex:     result.WinnerIndex,
		WinnerName:      result.WinnerName,
		WinnerVoteCount: result.WinnerVoteCount,
		Replayed:        result.Replayed,
		FinalizedAt:     formatOptionalTime(result.Election.FinalizedAt),
	}, nil
}

// VoterRecordHandler godoc
// @Summary Get a voter record
// @Tags election-ledger
// @Produce json
// @Param election_id path string true "Election id"
// @Param voter_id path string true "Voter id"
// @Success 200 {object} httptransport.VoterRecordResponse
// @Failure 404 {object} httptransport.ErrorResponse
// @Router /v1/elections/{election_id}/voters/{voter_id} [get]
func (h Handler) VoterRecordHandler(ctx context.Context, electionID string, voterID string) (httptransport.VoterRecordResponse, error) {
	view, err := h.Queries.GetElection(ctx, electionID)
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	record, err := h.Queries.GetVoterRecord(ctx, electionID, voterID)
	if err != nil {
		return httptransport.VoterRecordResponse{}, err
	}
	return mapVoterRecord(record, view.Election.VotesPerVoter), nil
}

func (h Handler) received(message string, event string, attrs ...any) {
	fields := append([]any{
		"event", event,
		"module", "governance/election-ledger",
		"layer", "transport",
	}, attrs...)
	application.ResolveLogger(h.Logger).Debug(message, fields...)
}

func mapElection(election entities.Election, state entities.WindowState) httptransport.ElectionResponse {
	candidates := make([]httptransport.CandidateResponse, 0, len(election.Candidates))
	for index, candidate := range election.Candidates {
		candidates = append(candidates, httptransport.CandidateResponse{
			Index:     index,
			Name:      candidate.Name,
			VoteCount: candidate.VoteCount,
		})
	}
	resp := httptransport.ElectionResponse{
		ElectionID:    election.ElectionID,
		Authority:     election.Authority,
		StartTime:     election.StartTime,
		EndTime:       election.EndTime,
		Candidates:    candidates,
		VotesPerVoter: election.VotesPerVoter,
		WindowState:   string(state),
		IsFinalized:   election.IsFinalized,
		CreatedAt:     election.CreatedAt.UTC().Format(time.RFC3339),
		FinalizedAt:   formatOptionalTime(election.FinalizedAt),
	}
	if election.IsFinalized {
		winner := election.WinnerIndex
		resp.WinnerIndex = &winner
	}
	return resp
}

func mapVoterRecord(record entities.VoterRecord, votesPerVoter int) httptransport.VoterRecordResponse {
	remaining := votesPerVoter - record.VotesCastCount
	if remaining < 0 {
		remaining = 0
	}
	voted := append([]int{}, record.VotedCandidates...)
	return httptransport.VoterRecordResponse{
		RecordID:        record.RecordID,
		ElectionID:      record.ElectionID,
		VoterID:         record.VoterID,
		VotesCastCount:  record.VotesCastCount,
		VotesRemaining:  remaining,
		VotedCandidates: voted,
	}
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}
