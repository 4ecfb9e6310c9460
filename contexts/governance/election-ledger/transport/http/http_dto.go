package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type InitializeElectionRequest struct {
	ElectionID     string   `json:"election_id,omitempty"`
	StartTime      int64    `json:"start_time"`
	EndTime        int64    `json:"end_time"`
	CandidateNames []string `json:"candidate_names"`
	// CandidateCount defaults to len(candidate_names) when omitted.
	CandidateCount *int `json:"candidate_count,omitempty"`
}

type CandidateResponse struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type ElectionResponse struct {
	ElectionID    string              `json:"election_id"`
	Authority     string              `json:"authority"`
	StartTime     int64               `json:"start_time"`
	EndTime       int64               `json:"end_time"`
	Candidates    []CandidateResponse `json:"candidates"`
	VotesPerVoter int                 `json:"votes_per_voter"`
	WindowState   string              `json:"window_state"`
	IsFinalized   bool                `json:"is_finalized"`
	WinnerIndex   *int                `json:"winner_index,omitempty"`
	CreatedAt     string              `json:"created_at"`
	FinalizedAt   string              `json:"finalized_at,omitempty"`
}

type ListElectionsResponse struct {
	Items []ElectionResponse `json:"items"`
}

type CastVoteRequest struct {
	CandidateIndices []int `json:"candidate_indices"`
}

type VoterRecordResponse struct {
	RecordID        string `json:"record_id"`
	ElectionID      string `json:"election_id"`
	VoterID         string `json:"voter_id"`
	VotesCastCount  int    `json:"votes_cast_count"`
	VotesRemaining  int    `json:"votes_remaining"`
	VotedCandidates []int  `json:"voted_candidates"`
}

type CastVoteResponse struct {
	ElectionID string              `json:"election_id"`
	Accepted   []int               `json:"accepted"`
	Record     VoterRecordResponse `json:"record"`
}

type TallyResponse struct {
	ElectionID      string `json:"election_id"`
	WinnerIndex     int    `json:"winner_index"`
	WinnerName      string `json:"winner_name"`
	WinnerVoteCount uint64 `json:"winner_vote_count"`
	Replayed        bool   `json:"replayed"`
	FinalizedAt     string `json:"finalized_at,omitempty"`
}

type StandingItem struct {
	Rank      int    `json:"rank"`
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"vote_count"`
}

type StandingsResponse struct {
	ElectionID  string         `json:"election_id"`
	WindowState string         `json:"window_state"`
	IsFinalized bool           `json:"is_finalized"`
	WinnerIndex *int           `json:"winner_index,omitempty"`
	TotalVotes  uint64         `json:"total_votes"`
	Items       []StandingItem `json:"items"`
}
