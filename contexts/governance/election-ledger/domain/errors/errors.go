package errors

import "errors"

var (
	ErrInvalidElectionInput     = errors.New("invalid election input")
	ErrCandidateCountMismatch   = errors.New("candidate count does not match the candidate list length")
	ErrInvalidCandidateCount    = errors.New("candidate count is out of range")
	ErrCandidateNameTooLong     = errors.New("a candidate name is too long")
	ErrInvalidElectionWindow    = errors.New("election start time must be before end time")
	ErrElectionAlreadyExists    = errors.New("election already exists")
	ErrElectionNotFound         = errors.New("election not found")
	ErrElectionNotStarted       = errors.New("the election has not started yet")
	ErrElectionAlreadyEnded     = errors.New("the election has already ended")
	ErrElectionAlreadyFinalized = errors.New("the election has already been finalized")
	ErrTallyNotAllowedYet       = errors.New("cannot tally results until the election has ended")
	ErrInvalidVoteInput         = errors.New("invalid vote input")
	ErrInvalidCandidateIndex    = errors.New("the provided candidate index is invalid")
	ErrDuplicateVoteInSingleTx  = errors.New("vote request contains duplicate candidates")
	ErrVotesExhausted           = errors.New("all available votes have been used")
	ErrAlreadyVotedForCandidate = errors.New("cannot vote for the same candidate more than once")
	ErrConflict                 = errors.New("election ledger conflict")
)

// Stable error codes. Callers branch on these, never on messages.
const (
	CodeInvalidElectionInput     = "InvalidElectionInput"
	CodeCandidateCountMismatch   = "CandidateCountMismatch"
	CodeInvalidCandidateCount    = "InvalidCandidateCount"
	CodeCandidateNameTooLong     = "CandidateNameTooLong"
	CodeInvalidElectionWindow    = "InvalidElectionWindow"
	CodeElectionAlreadyExists    = "ElectionAlreadyExists"
	CodeElectionNotFound         = "ElectionNotFound"
	CodeElectionNotStarted       = "ElectionNotStarted"
	CodeElectionAlreadyEnded     = "ElectionAlreadyEnded"
	CodeElectionAlreadyFinalized = "ElectionAlreadyFinalized"
	CodeTallyNotAllowedYet       = "TallyNotAllowedYet"
	CodeInvalidVoteInput         = "InvalidVoteInput"
	CodeInvalidCandidateIndex    = "InvalidCandidateIndex"
	CodeDuplicateVoteInSingleTx  = "DuplicateVoteInSingleTx"
	CodeVotesExhausted           = "VotesExhausted"
	CodeAlreadyVotedForCandidate = "AlreadyVotedForCandidate"
	CodeConflict                 = "Conflict"
	CodeInternal                 = "Internal"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidElectionInput, CodeInvalidElectionInput},
	{ErrCandidateCountMismatch, CodeCandidateCountMismatch},
	{ErrInvalidCandidateCount, CodeInvalidCandidateCount},
	{ErrCandidateNameTooLong, CodeCandidateNameTooLong},
	{ErrInvalidElectionWindow, CodeInvalidElectionWindow},
	{ErrElectionAlreadyExists, CodeElectionAlreadyExists},
	{ErrElectionNotFound, CodeElectionNotFound},
	{ErrElectionNotStarted, CodeElectionNotStarted},
	{ErrElectionAlreadyEnded, CodeElectionAlreadyEnded},
	{ErrElectionAlreadyFinalized, CodeElectionAlreadyFinalized},
	{ErrTallyNotAllowedYet, CodeTallyNotAllowedYet},
	{ErrInvalidVoteInput, CodeInvalidVoteInput},
	{ErrInvalidCandidateIndex, CodeInvalidCandidateIndex},
	{ErrDuplicateVoteInSingleTx, CodeDuplicateVoteInSingleTx},
	{ErrVotesExhausted, CodeVotesExhausted},
	{ErrAlreadyVotedForCandidate, CodeAlreadyVotedForCandidate},
	{ErrConflict, CodeConflict},
}

// Code returns the stable code for a ledger error, or CodeInternal for
// anything that is not a domain error.
func Code(err error) string {
	for _, item := range codes {
		if errors.Is(err, item.err) {
			return item.code
		}
	}
	return CodeInternal
}
