package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	electionledger "d21ledger/contexts/governance/election-ledger"
	"d21ledger/contexts/governance/election-ledger/domain/entities"
	domainerrors "d21ledger/contexts/governance/election-ledger/domain/errors"
	ledgerhttp "d21ledger/contexts/governance/election-ledger/transport/http"

	_ "d21ledger/internal/platform/httpserver/docs"
	httpSwagger "github.com/swaggo/http-swagger"
)

const serverModule = "internal/platform/httpserver"

// A JSON string may spell every byte as a six-byte \u escape, and each
// roster entry adds quotes and a comma.
const (
	escapedByteWidth    = 6
	rosterEntryOverhead = 3
	bodyEnvelopeBytes   = 4 << 10
)

// maxBodyBytesFor bounds request bodies by the largest legal one: a full
// roster of maximum-length names, fully escaped.
func maxBodyBytesFor(maxNameBytes int) int64 {
	if maxNameBytes <= 0 {
		maxNameBytes = entities.DefaultMaxCandidateNameBytes
	}
	perName := int64(maxNameBytes)*escapedByteWidth + rosterEntryOverhead
	return int64(entities.MaxCandidates)*perName + bodyEnvelopeBytes
}

type Server struct {
	mux     *http.ServeMux
	srv     *http.Server
	logger  *slog.Logger
	addr    string
	ledger  electionledger.Module
	metrics http.Handler
	maxBody int64
}

// New wires the ledger routes. metrics may be nil to leave /metrics
// unregistered.
func New(
	ledger electionledger.Module,
	metrics http.Handler,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		ledger:  ledger,
		metrics: metrics,
		maxBody: maxBodyBytesFor(ledger.Ledger.MaxCandidateNameBytes),
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", serverModule,
		"layer", "platform",
		"addr", s.addr,
	)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", serverModule,
		"layer", "platform",
	)
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/elections", s.handleInitializeElection)
	s.mux.HandleFunc("GET /v1/elections", s.handleListElections)
	s.mux.HandleFunc("GET /v1/elections/{election_id}", s.handleGetElection)
	s.mux.HandleFunc("GET /v1/elections/{election_id}/standings", s.handleStandings)
	s.mux.HandleFunc("POST /v1/elections/{election_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("POST /v1/elections/{election_id}/tally", s.handleTally)
	s.mux.HandleFunc("GET /v1/elections/{election_id}/voters/{voter_id}", s.handleVoterRecord)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInitializeElection(w http.ResponseWriter, r *http.Request) {
	authority := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if authority == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.InitializeElectionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.InitializeElectionHandler(r.Context(), authority, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListElections(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.ListElectionsHandler(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetElection(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.GetElectionHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.StandingsHandler(r.Context(), r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	voterID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if voterID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return
	}

	var req ledgerhttp.CastVoteRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CastVoteHandler(r.Context(), voterID, r.PathValue("election_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTally(w http.ResponseWriter, r *http.Request) {
	callerID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	resp, err := s.ledger.Handler.TallyHandler(r.Context(), callerID, r.PathValue("election_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVoterRecord(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.VoterRecordHandler(r.Context(), r.PathValue("election_id"), r.PathValue("voter_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body is too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

// statusFor maps ledger error codes to HTTP statuses. Input errors are 400,
// lifecycle and quota violations are 409.
func statusFor(code string) int {
	switch code {
	case domainerrors.CodeInvalidElectionInput,
		domainerrors.CodeCandidateCountMismatch,
		domainerrors.CodeInvalidCandidateCount,
		domainerrors.CodeCandidateNameTooLong,
		domainerrors.CodeInvalidElectionWindow,
		domainerrors.CodeInvalidVoteInput,
		domainerrors.CodeInvalidCandidateIndex,
		domainerrors.CodeDuplicateVoteInSingleTx:
		return http.StatusBadRequest
	case domainerrors.CodeElectionNotFound:
		return http.StatusNotFound
	case domainerrors.CodeElectionAlreadyExists,
		domainerrors.CodeElectionNotStarted,
		domainerrors.CodeElectionAlreadyEnded,
		domainerrors.CodeElectionAlreadyFinalized,
		domainerrors.CodeTallyNotAllowedYet,
		domainerrors.CodeVotesExhausted,
		domainerrors.CodeAlreadyVotedForCandidate,
		domainerrors.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := domainerrors.Code(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		s.logger.Error("ledger request failed",
			"event", "http_request_failed",
			"module", serverModule,
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, status, "internal_error", "internal server error")
		return
	}
	writeError(w, status, code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, ledgerhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
