// Package api exposes the discovery engine over HTTP: a trigger endpoint
// that advances the cycle, read-only status and leaderboard queries,
// pattern voting, and a websocket event feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/cycle"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/metrics"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/observability"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
)

// Server wires the orchestrator and the read-side aggregates into HTTP
// handlers. One instance serves all routes.
type Server struct {
	orchestrator *cycle.Orchestrator
	aggregator   *metrics.Aggregator
	patterns     storage.PatternStore
	hub          *WSHub
	logger       zerolog.Logger

	mu      sync.Mutex
	running bool
}

// Options configures a Server.
type Options struct {
	Orchestrator *cycle.Orchestrator
	Aggregator   *metrics.Aggregator
	Patterns     storage.PatternStore
	Logger       zerolog.Logger
}

// NewServer creates the API server and starts its event feed hub.
func NewServer(opts Options) *Server {
	hub := NewWSHub(opts.Logger)
	go hub.Run()

	return &Server{
		orchestrator: opts.Orchestrator,
		aggregator:   opts.Aggregator,
		patterns:     opts.Patterns,
		hub:          hub,
		logger:       opts.Logger,
	}
}

// Hub returns the event feed hub, for broadcasting from outside the
// request path.
func (s *Server) Hub() *WSHub {
	return s.hub
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("POST /api/v1/cycle/trigger", s.handleTrigger)
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("POST /api/v1/patterns/{id}/vote", s.handleVote)
	mux.HandleFunc("GET /api/v1/ws", s.handleWebSocket)

	return mux
}

// CycleReportResponse is the JSON body returned by a successful trigger.
type CycleReportResponse struct {
	Cycle              int64             `json:"cycle"`
	InvocationID       string            `json:"invocation_id"`
	TrialsGenerated    int               `json:"trials_generated"`
	Replayed           bool              `json:"replayed"`
	Mined              bool              `json:"mined"`
	PatternsPromoted   int               `json:"patterns_promoted"`
	PatternsRefreshed  int               `json:"patterns_refreshed"`
	TournamentsHeld    bool              `json:"tournaments_held"`
	TournamentsRun     int               `json:"tournaments_run"`
	TournamentsSkipped int               `json:"tournaments_skipped"`
	Failures           []FailureResponse `json:"failures,omitempty"`
}

// FailureResponse is one non-fatal failure absorbed during a cycle.
type FailureResponse struct {
	Kind      string `json:"kind"`
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ErrorResponse is the JSON body returned when a cycle aborts.
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// StatusResponse is the JSON body of the status endpoint.
type StatusResponse struct {
	Cycle               int64                      `json:"cycle"`
	LastMinedCycle      int64                      `json:"last_mined_cycle"`
	LastTournamentCycle int64                      `json:"last_tournament_cycle"`
	TotalTrials         int64                      `json:"total_trials"`
	TotalPatterns       int64                      `json:"total_patterns"`
	WinningPatterns     int64                      `json:"winning_patterns"`
	TotalMatchups       int64                      `json:"total_matchups"`
	Leaderboard         []LeaderboardEntryResponse `json:"leaderboard"`
}

// LeaderboardEntryResponse is one ranked pattern in the status response.
type LeaderboardEntryResponse struct {
	Rank        int     `json:"rank"`
	PatternID   string  `json:"pattern_id"`
	Name        string  `json:"name"`
	WinRate     float64 `json:"win_rate"`
	SampleSize  int     `json:"sample_size"`
	Runs        int     `json:"runs"`
	H2HWins     int     `json:"h2h_wins"`
	H2HLosses   int     `json:"h2h_losses"`
	H2HWinRatio float64 `json:"h2h_win_ratio"`
	MeanROI     float64 `json:"mean_roi"`
	NetVotes    int     `json:"net_votes"`
}

// VoteRequest is the JSON body of the vote endpoint.
type VoteRequest struct {
	Direction string `json:"direction"`
}

// TriggerCycle advances the discovery loop one cycle, records metrics, and
// broadcasts feed events. At most one invocation runs per process; a second
// concurrent call is rejected as a conflict without touching the stores.
func (s *Server) TriggerCycle(ctx context.Context) (*cycle.Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, &cycle.StageError{
			Kind:  cycle.KindCycleConflict,
			Stage: cycle.StageClaimingCycle,
			Err:   errors.New("an invocation is already running in this process"),
		}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	report, err := s.orchestrator.RunCycle(ctx)
	if err != nil {
		observability.RecordCycleRun("error", time.Since(start).Seconds())
		var stageErr *cycle.StageError
		if errors.As(err, &stageErr) {
			observability.RecordStageError(stageErr.Stage, string(stageErr.Kind))
		}
		return nil, err
	}

	observability.RecordCycleRun("success", time.Since(start).Seconds())
	observability.RecordCycleReport(report.Cycle, report.TrialsGenerated,
		report.PatternsPromoted, report.PatternsRefreshed,
		report.TournamentsRun, report.TournamentsSkipped)
	for _, f := range report.Failures {
		observability.RecordStageError(f.Stage, string(f.Kind))
	}

	s.broadcastReport(report)
	return report, nil
}

// broadcastReport pushes the cycle outcome onto the event feed.
func (s *Server) broadcastReport(report *cycle.Report) {
	now := time.Now()

	s.hub.BroadcastEvent(Event{
		Type:      EventCycleCompleted,
		Timestamp: now,
		Data: map[string]interface{}{
			"cycle":            report.Cycle,
			"trials_generated": report.TrialsGenerated,
			"mined":            report.Mined,
			"tournaments_run":  report.TournamentsRun,
		},
	})

	for _, id := range report.PromotedPatterns {
		s.hub.BroadcastEvent(Event{
			Type:      EventPatternPromoted,
			Timestamp: now,
			Data: map[string]interface{}{
				"pattern_id": id,
				"cycle":      report.Cycle,
			},
		})
	}

	for _, id := range report.Matchups {
		s.hub.BroadcastEvent(Event{
			Type:      EventTournamentDecided,
			Timestamp: now,
			Data: map[string]interface{}{
				"matchup_id": id,
				"cycle":      report.Cycle,
			},
		})
	}
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	report, err := s.TriggerCycle(r.Context())
	if err != nil {
		s.writeCycleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleReport(report))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	size := 0
	if raw := r.URL.Query().Get("size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Kind:    "InvalidRequest",
				Message: "size must be a non-negative integer",
			})
			return
		}
		size = parsed
	}

	status, err := s.aggregator.Status(r.Context())
	if err != nil {
		s.writeInternalError(w, err)
		return
	}
	board, err := s.aggregator.Leaderboard(r.Context(), size)
	if err != nil {
		s.writeInternalError(w, err)
		return
	}

	resp := StatusResponse{
		Cycle:               status.Cycle,
		LastMinedCycle:      status.LastMinedCycle,
		LastTournamentCycle: status.LastTournamentCycle,
		TotalTrials:         status.TotalTrials,
		TotalPatterns:       status.TotalPatterns,
		WinningPatterns:     status.WinningPatterns,
		TotalMatchups:       status.TotalMatchups,
		Leaderboard:         make([]LeaderboardEntryResponse, 0, len(board)),
	}
	for _, e := range board {
		resp.Leaderboard = append(resp.Leaderboard, LeaderboardEntryResponse{
			Rank:        e.Rank,
			PatternID:   e.PatternID,
			Name:        e.Name,
			WinRate:     e.WinRate,
			SampleSize:  e.SampleSize,
			Runs:        e.Runs,
			H2HWins:     e.H2HWins,
			H2HLosses:   e.H2HLosses,
			H2HWinRatio: e.H2HWinRatio,
			MeanROI:     e.MeanROI,
			NetVotes:    e.NetVotes,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	patternID := r.PathValue("id")

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:    "InvalidRequest",
			Message: "body must be JSON with a direction field",
		})
		return
	}

	direction := domain.VoteDirection(req.Direction)
	if !direction.IsValid() {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:    "InvalidRequest",
			Message: "direction must be up or down",
		})
		return
	}

	if err := s.patterns.Vote(r.Context(), patternID, direction); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{
				Kind:    "NotFound",
				Message: "pattern " + patternID + " does not exist",
			})
			return
		}
		s.writeInternalError(w, err)
		return
	}

	observability.RecordVote(string(direction))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// writeCycleError renders a failed trigger. Lost claim races map to 409 so
// callers can tell "someone else ran the cycle" from a real fault.
func (s *Server) writeCycleError(w http.ResponseWriter, err error) {
	var stageErr *cycle.StageError
	if !errors.As(err, &stageErr) {
		s.writeInternalError(w, err)
		return
	}

	status := http.StatusInternalServerError
	if stageErr.Kind == cycle.KindCycleConflict {
		status = http.StatusConflict
	}

	writeJSON(w, status, ErrorResponse{
		Kind:      string(stageErr.Kind),
		Message:   stageErr.Error(),
		Retryable: stageErr.Retryable(),
	})
}

func (s *Server) writeInternalError(w http.ResponseWriter, err error) {
	s.logger.Error().Err(err).Msg("request failed")
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Kind:      string(cycle.KindPersistenceFailure),
		Message:   err.Error(),
		Retryable: true,
	})
}

func toCycleReport(report *cycle.Report) CycleReportResponse {
	resp := CycleReportResponse{
		Cycle:              report.Cycle,
		InvocationID:       report.InvocationID,
		TrialsGenerated:    report.TrialsGenerated,
		Replayed:           report.Replayed,
		Mined:              report.Mined,
		PatternsPromoted:   report.PatternsPromoted,
		PatternsRefreshed:  report.PatternsRefreshed,
		TournamentsHeld:    report.TournamentsHeld,
		TournamentsRun:     report.TournamentsRun,
		TournamentsSkipped: report.TournamentsSkipped,
	}
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{
			Kind:      string(f.Kind),
			Stage:     f.Stage,
			Message:   f.Message,
			Retryable: f.Retryable,
		})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
