package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/cycle"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/domain"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/generator"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/market"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/metrics"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/miner"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/sampler"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/storage/memory"
	"github.com/TheAIGuyFromAR/Coinswarm-sub002/internal/tournament"
)

const testSymbol = "BTC-USD"

func f64(v float64) *float64 { return &v }

type stubSnapshots struct {
	snap *domain.MarketSnapshot
}

func (s *stubSnapshots) Snapshot(_ context.Context, _ string) (*domain.MarketSnapshot, error) {
	return s.snap, nil
}

type stubHistory struct{}

func (stubHistory) Slice(_ context.Context, _ string, _ domain.Timeframe, _, _ int64) ([]*domain.Candle, error) {
	return nil, market.ErrInsufficientHistory
}

// conflictingStateStore loses every claim race.
type conflictingStateStore struct {
	storage.CycleStateStore
}

func (c *conflictingStateStore) CompareAndSwap(_ context.Context, _ int64, _ *domain.CycleState) error {
	return storage.ErrVersionConflict
}

// gatedStateStore parks the first Get until released, to hold an
// invocation mid-flight.
type gatedStateStore struct {
	storage.CycleStateStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStateStore) Get(ctx context.Context) (*domain.CycleState, error) {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return g.CycleStateStore.Get(ctx)
}

type testEnv struct {
	server   *Server
	trials   *memory.TrialStore
	patterns *memory.PatternStore
	state    storage.CycleStateStore
}

func newTestServer(t *testing.T, state storage.CycleStateStore) *testEnv {
	t.Helper()

	trials := memory.NewTrialStore()
	patterns := memory.NewPatternStore()
	matchups := memory.NewMatchupStore(patterns)
	if state == nil {
		state = memory.NewCycleStateStore()
	}

	gen := generator.New(generator.Options{
		Trials:      trials,
		Snapshots:   &stubSnapshots{snap: testSnapshot()},
		Symbol:      testSymbol,
		TrialBudget: 10,
		Seed:        42,
		Logger:      zerolog.Nop(),
	})
	mnr, err := miner.New(miner.Options{
		Trials:   trials,
		Patterns: patterns,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("miner.New failed: %v", err)
	}
	eng := tournament.New(tournament.Options{
		Matchups:        matchups,
		History:         stubHistory{},
		Symbol:          testSymbol,
		SliceCandles:    6,
		MinSliceCandles: 4,
		Lookback:        2,
		Timeframes:      []domain.Timeframe{domain.TimeframeH1},
		Bonuses:         map[domain.Timeframe]float64{domain.TimeframeH1: 1.0},
		Seed:            1,
		Logger:          zerolog.Nop(),
	})
	orch := cycle.New(cycle.Options{
		State:       state,
		Generator:   gen,
		Miner:       mnr,
		Sampler:     sampler.New(patterns, 11),
		Tournaments: eng,
		Logger:      zerolog.Nop(),
	})

	srv := NewServer(Options{
		Orchestrator: orch,
		Aggregator:   metrics.NewAggregator(trials, patterns, matchups, state),
		Patterns:     patterns,
		Logger:       zerolog.Nop(),
	})
	return &testEnv{server: srv, trials: trials, patterns: patterns, state: state}
}

func testSnapshot() *domain.MarketSnapshot {
	return &domain.MarketSnapshot{
		Symbol:        testSymbol,
		CapturedAt:    1_700_000_300_000,
		Price:         50_000,
		MomentumPct:   2.5,
		MovingAvg:     49_500,
		Volume:        120,
		AvgVolume:     100,
		VolatilityPct: 1.5,
	}
}

func seedPattern(t *testing.T, store *memory.PatternStore, id string) {
	t.Helper()
	cond := domain.Condition{Clauses: []domain.Clause{{
		Feature: domain.FeatureMomentumPct,
		Lo:      f64(0),
	}}}
	p := &domain.Pattern{
		PatternID:      id,
		Name:           id,
		Signature:      cond.Canonical(),
		Condition:      cond,
		WinRate:        0.6,
		SampleSize:     25,
		Confidence:     0.9,
		Rationale:      "fixture",
		Origin:         domain.OriginChaosMiner,
		LastMinedCycle: 1,
		CreatedAt:      1,
		UpdatedAt:      1,
	}
	if _, err := store.UpsertMined(context.Background(), p); err != nil {
		t.Fatalf("seed pattern %s: %v", id, err)
	}
}

func TestTriggerReturnsReport(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/cycle/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var report CycleReportResponse
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Cycle != 1 {
		t.Errorf("cycle = %d, want 1", report.Cycle)
	}
	if report.TrialsGenerated != 10 {
		t.Errorf("trials_generated = %d, want 10", report.TrialsGenerated)
	}
	if report.InvocationID == "" {
		t.Error("invocation_id is empty")
	}
	if report.Mined || report.TournamentsHeld {
		t.Errorf("cycle 1 mined=%v tournaments=%v, want neither", report.Mined, report.TournamentsHeld)
	}

	count, _ := env.trials.Count(context.Background())
	if count != 10 {
		t.Errorf("trial count = %d, want 10", count)
	}
}

func TestTriggerLostClaimIsConflict(t *testing.T) {
	env := newTestServer(t, &conflictingStateStore{CycleStateStore: memory.NewCycleStateStore()})
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/cycle/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}

	var body ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Kind != string(cycle.KindCycleConflict) {
		t.Errorf("kind = %s, want %s", body.Kind, cycle.KindCycleConflict)
	}
	if body.Retryable {
		t.Error("conflict reported retryable")
	}
}

func TestTriggerRejectsOverlappingInvocation(t *testing.T) {
	gated := &gatedStateStore{
		CycleStateStore: memory.NewCycleStateStore(),
		started:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	env := newTestServer(t, gated)

	done := make(chan error, 1)
	go func() {
		_, err := env.server.TriggerCycle(context.Background())
		done <- err
	}()

	<-gated.started
	_, err := env.server.TriggerCycle(context.Background())
	var stageErr *cycle.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("overlapping trigger error = %v, want StageError", err)
	}
	if stageErr.Kind != cycle.KindCycleConflict {
		t.Errorf("kind = %s, want %s", stageErr.Kind, cycle.KindCycleConflict)
	}

	close(gated.release)
	if err := <-done; err != nil {
		t.Fatalf("first invocation failed: %v", err)
	}
}

func TestTriggerMethodNotAllowed(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/cycle/trigger")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusReportsTotals(t *testing.T) {
	env := newTestServer(t, nil)
	seedPattern(t, env.patterns, "pat-001")
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	// One triggered cycle populates the trial store.
	resp, err := http.Post(ts.URL+"/api/v1/cycle/trigger", "application/json", nil)
	if err != nil {
		t.Fatalf("trigger request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/v1/status?size=5")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Cycle != 1 {
		t.Errorf("cycle = %d, want 1", body.Cycle)
	}
	if body.TotalTrials != 10 {
		t.Errorf("total_trials = %d, want 10", body.TotalTrials)
	}
	if body.TotalPatterns != 1 {
		t.Errorf("total_patterns = %d, want 1", body.TotalPatterns)
	}
	if len(body.Leaderboard) != 1 {
		t.Fatalf("leaderboard has %d entries, want 1", len(body.Leaderboard))
	}
	if body.Leaderboard[0].PatternID != "pat-001" || body.Leaderboard[0].Rank != 1 {
		t.Errorf("leaderboard[0] = %+v, want pat-001 at rank 1", body.Leaderboard[0])
	}
}

func TestStatusRejectsBadSize(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/v1/status?size=banana")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestVoteAdjustsPattern(t *testing.T) {
	env := newTestServer(t, nil)
	seedPattern(t, env.patterns, "pat-001")
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	body := bytes.NewBufferString(`{"direction":"up"}`)
	resp, err := http.Post(ts.URL+"/api/v1/patterns/pat-001/vote", "application/json", body)
	if err != nil {
		t.Fatalf("vote request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}

	p, err := env.patterns.GetByID(context.Background(), "pat-001")
	if err != nil {
		t.Fatalf("pattern lookup failed: %v", err)
	}
	if p.Upvotes != 1 || p.Downvotes != 0 {
		t.Errorf("votes = %d up %d down, want 1/0", p.Upvotes, p.Downvotes)
	}
}

func TestVoteRejectsBadDirection(t *testing.T) {
	env := newTestServer(t, nil)
	seedPattern(t, env.patterns, "pat-001")
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	body := bytes.NewBufferString(`{"direction":"sideways"}`)
	resp, err := http.Post(ts.URL+"/api/v1/patterns/pat-001/vote", "application/json", body)
	if err != nil {
		t.Fatalf("vote request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestVoteUnknownPattern(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	body := bytes.NewBufferString(`{"direction":"down"}`)
	resp, err := http.Post(ts.URL+"/api/v1/patterns/no-such/vote", "application/json", body)
	if err != nil {
		t.Fatalf("vote request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	var errBody ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if errBody.Kind != "NotFound" {
		t.Errorf("kind = %s, want NotFound", errBody.Kind)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebSocketFeedDeliversEvents(t *testing.T) {
	env := newTestServer(t, nil)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	readEvent := func() Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return ev
	}

	if ev := readEvent(); ev.Type != EventConnected {
		t.Fatalf("first event = %s, want %s", ev.Type, EventConnected)
	}

	env.server.Hub().BroadcastEvent(Event{
		Type:      EventCycleCompleted,
		Timestamp: time.Now(),
		Data:      map[string]interface{}{"cycle": 1},
	})

	ev := readEvent()
	if ev.Type != EventCycleCompleted {
		t.Errorf("event type = %s, want %s", ev.Type, EventCycleCompleted)
	}
	if ev.Data["cycle"] != float64(1) {
		t.Errorf("event cycle = %v, want 1", ev.Data["cycle"])
	}
}
