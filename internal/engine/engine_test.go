package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/PickGate/internal/database"
	"github.com/Alias1177/PickGate/internal/fallback"
	"github.com/Alias1177/PickGate/internal/policy"
	"github.com/Alias1177/PickGate/internal/registry"
	"github.com/Alias1177/PickGate/internal/risk"
	"github.com/Alias1177/PickGate/internal/trace"
	"github.com/Alias1177/PickGate/models"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T { return &v }

type stubFallback struct {
	mu       sync.Mutex
	calls    int
	decision models.FallbackDecision
}

func (s *stubFallback) Evaluate(ctx context.Context, _ models.PredictionInput) models.FallbackDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	d := s.decision
	d.TraceID = trace.FromContext(ctx)
	return d
}

func forcedNoBet() models.FallbackDecision {
	return models.FallbackDecision{
		PolicyDecision: models.PolicyDecision{
			Status:            models.StatusNoBet,
			Rationale:         "All fallback levels failed data quality (threshold 0.50, best score 0.45)",
			NoBetReason:       models.NoBetReasonDegradedDataQuality,
			RecommendedAction: "Wait for fresh data",
		},
		FallbackContext: models.FallbackContext{FinalLevel: fallback.LevelForceNoBet, QualityScore: 0.45, WasForcedNoBet: true},
	}
}

func fallbackPick() models.FallbackDecision {
	return models.FallbackDecision{
		PolicyDecision:  models.PolicyDecision{Status: models.StatusPick, Rationale: "Data quality passed at secondary level"},
		FallbackContext: models.FallbackContext{FinalLevel: fallback.LevelSecondary, QualityScore: 0.8},
	}
}

type recordingNotifier struct {
	mu   sync.Mutex
	recs []models.DecisionRecord
	err  error
}

func (n *recordingNotifier) NotifyHardStop(_ context.Context, rec models.DecisionRecord) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recs = append(n.recs, rec)
	return n.err
}

type failingRecorder struct{}

func (failingRecorder) RecordDecision(context.Context, models.DecisionRecord) error {
	return errors.New("database unavailable")
}

func completePrediction() models.PredictionInput {
	return models.PredictionInput{
		ID: "pred-1", MatchID: "match-1", RunID: "run-1", UserID: "user-1",
		Confidence:      0.82,
		Edge:            ptr(0.12),
		DriftScore:      ptr(0.04),
		PredictedWinner: ptr("HOME"),
		ModelVersion:    "v3",
	}
}

func calm() *models.RunContext {
	return &models.RunContext{
		RunID:           "run-1",
		TraceID:         "trace-1",
		CurrentBankroll: decimal.NewFromInt(10000),
		ExecutedAt:      time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC),
	}
}

func newEngine(t *testing.T, fb FallbackRunner, rec Recorder, n *recordingNotifier) *Engine {
	t.Helper()
	deps := Deps{
		Evaluator: policy.NewEvaluator(policy.DefaultThresholds(), risk.DefaultLimits()),
		Fallback:  fb,
		Recorder:  rec,
	}
	if n != nil {
		deps.Notifier = n
	}
	e, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestEvaluate(t *testing.T) {
	hardStopRun := calm()
	hardStopRun.ConsecutiveLosses = 6

	noDirection := completePrediction()
	noDirection.PredictedWinner = nil

	lowConfidence := completePrediction()
	lowConfidence.Confidence = 0.4

	tests := []struct {
		name          string
		req           EvaluateRequest
		fb            models.FallbackDecision
		wantStatus    models.DecisionStatus
		wantReason    string
		wantFallback  bool
		wantFallCalls int
		wantAlerts    int
	}{
		{
			name:       "complete prediction picks without fallback",
			req:        EvaluateRequest{Prediction: completePrediction(), Context: calm()},
			fb:         forcedNoBet(),
			wantStatus: models.StatusPick,
		},
		{
			name:          "flagged pick downgraded by forced no-bet",
			req:           EvaluateRequest{Prediction: completePrediction(), Context: calm(), DataQualityFlagged: true},
			fb:            forcedNoBet(),
			wantStatus:    models.StatusNoBet,
			wantReason:    models.NoBetReasonDegradedDataQuality,
			wantFallback:  true,
			wantFallCalls: 1,
		},
		{
			name:          "missing direction routed through fallback",
			req:           EvaluateRequest{Prediction: noDirection, Context: calm()},
			fb:            fallbackPick(),
			wantStatus:    models.StatusPick,
			wantFallback:  true,
			wantFallCalls: 1,
		},
		{
			name:          "gate no-bet keeps its own reason",
			req:           EvaluateRequest{Prediction: lowConfidence, Context: calm(), DataQualityFlagged: true},
			fb:            forcedNoBet(),
			wantStatus:    models.StatusNoBet,
			wantReason:    models.NoBetReasonLowConfidence,
			wantFallback:  true,
			wantFallCalls: 1,
		},
		{
			name:       "hard stop skips fallback and alerts",
			req:        EvaluateRequest{Prediction: noDirection, Context: hardStopRun, DataQualityFlagged: true},
			fb:         fallbackPick(),
			wantStatus: models.StatusHardStop,
			wantAlerts: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &stubFallback{decision: tt.fb}
			rec := database.NewMemoryRecorder()
			n := &recordingNotifier{}
			e := newEngine(t, fb, rec, n)

			res, err := e.Evaluate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", res.Status, tt.wantStatus)
			}
			if res.NoBetReason != tt.wantReason {
				t.Errorf("NoBetReason = %q, want %q", res.NoBetReason, tt.wantReason)
			}
			if (res.FallbackContext != nil) != tt.wantFallback {
				t.Errorf("FallbackContext = %+v, want present=%v", res.FallbackContext, tt.wantFallback)
			}
			if fb.calls != tt.wantFallCalls {
				t.Errorf("fallback calls = %d, want %d", fb.calls, tt.wantFallCalls)
			}
			if len(n.recs) != tt.wantAlerts {
				t.Errorf("alerts = %d, want %d", len(n.recs), tt.wantAlerts)
			}
			if len(res.GateOutcomes) != 4 {
				t.Errorf("expected four gate outcomes, got %d", len(res.GateOutcomes))
			}
			if res.TraceID != "trace-1" {
				t.Errorf("TraceID = %q, want trace-1", res.TraceID)
			}

			stored, err := rec.GetDecision(context.Background(), res.DecisionID)
			if err != nil {
				t.Fatalf("GetDecision: %v", err)
			}
			if stored.Status != res.Status || stored.PredictionID != "pred-1" || stored.RunID != "run-1" {
				t.Errorf("stored record %+v does not match result %+v", stored, res)
			}
		})
	}
}

func TestEvaluateFillsRunContext(t *testing.T) {
	e := newEngine(t, nil, nil, nil)

	res, err := e.Evaluate(context.Background(), EvaluateRequest{Prediction: completePrediction()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TraceID == "" {
		t.Error("expected a generated trace id")
	}
	if res.Timestamp.IsZero() || res.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want a UTC time", res.Timestamp)
	}
	if res.Status != models.StatusPick {
		t.Errorf("Status = %s, want PICK", res.Status)
	}

	ctx := trace.WithID(context.Background(), "from-header")
	res, err = e.Evaluate(ctx, EvaluateRequest{Prediction: completePrediction()})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.TraceID != "from-header" {
		t.Errorf("TraceID = %q, want from-header", res.TraceID)
	}
}

func TestEvaluateValidationError(t *testing.T) {
	rec := database.NewMemoryRecorder()
	e := newEngine(t, nil, rec, nil)

	in := completePrediction()
	in.Confidence = 1.5
	_, err := e.Evaluate(context.Background(), EvaluateRequest{Prediction: in, Context: calm()})

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if rec.Len() != 0 {
		t.Errorf("rejected predictions must not be recorded, got %d", rec.Len())
	}
}

func TestEvaluateRecorderAndNotifierErrors(t *testing.T) {
	hardStopRun := calm()
	hardStopRun.DailyLoss = decimal.NewFromInt(5000)

	_, err := newEngine(t, nil, failingRecorder{}, nil).
		Evaluate(context.Background(), EvaluateRequest{Prediction: completePrediction(), Context: calm()})
	if err == nil {
		t.Error("expected recorder error to be returned")
	}

	n := &recordingNotifier{err: errors.New("telegram down")}
	res, err := newEngine(t, nil, database.NewMemoryRecorder(), n).
		Evaluate(context.Background(), EvaluateRequest{Prediction: completePrediction(), Context: hardStopRun})
	if err != nil {
		t.Fatalf("notifier errors must not fail the evaluation: %v", err)
	}
	if res.Status != models.StatusHardStop {
		t.Errorf("Status = %s, want HARD_STOP", res.Status)
	}
}

func TestEvaluateWithRealChain(t *testing.T) {
	reg := registry.NewStatic(
		models.ModelInfo{ID: "primary-model", Version: "v3", Validated: true},
		models.ModelInfo{ID: "validated-model", Version: "v2", Validated: true},
	)
	chain, err := fallback.NewChain(fallback.ChainConfig{
		PrimaryModelID:       "primary-model",
		LastValidatedModelID: "validated-model",
		ReliabilityThreshold: 0.5,
		Levels:               fallback.DefaultLevels,
	}, reg, nil)
	if err != nil {
		t.Fatalf("NewChain: %v", err)
	}
	e := newEngine(t, chain, nil, nil)

	in := completePrediction()
	in.PredictedWinner = nil
	in.PredictedHomeScore = ptr(2)
	in.PredictedAwayScore = ptr(1)
	in.PredictedOverUnder = ptr(2.5)

	res, err := e.Evaluate(context.Background(), EvaluateRequest{Prediction: in, Context: calm(), DataQualityFlagged: true})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.Status != models.StatusPick {
		t.Fatalf("Status = %s, want PICK (%s)", res.Status, res.Rationale)
	}
	if res.FallbackContext == nil || res.FallbackContext.FinalLevel != fallback.LevelPrimary {
		t.Errorf("expected the primary level to pass, got %+v", res.FallbackContext)
	}
}

func TestEvaluateBatch(t *testing.T) {
	rec := database.NewMemoryRecorder()
	e := newEngine(t, &stubFallback{decision: forcedNoBet()}, rec, nil)

	bad := completePrediction()
	bad.Confidence = -1

	reqs := make([]EvaluateRequest, 0, 20)
	for i := 0; i < 20; i++ {
		p := completePrediction()
		if i%5 == 0 {
			p = bad
		}
		reqs = append(reqs, EvaluateRequest{Prediction: p})
	}

	items, err := e.EvaluateBatch(context.Background(), reqs)
	if err != nil {
		t.Fatalf("EvaluateBatch: %v", err)
	}
	var statuses []string
	for i, it := range items {
		if i%5 == 0 {
			if it.Err == nil {
				t.Errorf("item %d: expected validation error", i)
			}
			statuses = append(statuses, "error")
			continue
		}
		if it.Err != nil {
			t.Fatalf("item %d: %v", i, it.Err)
		}
		statuses = append(statuses, string(it.Result.Status))
	}

	want := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		if i%5 == 0 {
			want = append(want, "error")
		} else {
			want = append(want, string(models.StatusPick))
		}
	}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("batch statuses mismatch (-want +got):\n%s", diff)
	}
	if rec.Len() != 16 {
		t.Errorf("recorded %d decisions, want 16", rec.Len())
	}
}

func TestEvaluateBatchCancelled(t *testing.T) {
	e := newEngine(t, nil, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items, err := e.EvaluateBatch(ctx, []EvaluateRequest{{Prediction: completePrediction()}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(items[0].Err, context.Canceled) {
		t.Errorf("item error = %v, want context.Canceled", items[0].Err)
	}
}

func TestNewRequiresEvaluator(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("expected error without evaluator")
	}
}
