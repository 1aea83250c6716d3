//go:build integration

package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Alias1177/PickGate/models"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func setupTestDB(t *testing.T) *DB {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("Skipping integration test: TEST_DB_HOST not set")
	}
	db, err := New(context.Background(), ConnectionParams{
		Host:     host,
		Port:     os.Getenv("TEST_DB_PORT"),
		User:     os.Getenv("TEST_DB_USER"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
		DBName:   os.Getenv("TEST_DB_NAME"),
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestIntegration_RecordDecision(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rec := models.DecisionRecord{
		DecisionID:     uuid.NewString(),
		PredictionID:   "pred-1",
		MatchID:        "match-1",
		RunID:          "run-" + uuid.NewString(),
		UserID:         "user-1",
		TraceID:        uuid.NewString(),
		Status:         models.StatusHardStop,
		Rationale:      "Hard-stop conditions met",
		HardStopReason: "daily_loss_limit",
		GateOutcomes:   []models.GateOutcome{{GateName: models.GateHardStop, Score: 1.5, Threshold: 1, Reason: "limit"}},
		ExecutedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
	if err := db.RecordDecision(ctx, rec); err != nil {
		t.Fatalf("RecordDecision: %v", err)
	}

	got, err := db.GetDecision(ctx, rec.DecisionID)
	if err != nil {
		t.Fatalf("GetDecision: %v", err)
	}
	if diff := cmp.Diff(rec, *got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	var events int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decision_audit_log WHERE decision_id = $1`, rec.DecisionID).Scan(&events); err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	if events != 2 {
		t.Errorf("expected 2 audit events, got %d", events)
	}
}
