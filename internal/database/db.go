package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Alias1177/PickGate/models"
	_ "github.com/lib/pq"
)

// Audit events written alongside each decision
const (
	EventDecisionRecorded = "decision_recorded"
	EventHardStop         = "hard_stop_triggered"
	EventFallbackForced   = "fallback_forced_no_bet"
)

// ErrDecisionNotFound is returned when no decision has the requested id
var ErrDecisionNotFound = errors.New("decision not found")

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders params as a lib/pq connection string
func (p ConnectionParams) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode,
	)
}

// New creates a new database connection
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// Create tables if they don't exist
	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS policy_decisions (
			decision_id TEXT PRIMARY KEY,
			prediction_id TEXT NOT NULL,
			match_id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			status TEXT NOT NULL,
			rationale TEXT NOT NULL,
			no_bet_reason TEXT,
			hard_stop_reason TEXT,
			recommended_action TEXT,
			gate_outcomes JSONB NOT NULL,
			fallback_context JSONB,
			model_version TEXT,
			executed_at TIMESTAMPTZ NOT NULL,
			processing_time_ms DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS decision_audit_log (
			id BIGSERIAL PRIMARY KEY,
			decision_id TEXT NOT NULL REFERENCES policy_decisions(decision_id),
			event TEXT NOT NULL,
			trace_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS policy_decisions_run_idx ON policy_decisions (run_id, executed_at)
	`)
	return err
}

// RecordDecision stores the decision and its audit events in one transaction
func (db *DB) RecordDecision(ctx context.Context, rec models.DecisionRecord) error {
	gates, err := json.Marshal(rec.GateOutcomes)
	if err != nil {
		return fmt.Errorf("encode gate outcomes: %w", err)
	}
	var fallback []byte
	if rec.FallbackContext != nil {
		if fallback, err = json.Marshal(rec.FallbackContext); err != nil {
			return fmt.Errorf("encode fallback context: %w", err)
		}
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit payload: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO policy_decisions (
			decision_id, prediction_id, match_id, run_id, user_id, trace_id, status, rationale,
			no_bet_reason, hard_stop_reason, recommended_action, gate_outcomes, fallback_context,
			model_version, executed_at, processing_time_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		rec.DecisionID, rec.PredictionID, rec.MatchID, rec.RunID, rec.UserID, rec.TraceID,
		string(rec.Status), rec.Rationale, nullString(rec.NoBetReason), nullString(rec.HardStopReason),
		nullString(rec.RecommendedAction), string(gates), nullJSON(fallback), nullString(rec.ModelVersion),
		rec.ExecutedAt, rec.ProcessingTimeMs)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}

	now := time.Now().UTC()
	for _, event := range AuditEvents(rec) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO decision_audit_log (decision_id, event, trace_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.DecisionID, event, rec.TraceID, string(payload), now)
		if err != nil {
			return fmt.Errorf("insert audit event %s: %w", event, err)
		}
	}

	return tx.Commit()
}

// GetDecision retrieves a decision by id
func (db *DB) GetDecision(ctx context.Context, decisionID string) (*models.DecisionRecord, error) {
	row := db.QueryRowContext(ctx, selectDecision+` WHERE decision_id = $1`, decisionID)
	rec, err := scanDecision(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDecisionNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ListByRun returns the decisions of one run in execution order
func (db *DB) ListByRun(ctx context.Context, runID string) ([]models.DecisionRecord, error) {
	rows, err := db.QueryContext(ctx, selectDecision+` WHERE run_id = $1 ORDER BY executed_at`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DecisionRecord
	for rows.Next() {
		rec, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// AuditEvents lists the audit events a record produces. Every record gets
// EventDecisionRecorded; hard stops and forced fallbacks are flagged on top.
func AuditEvents(rec models.DecisionRecord) []string {
	events := []string{EventDecisionRecorded}
	if rec.Status == models.StatusHardStop {
		events = append(events, EventHardStop)
	}
	if rec.FallbackContext != nil && rec.FallbackContext.WasForcedNoBet {
		events = append(events, EventFallbackForced)
	}
	return events
}

const selectDecision = `
	SELECT
		decision_id, prediction_id, match_id, run_id, user_id, trace_id, status, rationale,
		no_bet_reason, hard_stop_reason, recommended_action, gate_outcomes, fallback_context,
		model_version, executed_at, processing_time_ms
	FROM policy_decisions`

type scanner interface {
	Scan(dest ...any) error
}

func scanDecision(s scanner) (*models.DecisionRecord, error) {
	var rec models.DecisionRecord
	var status string
	var noBet, hardStop, action, modelVersion sql.NullString
	var gates, fallback []byte

	err := s.Scan(
		&rec.DecisionID, &rec.PredictionID, &rec.MatchID, &rec.RunID, &rec.UserID, &rec.TraceID,
		&status, &rec.Rationale, &noBet, &hardStop, &action, &gates, &fallback,
		&modelVersion, &rec.ExecutedAt, &rec.ProcessingTimeMs,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = models.DecisionStatus(status)
	rec.NoBetReason = noBet.String
	rec.HardStopReason = hardStop.String
	rec.RecommendedAction = action.String
	rec.ModelVersion = modelVersion.String
	rec.ExecutedAt = rec.ExecutedAt.UTC()

	if err := json.Unmarshal(gates, &rec.GateOutcomes); err != nil {
		return nil, fmt.Errorf("decode gate outcomes: %w", err)
	}
	if len(fallback) > 0 {
		var fc models.FallbackContext
		if err := json.Unmarshal(fallback, &fc); err != nil {
			return nil, fmt.Errorf("decode fallback context: %w", err)
		}
		rec.FallbackContext = &fc
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullJSON passes JSON as text; lib/pq would send raw []byte as bytea
func nullJSON(b []byte) sql.NullString {
	return sql.NullString{String: string(b), Valid: b != nil}
}
