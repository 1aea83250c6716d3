package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Alias1177/PickGate/internal/engine"
	"github.com/Alias1177/PickGate/internal/governance"
	"github.com/Alias1177/PickGate/models"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func setEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SECONDARY_MODEL_ID", "MODEL_REGISTRY_URL", "POLICY_FILE", "DB_ENABLED", "TELEGRAM_BOT_TOKEN",
		"CONFIDENCE_MIN", "EDGE_MIN", "MAX_DRIFT_SCORE", "FALLBACK_LEVELS", "RELIABILITY_THRESHOLD",
		"DAILY_LOSS_LIMIT", "CONSECUTIVE_LOSS_LIMIT", "BANKROLL_EXPOSURE_PCT", "MAX_DATA_AGE_MIN",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("PRIMARY_MODEL_ID", "model-a")
	t.Setenv("LAST_VALIDATED_MODEL_ID", "model-v")
}

func TestValidateProfileCommand(t *testing.T) {
	tests := []struct {
		name      string
		profile   string
		wantErr   error
		wantValid bool
	}{
		{"yaml within bounds", "confidenceMin: 0.8\nedgeMin: 0.1\n", nil, true},
		{"json below minimum", `{"confidenceMin": 0.60}`, errInvalidProfile, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", "validate-profile", "--file", writeFile(t, "profile.yaml", tt.profile))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var res governance.ValidationResult
			if err := json.Unmarshal([]byte(out), &res); err != nil {
				t.Fatalf("decode output %q: %v", out, err)
			}
			if res.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", res.Valid, tt.wantValid)
			}
		})
	}
}

func TestSanitizeProfileCommand(t *testing.T) {
	out, err := run(t, "edgeMin: 0.9\nmaxDriftScore: 0.1\n", "sanitize-profile", "-f", "-")
	if err != nil {
		t.Fatalf("sanitize-profile: %v", err)
	}
	for _, want := range []string{"edgeMin: 0.5", "maxDriftScore: 0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q does not contain %q", out, want)
		}
	}
	if strings.Contains(out, "confidenceMin") {
		t.Errorf("absent field should stay absent, got %q", out)
	}
}

func TestEvaluateCommand(t *testing.T) {
	setEnv(t)

	req := `{
		"prediction": {"id": "p-1", "matchId": "m-1", "runId": "r-1", "userId": "u-1",
			"confidence": 0.85, "edge": 0.1, "modelVersion": "v3"},
		"context": {"runId": "r-1", "traceId": "cli-trace", "currentBankroll": "5000"}
	}`
	out, err := run(t, "", "evaluate", "--file", writeFile(t, "req.json", req))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	var res engine.EvaluateResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	// no directional call: source availability fails at every level
	if res.Status != models.StatusNoBet || res.NoBetReason != models.NoBetReasonDegradedDataQuality {
		t.Errorf("got %s/%s, want NO_BET/degraded_data_quality", res.Status, res.NoBetReason)
	}
	if res.FallbackContext == nil || !res.FallbackContext.WasForcedNoBet {
		t.Errorf("expected a forced no-bet fallback context, got %+v", res.FallbackContext)
	}
	if res.TraceID != "cli-trace" {
		t.Errorf("TraceID = %q, want cli-trace", res.TraceID)
	}
}

func TestEvaluateCommandBatch(t *testing.T) {
	setEnv(t)

	req := `[
		{"prediction": {"id": "a", "matchId": "m", "runId": "r", "userId": "u", "confidence": 0.9, "edge": 0.2, "predictedWinner": "HOME", "modelVersion": "v"}},
		{"prediction": {"confidence": 7}}
	]`
	out, err := run(t, req, "evaluate", "-f", "-")
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var lines []struct {
		Decision *engine.EvaluateResult `json:"decision"`
		Error    string                 `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Decision == nil || lines[0].Decision.Status != models.StatusPick {
		t.Errorf("first line = %+v, want PICK", lines[0])
	}
	if lines[1].Error == "" {
		t.Error("second line should carry a validation error")
	}
}

func TestEvaluateCommandMissingConfig(t *testing.T) {
	setEnv(t)
	t.Setenv("PRIMARY_MODEL_ID", "")

	_, err := run(t, `{"prediction": {"confidence": 0.9}}`, "evaluate", "-f", "-")
	if !errors.Is(err, models.ErrMissingRequired) {
		t.Errorf("expected ErrMissingRequired, got %v", err)
	}
}
