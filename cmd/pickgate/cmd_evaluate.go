package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Alias1177/PickGate/internal/config"
	"github.com/Alias1177/PickGate/internal/engine"
	"github.com/spf13/cobra"
)

type evaluateFlags struct {
	file    string
	flagged bool
	persist bool
}

func newEvaluateCmd() *cobra.Command {
	var flags evaluateFlags

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate one prediction or a JSON array of predictions",
		Long: `Reads an evaluate request ({"prediction": {...}, "context": {...}}) or an array
of them from --file ("-" for stdin) and prints the decisions as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEvaluate(cmd, flags)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Request JSON file, - for stdin (required)")
	f.BoolVar(&flags.flagged, "flagged", false, "Mark every prediction as having a data quality concern")
	f.BoolVar(&flags.persist, "persist", false, "Record decisions to PostgreSQL when DB_ENABLED is set")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runEvaluate(cmd *cobra.Command, flags evaluateFlags) error {
	raw, err := readInput(cmd, flags.file)
	if err != nil {
		return err
	}
	reqs, batch, err := parseRequests(raw)
	if err != nil {
		return err
	}
	for i := range reqs {
		reqs[i].DataQualityFlagged = reqs[i].DataQualityFlagged || flags.flagged
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a, err := buildApp(cmd.Context(), cfg, flags.persist)
	if err != nil {
		return err
	}
	defer a.close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if !batch {
		res, err := a.engine.Evaluate(cmd.Context(), reqs[0])
		if err != nil {
			return err
		}
		return enc.Encode(res)
	}

	items, err := a.engine.EvaluateBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}
	type line struct {
		Decision *engine.EvaluateResult `json:"decision,omitempty"`
		Error    string                 `json:"error,omitempty"`
	}
	out := make([]line, len(items))
	for i, it := range items {
		out[i].Decision = it.Result
		if it.Err != nil {
			out[i].Error = it.Err.Error()
		}
	}
	return enc.Encode(out)
}

// parseRequests accepts a single request object or an array of them
func parseRequests(raw []byte) ([]engine.EvaluateRequest, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty request")
	}
	if trimmed[0] == '[' {
		var reqs []engine.EvaluateRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return nil, false, fmt.Errorf("parse requests: %w", err)
		}
		if len(reqs) == 0 {
			return nil, false, fmt.Errorf("empty request array")
		}
		return reqs, true, nil
	}
	var req engine.EvaluateRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, false, fmt.Errorf("parse request: %w", err)
	}
	return []engine.EvaluateRequest{req}, false, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}
