package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Alias1177/PickGate/internal/governance"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errInvalidProfile makes validate-profile exit non-zero after printing the result
var errInvalidProfile = errors.New("profile violates platform hard-stop boundaries")

func newValidateProfileCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate-profile",
		Short: "Check a policy profile (YAML or JSON) against the hard-stop boundaries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readProfile(cmd, file)
			if err != nil {
				return err
			}
			res := governance.ValidateProfileConfig(cfg)
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if !res.Valid {
				return errInvalidProfile
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Profile file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSanitizeProfileCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "sanitize-profile",
		Short: "Clamp a policy profile into the hard-stop boundaries and print it as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readProfile(cmd, file)
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(governance.SanitizeConfig(cfg))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Profile file, - for stdin (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// readProfile parses YAML; JSON profiles parse as YAML too
func readProfile(cmd *cobra.Command, path string) (governance.ProfileConfig, error) {
	var cfg governance.ProfileConfig
	raw, err := readInput(cmd, path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse profile: %w", err)
	}
	return cfg, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
