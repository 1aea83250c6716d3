package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/PickGate/internal/database"
	"github.com/Alias1177/PickGate/internal/fallback"
	"github.com/Alias1177/PickGate/internal/governance"
	"github.com/Alias1177/PickGate/internal/policy"
	"github.com/Alias1177/PickGate/internal/risk"
	"github.com/Alias1177/PickGate/models"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Chain      fallback.ChainConfig
	Thresholds policy.Thresholds
	Limits     risk.Limits
	// Warnings are the HIGH_RISK findings of the applied profile
	Warnings []governance.Issue

	RegistryURL   string
	RegistryTTL   time.Duration
	MaxDataAge    time.Duration
	DB            database.ConnectionParams
	DBEnabled     bool
	TelegramToken string
	TelegramChat  int64
	LogLevel      string
	LogPretty     bool
	HTTPAddr      string
	PolicyFile    string
	BatchWorkers  int
}

// policyFile is the optional YAML override of thresholds and limits
type policyFile struct {
	Profile governance.ProfileConfig `yaml:"profile"`
	Limits  struct {
		DailyLossLimit       *float64 `yaml:"dailyLossLimit"`
		ConsecutiveLossLimit *int     `yaml:"consecutiveLossLimit"`
		BankrollExposurePct  *float64 `yaml:"bankrollExposurePct"`
	} `yaml:"limits"`
}

// Load initializes configuration from environment variables and the optional policy file.
// Missing model ids wrap models.ErrMissingRequired; a profile crossing a hard-stop
// boundary returns a *governance.Violation.
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current process environment only
func FromEnv() (*Config, error) {
	var cfg Config

	cfg.Chain = fallback.ChainConfig{
		PrimaryModelID:       strings.TrimSpace(os.Getenv("PRIMARY_MODEL_ID")),
		SecondaryModelID:     strings.TrimSpace(os.Getenv("SECONDARY_MODEL_ID")),
		LastValidatedModelID: strings.TrimSpace(os.Getenv("LAST_VALIDATED_MODEL_ID")),
		ReliabilityThreshold: getEnvFloatWithDefault("RELIABILITY_THRESHOLD", 0.5),
		Levels:               getEnvListWithDefault("FALLBACK_LEVELS", fallback.DefaultLevels),
		LookupTimeout:        time.Duration(getEnvIntWithDefault("MODEL_LOOKUP_TIMEOUT_MS", 2000)) * time.Millisecond,
	}
	if cfg.Chain.PrimaryModelID == "" {
		return nil, fmt.Errorf("%w: PRIMARY_MODEL_ID", models.ErrMissingRequired)
	}
	if cfg.Chain.LastValidatedModelID == "" {
		return nil, fmt.Errorf("%w: LAST_VALIDATED_MODEL_ID", models.ErrMissingRequired)
	}

	cfg.RegistryURL = os.Getenv("MODEL_REGISTRY_URL")
	cfg.RegistryTTL = time.Duration(getEnvIntWithDefault("MODEL_REGISTRY_CACHE_SEC", 30)) * time.Second
	cfg.MaxDataAge = time.Duration(getEnvIntWithDefault("MAX_DATA_AGE_MIN", 0)) * time.Minute

	cfg.Limits = risk.Limits{
		DailyLossLimit:       getEnvDecimalWithDefault("DAILY_LOSS_LIMIT", risk.DefaultLimits().DailyLossLimit),
		ConsecutiveLossLimit: getEnvIntWithDefault("CONSECUTIVE_LOSS_LIMIT", risk.DefaultLimits().ConsecutiveLossLimit),
		BankrollExposurePct:  getEnvDecimalWithDefault("BANKROLL_EXPOSURE_PCT", risk.DefaultLimits().BankrollExposurePct),
	}

	profile := governance.ProfileConfig{
		ConfidenceMin: getEnvFloatPtr("CONFIDENCE_MIN"),
		EdgeMin:       getEnvFloatPtr("EDGE_MIN"),
		MaxDriftScore: getEnvFloatPtr("MAX_DRIFT_SCORE"),
	}

	cfg.PolicyFile = os.Getenv("POLICY_FILE")
	if cfg.PolicyFile != "" {
		pf, err := readPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		profile = overlay(profile, pf.Profile)
		if pf.Limits.DailyLossLimit != nil {
			cfg.Limits.DailyLossLimit = decimal.NewFromFloat(*pf.Limits.DailyLossLimit)
		}
		if pf.Limits.ConsecutiveLossLimit != nil {
			cfg.Limits.ConsecutiveLossLimit = *pf.Limits.ConsecutiveLossLimit
		}
		if pf.Limits.BankrollExposurePct != nil {
			cfg.Limits.BankrollExposurePct = decimal.NewFromFloat(*pf.Limits.BankrollExposurePct)
		}
	}

	if err := cfg.Limits.Validate(); err != nil {
		return nil, err
	}
	for _, name := range cfg.Limits.Zero() {
		log.Warn().Str("limit", name).Msg("Risk limit is 0, every prediction will hard-stop")
	}

	thresholds, err := governance.ApplyProfile(policy.DefaultThresholds(), profile)
	if err != nil {
		return nil, err
	}
	cfg.Thresholds = thresholds
	cfg.Warnings = governance.ValidateProfileConfig(profile).Warnings

	cfg.DB = database.ConnectionParams{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     getEnvWithDefault("DB_USER", "postgres"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "pickgate"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}
	cfg.DBEnabled = getEnvBoolWithDefault("DB_ENABLED", false)

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChat = int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0))

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogPretty = getEnvBoolWithDefault("LOG_PRETTY", false)
	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")
	cfg.BatchWorkers = getEnvIntWithDefault("BATCH_WORKERS", 8)

	return &cfg, nil
}

func readPolicyFile(path string) (*policyFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf policyFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	return &pf, nil
}

// overlay returns base with every field set in top replacing it
func overlay(base, top governance.ProfileConfig) governance.ProfileConfig {
	if top.ConfidenceMin != nil {
		base.ConfidenceMin = top.ConfidenceMin
	}
	if top.EdgeMin != nil {
		base.EdgeMin = top.EdgeMin
	}
	if top.MaxDriftScore != nil {
		base.MaxDriftScore = top.MaxDriftScore
	}
	return base
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid integer, using default")
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid number, using default")
	}
	return defaultValue
}

// getEnvFloatPtr returns nil when key is unset so the profile leaves the field alone.
// Unparseable values become NaN and are rejected by governance.
func getEnvFloatPtr(key string) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		f = math.NaN()
	}
	return &f
}

func getEnvDecimalWithDefault(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Invalid decimal, using default")
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
