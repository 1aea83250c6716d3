package fallback

import (
	"fmt"
	"strings"

	"github.com/Alias1177/PickGate/models"
)

// Level names as they appear in configuration
const (
	LevelPrimary       = "primary"
	LevelSecondary     = "secondary"
	LevelLastValidated = "last_validated"
	LevelForceNoBet    = "force_no_bet"
)

// DefaultLevels is the standard chain order
var DefaultLevels = []string{LevelPrimary, LevelSecondary, LevelLastValidated, LevelForceNoBet}

type levelKind int

const (
	kindModel levelKind = iota
	kindForcedNoBet
)

// Level is one step of the chain: either a model to resolve through the registry
// or the terminal forced no-bet sentinel, which has no model id.
type Level struct {
	kind    levelKind
	name    string
	modelID string
}

// ModelLevel creates a level backed by a registry model
func ModelLevel(name, modelID string) Level {
	return Level{kind: kindModel, name: name, modelID: modelID}
}

// ForcedNoBetLevel creates the terminal sentinel level
func ForcedNoBetLevel() Level {
	return Level{kind: kindForcedNoBet, name: LevelForceNoBet}
}

// Name returns the configured level name
func (l Level) Name() string { return l.name }

// IsForcedNoBet reports whether l is the sentinel level
func (l Level) IsForcedNoBet() bool { return l.kind == kindForcedNoBet }

// ModelID returns the model to resolve; ok is false for the sentinel
func (l Level) ModelID() (id string, ok bool) {
	if l.kind != kindModel {
		return "", false
	}
	return l.modelID, true
}

// ParseLevels maps level names to levels using the model ids of cfg.
// A model level with no configured id is kept; it is skipped at evaluation time.
func ParseLevels(names []string, cfg ChainConfig) ([]Level, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one fallback level is required", models.ErrInvalidChainConfig)
	}
	if len(names) > MaxLevels {
		return nil, fmt.Errorf("%w: %d fallback levels exceed the maximum of %d", models.ErrInvalidChainConfig, len(names), MaxLevels)
	}

	levels := make([]Level, 0, len(names))
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		switch name {
		case LevelPrimary:
			levels = append(levels, ModelLevel(name, cfg.PrimaryModelID))
		case LevelSecondary:
			levels = append(levels, ModelLevel(name, cfg.SecondaryModelID))
		case LevelLastValidated:
			levels = append(levels, ModelLevel(name, cfg.LastValidatedModelID))
		case LevelForceNoBet:
			levels = append(levels, ForcedNoBetLevel())
		default:
			return nil, fmt.Errorf("%w: unknown fallback level %q", models.ErrInvalidChainConfig, raw)
		}
	}
	return levels, nil
}
