package risk

import (
	"errors"
	"fmt"

	"github.com/Alias1177/PickGate/models"
	"github.com/shopspring/decimal"
)

// Hard-stop condition names
const (
	ConditionDailyLoss         = "daily_loss_limit"
	ConditionConsecutiveLosses = "consecutive_losses_limit"
	ConditionBankrollExposure  = "bankroll_exposure_limit"
)

var hundred = decimal.NewFromInt(100)

// ErrInvalidLimits marks limits that cannot be enforced
var ErrInvalidLimits = errors.New("invalid risk limits")

// Limits are the run-level risk limits. Every limit is always enforced: a zero limit
// is met by any run, so it halts every prediction.
type Limits struct {
	DailyLossLimit       decimal.Decimal `yaml:"dailyLossLimit" json:"dailyLossLimit"`
	ConsecutiveLossLimit int             `yaml:"consecutiveLossLimit" json:"consecutiveLossLimit"`
	BankrollExposurePct  decimal.Decimal `yaml:"bankrollExposurePct" json:"bankrollExposurePct"` // percent of current bankroll
}

// DefaultLimits returns the platform risk limits
func DefaultLimits() Limits {
	return Limits{
		DailyLossLimit:       decimal.NewFromInt(1000),
		ConsecutiveLossLimit: 5,
		BankrollExposurePct:  decimal.NewFromInt(10),
	}
}

// Validate rejects negative limits
func (l Limits) Validate() error {
	var bad []string
	if l.DailyLossLimit.IsNegative() {
		bad = append(bad, "dailyLossLimit "+l.DailyLossLimit.String())
	}
	if l.ConsecutiveLossLimit < 0 {
		bad = append(bad, fmt.Sprintf("consecutiveLossLimit %d", l.ConsecutiveLossLimit))
	}
	if l.BankrollExposurePct.IsNegative() {
		bad = append(bad, "bankrollExposurePct "+l.BankrollExposurePct.String())
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: negative %v", ErrInvalidLimits, bad)
	}
	return nil
}

// Zero returns the names of limits set to zero
func (l Limits) Zero() []string {
	var out []string
	if l.DailyLossLimit.IsZero() {
		out = append(out, ConditionDailyLoss)
	}
	if l.ConsecutiveLossLimit == 0 {
		out = append(out, ConditionConsecutiveLosses)
	}
	if l.BankrollExposurePct.IsZero() {
		out = append(out, ConditionBankrollExposure)
	}
	return out
}

// Condition is one evaluated hard-stop condition
type Condition struct {
	Name  string
	Value decimal.Decimal
	Limit decimal.Decimal
	Met   bool
}

// Utilization is Value/Limit, the share of the limit already consumed.
// A zero limit is fully used.
func (c Condition) Utilization() float64 {
	if !c.Limit.IsPositive() {
		return 1
	}
	u, _ := c.Value.Div(c.Limit).Float64()
	return u
}

func (c Condition) String() string {
	return fmt.Sprintf("%s (%s >= %s)", c.Name, c.Value.StringFixed(2), c.Limit.StringFixed(2))
}

// ExposurePercent is the daily loss as a percentage of the current bankroll.
// A loss against an empty bankroll is full exposure.
func ExposurePercent(dailyLoss, bankroll decimal.Decimal) decimal.Decimal {
	if !bankroll.IsPositive() {
		if dailyLoss.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return dailyLoss.Div(bankroll).Mul(hundred)
}

// Conditions evaluates the three hard-stop conditions against rc, in fixed order
func Conditions(rc models.RunContext, l Limits) []Condition {
	exposure := ExposurePercent(rc.DailyLoss, rc.CurrentBankroll)
	return []Condition{
		{
			Name:  ConditionDailyLoss,
			Value: rc.DailyLoss,
			Limit: l.DailyLossLimit,
			Met:   rc.DailyLoss.GreaterThanOrEqual(l.DailyLossLimit),
		},
		{
			Name:  ConditionConsecutiveLosses,
			Value: decimal.NewFromInt(int64(rc.ConsecutiveLosses)),
			Limit: decimal.NewFromInt(int64(l.ConsecutiveLossLimit)),
			Met:   rc.ConsecutiveLosses >= l.ConsecutiveLossLimit,
		},
		{
			Name:  ConditionBankrollExposure,
			Value: exposure,
			Limit: l.BankrollExposurePct,
			Met:   exposure.GreaterThanOrEqual(l.BankrollExposurePct),
		},
	}
}

// Met filters the conditions that trigger a hard stop
func Met(conds []Condition) []Condition {
	var out []Condition
	for _, c := range conds {
		if c.Met {
			out = append(out, c)
		}
	}
	return out
}
