package risk

import (
	"errors"
	"testing"

	"github.com/Alias1177/PickGate/models"
	"github.com/shopspring/decimal"
)

func TestExposurePercent(t *testing.T) {
	tests := []struct {
		name     string
		loss     int64
		bankroll int64
		want     string
	}{
		{"no loss", 0, 5000, "0"},
		{"ten percent", 500, 5000, "10"},
		{"empty bankroll no loss", 0, 0, "0"},
		{"empty bankroll with loss", 50, 0, "100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExposurePercent(decimal.NewFromInt(tt.loss), decimal.NewFromInt(tt.bankroll))
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ExposurePercent() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestConditions(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name    string
		rc      models.RunContext
		wantMet []string
	}{
		{
			name: "calm run",
			rc:   models.RunContext{DailyLoss: decimal.NewFromInt(100), CurrentBankroll: decimal.NewFromInt(10000)},
		},
		{
			name:    "daily loss breached",
			rc:      models.RunContext{DailyLoss: decimal.NewFromInt(1500), CurrentBankroll: decimal.NewFromInt(100000)},
			wantMet: []string{ConditionDailyLoss},
		},
		{
			name:    "losing streak",
			rc:      models.RunContext{ConsecutiveLosses: 5, CurrentBankroll: decimal.NewFromInt(1000)},
			wantMet: []string{ConditionConsecutiveLosses},
		},
		{
			name:    "exposure breached",
			rc:      models.RunContext{DailyLoss: decimal.NewFromInt(300), CurrentBankroll: decimal.NewFromInt(2000)},
			wantMet: []string{ConditionBankrollExposure},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := Met(Conditions(tt.rc, limits))
			if len(met) != len(tt.wantMet) {
				t.Fatalf("met = %v, want %v", met, tt.wantMet)
			}
			for i, c := range met {
				if c.Name != tt.wantMet[i] {
					t.Errorf("met[%d] = %s, want %s", i, c.Name, tt.wantMet[i])
				}
			}
		})
	}
}

func TestZeroLimitsAlwaysMet(t *testing.T) {
	rc := models.RunContext{CurrentBankroll: decimal.NewFromInt(10000)}
	met := Met(Conditions(rc, Limits{}))
	want := []string{ConditionDailyLoss, ConditionConsecutiveLosses, ConditionBankrollExposure}
	if len(met) != len(want) {
		t.Fatalf("met = %v, want all of %v", met, want)
	}
	for i, c := range met {
		if c.Name != want[i] {
			t.Errorf("met[%d] = %s, want %s", i, c.Name, want[i])
		}
		if c.Utilization() != 1 {
			t.Errorf("%s utilization = %v, want 1", c.Name, c.Utilization())
		}
	}
}

func TestLimitsValidate(t *testing.T) {
	tests := []struct {
		name    string
		limits  Limits
		wantErr bool
	}{
		{"defaults", DefaultLimits(), false},
		{"zeros are legal", Limits{}, false},
		{"negative daily loss", Limits{DailyLossLimit: decimal.NewFromInt(-1), ConsecutiveLossLimit: 5, BankrollExposurePct: decimal.NewFromInt(10)}, true},
		{"negative streak", Limits{DailyLossLimit: decimal.NewFromInt(1000), ConsecutiveLossLimit: -1, BankrollExposurePct: decimal.NewFromInt(10)}, true},
		{"negative exposure", Limits{DailyLossLimit: decimal.NewFromInt(1000), ConsecutiveLossLimit: 5, BankrollExposurePct: decimal.RequireFromString("-0.5")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.limits.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidLimits) {
				t.Errorf("expected ErrInvalidLimits, got %v", err)
			}
		})
	}
}

func TestLimitsZero(t *testing.T) {
	l := DefaultLimits()
	if z := l.Zero(); len(z) != 0 {
		t.Errorf("default limits report zero limits %v", z)
	}
	l.ConsecutiveLossLimit = 0
	if z := l.Zero(); len(z) != 1 || z[0] != ConditionConsecutiveLosses {
		t.Errorf("Zero() = %v, want [%s]", z, ConditionConsecutiveLosses)
	}
}

func TestUtilization(t *testing.T) {
	c := Condition{Value: decimal.NewFromInt(750), Limit: decimal.NewFromInt(1000)}
	if got := c.Utilization(); got != 0.75 {
		t.Errorf("Utilization() = %v, want 0.75", got)
	}
}
