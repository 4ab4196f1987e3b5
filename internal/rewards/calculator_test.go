package rewards

import (
	"errors"
	"testing"
)

func TestCompute_Table(t *testing.T) {
	base := Params{
		RatePerAccount:  100,
		BonusMultiplier: 150,
		BonusThreshold:  10,
		BonusMode:       ModeCumulative,
	}

	tests := []struct {
		name     string
		accounts int64
		prior    int64
		params   Params
		want     Breakdown
	}{
		{
			name:     "below threshold no bonus",
			accounts: 9,
			prior:    0,
			params:   base,
			want:     Breakdown{Base: 900, Bonus: 0, Total: 900, BonusApplied: false},
		},
		{
			name:     "crossing threshold cumulatively earns bonus",
			accounts: 2,
			prior:    9,
			params:   base,
			want:     Breakdown{Base: 200, Bonus: 100, Total: 300, BonusApplied: true},
		},
		{
			name:     "exactly at threshold",
			accounts: 10,
			prior:    0,
			params:   base,
			want:     Breakdown{Base: 1000, Bonus: 500, Total: 1500, BonusApplied: true},
		},
		{
			name:     "per-event ignores prior",
			accounts: 2,
			prior:    9,
			params: Params{
				RatePerAccount:  100,
				BonusMultiplier: 150,
				BonusThreshold:  10,
				BonusMode:       ModePerEvent,
			},
			want: Breakdown{Base: 200, Bonus: 0, Total: 200, BonusApplied: false},
		},
		{
			name:     "per-event large batch earns bonus",
			accounts: 12,
			prior:    0,
			params: Params{
				RatePerAccount:  100,
				BonusMultiplier: 150,
				BonusThreshold:  10,
				BonusMode:       ModePerEvent,
			},
			want: Breakdown{Base: 1200, Bonus: 600, Total: 1800, BonusApplied: true},
		},
		{
			name:     "multiplier 100 means no bonus",
			accounts: 20,
			prior:    0,
			params: Params{
				RatePerAccount:  100,
				BonusMultiplier: 100,
				BonusThreshold:  10,
				BonusMode:       ModeCumulative,
			},
			want: Breakdown{Base: 2000, Bonus: 0, Total: 2000, BonusApplied: false},
		},
		{
			name:     "bonus truncates toward zero",
			accounts: 1,
			prior:    100,
			params: Params{
				RatePerAccount:  3,
				BonusMultiplier: 133,
				BonusThreshold:  10,
				BonusMode:       ModeCumulative,
			},
			// 3 * 33 / 100 = 0 after truncation
			want: Breakdown{Base: 3, Bonus: 0, Total: 3, BonusApplied: false},
		},
		{
			name:     "odd rate truncation",
			accounts: 3,
			prior:    50,
			params: Params{
				RatePerAccount:  25,
				BonusMultiplier: 110,
				BonusThreshold:  10,
				BonusMode:       ModeCumulative,
			},
			// base 75, bonus 75*10/100 = 7 (truncated from 7.5)
			want: Breakdown{Base: 75, Bonus: 7, Total: 82, BonusApplied: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compute(tt.accounts, tt.prior, tt.params)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Compute = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompute_InvalidMetric(t *testing.T) {
	p := Params{RatePerAccount: 100, BonusMultiplier: 150, BonusThreshold: 10}
	for _, accounts := range []int64{0, -1, -100} {
		_, err := Compute(accounts, 0, p)
		if !errors.Is(err, ErrInvalidMetric) {
			t.Errorf("Compute(%d) error = %v, want ErrInvalidMetric", accounts, err)
		}
	}
}
