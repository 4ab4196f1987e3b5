package rewards

import "fmt"

// Breakdown is the priced result of one reported batch.
type Breakdown struct {
	Base         int64 `json:"base"`
	Bonus        int64 `json:"bonus"`
	Total        int64 `json:"total"`
	BonusApplied bool  `json:"bonusApplied"`
}

// Compute prices a batch of cleaned accounts. Base pay is flat per
// account; once the bonus tier is reached the whole batch earns the
// multiplier. Eligibility depends on the mode: cumulative counts prior
// work toward the threshold, per-event looks at the batch alone.
// All arithmetic is integer cents with truncation.
func Compute(accountsCleaned, priorCumulative int64, p Params) (Breakdown, error) {
	if accountsCleaned <= 0 {
		return Breakdown{}, fmt.Errorf("%w: accounts cleaned must be positive", ErrInvalidMetric)
	}

	base := accountsCleaned * p.RatePerAccount

	eligible := false
	switch p.BonusMode {
	case ModePerEvent:
		eligible = accountsCleaned >= p.BonusThreshold
	default:
		eligible = priorCumulative+accountsCleaned >= p.BonusThreshold
	}

	var bonus int64
	if eligible && p.BonusMultiplier > 100 {
		bonus = base * (p.BonusMultiplier - 100) / 100
	}

	return Breakdown{
		Base:         base,
		Bonus:        bonus,
		Total:        base + bonus,
		BonusApplied: eligible && bonus > 0,
	}, nil
}
