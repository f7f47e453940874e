package domain

import dErrors "firegate/pkg/domain-errors"

// Tier is the risk classification of a target system or the sensitivity
// classification of a firefighter ID. It decides which approval steps a
// request needs.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

var tierOrder = map[Tier]int{
	TierLow:      1,
	TierMedium:   2,
	TierHigh:     3,
	TierCritical: 4,
}

// ParseTier constructs a Tier from external input.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if _, ok := tierOrder[t]; !ok {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown tier %q", s)
	}
	return t, nil
}

// AtLeast reports whether t is the same tier as other or riskier.
// Unknown tiers compare as lowest.
func (t Tier) AtLeast(other Tier) bool {
	return tierOrder[t] >= tierOrder[other]
}

func (t Tier) String() string { return string(t) }
