package domain

// Tier is a membership level.
type Tier string

// Membership tiers.
const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierUltimate Tier = "ultimate"
)

var tierLabels = map[Tier]string{
	TierFree:     "Free",
	TierStandard: "Standard",
	TierUltimate: "Ultimate",
}

// ValidTiers returns every tier in ascending order.
func ValidTiers() []Tier {
	return []Tier{TierFree, TierStandard, TierUltimate}
}

// IsValidTier reports whether t is a known tier.
func IsValidTier(t Tier) bool {
	_, ok := tierLabels[t]
	return ok
}

// IsPaid reports whether t must be bought.
func (t Tier) IsPaid() bool {
	return t == TierStandard || t == TierUltimate
}

// DisplayName returns the human label. Unknown tiers read as the free label.
func (t Tier) DisplayName() string {
	if label, ok := tierLabels[t]; ok {
		return label
	}
	return tierLabels[TierFree]
}
