package calendar

import "strconv"

// Tier is an urgency bucket named after its upper bound in days.
type Tier int

const (
	// TierExcluded marks members too far from expiry to message. It is never persisted.
	TierExcluded Tier = 0
	Tier1        Tier = 1
	Tier3        Tier = 3
	Tier7        Tier = 7
	Tier30       Tier = 30
)

// Tiers lists the persisted tiers in urgency order.
var Tiers = []Tier{Tier1, Tier3, Tier7, Tier30}

// ClassifyTier buckets a signed days-remaining value. Bounds are inclusive.
func ClassifyTier(daysRemaining int) Tier {
	switch {
	case daysRemaining <= 1:
		return Tier1
	case daysRemaining <= 3:
		return Tier3
	case daysRemaining <= 7:
		return Tier7
	case daysRemaining <= 30:
		return Tier30
	default:
		return TierExcluded
	}
}

func (t Tier) Valid() bool {
	switch t {
	case Tier1, Tier3, Tier7, Tier30:
		return true
	default:
		return false
	}
}

func (t Tier) Label() string {
	switch t {
	case Tier1:
		return "Urgent (1 day)"
	case Tier3:
		return "3 Days"
	case Tier7:
		return "7 Days"
	case Tier30:
		return "30 Days"
	default:
		return "Unknown"
	}
}

func (t Tier) String() string {
	return strconv.Itoa(int(t))
}

// ParseTier parses the decimal form of a persisted tier.
func ParseTier(value string) (Tier, bool) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return TierExcluded, false
	}
	tier := Tier(n)
	if !tier.Valid() {
		return TierExcluded, false
	}
	return tier, true
}

// TierCounts tallies classified members per tier.
type TierCounts map[Tier]int

// NewTierCounts returns counts with every persisted tier present at zero.
func NewTierCounts() TierCounts {
	counts := make(TierCounts, len(Tiers))
	for _, tier := range Tiers {
		counts[tier] = 0
	}
	return counts
}

func (c TierCounts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
