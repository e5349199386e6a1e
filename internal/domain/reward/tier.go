// Package reward implements the monthly reward model: tiers, the batch
// job state machine and the idempotent reward ledger.
package reward

import (
	"fmt"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Tier
// ═══════════════════════════════════════════════════════════════════════════

// Tier is a reward band resolved from a snapshot rank.
type Tier string

const (
	TierChampion  Tier = "CHAMPION"  // rank 1
	TierElite     Tier = "ELITE"     // ranks 2-10
	TierAchiever  Tier = "ACHIEVER"  // ranks 11-50
	TierPerformer Tier = "PERFORMER" // ranks 51-100
	TierUnplaced  Tier = "UNPLACED"  // ranks 101+
)

// AllTiers lists tiers from best to worst.
var AllTiers = []Tier{TierChampion, TierElite, TierAchiever, TierPerformer, TierUnplaced}

// IsValid checks if the tier is known.
func (t Tier) IsValid() bool {
	switch t {
	case TierChampion, TierElite, TierAchiever, TierPerformer, TierUnplaced:
		return true
	}
	return false
}

// String returns the string representation.
func (t Tier) String() string {
	return string(t)
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown tier: %q", s)
	}
	return t, nil
}

// ResolveTier maps a snapshot rank to its tier. Total over rank >= 1:
// every valid rank lands in exactly one band.
func ResolveTier(rank int) Tier {
	switch {
	case rank <= 0:
		return TierUnplaced
	case rank == 1:
		return TierChampion
	case rank <= 10:
		return TierElite
	case rank <= 50:
		return TierAchiever
	case rank <= 100:
		return TierPerformer
	default:
		return TierUnplaced
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Plan
// ═══════════════════════════════════════════════════════════════════════════

// Payout is what one tier grants.
type Payout struct {
	Coins int    `yaml:"coins"`
	XP    int    `yaml:"xp"`
	Badge string `yaml:"badge"`
}

// Plan maps every tier to its payout. A Plan is loaded once at process
// start and passed by value into the processor; it never changes while
// a job is in flight.
type Plan map[Tier]Payout

// DefaultPlan returns the compiled-in payout table.
func DefaultPlan() Plan {
	return Plan{
		TierChampion:  {Coins: 1000, XP: 500, Badge: "Champion"},
		TierElite:     {Coins: 500, XP: 250, Badge: "Elite"},
		TierAchiever:  {Coins: 250, XP: 125, Badge: "Achiever"},
		TierPerformer: {Coins: 100, XP: 50, Badge: "Performer"},
		TierUnplaced:  {Coins: 25, XP: 10, Badge: ""},
	}
}

// Payout returns the payout for a tier. Unknown tiers get the unplaced
// payout so a partial plan cannot drop a user on the floor.
func (p Plan) Payout(t Tier) Payout {
	if payout, ok := p[t]; ok {
		return payout
	}
	return p[TierUnplaced]
}

// Validate checks that the plan covers every tier with sane amounts.
func (p Plan) Validate() error {
	for _, t := range AllTiers {
		payout, ok := p[t]
		if !ok {
			return fmt.Errorf("reward plan missing tier %s", t)
		}
		if payout.Coins < 0 || payout.XP < 0 {
			return fmt.Errorf("reward plan tier %s has negative amounts", t)
		}
	}
	return nil
}
