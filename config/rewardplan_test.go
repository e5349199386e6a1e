package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/reward"
)

func writePlanFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRewardPlan_NoFileUsesDefaults(t *testing.T) {
	plan, err := LoadRewardPlan("")
	require.NoError(t, err)
	assert.Equal(t, reward.DefaultPlan(), plan)
}

func TestLoadRewardPlan_OverridesListedTiers(t *testing.T) {
	path := writePlanFile(t, `
tiers:
  CHAMPION:
    coins: 2000
    xp: 900
    badge: Grand Champion
`)

	plan, err := LoadRewardPlan(path)
	require.NoError(t, err)

	assert.Equal(t, reward.Payout{Coins: 2000, XP: 900, Badge: "Grand Champion"}, plan.Payout(reward.TierChampion))
	// unlisted tiers keep defaults
	assert.Equal(t, reward.DefaultPlan().Payout(reward.TierElite), plan.Payout(reward.TierElite))
}

func TestLoadRewardPlan_RejectsUnknownTier(t *testing.T) {
	path := writePlanFile(t, `
tiers:
  LEGEND:
    coins: 1
`)
	_, err := LoadRewardPlan(path)
	assert.Error(t, err)
}

func TestLoadRewardPlan_RejectsNegativeAmounts(t *testing.T) {
	path := writePlanFile(t, `
tiers:
  ELITE:
    coins: -5
`)
	_, err := LoadRewardPlan(path)
	assert.Error(t, err)
}

func TestLoadRewardPlan_MissingFile(t *testing.T) {
	_, err := LoadRewardPlan("/does/not/exist.yaml")
	assert.Error(t, err)
}
