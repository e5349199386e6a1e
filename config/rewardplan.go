package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quizhub/rewards-hub/internal/domain/reward"
)

// planFile is the YAML shape of a reward plan override:
//
//	tiers:
//	  CHAMPION:
//	    coins: 1000
//	    xp: 500
//	    badge: Champion
//
// Tiers not listed keep their compiled-in payout.
type planFile struct {
	Tiers map[string]reward.Payout `yaml:"tiers"`
}

// LoadRewardPlan returns the payout table: the compiled-in defaults,
// overridden by the YAML file at path if one is configured. The plan is
// loaded once at process start; the processor receives it by value and
// never re-reads it while jobs are in flight.
func LoadRewardPlan(path string) (reward.Plan, error) {
	plan := reward.DefaultPlan()
	if path == "" {
		return plan, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reward plan %s: %w", path, err)
	}

	var file planFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse reward plan %s: %w", path, err)
	}

	for name, payout := range file.Tiers {
		tier, err := reward.ParseTier(name)
		if err != nil {
			return nil, fmt.Errorf("reward plan %s: %w", path, err)
		}
		plan[tier] = payout
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("reward plan %s: %w", path, err)
	}
	return plan, nil
}
