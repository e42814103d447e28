package rewards

import (
	"fmt"
	"math/big"
	"sort"
)

// Config controls how much base currency is issued to the staking pot per
// era.
type Config struct {
	// Schedule describes the piecewise-constant issuance schedule. Each step
	// is active from StartEra (inclusive) until the next step. When no steps
	// are defined issuance is zero.
	Schedule []EmissionStep
}

// EmissionStep defines the per-era issuance active from StartEra onward.
type EmissionStep struct {
	StartEra uint32
	Amount   *big.Int
}

// DefaultConfig returns a disabled issuance configuration.
func DefaultConfig() Config {
	return Config{Schedule: []EmissionStep{}}
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	steps := make([]EmissionStep, len(c.Schedule))
	copy(steps, c.Schedule)
	sort.Slice(steps, func(i, j int) bool {
		return steps[i].StartEra < steps[j].StartEra
	})
	for i := range steps {
		if steps[i].StartEra == 0 {
			return fmt.Errorf("schedule step %d: start era must be greater than zero", i)
		}
		if steps[i].Amount == nil {
			return fmt.Errorf("schedule step %d: amount must not be nil", i)
		}
		if steps[i].Amount.Sign() < 0 {
			return fmt.Errorf("schedule step %d: amount must be non-negative", i)
		}
		if i > 0 && steps[i].StartEra == steps[i-1].StartEra {
			return fmt.Errorf("schedule step %d: duplicate start era %d", i, steps[i].StartEra)
		}
	}
	return nil
}

// EmissionForEra returns the issuance configured for era (1-indexed). When no
// schedule entry applies the function returns zero.
func (c Config) EmissionForEra(era uint32) *big.Int {
	selected := big.NewInt(0)
	if era == 0 {
		return selected
	}
	start := uint32(0)
	for _, step := range c.Schedule {
		if step.StartEra > era || step.StartEra < start || step.Amount == nil {
			continue
		}
		start = step.StartEra
		selected = new(big.Int).Set(step.Amount)
	}
	return selected
}

// IsEnabled returns true when the configuration results in non-zero issuance.
func (c Config) IsEnabled() bool {
	for i := range c.Schedule {
		if c.Schedule[i].Amount != nil && c.Schedule[i].Amount.Sign() > 0 {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the configuration.
func (c Config) Clone() Config {
	clone := Config{Schedule: make([]EmissionStep, len(c.Schedule))}
	for i := range c.Schedule {
		amt := big.NewInt(0)
		if c.Schedule[i].Amount != nil {
			amt = new(big.Int).Set(c.Schedule[i].Amount)
		}
		clone.Schedule[i] = EmissionStep{StartEra: c.Schedule[i].StartEra, Amount: amt}
	}
	return clone
}
