package indicator

import (
	"fmt"
)

// ReloadStats summarises a config reload.
type ReloadStats struct {
	Preserved int   // token states carried over
	Created   int   // TFs cold-started or given new indicators
	NeedsFill []int // TFs whose new instances want history through Warm
}

// ReloadConfigs updates the indicator engine with new configurations.
// It preserves state for indicators that already exist and only creates
// new instances for genuinely new indicators, so adding an indicator does
// not throw away accumulated warm-up history. Instances are matched by
// Config.Label. Invalid configs leave the engine untouched.
func (e *Engine) ReloadConfigs(newConfigs []TFConfig) (ReloadStats, error) {
	var stats ReloadStats
	if err := ValidateConfigs(newConfigs); err != nil {
		return stats, err
	}

	oldCfgByTF := make(map[int]TFConfig, len(e.configs))
	oldStateByTF := make(map[int]*tfState, len(e.configs))
	for i, cfg := range e.configs {
		oldCfgByTF[cfg.TF] = cfg
		oldStateByTF[cfg.TF] = e.state[i]
	}

	newState := make([]*tfState, len(newConfigs))
	for i, newCfg := range newConfigs {
		oldCfg, tfExists := oldCfgByTF[newCfg.TF]
		oldTFState := oldStateByTF[newCfg.TF]

		if !tfExists || oldTFState == nil {
			// Brand-new TF: cold-start
			newState[i] = newTFState()
			stats.Created++
			stats.NeedsFill = append(stats.NeedsFill, newCfg.TF)
			continue
		}

		// TF exists: check if indicators are identical (fast path)
		if indicatorSetsEqual(oldCfg.Indicators, newCfg.Indicators) {
			newState[i] = oldTFState
			stats.Preserved += len(oldTFState.tokens)
			continue
		}

		// Indicator set changed: migrate per-token state
		migrated := newTFState()
		for k, bar := range oldTFState.lastFinal {
			migrated.lastFinal[k] = bar
		}
		var fresh []*Instance
		for tokenKey, oldTI := range oldTFState.tokens {
			ti, created := migrateTokenIndicators(oldTI, newCfg.Indicators)
			migrated.tokens[tokenKey] = ti
			fresh = append(fresh, created...)
			stats.Preserved++
		}
		migrated.rebuildDependents()
		for _, in := range fresh {
			migrated.warming[in] = true
		}
		newState[i] = migrated
		stats.Created++
		stats.NeedsFill = append(stats.NeedsFill, newCfg.TF)
	}

	// Drop buffers of instances that did not survive.
	for tf, old := range oldStateByTF {
		releaseOrphans(old, findState(newConfigs, newState, tf))
	}

	e.setConfigs(newConfigs, newState)
	return stats, nil
}

// migrateTokenIndicators creates a new tokenIndicators for the new config,
// preserving instances whose label is unchanged. The freshly built
// instances are returned alongside.
func migrateTokenIndicators(oldTI *tokenIndicators, newConfigs []Config) (*tokenIndicators, []*Instance) {
	oldByLabel := make(map[string]*Instance, len(oldTI.instances))
	for _, in := range oldTI.instances {
		oldByLabel[in.Label()] = in
	}

	var fresh []*Instance
	ti := &tokenIndicators{instances: make([]*Instance, len(newConfigs))}
	for i, cfg := range newConfigs {
		if existing, ok := oldByLabel[cfg.Label()]; ok {
			ti.instances[i] = existing // preserve accumulated state
			continue
		}
		ti.instances[i] = MustBuild(cfg)
		fresh = append(fresh, ti.instances[i])
	}
	return ti, fresh
}

func findState(configs []TFConfig, state []*tfState, tf int) *tfState {
	for i, cfg := range configs {
		if cfg.TF == tf {
			return state[i]
		}
	}
	return nil
}

// releaseOrphans releases instances of old that are no longer referenced
// from next.
func releaseOrphans(old, next *tfState) {
	if old == next {
		return
	}
	kept := make(map[*Instance]bool)
	if next != nil {
		for _, ti := range next.tokens {
			for _, in := range ti.instances {
				kept[in] = true
			}
		}
	}
	for _, ti := range old.tokens {
		for _, in := range ti.instances {
			if !kept[in] {
				in.Release()
			}
		}
	}
}

// indicatorSetsEqual checks if two indicator config slices have the exact same
// set of indicators (order-independent).
func indicatorSetsEqual(a, b []Config) bool {
	if len(a) != len(b) {
		return false
	}
	setA := make(map[string]bool, len(a))
	for _, ic := range a {
		setA[ic.Label()] = true
	}
	for _, ic := range b {
		if !setA[ic.Label()] {
			return false
		}
	}
	return true
}

// ValidateConfigs checks a set of TFConfigs for errors.
func ValidateConfigs(configs []TFConfig) error {
	seen := make(map[int]bool)
	for _, cfg := range configs {
		if cfg.TF <= 0 {
			return fmt.Errorf("%w: TF=%d must be positive", ErrInvalidConfig, cfg.TF)
		}
		if seen[cfg.TF] {
			return fmt.Errorf("%w: duplicate TF=%d", ErrInvalidConfig, cfg.TF)
		}
		seen[cfg.TF] = true

		labels := make(map[string]bool, len(cfg.Indicators))
		for _, ind := range cfg.Indicators {
			if err := ind.Validate(); err != nil {
				return fmt.Errorf("TF=%d: %w", cfg.TF, err)
			}
			label := ind.Label()
			if labels[label] {
				return fmt.Errorf("%w: duplicate indicator %s on TF=%d", ErrInvalidConfig, label, cfg.TF)
			}
			labels[label] = true
		}
	}
	return nil
}

// MaxLookback returns the longest window any configured indicator needs.
func MaxLookback(configs []TFConfig) int {
	longest := 0
	for _, cfg := range configs {
		for _, ic := range cfg.Indicators {
			ic = ic.Normalize()
			n := ic.Period
			switch ic.Type {
			case "MACD":
				n = ic.Slow + ic.Signal
			case "STOCHRSI":
				n = 2*ic.Period + ic.Fast + ic.Signal
			}
			if n > longest {
				longest = n
			}
		}
	}
	return longest
}
