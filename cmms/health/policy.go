// Package health computes per-asset health scores from maintenance history.
// Scoring is a weighted penalty model: each risk signal (corrective repair
// frequency, overdue preventive maintenance, open critical work, meter usage
// against expected life) subtracts from a base of 100, with per-signal caps so
// one noisy signal cannot dominate. The weights are tunable through a YAML
// policy file.
package health

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Policy struct {
	// Trailing window, in days, over which corrective work orders are counted.
	CorrectiveWindowDays int `yaml:"corrective_window_days"`

	CorrectiveWeight float64 `yaml:"corrective_weight"`
	CorrectiveCap    float64 `yaml:"corrective_cap"`

	OverdueWeight float64 `yaml:"overdue_weight"`
	OverdueCap    float64 `yaml:"overdue_cap"`

	CriticalWeight float64 `yaml:"critical_weight"`
	CriticalCap    float64 `yaml:"critical_cap"`

	// Usage penalty ramps linearly from zero at UsageKnee to UsageMaxPenalty at
	// a usage ratio of 1.0 (latest meter reading == expected life hours).
	UsageKnee       float64 `yaml:"usage_knee"`
	UsageMaxPenalty float64 `yaml:"usage_max_penalty"`

	DownPenalty float64 `yaml:"down_penalty"`

	GoodThreshold     float64 `yaml:"good_threshold"`
	WatchThreshold    float64 `yaml:"watch_threshold"`
	DegradedThreshold float64 `yaml:"degraded_threshold"`
}

func DefaultPolicy() Policy {
	return Policy{
		CorrectiveWindowDays: 90,
		CorrectiveWeight:     8,
		CorrectiveCap:        40,
		OverdueWeight:        10,
		OverdueCap:           30,
		CriticalWeight:       12,
		CriticalCap:          36,
		UsageKnee:            0.75,
		UsageMaxPenalty:      25,
		DownPenalty:          20,
		GoodThreshold:        85,
		WatchThreshold:       65,
		DegradedThreshold:    40,
	}
}

func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		return policy, fmt.Errorf("error reading health policy file '%v': %w", path, err)
	}

	if err := yaml.Unmarshal(data, &policy); err != nil {
		return policy, fmt.Errorf("error parsing health policy file '%v': %w", path, err)
	}

	if err := policy.validate(); err != nil {
		return policy, fmt.Errorf("invalid health policy in '%v': %w", path, err)
	}

	return policy, nil
}

func (p *Policy) validate() error {
	if p.CorrectiveWindowDays <= 0 {
		return fmt.Errorf("corrective_window_days must be positive, got %d", p.CorrectiveWindowDays)
	}
	if p.UsageKnee < 0 || p.UsageKnee >= 1 {
		return fmt.Errorf("usage_knee must be in [0, 1), got %v", p.UsageKnee)
	}
	if !(p.GoodThreshold > p.WatchThreshold && p.WatchThreshold > p.DegradedThreshold) {
		return fmt.Errorf("thresholds must be strictly decreasing: good=%v watch=%v degraded=%v",
			p.GoodThreshold, p.WatchThreshold, p.DegradedThreshold)
	}
	return nil
}
