package health

import (
	"chatterfix/cmms/schema"
)

type Inputs struct {
	// Corrective work orders created for the asset within the policy window.
	CorrectiveCount int

	// Active maintenance schedules for the asset whose NextDueAt has passed.
	OverduePM int

	// Non-terminal work orders for the asset with critical priority.
	OpenCritical int

	// Latest meter reading divided by expected life hours. Zero when the asset
	// has no readings or no expected life configured.
	UsageRatio float64

	AssetStatus string
}

type Result struct {
	Score float64
	Band  string

	// Penalty breakdown, useful for surfacing "why is this asset degraded".
	CorrectivePenalty float64
	OverduePenalty    float64
	CriticalPenalty   float64
	UsagePenalty      float64
	StatusPenalty     float64
}

func cappedPenalty(count int, weight, cap float64) float64 {
	penalty := float64(count) * weight
	if penalty > cap {
		return cap
	}
	return penalty
}

func usagePenalty(ratio float64, policy *Policy) float64 {
	if ratio <= policy.UsageKnee {
		return 0
	}
	// Linear ramp from the knee to full penalty at ratio 1.0, saturating beyond.
	scale := (ratio - policy.UsageKnee) / (1 - policy.UsageKnee)
	if scale > 1 {
		scale = 1
	}
	return scale * policy.UsageMaxPenalty
}

func Score(inputs Inputs, policy Policy) Result {
	if inputs.AssetStatus == schema.AssetRetired {
		return Result{Score: 0, Band: schema.HealthCritical}
	}

	res := Result{
		CorrectivePenalty: cappedPenalty(inputs.CorrectiveCount, policy.CorrectiveWeight, policy.CorrectiveCap),
		OverduePenalty:    cappedPenalty(inputs.OverduePM, policy.OverdueWeight, policy.OverdueCap),
		CriticalPenalty:   cappedPenalty(inputs.OpenCritical, policy.CriticalWeight, policy.CriticalCap),
		UsagePenalty:      usagePenalty(inputs.UsageRatio, &policy),
	}

	if inputs.AssetStatus == schema.AssetDown {
		res.StatusPenalty = policy.DownPenalty
	}

	score := 100 - res.CorrectivePenalty - res.OverduePenalty - res.CriticalPenalty - res.UsagePenalty - res.StatusPenalty
	if score < 0 {
		score = 0
	}

	res.Score = score
	res.Band = band(score, &policy)
	return res
}

func band(score float64, policy *Policy) string {
	switch {
	case score >= policy.GoodThreshold:
		return schema.HealthGood
	case score >= policy.WatchThreshold:
		return schema.HealthWatch
	case score >= policy.DegradedThreshold:
		return schema.HealthDegraded
	default:
		return schema.HealthCritical
	}
}
