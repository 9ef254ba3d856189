package health

import (
	"os"
	"path/filepath"
	"testing"

	"chatterfix/cmms/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name   string
		inputs Inputs

		expectedScore float64
		expectedBand  string
	}{
		{
			name:          "healthy asset",
			inputs:        Inputs{AssetStatus: schema.AssetActive},
			expectedScore: 100,
			expectedBand:  schema.HealthGood,
		},
		{
			name:          "single corrective repair",
			inputs:        Inputs{CorrectiveCount: 1, AssetStatus: schema.AssetActive},
			expectedScore: 92,
			expectedBand:  schema.HealthGood,
		},
		{
			name:          "corrective penalty is capped",
			inputs:        Inputs{CorrectiveCount: 20, AssetStatus: schema.AssetActive},
			expectedScore: 60,
			expectedBand:  schema.HealthDegraded,
		},
		{
			name:          "overdue pm and open critical work",
			inputs:        Inputs{OverduePM: 1, OpenCritical: 1, AssetStatus: schema.AssetActive},
			expectedScore: 78,
			expectedBand:  schema.HealthWatch,
		},
		{
			name:          "usage below the knee is free",
			inputs:        Inputs{UsageRatio: 0.5, AssetStatus: schema.AssetActive},
			expectedScore: 100,
			expectedBand:  schema.HealthGood,
		},
		{
			name:          "usage at end of expected life",
			inputs:        Inputs{UsageRatio: 1.0, AssetStatus: schema.AssetActive},
			expectedScore: 75,
			expectedBand:  schema.HealthWatch,
		},
		{
			name:          "usage penalty saturates past expected life",
			inputs:        Inputs{UsageRatio: 3.0, AssetStatus: schema.AssetActive},
			expectedScore: 75,
			expectedBand:  schema.HealthWatch,
		},
		{
			name:          "asset down",
			inputs:        Inputs{AssetStatus: schema.AssetDown},
			expectedScore: 80,
			expectedBand:  schema.HealthWatch,
		},
		{
			name: "everything wrong at once clamps at zero",
			inputs: Inputs{
				CorrectiveCount: 20, OverduePM: 10, OpenCritical: 10, UsageRatio: 2.0,
				AssetStatus: schema.AssetDown,
			},
			expectedScore: 0,
			expectedBand:  schema.HealthCritical,
		},
		{
			name:          "retired assets are always critical",
			inputs:        Inputs{AssetStatus: schema.AssetRetired},
			expectedScore: 0,
			expectedBand:  schema.HealthCritical,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res := Score(test.inputs, policy)
			assert.Equal(t, test.expectedScore, res.Score)
			assert.Equal(t, test.expectedBand, res.Band)
		})
	}
}

func TestScorePenaltyBreakdownSumsToScore(t *testing.T) {
	policy := DefaultPolicy()

	res := Score(Inputs{
		CorrectiveCount: 2, OverduePM: 1, OpenCritical: 1, UsageRatio: 0.9,
		AssetStatus: schema.AssetDown,
	}, policy)

	total := res.CorrectivePenalty + res.OverduePenalty + res.CriticalPenalty + res.UsagePenalty + res.StatusPenalty
	assert.InDelta(t, 100-total, res.Score, 1e-9)
}

func TestLoadPolicy(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "policy.yaml")
	err := os.WriteFile(path, []byte("corrective_weight: 5\ndown_penalty: 50\n"), 0666)
	require.NoError(t, err)

	policy, err := LoadPolicy(path)
	require.NoError(t, err)

	// Overridden fields take effect, the rest keep defaults.
	assert.Equal(t, 5.0, policy.CorrectiveWeight)
	assert.Equal(t, 50.0, policy.DownPenalty)
	assert.Equal(t, DefaultPolicy().OverdueWeight, policy.OverdueWeight)

	_, err = LoadPolicy(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(dir, "bad.yaml")
	err = os.WriteFile(badPath, []byte("good_threshold: 10\nwatch_threshold: 50\n"), 0666)
	require.NoError(t, err)

	_, err = LoadPolicy(badPath)
	assert.Error(t, err)
}
