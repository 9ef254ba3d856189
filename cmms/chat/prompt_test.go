package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(ContextSummary{
		AssetsByBand:       map[string]int{"good": 3, "critical": 1},
		OpenCriticalOrders: []string{"#12 Replace compressor seal"},
		LowStockParts:      []string{"Bearing 6204 (2 left, min 5)"},
		SchedulesDueSoon:   []string{"Quarterly pump inspection"},
	})

	assert.Contains(t, prompt, "maintenance assistant")
	assert.Contains(t, prompt, "3 good")
	assert.Contains(t, prompt, "1 critical")
	assert.Contains(t, prompt, "#12 Replace compressor seal")
	assert.Contains(t, prompt, "Bearing 6204 (2 left, min 5)")
	assert.Contains(t, prompt, "Quarterly pump inspection")
}

func TestBuildSystemPromptEmptyState(t *testing.T) {
	prompt := BuildSystemPrompt(ContextSummary{})

	assert.Contains(t, prompt, "maintenance assistant")
	assert.NotContains(t, prompt, "Open critical work orders")
	assert.NotContains(t, prompt, "Parts below minimum stock")
	assert.NotContains(t, prompt, "Preventive maintenance due")
}

func TestUnavailableAlwaysErrors(t *testing.T) {
	_, err := Unavailable{}.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}})
	assert.Error(t, err)
}
