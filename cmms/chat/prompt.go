package chat

import (
	"fmt"
	"strings"
)

// ContextSummary is the live maintenance state injected into the system prompt
// so the assistant can answer questions about the facility without tool calls.
type ContextSummary struct {
	AssetsByBand       map[string]int
	OpenCriticalOrders []string
	LowStockParts      []string
	SchedulesDueSoon   []string
}

const systemPreamble = "You are a maintenance assistant for a CMMS (computerized maintenance management system). " +
	"Answer questions about work orders, equipment, and parts inventory. Be concise and practical. " +
	"If asked to perform an action, explain which work order or part change the user should make."

func BuildSystemPrompt(summary ContextSummary) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	sb.WriteString("\n\nCurrent facility state:\n")

	if len(summary.AssetsByBand) > 0 {
		sb.WriteString("Asset health: ")
		for _, band := range []string{"good", "watch", "degraded", "critical"} {
			if count, ok := summary.AssetsByBand[band]; ok && count > 0 {
				fmt.Fprintf(&sb, "%d %s, ", count, band)
			}
		}
		sb.WriteString("\n")
	}

	if len(summary.OpenCriticalOrders) > 0 {
		sb.WriteString("Open critical work orders:\n")
		for _, wo := range summary.OpenCriticalOrders {
			fmt.Fprintf(&sb, "- %s\n", wo)
		}
	}

	if len(summary.LowStockParts) > 0 {
		sb.WriteString("Parts below minimum stock:\n")
		for _, part := range summary.LowStockParts {
			fmt.Fprintf(&sb, "- %s\n", part)
		}
	}

	if len(summary.SchedulesDueSoon) > 0 {
		sb.WriteString("Preventive maintenance due within 7 days:\n")
		for _, schedule := range summary.SchedulesDueSoon {
			fmt.Fprintf(&sb, "- %s\n", schedule)
		}
	}

	return sb.String()
}
