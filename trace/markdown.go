package trace

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Markdown renders the trace as a human-readable report. Sections with no
// entries are omitted entirely.
func (d Data) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Execution Trace: %s v%s\n\n", d.StrategyName, d.StrategyVersion)
	fmt.Fprintf(&b, "- **Execution ID**: %s\n", d.ExecutionID)
	fmt.Fprintf(&b, "- **Started**: %s\n", d.StartedAt.Format(time.RFC3339Nano))
	if d.CompletedAt != nil {
		fmt.Fprintf(&b, "- **Completed**: %s\n", d.CompletedAt.Format(time.RFC3339Nano))
		fmt.Fprintf(&b, "- **Duration**: %dms\n", d.CompletedAt.Sub(d.StartedAt).Milliseconds())
	}

	if len(d.Metrics) > 0 {
		b.WriteString("\n## Metrics\n\n")
		b.WriteString("| Metric | Value |\n")
		b.WriteString("|--------|-------|\n")
		names := make([]string, 0, len(d.Metrics))
		for name := range d.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "| %s | %s |\n", name, formatMetric(d.Metrics[name]))
		}
	}

	if len(d.Decisions) > 0 {
		b.WriteString("\n## Decisions\n")
		for _, dec := range d.Decisions {
			fmt.Fprintf(&b, "\n### %s\n\n", dec.Category)
			fmt.Fprintf(&b, "*%s*\n\n", dec.Timestamp.Format(time.RFC3339Nano))
			fmt.Fprintf(&b, "%s\n", dec.Description)
			if len(dec.Context) > 0 {
				writeContextBlock(&b, dec.Context)
			}
		}
	}

	if len(d.Errors) > 0 {
		b.WriteString("\n## Errors\n")
		for _, e := range d.Errors {
			fmt.Fprintf(&b, "\n### %s\n\n", e.Category)
			fmt.Fprintf(&b, "*%s*\n\n", e.Timestamp.Format(time.RFC3339Nano))
			fmt.Fprintf(&b, "%s\n", e.Message)
			if e.Stack != "" {
				fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.TrimRight(e.Stack, "\n"))
			}
			if len(e.Context) > 0 {
				writeContextBlock(&b, e.Context)
			}
		}
	}

	if len(d.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "- %s *(%s)*\n", w.Message, w.Timestamp.Format(time.RFC3339Nano))
		}
	}

	return b.String()
}

func writeContextBlock(b *strings.Builder, context map[string]any) {
	data, err := json.MarshalIndent(context, "", "  ")
	if err != nil {
		// Sanitized contexts always marshal; this is unreachable in
		// practice but the report must never be lost to it.
		fmt.Fprintf(b, "\n(context unavailable: %v)\n", err)
		return
	}
	fmt.Fprintf(b, "\n```json\n%s\n```\n", data)
}

// formatMetric renders whole numbers without a decimal point.
func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
