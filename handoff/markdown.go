package handoff

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// traceSummaryDecisions caps how many recent decisions the markdown summary
// shows from an embedded trace.
const traceSummaryDecisions = 5

// Markdown renders the package as a briefing document for the receiving
// agent. Sections with nothing to say are omitted.
func (p *Package) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Agent Handoff: %s → %s\n\n", p.Source, p.Target)
	fmt.Fprintf(&b, "- **ID**: %s\n", p.ID)
	fmt.Fprintf(&b, "- **Status**: %s\n", p.Status)
	fmt.Fprintf(&b, "- **Priority**: %s\n", p.Priority)
	fmt.Fprintf(&b, "- **Created**: %s\n", p.CreatedAt.Format(time.RFC3339))
	if p.ExpiresAt != nil {
		fmt.Fprintf(&b, "- **Expires**: %s\n", p.ExpiresAt.Format(time.RFC3339))
	}

	b.WriteString("\n## Instructions\n\n")
	fmt.Fprintf(&b, "%s\n", p.Instructions.Task)
	if len(p.Instructions.Constraints) > 0 {
		b.WriteString("\n**Constraints**:\n\n")
		for _, c := range p.Instructions.Constraints {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(p.Instructions.SuccessCriteria) > 0 {
		b.WriteString("\n**Success criteria**:\n\n")
		for _, c := range p.Instructions.SuccessCriteria {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}
	if len(p.Instructions.Inputs) > 0 {
		writeInputsBlock(&b, p.Instructions.Inputs)
	}

	if hasContext(p.Context) {
		b.WriteString("\n## Context\n")
		if p.Context.Summary != "" {
			fmt.Fprintf(&b, "\n%s\n", p.Context.Summary)
		}
		if len(p.Context.Artifacts) > 0 {
			b.WriteString("\n| Artifact | Kind | Ref | Notes |\n")
			b.WriteString("|----------|------|-----|-------|\n")
			for _, a := range p.Context.Artifacts {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", a.Name, a.Kind, a.Ref, a.Notes)
			}
		}
		if len(p.Context.Decisions) > 0 {
			b.WriteString("\n**Decisions so far**:\n\n")
			for _, d := range p.Context.Decisions {
				fmt.Fprintf(&b, "- %s\n", d)
			}
		}
	}

	if p.Trace != nil {
		tr := p.Trace
		b.WriteString("\n## Execution Trace Summary\n\n")
		fmt.Fprintf(&b, "From `%s v%s` (execution `%s`): %d decisions, %d errors, %d warnings.\n",
			tr.StrategyName, tr.StrategyVersion, tr.ExecutionID,
			tr.Summary.TotalDecisions, tr.Summary.TotalErrors, tr.Summary.TotalWarnings)
		if n := len(tr.Decisions); n > 0 {
			b.WriteString("\n**Recent decisions**:\n\n")
			start := n - traceSummaryDecisions
			if start < 0 {
				start = 0
			}
			for _, d := range tr.Decisions[start:] {
				fmt.Fprintf(&b, "- [%s] %s\n", d.Category, d.Description)
			}
		}
	}

	return b.String()
}

func hasContext(c Context) bool {
	return c.Summary != "" || len(c.Artifacts) > 0 || len(c.Decisions) > 0
}

func writeInputsBlock(b *strings.Builder, inputs map[string]any) {
	data, err := json.MarshalIndent(inputs, "", "  ")
	if err != nil {
		fmt.Fprintf(b, "\n(inputs unavailable: %v)\n", err)
		return
	}
	fmt.Fprintf(b, "\n**Inputs**:\n\n```json\n%s\n```\n", data)
}
