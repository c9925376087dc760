package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/shikko/strategy"
	"github.com/ashita-ai/shikko/trace"
)

// maxRunbookSteps bounds a single runbook. Longer procedures should be split
// into scenario-specific runbooks that link to each other.
const maxRunbookSteps = 50

// RunbookStep is one operator action with its expected observation.
type RunbookStep struct {
	Action   string `json:"action"`
	Expected string `json:"expected,omitempty"`
}

// RunbookInput is the input to the runbook generator.
type RunbookInput struct {
	Service    string        `json:"service"`
	Scenario   string        `json:"scenario"`
	Severity   string        `json:"severity,omitempty"`
	Steps      []RunbookStep `json:"steps"`
	Escalation []string      `json:"escalation,omitempty"`
}

// RunbookStrategy generates an operational runbook.
type RunbookStrategy struct{}

func (RunbookStrategy) Name() string    { return "runbook" }
func (RunbookStrategy) Version() string { return "1.0.0" }

func (RunbookStrategy) Validate(in RunbookInput) strategy.ValidationResult {
	var r strategy.ValidationResult
	r.Valid = true

	if strings.TrimSpace(in.Service) == "" {
		r.AddError(strategy.NewFieldError("service", "required", "service is required"))
	}
	if strings.TrimSpace(in.Scenario) == "" {
		r.AddError(strategy.NewFieldError("scenario", "required", "scenario is required"))
	}
	switch {
	case len(in.Steps) == 0:
		r.AddError(strategy.NewFieldError("steps", "required", "at least one step is required"))
	case len(in.Steps) > maxRunbookSteps:
		r.AddError(strategy.NewFieldError("steps", "too_long",
			fmt.Sprintf("runbooks are capped at %d steps, got %d", maxRunbookSteps, len(in.Steps))))
	}
	for i, step := range in.Steps {
		if strings.TrimSpace(step.Action) == "" {
			r.AddError(strategy.NewFieldError(
				fmt.Sprintf("steps[%d].action", i), "required", "step action is required"))
		}
	}

	if len(in.Escalation) == 0 {
		r.AddWarning(strategy.NewFieldWarning(
			"escalation", "empty", "no escalation path; on-call will improvise one at 3am"))
	}
	return r
}

func (s RunbookStrategy) Execute(ctx context.Context, in RunbookInput) (Document, error) {
	tr := trace.FromContext(ctx)

	overview := fmt.Sprintf("Service: **%s**", in.Service)
	if in.Severity != "" {
		overview += fmt.Sprintf("\nSeverity: **%s**", in.Severity)
	}
	sections := []Section{
		{Title: "Overview", Body: overview},
		{Title: "Procedure", Body: renderSteps(in.Steps)},
	}
	if len(in.Escalation) > 0 {
		sections = append(sections, Section{Title: "Escalation", Body: numberedList(in.Escalation)})
	}

	title := fmt.Sprintf("Runbook: %s — %s", in.Service, in.Scenario)
	doc := assemble(title, sections)
	tr.RecordDecision("docgen", "rendered procedure", map[string]any{
		"steps":      len(in.Steps),
		"escalation": len(in.Escalation),
	})
	tr.RecordMetric("steps", float64(len(in.Steps)))
	tr.RecordMetric("word_count", float64(doc.WordCount))
	return doc, nil
}

func renderSteps(steps []RunbookStep) string {
	var b strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step.Action)
		if step.Expected != "" {
			fmt.Fprintf(&b, "   - Expected: %s\n", step.Expected)
		}
	}
	return b.String()
}
