package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/shikko/strategy"
	"github.com/ashita-ai/shikko/trace"
)

// Risk is one identified risk with its planned mitigation.
type Risk struct {
	Description string `json:"description"`
	Likelihood  string `json:"likelihood,omitempty"`
	Mitigation  string `json:"mitigation,omitempty"`
}

// ChangeProposalInput is the input to the change-proposal generator.
type ChangeProposalInput struct {
	Title        string   `json:"title"`
	Motivation   string   `json:"motivation"`
	Scope        []string `json:"scope"`
	OutOfScope   []string `json:"out_of_scope,omitempty"`
	Risks        []Risk   `json:"risks,omitempty"`
	RolloutSteps []string `json:"rollout_steps"`
}

// ChangeProposalStrategy generates a change proposal document.
type ChangeProposalStrategy struct{}

func (ChangeProposalStrategy) Name() string    { return "change-proposal" }
func (ChangeProposalStrategy) Version() string { return "1.0.2" }

func (ChangeProposalStrategy) Validate(in ChangeProposalInput) strategy.ValidationResult {
	var r strategy.ValidationResult
	r.Valid = true

	if strings.TrimSpace(in.Title) == "" {
		r.AddError(strategy.NewFieldError("title", "required", "title is required"))
	}
	if strings.TrimSpace(in.Motivation) == "" {
		r.AddError(strategy.NewFieldError("motivation", "required", "motivation is required"))
	}
	if len(in.Scope) == 0 {
		r.AddError(strategy.NewFieldError("scope", "required", "at least one scope item is required"))
	}
	if len(in.RolloutSteps) == 0 {
		r.AddError(strategy.NewFieldError("rollout_steps", "required", "at least one rollout step is required"))
	}
	for i, risk := range in.Risks {
		if strings.TrimSpace(risk.Description) == "" {
			r.AddError(strategy.NewFieldError(
				fmt.Sprintf("risks[%d].description", i), "required", "risk description is required"))
		}
	}

	if len(in.Risks) == 0 {
		r.AddWarning(strategy.NewFieldWarning(
			"risks", "empty", "no risks identified; reviewers usually find some"))
	}
	for i, risk := range in.Risks {
		if risk.Mitigation == "" {
			r.AddWarning(strategy.NewFieldWarning(
				fmt.Sprintf("risks[%d].mitigation", i), "missing_mitigation",
				fmt.Sprintf("risk %d has no mitigation", i+1)))
		}
	}
	return r
}

func (s ChangeProposalStrategy) Execute(ctx context.Context, in ChangeProposalInput) (Document, error) {
	tr := trace.FromContext(ctx)

	sections := []Section{
		{Title: "Motivation", Body: in.Motivation},
		{Title: "Scope", Body: bulletList(in.Scope)},
	}
	if len(in.OutOfScope) > 0 {
		sections = append(sections, Section{Title: "Out of Scope", Body: bulletList(in.OutOfScope)})
	}
	if len(in.Risks) > 0 {
		sections = append(sections, Section{Title: "Risks", Body: renderRisks(in.Risks)})
		tr.RecordDecision("docgen", "rendered risk register", map[string]any{
			"risks": len(in.Risks),
		})
	}
	sections = append(sections, Section{Title: "Rollout", Body: numberedList(in.RolloutSteps)})

	doc := assemble(in.Title, sections)
	tr.RecordMetric("rollout_steps", float64(len(in.RolloutSteps)))
	tr.RecordMetric("word_count", float64(doc.WordCount))
	return doc, nil
}

func renderRisks(risks []Risk) string {
	var b strings.Builder
	b.WriteString("| Risk | Likelihood | Mitigation |\n")
	b.WriteString("|------|------------|------------|\n")
	for _, r := range risks {
		likelihood := r.Likelihood
		if likelihood == "" {
			likelihood = "unknown"
		}
		mitigation := r.Mitigation
		if mitigation == "" {
			mitigation = "none"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", r.Description, likelihood, mitigation)
	}
	return b.String()
}
