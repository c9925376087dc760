package docgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/ashita-ai/shikko/strategy"
	"github.com/ashita-ai/shikko/trace"
)

// DecisionRecordStatuses are the lifecycle states an architecture decision
// record may carry, per the usual ADR conventions.
var DecisionRecordStatuses = map[string]bool{
	"proposed":   true,
	"accepted":   true,
	"rejected":   true,
	"deprecated": true,
	"superseded": true,
}

// DecisionOption is one alternative considered while making the decision.
type DecisionOption struct {
	Name      string `json:"name"`
	Summary   string `json:"summary,omitempty"`
	Rejection string `json:"rejection,omitempty"`
}

// DecisionRecordInput is the input to the decision-record generator.
type DecisionRecordInput struct {
	Title           string           `json:"title"`
	Status          string           `json:"status"`
	DecisionContext string           `json:"decision_context"`
	Decision        string           `json:"decision"`
	Drivers         []string         `json:"drivers,omitempty"`
	Options         []DecisionOption `json:"options,omitempty"`
	Consequences    []string         `json:"consequences,omitempty"`
}

// DecisionRecordStrategy generates an architecture decision record.
type DecisionRecordStrategy struct{}

func (DecisionRecordStrategy) Name() string    { return "decision-record" }
func (DecisionRecordStrategy) Version() string { return "1.1.0" }

func (DecisionRecordStrategy) Validate(in DecisionRecordInput) strategy.ValidationResult {
	var r strategy.ValidationResult
	r.Valid = true

	if strings.TrimSpace(in.Title) == "" {
		r.AddError(strategy.NewFieldError("title", "required", "title is required"))
	}
	if strings.TrimSpace(in.Decision) == "" {
		r.AddError(strategy.NewFieldError("decision", "required", "decision is required"))
	}
	if strings.TrimSpace(in.DecisionContext) == "" {
		r.AddError(strategy.NewFieldError("decision_context", "required", "decision context is required"))
	}
	if !DecisionRecordStatuses[in.Status] {
		r.AddError(strategy.NewFieldError("status", "invalid_enum",
			fmt.Sprintf("status %q is not a known ADR status", in.Status)))
	}
	for i, opt := range in.Options {
		if strings.TrimSpace(opt.Name) == "" {
			r.AddError(strategy.NewFieldError(
				fmt.Sprintf("options[%d].name", i), "required", "option name is required"))
		}
	}

	if len(in.Options) == 1 {
		r.AddWarning(strategy.NewFieldWarning(
			"options", "single_option",
			"only one option considered; decision records are stronger with alternatives"))
	}
	if len(in.Consequences) == 0 {
		r.AddWarning(strategy.NewFieldWarning(
			"consequences", "empty", "no consequences listed"))
	}
	return r
}

func (s DecisionRecordStrategy) Execute(ctx context.Context, in DecisionRecordInput) (Document, error) {
	tr := trace.FromContext(ctx)

	sections := []Section{
		{Title: "Status", Body: in.Status},
		{Title: "Context", Body: in.DecisionContext},
	}
	if len(in.Drivers) > 0 {
		sections = append(sections, Section{Title: "Decision Drivers", Body: bulletList(in.Drivers)})
		tr.RecordMetric("drivers", float64(len(in.Drivers)))
	}
	if len(in.Options) > 0 {
		sections = append(sections, Section{Title: "Considered Options", Body: renderOptions(in.Options)})
		tr.RecordDecision("docgen", "rendered considered options", map[string]any{
			"options": len(in.Options),
		})
	}
	sections = append(sections, Section{Title: "Decision", Body: in.Decision})
	if len(in.Consequences) > 0 {
		sections = append(sections, Section{Title: "Consequences", Body: bulletList(in.Consequences)})
	}

	doc := assemble(in.Title, sections)
	tr.RecordMetric("sections", float64(len(doc.Sections)))
	tr.RecordMetric("word_count", float64(doc.WordCount))
	return doc, nil
}

func renderOptions(opts []DecisionOption) string {
	var b strings.Builder
	for _, opt := range opts {
		b.WriteString("- **" + opt.Name + "**")
		if opt.Summary != "" {
			b.WriteString(": " + opt.Summary)
		}
		b.WriteString("\n")
		if opt.Rejection != "" {
			b.WriteString("  - Rejected: " + opt.Rejection + "\n")
		}
	}
	return b.String()
}
