// Package handoff packages work for transfer between agents. A Package is a
// versioned, immutable envelope carrying instructions, working context and a
// snapshot of the sender's execution trace; a Registry routes pending
// packages to their targets. Serialization is schema-versioned so receivers
// can reject envelopes they cannot understand instead of misreading them.
package handoff

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/shikko/trace"
)

// SchemaVersion is written into every prepared package. Parse accepts any
// minor drift within the same major version.
const SchemaVersion = "1.0"

// Status is the lifecycle state of a package in a registry.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDeclined   Status = "declined"
	StatusExpired    Status = "expired"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress, StatusCompleted, StatusDeclined, StatusExpired:
		return true
	}
	return false
}

// Priority orders pending packages for a target agent.
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityNormal    Priority = "normal"
	PriorityDeferred  Priority = "deferred"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityImmediate, PriorityNormal, PriorityDeferred:
		return true
	}
	return false
}

// rank gives the sort order for pending lists: immediate first, unknown last.
func (p Priority) rank() int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityNormal:
		return 1
	case PriorityDeferred:
		return 2
	}
	return 3
}

// Artifact references one piece of work product the receiving agent needs.
type Artifact struct {
	Name  string `json:"name"`
	Kind  string `json:"kind,omitempty"`
	Ref   string `json:"ref,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Context is the working context transferred with a handoff.
type Context struct {
	Summary   string         `json:"summary,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Decisions []string       `json:"decisions,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Instructions tell the receiving agent what to do. Task is required;
// everything else is advisory structure.
type Instructions struct {
	Task            string         `json:"task"`
	Constraints     []string       `json:"constraints,omitempty"`
	Inputs          map[string]any `json:"inputs,omitempty"`
	SuccessCriteria []string       `json:"success_criteria,omitempty"`
}

// Request is the input to Prepare. Instructions accepts an Instructions
// value, a pointer to one, or a bare task string.
type Request struct {
	Source            string
	Target            string
	Context           Context
	Instructions      any
	Priority          Priority
	ExpirationMinutes int
	Trace             *trace.Data
}

// Package is a prepared handoff. Treat it as immutable: Prepare deep-copies
// everything in, the registry deep-copies on the way out, and mutating a
// Package you hold never changes one anybody else holds.
type Package struct {
	ID           uuid.UUID    `json:"id"`
	Version      string       `json:"version"`
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	Status       Status       `json:"status"`
	Priority     Priority     `json:"priority"`
	Instructions Instructions `json:"instructions"`
	Context      Context      `json:"context"`
	Trace        *trace.Data  `json:"trace,omitempty"`
}

// Prepare builds an immutable package from a request: it generates the id,
// stamps the schema version and creation time, defaults the priority to
// normal, computes the expiry only when ExpirationMinutes is positive, and
// embeds a snapshot (never a live reference) of the supplied trace.
func Prepare(req Request) (*Package, error) {
	if req.Source == "" {
		return nil, fmt.Errorf("handoff: source agent required")
	}
	if req.Target == "" {
		return nil, fmt.Errorf("handoff: target agent required")
	}

	instructions, err := normalizeInstructions(req.Instructions)
	if err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("handoff: unknown priority %q", priority)
	}

	if req.ExpirationMinutes < 0 {
		return nil, fmt.Errorf("handoff: expiration minutes must not be negative")
	}

	now := time.Now().UTC()
	pkg := &Package{
		ID:           uuid.New(),
		Version:      SchemaVersion,
		Source:       req.Source,
		Target:       req.Target,
		CreatedAt:    now,
		Status:       StatusPending,
		Priority:     priority,
		Instructions: instructions,
		Context:      copyContext(req.Context),
	}
	if req.ExpirationMinutes > 0 {
		expires := now.Add(time.Duration(req.ExpirationMinutes) * time.Minute)
		pkg.ExpiresAt = &expires
	}
	if req.Trace != nil {
		embedded := req.Trace.Clone()
		pkg.Trace = &embedded
	}
	return pkg, nil
}

// normalizeInstructions accepts the shapes Request.Instructions allows and
// returns a deep-copied Instructions with a non-empty task.
func normalizeInstructions(raw any) (Instructions, error) {
	var in Instructions
	switch v := raw.(type) {
	case nil:
		return in, fmt.Errorf("handoff: instructions required")
	case string:
		in = Instructions{Task: v}
	case Instructions:
		in = v
	case *Instructions:
		if v == nil {
			return in, fmt.Errorf("handoff: instructions required")
		}
		in = *v
	default:
		return in, fmt.Errorf("handoff: unsupported instructions type %T", raw)
	}
	if in.Task == "" {
		return in, fmt.Errorf("handoff: instructions task required")
	}
	return copyInstructions(in), nil
}

// Clone returns a deep copy of the package.
func (p *Package) Clone() *Package {
	if p == nil {
		return nil
	}
	out := *p
	if p.ExpiresAt != nil {
		at := *p.ExpiresAt
		out.ExpiresAt = &at
	}
	out.Instructions = copyInstructions(p.Instructions)
	out.Context = copyContext(p.Context)
	if p.Trace != nil {
		tr := p.Trace.Clone()
		out.Trace = &tr
	}
	return &out
}

// ── Deep-copy helpers ──────────────────────────────────────────────────────────

func copyInstructions(in Instructions) Instructions {
	out := in
	out.Constraints = copyStrings(in.Constraints)
	out.SuccessCriteria = copyStrings(in.SuccessCriteria)
	out.Inputs = copyAnyMap(in.Inputs)
	return out
}

func copyContext(c Context) Context {
	out := c
	if c.Artifacts != nil {
		out.Artifacts = make([]Artifact, len(c.Artifacts))
		copy(out.Artifacts, c.Artifacts)
	}
	out.Decisions = copyStrings(c.Decisions)
	out.Metadata = copyAnyMap(c.Metadata)
	return out
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// copyAnyMap deep-copies JSON-shaped maps. Dates revived by Parse stay
// time.Time values; everything else is copied by value or recursed.
func copyAnyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = copyAnyValue(v)
	}
	return out
}

func copyAnyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyAnyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyAnyValue(e)
		}
		return out
	default:
		return v
	}
}
