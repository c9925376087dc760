package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/ashita-ai/shikko/strategy"
	"github.com/ashita-ai/shikko/trace"
)

// Descriptor describes one registered generator for listing surfaces.
type Descriptor struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	InputFields []string `json:"input_fields"`
}

// Runner is the type-erased face of one registered generator: it accepts
// loosely-typed input and runs it through the execution contract.
type Runner interface {
	Describe() Descriptor
	Run(ctx context.Context, input map[string]any, opts ...strategy.Option) strategy.Result[Document]
}

// Catalog maps generator names to runners so the HTTP, MCP and CLI surfaces
// can execute any generator by name. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	runners map[string]Runner

	// Descriptor listing, computed lazily; Register invalidates it.
	listing []Descriptor
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{runners: make(map[string]Runner)}
}

// DefaultCatalog returns a catalog with every built-in generator registered.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	Register(c, DecisionRecordStrategy{})
	Register(c, ChangeProposalStrategy{})
	Register(c, RunbookStrategy{})
	return c
}

// Register adds a typed generator to the catalog under its own name,
// replacing any previous registration with that name.
func Register[I any](c *Catalog, s strategy.Strategy[I, Document]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[s.Name()] = &typedRunner[I]{strategy: s}
	c.listing = nil
}

// Get returns the runner registered under name.
func (c *Catalog) Get(name string) (Runner, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runners[name]
	return r, ok
}

// Run executes the named generator. An unknown name comes back as a failed
// Result rather than an error, so every catalog outcome has the same shape.
func (c *Catalog) Run(ctx context.Context, name string, input map[string]any, opts ...strategy.Option) strategy.Result[Document] {
	runner, ok := c.Get(name)
	if !ok {
		return unknownStrategyResult(name)
	}
	return runner.Run(ctx, input, opts...)
}

// List returns descriptors for every registered generator, sorted by name.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	cached := c.listing
	c.mu.RUnlock()
	if cached != nil {
		return append([]Descriptor(nil), cached...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listing == nil {
		listing := make([]Descriptor, 0, len(c.runners))
		for _, r := range c.runners {
			listing = append(listing, r.Describe())
		}
		sort.Slice(listing, func(i, j int) bool { return listing[i].Name < listing[j].Name })
		c.listing = listing
	}
	return append([]Descriptor(nil), c.listing...)
}

// typedRunner adapts a typed strategy to the loosely-typed Runner surface by
// round-tripping the input map through JSON into the strategy's input type.
type typedRunner[I any] struct {
	strategy strategy.Strategy[I, Document]
}

func (r *typedRunner[I]) Describe() Descriptor {
	return Descriptor{
		Name:        r.strategy.Name(),
		Version:     r.strategy.Version(),
		InputFields: inputFields[I](),
	}
}

func (r *typedRunner[I]) Run(ctx context.Context, input map[string]any, opts ...strategy.Option) strategy.Result[Document] {
	var typed I
	if err := decodeInput(input, &typed); err != nil {
		return decodeFailureResult[Document](r.strategy.Name(), r.strategy.Version(), err)
	}
	return strategy.NewExecutor(r.strategy, opts...).Run(ctx, typed)
}

// decodeInput converts a JSON-shaped map into the typed input. Unknown
// fields are rejected so a typoed field name fails loudly instead of
// silently producing a half-empty document.
func decodeInput(input map[string]any, dst any) error {
	data, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("docgen: encode input: %w", err)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("docgen: decode input: %w", err)
	}
	return nil
}

// decodeFailureResult reports an undecodable input in the same shape as a
// validation failure, trace snapshot included.
func decodeFailureResult[O any](name, version string, err error) strategy.Result[O] {
	tr := trace.New(name, version)
	fe := &strategy.FieldError{Field: "input", Code: "invalid_input", Message: err.Error()}
	tr.RecordError(fe, nil)
	tr.Complete()
	snap := tr.Snapshot()
	return strategy.Result[O]{
		OK:         false,
		Code:       strategy.CodeValidationFailed,
		Err:        fe,
		Errors:     []*strategy.FieldError{fe},
		Trace:      &snap,
		DurationMs: tr.DurationMs(),
	}
}

func unknownStrategyResult(name string) strategy.Result[Document] {
	tr := trace.New(name, "")
	err := fmt.Errorf("docgen: unknown strategy %q", name)
	tr.RecordError(err, nil)
	tr.Complete()
	snap := tr.Snapshot()
	return strategy.Result[Document]{
		OK:         false,
		Code:       strategy.CodeValidationFailed,
		Err:        err,
		Errors: []*strategy.FieldError{{
			Field: "strategy", Code: "unknown", Message: err.Error(),
		}},
		Trace:      &snap,
		DurationMs: tr.DurationMs(),
	}
}

// inputFields lists the JSON field names of the input type, for listings.
func inputFields[I any]() []string {
	t := reflect.TypeOf((*I)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		fields = append(fields, name)
	}
	return fields
}
