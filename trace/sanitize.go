package trace

import (
	"encoding"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strings"
	"time"
)

// circularMarker replaces any value that is an ancestor of itself.
const circularMarker = "[Circular]"

// maxSanitizeDepth bounds the walk so pathological (non-cyclic but very
// deep) inputs cannot exhaust the stack. Values past the bound collapse to
// their fmt representation.
const maxSanitizeDepth = 100

// Sanitize converts an arbitrary context map into a JSON-representable one.
// It never fails and never panics:
//
//   - JSON-friendly values pass through (deep-copied, never aliased)
//   - time.Time becomes an RFC 3339 string
//   - big.Int becomes its decimal string
//   - funcs and channels become their type string
//   - non-finite floats become their fmt representation
//   - error values become their message
//   - cyclic references collapse to "[Circular]"
//
// Cycle detection tracks the ancestor chain only, so the same value
// appearing in two sibling positions is kept both times.
func Sanitize(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = sanitizeValue(reflect.ValueOf(v), make(map[uintptr]struct{}), 0)
	}
	return out
}

// SanitizeValue sanitizes a single value under the same rules as Sanitize.
func SanitizeValue(v any) any {
	return sanitizeValue(reflect.ValueOf(v), make(map[uintptr]struct{}), 0)
}

func sanitizeValue(v reflect.Value, ancestors map[uintptr]struct{}, depth int) any {
	if !v.IsValid() {
		return nil
	}
	if depth > maxSanitizeDepth {
		return fmt.Sprintf("%v", v)
	}

	// Unwrap interfaces before anything else so the concrete type drives
	// the special cases below.
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		return sanitizeValue(v.Elem(), ancestors, depth)
	}

	if v.CanInterface() {
		switch val := v.Interface().(type) {
		case time.Time:
			return val.UTC().Format(time.RFC3339Nano)
		case *time.Time:
			if val == nil {
				return nil
			}
			return val.UTC().Format(time.RFC3339Nano)
		case big.Int:
			return val.String()
		case *big.Int:
			if val == nil {
				return nil
			}
			return val.String()
		case error:
			if isNilValue(v) {
				return nil
			}
			return val.Error()
		case encoding.TextMarshaler:
			// Types encoding/json would render as text (uuid.UUID,
			// netip.Addr, ...) keep that rendering here.
			if isNilValue(v) {
				return nil
			}
			if b, err := val.MarshalText(); err == nil {
				return string(b)
			}
			return fmt.Sprintf("%v", val)
		}
	}

	switch v.Kind() {
	case reflect.Bool:
		return v.Bool()
	// Numbers normalise to float64, the JSON number domain, so a sanitized
	// context survives a serialize/deserialize cycle bit-identically.
	// Integers that would lose precision there belong in a big.Int, which
	// sanitizes to its decimal string instead.
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Sprintf("%v", f)
		}
		return f
	case reflect.String:
		return v.String()
	case reflect.Complex64, reflect.Complex128:
		return fmt.Sprintf("%v", v.Complex())

	case reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if _, ok := ancestors[ptr]; ok {
			return circularMarker
		}
		ancestors[ptr] = struct{}{}
		out := sanitizeValue(v.Elem(), ancestors, depth+1)
		delete(ancestors, ptr)
		return out

	case reflect.Map:
		if v.IsNil() {
			return nil
		}
		ptr := v.Pointer()
		if _, ok := ancestors[ptr]; ok {
			return circularMarker
		}
		ancestors[ptr] = struct{}{}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[mapKey(iter.Key())] = sanitizeValue(iter.Value(), ancestors, depth+1)
		}
		delete(ancestors, ptr)
		return out

	case reflect.Slice:
		if v.IsNil() {
			return nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return string(v.Bytes())
		}
		ptr := v.Pointer()
		if _, ok := ancestors[ptr]; ok {
			return circularMarker
		}
		ancestors[ptr] = struct{}{}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i), ancestors, depth+1)
		}
		delete(ancestors, ptr)
		return out

	case reflect.Array:
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = sanitizeValue(v.Index(i), ancestors, depth+1)
		}
		return out

	case reflect.Struct:
		return sanitizeStruct(v, ancestors, depth)

	case reflect.Func, reflect.Chan:
		// No JSON shape exists; the type string is the most useful
		// stable representation.
		return v.Type().String()

	default:
		return fmt.Sprintf("%v", v)
	}
}

// sanitizeStruct walks exported fields, honouring json tags for naming and
// omission the way encoding/json would.
func sanitizeStruct(v reflect.Value, ancestors map[uintptr]struct{}, depth int) map[string]any {
	t := v.Type()
	out := make(map[string]any)
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
		out[name] = sanitizeValue(v.Field(i), ancestors, depth+1)
	}
	return out
}

// mapKey renders a map key as a string. String keys pass through; anything
// else takes its fmt representation, matching encoding/json's behaviour for
// integer keys.
func mapKey(k reflect.Value) string {
	if k.Kind() == reflect.Interface {
		k = k.Elem()
	}
	if k.IsValid() && k.Kind() == reflect.String {
		return k.String()
	}
	if !k.IsValid() {
		return "<nil>"
	}
	return fmt.Sprintf("%v", k.Interface())
}

func isNilValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}
