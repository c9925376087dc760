package handoff

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// VersionError reports a package whose schema version is missing or
// incompatible with SchemaVersion. Parse returns it wrapped, so use
// errors.As to detect it at inbound-message boundaries.
type VersionError struct {
	Got    string
	Want   string
	Reason string
}

func (e *VersionError) Error() string {
	if e.Got == "" {
		return fmt.Sprintf("handoff: %s (supported version %s)", e.Reason, e.Want)
	}
	return fmt.Sprintf("handoff: %s: got version %q, supported version %s", e.Reason, e.Got, e.Want)
}

// JSON returns the canonical serialized form of the package, accepted back
// by Parse.
func (p *Package) JSON() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("handoff: marshal package: %w", err)
	}
	return data, nil
}

// Parse re-hydrates a package from its serialized form. It accepts raw JSON
// ([]byte or string), an already-decoded map[string]any, or a Package value
// (useful when a handoff arrives through an in-process channel). Unlike the
// executor's guarded lifecycle, Parse propagates errors: a missing or
// incompatible version field is a *VersionError, anything malformed is a
// descriptive wrapped error.
//
// Timestamps come back as live time.Time values, including RFC 3339 shaped
// strings nested anywhere inside Instructions.Inputs.
func Parse(raw any) (*Package, error) {
	switch v := raw.(type) {
	case []byte:
		return parseJSON(v)
	case string:
		return parseJSON([]byte(v))
	case json.RawMessage:
		return parseJSON(v)
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("handoff: encode raw package: %w", err)
		}
		return parseJSON(data)
	case *Package:
		if v == nil {
			return nil, fmt.Errorf("handoff: parse: nil package")
		}
		if err := checkVersion(v.Version); err != nil {
			return nil, err
		}
		return revive(v.Clone()), nil
	case Package:
		if err := checkVersion(v.Version); err != nil {
			return nil, err
		}
		return revive(v.Clone()), nil
	default:
		return nil, fmt.Errorf("handoff: parse: unsupported input type %T", raw)
	}
}

func parseJSON(data []byte) (*Package, error) {
	// The version gate runs on the raw document first, so a receiver on an
	// older schema rejects a newer envelope instead of misreading it as a
	// shape error.
	var versionProbe struct {
		Version *string `json:"version"`
	}
	if err := json.Unmarshal(data, &versionProbe); err != nil {
		return nil, fmt.Errorf("handoff: parse package: %w", err)
	}
	version := ""
	if versionProbe.Version != nil {
		version = *versionProbe.Version
	}
	if err := checkVersion(version); err != nil {
		return nil, err
	}

	var pkg Package
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("handoff: parse package: %w", err)
	}
	return revive(&pkg), nil
}

// checkVersion enforces the schema contract: the version field must be
// present, and its major version must match SchemaVersion's. Minor drift
// within the same major is accepted.
func checkVersion(version string) error {
	if strings.TrimSpace(version) == "" {
		return fmt.Errorf("handoff: parse package: %w",
			&VersionError{Want: SchemaVersion, Reason: "missing version field"})
	}
	if majorOf(version) != majorOf(SchemaVersion) {
		return fmt.Errorf("handoff: parse package: %w",
			&VersionError{Got: version, Want: SchemaVersion, Reason: "incompatible version"})
	}
	return nil
}

func majorOf(version string) string {
	major, _, _ := strings.Cut(version, ".")
	return major
}

// revive converts date-shaped strings nested in Instructions.Inputs back
// into time.Time values. Top-level timestamps are typed on the struct and
// decode directly.
func revive(p *Package) *Package {
	if p.Instructions.Inputs != nil {
		p.Instructions.Inputs = reviveMap(p.Instructions.Inputs)
	}
	return p
}

func reviveMap(m map[string]any) map[string]any {
	for k, v := range m {
		m[k] = reviveValue(v)
	}
	return m
}

func reviveValue(v any) any {
	switch val := v.(type) {
	case string:
		if t, ok := parseRFC3339(val); ok {
			return t
		}
		return val
	case map[string]any:
		return reviveMap(val)
	case []any:
		for i, e := range val {
			val[i] = reviveValue(e)
		}
		return val
	default:
		return v
	}
}

// parseRFC3339 recognises the timestamp shapes json.Marshal emits for
// time.Time. Plain dates or other formats stay strings.
func parseRFC3339(s string) (time.Time, bool) {
	if len(s) < len("2006-01-02T15:04:05Z") {
		return time.Time{}, false
	}
	// Cheap shape check before the full parse: digits and dashes up front,
	// then the date/time separator.
	if s[4] != '-' || s[7] != '-' || (s[10] != 'T' && s[10] != 't') {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
