// Package policy ships the Azure Policy definition that deploys flow logs
// with traffic analytics for subnets guarded by a network security group.
// The definition is evaluated by Azure; this package only exposes it and
// checks parameter assignments against it.
package policy

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
)

//go:embed flowlogs-subnet-deploy.json
var document []byte

var (
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrMissingParameter = errors.New("missing parameter")
	ErrInvalidParameter = errors.New("invalid parameter")
)

type ParameterMetadata struct {
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type Parameter struct {
	Type          string            `json:"type"`
	Metadata      ParameterMetadata `json:"metadata"`
	AllowedValues []any             `json:"allowedValues,omitempty"`
	DefaultValue  any               `json:"defaultValue,omitempty"`
}

func (p Parameter) Required() bool {
	return p.DefaultValue == nil
}

type Definition struct {
	DisplayName string               `json:"displayName"`
	PolicyType  string               `json:"policyType"`
	Mode        string               `json:"mode"`
	Description string               `json:"description"`
	Parameters  map[string]Parameter `json:"parameters"`
	PolicyRule  json.RawMessage      `json:"policyRule"`
}

// Document returns the raw definition as shipped.
func Document() []byte {
	return slices.Clone(document)
}

func Load() (*Definition, error) {
	var envelope struct {
		Properties Definition `json:"properties"`
	}
	if err := json.Unmarshal(document, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse policy definition: %w", err)
	}
	return &envelope.Properties, nil
}

// ParameterNames returns the parameter names in sorted order.
func (d *Definition) ParameterNames() []string {
	names := make([]string, 0, len(d.Parameters))
	for name := range d.Parameters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadAssignment reads assignment parameters in the Azure format
// {"name": {"value": ...}}.
func ReadAssignment(r io.Reader) (map[string]any, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse parameters: %w", err)
	}

	// A deployment parameters file wraps the values in "parameters".
	if _, ok := raw["$schema"]; ok {
		nested := raw["parameters"]
		raw = nil
		if err := json.Unmarshal(nested, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse parameters: %w", err)
		}
	}

	values := make(map[string]any, len(raw))
	for name, msg := range raw {
		var v struct {
			Value any `json:"value"`
		}
		if err := json.Unmarshal(msg, &v); err != nil {
			return nil, fmt.Errorf("failed to parse parameter %s: %w", name, err)
		}
		values[name] = v.Value
	}
	return values, nil
}

// Validate checks values against the parameter declarations. Every
// problem is reported, not just the first.
func (d *Definition) Validate(values map[string]any) error {
	var errs []error

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p, ok := d.Parameters[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownParameter, name))
			continue
		}
		if err := p.check(values[name]); err != nil {
			errs = append(errs, fmt.Errorf("%w %s: %w", ErrInvalidParameter, name, err))
		}
	}

	for _, name := range d.ParameterNames() {
		if _, ok := values[name]; !ok && d.Parameters[name].Required() {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingParameter, name))
		}
	}
	return errors.Join(errs...)
}

func (p Parameter) check(v any) error {
	normalized, err := normalize(p.Type, v)
	if err != nil {
		return err
	}
	if len(p.AllowedValues) == 0 {
		return nil
	}
	for _, allowed := range p.AllowedValues {
		a, err := normalize(p.Type, allowed)
		if err == nil && a == normalized {
			return nil
		}
	}
	return fmt.Errorf("%v is not one of %v", v, p.AllowedValues)
}

// normalize converts a decoded JSON value into a comparable Go value of the
// declared parameter type.
func normalize(typ string, v any) (any, error) {
	switch typ {
	case "String":
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %T", v)
		}
		return s, nil
	case "Integer":
		var f float64
		switch n := v.(type) {
		case json.Number:
			parsed, err := n.Float64()
			if err != nil {
				return nil, fmt.Errorf("expected an integer, got %s", n)
			}
			f = parsed
		case float64:
			f = n
		case int:
			f = float64(n)
		default:
			return nil, fmt.Errorf("expected an integer, got %T", v)
		}
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("expected an integer, got %v", f)
		}
		return int64(f), nil
	case "Boolean":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected a boolean, got %T", v)
		}
		return b, nil
	default:
		return v, nil
	}
}
