// Package tools declares the fixed set of functions the language model may
// invoke: schema-described, name-addressed handlers over the cart, catalog,
// and settings services.
//
// Two conventions keep the model loop simple:
//
//   - Business failures (unknown SKU, short stock, incomplete checkout) are
//     values, not errors: handlers return {"ok": false, "error": ...} maps
//     with enough context for the model to re-prompt the customer. Only
//     infrastructure failures surface as Go errors.
//   - Argument validation happens in the dispatcher, not in handlers:
//     declared defaults are applied, types are coerced leniently (models
//     send "2" for 2), and a validation failure is a typed error the agent
//     loop reports back to the model instead of crashing the request.
package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"sync"

	"github.com/vendobot/go-sales-backend/internal/observability"
)

// ErrNotRegistered is returned by Dispatch for an unknown tool name.
var ErrNotRegistered = errors.New("tool not registered")

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Scope is the per-request context a handler runs against.
type Scope struct {
	BotID  string
	ChatID string
}

// Field describes one input parameter of a tool. Type is a JSON-schema
// scalar type: "string", "integer", or "boolean".
type Field struct {
	Type        string
	Description string
	Required    bool
	Default     any
	Enum        []string
}

// Handler executes a tool against validated arguments.
type Handler func(ctx context.Context, args map[string]any, scope Scope) (map[string]any, error)

// Tool couples a name, its model-facing description, the input schema, and
// the handler. The description is the model's only guidance; write it for
// the model, not for developers.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]Field
	Handler     Handler
}

// Spec is one entry of the exported tool catalog, shaped for advertising
// to a language model as an invokable function.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ValidationError reports a bad tool argument. The agent loop serializes
// it back to the model as a tool result rather than failing the request.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s: argument %q %s", e.Tool, e.Field, e.Reason)
}

// Registry holds the registered tools. Registration happens at startup;
// Dispatch and Catalog are safe for concurrent use afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. The name must match [A-Za-z0-9_-]+ and be unique;
// a handler is mandatory.
func (r *Registry) Register(t Tool) error {
	if !nameRE.MatchString(t.Name) {
		return fmt.Errorf("invalid tool name %q", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s has no handler", t.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tool %s already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for startup wiring; it panics on failure.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Dispatch validates args against the named tool's schema (applying
// defaults and coercing types) and invokes its handler. The returned map
// is the handler's result, unmodified.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any, scope Scope) (map[string]any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}

	parsed, err := validateArgs(t, args)
	if err != nil {
		return nil, err
	}
	observability.ToolCallsTotal.WithLabelValues(t.Name).Inc()
	return t.Handler(ctx, parsed, scope)
}

// Catalog exports every registered tool in registration order.
func (r *Registry) Catalog() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		props := make(map[string]any, len(t.Schema))
		var required []string
		for field, f := range t.Schema {
			p := map[string]any{"type": f.Type}
			if f.Description != "" {
				p["description"] = f.Description
			}
			if len(f.Enum) > 0 {
				p["enum"] = f.Enum
			}
			if f.Default != nil {
				p["default"] = f.Default
			}
			props[field] = p
			if f.Required {
				required = append(required, field)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		out = append(out, Spec{Name: t.Name, Description: t.Description, Parameters: params})
	}
	return out
}

// validateArgs applies defaults and coerces raw arguments to the schema.
// Unknown arguments are dropped silently; models pad calls with junk.
func validateArgs(t Tool, raw map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(t.Schema))
	for field, f := range t.Schema {
		v, present := raw[field]
		if !present || v == nil {
			if f.Required {
				return nil, &ValidationError{Tool: t.Name, Field: field, Reason: "is required"}
			}
			if f.Default != nil {
				out[field] = f.Default
			}
			continue
		}
		coerced, err := coerce(f.Type, v)
		if err != nil {
			return nil, &ValidationError{Tool: t.Name, Field: field, Reason: err.Error()}
		}
		if len(f.Enum) > 0 {
			s, _ := coerced.(string)
			found := false
			for _, e := range f.Enum {
				if s == e {
					found = true
					break
				}
			}
			if !found {
				return nil, &ValidationError{Tool: t.Name, Field: field, Reason: fmt.Sprintf("must be one of %v", f.Enum)}
			}
		}
		out[field] = coerced
	}
	return out, nil
}

// coerce converts a JSON-decoded value to the declared scalar type.
func coerce(typ string, v any) (any, error) {
	switch typ {
	case "string":
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		}
		return nil, errors.New("must be a string")
	case "integer":
		switch x := v.(type) {
		case float64:
			if x != float64(int(x)) {
				return nil, errors.New("must be an integer")
			}
			return int(x), nil
		case int:
			return x, nil
		case string:
			n, err := strconv.Atoi(x)
			if err != nil {
				return nil, errors.New("must be an integer")
			}
			return n, nil
		}
		return nil, errors.New("must be an integer")
	case "boolean":
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, errors.New("must be a boolean")
			}
			return b, nil
		}
		return nil, errors.New("must be a boolean")
	default:
		return nil, fmt.Errorf("unsupported schema type %q", typ)
	}
}

// Arg helpers for handlers; validation guarantees the types, so the
// zero value only appears for optional fields that were omitted.

func argString(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args map[string]any, key string) int {
	n, _ := args[key].(int)
	return n
}

func argBool(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}
