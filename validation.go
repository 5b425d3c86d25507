package toolbridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// argumentValidator checks call arguments against a tool's parameter schema.
// Schemas are compiled lazily, once per tool.
type argumentValidator struct {
	mu       sync.Mutex
	compiled map[string]*jsonschema.Schema
	failed   map[string]error
}

func newArgumentValidator() *argumentValidator {
	return &argumentValidator{
		compiled: make(map[string]*jsonschema.Schema),
		failed:   make(map[string]error),
	}
}

// schemaFor compiles (or returns the cached) schema of d. A schema the compiler
// rejects is remembered and reported on every call.
func (v *argumentValidator) schemaFor(d ToolDescriptor) (*jsonschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if s, ok := v.compiled[d.name]; ok {
		return s, nil
	}
	if err, ok := v.failed[d.name]; ok {
		return nil, err
	}
	url := "mem://toolbridge/" + d.name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, d.Parameters()); err != nil {
		v.failed[d.name] = err
		return nil, err
	}
	s, err := c.Compile(url)
	if err != nil {
		v.failed[d.name] = err
		return nil, err
	}
	v.compiled[d.name] = s
	return s, nil
}

// errSchemaUnavailable marks a schema the compiler rejected. The call then goes
// to the server unvalidated.
var errSchemaUnavailable = errors.New("parameter schema cannot be compiled")

// validate returns a ClientError wrapping ErrValidation when args do not match.
// A nil args map is validated as an empty object.
func (v *argumentValidator) validate(d ToolDescriptor, args map[string]any) error {
	s, err := v.schemaFor(d)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", errSchemaUnavailable, d.name, err)
	}
	var doc any = map[string]any{}
	if args != nil {
		doc = jsonValue(args)
	}
	if err := s.Validate(doc); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrValidation}
	}
	return nil
}

// jsonValue converts Go numbers into the float64 form the compiler expects
// from decoded JSON. Maps and slices are walked; other values pass through.
func jsonValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonValue(val)
		}
		return out
	case int:
		return float64(t)
	case int32:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
