package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/skosovsky/toolbridge"
)

// Validatable is implemented by argument structs that need custom business validation.
// Called after schema validation and unmarshaling.
type Validatable interface {
	Validate() error
}

// Tool is one in-process tool: a name, a description, a JSON Schema and a handler.
// Build it with NewTool or NewDynamicTool.
type Tool struct {
	name        string
	description string
	schema      map[string]any
	resolved    *jsonschema.Resolved
	handle      func(ctx context.Context, argsJSON []byte) ([]toolbridge.ContentBlock, error)
}

// ToolOption configures a tool.
type ToolOption func(*toolOptions)

type toolOptions struct {
	strict bool
}

// WithStrict sets additionalProperties: false on all objects and makes every
// property required (OpenAI Structured Outputs).
func WithStrict() ToolOption {
	return func(o *toolOptions) { o.strict = true }
}

// NewTool builds a Tool from a typed function. The schema is reflected from T;
// arguments are validated against it, decoded into T and, when T implements
// Validatable, checked again before fn runs.
//
// A string result becomes one text block, a []toolbridge.ContentBlock is sent
// as is, anything else is encoded as JSON text.
func NewTool[T any, R any](
	name, description string,
	fn func(ctx context.Context, args T) (R, error),
	opts ...ToolOption,
) (*Tool, error) {
	if fn == nil {
		return nil, errors.New("tool handler must not be nil")
	}
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	reflected, err := reflectSchema[T]()
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	schemaMap, resolved, err := finalize(reflected, o.strict)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", name, err)
	}
	handle := func(ctx context.Context, argsJSON []byte) ([]toolbridge.ContentBlock, error) {
		var args T
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return nil, parseError(err)
		}
		if err := runCustomValidation(args); err != nil {
			return nil, err
		}
		res, err := fn(ctx, args)
		if err != nil {
			return nil, err
		}
		return encodeResult(res)
	}
	return &Tool{name: name, description: description, schema: schemaMap, resolved: resolved, handle: handle}, nil
}

// NewDynamicTool creates a Tool from a raw JSON Schema map. The handler gets the
// validated arguments as a map. schemaMap is copied, never mutated.
func NewDynamicTool(
	name, description string,
	schemaMap map[string]any,
	fn func(ctx context.Context, args map[string]any) ([]toolbridge.ContentBlock, error),
	opts ...ToolOption,
) (*Tool, error) {
	if schemaMap == nil {
		return nil, errors.New("dynamic schema map must not be nil")
	}
	if fn == nil {
		return nil, errors.New("dynamic tool handler must not be nil")
	}
	var o toolOptions
	for _, opt := range opts {
		opt(&o)
	}
	parsed, err := parseSchema(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("decode dynamic schema: %w", err)
	}
	schemaCopy, resolved, err := finalize(parsed, o.strict)
	if err != nil {
		return nil, fmt.Errorf("compile dynamic schema: %w", err)
	}
	handle := func(ctx context.Context, argsJSON []byte) ([]toolbridge.ContentBlock, error) {
		var args map[string]any
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return nil, parseError(err)
		}
		return fn(ctx, args)
	}
	return &Tool{name: name, description: description, schema: schemaCopy, resolved: resolved, handle: handle}, nil
}

// Name returns the tool name.
func (t *Tool) Name() string { return t.name }

// Description returns the tool description.
func (t *Tool) Description() string { return t.description }

// Parameters returns a copy of the JSON Schema.
func (t *Tool) Parameters() map[string]any {
	out, err := cloneSchema(t.schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	return out
}

// run validates args against the schema and calls the handler.
func (t *Tool) run(ctx context.Context, args map[string]any) ([]toolbridge.ContentBlock, error) {
	if args == nil {
		args = map[string]any{}
	}
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, parseError(err)
	}
	var v any
	if err := json.Unmarshal(argsJSON, &v); err != nil {
		return nil, parseError(err)
	}
	if err := t.resolved.Validate(v); err != nil {
		return nil, &toolbridge.ClientError{Reason: err.Error(), Err: toolbridge.ErrValidation}
	}
	return t.handle(ctx, argsJSON)
}

func parseError(err error) error {
	return &toolbridge.ClientError{Reason: "arguments are not valid JSON: " + err.Error(), Err: toolbridge.ErrValidation}
}

// runCustomValidation calls Validate on args, or on &args for pointer receivers.
func runCustomValidation[T any](args T) error {
	v, ok := any(args).(Validatable)
	if !ok && reflect.TypeOf(args) != nil && reflect.TypeOf(args).Kind() != reflect.Pointer {
		v, ok = any(&args).(Validatable)
	}
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if toolbridge.IsClientError(err) {
			return err
		}
		return &toolbridge.ClientError{Reason: err.Error(), Err: toolbridge.ErrValidation}
	}
	return nil
}

func encodeResult(res any) ([]toolbridge.ContentBlock, error) {
	switch r := res.(type) {
	case string:
		return []toolbridge.ContentBlock{toolbridge.TextBlock(r)}, nil
	case []toolbridge.ContentBlock:
		return r, nil
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, &toolbridge.SystemError{Err: err}
	}
	return []toolbridge.ContentBlock{toolbridge.TextBlock(string(b))}, nil
}
