package toolbridge

import (
	"context"

	"github.com/rs/zerolog"
)

// ToolDescriptor is one well-formed tool of a source, ready for binding.
// Accessors return copies; a descriptor never changes after BuildCatalog.
type ToolDescriptor struct {
	name        string
	description string
	parameters  map[string]any
}

func (d ToolDescriptor) Name() string        { return d.name }
func (d ToolDescriptor) Description() string { return d.description }

// Parameters returns a deep copy of the parameter JSON schema.
func (d ToolDescriptor) Parameters() map[string]any { return cloneSchema(d.parameters) }

// Binding returns the model tool-binding record for the descriptor.
func (d ToolDescriptor) Binding() ToolBinding {
	return ToolBinding{Name: d.name, Description: d.description, Parameters: d.Parameters()}
}

// Catalog is the ordered, de-duplicated set of tools one source exposes.
// It is safe for concurrent reads.
type Catalog struct {
	order []string
	tools map[string]ToolDescriptor
}

// CatalogOption configures BuildCatalog.
type CatalogOption func(*catalogOptions)

type catalogOptions struct {
	logger zerolog.Logger
}

// WithCatalogLogger sets the logger used to report dropped descriptors and list failures.
func WithCatalogLogger(logger zerolog.Logger) CatalogOption {
	return func(o *catalogOptions) { o.logger = logger }
}

// BuildCatalog lists the session's tools and keeps the well-formed ones.
// It never fails: a list error yields an empty catalog, and descriptors with an
// empty name or a schema that is not a JSON object are dropped. When a name
// repeats, the first descriptor wins.
func BuildCatalog(ctx context.Context, s Session, opts ...CatalogOption) *Catalog {
	o := catalogOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Catalog{tools: make(map[string]ToolDescriptor)}
	if s == nil {
		return c
	}
	raw, err := s.ListTools(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("list tools failed, source exposes no tools")
		return c
	}
	for _, rt := range raw {
		if rt.Name == "" {
			o.logger.Debug().Msg("dropping tool without a name")
			continue
		}
		if _, dup := c.tools[rt.Name]; dup {
			o.logger.Debug().Str("tool", rt.Name).Msg("dropping duplicate tool")
			continue
		}
		params, err := decodeSchema(rt.InputSchema)
		if err != nil {
			o.logger.Debug().Err(&schemaError{tool: rt.Name, err: err}).Msg("dropping tool")
			continue
		}
		c.order = append(c.order, rt.Name)
		c.tools[rt.Name] = ToolDescriptor{name: rt.Name, description: rt.Description, parameters: params}
	}
	return c
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.order)
}

// Names returns tool names in the order the source listed them.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.order...)
}

// Lookup returns the descriptor for name.
func (c *Catalog) Lookup(name string) (ToolDescriptor, bool) {
	if c == nil {
		return ToolDescriptor{}, false
	}
	d, ok := c.tools[name]
	return d, ok
}

// Has reports whether the catalog contains name.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}

// Descriptors returns all descriptors in listing order.
func (c *Catalog) Descriptors() []ToolDescriptor {
	if c == nil {
		return nil
	}
	out := make([]ToolDescriptor, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.tools[n])
	}
	return out
}

// Bindings returns the model tool-binding records in listing order.
func (c *Catalog) Bindings() []ToolBinding {
	descs := c.Descriptors()
	out := make([]ToolBinding, 0, len(descs))
	for _, d := range descs {
		out = append(out, d.Binding())
	}
	return out
}

// Bindings aggregates binding records across catalogs. A name already bound by
// an earlier catalog is skipped, matching dispatch order.
func Bindings(catalogs ...*Catalog) []ToolBinding {
	seen := make(map[string]struct{})
	var out []ToolBinding
	for _, c := range catalogs {
		for _, b := range c.Bindings() {
			if _, ok := seen[b.Name]; ok {
				continue
			}
			seen[b.Name] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// MergeNames returns the ordered union of the catalogs' names.
func MergeNames(catalogs ...*Catalog) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, c := range catalogs {
		for _, n := range c.Names() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}
