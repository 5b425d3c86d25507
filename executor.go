package toolbridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/iter"
)

// Executor runs tool calls against exactly one Session. It owns the session's
// Catalog and a PermissionFilter, both fixed at construction, and is safe for
// concurrent use.
type Executor struct {
	session   Session
	catalog   *Catalog
	opts      executorOptions
	validator *argumentValidator
	permitted []string
}

// NewExecutor creates an Executor for session. catalog is normally the result
// of BuildCatalog on the same session; a nil catalog means no tools.
func NewExecutor(session Session, catalog *Catalog, opts ...ExecutorOption) *Executor {
	o := executorOptions{
		policy:        CatchAll(),
		unknown:       UnknownDecline,
		recoverPanics: true,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if catalog == nil {
		catalog = &Catalog{tools: map[string]ToolDescriptor{}}
	}
	mws := o.middlewares
	if o.recoverPanics {
		mws = append(append([]Middleware(nil), mws...), Recover())
	}
	e := &Executor{
		session:   Chain(session, mws...),
		catalog:   catalog,
		opts:      o,
		permitted: o.filter.Apply(catalog.Names()),
	}
	if o.validate {
		e.validator = newArgumentValidator()
	}
	return e
}

// Catalog returns the executor's unfiltered catalog.
func (e *Executor) Catalog() *Catalog { return e.catalog }

// Names returns the tools this executor will run: catalog order, filtered.
func (e *Executor) Names() []string { return append([]string(nil), e.permitted...) }

// Bindings returns binding records for the permitted tools only.
func (e *Executor) Bindings() []ToolBinding {
	out := make([]ToolBinding, 0, len(e.permitted))
	for _, n := range e.permitted {
		d, _ := e.catalog.Lookup(n)
		out = append(out, d.Binding())
	}
	return out
}

// Accepts reports whether name passes the filter and is in the catalog.
func (e *Executor) Accepts(name string) bool {
	return e.opts.filter.Permits(name) && e.catalog.Has(name)
}

// Execute turns one call into exactly one ToolMessage.
//
// ok=false (with a nil error) means the call is not this source's: the name
// fails the filter or is not in the catalog and the mode is UnknownDecline.
// A non-nil error is either an Interrupt, returned exactly as the session
// produced it, or a failure the ErrorPolicy chose not to handle.
func (e *Executor) Execute(ctx context.Context, call ToolCall) (ToolMessage, bool, error) {
	if !e.Accepts(call.Name) {
		if e.opts.unknown == UnknownReport {
			return e.invalidName(call), true, nil
		}
		return ToolMessage{}, false, nil
	}
	if e.opts.onBefore != nil {
		e.opts.onBefore(ctx, call)
	}

	summary := CallSummary{CallID: call.ID, ToolName: call.Name}
	start := time.Now()
	defer func() {
		summary.Duration = time.Since(start)
		if e.opts.onAfter != nil {
			e.opts.onAfter(ctx, call, summary)
		}
	}()

	msg, err := e.call(ctx, call)
	summary.Error = err
	if err != nil {
		content, handled := e.opts.policy.resolve(err)
		if !handled {
			summary.Status = StatusError
			return ToolMessage{}, false, e.propagate(call, err)
		}
		summary.Handled = true
		e.opts.logger.Debug().Err(err).Str("tool", call.Name).Str("call_id", call.ID).
			Stringer("policy", e.opts.policy).Msg("call failure folded into tool message")
		msg = ToolMessage{Name: call.Name, CallID: call.ID, Content: TextContent(content), Status: StatusError}
	}
	summary.Status = msg.Status
	return msg, true, nil
}

// call validates (when enabled), invokes the session and shapes the result.
func (e *Executor) call(ctx context.Context, call ToolCall) (ToolMessage, error) {
	if e.validator != nil {
		d, _ := e.catalog.Lookup(call.Name)
		if err := e.validator.validate(d, call.Arguments); err != nil {
			if !errors.Is(err, errSchemaUnavailable) {
				return ToolMessage{}, err
			}
			e.opts.logger.Warn().Err(err).Str("tool", call.Name).Msg("skipping argument validation")
		}
	}
	res, err := e.session.CallTool(ctx, call.Name, call.Arguments)
	if err != nil {
		return ToolMessage{}, err
	}
	if res == nil {
		res = &CallResult{}
	}
	status := StatusSuccess
	if res.IsError {
		status = StatusError
	}
	return ToolMessage{
		Name:    call.Name,
		CallID:  call.ID,
		Content: normalizeContent(res.Content),
		Status:  status,
	}, nil
}

// propagate returns an interrupt found anywhere in err's chain as is and names
// the call on everything else.
func (e *Executor) propagate(call ToolCall, err error) error {
	if in, ok := AsInterrupt(err); ok {
		return in
	}
	return fmt.Errorf("tool %q (call %s): %w", call.Name, call.ID, err)
}

func (e *Executor) invalidName(call ToolCall) ToolMessage {
	return ToolMessage{
		Name:    call.Name,
		CallID:  call.ID,
		Content: TextContent(InvalidToolMessage(call.Name, e.permitted)),
		Status:  StatusError,
	}
}

// ExecuteAll runs every call concurrently and waits for all of them. Results
// are positional: out[i] answers calls[i]. Calls this source does not serve get
// the invalid-name message. When calls fail unhandled, the first interrupt is
// returned if any, otherwise the first failure in call order; results are nil.
func (e *Executor) ExecuteAll(ctx context.Context, calls []ToolCall) ([]ToolMessage, error) {
	if len(calls) == 0 {
		return []ToolMessage{}, nil
	}
	errs := make([]error, len(calls))
	out := fanOut(calls, e.opts.maxConcurrency, func(i int, call ToolCall) ToolMessage {
		msg, ok, err := e.Execute(ctx, call)
		if err != nil {
			errs[i] = err
			return ToolMessage{}
		}
		if !ok {
			return e.invalidName(call)
		}
		return msg
	})
	if err := firstError(errs); err != nil {
		return nil, err
	}
	return out, nil
}

// fanOut maps calls through fn on a bounded pool, keeping input order.
// limit <= 0 means one goroutine per call; limit == 1 runs inline in order.
func fanOut(calls []ToolCall, limit int, fn func(int, ToolCall) ToolMessage) []ToolMessage {
	if limit == 1 {
		out := make([]ToolMessage, len(calls))
		for i, c := range calls {
			out[i] = fn(i, c)
		}
		return out
	}
	if limit <= 0 || limit > len(calls) {
		limit = len(calls)
	}
	idx := make([]int, len(calls))
	for i := range idx {
		idx[i] = i
	}
	mapper := iter.Mapper[int, ToolMessage]{MaxGoroutines: limit}
	return mapper.Map(idx, func(i *int) ToolMessage {
		return fn(*i, calls[*i])
	})
}

// firstError prefers an interrupt over any other error, then call order.
func firstError(errs []error) error {
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if IsInterrupt(err) {
			return err
		}
		if first == nil {
			first = err
		}
	}
	return first
}
