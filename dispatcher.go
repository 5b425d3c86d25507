package toolbridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Dispatcher routes each call of a turn to the first Executor that accepts it.
// Executors are tried in registration order and are never mutated.
type Dispatcher struct {
	executors []*Executor
	known     []string
	opts      dispatcherOptions
}

// NewDispatcher creates a Dispatcher over executors. Nil entries are skipped.
func NewDispatcher(executors []*Executor, opts ...DispatcherOption) *Dispatcher {
	o := dispatcherOptions{
		messagesKey: DefaultMessagesKey,
		concurrency: 4,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	d := &Dispatcher{opts: o}
	seen := make(map[string]struct{})
	for _, e := range executors {
		if e == nil {
			continue
		}
		d.executors = append(d.executors, e)
		for _, n := range e.Names() {
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			d.known = append(d.known, n)
		}
	}
	return d
}

// KnownTools returns the union of every source's permitted tool names in
// registration order. It is the list an invalid-name message offers.
func (d *Dispatcher) KnownTools() []string { return append([]string(nil), d.known...) }

// Bindings returns the binding records of every permitted tool across sources.
// A name served by an earlier executor is not repeated.
func (d *Dispatcher) Bindings() []ToolBinding {
	seen := make(map[string]struct{})
	var out []ToolBinding
	for _, e := range d.executors {
		for _, b := range e.Bindings() {
			if _, ok := seen[b.Name]; ok {
				continue
			}
			seen[b.Name] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// MessagesKey returns the key used for Mapping and Object states.
func (d *Dispatcher) MessagesKey() string { return d.opts.messagesKey }

// Dispatch runs the tool calls of the latest assistant message in state and
// returns the results in the shape state was given in: a Sequence answers
// with a Sequence, a Mapping or Object with a Mapping under the messages key.
//
// A malformed turn fails with a TurnError before any call runs. An Interrupt
// from any call is returned as is and no results are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, state State) (State, error) {
	calls, shape, err := ParseTurn(state, d.opts.messagesKey)
	if err != nil {
		return State{}, err
	}
	results, err := d.Invoke(ctx, calls)
	if err != nil {
		return State{}, err
	}
	return Wrap(shape, d.opts.messagesKey, results), nil
}

// Invoke runs calls and returns one ToolMessage per call, positionally.
func (d *Dispatcher) Invoke(ctx context.Context, calls []ToolCall) ([]ToolMessage, error) {
	if len(calls) == 0 {
		return []ToolMessage{}, nil
	}
	start := time.Now()
	errs := make([]error, len(calls))
	out := fanOut(calls, d.opts.concurrency, func(i int, call ToolCall) ToolMessage {
		msg, err := d.route(ctx, call)
		errs[i] = err
		return msg
	})
	if err := firstError(errs); err != nil {
		d.opts.logger.Warn().Err(err).Int("calls", len(calls)).Bool("interrupt", IsInterrupt(err)).
			Msg("dispatch aborted")
		return nil, err
	}
	d.opts.logger.Debug().Int("calls", len(calls)).Dur("duration", time.Since(start)).Msg("dispatch done")
	return out, nil
}

// route tries executors in order; within one call they run strictly one after another.
func (d *Dispatcher) route(ctx context.Context, call ToolCall) (ToolMessage, error) {
	for _, e := range d.executors {
		msg, ok, err := e.Execute(ctx, call)
		if err != nil {
			return ToolMessage{}, err
		}
		if ok {
			return msg, nil
		}
	}
	d.opts.logger.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("no source accepts tool")
	return ToolMessage{
		Name:    call.Name,
		CallID:  call.ID,
		Content: TextContent(InvalidToolMessage(call.Name, d.known)),
		Status:  StatusError,
	}, nil
}
