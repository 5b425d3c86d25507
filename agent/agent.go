// Package agent runs the model/tool control loop: the model proposes tool
// calls, the dispatcher answers them, and the loop repeats until the model
// replies without asking for tools.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skosovsky/toolbridge"
)

// DefaultMaxIterations bounds the number of model turns in one Run.
const DefaultMaxIterations = 25

// DefaultSystemPrompt is prepended when the conversation has no system message.
const DefaultSystemPrompt = "You are a helpful assistant. Use available tools to assist the user."

// ErrMaxIterations is returned when the model keeps requesting tools past the limit.
var ErrMaxIterations = errors.New("agent: iteration limit reached")

// Model produces the next assistant message.
type Model interface {
	Generate(ctx context.Context, messages []toolbridge.Message, tools []toolbridge.ToolBinding) (toolbridge.Message, error)
}

// Tools answers a turn's tool calls. *toolbridge.Dispatcher implements it.
type Tools interface {
	Bindings() []toolbridge.ToolBinding
	Dispatch(ctx context.Context, state toolbridge.State) (toolbridge.State, error)
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	systemPrompt  string
	maxIterations int
	logger        zerolog.Logger
}

// WithSystemPrompt replaces the default system prompt. Empty disables it.
func WithSystemPrompt(prompt string) Option {
	return func(o *options) { o.systemPrompt = prompt }
}

// WithMaxIterations sets the model turn limit. Values below 1 are ignored.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Agent alternates between a Model and Tools.
type Agent struct {
	model Model
	tools Tools
	opts  options
}

// New creates an agent. tools may be nil, in which case the model is called once
// with no bindings.
func New(model Model, tools Tools, opts ...Option) *Agent {
	o := options{
		systemPrompt:  DefaultSystemPrompt,
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Agent{model: model, tools: tools, opts: o}
}

// NeedsTools reports whether the loop should route msg to the tools.
func NeedsTools(msg toolbridge.Message) bool {
	return msg.Role == toolbridge.RoleAssistant && msg.HasToolCalls()
}

// Run drives the conversation to a final assistant reply and returns the full
// transcript. On error the transcript so far is returned with it; an interrupt
// raised by a tool comes back unwrapped.
func (a *Agent) Run(ctx context.Context, messages []toolbridge.Message) ([]toolbridge.Message, error) {
	transcript := a.prepare(messages)
	var bindings []toolbridge.ToolBinding
	if a.tools != nil {
		bindings = a.tools.Bindings()
	}

	for step := 1; step <= a.opts.maxIterations; step++ {
		if err := ctx.Err(); err != nil {
			return transcript, err
		}
		reply, err := a.model.Generate(ctx, transcript, bindings)
		if err != nil {
			return transcript, fmt.Errorf("agent: step %d: %w", step, err)
		}
		assignIDs(&reply)
		transcript = append(transcript, reply)

		if !NeedsTools(reply) || a.tools == nil {
			a.opts.logger.Debug().Int("steps", step).Msg("agent finished")
			return transcript, nil
		}
		a.opts.logger.Debug().Int("step", step).Int("tool_calls", len(reply.ToolCalls)).Msg("dispatching tool calls")

		out, err := a.tools.Dispatch(ctx, toolbridge.Sequence(transcript...))
		if err != nil {
			if toolbridge.IsInterrupt(err) {
				return transcript, err
			}
			return transcript, fmt.Errorf("agent: step %d: %w", step, err)
		}
		transcript = append(transcript, out.Messages()...)
	}
	a.opts.logger.Warn().Int("max_iterations", a.opts.maxIterations).Msg("agent stopped at iteration limit")
	return transcript, fmt.Errorf("%w (%d)", ErrMaxIterations, a.opts.maxIterations)
}

func (a *Agent) prepare(messages []toolbridge.Message) []toolbridge.Message {
	out := make([]toolbridge.Message, 0, len(messages)+1)
	if a.opts.systemPrompt != "" && (len(messages) == 0 || messages[0].Role != toolbridge.RoleSystem) {
		out = append(out, toolbridge.SystemMessage(a.opts.systemPrompt))
	}
	return append(out, messages...)
}

// assignIDs fills in the message ID and any missing tool call IDs.
func assignIDs(msg *toolbridge.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if len(msg.ToolCalls) == 0 {
		return
	}
	calls := make([]toolbridge.ToolCall, len(msg.ToolCalls))
	copy(calls, msg.ToolCalls)
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
	msg.ToolCalls = calls
}
