package toolbridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// UnknownMode selects what an Executor does with a call it cannot serve.
type UnknownMode int

const (
	// UnknownDecline returns ok=false so a Dispatcher can try the next source.
	UnknownDecline UnknownMode = iota
	// UnknownReport answers with an error ToolMessage listing this source's tools.
	UnknownReport
)

// CallSummary is passed to the after-call hook when a call finishes.
type CallSummary struct {
	CallID   string
	ToolName string
	Status   Status
	Error    error // the session error, handled or not; nil on a clean call
	Handled  bool  // Error was turned into a ToolMessage by the policy
	Duration time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorOptions)

type executorOptions struct {
	filter         PermissionFilter
	policy         ErrorPolicy
	unknown        UnknownMode
	validate       bool
	logger         zerolog.Logger
	maxConcurrency int
	middlewares    []Middleware
	recoverPanics  bool
	onBefore       func(context.Context, ToolCall)
	onAfter        func(context.Context, ToolCall, CallSummary)
}

// WithAllow sets the allow-list. An empty list allows every catalog tool.
func WithAllow(names ...string) ExecutorOption {
	return func(o *executorOptions) {
		o.filter.Allow = append([]string(nil), names...)
	}
}

// WithDeny sets the deny-list.
func WithDeny(names ...string) ExecutorOption {
	return func(o *executorOptions) {
		o.filter.Deny = append([]string(nil), names...)
	}
}

// WithFilter replaces both lists.
func WithFilter(f PermissionFilter) ExecutorOption {
	return func(o *executorOptions) {
		o.filter = PermissionFilter{
			Allow: append([]string(nil), f.Allow...),
			Deny:  append([]string(nil), f.Deny...),
		}
	}
}

// WithErrorPolicy sets how call failures are folded into ToolMessages. Default CatchAll.
func WithErrorPolicy(p ErrorPolicy) ExecutorOption {
	return func(o *executorOptions) {
		o.policy = p
	}
}

// WithUnknownMode sets the out-of-scope behavior. Default UnknownDecline.
func WithUnknownMode(m UnknownMode) ExecutorOption {
	return func(o *executorOptions) {
		o.unknown = m
	}
}

// WithArgumentValidation validates call arguments against the tool's schema
// before calling the server. Failures reach the policy as a ClientError.
func WithArgumentValidation() ExecutorOption {
	return func(o *executorOptions) {
		o.validate = true
	}
}

// WithLogger sets the executor logger. Default zerolog.Nop().
func WithLogger(logger zerolog.Logger) ExecutorOption {
	return func(o *executorOptions) {
		o.logger = logger
	}
}

// WithMaxConcurrency limits concurrent calls in ExecuteAll.
// Pass 0 or negative for one goroutine per call.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(o *executorOptions) {
		o.maxConcurrency = n
	}
}

// WithMiddleware wraps the session (onion order: first is outermost).
// Recover is always applied innermost unless disabled with WithRecoverPanics(false).
func WithMiddleware(middlewares ...Middleware) ExecutorOption {
	return func(o *executorOptions) {
		o.middlewares = append(o.middlewares, middlewares...)
	}
}

// WithRecoverPanics enables panic recovery around the session (returns SystemError). Default true.
func WithRecoverPanics(enable bool) ExecutorOption {
	return func(o *executorOptions) {
		o.recoverPanics = enable
	}
}

// WithOnBeforeCall sets a hook called before each accepted call reaches the session.
func WithOnBeforeCall(fn func(context.Context, ToolCall)) ExecutorOption {
	return func(o *executorOptions) {
		o.onBefore = fn
	}
}

// WithOnAfterCall sets a hook called after each accepted call, including failed ones.
func WithOnAfterCall(fn func(context.Context, ToolCall, CallSummary)) ExecutorOption {
	return func(o *executorOptions) {
		o.onAfter = fn
	}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*dispatcherOptions)

type dispatcherOptions struct {
	messagesKey string
	concurrency int
	logger      zerolog.Logger
}

// WithMessagesKey sets the mapping key holding the message list. Default "messages".
func WithMessagesKey(key string) DispatcherOption {
	return func(o *dispatcherOptions) {
		if key != "" {
			o.messagesKey = key
		}
	}
}

// WithDispatchConcurrency bounds how many calls of one turn run at once.
// Default 4; 1 runs calls strictly in order; 0 or negative is unbounded.
func WithDispatchConcurrency(n int) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.concurrency = n
	}
}

// WithDispatchLogger sets the dispatcher logger. Default zerolog.Nop().
func WithDispatchLogger(logger zerolog.Logger) DispatcherOption {
	return func(o *dispatcherOptions) {
		o.logger = logger
	}
}
