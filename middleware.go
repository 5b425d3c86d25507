package toolbridge

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Middleware wraps a Session with cross-cutting behavior (logging, recovery, timeout).
type Middleware func(Session) Session

// Chain applies middlewares to s in onion order: the first middleware is outermost.
func Chain(s Session, middlewares ...Middleware) Session {
	for i := len(middlewares) - 1; i >= 0; i-- {
		s = middlewares[i](s)
	}
	return s
}

// Logging returns a middleware that logs start, end, duration and errors of
// every call.
func Logging(logger zerolog.Logger) Middleware {
	return func(next Session) Session {
		return &loggingSession{sessionBase: sessionBase{next: next}, logger: logger}
	}
}

// Recover returns a middleware that turns a panic inside the session into a SystemError.
func Recover() Middleware {
	return func(next Session) Session {
		return &recoverSession{sessionBase{next: next}}
	}
}

// Timeout returns a middleware that bounds every call by d. A non-positive d
// leaves calls unbounded.
func Timeout(d time.Duration) Middleware {
	return func(next Session) Session {
		return &timeoutSession{sessionBase: sessionBase{next: next}, timeout: d}
	}
}

// sessionBase delegates ListTools to the wrapped Session.
type sessionBase struct{ next Session }

func (b *sessionBase) ListTools(ctx context.Context) ([]RemoteTool, error) {
	return b.next.ListTools(ctx)
}

type loggingSession struct {
	sessionBase
	logger zerolog.Logger
}

func (m *loggingSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	m.logger.Info().Str("tool", name).Msg("tool call start")
	start := time.Now()
	res, err := m.next.CallTool(ctx, name, args)
	dur := time.Since(start)
	if err != nil {
		m.logger.Error().Str("tool", name).Dur("duration", dur).Err(err).Msg("tool call error")
		return nil, err
	}
	m.logger.Info().Str("tool", name).Dur("duration", dur).Bool("is_error", res != nil && res.IsError).Msg("tool call end")
	return res, nil
}

type recoverSession struct{ sessionBase }

func (r *recoverSession) CallTool(ctx context.Context, name string, args map[string]any) (res *CallResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = &SystemError{Err: &panicError{p: p}}
		}
	}()
	return r.next.CallTool(ctx, name, args)
}

func (r *recoverSession) ListTools(ctx context.Context) (tools []RemoteTool, err error) {
	defer func() {
		if p := recover(); p != nil {
			tools = nil
			err = &SystemError{Err: &panicError{p: p}}
		}
	}()
	return r.next.ListTools(ctx)
}

type timeoutSession struct {
	sessionBase
	timeout time.Duration
}

func (t *timeoutSession) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	if t.timeout <= 0 {
		return t.next.CallTool(ctx, name, args)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.CallTool(ctx, name, args)
}
