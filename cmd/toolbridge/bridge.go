package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/skosovsky/toolbridge"
	"github.com/skosovsky/toolbridge/config"
	"github.com/skosovsky/toolbridge/mcp"
)

// errNoTools is returned by connectAll when no server offers a usable tool.
var errNoTools = errors.New("no MCP tools available")

// source is a connected tool server.
type source interface {
	toolbridge.Session
	Close() error
}

type connectFunc func(ctx context.Context, name string, cfg config.ServerConfig) (source, error)

// mcpConnector spawns servers as MCP subprocesses.
func mcpConnector(logger zerolog.Logger) connectFunc {
	return func(ctx context.Context, name string, cfg config.ServerConfig) (source, error) {
		return mcp.Connect(ctx, name, cfg.Process(), mcp.WithLogger(logger))
	}
}

// bridge owns the connected sources and the dispatcher built over them.
type bridge struct {
	sources    []source
	dispatcher *toolbridge.Dispatcher
}

// connectAll connects every configured server in declaration order and builds
// one executor per server. Any connection failure closes what was opened and
// fails the whole bootstrap.
func connectAll(ctx context.Context, cfg *config.Config, connect connectFunc, logger zerolog.Logger) (*bridge, error) {
	b := &bridge{}
	executors := make([]*toolbridge.Executor, 0, len(cfg.Servers))
	for _, srv := range cfg.Servers {
		s, err := connect(ctx, srv.Name, srv.ServerConfig)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect %s: %w", srv.Name, err)
		}
		b.sources = append(b.sources, s)

		opts, err := srv.ExecutorOptions()
		if err != nil {
			b.Close()
			return nil, err
		}
		opts = append(opts,
			toolbridge.WithLogger(logger.With().Str("server", srv.Name).Logger()),
			toolbridge.WithMiddleware(cfg.Middlewares(logger.With().Str("server", srv.Name).Logger())...),
		)
		catalog := toolbridge.BuildCatalog(ctx, s, toolbridge.WithCatalogLogger(logger))
		executor := toolbridge.NewExecutor(s, catalog, opts...)
		logger.Info().Str("server", srv.Name).Strs("tools", executor.Names()).Msg("server connected")
		executors = append(executors, executor)
	}
	b.dispatcher = toolbridge.NewDispatcher(executors, append(cfg.DispatcherOptions(),
		toolbridge.WithDispatchLogger(logger))...)
	if len(b.dispatcher.Bindings()) == 0 {
		b.Close()
		return nil, errNoTools
	}
	return b, nil
}

// Close closes every source, ignoring errors.
func (b *bridge) Close() {
	for _, s := range b.sources {
		_ = s.Close()
	}
	b.sources = nil
}

// printTranscript writes the conversation one message per block.
func printTranscript(w io.Writer, messages []toolbridge.Message) {
	for _, m := range messages {
		header := strings.ToUpper(string(m.Role))
		if m.Role == toolbridge.RoleTool {
			header += " (" + m.Name + ")"
		}
		_, _ = fmt.Fprintf(w, "===== %s =====\n", header)
		if text := m.Content.String(); text != "" {
			_, _ = fmt.Fprintln(w, text)
		}
		for _, c := range m.ToolCalls {
			_, _ = fmt.Fprintf(w, "-> %s %v [%s]\n", c.Name, c.Arguments, c.ID)
		}
		_, _ = fmt.Fprintln(w)
	}
}
