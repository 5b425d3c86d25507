// Package mcp adapts Model Context Protocol servers to toolbridge.Session using
// the official Go SDK. Servers are spawned as subprocesses speaking JSON-RPC
// over stdio.
package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/skosovsky/toolbridge"
)

// ServerConfig describes how to start one server process.
type ServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Option configures Connect.
type Option func(*options)

type options struct {
	logger  zerolog.Logger
	environ []string
	client  sdk.Implementation
}

// WithLogger sets the logger. Server stderr is forwarded to it.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEnviron replaces os.Environ() as the parent environment for ResolveEnv.
func WithEnviron(environ []string) Option {
	return func(o *options) { o.environ = append([]string(nil), environ...) }
}

// WithClientInfo sets the client name and version sent during initialization.
func WithClientInfo(name, version string) Option {
	return func(o *options) { o.client = sdk.Implementation{Name: name, Version: version} }
}

func newOptions(opts []Option) options {
	o := options{
		logger: zerolog.Nop(),
		client: sdk.Implementation{Name: "toolbridge", Version: "v0.1.0"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.environ == nil {
		o.environ = os.Environ()
	}
	return o
}

// Session is a connected MCP server. It implements toolbridge.Session.
type Session struct {
	name   string
	cs     *sdk.ClientSession
	logger zerolog.Logger
}

// Connect spawns the server described by cfg and runs the MCP handshake.
// The process lives until Close.
func Connect(ctx context.Context, name string, cfg ServerConfig, opts ...Option) (*Session, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("server %s: command is empty", name)
	}
	o := newOptions(opts)
	env, err := ResolveEnv(cfg.Env, o.environ)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", name, err)
	}
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = env
	cmd.Stderr = o.logger.With().Str("server", name).Str("stream", "stderr").Logger()
	return connect(ctx, name, &sdk.CommandTransport{Command: cmd}, o)
}

// ConnectTransport runs the MCP handshake over an existing transport, such as
// one end of sdk.NewInMemoryTransports.
func ConnectTransport(ctx context.Context, name string, t sdk.Transport, opts ...Option) (*Session, error) {
	return connect(ctx, name, t, newOptions(opts))
}

func connect(ctx context.Context, name string, t sdk.Transport, o options) (*Session, error) {
	client := sdk.NewClient(&o.client, nil)
	cs, err := client.Connect(ctx, t, nil)
	if err != nil {
		return nil, fmt.Errorf("server %s: connect: %w", name, err)
	}
	o.logger.Debug().Str("server", name).Msg("mcp session established")
	return &Session{name: name, cs: cs, logger: o.logger}, nil
}

// Name returns the configured server name.
func (s *Session) Name() string { return s.name }

// ListTools implements toolbridge.Session, following pagination cursors.
func (s *Session) ListTools(ctx context.Context) ([]toolbridge.RemoteTool, error) {
	var (
		out    []toolbridge.RemoteTool
		cursor string
	)
	for {
		res, err := s.cs.ListTools(ctx, &sdk.ListToolsParams{Cursor: cursor})
		if err != nil {
			return nil, fmt.Errorf("server %s: list tools: %w", s.name, err)
		}
		for _, t := range res.Tools {
			if t == nil {
				continue
			}
			var schema json.RawMessage
			if t.InputSchema != nil {
				if schema, err = json.Marshal(t.InputSchema); err != nil {
					s.logger.Debug().Err(err).Str("tool", t.Name).Msg("skipping tool with unencodable input schema")
					continue
				}
			}
			out = append(out, toolbridge.RemoteTool{Name: t.Name, Description: t.Description, InputSchema: schema})
		}
		if res.NextCursor == "" {
			return out, nil
		}
		cursor = res.NextCursor
	}
}

// CallTool implements toolbridge.Session.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*toolbridge.CallResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.cs.CallTool(ctx, &sdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return &toolbridge.CallResult{Content: convertContent(res.Content), IsError: res.IsError}, nil
}

// Close ends the session and stops the server process.
func (s *Session) Close() error {
	err := s.cs.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// convertContent maps SDK content to bridge blocks, keeping order. Binary data
// is base64 encoded.
func convertContent(content []sdk.Content) []toolbridge.ContentBlock {
	out := make([]toolbridge.ContentBlock, 0, len(content))
	for _, c := range content {
		switch v := c.(type) {
		case *sdk.TextContent:
			out = append(out, toolbridge.TextBlock(v.Text))
		case *sdk.ImageContent:
			out = append(out, toolbridge.ContentBlock{
				Type:     toolbridge.BlockImage,
				Data:     base64.StdEncoding.EncodeToString(v.Data),
				MIMEType: v.MIMEType,
			})
		case *sdk.AudioContent:
			out = append(out, toolbridge.ContentBlock{
				Type:     toolbridge.BlockAudio,
				Data:     base64.StdEncoding.EncodeToString(v.Data),
				MIMEType: v.MIMEType,
			})
		case *sdk.ResourceLink:
			out = append(out, toolbridge.ContentBlock{
				Type:     toolbridge.BlockResourceLink,
				URI:      v.URI,
				MIMEType: v.MIMEType,
			})
		case *sdk.EmbeddedResource:
			out = append(out, embedded(v.Resource))
		}
	}
	return out
}

func embedded(r *sdk.ResourceContents) toolbridge.ContentBlock {
	b := toolbridge.ContentBlock{Type: toolbridge.BlockResource}
	if r == nil {
		return b
	}
	b.URI = r.URI
	b.MIMEType = r.MIMEType
	b.Text = r.Text
	if len(r.Blob) > 0 {
		b.Data = base64.StdEncoding.EncodeToString(r.Blob)
	}
	return b
}

var _ toolbridge.Session = (*Session)(nil)
