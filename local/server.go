// Package local serves Go functions as a toolbridge.Session, without a
// subprocess. It is the in-process counterpart of the mcp package: a test
// double for real servers and a way to mix built-in tools with remote ones.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/skosovsky/toolbridge"
)

// ErrToolNotFound is returned by CallTool for a name the server does not have.
var ErrToolNotFound = errors.New("tool not found")

// Server is an in-process toolbridge.Session. Tool failures are reported the
// way a remote server reports them: as a CallResult with IsError set.
type Server struct {
	order []string
	tools map[string]*Tool
}

// NewServer creates a Server. Tool names must be unique.
func NewServer(tools ...*Tool) (*Server, error) {
	s := &Server{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		if t == nil {
			continue
		}
		if _, dup := s.tools[t.name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.name)
		}
		s.order = append(s.order, t.name)
		s.tools[t.name] = t
	}
	return s, nil
}

// ListTools implements toolbridge.Session.
func (s *Server) ListTools(ctx context.Context) ([]toolbridge.RemoteTool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]toolbridge.RemoteTool, 0, len(s.order))
	for _, name := range s.order {
		t := s.tools[name]
		schema, err := json.Marshal(t.schema)
		if err != nil {
			return nil, err
		}
		out = append(out, toolbridge.RemoteTool{Name: t.name, Description: t.description, InputSchema: schema})
	}
	return out, nil
}

// CallTool implements toolbridge.Session. Validation and handler errors come back
// as error results; an Interrupt and context cancellation are returned as errors.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (*toolbridge.CallResult, error) {
	t, ok := s.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blocks, err := t.run(ctx, args)
	if err != nil {
		if toolbridge.IsInterrupt(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return &toolbridge.CallResult{Content: []toolbridge.ContentBlock{toolbridge.TextBlock(err.Error())}, IsError: true}, nil
	}
	return &toolbridge.CallResult{Content: blocks}, nil
}

var _ toolbridge.Session = (*Server)(nil)
