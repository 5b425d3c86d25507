// Package testutil provides test helpers for toolbridge (e.g. MockSession).
package testutil

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/skosovsky/toolbridge"
)

// MockSession is a configurable tool source for tests.
type MockSession struct {
	ToolsVal []toolbridge.RemoteTool
	ListErr  error
	CallFn   func(ctx context.Context, name string, args map[string]any) (*toolbridge.CallResult, error)

	mu    sync.Mutex
	calls []toolbridge.ToolCall
}

// NewMockSession returns a session exposing tools with the given names and an
// open object schema. Calls echo the tool name unless CallFn is set.
func NewMockSession(names ...string) *MockSession {
	m := &MockSession{}
	for _, n := range names {
		m.ToolsVal = append(m.ToolsVal, toolbridge.RemoteTool{
			Name:        n,
			Description: n + " tool",
			InputSchema: json.RawMessage(`{"type":"object"}`),
		})
	}
	return m
}

// ListTools returns ToolsVal or ListErr.
func (m *MockSession) ListTools(ctx context.Context) ([]toolbridge.RemoteTool, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.ToolsVal, ctx.Err()
}

// CallTool records the call and runs CallFn if set, otherwise returns the tool name as text.
func (m *MockSession) CallTool(ctx context.Context, name string, args map[string]any) (*toolbridge.CallResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, toolbridge.ToolCall{Name: name, Arguments: args})
	m.mu.Unlock()
	if m.CallFn != nil {
		return m.CallFn(ctx, name, args)
	}
	return &toolbridge.CallResult{Content: []toolbridge.ContentBlock{toolbridge.TextBlock(name)}}, nil
}

// Calls returns the calls received so far.
func (m *MockSession) Calls() []toolbridge.ToolCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]toolbridge.ToolCall(nil), m.calls...)
}

// Ensure MockSession implements Session.
var _ toolbridge.Session = (*MockSession)(nil)

// MockModel replays scripted assistant messages, one per Generate call.
// After the script runs out it answers with a plain "done" reply.
type MockModel struct {
	Replies []toolbridge.Message
	Err     error

	mu   sync.Mutex
	seen [][]toolbridge.Message
}

// Generate returns the next scripted reply.
func (m *MockModel) Generate(_ context.Context, messages []toolbridge.Message, _ []toolbridge.ToolBinding) (toolbridge.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, append([]toolbridge.Message(nil), messages...))
	if m.Err != nil {
		return toolbridge.Message{}, m.Err
	}
	i := len(m.seen) - 1
	if i < len(m.Replies) {
		return m.Replies[i], nil
	}
	return toolbridge.AssistantMessage("done"), nil
}

// Inputs returns the conversation passed to each Generate call.
func (m *MockModel) Inputs() [][]toolbridge.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]toolbridge.Message(nil), m.seen...)
}
