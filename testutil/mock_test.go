package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/skosovsky/toolbridge"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMockSession(t *testing.T) {
	m := NewMockSession("search", "fetch")
	tools, err := m.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "search", tools[0].Name)

	res, err := m.CallTool(context.Background(), "fetch", map[string]any{"u": "x"})
	require.NoError(t, err)
	assert.Equal(t, "fetch", res.Content[0].Text)
	assert.Equal(t, []toolbridge.ToolCall{{Name: "fetch", Arguments: map[string]any{"u": "x"}}}, m.Calls())

	m.ListErr = errors.New("down")
	_, err = m.ListTools(context.Background())
	require.Error(t, err)
}

func TestMockModel(t *testing.T) {
	m := &MockModel{Replies: []toolbridge.Message{toolbridge.AssistantMessage("first")}}
	first, err := m.Generate(context.Background(), []toolbridge.Message{toolbridge.UserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", first.Content.String())
	second, err := m.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", second.Content.String())
	require.Len(t, m.Inputs(), 2)
	assert.Equal(t, "hi", m.Inputs()[0][0].Content.String())
}

func TestNewTestDispatcher(t *testing.T) {
	a := NewMockSession("search")
	b := NewMockSession("search", "clock")
	d := NewTestDispatcher(context.Background(), a, b)
	require.NotNil(t, d)
	assert.Equal(t, []string{"search", "clock"}, d.KnownTools())

	out, err := d.Invoke(context.Background(), []toolbridge.ToolCall{
		{ID: "1", Name: "search"},
		{ID: "2", Name: "clock"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "1", out[0].CallID)
	assert.Equal(t, "clock", out[1].Content.String())
	assert.Len(t, a.Calls(), 1, "first source wins")
	assert.Len(t, b.Calls(), 1)
}
