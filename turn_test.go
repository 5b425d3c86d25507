package toolbridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type historyCarrier struct{ history []Message }

func (h historyCarrier) Field(name string) ([]Message, bool) {
	if name != "history" {
		return nil, false
	}
	return h.history, true
}

func TestParseTurn(t *testing.T) {
	call := ToolCall{ID: "1", Name: "search"}
	good := []Message{UserMessage("q"), AssistantMessage("", call)}

	tests := []struct {
		name      string
		state     State
		key       string
		wantShape Shape
		wantErr   error
	}{
		{"sequence", Sequence(good...), "", ShapeSequence, nil},
		{"mapping", Mapping(map[string]any{"messages": good}), "", ShapeMapping, nil},
		{"mapping custom key", Mapping(map[string]any{"log": good}), "log", ShapeMapping, nil},
		{"object", Object(&MessagesState{Messages: good}), "", ShapeMapping, nil},
		{"object custom attribute", Object(historyCarrier{history: good}), "history", ShapeMapping, nil},
		{"empty sequence", Sequence(), "", 0, ErrNoMessages},
		{"missing key", Mapping(map[string]any{}), "", 0, ErrNoMessages},
		{"wrong value type", Mapping(map[string]any{"messages": "nope"}), "", 0, ErrUnsupportedState},
		{"missing attribute", Object(historyCarrier{}), "messages", 0, ErrNoMessages},
		{"nil object", Object(nil), "", 0, ErrUnsupportedState},
		{"zero state", State{}, "", 0, ErrUnsupportedState},
		{"last not assistant", Sequence(AssistantMessage("", call), UserMessage("x")), "", 0, ErrNotAssistant},
		{"no tool calls", Sequence(UserMessage("q"), AssistantMessage("done")), "", 0, ErrNoToolCalls},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls, shape, err := ParseTurn(tt.state, tt.key)
			if tt.wantErr != nil {
				var te *TurnError
				require.ErrorAs(t, err, &te)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantShape, shape)
			assert.Equal(t, []ToolCall{call}, calls)
		})
	}
}

func TestParseTurn_ReturnsCopy(t *testing.T) {
	msgs := []Message{AssistantMessage("", ToolCall{ID: "1", Name: "a"})}
	calls, _, err := ParseTurn(Sequence(msgs...), "")
	require.NoError(t, err)
	calls[0].Name = "changed"
	assert.Equal(t, "a", msgs[0].ToolCalls[0].Name)
}

func TestWrap(t *testing.T) {
	results := []ToolMessage{{Name: "a", CallID: "1", Content: TextContent("x"), Status: StatusSuccess}}

	seq := Wrap(ShapeSequence, "", results)
	assert.True(t, seq.IsSequence())
	require.Len(t, seq.Messages(), 1)
	assert.Equal(t, RoleTool, seq.Messages()[0].Role)

	m := Wrap(ShapeMapping, "log", results)
	mm, ok := m.Map()
	require.True(t, ok)
	assert.Contains(t, mm, "log")
	assert.Len(t, m.MessagesAt("log"), 1)

	assert.Equal(t, "mapping", ShapeMapping.String())
	assert.Equal(t, "sequence", ShapeSequence.String())
}
