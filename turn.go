package toolbridge

import "fmt"

// DefaultMessagesKey is the mapping key holding the message list.
const DefaultMessagesKey = "messages"

// Carrier is conversation state held in a struct. Field returns the message
// list stored under name, the way an attribute lookup would.
type Carrier interface {
	Field(name string) ([]Message, bool)
}

// MessagesState is the ready-made Carrier: a struct with a Messages attribute
// exposed under DefaultMessagesKey.
type MessagesState struct {
	Messages []Message
}

// Field implements Carrier.
func (s *MessagesState) Field(name string) ([]Message, bool) {
	if s == nil || name != DefaultMessagesKey {
		return nil, false
	}
	return s.Messages, true
}

type stateKind int

const (
	stateInvalid stateKind = iota
	stateSequence
	stateMapping
	stateObject
)

// State is conversation state in one of three shapes. Build it with Sequence,
// Mapping or Object; the zero State is rejected by ParseTurn.
type State struct {
	kind     stateKind
	messages []Message
	mapping  map[string]any
	object   Carrier
}

// Sequence wraps a bare ordered message list.
func Sequence(messages ...Message) State {
	return State{kind: stateSequence, messages: messages}
}

// Mapping wraps a keyed mapping. The message list under the key must be a []Message.
func Mapping(m map[string]any) State {
	return State{kind: stateMapping, mapping: m}
}

// Object wraps a struct that exposes the message list as an attribute.
func Object(c Carrier) State {
	return State{kind: stateObject, object: c}
}

// Messages returns the message list of a Sequence state, or the list under
// DefaultMessagesKey of a Mapping. It is the accessor for Dispatch output.
func (s State) Messages() []Message {
	switch s.kind {
	case stateSequence:
		return s.messages
	case stateMapping:
		msgs, _ := s.mapping[DefaultMessagesKey].([]Message)
		return msgs
	case stateObject:
		if s.object == nil {
			return nil
		}
		msgs, _ := s.object.Field(DefaultMessagesKey)
		return msgs
	default:
		return nil
	}
}

// MessagesAt is Messages for a custom key on Mapping and Object states.
func (s State) MessagesAt(key string) []Message {
	switch s.kind {
	case stateMapping:
		msgs, _ := s.mapping[key].([]Message)
		return msgs
	case stateObject:
		if s.object == nil {
			return nil
		}
		msgs, _ := s.object.Field(key)
		return msgs
	default:
		return s.Messages()
	}
}

// Map returns the underlying mapping of a Mapping state.
func (s State) Map() (map[string]any, bool) {
	return s.mapping, s.kind == stateMapping
}

// IsSequence reports whether s is a bare message list.
func (s State) IsSequence() bool { return s.kind == stateSequence }

// Shape is the form Dispatch output takes.
type Shape int

const (
	// ShapeSequence returns a bare list of tool-role messages.
	ShapeSequence Shape = iota
	// ShapeMapping returns a mapping with the list under the messages key.
	ShapeMapping
)

func (s Shape) String() string {
	if s == ShapeMapping {
		return "mapping"
	}
	return "sequence"
}

// ParseTurn extracts the tool calls of the last message in state and reports
// the shape to answer in. It fails with a TurnError when there is no message,
// the last message is not the assistant's, or it carries no tool calls.
// An empty key means DefaultMessagesKey.
func ParseTurn(state State, key string) ([]ToolCall, Shape, error) {
	if key == "" {
		key = DefaultMessagesKey
	}
	var (
		msgs  []Message
		shape Shape
	)
	switch state.kind {
	case stateSequence:
		msgs, shape = state.messages, ShapeSequence
	case stateMapping:
		raw, ok := state.mapping[key]
		if !ok {
			return nil, 0, &TurnError{Err: ErrNoMessages, Reason: fmt.Sprintf("key %q not found", key)}
		}
		list, ok := raw.([]Message)
		if !ok {
			return nil, 0, &TurnError{Err: ErrUnsupportedState, Reason: fmt.Sprintf("key %q holds %T", key, raw)}
		}
		msgs, shape = list, ShapeMapping
	case stateObject:
		if state.object == nil {
			return nil, 0, &TurnError{Err: ErrUnsupportedState, Reason: "nil object"}
		}
		list, ok := state.object.Field(key)
		if !ok {
			return nil, 0, &TurnError{Err: ErrNoMessages, Reason: fmt.Sprintf("attribute %q not found", key)}
		}
		msgs, shape = list, ShapeMapping
	default:
		return nil, 0, &TurnError{Err: ErrUnsupportedState}
	}

	if len(msgs) == 0 {
		return nil, 0, &TurnError{Err: ErrNoMessages}
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant {
		return nil, 0, &TurnError{Err: ErrNotAssistant, Reason: "got role " + string(last.Role)}
	}
	if !last.HasToolCalls() {
		return nil, 0, &TurnError{Err: ErrNoToolCalls}
	}
	return append([]ToolCall(nil), last.ToolCalls...), shape, nil
}

// Wrap puts results into the shape ParseTurn reported.
func Wrap(shape Shape, key string, results []ToolMessage) State {
	if key == "" {
		key = DefaultMessagesKey
	}
	msgs := make([]Message, len(results))
	for i, r := range results {
		msgs[i] = r.Message()
	}
	if shape == ShapeMapping {
		return Mapping(map[string]any{key: msgs})
	}
	return Sequence(msgs...)
}
