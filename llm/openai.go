// Package llm binds bridge tools to a chat model. OpenAI speaks the
// chat-completions API, which most hosted and local endpoints also implement.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"github.com/skosovsky/toolbridge"
)

// ErrNoChoices is returned when the endpoint answers without a completion choice.
var ErrNoChoices = errors.New("model returned no choices")

// Config selects the endpoint and model.
type Config struct {
	Model   string
	APIKey  string
	BaseURL string
}

// Option configures OpenAI.
type Option func(*openAIOptions)

type openAIOptions struct {
	logger  zerolog.Logger
	request []option.RequestOption
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *openAIOptions) { o.logger = logger }
}

// WithRequestOptions passes extra options to the underlying client.
func WithRequestOptions(opts ...option.RequestOption) Option {
	return func(o *openAIOptions) { o.request = append(o.request, opts...) }
}

// OpenAI generates assistant turns through the chat-completions API.
type OpenAI struct {
	client openai.Client
	model  string
	logger zerolog.Logger
}

// NewOpenAI creates a model client. An empty APIKey falls back to the
// client's own OPENAI_API_KEY lookup.
func NewOpenAI(cfg Config, opts ...Option) (*OpenAI, error) {
	if cfg.Model == "" {
		return nil, errors.New("model name is empty")
	}
	o := openAIOptions{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	var req []option.RequestOption
	if cfg.APIKey != "" {
		req = append(req, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		req = append(req, option.WithBaseURL(cfg.BaseURL))
	}
	req = append(req, o.request...)
	return &OpenAI{client: openai.NewClient(req...), model: cfg.Model, logger: o.logger}, nil
}

// Generate sends the conversation and tool bindings and returns the assistant's turn.
func (m *OpenAI) Generate(ctx context.Context, messages []toolbridge.Message, tools []toolbridge.ToolBinding) (toolbridge.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(m.model),
		Messages: ToParams(messages),
	}
	if len(tools) > 0 {
		params.Tools = ToTools(tools)
	}
	completion, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return toolbridge.Message{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return toolbridge.Message{}, ErrNoChoices
	}
	choice := completion.Choices[0]
	m.logger.Debug().Str("model", completion.Model).Str("finish_reason", choice.FinishReason).
		Int("tool_calls", len(choice.Message.ToolCalls)).Int64("total_tokens", completion.Usage.TotalTokens).
		Msg("completion received")
	msg := FromCompletion(choice.Message, m.logger)
	msg.ID = completion.ID
	return msg, nil
}

// ToParams converts conversation messages to request messages. Tool results in
// block form are flattened to text.
func ToParams(messages []toolbridge.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case toolbridge.RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content.String()))
		case toolbridge.RoleUser:
			out = append(out, openai.UserMessage(msg.Content.String()))
		case toolbridge.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content.String(), msg.ToolCallID))
		case toolbridge.RoleAssistant:
			out = append(out, assistantParam(msg))
		}
	}
	return out
}

func assistantParam(msg toolbridge.Message) openai.ChatCompletionMessageParamUnion {
	p := openai.ChatCompletionAssistantMessageParam{}
	if text := msg.Content.String(); text != "" {
		p.Content = openai.ChatCompletionAssistantMessageParamContentUnion{OfString: openai.String(text)}
	}
	for _, call := range msg.ToolCalls {
		args, err := json.Marshal(call.Arguments)
		if err != nil || call.Arguments == nil {
			args = []byte("{}")
		}
		p.ToolCalls = append(p.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID: call.ID,
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      call.Name,
				Arguments: string(args),
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &p}
}

// ToTools converts binding records to function tools.
func ToTools(bindings []toolbridge.ToolBinding) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(bindings))
	for _, b := range bindings {
		fn := openai.FunctionDefinitionParam{
			Name:       b.Name,
			Parameters: openai.FunctionParameters(b.Parameters),
		}
		if b.Description != "" {
			fn.Description = openai.String(b.Description)
		}
		out = append(out, openai.ChatCompletionToolParam{Function: fn})
	}
	return out
}

// FromCompletion converts a response message. Arguments that are not a JSON
// object are replaced by an empty object and logged; the tool server then
// rejects the call and the model sees why.
func FromCompletion(msg openai.ChatCompletionMessage, logger zerolog.Logger) toolbridge.Message {
	out := toolbridge.AssistantMessage(msg.Content)
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if raw := strings.TrimSpace(tc.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
				logger.Warn().Err(err).Str("tool", tc.Function.Name).Str("call_id", tc.ID).
					Msg("tool call arguments are not a JSON object")
				args = map[string]any{}
			}
		}
		out.ToolCalls = append(out.ToolCalls, toolbridge.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}
	return out
}
