package toolbridge

import (
	"context"
	"encoding/json"
	"strings"
)

// Status reports the outcome of one tool call as seen by the model.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Content block types produced by tool servers.
const (
	BlockText         = "text"
	BlockImage        = "image"
	BlockAudio        = "audio"
	BlockResource     = "resource"
	BlockResourceLink = "resource_link"
)

// Session is a live channel to one tool server. The bridge only ever lists tools
// and calls them; process lifecycle belongs to whoever created the session.
type Session interface {
	// ListTools returns the raw tool descriptors the server advertises.
	ListTools(ctx context.Context) ([]RemoteTool, error)
	// CallTool invokes one tool. A tool-reported failure is a nil error with
	// CallResult.IsError set; a non-nil error is a transport or protocol failure.
	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
}

// RemoteTool is a tool descriptor exactly as the server sent it. InputSchema is
// the undecoded JSON schema and may be empty or malformed.
type RemoteTool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// CallResult is the server's answer to CallTool.
type CallResult struct {
	Content []ContentBlock
	IsError bool
}

// ContentBlock is one typed piece of tool output.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"` // base64 payload for image and audio blocks
	MIMEType string `json:"mimeType,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// TextBlock returns a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// Content is either a plain string or an ordered list of content blocks.
// Blocks == nil means the string form.
type Content struct {
	Text   string
	Blocks []ContentBlock
}

// TextContent returns string-form content.
func TextContent(s string) Content { return Content{Text: s} }

// BlockContent returns list-form content. The slice is copied.
func BlockContent(blocks ...ContentBlock) Content {
	return Content{Blocks: append(make([]ContentBlock, 0, len(blocks)), blocks...)}
}

// IsBlocks reports whether c is in list form.
func (c Content) IsBlocks() bool { return c.Blocks != nil }

// String flattens the content to text. Non-text blocks are rendered as a short
// placeholder naming their type and MIME type or URI.
func (c Content) String() string {
	if !c.IsBlocks() {
		return c.Text
	}
	parts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		switch {
		case b.Type == BlockText:
			parts = append(parts, b.Text)
		case b.URI != "":
			parts = append(parts, "["+b.Type+": "+b.URI+"]")
		default:
			parts = append(parts, "["+b.Type+" "+b.MIMEType+"]")
		}
	}
	return strings.Join(parts, "\n")
}

// MarshalJSON encodes string-form content as a JSON string and list-form
// content as an array of blocks.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsBlocks() {
		return json.Marshal(c.Blocks)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON.
func (c *Content) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*c = Content{Text: s}
		return nil
	}
	var blocks []ContentBlock
	if err := json.Unmarshal(data, &blocks); err != nil {
		return err
	}
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	*c = Content{Blocks: blocks}
	return nil
}

// normalizeContent maps server output to the conversation content shape:
// no blocks is an empty string, a single text block is its text, anything else
// keeps the ordered block list.
func normalizeContent(blocks []ContentBlock) Content {
	switch {
	case len(blocks) == 0:
		return Content{}
	case len(blocks) == 1 && blocks[0].Type == BlockText:
		return Content{Text: blocks[0].Text}
	default:
		return BlockContent(blocks...)
	}
}

// ToolCall is a single execution request produced by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolMessage is the result of exactly one ToolCall. CallID always echoes
// ToolCall.ID.
type ToolMessage struct {
	Name    string  `json:"name"`
	CallID  string  `json:"call_id"`
	Content Content `json:"content"`
	Status  Status  `json:"status"`
}

// Message converts the result into a tool-role conversation message.
func (m ToolMessage) Message() Message {
	return Message{
		Role:       RoleTool,
		Name:       m.Name,
		Content:    m.Content,
		ToolCallID: m.CallID,
		Status:     m.Status,
	}
}

// Message is one entry of conversation state.
type Message struct {
	ID         string     `json:"id,omitempty"`
	Role       Role       `json:"role"`
	Content    Content    `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Status     Status     `json:"status,omitempty"`
}

// HasToolCalls reports whether the message requests any tool calls.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// SystemMessage, UserMessage and AssistantMessage build text messages.
func SystemMessage(text string) Message { return Message{Role: RoleSystem, Content: TextContent(text)} }

func UserMessage(text string) Message { return Message{Role: RoleUser, Content: TextContent(text)} }

func AssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: TextContent(text), ToolCalls: calls}
}

// ToolBinding is the record handed to a model's tool-binding step.
type ToolBinding struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
