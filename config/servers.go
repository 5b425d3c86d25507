package config

import (
	"encoding/json"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/skosovsky/toolbridge"
	"github.com/skosovsky/toolbridge/mcp"
)

// Error policy selectors accepted in a server's errorPolicy field.
const (
	PolicyAll     = "all"     // every failure, default template
	PolicyMessage = "message" // every failure, errorMessage as content
	PolicyClient  = "client"  // argument errors only
	PolicySystem  = "system"  // infrastructure errors only
	PolicyNone    = "none"    // nothing, failures abort the turn
)

// ServerConfig is one entry of the mcpServers block.
type ServerConfig struct {
	Command           string            `json:"command" jsonschema:"description=Executable that starts the server"`
	Args              []string          `json:"args,omitempty"`
	Env               map[string]string `json:"env,omitempty" jsonschema:"description=Environment of the process; GET_ENV copies the parent value"`
	AllowedTools      []string          `json:"allowedTools,omitempty"`
	BlockedTools      []string          `json:"blockedTools,omitempty"`
	ErrorPolicy       string            `json:"errorPolicy,omitempty" jsonschema:"enum=all,enum=message,enum=client,enum=system,enum=none,default=all"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	ValidateArguments bool              `json:"validateArguments,omitempty"`
}

// NamedServer is a ServerConfig with the key it was declared under.
type NamedServer struct {
	Name string
	ServerConfig
}

// Process returns the settings needed to spawn the server.
func (s ServerConfig) Process() mcp.ServerConfig {
	return mcp.ServerConfig{Command: s.Command, Args: s.Args, Env: s.Env}
}

// Filter returns the server's permission filter.
func (s ServerConfig) Filter() toolbridge.PermissionFilter {
	return toolbridge.PermissionFilter{Allow: s.AllowedTools, Deny: s.BlockedTools}
}

// Policy maps the errorPolicy selector to an ErrorPolicy.
func (s ServerConfig) Policy() (toolbridge.ErrorPolicy, error) {
	switch s.ErrorPolicy {
	case "", PolicyAll:
		return toolbridge.CatchAll(), nil
	case PolicyMessage:
		if s.ErrorMessage == "" {
			return toolbridge.ErrorPolicy{}, fmt.Errorf("%w: errorPolicy %q needs errorMessage", ErrInvalid, PolicyMessage)
		}
		return toolbridge.CatchAllWithMessage(s.ErrorMessage), nil
	case PolicyClient:
		return toolbridge.CatchTypes(toolbridge.ErrorOfType[*toolbridge.ClientError]()), nil
	case PolicySystem:
		return toolbridge.CatchTypes(toolbridge.ErrorOfType[*toolbridge.SystemError]()), nil
	case PolicyNone:
		return toolbridge.CatchNone(), nil
	default:
		return toolbridge.ErrorPolicy{}, fmt.Errorf("%w: unknown errorPolicy %q", ErrInvalid, s.ErrorPolicy)
	}
}

// ExecutorOptions turns the server entry into executor options.
func (s ServerConfig) ExecutorOptions() ([]toolbridge.ExecutorOption, error) {
	policy, err := s.Policy()
	if err != nil {
		return nil, err
	}
	opts := []toolbridge.ExecutorOption{
		toolbridge.WithFilter(s.Filter()),
		toolbridge.WithErrorPolicy(policy),
	}
	if s.ValidateArguments {
		opts = append(opts, toolbridge.WithArgumentValidation())
	}
	return opts, nil
}

// decodeServers reads the top-level mcpServers object in declaration order.
// Keys keep their case; a missing or null block yields no servers. A name
// declared twice keeps its first position and its last value.
func decodeServers(data []byte) ([]NamedServer, error) {
	var doc struct {
		MCPServers *orderedmap.OrderedMap[string, ServerConfig] `json:"mcpServers"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if doc.MCPServers == nil {
		return nil, nil
	}
	out := make([]NamedServer, 0, doc.MCPServers.Len())
	for pair := doc.MCPServers.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, NamedServer{Name: pair.Key, ServerConfig: pair.Value})
	}
	return out, nil
}
