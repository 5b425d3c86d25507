// Package config loads the toolbridge configuration: a JSON file that may
// carry // and /* */ comments, a .env file and TOOLBRIDGE_* environment
// overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/skosovsky/toolbridge"
	"github.com/skosovsky/toolbridge/agent"
)

// ErrInvalid marks a configuration that loads but cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// DefaultSystemPrompt is the agent prompt used when none is configured.
const DefaultSystemPrompt = agent.DefaultSystemPrompt

// Config stores all configuration of the application.
// Servers keep the order they are declared in; it is the dispatch order.
type Config struct {
	Servers []NamedServer `mapstructure:"-"`
	Model   ModelConfig   `mapstructure:"model"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Log     LogConfig     `mapstructure:"log"`
}

// ModelConfig selects the chat model endpoint.
type ModelConfig struct {
	Name    string `mapstructure:"name" json:"name,omitempty" jsonschema:"default=gpt-4o-mini"`
	BaseURL string `mapstructure:"baseURL" json:"baseURL,omitempty"`
	APIKey  string `mapstructure:"apiKey" json:"apiKey,omitempty" jsonschema:"description=Defaults to OPENAI_API_KEY"`
}

// AgentConfig tunes the control loop.
type AgentConfig struct {
	SystemPrompt  string `mapstructure:"systemPrompt" json:"systemPrompt,omitempty"`
	MaxIterations int    `mapstructure:"maxIterations" json:"maxIterations,omitempty" jsonschema:"minimum=1,default=25"`
}

// BridgeConfig tunes dispatch.
type BridgeConfig struct {
	MessagesKey string        `mapstructure:"messagesKey" json:"messagesKey,omitempty" jsonschema:"default=messages"`
	Concurrency int           `mapstructure:"concurrency" json:"concurrency,omitempty" jsonschema:"minimum=0,default=4"`
	CallTimeout time.Duration `mapstructure:"callTimeout" json:"callTimeout,omitempty" jsonschema:"description=Per call limit such as 30s; empty means none"`
	LogCalls    bool          `mapstructure:"logCalls" json:"logCalls,omitempty"`
}

// LogConfig selects log level and output format.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level,omitempty" jsonschema:"enum=trace,enum=debug,enum=info,enum=warn,enum=error,default=info"`
	Format string `mapstructure:"format" json:"format,omitempty" jsonschema:"enum=console,enum=json,default=console"`
}

// ZerologLevel parses Level.
func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	return zerolog.ParseLevel(strings.ToLower(l.Level))
}

// fileShape is the documented layout of the config file.
type fileShape struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
	Model      ModelConfig             `json:"model,omitempty"`
	Agent      AgentConfig             `json:"agent,omitempty"`
	Bridge     BridgeConfig            `json:"bridge,omitempty"`
	Log        LogConfig               `json:"log,omitempty"`
}

// Schema returns the JSON Schema of the config file.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{ExpandedStruct: true}
	s := r.Reflect(&fileShape{})
	s.Title = "toolbridge configuration"
	return json.MarshalIndent(s, "", "  ")
}

// Options select where Load looks.
type Options struct {
	// DotEnv is the .env file loaded before anything else. A missing file is
	// not an error. Empty means ".env"; "-" disables it.
	DotEnv string
}

// Load reads configuration from path, .env and the environment.
func Load(path string, opts Options) (*Config, error) {
	if err := loadDotEnv(opts.DotEnv); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes configuration text. Environment overrides apply; .env is not read.
func Parse(data []byte) (*Config, error) {
	clean, err := Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TOOLBRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("model.apiKey", "TOOLBRIDGE_MODEL_APIKEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("model.baseURL", "TOOLBRIDGE_MODEL_BASEURL", "OPENAI_BASE_URL"); err != nil {
		return nil, err
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(clean)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	// viper lower-cases map keys; server names and env names are case sensitive.
	servers, err := decodeServers(clean)
	if err != nil {
		return nil, fmt.Errorf("parse mcpServers: %w", err)
	}
	cfg.Servers = servers
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.name", "gpt-4o-mini")
	v.SetDefault("agent.systemPrompt", DefaultSystemPrompt)
	v.SetDefault("agent.maxIterations", agent.DefaultMaxIterations)
	v.SetDefault("bridge.messagesKey", toolbridge.DefaultMessagesKey)
	v.SetDefault("bridge.concurrency", 4)
	v.SetDefault("bridge.callTimeout", "0s")
	v.SetDefault("bridge.logCalls", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

func loadDotEnv(path string) error {
	if path == "-" {
		return nil
	}
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate checks the loaded values.
func (c *Config) Validate() error {
	var errs []error
	for _, s := range c.Servers {
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("%w: server %q has no command", ErrInvalid, s.Name))
		}
		if _, err := s.Policy(); err != nil {
			errs = append(errs, fmt.Errorf("server %q: %w", s.Name, err))
		}
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("%w: agent.maxIterations must be at least 1", ErrInvalid))
	}
	if c.Bridge.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("%w: bridge.concurrency must not be negative", ErrInvalid))
	}
	if c.Bridge.CallTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: bridge.callTimeout must not be negative", ErrInvalid))
	}
	if _, err := c.Log.ZerologLevel(); err != nil {
		errs = append(errs, fmt.Errorf("%w: log.level: %w", ErrInvalid, err))
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("%w: log.format must be console or json", ErrInvalid))
	}
	return errors.Join(errs...)
}

// DispatcherOptions turns the bridge section into dispatcher options.
func (c *Config) DispatcherOptions() []toolbridge.DispatcherOption {
	return []toolbridge.DispatcherOption{
		toolbridge.WithMessagesKey(c.Bridge.MessagesKey),
		toolbridge.WithDispatchConcurrency(c.Bridge.Concurrency),
	}
}

// Middlewares returns the session middlewares the bridge section asks for.
func (c *Config) Middlewares(logger zerolog.Logger) []toolbridge.Middleware {
	var mws []toolbridge.Middleware
	if c.Bridge.LogCalls {
		mws = append(mws, toolbridge.Logging(logger))
	}
	if c.Bridge.CallTimeout > 0 {
		mws = append(mws, toolbridge.Timeout(c.Bridge.CallTimeout))
	}
	return mws
}
