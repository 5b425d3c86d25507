// Command toolbridge connects a chat model to the MCP servers listed in a
// config file and answers one prompt with their tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/skosovsky/toolbridge"
	"github.com/skosovsky/toolbridge/agent"
	"github.com/skosovsky/toolbridge/config"
	"github.com/skosovsky/toolbridge/llm"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "toolbridge:", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags := pflag.NewFlagSet("toolbridge", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "config.json", "path to the config file")
	prompt := flags.StringP("prompt", "p", "", "user prompt; read from stdin when empty")
	envFile := flags.String("env-file", "", `.env file to load ("-" to skip)`)
	printSchema := flags.Bool("print-schema", false, "print the config file JSON Schema and exit")
	logLevel := flags.String("log-level", "", "override log.level")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if *printSchema {
		data, err := config.Schema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	}

	cfg, err := config.Load(*configPath, config.Options{DotEnv: *envFile})
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := connectAll(ctx, cfg, mcpConnector(logger), logger)
	if errors.Is(err, errNoTools) {
		_, _ = fmt.Fprintln(stdout, "No MCP tools available")
		return nil
	}
	if err != nil {
		return err
	}
	defer b.Close()

	text := *prompt
	if text == "" {
		if text, err = readPrompt(stdin); err != nil {
			return err
		}
	}

	model, err := llm.NewOpenAI(llm.Config{
		Model:   cfg.Model.Name,
		APIKey:  cfg.Model.APIKey,
		BaseURL: cfg.Model.BaseURL,
	}, llm.WithLogger(logger))
	if err != nil {
		return err
	}
	a := agent.New(model, b.dispatcher,
		agent.WithSystemPrompt(cfg.Agent.SystemPrompt),
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithLogger(logger),
	)
	transcript, err := a.Run(ctx, []toolbridge.Message{toolbridge.UserMessage(text)})
	printTranscript(stdout, transcript)
	return err
}

func newLogger(cfg config.LogConfig) (zerolog.Logger, error) {
	level, err := cfg.ZerologLevel()
	if err != nil {
		return zerolog.Nop(), err
	}
	var w io.Writer = os.Stderr
	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func readPrompt(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read prompt: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("empty prompt")
	}
	return text, nil
}
