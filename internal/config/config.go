// Package config builds the runtime configuration from flags, the process
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"mia/internal/llm"
)

var ErrMissingKey = errors.New("api key not set")

var keyVars = map[llm.Backend]string{
	llm.BackendGemini: "GEMINI_API_KEY",
	llm.BackendOpenAI: "OPENAI_API_KEY",
}

type Config struct {
	EnvFile  string
	LogLevel string

	Backend   llm.Backend
	Model     string
	APIKey    string
	ProxyAddr string

	HistoryWindow int
	Confirm       bool
	Timeout       time.Duration

	Speak bool
	Voice string

	Daemon Daemon
}

// Daemon holds the voice daemon settings.
type Daemon struct {
	WakeWords    []string
	Socket       string
	BusURL       string
	WhisperModel string
	Language     string
	BeepPath     string
	Cooldown     time.Duration
	SnippetMax   time.Duration
	CommandMax   time.Duration
}

// Getenv looks up one variable; os.Getenv satisfies it.
type Getenv func(string) string

// Parse reads args (without the program name). Daemon flags are only
// registered when daemon is true. Values from the process environment win
// over the .env file.
func Parse(prog string, args []string, getenv Getenv, daemon bool) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg := &Config{}
	fs := cli.NewFlagSet(prog, cli.ContinueOnError)

	fs.StringVarP(&cfg.EnvFile, "env", "e", ".env", "Env file path")
	fs.StringVarP(&cfg.LogLevel, "log", "l", "info", "Log level")
	backend := fs.StringP("backend", "b", string(llm.BackendGemini), "Classifier backend (gemini, openai)")
	fs.StringVarP(&cfg.Model, "model", "m", "", "Model name (backend default when empty)")
	fs.StringVarP(&cfg.ProxyAddr, "proxy", "p", "", "Socks proxy address, direct connection when empty")
	fs.IntVar(&cfg.HistoryWindow, "history", 0, "Conversation entries sent with each prompt, 0 for all")
	fs.BoolVar(&cfg.Confirm, "confirm", false, "Ask before running each command")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Kill commands running longer than this, 0 waits forever")
	fs.BoolVar(&cfg.Speak, "speak", daemon, "Speak responses")
	fs.StringVar(&cfg.Voice, "voice", "en", "Speech voice language")

	var wake string
	if daemon {
		fs.StringVar(&wake, "wake", "bhai", "Comma separated wake words")
		fs.StringVar(&cfg.Daemon.Socket, "socket", "/tmp/mia.sock", "Control socket path")
		fs.StringVar(&cfg.Daemon.BusURL, "bus", "", "Websocket hub url, disabled when empty")
		fs.StringVar(&cfg.Daemon.WhisperModel, "whisper-model", "third_party/whisper.cpp/models/ggml-base.bin", "Whisper model path")
		fs.StringVar(&cfg.Daemon.Language, "lang", "auto", "Transcription language")
		fs.StringVar(&cfg.Daemon.BeepPath, "beep", "beep.mp3", "Activation sound")
		fs.DurationVar(&cfg.Daemon.Cooldown, "cooldown", 5*time.Second, "Delay before listening for the wake word again")
		fs.DurationVar(&cfg.Daemon.SnippetMax, "snippet", 4*time.Second, "Longest wake word snippet")
		fs.DurationVar(&cfg.Daemon.CommandMax, "command-max", 10*time.Second, "Longest spoken command")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Backend = llm.Backend(strings.ToLower(*backend))
	keyVar, ok := keyVars[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", *backend)
	}

	fileEnv, err := godotenv.Read(cfg.EnvFile)
	if err != nil && fs.Changed("env") {
		return nil, fmt.Errorf("read env file: %w", err)
	}
	lookup := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return fileEnv[key]
	}

	cfg.APIKey = strings.TrimSpace(lookup(keyVar))
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", keyVar, ErrMissingKey)
	}
	if cfg.Model == "" {
		cfg.Model = lookup("MIA_MODEL")
	}
	if cfg.ProxyAddr == "" {
		cfg.ProxyAddr = lookup("MIA_PROXY")
	}

	if cfg.HistoryWindow < 0 {
		return nil, fmt.Errorf("history must not be negative")
	}

	if daemon {
		for _, w := range strings.Split(wake, ",") {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				cfg.Daemon.WakeWords = append(cfg.Daemon.WakeWords, w)
			}
		}
		if len(cfg.Daemon.WakeWords) == 0 {
			return nil, fmt.Errorf("at least one wake word is required")
		}
	}

	return cfg, nil
}
