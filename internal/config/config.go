package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Config is the root configuration for talkbot.
type Config struct {
	General  GeneralConfig            `json:"general"`
	Telegram TelegramConfig           `json:"telegram"`
	Backends map[string]BackendConfig `json:"backends"`
	Chat     ChatConfig               `json:"chat"`
	Store    StoreConfig              `json:"store"`
}

type GeneralConfig struct {
	LogLevel       string       `json:"logLevel"`
	LogFile        string       `json:"logFile,omitempty"`
	CreatorID      int64        `json:"creatorId"`
	BotPrefix      string       `json:"botPrefix"`              // address prefix that routes a message to free chat
	OnlyForCreator bool         `json:"onlyForCreator"`         // maintenance kill-switch: creator-only mode
	ChatWhitelist  FlexInt64Set `json:"chatWhitelist,omitempty"` // empty = all chats allowed
}

type TelegramConfig struct {
	Token     string `json:"token"`
	ParseMode string `json:"parseMode"`
}

// BackendConfig configures one AI backend ("ollama" or any OpenAI-compatible
// endpoint keyed by name).
type BackendConfig struct {
	Enabled     bool   `json:"enabled"`
	Kind        string `json:"kind"` // "ollama" | "openai"
	APIBase     string `json:"apiBase,omitempty"`
	APIKey      string `json:"apiKey,omitempty"`
	Model       string `json:"model,omitempty"`
	ThinkModel  string `json:"thinkModel,omitempty"`
	VisionModel string `json:"visionModel,omitempty"`
}

type ChatConfig struct {
	SystemPrompt       string `json:"systemPrompt"`
	DefaultBackend     string `json:"defaultBackend"`
	EditIntervalMS     int    `json:"editIntervalMs"`               // live-edit flush interval
	RequestTimeoutMin  int    `json:"requestTimeoutMinutes"`        // 0 = no deadline
	UseNamesInPrompt   bool   `json:"useNamesInPrompt"`
	ReplyChainLimit    int    `json:"replyChainLimit"`
}

type StoreConfig struct {
	DataDir      string `json:"dataDir"`
	DBPath       string `json:"dbPath"`
	AnswersPath  string `json:"answersPath,omitempty"`
	MaxPhotoSize int    `json:"maxPhotoSize"` // largest photo side cached, px
}

// FlexInt64Set is a set of int64 ids that unmarshals from JSON arrays
// containing both numbers and strings (e.g. [123, "456"]).
type FlexInt64Set []int64

func (f *FlexInt64Set) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]int64, 0, len(raw))
	for _, item := range raw {
		var n int64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, n)
			continue
		}
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return fmt.Errorf("id must be a number or numeric string: %s", item)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", s, err)
		}
		result = append(result, n)
	}
	*f = result
	return nil
}

func (f FlexInt64Set) Contains(id int64) bool {
	for _, v := range f {
		if v == id {
			return true
		}
	}
	return false
}

// DefaultConfigDir returns the default config directory (~/.talkbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".talkbot"
	}
	return filepath.Join(home, ".talkbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Store.DataDir = ExpandPath(cfg.Store.DataDir)
	cfg.Store.DBPath = ExpandPath(cfg.Store.DBPath)
	cfg.Store.AnswersPath = ExpandPath(cfg.Store.AnswersPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Chat.EditIntervalMS < 500 {
		errs = append(errs, "chat.editIntervalMs must be >= 500 (Telegram edit rate limit)")
	}
	if cfg.Chat.RequestTimeoutMin < 0 {
		errs = append(errs, "chat.requestTimeoutMinutes must be >= 0")
	}
	if cfg.Chat.ReplyChainLimit < 1 {
		errs = append(errs, "chat.replyChainLimit must be >= 1")
	}
	if cfg.Store.MaxPhotoSize < 1 {
		errs = append(errs, "store.maxPhotoSize must be >= 1")
	}

	if cfg.Chat.DefaultBackend != "" {
		if _, ok := cfg.Backends[cfg.Chat.DefaultBackend]; !ok {
			errs = append(errs, fmt.Sprintf("chat.defaultBackend references unknown backend: %s", cfg.Chat.DefaultBackend))
		}
	}

	for name, bc := range cfg.Backends {
		switch bc.Kind {
		case "ollama", "openai":
			// valid
		default:
			errs = append(errs, fmt.Sprintf("backends.%s: kind must be \"ollama\" or \"openai\"", name))
		}
		if bc.Enabled && bc.Kind == "openai" && bc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("backends.%s: apiBase is required for openai kind", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
