package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir               string `json:"data_dir"`
	LogLevel              string `json:"log_level"`
	QueueDir              string `json:"queue_dir"`
	AllowedTranscriptRoot string `json:"allowed_transcript_root"`
	Schedule              string `json:"schedule"`
	LLM                   struct {
		Provider        string  `json:"provider"`
		BaseURL         string  `json:"base_url"`
		APIKey          string  `json:"api_key"`
		Model           string  `json:"model"`
		Temperature     float32 `json:"temperature"`
		MaxPromptTokens int     `json:"max_prompt_tokens"`
		TimeoutSeconds  int     `json:"timeout_seconds"`
	} `json:"llm"`
	Obsidian struct {
		BaseURL            string `json:"base_url"`
		APIKey             string `json:"api_key"`
		InsecureSkipVerify bool   `json:"insecure_skip_verify"`
		TimeoutSeconds     int    `json:"timeout_seconds"`
	} `json:"obsidian"`
	Paths struct {
		DailyNote     string `json:"daily_note"`
		DailyTemplate string `json:"daily_template"`
		KnowledgeBase string `json:"knowledge_base"`
	} `json:"paths"`
	DailyNote struct {
		Section string `json:"section"`
	} `json:"daily_note"`
	Knowledge struct {
		Tag string `json:"tag"`
	} `json:"knowledge"`
	Summary struct {
		Language string `json:"language"`
	} `json:"summary"`
	Retry struct {
		MaxAttempts    int `json:"max_attempts"`
		InitialDelayMS int `json:"initial_delay_ms"`
	} `json:"retry"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
	Telegram struct {
		Token string `json:"token"`
	} `json:"telegram"`
	Notify struct {
		SessionKey string `json:"session_key"`
	} `json:"notify"`
}

// Defaults returns a Config populated with the built-in defaults.
func Defaults() *Config {
	home := os.Getenv("HOME")
	cfg := &Config{
		DataDir:               filepath.Join(home, ".sessionlog"),
		LogLevel:              "info",
		QueueDir:              filepath.Join(home, ".claude", "session-logs"),
		AllowedTranscriptRoot: filepath.Join(home, ".claude", "projects"),
		Schedule:              "5 21 * * *",
	}
	cfg.LLM.Provider = "ollama"
	cfg.LLM.BaseURL = "http://localhost:11434"
	cfg.LLM.Model = "qwen2.5:7b"
	cfg.LLM.MaxPromptTokens = 32000
	cfg.Obsidian.BaseURL = "https://127.0.0.1:27124"
	cfg.Obsidian.InsecureSkipVerify = true
	cfg.Paths.DailyNote = "Daily/{year}/{month}/{date}.md"
	cfg.Paths.DailyTemplate = "Templates/Daily.md"
	cfg.Paths.KnowledgeBase = "Knowledge/Claude"
	cfg.DailyNote.Section = "Session Talk"
	cfg.Knowledge.Tag = "claude-code"
	cfg.Summary.Language = "Japanese"
	cfg.Retry.MaxAttempts = 1
	cfg.Retry.InitialDelayMS = 1000
	cfg.HTTP.Listen = "127.0.0.1:8485"
	return cfg
}

// Load reads the config at path on top of the defaults. A missing file is
// created with the defaults. Environment variables (optionally seeded from a
// .env file next to the config) take precedence over the file.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// Read is Load without writing anything: a missing file yields the
// defaults and no file is created.
func Read(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, create bool) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if os.IsNotExist(err) && create {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OBSIDIAN_API_KEY"); apiKey != "" {
		cfg.Obsidian.APIKey = apiKey
	}
	if baseURL := os.Getenv("OBSIDIAN_BASE_URL"); baseURL != "" {
		cfg.Obsidian.BaseURL = baseURL
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("SESSIONLOG_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = apiKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

func (c *Config) PendingDir() string   { return filepath.Join(c.QueueDir, "pending") }
func (c *Config) ProcessedDir() string { return filepath.Join(c.QueueDir, "processed") }
func (c *Config) LedgerPath() string   { return filepath.Join(c.DataDir, "runs.jsonl") }

// RetryDelay returns the configured initial retry delay.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Retry.InitialDelayMS) * time.Millisecond
}

// ToMap converts the config to a generic nested map via its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns every config value keyed by its dot-separated path.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dot-separated key from the config file at path.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates a single dot-separated key in the config file at path.
// The raw value is decoded as JSON when possible (numbers, booleans) and
// stored as a string otherwise.
func SetValue(path, key, raw string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return err
	}
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		v = raw
	}
	if _, isString := flat[key].(string); isString {
		v = raw
	}
	flat[key] = v

	data, err := json.Marshal(Unflatten(flat))
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := Defaults()
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(path, updated)
}
