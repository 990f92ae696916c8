// Package config handles Snowline configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/snowline/config.yaml, /etc/snowline/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "snowline", "config.yaml"))
	}

	paths = append(paths, "/etc/snowline/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Snowline configuration.
type Config struct {
	Listen    ListenConfig   `yaml:"listen"`
	Provider  string         `yaml:"provider"` // "ollama" or "openai"
	Ollama    OllamaConfig   `yaml:"ollama"`
	OpenAI    OpenAIConfig   `yaml:"openai"`
	Slack     SlackConfig    `yaml:"slack"`
	Schedule  ScheduleConfig `yaml:"schedule"`
	WSDOT     WSDOTConfig    `yaml:"wsdot"`
	DataDir   string         `yaml:"data_dir"`
	LogLevel  string         `yaml:"log_level"`
	LogFormat string         `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the chat web server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OllamaConfig defines the local Ollama backend. Generation parameters
// are passed through to the backend opaquely.
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	TopK        int     `yaml:"top_k"`
	NumCtx      int     `yaml:"num_ctx"`
	NumPredict  int     `yaml:"num_predict"`
}

// OpenAIConfig defines the OpenAI cloud backend.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// Configured reports whether an OpenAI API key is set.
func (c OpenAIConfig) Configured() bool {
	return c.APIKey != ""
}

// SlackConfig defines the Slack channel for scheduled analysis posts.
type SlackConfig struct {
	BotToken string `yaml:"bot_token"`
	Channel  string `yaml:"channel"`
}

// Configured reports whether Slack posting is usable.
func (c SlackConfig) Configured() bool {
	return c.BotToken != "" && c.Channel != ""
}

// ScheduleConfig defines the automated snow-analysis job.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // standard five-field cron expression
}

// WSDOTConfig defines the WSDOT Traveler API access.
type WSDOTConfig struct {
	AccessCode string `yaml:"access_code"`
}

// Configured reports whether a WSDOT access code is set.
func (c WSDOTConfig) Configured() bool {
	return c.AccessCode != ""
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8080},
		Provider: "ollama",
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "mistral:7b-instruct-q4_K_M",
			Temperature: 0.5,
			TopP:        0.9,
			TopK:        40,
			NumCtx:      4096,
			NumPredict:  2048,
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			Temperature: 0.5,
			MaxTokens:   2048,
		},
		Slack: SlackConfig{
			Channel: "#snow-forecasts",
		},
		Schedule: ScheduleConfig{
			Enabled: true,
			Cron:    "0 0,6,12,18 * * *", // every 6 hours
		},
		DataDir: "data",
	}
}
