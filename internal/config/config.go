// Package config loads rxassist configuration from a JSON file backend and
// RXASSIST_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	API     APIConfig
	Chat    ChatConfig
	Storage StorageConfig
	Mock    MockConfig
	Log     LogConfig
}

type APIConfig struct {
	// BaseURL of the pharmacy-management backend, e.g. https://api.example.com.
	BaseURL string
	// Token is the bearer token issued by the backend's auth flow.
	Token string
}

type ChatConfig struct {
	// DispatchTimeout is a duration string bounding one chat dispatch.
	DispatchTimeout string
	// RetryHintLimit is the consecutive-failure count at which error turns
	// stop offering retry suggestions.
	RetryHintLimit int
}

type StorageConfig struct {
	DataDir string
}

type MockConfig struct {
	Port  int
	Token string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://localhost:5000",
		},
		Chat: ChatConfig{
			DispatchTimeout: "30s",
			RetryHintLimit:  2,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Mock: MockConfig{
			Port: 5050,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/rxassist/config.json, then applies RXASSIST_* environment
// overrides. The API token is env-only (never written to the config file).
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "rxassist-data"
		}
	}
	return filepath.Join(dir, "rxassist")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "rxassist", "config.json")
}

// KeyInfo describes a config key for display purposes.
type KeyInfo struct {
	Key    string
	EnvVar string
	Value  string
}

// ShowAll returns all non-secret config key/value pairs from the current config.
func ShowAll(cfg Config) []KeyInfo {
	var result []KeyInfo
	for _, s := range specs {
		if s.secret {
			continue
		}
		result = append(result, KeyInfo{
			Key:    s.key,
			EnvVar: s.env,
			Value:  fmt.Sprintf("%v", s.extract(cfg)),
		})
	}
	return result
}
