package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "api.base_url", typ: kString, env: "RXASSIST_API_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.API.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.API.BaseURL },
	},
	{
		key: "api.token", typ: kString, env: "RXASSIST_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.API.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.API.Token },
	},
	{
		key: "chat.dispatch_timeout", typ: kString, env: "RXASSIST_CHAT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Chat.DispatchTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Chat.DispatchTimeout },
	},
	{
		key: "chat.retry_hint_limit", typ: kInt, env: "RXASSIST_CHAT_RETRY_HINT_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Chat.RetryHintLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Chat.RetryHintLimit },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RXASSIST_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "mock.port", typ: kInt, env: "RXASSIST_MOCK_PORT",
		apply:   func(cfg *Config, v any) { cfg.Mock.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Mock.Port },
	},
	{
		key: "mock.token", typ: kString, env: "RXASSIST_MOCK_TOKEN",
		apply:   func(cfg *Config, v any) { cfg.Mock.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Mock.Token },
	},
	{
		key: "log.level", typ: kString, env: "RXASSIST_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
