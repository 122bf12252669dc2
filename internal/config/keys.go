package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
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
		key: "server.port", typ: kInt, env: "REELKIT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.token", typ: kString, env: "REELKIT_SERVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Token },
	},
	{
		key: "llm.base_url", typ: kString, env: "REELKIT_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.api_key", typ: kString, env: "REELKIT_LLM_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "llm.model", typ: kString, env: "REELKIT_LLM_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.Model },
	},
	{
		key: "llm.timeout_seconds", typ: kInt, env: "REELKIT_LLM_TIMEOUT_SECONDS",
		apply:   func(cfg *Config, v any) { cfg.LLM.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.LLM.TimeoutSeconds },
	},
	{
		key: "resolver.base_url", typ: kString, env: "REELKIT_RESOLVER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Resolver.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Resolver.BaseURL },
	},
	{
		key: "resolver.token", typ: kString, env: "REELKIT_RESOLVER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Resolver.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Resolver.Token },
	},
	{
		key: "transcriber.base_url", typ: kString, env: "REELKIT_TRANSCRIBER_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Transcriber.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcriber.BaseURL },
	},
	{
		key: "transcriber.api_key", typ: kString, env: "REELKIT_TRANSCRIBER_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Transcriber.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcriber.APIKey },
	},
	{
		key: "transcriber.model", typ: kString, env: "REELKIT_TRANSCRIBER_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Transcriber.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Transcriber.Model },
	},
	{
		key: "transcriber.enabled", typ: kBool, env: "REELKIT_TRANSCRIBER_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Transcriber.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Transcriber.Enabled },
	},
	{
		key: "storage.data_dir", typ: kString, env: "REELKIT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "product.catalog", typ: kString, env: "REELKIT_PRODUCT_CATALOG",
		apply:   func(cfg *Config, v any) { cfg.Product.Catalog = v.(string) },
		extract: func(cfg Config) any { return cfg.Product.Catalog },
	},
	{
		key: "product.name", typ: kString, env: "REELKIT_PRODUCT_NAME",
		apply:   func(cfg *Config, v any) { cfg.Product.Name = v.(string) },
		extract: func(cfg Config) any { return cfg.Product.Name },
	},
	{
		key: "log.level", typ: kString, env: "REELKIT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseRaw converts a textual value (environment or CLI) to the Go type
// the key's apply func expects.
func (s keySpec) parseRaw(raw string) (any, error) {
	switch s.typ {
	case kInt:
		i, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid integer value for %s: %w", s.key, err)
		}
		return i, nil
	case kBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid boolean value for %s: %w", s.key, err)
		}
		return b, nil
	default:
		return raw, nil
	}
}

// readBackend fetches the key's value from b with the right accessor.
func (s keySpec) readBackend(b ConfigBackend) (any, bool, error) {
	switch s.typ {
	case kInt:
		return wrap(b.GetInt(s.key))
	case kBool:
		return wrap(b.GetBool(s.key))
	default:
		return wrap(b.GetString(s.key))
	}
}

func wrap[T any](v T, ok bool, err error) (any, bool, error) {
	return v, ok, err
}

// applyBackend copies every non-secret key present in b onto cfg.
func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		v, ok, err := s.readBackend(b)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if ok {
			s.apply(cfg, v)
		}
	}
	return nil
}

// applyEnvOverrides applies every set REELKIT_* variable. Values that do not
// parse are reported and skipped so the file or default value stays.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw, ok := os.LookupEnv(s.env)
		if !ok || raw == "" {
			continue
		}
		v, err := s.parseRaw(raw)
		if err != nil {
			slog.Warn("ignoring environment override", "env", s.env, "error", err)
			continue
		}
		s.apply(cfg, v)
	}
}
