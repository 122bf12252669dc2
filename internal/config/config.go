package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Config struct {
	Server      ServerConfig
	LLM         LLMConfig
	Resolver    ResolverConfig
	Transcriber TranscriberConfig
	Storage     StorageConfig
	Product     ProductConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port  int
	Token string
}

type LLMConfig struct {
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
}

// Timeout returns the completion timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ResolverConfig struct {
	BaseURL string
	Token   string
}

type TranscriberConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Enabled bool
}

type StorageConfig struct {
	DataDir string
}

type ProductConfig struct {
	Catalog string
	Name    string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.302.ai",
			Model:          "gemini-3-flash-preview",
			TimeoutSeconds: 120,
		},
		Resolver: ResolverConfig{
			BaseURL: "https://api.istero.com",
		},
		Transcriber: TranscriberConfig{
			BaseURL: "https://api.302.ai",
			Model:   "whisper-1",
			Enabled: true,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// TranscriptsEnabled reports whether decompositions should try to fetch the
// spoken text of a video. It needs both the transcriber and a resolver token.
func (c Config) TranscriptsEnabled() bool {
	return c.Transcriber.Enabled && c.Resolver.Token != ""
}

// ArtifactDir is where generated scripts are written.
func (c Config) ArtifactDir() string {
	return filepath.Join(c.Storage.DataDir, "generated_scripts")
}

// Load reads configuration from the TOML file at ConfigFilePath, then
// applies REELKIT_* environment overrides. Secrets are only read from the
// environment.
func Load() (Config, error) {
	return loadFromPath(ConfigFilePath())
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// The transcription endpoint usually shares the LLM gateway account.
	if cfg.Transcriber.APIKey == "" {
		cfg.Transcriber.APIKey = cfg.LLM.APIKey
	}

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key. " +
			"Set it via environment variable REELKIT_LLM_API_KEY")
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		return Config{}, fmt.Errorf("invalid llm.timeout_seconds %d: must be positive", cfg.LLM.TimeoutSeconds)
	}

	return cfg, nil
}
