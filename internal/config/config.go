package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server      ServerConfig
	Storage     StorageConfig
	Transcriber TranscriberConfig
	LLM         LLMConfig
	Synthesis   SynthesisConfig
	Log         LogConfig
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type StorageConfig struct {
	DataDir string
}

type TranscriberConfig struct {
	// URL is the transcription backend's websocket endpoint (ws:// or wss://).
	URL        string
	FrameBytes int
}

type LLMConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
}

type SynthesisConfig struct {
	BlockChars int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4000,
			MCPPort: 4001,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Transcriber: TranscriberConfig{
			URL:        "ws://localhost:8089",
			FrameBytes: 64 << 10,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.deepseek.com",
			DefaultModel: "deepseek-chat",
		},
		Synthesis: SynthesisConfig{
			BlockChars: 2000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".minuted", "data")
}

// Load builds the configuration from defaults overridden by MINUTED_*
// environment variables. The service is configured purely by environment;
// there is no config file.
func Load() (Config, error) {
	cfg := defaults()
	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: text-generation API key. " +
			"Set it via environment variable MINUTED_LLM_API_KEY")
	}
	if cfg.Transcriber.FrameBytes <= 0 {
		return Config{}, fmt.Errorf("invalid config: MINUTED_TRANSCRIBER_FRAME_BYTES must be positive")
	}
	if cfg.Synthesis.BlockChars <= 0 {
		return Config{}, fmt.Errorf("invalid config: MINUTED_SYNTHESIS_BLOCK_CHARS must be positive")
	}

	return cfg, nil
}
