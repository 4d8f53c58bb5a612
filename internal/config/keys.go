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
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "MINUTED_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "MINUTED_SERVER_MCP_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
	},
	{
		env: "MINUTED_STORAGE_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "MINUTED_TRANSCRIBER_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Transcriber.URL = v.(string) },
	},
	{
		env: "MINUTED_TRANSCRIBER_FRAME_BYTES", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Transcriber.FrameBytes = v.(int) },
	},
	{
		env: "MINUTED_LLM_BASE_URL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
	},
	{
		env: "MINUTED_LLM_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
	},
	{
		env: "MINUTED_LLM_DEFAULT_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.LLM.DefaultModel = v.(string) },
	},
	{
		env: "MINUTED_SYNTHESIS_BLOCK_CHARS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Synthesis.BlockChars = v.(int) },
	},
	{
		env: "MINUTED_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
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
