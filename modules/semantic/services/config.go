package services

import (
	"os"
	"strings"
)

const DefaultEngineType = "sqlite"

// Config is the only environment coupling of the pipeline: the engine tag
// used to filter physical mappings.
type Config struct {
	DefaultEngine string
}

func ConfigFromEnv() Config {
	engine := strings.TrimSpace(strings.ToLower(os.Getenv("SEMANTIC_DEFAULT_ENGINE")))
	if engine == "" {
		engine = DefaultEngineType
	}
	return Config{DefaultEngine: engine}
}

func (c Config) engine() string {
	if strings.TrimSpace(c.DefaultEngine) == "" {
		return DefaultEngineType
	}
	return c.DefaultEngine
}
