package log

import (
	"os"
	"strings"

	"go.uber.org/zap"
)

// EnvLevel overrides the level passed to New when set.
const EnvLevel = "TTLCACHE_LOG"

// New builds a console logger at level. $TTLCACHE_LOG, when set, wins over level.
func New(level string) (*zap.Logger, error) {
	if env := strings.TrimSpace(os.Getenv(EnvLevel)); env != "" {
		level = env
	}
	if level == "" {
		level = "info"
	}

	lvl, err := zap.ParseAtomicLevel(strings.ToLower(level))
	if err != nil {
		return nil, err
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = lvl
	cfg.DisableStacktrace = true
	return cfg.Build()
}
