// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config is the server configuration.
type Config struct {
	Port         int
	DataDir      string
	DBPath       string
	ParamsPath   string
	Workers      int
	Archive      bool
	CORSOrigins  []string
	RandomOrgKey string
	LogLevel     slog.Level
}

// ArchiveDir is where ensemble archives are written.
func (c Config) ArchiveDir() string {
	return filepath.Join(c.DataDir, "archive")
}

// ExportDir is where Record Results mode writes its files.
func (c Config) ExportDir() string {
	return filepath.Join(c.DataDir, "export")
}

// Load reads the configuration. Unset variables take defaults; malformed
// values are reported rather than ignored.
func Load() (Config, error) {
	dataDir := envOrDefault("ADAPTSIM_DATA_DIR", "data")
	c := Config{
		DataDir:      dataDir,
		DBPath:       envOrDefault("ADAPTSIM_DB", filepath.Join(dataDir, "adaptsim.db")),
		ParamsPath:   os.Getenv("ADAPTSIM_PARAMS"),
		RandomOrgKey: os.Getenv("RANDOM_ORG_KEY"),
		CORSOrigins:  splitList(os.Getenv("CORS_ORIGINS")),
	}

	var err error
	if c.Port, err = envIntOrDefault("ADAPTSIM_PORT", 8000); err != nil {
		return c, err
	}
	if c.Workers, err = envIntOrDefault("ADAPTSIM_WORKERS", runtime.GOMAXPROCS(0)); err != nil {
		return c, err
	}
	if c.Archive, err = envBoolOrDefault("ADAPTSIM_ARCHIVE", false); err != nil {
		return c, err
	}
	if c.LogLevel, err = parseLevel(envOrDefault("ADAPTSIM_LOG_LEVEL", "info")); err != nil {
		return c, err
	}
	return c, nil
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envBoolOrDefault(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("ADAPTSIM_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
