package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Extractor  ExtractorConfig
	Auth       AuthConfig
	Matching   MatchingConfig
	Attendance AttendanceConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type ExtractorConfig struct {
	URL string // face embedding service, defaults to http://localhost:8000
}

type AuthConfig struct {
	JWTSecret  string
	TokenHours int // token lifetime in hours (default 8)
}

type MatchingConfig struct {
	Tolerance   float64 `yaml:"tolerance"`
	Dim         int     `yaml:"dim"`
	IndexCutoff int     `yaml:"index_cutoff"`
}

type AttendanceConfig struct {
	MinAttendance int `yaml:"min_attendance"`
}

// defaults mirrors the structure of defaults.yaml.
type defaults struct {
	Matching   MatchingConfig   `yaml:"matching"`
	Attendance AttendanceConfig `yaml:"attendance"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envIntAllowZero is envInt but accepts zero, for knobs where zero
// means disabled.
func envIntAllowZero(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// Embedded file, cannot fail unless the build itself is broken.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Extractor: ExtractorConfig{
			URL: os.Getenv("EXTRACTOR_URL"),
		},
		Auth: AuthConfig{
			JWTSecret:  os.Getenv("JWT_SECRET"),
			TokenHours: envInt("JWT_TOKEN_HOURS", 8),
		},
		Matching: MatchingConfig{
			Tolerance:   envFloat("MATCH_TOLERANCE", def.Matching.Tolerance),
			Dim:         envInt("EMBEDDING_DIM", def.Matching.Dim),
			// Zero disables the matcher's approximate prefilter.
			IndexCutoff: envIntAllowZero("MATCH_INDEX_CUTOFF", def.Matching.IndexCutoff),
		},
		Attendance: AttendanceConfig{
			MinAttendance: envInt("DEFAULT_MIN_ATTENDANCE", def.Attendance.MinAttendance),
		},
	}
}

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
