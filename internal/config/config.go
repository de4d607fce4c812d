package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Attendance AttendanceConfig `yaml:"attendance"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Database   DatabaseConfig   `yaml:"database"`
	Web        WebConfig        `yaml:"web"`
	Admin      AdminConfig      `yaml:"-"`
}

type AttendanceConfig struct {
	Tolerance     float64       `yaml:"tolerance"`      // maximum Euclidean distance for a face match (exclusive)
	IdleTimeout   time.Duration `yaml:"idle_timeout"`   // unseen duration before auto-logout
	SweepInterval time.Duration `yaml:"sweep_interval"` // how often sessions are checked
	StudentsJSON  string        `yaml:"students_json"`  // gallery file
}

type EmbeddingConfig struct {
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	FrameMaxSize int           `yaml:"frame_max_size"` // frames are shrunk to fit this edge length
}

type DatabaseConfig struct {
	URL            string        `yaml:"-"`               // PostgreSQL connection URL, optional
	MaxOpenConns   int           `yaml:"max_open_conns"`  // Maximum open connections (default 25)
	MaxIdleConns   int           `yaml:"max_idle_conns"`  // Maximum idle connections (default 5)
	EventRetention time.Duration `yaml:"event_retention"` // attendance events older than this are purged, 0 keeps all
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	SessionSecret  string   `yaml:"-"`
	AllowedOrigins []string `yaml:"-"`
}

type AdminConfig struct {
	Password string // admin routes are disabled when empty
}

// Enabled reports whether admin login is possible.
func (c AdminConfig) Enabled() bool {
	return c.Password != ""
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

// envFloat reads a positive float, falling back to defaultVal.
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

// envDuration reads a duration such as "5m" or a plain number of seconds.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for item := range strings.SplitSeq(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the built-in configuration without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Attendance.Tolerance = envFloat("FACE_TOLERANCE", cfg.Attendance.Tolerance)
	cfg.Attendance.IdleTimeout = envDuration("SESSION_IDLE_TIMEOUT", cfg.Attendance.IdleTimeout)
	cfg.Attendance.SweepInterval = envDuration("SESSION_SWEEP_INTERVAL", cfg.Attendance.SweepInterval)
	cfg.Attendance.StudentsJSON = envString("STUDENTS_JSON", cfg.Attendance.StudentsJSON)

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Timeout = envDuration("EMBEDDING_TIMEOUT", cfg.Embedding.Timeout)
	cfg.Embedding.FrameMaxSize = envInt("FRAME_MAX_SIZE", cfg.Embedding.FrameMaxSize)

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.EventRetention = envDuration("EVENT_RETENTION", cfg.Database.EventRetention)

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.SessionSecret = os.Getenv("WEB_SESSION_SECRET")
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS")

	cfg.Admin.Password = os.Getenv("ADMIN_PASSWORD")

	return cfg
}

// Validate checks values that would make the service misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.Attendance.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("face tolerance must be positive, got %v", c.Attendance.Tolerance))
	}
	if c.Attendance.IdleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("session idle timeout must be positive, got %s", c.Attendance.IdleTimeout))
	}
	if c.Attendance.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("session sweep interval must be positive, got %s", c.Attendance.SweepInterval))
	}
	if c.Attendance.StudentsJSON == "" {
		errs = append(errs, errors.New("students json path is required"))
	}
	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid web port %d", c.Web.Port))
	}
	return errors.Join(errs...)
}
