// Package config provides configuration management for the Comedy Pulse agent.
// Configuration is loaded from environment variables with sensible defaults,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultPort          = 8790
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultDataDir       = ".comedypulse"
	DefaultModel         = "gemini-3-pro-preview"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiTimeout = 300 // seconds

	// Environment variable names
	EnvPort          = "PULSE_PORT"
	EnvLogLevel      = "PULSE_LOG_LEVEL"
	EnvLogFormat     = "PULSE_LOG_FORMAT"
	EnvLogFile       = "PULSE_LOG_FILE"
	EnvDataDir       = "PULSE_DATA_DIR"
	EnvModel         = "PULSE_MODEL"
	EnvGeminiBaseURL = "PULSE_GEMINI_BASE_URL"
	EnvGeminiTimeout = "PULSE_GEMINI_TIMEOUT"
	EnvHeadless      = "PULSE_HEADLESS"

	// EnvAPIKey is read by the model client on every call; config only
	// reports whether it is set.
	EnvAPIKey = "API_KEY"

	uploadsDir = "uploads"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	LogFormat() string
	LogFile() string
	DataDir() string
	UploadsDir() string
	Model() string
	GeminiBaseURL() string
	GeminiTimeout() time.Duration
	Headless() bool
	HasAPIKey() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port          int
	logLevel      string
	logFormat     string
	logFile       string
	dataDir       string
	model         string
	geminiBaseURL string
	geminiTimeout time.Duration
	headless      bool
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding ones already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:          DefaultPort,
		logLevel:      DefaultLogLevel,
		logFormat:     DefaultLogFormat,
		dataDir:       defaultDataDir(),
		model:         DefaultModel,
		geminiBaseURL: DefaultGeminiBaseURL,
		geminiTimeout: DefaultGeminiTimeout * time.Second,
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if lf := os.Getenv(EnvLogFormat); lf != "" {
		lf = strings.ToLower(lf)
		if lf != "json" && lf != "text" {
			return nil, fmt.Errorf("invalid %s: must be json or text", EnvLogFormat)
		}
		cfg.logFormat = lf
	}

	cfg.logFile = os.Getenv(EnvLogFile)

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if m := os.Getenv(EnvModel); m != "" {
		cfg.model = m
	}

	if u := os.Getenv(EnvGeminiBaseURL); u != "" {
		cfg.geminiBaseURL = strings.TrimRight(u, "/")
	}

	if t := os.Getenv(EnvGeminiTimeout); t != "" {
		secs, err := strconv.Atoi(t)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvGeminiTimeout, err)
		}
		if secs <= 0 {
			return nil, fmt.Errorf("invalid %s: must be positive", EnvGeminiTimeout)
		}
		cfg.geminiTimeout = time.Duration(secs) * time.Second
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		headless, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = headless
	}

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// LogFormat returns json or text
func (c *EnvConfig) LogFormat() string {
	return c.logFormat
}

// LogFile returns the rotating log file path, empty when disabled
func (c *EnvConfig) LogFile() string {
	return c.logFile
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// UploadsDir returns where uploaded videos are spooled
func (c *EnvConfig) UploadsDir() string {
	return filepath.Join(c.dataDir, uploadsDir)
}

func (c *EnvConfig) Model() string {
	return c.model
}

func (c *EnvConfig) GeminiBaseURL() string {
	return c.geminiBaseURL
}

func (c *EnvConfig) GeminiTimeout() time.Duration {
	return c.geminiTimeout
}

// Headless disables the system tray
func (c *EnvConfig) Headless() bool {
	return c.headless
}

func (c *EnvConfig) HasAPIKey() bool {
	return os.Getenv(EnvAPIKey) != ""
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
