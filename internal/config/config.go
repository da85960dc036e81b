package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSystemPrompt is sent to the model when CHATFLOW_AGENT_SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = "You are a helpful AI assistant. Use the available tools to help users with their requests."

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server    ServerConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Agent     AgentConfig
	Uploads   UploadsConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// RateLimitConfig holds the per-IP token bucket applied to the API.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// RedisConfig holds Redis connection settings. An empty Addr selects the
// in-process broker.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// Enabled reports whether live events go through Redis.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// AgentConfig holds the model backend settings.
type AgentConfig struct {
	Backend       string
	Model         string
	APIKey        string //nolint:gosec // G117: provider credential
	BaseURL       string
	SystemPrompt  string
	Temperature   float64
	TopP          float64
	MaxTokens     int
	MaxToolRounds int
	Timeout       time.Duration
}

// UploadsConfig holds upload directory settings.
type UploadsConfig struct {
	Dir      string
	MaxBytes int64
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  zerolog.Level
	Format string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("CHATFLOW_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("CHATFLOW_SERVER_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("CHATFLOW_RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("CHATFLOW_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("CHATFLOW_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	temperature, err := getEnvFloat("CHATFLOW_AGENT_TEMPERATURE", 0.1)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	topP, err := getEnvFloat("CHATFLOW_AGENT_TOP_P", 0.9)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxTokens, err := getEnvInt("CHATFLOW_AGENT_MAX_TOKENS", 4000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxToolRounds, err := getEnvInt("CHATFLOW_AGENT_MAX_TOOL_ROUNDS", 8)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	agentTimeout, err := getEnvDuration("CHATFLOW_AGENT_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxUpload, err := getEnvInt("CHATFLOW_UPLOADS_MAX_BYTES", 32<<20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	level, err := zerolog.ParseLevel(getEnv("CHATFLOW_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("config.Load: parsing CHATFLOW_LOG_LEVEL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("CHATFLOW_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  getEnvList("CHATFLOW_CORS_ORIGINS", []string{"http://localhost:8080"}),
		},
		RateLimit: RateLimitConfig{
			RPS:   rps,
			Burst: burst,
		},
		Redis: RedisConfig{
			Addr:     getEnv("CHATFLOW_REDIS_ADDR", ""),
			Password: getEnv("CHATFLOW_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Agent: AgentConfig{
			Backend:       getEnv("CHATFLOW_AGENT_BACKEND", "openai"),
			Model:         getEnv("CHATFLOW_AGENT_MODEL", ""),
			APIKey:        getEnv("CHATFLOW_AGENT_API_KEY", ""),
			BaseURL:       getEnv("CHATFLOW_AGENT_BASE_URL", ""),
			SystemPrompt:  getEnv("CHATFLOW_AGENT_SYSTEM_PROMPT", DefaultSystemPrompt),
			Temperature:   temperature,
			TopP:          topP,
			MaxTokens:     maxTokens,
			MaxToolRounds: maxToolRounds,
			Timeout:       agentTimeout,
		},
		Uploads: UploadsConfig{
			Dir:      getEnv("CHATFLOW_UPLOADS_DIR", "uploads"),
			MaxBytes: int64(maxUpload),
		},
		Log: LogConfig{
			Level:  level,
			Format: strings.ToLower(getEnv("CHATFLOW_LOG_FORMAT", "json")),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("CHATFLOW_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("CHATFLOW_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("CHATFLOW_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("CHATFLOW_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("CHATFLOW_REDIS_DB must be >= 0, got %d", c.Redis.DB)
	}
	if c.Agent.Backend == "" {
		return errors.New("CHATFLOW_AGENT_BACKEND must not be empty")
	}
	if c.Agent.Temperature < 0 || c.Agent.Temperature > 2 {
		return fmt.Errorf("CHATFLOW_AGENT_TEMPERATURE must be 0-2, got %g", c.Agent.Temperature)
	}
	if c.Agent.TopP <= 0 || c.Agent.TopP > 1 {
		return fmt.Errorf("CHATFLOW_AGENT_TOP_P must be in (0, 1], got %g", c.Agent.TopP)
	}
	if c.Agent.MaxTokens < 1 {
		return fmt.Errorf("CHATFLOW_AGENT_MAX_TOKENS must be >= 1, got %d", c.Agent.MaxTokens)
	}
	if c.Agent.MaxToolRounds < 1 {
		return fmt.Errorf("CHATFLOW_AGENT_MAX_TOOL_ROUNDS must be >= 1, got %d", c.Agent.MaxToolRounds)
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("CHATFLOW_AGENT_TIMEOUT must be positive, got %s", c.Agent.Timeout)
	}
	if strings.TrimSpace(c.Uploads.Dir) == "" {
		return errors.New("CHATFLOW_UPLOADS_DIR must not be empty")
	}
	if c.Uploads.MaxBytes < 1 {
		return fmt.Errorf("CHATFLOW_UPLOADS_MAX_BYTES must be >= 1, got %d", c.Uploads.MaxBytes)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("CHATFLOW_LOG_FORMAT must be json or text, got %q", c.Log.Format)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
