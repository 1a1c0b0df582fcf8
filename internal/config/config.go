package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// insecureJWTSecret is the built-in default; it is only accepted in development.
const insecureJWTSecret = "supersecretkey"

type Config struct {
	Addr               string        `yaml:"addr"`
	JWTSecret          string        `yaml:"jwt_secret"`
	APITimeout         time.Duration `yaml:"timeout"`
	DatabasePath       string        `yaml:"database_path"`
	TokenDuration      time.Duration `yaml:"token_duration"`
	ResetTokenDuration time.Duration `yaml:"reset_token_duration"`
	MigrateOnStart     bool          `yaml:"migrate_on_start"`
	Workers            int           `yaml:"workers"`
	AdminEmails        []string      `yaml:"admin_emails"`
	Mail               MailConfig    `yaml:"mail"`
	EngineConfig       EngineConfig  `yaml:"engine"`
	Ollama             OllamaConfig  `yaml:"ollama"`
}

type MailConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	From         string `yaml:"from"`
	ResetURLBase string `yaml:"reset_url_base"`
}

// EngineConfig configures the question generator.
type EngineConfig struct {
	Model           string        `yaml:"model"`
	TemplateVersion string        `yaml:"template_version"`
	Timeout         time.Duration `yaml:"timeout"`
}

type OllamaConfig struct {
	BaseURL                 string        `yaml:"base_url"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

// DefaultOllamaConfig returns the settings used when the config file leaves them out.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		BaseURL:                 "http://localhost:11434",
		Timeout:                 30 * time.Second,
		Retries:                 2,
		Backoff:                 500 * time.Millisecond,
		CircuitFailureThreshold: 5,
		CircuitReset:            30 * time.Second,
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:               getEnv("ST_ADDR", ":3000"),
		JWTSecret:          getEnv("ST_JWT_SECRET", insecureJWTSecret),
		APITimeout:         15 * time.Second,
		DatabasePath:       getEnv("ST_DATABASE_PATH", "skilltrials.db"),
		TokenDuration:      1 * time.Hour,
		ResetTokenDuration: 15 * time.Minute,
		Workers:            2,
		AdminEmails:        getEnvList("ST_ADMIN_EMAILS"),
		Mail: MailConfig{
			Host:         getEnv("ST_SMTP_HOST", "smtp.zoho.in"),
			Port:         getEnvInt("ST_SMTP_PORT", 587),
			Username:     os.Getenv("ST_SMTP_USER"),
			Password:     os.Getenv("ST_SMTP_PASS"),
			From:         os.Getenv("ST_SMTP_USER"),
			ResetURLBase: getEnv("ST_RESET_URL_BASE", "https://skilltrials.com/#/ResetPassword/"),
		},
		EngineConfig: EngineConfig{
			Model:           getEnv("ST_ENGINE_MODEL", "llama3"),
			TemplateVersion: "v1",
			Timeout:         60 * time.Second,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks the configuration and fills defaults for optional sections.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == insecureJWTSecret && os.Getenv("ST_ENV") != "development" {
		return errors.New("jwt_secret uses the insecure default; set ST_JWT_SECRET or ST_ENV=development")
	}
	if c.TokenDuration <= 0 {
		return fmt.Errorf("token_duration must be positive, got %s", c.TokenDuration)
	}
	if c.ResetTokenDuration <= 0 {
		c.ResetTokenDuration = 15 * time.Minute
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	admins := c.AdminEmails[:0]
	for _, e := range c.AdminEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			admins = append(admins, e)
		}
	}
	c.AdminEmails = admins

	if c.EngineConfig.Model == "" {
		return errors.New("engine.model is required")
	}
	if c.EngineConfig.TemplateVersion == "" {
		c.EngineConfig.TemplateVersion = "v1"
	}

	def := DefaultOllamaConfig()
	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = def.BaseURL
	}
	if c.Ollama.Timeout <= 0 {
		c.Ollama.Timeout = def.Timeout
	}
	if c.Ollama.Retries == 0 {
		c.Ollama.Retries = def.Retries
	}
	if c.Ollama.Backoff <= 0 {
		c.Ollama.Backoff = def.Backoff
	}
	if c.Ollama.CircuitFailureThreshold <= 0 {
		c.Ollama.CircuitFailureThreshold = def.CircuitFailureThreshold
	}
	if c.Ollama.CircuitReset <= 0 {
		c.Ollama.CircuitReset = def.CircuitReset
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

// getEnvList splits a comma separated variable, or returns nil when unset.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}
