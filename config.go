package klyptik

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the service and the CLIs
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Model    ModelConfig    `yaml:"model"`
	Store    StoreConfig    `yaml:"store"`
	Cache    CacheConfig    `yaml:"cache"`
	Recovery RecoveryConfig `yaml:"recovery"`
	Log      LogConfig      `yaml:"log"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr is host:port for net/http
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig describes the OpenAI-compatible endpoint that writes quizzes
type ModelConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Name        string        `yaml:"name"`
	Temperature float64       `yaml:"temperature"`
	TopP        float64       `yaml:"top_p"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig enables the redis document cache when Addr is set
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type RecoveryConfig struct {
	DeepRepair bool `yaml:"deep_repair"`
	Flatten    bool `yaml:"flatten"`
}

type LogConfig struct {
	Debug         bool   `yaml:"debug"`
	JSON          bool   `yaml:"json"`
	TranscriptDir string `yaml:"transcript_dir"` // empty disables transcripts
}

type SessionConfig struct {
	Name   string `yaml:"name"`
	Secret string `yaml:"secret"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Name:        "gpt-4o-mini",
			Temperature: 0.3,
			TopP:        0.9,
			MaxTokens:   1024,
			Timeout:     2 * time.Minute,
		},
		Store:    StoreConfig{Path: "klyptik.db"},
		Cache:    CacheConfig{TTL: 24 * time.Hour},
		Recovery: RecoveryConfig{Flatten: true},
		Log:      LogConfig{TranscriptDir: "log"},
		Session:  SessionConfig{Name: "klyptik"},
	}
}

// LoadConfig builds a Config from the defaults, the YAML file at path (if
// any), the .env files (default ".env", missing files ignored) and finally
// the process environment.
func LoadConfig(path string, envFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Model.APIKey, "OPENAI_API_KEY")
	setString(&c.Model.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Model.Name, "MODEL_NAME")
	setString(&c.Server.Host, "HOST")
	setString(&c.Store.Path, "DB_PATH")
	setString(&c.Cache.Addr, "REDIS_ADDR")
	setString(&c.Session.Secret, "SESSION_SECRET")
	setString(&c.Log.TranscriptDir, "TRANSCRIPT_DIR")

	if err := setInt(&c.Server.Port, "PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.Cache.TTL, "CACHE_TTL"); err != nil {
		return err
	}
	if err := setBool(&c.Log.Debug, "DEBUG"); err != nil {
		return err
	}
	if err := setBool(&c.Recovery.DeepRepair, "DEEP_REPAIR"); err != nil {
		return err
	}
	return setBool(&c.Recovery.Flatten, "FLATTEN_QUIZ")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Validate reports the first setting that cannot work
func (c *Config) Validate() error {
	switch {
	case c.Model.Name == "":
		return errors.New("model name is required")
	case c.Server.Port <= 0:
		return fmt.Errorf("invalid port %d", c.Server.Port)
	case c.Model.MaxTokens <= 0:
		return fmt.Errorf("invalid max tokens %d", c.Model.MaxTokens)
	case c.Model.Temperature < 0 || c.Model.Temperature > 2:
		return fmt.Errorf("temperature %.2f outside [0, 2]", c.Model.Temperature)
	case c.Model.TopP <= 0 || c.Model.TopP > 1:
		return fmt.Errorf("top_p %.2f outside (0, 1]", c.Model.TopP)
	}
	return nil
}

// PipelineOptions derives the recovery options from the config
func (c *Config) PipelineOptions() PipelineOptions {
	return PipelineOptions{
		DeepRepair: c.Recovery.DeepRepair,
		Flatten:    c.Recovery.Flatten,
	}
}
