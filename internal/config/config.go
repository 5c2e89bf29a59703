package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultServerAddress    = ":8000"
	DefaultProvider         = "gemini"
	DefaultModel            = "gemini-1.5-flash-latest"
	DefaultWeatherBaseURL   = "http://api.openweathermap.org"
	DefaultHistoryLimit     = 5
	DefaultFullHistoryLimit = 100
	DefaultWeatherTimeout   = 10
)

// Environment variables recognised on top of the config file.
const (
	EnvConfigPath     = "SKYCHAT_CONFIG"
	EnvServerAddress  = "SKYCHAT_ADDR"
	EnvHistoryBackend = "SKYCHAT_HISTORY_BACKEND"
	EnvGeminiAPIKey   = "GEMINI_API_KEY"
	EnvWeatherAPIKey  = "OPENWEATHER_API_KEY"
	EnvHistoryTable   = "CHAT_HISTORY_TABLE_NAME"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Model       ModelConfig               `json:"model"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Weather     WeatherConfig             `json:"weather"`
	History     HistoryConfig             `json:"history"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type BasicConfig struct {
	ServerAddress         string `json:"server_address"`
	HistoryLimit          int    `json:"history_limit"`
	FullHistoryLimit      int    `json:"full_history_limit"`
	WeatherTimeoutSeconds int    `json:"weather_timeout_seconds"`
}

// ModelConfig selects which provider answers chat turns.
type ModelConfig struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type WeatherConfig struct {
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// HistoryConfig picks the persistence backend for chat history.
// An empty Backend disables persistence.
type HistoryConfig struct {
	Backend   string `json:"backend"`
	TableName string `json:"table_name"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing file is not an error: the service can run from environment alone.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
		cfg.resolvePaths(filepath.Dir(absPath))
	case errors.Is(err, os.ErrNotExist):
		log.Printf("config %s not found, using defaults", absPath)
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// Provider returns the settings of the configured model provider.
func (c *Config) Provider() ProviderConfig {
	return c.Providers[c.Model.Provider]
}

// Warnings lists the missing settings that push the service into degraded mode.
func (c *Config) Warnings() []string {
	var out []string
	if c.Provider().APIKey == "" {
		out = append(out, fmt.Sprintf("no api key for model provider %q", c.Model.Provider))
	}
	if c.Weather.APIKey == "" {
		out = append(out, "weather api key missing, get_weather will report errors")
	}
	if c.History.Backend == "" {
		out = append(out, "history backend not configured, chat history is disabled")
	}
	return out
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServerAddress); v != "" {
		c.BasicConfig.ServerAddress = v
	}
	if v := os.Getenv(EnvWeatherAPIKey); v != "" {
		c.Weather.APIKey = v
	}
	if v := os.Getenv(EnvGeminiAPIKey); v != "" {
		if c.Providers == nil {
			c.Providers = make(map[string]ProviderConfig)
		}
		p := c.Providers["gemini"]
		p.APIKey = v
		c.Providers["gemini"] = p
	}
	if v := os.Getenv(EnvHistoryTable); v != "" {
		c.History.TableName = v
		if c.History.Backend == "" {
			c.History.Backend = "dynamodb"
		}
	}
	if v := os.Getenv(EnvHistoryBackend); v != "" {
		c.History.Backend = v
	}
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.HistoryLimit <= 0 {
		c.BasicConfig.HistoryLimit = DefaultHistoryLimit
	}
	if c.BasicConfig.FullHistoryLimit <= 0 {
		c.BasicConfig.FullHistoryLimit = DefaultFullHistoryLimit
	}
	if c.BasicConfig.WeatherTimeoutSeconds <= 0 {
		c.BasicConfig.WeatherTimeoutSeconds = DefaultWeatherTimeout
	}
	if c.Model.Provider == "" {
		c.Model.Provider = DefaultProvider
	}
	if c.Model.Name == "" {
		c.Model.Name = c.Provider().Model
	}
	if c.Model.Name == "" && c.Model.Provider == DefaultProvider {
		c.Model.Name = DefaultModel
	}
	if c.Weather.BaseURL == "" {
		c.Weather.BaseURL = DefaultWeatherBaseURL
	}
}

func (c *Config) resolvePaths(base string) {
	for name, db := range c.Databases {
		if name != "sqlite3" && name != "sqlite" {
			continue
		}
		if db.DSN == "" || db.DSN == ":memory:" || strings.HasPrefix(db.DSN, "file:") || filepath.IsAbs(db.DSN) {
			continue
		}
		db.DSN = filepath.Join(base, db.DSN)
		c.Databases[name] = db
	}
}
