package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Database    DatabaseConfig    `yaml:"database"`
	JWT         JWTConfig         `yaml:"jwt"`
	Redis       RedisConfig       `yaml:"redis"`
	App         AppConfig         `yaml:"app"`
	Email       EmailConfig       `yaml:"email"`
	Webhook     WebhookConfig     `yaml:"webhook"`
	Registrar   RegistrarConfig   `yaml:"registrar"`
	SideEffects SideEffectsConfig `yaml:"side_effects"`
	SystemLog   SystemLogConfig   `yaml:"system_log"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

type JWTConfig struct {
	Secret     string `yaml:"secret"`
	ExpireHour int    `yaml:"expire_hour"`
}

// RedisConfig for the optional async side-effect queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	FrontendURL string `yaml:"frontend_url"`
}

// EmailConfig configures the SMTP notification sender.
type EmailConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	From          string `yaml:"from"`
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
}

// WebhookConfig configures the optional chat webhook notification sender.
type WebhookConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Platform string `yaml:"platform"` // slack, dingtalk, feishu, wechat_work, generic
	URL      string `yaml:"url"`
	Secret   string `yaml:"secret"`
}

type RegistrarConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type SideEffectsConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type SystemLogConfig struct {
	RetentionDays int    `yaml:"retention_days"`
	CleanupCron   string `yaml:"cleanup_cron"`
}

var GlobalConfig *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	var cfg *Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg = DefaultConfig()
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}

		fileCfg := DefaultConfig()
		if err := yaml.Unmarshal(data, fileCfg); err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	cfg.overrideFromEnv()
	GlobalConfig = cfg
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "projecthub.db",
		},
		JWT: JWTConfig{
			Secret:     "projecthub-secret-key-change-in-production",
			ExpireHour: 24,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		App: AppConfig{
			Name:        "Hub Projets",
			FrontendURL: "http://localhost:3000",
		},
		Email: EmailConfig{
			Enabled: false,
			Port:    587,
			From:    "Hub Projets <no-reply@localhost>",
		},
		Webhook: WebhookConfig{
			Platform: "generic",
		},
		SideEffects: SideEffectsConfig{
			TimeoutSeconds: 10,
		},
		SystemLog: SystemLogConfig{
			RetentionDays: 30,
			CleanupCron:   "@daily",
		},
	}
}

// SideEffectTimeout bounds each notification or registrar call.
func (c *Config) SideEffectTimeout() time.Duration {
	if c.SideEffects.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SideEffects.TimeoutSeconds) * time.Second
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if frontendURL := os.Getenv("FRONTEND_URL"); frontendURL != "" {
		c.App.FrontendURL = frontendURL
	}
	if host := os.Getenv("SMTP_HOST"); host != "" {
		c.Email.Enabled = true
		c.Email.Host = host
	}
	if port := os.Getenv("SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Email.Port = p
		}
	}
	if user := os.Getenv("SMTP_USER"); user != "" {
		c.Email.Username = user
	}
	if pass := os.Getenv("SMTP_PASS"); pass != "" {
		c.Email.Password = pass
	}
	if from := os.Getenv("EMAIL_FROM"); from != "" {
		c.Email.From = from
	}
	if os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1" {
		c.Email.SkipTLSVerify = true
	}
	if webhookURL := os.Getenv("NOTIFY_WEBHOOK_URL"); webhookURL != "" {
		c.Webhook.Enabled = true
		c.Webhook.URL = webhookURL
	}
	if platform := os.Getenv("NOTIFY_WEBHOOK_PLATFORM"); platform != "" {
		c.Webhook.Platform = platform
	}
	if secret := os.Getenv("NOTIFY_WEBHOOK_SECRET"); secret != "" {
		c.Webhook.Secret = secret
	}
	if apiURL := os.Getenv("EXTERNAL_API_URL"); apiURL != "" {
		c.Registrar.URL = apiURL
	}
	if apiKey := os.Getenv("EXTERNAL_API_KEY"); apiKey != "" {
		c.Registrar.APIKey = apiKey
	}
	if timeout := os.Getenv("SIDE_EFFECT_TIMEOUT_SECONDS"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.SideEffects.TimeoutSeconds = t
		}
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// Password format: :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

func (c *Config) Save(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}
