package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Pdf      PdfConfig      `mapstructure:"pdf"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Port    int    `mapstructure:"port"`
	Env     string `mapstructure:"env"`
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig is the master (control-plane) PostgreSQL database holding the
// company registry and per-company mail provider settings.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// MongoConfig is the tenant document store. Each company owns a database on
// this cluster, named by the registry's db_name column.
type MongoConfig struct {
	URI     string        `mapstructure:"uri"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// QueueConfig drives the PDF generation queue and its consumer.
type QueueConfig struct {
	Name        string `mapstructure:"name"`         // queue name
	MaxMessages int    `mapstructure:"max_messages"` // messages per poll
	WaitSeconds int    `mapstructure:"wait_seconds"` // long-poll wait
	MaxRetries  int    `mapstructure:"max_retries"`  // render attempts before terminal failure
}

type SweeperConfig struct {
	Interval  time.Duration `mapstructure:"interval"`   // sweep period
	BatchSize int           `mapstructure:"batch_size"` // expired documents fetched per company
}

// PdfConfig points at the external rendering service. Requests are signed with
// HMAC-SHA256 using the client credentials.
type PdfConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type MailerConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func NewConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Enable environment variable override
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Bare numbers in the config file are seconds
	cfg.Mongo.Timeout = normalizeDuration(cfg.Mongo.Timeout, 10*time.Second)
	cfg.Pdf.Timeout = normalizeDuration(cfg.Pdf.Timeout, 60*time.Second)
	cfg.Mailer.Timeout = normalizeDuration(cfg.Mailer.Timeout, 30*time.Second)

	if cfg.Queue.Name == "" {
		cfg.Queue.Name = "pdf-generation"
	}
	if cfg.Queue.MaxMessages <= 0 {
		cfg.Queue.MaxMessages = 5
	}
	if cfg.Queue.WaitSeconds <= 0 {
		cfg.Queue.WaitSeconds = 10
	}
	if cfg.Queue.MaxRetries <= 0 {
		cfg.Queue.MaxRetries = 3
	}
	if cfg.Sweeper.Interval <= 0 {
		cfg.Sweeper.Interval = 15 * time.Minute
	}
	if cfg.Sweeper.BatchSize <= 0 {
		cfg.Sweeper.BatchSize = 100
	}

	return &cfg, nil
}

// normalizeDuration treats sub-millisecond values as whole seconds, so the
// config file can say "30" instead of "30s".
func normalizeDuration(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	if d < time.Millisecond {
		return d * time.Second
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)
