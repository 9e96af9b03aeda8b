package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the full runtime configuration, read from the environment
// (optionally seeded from .env and a YAML file named by CONFIG_FILE).
type Config struct {
	AppEnv   string `mapstructure:"app_env"`
	HTTPAddr string `mapstructure:"http_addr"`
	AppURL   string `mapstructure:"app_url"`

	DBDriver      string `mapstructure:"db_driver"`
	DBDSN         string `mapstructure:"db_dsn"`
	DBAutoMigrate bool   `mapstructure:"db_auto_migrate"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	JWTSecret string `mapstructure:"jwt_secret"`

	ChapaSecretKey     string `mapstructure:"chapa_secret_key"`
	ChapaBaseURL       string `mapstructure:"chapa_base_url"`
	ChapaWebhookSecret string `mapstructure:"chapa_webhook_secret"`

	StripeSecretKey     string `mapstructure:"stripe_secret_key"`
	StripeWebhookSecret string `mapstructure:"stripe_webhook_secret"`

	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`

	OrderPendingTTL    time.Duration `mapstructure:"order_pending_ttl"`
	OrderSweepInterval time.Duration `mapstructure:"order_sweep_interval"`

	WebhookArchiveDriver string `mapstructure:"webhook_archive_driver"`
	LocalArchiveDir      string `mapstructure:"local_archive_dir"`
	S3Region             string `mapstructure:"s3_region"`
	S3Bucket             string `mapstructure:"s3_bucket"`
	S3Prefix             string `mapstructure:"s3_prefix"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	// Order confirmation mail is off while SMTP_HOST is empty.
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     string `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPass     string `mapstructure:"smtp_pass"`
	SMTPTLSMode  string `mapstructure:"smtp_tls_mode"`
	MailFrom     string `mapstructure:"mail_from"`
	MailFromName string `mapstructure:"mail_from_name"`
}

var defaults = map[string]any{
	"app_env":                "development",
	"http_addr":              ":8080",
	"app_url":                "http://localhost:8080",
	"db_driver":              "mysql",
	"db_dsn":                 "",
	"db_auto_migrate":        false,
	"log_level":              "info",
	"log_format":             "json",
	"jwt_secret":             "",
	"chapa_secret_key":       "",
	"chapa_base_url":         "https://api.chapa.co/v1",
	"chapa_webhook_secret":   "",
	"stripe_secret_key":      "",
	"stripe_webhook_secret":  "",
	"gateway_timeout":        "15s",
	"order_pending_ttl":      "24h",
	"order_sweep_interval":   "10m",
	"webhook_archive_driver": "none",
	"local_archive_dir":      "./storage/webhooks",
	"s3_region":              "",
	"s3_bucket":              "",
	"s3_prefix":              "webhooks",
	"rate_limit_rps":         5.0,
	"rate_limit_burst":       20,
	"smtp_host":              "",
	"smtp_port":              "587",
	"smtp_user":              "",
	"smtp_pass":              "",
	"smtp_tls_mode":          "starttls",
	"mail_from":              "no-reply@ethioshop.et",
	"mail_from_name":         "EthioShop",
}

// Load reads .env (ignored when missing; prod uses real env vars), then the
// optional CONFIG_FILE, then the process environment, which wins.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown DB_DRIVER: %s", c.DBDriver)
	}
	switch c.WebhookArchiveDriver {
	case "none", "local":
	case "s3":
		if c.S3Region == "" || c.S3Bucket == "" {
			return fmt.Errorf("S3 archive config missing: S3_REGION, S3_BUCKET required")
		}
	default:
		return fmt.Errorf("unknown WEBHOOK_ARCHIVE_DRIVER: %s", c.WebhookArchiveDriver)
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes in production")
	}
	if c.IsProduction() && c.ChapaSecretKey != "" && c.ChapaWebhookSecret == "" {
		return fmt.Errorf("CHAPA_WEBHOOK_SECRET is required in production")
	}
	if c.OrderPendingTTL <= 0 {
		return fmt.Errorf("ORDER_PENDING_TTL must be positive")
	}
	switch c.SMTPTLSMode {
	case "", "none", "starttls", "tls":
	default:
		return fmt.Errorf("unknown SMTP_TLS_MODE: %s", c.SMTPTLSMode)
	}
	if c.OrderSweepInterval <= 0 {
		return fmt.Errorf("ORDER_SWEEP_INTERVAL must be positive")
	}
	return nil
}

func (c Config) IsProduction() bool { return c.AppEnv == "production" }
