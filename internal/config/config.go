package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendMemory   = "memory"
	BackendRabbitMQ = "rabbitmq"
	BackendPostgres = "postgres"
	StoreAirtable   = "airtable"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	Env      string `mapstructure:"APP_ENV"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// LeadStore: postgres | airtable. SchedulerBackend: rabbitmq | postgres | memory.
	LeadStore        string `mapstructure:"LEAD_STORE"`
	SchedulerBackend string `mapstructure:"SCHEDULER_BACKEND"`

	FollowUpDelay        time.Duration `mapstructure:"FOLLOWUP_DELAY"`
	FollowUpPollInterval time.Duration `mapstructure:"FOLLOWUP_POLL_INTERVAL"`
	SkipOnCallSuccess    bool          `mapstructure:"FOLLOWUP_SKIP_ON_CALL_SUCCESS"`
	IdempotencyWindow    time.Duration `mapstructure:"IDEMPOTENCY_WINDOW"`
	RateLimitPerMinute   int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	FallbackPhoneNumber  string        `mapstructure:"FALLBACK_PHONE_NUMBER"`
	BrandName            string        `mapstructure:"BRAND_NAME"`

	RetellAPIKey     string        `mapstructure:"RETELL_API_KEY"`
	RetellAgentID    string        `mapstructure:"RETELL_AGENT_ID"`
	RetellFromNumber string        `mapstructure:"RETELL_FROM_NUMBER"`
	RetellBaseURL    string        `mapstructure:"RETELL_BASE_URL"`
	CallTimeout      time.Duration `mapstructure:"CALL_TIMEOUT"`

	WhatsAppAccessToken string `mapstructure:"WHATSAPP_ACCESS_TOKEN"`
	WhatsAppPhoneID     string `mapstructure:"WHATSAPP_PHONE_ID"`
	WhatsAppBaseURL     string `mapstructure:"WHATSAPP_BASE_URL"`

	AirtableAPIKey string `mapstructure:"AIRTABLE_API_KEY"`
	AirtableBaseID string `mapstructure:"AIRTABLE_BASE_ID"`
	AirtableTable  string `mapstructure:"AIRTABLE_TABLE"`

	MailHost      string `mapstructure:"MAIL_HOST"`
	MailPort      int    `mapstructure:"MAIL_PORT"`
	MailUser      string `mapstructure:"MAIL_USER"`
	MailPass      string `mapstructure:"MAIL_PASS"`
	MailFrom      string `mapstructure:"MAIL_FROM"`
	NotifyEmailTo string `mapstructure:"NOTIFY_EMAIL_TO"`
}

var defaults = map[string]interface{}{
	"HTTP_ADDR":                     ":8080",
	"APP_ENV":                       "development",
	"LOG_LEVEL":                     "info",
	"DATABASE_URL":                  "",
	"RABBITMQ_URL":                  "",
	"REDIS_ADDR":                    "",
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"LEAD_STORE":                    BackendPostgres,
	"SCHEDULER_BACKEND":             BackendRabbitMQ,
	"FOLLOWUP_DELAY":                "30m",
	"FOLLOWUP_POLL_INTERVAL":        "15s",
	"FOLLOWUP_SKIP_ON_CALL_SUCCESS": false,
	"IDEMPOTENCY_WINDOW":            "0s",
	"RATE_LIMIT_PER_MINUTE":         10,
	"FALLBACK_PHONE_NUMBER":         "",
	"BRAND_NAME":                    "Fluxomatika",
	"RETELL_API_KEY":                "",
	"RETELL_AGENT_ID":               "",
	"RETELL_FROM_NUMBER":            "",
	"RETELL_BASE_URL":               "https://api.retellai.com",
	"CALL_TIMEOUT":                  "15s",
	"WHATSAPP_ACCESS_TOKEN":         "",
	"WHATSAPP_PHONE_ID":             "",
	"WHATSAPP_BASE_URL":             "https://graph.facebook.com/v18.0",
	"AIRTABLE_API_KEY":              "",
	"AIRTABLE_BASE_ID":              "",
	"AIRTABLE_TABLE":                "Leads",
	"MAIL_HOST":                     "",
	"MAIL_PORT":                     587,
	"MAIL_USER":                     "",
	"MAIL_PASS":                     "",
	"MAIL_FROM":                     "",
	"NOTIFY_EMAIL_TO":               "",
}

// Load monta a Config a partir do ambiente (o .env já foi carregado pelo
// godotenv no main) e falha cedo em combinações inválidas.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.LeadStore = strings.ToLower(strings.TrimSpace(cfg.LeadStore))
	cfg.SchedulerBackend = strings.ToLower(strings.TrimSpace(cfg.SchedulerBackend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR must be set"))
	}

	switch c.LeadStore {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when LEAD_STORE=postgres"))
		}
	case StoreAirtable:
		if c.AirtableAPIKey == "" || c.AirtableBaseID == "" {
			errs = append(errs, errors.New("AIRTABLE_API_KEY and AIRTABLE_BASE_ID are required when LEAD_STORE=airtable"))
		}
	default:
		errs = append(errs, fmt.Errorf("LEAD_STORE must be postgres or airtable, got %q", c.LeadStore))
	}

	switch c.SchedulerBackend {
	case BackendRabbitMQ:
		if c.RabbitMQURL == "" {
			errs = append(errs, errors.New("RABBITMQ_URL is required when SCHEDULER_BACKEND=rabbitmq"))
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SCHEDULER_BACKEND=postgres"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("SCHEDULER_BACKEND must be rabbitmq, postgres or memory, got %q", c.SchedulerBackend))
	}

	if c.FollowUpDelay <= 0 {
		errs = append(errs, errors.New("FOLLOWUP_DELAY must be positive"))
	}
	if c.IdempotencyWindow < 0 {
		errs = append(errs, errors.New("IDEMPOTENCY_WINDOW must not be negative"))
	}
	if c.IdempotencyWindow > 0 && c.RedisAddr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required when IDEMPOTENCY_WINDOW > 0"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}

	if c.IsProduction() {
		if c.RetellAPIKey == "" || c.RetellAgentID == "" || c.RetellFromNumber == "" {
			errs = append(errs, errors.New("RETELL_API_KEY, RETELL_AGENT_ID and RETELL_FROM_NUMBER are required in production"))
		}
		if c.WhatsAppAccessToken == "" || c.WhatsAppPhoneID == "" {
			errs = append(errs, errors.New("WHATSAPP_ACCESS_TOKEN and WHATSAPP_PHONE_ID are required in production"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) NeedsDatabase() bool {
	return c.LeadStore == BackendPostgres || c.SchedulerBackend == BackendPostgres
}

func (c *Config) MailEnabled() bool {
	return c.NotifyEmailTo != "" && c.MailHost != ""
}
