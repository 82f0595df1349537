package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret      string   `mapstructure:"JWT_SECRET"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`

	// Scheduling
	SlotGranularityMinutes int `mapstructure:"SLOT_GRANULARITY_MINUTES"`

	// External chat responder (optional; rule engine answers without it)
	ChatAPIURL string `mapstructure:"CHAT_API_URL"`
	ChatAPIKey string `mapstructure:"CHAT_API_KEY"`
	ChatModel  string `mapstructure:"CHAT_MODEL"`

	// Practice identity, surfaced by the assistant and /practice endpoints
	PracticeName    string `mapstructure:"PRACTICE_NAME"`
	PracticeAddress string `mapstructure:"PRACTICE_ADDRESS"`
	PracticePhone   string `mapstructure:"PRACTICE_PHONE"`
	AfterHoursPhone string `mapstructure:"AFTER_HOURS_PHONE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("SLOT_GRANULARITY_MINUTES", 30)
	v.SetDefault("CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("PRACTICE_NAME", "Bright Smile Dental Care")
	v.SetDefault("PRACTICE_ADDRESS", "123 Main Street, Anytown, CA 90210")
	v.SetDefault("PRACTICE_PHONE", "(555) 123-4567")
	v.SetDefault("AFTER_HOURS_PHONE", "(555) 999-8888")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("SLOT_GRANULARITY_MINUTES")
	v.BindEnv("CHAT_API_URL")
	v.BindEnv("CHAT_API_KEY")
	v.BindEnv("CHAT_MODEL")
	v.BindEnv("PRACTICE_NAME")
	v.BindEnv("PRACTICE_ADDRESS")
	v.BindEnv("PRACTICE_PHONE")
	v.BindEnv("AFTER_HOURS_PHONE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: Authentication is bypassed — all requests get staff access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT_SECRET must be set so that real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q", c.Env)
	}
	if c.SlotGranularityMinutes <= 0 {
		return fmt.Errorf("SLOT_GRANULARITY_MINUTES must be positive, got %d", c.SlotGranularityMinutes)
	}
	if c.ChatAPIKey != "" && c.ChatAPIURL == "" {
		return fmt.Errorf("CHAT_API_URL is required when CHAT_API_KEY is set")
	}
	return nil
}
