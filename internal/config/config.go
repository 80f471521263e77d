// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/robfig/cron/v3"
)

const (
	TransportBotFramework = "botframework"
	TransportMemory       = "memory"

	DefaultSummaryTrigger = "<at>Check-In Demo</at> How's everyone doing today?"
)

type Config struct {
	Port           string
	Environment    string
	DatabaseURL    string
	DBMaxConns     int
	RedisURL       string
	MigrationsPath string

	// Bot identity
	MicrosoftAppID       string
	MicrosoftAppPassword string
	BotAccountID         string
	BotName              string

	// Transport
	Transport            string
	BotTokenURL          string
	BotAuthDisabled      bool
	BotOpenIDMetadataURL string

	// Pair-up behaviour
	Testing           bool
	MaxPairUpsPerTeam int
	PairUpConcurrency int
	PairUpSchedule    string
	MoodPollSchedule  string
	SummaryTrigger    string

	// Admin API
	AdminAPIKeyHash string

	// Email configuration (run reports)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPUseTLS   bool
	OpsEmail     string
}

func Load() *Config {
	return &Config{
		Port:           getEnv("API_PORT", "3978"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBMaxConns:     getEnvInt("DB_MAX_CONNS", 8),
		RedisURL:       getEnv("REDIS_URL", ""),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "./internal/db/migrations"),

		MicrosoftAppID:       getEnv("MICROSOFT_APP_ID", ""),
		MicrosoftAppPassword: getEnv("MICROSOFT_APP_PASSWORD", ""),
		BotAccountID:         getEnv("BOT_ACCOUNT_ID", ""),
		BotName:              getEnv("BOT_NAME", "MeetupBot"),

		Transport:            getEnv("TRANSPORT", TransportBotFramework),
		BotTokenURL:          getEnv("BOT_TOKEN_URL", "https://login.microsoftonline.com/botframework.com/oauth2/v2.0/token"),
		BotAuthDisabled:      getEnvBool("BOT_AUTH_DISABLED", false),
		BotOpenIDMetadataURL: getEnv("BOT_OPENID_METADATA_URL", "https://login.botframework.com/v1/.well-known/openidconfiguration"),

		Testing:           getEnvBool("TESTING", false),
		MaxPairUpsPerTeam: getEnvInt("MAX_PAIRUPS_PER_TEAM", 0),
		PairUpConcurrency: getEnvInt("PAIRUP_CONCURRENCY", 1),
		PairUpSchedule:    getEnv("PAIRUP_SCHEDULE", "0 9 * * 1"),
		MoodPollSchedule:  getEnv("MOOD_POLL_SCHEDULE", "0 10 * * 1-5"),
		SummaryTrigger:    getEnv("SUMMARY_TRIGGER", DefaultSummaryTrigger),

		AdminAPIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@meetupbot.local"),
		SMTPFromName: getEnv("SMTP_FROM_NAME", "Meetup Bot"),
		SMTPUseTLS:   getEnvBool("SMTP_USE_TLS", false),
		OpsEmail:     getEnv("OPS_EMAIL", ""),
	}
}

// Validate reports configuration that would make the bot unable to run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case TransportBotFramework:
		if c.MicrosoftAppID == "" {
			errs = append(errs, errors.New("MICROSOFT_APP_ID is required for the botframework transport"))
		}
	case TransportMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSPORT %q", c.Transport))
	}

	if c.PairUpConcurrency < 1 {
		errs = append(errs, fmt.Errorf("PAIRUP_CONCURRENCY must be at least 1, got %d", c.PairUpConcurrency))
	}
	if c.MaxPairUpsPerTeam < 0 {
		errs = append(errs, fmt.Errorf("MAX_PAIRUPS_PER_TEAM must not be negative, got %d", c.MaxPairUpsPerTeam))
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for key, spec := range map[string]string{
		"PAIRUP_SCHEDULE":    c.PairUpSchedule,
		"MOOD_POLL_SCHEDULE": c.MoodPollSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s %q: %w", key, spec, err))
		}
	}

	return errors.Join(errs...)
}

// BotID is the bot's own channel account id. Teams prefixes the app id with "28:".
func (c *Config) BotID() string {
	if c.BotAccountID != "" {
		return c.BotAccountID
	}
	if c.MicrosoftAppID != "" {
		return "28:" + c.MicrosoftAppID
	}
	return ""
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
