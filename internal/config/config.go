package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Calendar providers.
const (
	ProviderGoogle = "google"
	ProviderMemory = "memory"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string

	CalendarAPIURL      string
	CalendarAccessToken string
	CalendarID          string
	CalendarProvider    string
	HearingTimezone     string
	SearchWindowDays    int
	GatewayTimeout      time.Duration
	RetryCron           string
	NoticeRulesPath     string

	SlackBotToken         string
	SlackAttentionChannel string
	APIToken              string
}

func Load() Config {
	return Config{
		Port:        envInt("BAILIFF_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		CalendarAPIURL:      envStr("CALENDAR_API_URL", ""),
		CalendarAccessToken: envStr("CALENDAR_ACCESS_TOKEN", ""),
		CalendarID:          envStr("CALENDAR_ID", "primary"),
		CalendarProvider:    envStr("CALENDAR_PROVIDER", ProviderGoogle),
		HearingTimezone:     envStr("HEARING_TIMEZONE", "America/Los_Angeles"),
		SearchWindowDays:    envInt("SEARCH_WINDOW_DAYS", 7),
		GatewayTimeout:      time.Duration(envInt("GATEWAY_TIMEOUT_SECONDS", 30)) * time.Second,
		RetryCron:           envStr("RETRY_CRON", "*/30 * * * *"),
		NoticeRulesPath:     envStr("NOTICE_RULES_PATH", ""),

		SlackBotToken:         envStr("SLACK_BOT_TOKEN", ""),
		SlackAttentionChannel: envStr("SLACK_ATTENTION_CHANNEL", ""),
		APIToken:              envStr("BAILIFF_API_TOKEN", ""),
	}
}

// Location resolves HearingTimezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.HearingTimezone)
	if err != nil {
		return nil, fmt.Errorf("load hearing timezone %q: %w", c.HearingTimezone, err)
	}
	return loc, nil
}

// SearchWindow is the half-width of the reconciliation search window.
func (c Config) SearchWindow() time.Duration {
	return time.Duration(c.SearchWindowDays) * 24 * time.Hour
}

// Validate reports settings that make the service unable to start.
func (c Config) Validate() error {
	switch c.CalendarProvider {
	case ProviderGoogle:
		if c.CalendarAccessToken == "" {
			return fmt.Errorf("CALENDAR_ACCESS_TOKEN is required for provider %q", ProviderGoogle)
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown CALENDAR_PROVIDER %q", c.CalendarProvider)
	}
	if c.SearchWindowDays <= 0 {
		return fmt.Errorf("SEARCH_WINDOW_DAYS must be positive, got %d", c.SearchWindowDays)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
