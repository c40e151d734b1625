package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelpay/alertmatch/internal/common"
)

// FeedConfig selects and configures the ledger transaction source.
type FeedConfig struct {
	// Source is "simulated" or "api".
	Source   string
	APIURL   string
	APIToken string
	Interval time.Duration
}

// MailConfig configures the Mailtrap sandbox inbox reader.
type MailConfig struct {
	APIURL   string
	APIToken string
	InboxID  string
	Interval time.Duration
}

// NotifyConfig configures the Telex webhook notifier.
type NotifyConfig struct {
	WebhookURL string
	APIToken   string
	ChannelID  string
}

// LoadFeedConfig reads ledger feed settings. Precedence: viper config
// (file or ALERTMATCH_ env vars), then the original TRANSACTIONS_* variables,
// then defaults.
func LoadFeedConfig() (*FeedConfig, error) {
	cfg := &FeedConfig{
		Source:   "simulated",
		Interval: 15 * time.Minute,
	}

	if v := viper.GetString("feed.source"); v != "" {
		cfg.Source = v
	} else if v := os.Getenv("TRANSACTIONS_SOURCE"); v != "" {
		cfg.Source = v
	}
	if v := viper.GetString("feed.api_url"); v != "" {
		cfg.APIURL = v
	} else {
		cfg.APIURL = os.Getenv("TRANSACTIONS_API_URL")
	}
	if v := viper.GetString("feed.api_token"); v != "" {
		cfg.APIToken = v
	} else {
		cfg.APIToken = os.Getenv("TRANSACTIONS_API_TOKEN")
	}
	if v := viper.GetDuration("feed.interval"); v > 0 {
		cfg.Interval = v
	}

	switch cfg.Source {
	case "simulated", "api":
	default:
		return nil, fmt.Errorf("%w: feed.source must be \"simulated\" or \"api\", got %q",
			common.ErrInvalidConfig, cfg.Source)
	}
	if cfg.Source == "api" && cfg.APIURL == "" {
		return nil, fmt.Errorf("%w: feed.api_url is required when feed.source is \"api\"",
			common.ErrMissingConfig)
	}

	return cfg, nil
}

// LoadMailConfig reads Mailtrap inbox settings. The inbox is optional; an
// unset token disables mail polling.
func LoadMailConfig() *MailConfig {
	cfg := &MailConfig{
		APIURL:   "https://sandbox.api.mailtrap.io/api",
		Interval: 5 * time.Minute,
	}

	if v := viper.GetString("mail.api_url"); v != "" {
		cfg.APIURL = v
	} else if v := os.Getenv("MAILTRAP_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := viper.GetString("mail.api_token"); v != "" {
		cfg.APIToken = v
	} else {
		cfg.APIToken = os.Getenv("MAILTRAP_API_TOKEN")
	}
	if v := viper.GetString("mail.inbox_id"); v != "" {
		cfg.InboxID = v
	} else {
		cfg.InboxID = os.Getenv("MAILTRAP_INBOX_ID")
	}
	if v := viper.GetDuration("mail.interval"); v > 0 {
		cfg.Interval = v
	}

	return cfg
}

// Enabled reports whether mail polling is configured.
func (c *MailConfig) Enabled() bool {
	return c.APIToken != "" && c.InboxID != ""
}

// LoadNotifyConfig reads Telex webhook settings. An unset webhook URL puts
// the notifier in log-only mock mode.
func LoadNotifyConfig() *NotifyConfig {
	cfg := &NotifyConfig{
		ChannelID: "demo-channel",
	}

	if v := viper.GetString("notify.webhook_url"); v != "" {
		cfg.WebhookURL = v
	} else {
		cfg.WebhookURL = os.Getenv("TELEX_WEBHOOK_URL")
	}
	if v := viper.GetString("notify.api_token"); v != "" {
		cfg.APIToken = v
	} else {
		cfg.APIToken = os.Getenv("TELEX_API_TOKEN")
	}
	if v := viper.GetString("notify.channel_id"); v != "" {
		cfg.ChannelID = v
	} else if v := os.Getenv("TELEX_CHANNEL_ID"); v != "" {
		cfg.ChannelID = v
	}

	return cfg
}
