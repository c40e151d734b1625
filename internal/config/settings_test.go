package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/sentinelpay/alertmatch/internal/common"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadFeedConfig(t *testing.T) {
	t.Run("defaults to simulated", func(t *testing.T) {
		resetViper(t)

		cfg, err := LoadFeedConfig()
		if err != nil {
			t.Fatalf("LoadFeedConfig failed: %v", err)
		}
		if cfg.Source != "simulated" {
			t.Errorf("expected simulated source, got %q", cfg.Source)
		}
		if cfg.Interval != 15*time.Minute {
			t.Errorf("expected 15m interval, got %v", cfg.Interval)
		}
	})

	t.Run("viper settings win", func(t *testing.T) {
		resetViper(t)
		viper.Set("feed.source", "api")
		viper.Set("feed.api_url", "https://bank.example/accounts")
		viper.Set("feed.api_token", "tok")
		viper.Set("feed.interval", "5m")

		cfg, err := LoadFeedConfig()
		if err != nil {
			t.Fatalf("LoadFeedConfig failed: %v", err)
		}
		if cfg.Source != "api" || cfg.APIURL != "https://bank.example/accounts" {
			t.Errorf("unexpected config %+v", cfg)
		}
		if cfg.Interval != 5*time.Minute {
			t.Errorf("expected 5m interval, got %v", cfg.Interval)
		}
	})

	t.Run("legacy environment variables", func(t *testing.T) {
		resetViper(t)
		t.Setenv("TRANSACTIONS_SOURCE", "api")
		t.Setenv("TRANSACTIONS_API_URL", "https://bank.example/accounts")

		cfg, err := LoadFeedConfig()
		if err != nil {
			t.Fatalf("LoadFeedConfig failed: %v", err)
		}
		if cfg.Source != "api" {
			t.Errorf("expected api source from env, got %q", cfg.Source)
		}
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		resetViper(t)
		viper.Set("feed.source", "carrier-pigeon")

		_, err := LoadFeedConfig()
		if !errors.Is(err, common.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("api source requires URL", func(t *testing.T) {
		resetViper(t)
		viper.Set("feed.source", "api")

		_, err := LoadFeedConfig()
		if !errors.Is(err, common.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})
}

func TestLoadMailConfig(t *testing.T) {
	t.Run("disabled without credentials", func(t *testing.T) {
		resetViper(t)

		cfg := LoadMailConfig()
		if cfg.Enabled() {
			t.Error("expected mail polling disabled without token and inbox")
		}
	})

	t.Run("enabled with token and inbox", func(t *testing.T) {
		resetViper(t)
		viper.Set("mail.api_token", "mt-token")
		viper.Set("mail.inbox_id", "42")

		cfg := LoadMailConfig()
		if !cfg.Enabled() {
			t.Error("expected mail polling enabled")
		}
		if cfg.APIURL != "https://sandbox.api.mailtrap.io/api" {
			t.Errorf("expected sandbox default URL, got %q", cfg.APIURL)
		}
	})
}

func TestLoadNotifyConfig(t *testing.T) {
	t.Run("defaults to mock mode", func(t *testing.T) {
		resetViper(t)

		cfg := LoadNotifyConfig()
		if cfg.WebhookURL != "" {
			t.Errorf("expected empty webhook URL, got %q", cfg.WebhookURL)
		}
		if cfg.ChannelID != "demo-channel" {
			t.Errorf("expected demo-channel, got %q", cfg.ChannelID)
		}
	})

	t.Run("legacy environment variables", func(t *testing.T) {
		resetViper(t)
		t.Setenv("TELEX_WEBHOOK_URL", "https://telex.example/webhook")
		t.Setenv("TELEX_CHANNEL_ID", "alerts")

		cfg := LoadNotifyConfig()
		if cfg.WebhookURL != "https://telex.example/webhook" {
			t.Errorf("unexpected webhook URL %q", cfg.WebhookURL)
		}
		if cfg.ChannelID != "alerts" {
			t.Errorf("unexpected channel %q", cfg.ChannelID)
		}
	})
}

func TestExpandPath(t *testing.T) {
	t.Run("expands env vars", func(t *testing.T) {
		t.Setenv("ALERTMATCH_TEST_DIR", "/tmp/amtest")
		got := ExpandPath("$ALERTMATCH_TEST_DIR/db.sqlite")
		if got != "/tmp/amtest/db.sqlite" {
			t.Errorf("expected expanded path, got %q", got)
		}
	})

	t.Run("empty stays empty", func(t *testing.T) {
		if got := ExpandPath(""); got != "" {
			t.Errorf("expected empty, got %q", got)
		}
	})
}
