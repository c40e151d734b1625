package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sentinelpay/alertmatch/internal/api"
	"github.com/sentinelpay/alertmatch/internal/config"
	"github.com/sentinelpay/alertmatch/internal/feed"
	"github.com/sentinelpay/alertmatch/internal/mail"
	"github.com/sentinelpay/alertmatch/internal/notify"
	"github.com/sentinelpay/alertmatch/internal/reconcile"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation HTTP service",
		Long: `Starts the HTTP API, the ledger feed poller, and (when configured)
the Mailtrap inbox poller. Runs until interrupted.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", ":8000", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	notifyCfg := config.LoadNotifyConfig()
	notifier := notify.NewTelexNotifier(notifyCfg.WebhookURL, notifyCfg.APIToken, notifyCfg.ChannelID)

	reconciler := reconcile.New(store, reconcile.WithNotifier(notifier))

	ledgerFeed, feedCfg, err := initFeed()
	if err != nil {
		return fmt.Errorf("failed to initialize ledger feed: %w", err)
	}
	poller := feed.NewPoller(ledgerFeed, store, feed.WithInterval(feedCfg.Interval))
	go func() {
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("ledger poller exited", "error", err)
		}
	}()

	mailCfg := config.LoadMailConfig()
	if mailCfg.Enabled() {
		inbox, err := mail.NewMailtrapClient(mailCfg.APIURL, mailCfg.APIToken, mailCfg.InboxID)
		if err != nil {
			return fmt.Errorf("failed to initialize mail client: %w", err)
		}
		mailPoller := mail.NewPoller(inbox, reconciler, mail.WithInterval(mailCfg.Interval))
		go func() {
			if err := mailPoller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("mail poller exited", "error", err)
			}
		}()
	} else {
		slog.Info("mail polling disabled; set MAILTRAP_API_TOKEN and MAILTRAP_INBOX_ID to enable")
	}

	addr := viper.GetString("server.addr")
	server := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(reconciler, store, poller, version),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("alertmatch service listening",
		"addr", addr,
		"feed", ledgerFeed.Name(),
		"version", version)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
