package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sentinelpay/alertmatch/internal/cli"
	"github.com/sentinelpay/alertmatch/internal/feed"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/ofx"
	"github.com/sentinelpay/alertmatch/internal/reconcile"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect and maintain the transaction ledger",
	}

	cmd.AddCommand(ledgerListCmd())
	cmd.AddCommand(ledgerSeedCmd())
	cmd.AddCommand(ledgerImportCmd())

	return cmd
}

func ledgerListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent ledger transactions",
		RunE:  runLedgerList,
	}

	cmd.Flags().Int("window-hours", int(reconcile.DefaultWindow.Hours()), "lookback window in hours")

	return cmd
}

func runLedgerList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	hours, _ := cmd.Flags().GetInt("window-hours")
	if hours <= 0 {
		return fmt.Errorf("window-hours must be positive, got %d", hours)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	transactions, err := store.GetRecentTransactions(ctx, time.Duration(hours)*time.Hour)
	if err != nil {
		return fmt.Errorf("failed to list ledger: %w", err)
	}

	fmt.Println(cli.TitleStyle.Render(fmt.Sprintf("Ledger (last %dh)", hours)))
	if len(transactions) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No transactions in window."))
		return nil
	}

	header := fmt.Sprintf("%-20s %-20s %-14s %10s %5s", "ID", "TIMESTAMP", "MERCHANT", "AMOUNT", "SIM")
	fmt.Println(cli.TableHeaderStyle.Render(header))
	for _, txn := range transactions {
		sim := ""
		if txn.IsSimulated {
			sim = "yes"
		}
		row := fmt.Sprintf("%-20s %-20s %-14s %10.2f %5s",
			txn.ID,
			txn.Timestamp.UTC().Format("2006-01-02 15:04"),
			txn.Merchant,
			txn.Amount,
			sim)
		fmt.Println(cli.TableCellStyle.Render(row))
	}
	fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d transactions", len(transactions))))

	return nil
}

func ledgerSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the ledger with simulated transactions",
		Long: `Generates a batch of mock ledger transactions, standing in for a feed
poll during demos and local testing.`,
		RunE: runLedgerSeed,
	}

	cmd.Flags().Int("count", 5, "number of transactions to generate")
	cmd.Flags().Int64("seed", 0, "random seed (0 means time-based)")

	return cmd
}

func runLedgerSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	count, _ := cmd.Flags().GetInt("count")
	randSeed, _ := cmd.Flags().GetInt64("seed")
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	opts := []feed.SimulatedOption{feed.WithCount(count)}
	if randSeed != 0 {
		opts = append(opts, feed.WithSeed(randSeed))
	}

	poller := feed.NewPoller(feed.NewSimulatedFeed(opts...), store)
	fetched, err := poller.RefreshNow(ctx)
	if err != nil {
		return fmt.Errorf("failed to seed ledger: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Seeded %d simulated transactions", fetched)))
	return nil
}

func ledgerImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import OFX/QFX statement files into the ledger",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runLedgerImport,
	}

	return cmd
}

func runLedgerImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	parser := ofx.NewParser()
	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Importing statements..."),
	)

	var imported int
	for _, path := range args {
		transactions, err := importStatement(ctx, parser, path)
		if err != nil {
			_ = bar.Close()
			return fmt.Errorf("importing %s: %w", filepath.Base(path), err)
		}
		if len(transactions) > 0 {
			if err := store.SaveTransactions(ctx, transactions); err != nil {
				_ = bar.Close()
				return fmt.Errorf("saving transactions from %s: %w", filepath.Base(path), err)
			}
			imported += len(transactions)
		}
		_ = bar.Add(1)
	}
	_ = bar.Close()
	fmt.Println()

	count, err := store.GetTransactionCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count ledger: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"Imported %d transactions from %d files (%d total in ledger)",
		imported, len(args), count)))
	return nil
}

func importStatement(ctx context.Context, parser *ofx.Parser, path string) ([]model.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return parser.ParseFile(ctx, f)
}
