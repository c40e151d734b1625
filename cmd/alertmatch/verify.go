package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sentinelpay/alertmatch/internal/cli"
	"github.com/sentinelpay/alertmatch/internal/common"
	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/sentinelpay/alertmatch/internal/reconcile"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [alert text]",
		Short: "Verify one bank alert against the ledger",
		Long: `Runs a single alert through extraction, scoring, and persistence, then
prints the verdict. Alert text is taken from the argument, or from stdin
when no argument is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runVerify,
	}

	cmd.Flags().String("subject", "", "alert email subject")
	cmd.Flags().String("sender", "", "alert sender address")

	return cmd
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var body string
	if len(args) == 1 {
		body = args[0]
	} else {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read alert text from stdin: %w", err)
		}
		body = string(data)
	}
	if strings.TrimSpace(body) == "" {
		return errors.New("alert text is required (argument or stdin)")
	}

	subject, _ := cmd.Flags().GetString("subject")
	sender, _ := cmd.Flags().GetString("sender")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	reconciler := reconcile.New(store)
	outcome, err := reconciler.Reconcile(ctx, model.RawAlert{
		Subject: subject,
		Sender:  sender,
		Body:    body,
	})
	if err != nil {
		if errors.Is(err, common.ErrInsufficientSignal) {
			return errors.New("could not reliably parse an amount or merchant from the alert")
		}
		return err
	}

	printOutcome(outcome)
	return nil
}

func printOutcome(outcome *reconcile.Outcome) {
	result := outcome.Result

	fmt.Println(cli.TitleStyle.Render("Alert verification"))

	status := string(result.Status)
	fmt.Printf("%s %s\n",
		cli.BoldStyle.Render("Verdict:"),
		cli.VerdictStyle(status).Render(strings.ToUpper(status)))

	if result.Best != nil {
		fmt.Printf("%s %.2f\n", cli.BoldStyle.Render("Score:"), result.Best.Score)
	}

	parsed := outcome.Alert.Parsed
	if parsed.Amount != nil {
		currency := ""
		if parsed.Currency != nil {
			currency = " " + *parsed.Currency
		}
		fmt.Printf("%s %.2f%s\n", cli.BoldStyle.Render("Amount:"), *parsed.Amount, currency)
	}
	if parsed.Merchant != nil {
		fmt.Printf("%s %s\n", cli.BoldStyle.Render("Merchant:"), *parsed.Merchant)
	}
	if parsed.Reference != nil {
		fmt.Printf("%s %s\n", cli.BoldStyle.Render("Reference:"), *parsed.Reference)
	}

	switch result.Status {
	case model.StatusMatched:
		tx := result.Best.Transaction
		fmt.Println(cli.FormatSuccess(fmt.Sprintf(
			"Matched transaction %s (%s %.2f %s)",
			tx.ID, tx.Merchant, tx.Amount, tx.Currency)))
	case model.StatusAmbiguous:
		fmt.Println(cli.FormatWarning("Below the confidence threshold; needs review"))
		for i, cand := range result.Ranked {
			if i >= 3 {
				break
			}
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf(
				"  %d. %s  %s %.2f  score %.2f",
				i+1, cand.Transaction.ID, cand.Transaction.Merchant,
				cand.Transaction.Amount, cand.Score)))
		}
	default:
		fmt.Println(cli.FormatError("No ledger transaction matched"))
	}

	fmt.Println(cli.SubtleStyle.Render(
		fmt.Sprintf("alert %s  run %s", outcome.Alert.ID, outcome.RunID)))
}
