// Package ofx imports bank-exported OFX/QFX statements into the ledger.
package ofx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/sentinelpay/alertmatch/internal/model"
)

// Parser reads OFX/QFX statement files and produces ledger transactions.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocess fixes common formatting issues in bank-exported OFX files.
func (p *Parser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// Mixed-case SEVERITY values break strict parsers.
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style exports sometimes drop the closing angle bracket on a
	// bare tag at end of line.
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file into ledger transactions.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var transactions []model.Transaction
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			transactions = append(transactions, p.statementTransactions(
				stmt.BankTranList,
				string(stmt.BankAcctFrom.AcctID),
				stmt.CurDef.String(),
			)...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			transactions = append(transactions, p.statementTransactions(
				stmt.BankTranList,
				string(stmt.CCAcctFrom.AcctID),
				stmt.CurDef.String(),
			)...)
		}
	}

	slog.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return transactions, nil
}

func (p *Parser) statementTransactions(list *ofxgo.TransactionList, accountID, currency string) []model.Transaction {
	if list == nil {
		return nil
	}

	transactions := make([]model.Transaction, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		transactions = append(transactions, p.convertTransaction(ofxTx, accountID, currency))
	}
	return transactions
}

// convertTransaction maps one OFX transaction onto the ledger model.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, accountID, currency string) model.Transaction {
	// OFX reports debits as negative. The ledger convention is the
	// opposite: charges positive, refunds negative.
	amountFloat, _ := ofxTx.TrnAmt.Float64()
	amount := -amountFloat

	txn := model.Transaction{
		ID:            string(ofxTx.FiTID),
		Timestamp:     ofxTx.DtPosted.Time.UTC(),
		AccountMasked: maskAccount(accountID),
		Merchant:      p.extractMerchant(ofxTx),
		Amount:        amount,
		Currency:      currency,
		IsSimulated:   false,
	}

	// RefNum (or a check number) becomes the reference the scorer can
	// match alert references against.
	ref := string(ofxTx.RefNum)
	if ref == "" {
		ref = string(ofxTx.CheckNum)
	}
	if ref != "" {
		if meta, err := json.Marshal(map[string]string{"reference": ref}); err == nil {
			txn.ReferenceMetadata = string(meta)
		}
	}

	txn.Hash = txn.GenerateHash()
	return txn
}

// extractMerchant gets the cleanest merchant name the statement offers.
func (p *Parser) extractMerchant(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}
	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date fragments.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic to be a
// merchant.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}

// maskAccount keeps only the last four characters of a statement account ID.
func maskAccount(accountID string) string {
	runes := []rune(accountID)
	if len(runes) <= 4 {
		return "***" + accountID
	}
	return "***" + string(runes[len(runes)-4:])
}
