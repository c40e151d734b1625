// Package extract turns raw bank-alert text into normalized alert signals.
//
// Each signal (amount, account mask, reference, merchant, date) is parsed by
// an independent pure rule over the text. Extraction never fails: a signal
// the rules cannot find is reported as absent, and absence is meaningful
// input to the scoring engine.
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sentinelpay/alertmatch/internal/model"
	"github.com/shopspring/decimal"
)

var (
	// Currency marker followed by a decimal number with optional thousands
	// separators. The separator-free fallback catches bare amounts with cents.
	currencyAmountRe = regexp.MustCompile(`([Nn]?₦|\bNGN\b|\$|£|€|\bUSD\b|\bEUR\b|\bGBP\b)\s*((?:[0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)(?:\.[0-9]{1,2})?)`)
	bareAmountRe     = regexp.MustCompile(`\b(?:[0-9]{1,3}(?:,[0-9]{3})+|[0-9]+)\.[0-9]{2}\b`)

	maskedAccountRe = regexp.MustCompile(`\*{3,}\s*[0-9]{2,4}`)
	bareAccountRe   = regexp.MustCompile(`\b[0-9]{4}\b`)

	refCodeRe = regexp.MustCompile(`(?i)\bRef(?:erence)?[:\s]*([A-Za-z0-9\-]{4,30})\b`)
	txCodeRe  = regexp.MustCompile(`(?i)\bTx(?:n|nref)?[:\s]*([A-Za-z0-9\-]{4,30})\b`)

	boilerplateRe = regexp.MustCompile(`(?i)\b(?:debit|credit|alert|notice|transaction|txn|ref)\b`)

	isoDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

var currencyCodes = map[string]string{
	"₦": "NGN", "N₦": "NGN", "n₦": "NGN", "NGN": "NGN",
	"$": "USD", "USD": "USD",
	"€": "EUR", "EUR": "EUR",
	"£": "GBP", "GBP": "GBP",
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClock overrides the processing-time clock, used when the alert text
// carries no explicit date. Tests inject a fixed clock for determinism.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// Extractor composes the extraction rules into one call.
type Extractor struct {
	now func() time.Time
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses the subject and body of a raw alert into normalized signals.
// Subject and body are joined with a space, so the leading line the merchant
// rule sees spans the subject and the body's first line.
func (e *Extractor) Extract(subject, body string) model.ParsedAlert {
	text := strings.TrimSpace(subject + " " + body)

	amount, currency := parseAmount(text)
	parsed := model.ParsedAlert{
		Amount:        amount,
		Currency:      currency,
		AccountMasked: parseAccountMask(text),
		Reference:     parseReference(text),
		Merchant:      parseMerchant(text),
	}

	if dt := parseDate(text); dt != nil {
		parsed.ObservedAt = *dt
		parsed.ExplicitDate = true
	} else {
		parsed.ObservedAt = e.now()
	}

	return parsed
}

// parseAmount finds the first currency-marked amount in the text. Amounts
// without a marker are accepted only when they carry cents, so bare years and
// account fragments are not mistaken for money.
func parseAmount(text string) (*float64, *string) {
	var raw string
	var currency *string

	if m := currencyAmountRe.FindStringSubmatch(text); m != nil {
		raw = m[2]
		if code, ok := currencyCodes[m[1]]; ok {
			currency = &code
		}
	} else if m := bareAmountRe.FindString(text); m != "" {
		raw = m
	} else {
		return nil, nil
	}

	raw = strings.ReplaceAll(raw, ",", "")

	// Strict decimal parse first, loose float as fallback.
	if d, err := decimal.NewFromString(raw); err == nil {
		f, _ := d.Float64()
		return &f, currency
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return &f, currency
	}
	return nil, nil
}

// parseAccountMask prefers a masked account form ("***1234") over a bare
// 4-digit group.
func parseAccountMask(text string) *string {
	m := maskedAccountRe.FindString(text)
	if m == "" {
		m = bareAccountRe.FindString(text)
	}
	if m == "" {
		return nil
	}
	mask := strings.ReplaceAll(strings.TrimSpace(m), " ", "")
	return &mask
}

// parseReference tries the Ref label before the Tx label.
func parseReference(text string) *string {
	for _, re := range []*regexp.Regexp{refCodeRe, txCodeRe} {
		if m := re.FindStringSubmatch(text); m != nil {
			return &m[1]
		}
	}
	return nil
}

// parseMerchant takes the first non-empty line, drops boilerplate alert
// keywords, and truncates to 80 characters.
func parseMerchant(text string) *string {
	var line string
	for _, ln := range strings.Split(text, "\n") {
		if strings.TrimSpace(ln) != "" {
			line = strings.TrimSpace(ln)
			break
		}
	}
	if line == "" {
		return nil
	}

	line = boilerplateRe.ReplaceAllString(line, "")
	if runes := []rune(line); len(runes) > 80 {
		line = string(runes[:80])
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return &line
}

// parseDate looks for an explicit ISO date in the text. The result is day
// resolution; the scorer compares it at calendar-day granularity.
func parseDate(text string) *time.Time {
	for _, m := range isoDateRe.FindAllString(text, -1) {
		if dt, err := time.Parse("2006-01-02", m); err == nil {
			dt = dt.UTC()
			return &dt
		}
	}
	return nil
}
