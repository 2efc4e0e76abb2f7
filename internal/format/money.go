// Package format renders amounts for display in the configured locale.
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"coinc/internal/core"
)

// symbolAfter lists languages that write the symbol after the number.
var symbolAfter = map[string]bool{
	"bg": true, "cs": true, "da": true, "de": true, "el": true, "es": true,
	"et": true, "fi": true, "fr": true, "hr": true, "hu": true, "it": true,
	"lt": true, "lv": true, "nb": true, "no": true, "pl": true, "pt": true,
	"ro": true, "ru": true, "sk": true, "sl": true, "sv": true, "uk": true,
}

// Money formats decimal amounts as currency strings.
type Money struct {
	symbol  string
	group   string
	decimal string
	after   bool
	spaced  bool
	unit    currency.Unit
}

// NewMoney builds a formatter for a BCP 47 locale and an ISO 4217 currency.
func NewMoney(locale, code string) (*Money, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("parse currency %q: %w", code, err)
	}
	p := message.NewPrinter(tag)
	m := &Money{
		symbol: p.Sprint(currency.NarrowSymbol(unit)),
		unit:   unit,
	}
	m.group, m.decimal = separators(p)

	base, _ := tag.Base()
	region, _ := tag.Region()
	switch {
	case base.String() == "pt" && region.String() == "BR":
		m.spaced = true
	case base.String() == "nl":
		m.spaced = true
	case symbolAfter[base.String()]:
		m.after = true
	}
	return m, nil
}

// separators reads the locale's grouping and decimal marks off a sample.
func separators(p *message.Printer) (group, dec string) {
	sample := p.Sprintf("%.2f", 1234.5)
	i := strings.Index(sample, "234")
	if !strings.HasPrefix(sample, "1") || i < 1 || !strings.HasSuffix(sample, "50") || i+3 > len(sample)-2 {
		return ",", "."
	}
	return sample[1:i], sample[i+3 : len(sample)-2]
}

// MustMoney is NewMoney for values known at compile time.
func MustMoney(locale, code string) *Money {
	m, err := NewMoney(locale, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Currency returns the ISO code.
func (m *Money) Currency() string {
	return m.unit.String()
}

// Format renders d with two decimals, e.g. "$1,234.50", "-$4.50" or
// "1.234,50 €". Digits come from the exact decimal.
func (m *Money) Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	num := groupDigits(intPart, m.group) + m.decimal + frac

	switch {
	case m.after:
		return sign + num + " " + m.symbol
	case m.spaced:
		return sign + m.symbol + " " + num
	default:
		return sign + m.symbol + num
	}
}

func groupDigits(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// Signed renders the amount of t with an explicit sign derived from its type.
func (m *Money) Signed(t core.Transaction) string {
	if t.Type == core.Expense {
		return "-" + m.Format(t.Amount)
	}
	return "+" + m.Format(t.Amount)
}
