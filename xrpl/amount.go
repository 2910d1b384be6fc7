package xrpl

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is a decoded XRPL amount: either native XRP (drops) or an issued
// currency with a decimal value.
type Amount struct {
	Value decimal.Decimal
	Issue Issue
}

// ParseAmount decodes the JSON form of an amount: a plain string of drops
// for XRP, or an object {currency, issuer, value} for issued currencies.
func ParseAmount(v any) (Amount, error) {
	switch a := v.(type) {
	case string:
		d, err := decimal.NewFromString(a)
		if err != nil {
			return Amount{}, fmt.Errorf("invalid drops amount %q: %w", a, err)
		}
		return Amount{Value: d, Issue: XRPIssue()}, nil
	case map[string]any:
		currency, _ := a["currency"].(string)
		issuer, _ := a["issuer"].(string)
		value, ok := a["value"].(string)
		if !ok {
			return Amount{}, fmt.Errorf("issued amount has no value")
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return Amount{}, fmt.Errorf("invalid amount value %q: %w", value, err)
		}
		return Amount{Value: d, Issue: Issue{Currency: currency, Issuer: issuer}}, nil
	default:
		return Amount{}, fmt.Errorf("unexpected amount shape %T", v)
	}
}

// SameIssue reports whether two amounts are denominated alike.
func (a Amount) SameIssue(b Amount) bool {
	return a.Issue == b.Issue
}

// Sub returns a - b. The amounts must share an issue.
func (a Amount) Sub(b Amount) Amount {
	return Amount{Value: a.Value.Sub(b.Value), Issue: a.Issue}
}

// CurrencyKey renders the issue for client-facing book-changes output:
// "XRP_drops" for native, "issuer/currencyHex" otherwise.
func (a Amount) CurrencyKey() string {
	if a.Issue.IsXRP() {
		return "XRP_drops"
	}
	return a.Issue.Issuer + "/" + a.Issue.Currency
}
