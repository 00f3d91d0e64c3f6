package tapbank

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxAmount is the largest amount a single entry may carry, the keypad's nine digits.
const MaxAmount int64 = 999_999_999

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1_000)
)

// FormatAmount renders amounts the way the card reader display does: $1.5M shows as
// "$1.50M", $2M as "$2M", $1,250 as "$1.25K" and $999 as "$999".
func FormatAmount(amount int64) string {
	d := decimal.NewFromInt(amount)
	switch {
	case amount >= 1_000_000:
		return "$" + strings.TrimSuffix(d.Div(million).StringFixed(2), ".00") + "M"
	case amount >= 1_000:
		return "$" + strings.TrimSuffix(d.Div(thousand).StringFixed(2), ".00") + "K"
	default:
		return fmt.Sprintf("$%d", amount)
	}
}

// ParseAmount accepts a positive whole number up to MaxAmount, optionally with thousands
// separators.
func ParseAmount(raw string) (int64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, ErrInvalidAmount{Input: raw, Reason: "empty"}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount{Input: raw, Reason: "not a whole number"}
	}
	if v <= 0 {
		return 0, ErrInvalidAmount{Input: raw, Reason: "must be greater than zero"}
	}
	if v > MaxAmount {
		return 0, ErrInvalidAmount{Input: raw, Reason: "exceeds 999,999,999"}
	}
	return v, nil
}
