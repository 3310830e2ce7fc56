// Package interval turns funding history into an interval mode.
package interval

import (
	"github.com/shopspring/decimal"

	"fundingwatch/internal/model"
)

var (
	msPerHour = decimal.NewFromInt(3_600_000)

	upper1h = decimal.RequireFromString("1.5")
	upper4h = decimal.NewFromInt(5)
)

// Compute returns the hours between the two most recent funding events,
// rounded half-to-even to one decimal place, and the mark price of the latest event.
// Both are nil when fewer than two records are supplied; price is also nil
// when the latest record carries none.
func Compute(records []model.FundingRecord, ordering model.Ordering) (hours, price *decimal.Decimal) {
	if len(records) < 2 {
		return nil, nil
	}

	var latest, previous model.FundingRecord
	switch ordering {
	case model.Descending:
		latest, previous = records[0], records[1]
	default:
		latest, previous = records[len(records)-1], records[len(records)-2]
	}

	h := decimal.NewFromInt(latest.TimestampMs - previous.TimestampMs).
		DivRound(msPerHour, 8).
		RoundBank(1)
	return &h, latest.MarkPrice
}

// Classify maps an interval length to its mode. The upper bound of each bucket
// is inclusive: 1.5 is 1h and 5 is 4h.
func Classify(hours *decimal.Decimal) (model.IntervalMode, bool) {
	if hours == nil {
		return "", false
	}
	switch {
	case hours.LessThanOrEqual(upper1h):
		return model.Mode1h, true
	case hours.LessThanOrEqual(upper4h):
		return model.Mode4h, true
	default:
		return model.Mode8h, true
	}
}
