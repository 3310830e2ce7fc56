package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IntervalMode is the discretised funding interval of an instrument.
type IntervalMode string

const (
	Mode1h IntervalMode = "1h"
	Mode4h IntervalMode = "4h"
	Mode8h IntervalMode = "8h"
)

// Valid reports whether m is one of the known modes.
func (m IntervalMode) Valid() bool {
	switch m {
	case Mode1h, Mode4h, Mode8h:
		return true
	default:
		return false
	}
}

// FundingRecord is a single funding event as reported by an exchange.
// MarkPrice is nil when the exchange does not publish one.
type FundingRecord struct {
	TimestampMs int64
	MarkPrice   *decimal.Decimal
}

// MonitorState is the last observation persisted for one target.
type MonitorState struct {
	Mode          IntervalMode `json:"mode"`
	IntervalHours float64      `json:"interval_hours"`
	Updated       time.Time    `json:"updated"`
}

// Alert describes an interval change for one target.
type Alert struct {
	Exchange string
	Name     string
	OldMode  IntervalMode
	NewMode  IntervalMode
	At       time.Time
	Price    *decimal.Decimal
}

// Text renders the alert as a Telegram HTML message with the time shown in loc.
func (a Alert) Text(loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚡ <b>%s %s</b>\n", strings.ToUpper(a.Exchange), a.Name)
	fmt.Fprintf(&b, "Funding interval changed: <b>%s → %s</b>\n", a.OldMode, a.NewMode)
	fmt.Fprintf(&b, "Time: %s (%s)", a.At.In(loc).Format("2006-01-02 15:04"), loc.String())
	if a.Price != nil && !a.Price.IsZero() {
		fmt.Fprintf(&b, "\nPrice: $%s", a.Price.StringFixed(2))
	}
	return b.String()
}

// FailureAlert reports that a target could not be polled.
type FailureAlert struct {
	Exchange string
	Name     string
}

func (f FailureAlert) Text() string {
	return fmt.Sprintf("⚠️ <b>%s %s</b>\nFunding history API unreachable, please check", strings.ToUpper(f.Exchange), f.Name)
}
