// internal/model/common.go
// @tag models, data_structure, core
package model

import "fmt"

// Ordering is the native time order an exchange returns funding history in.
type Ordering int

const (
	// Ascending sources put the most recent record last.
	Ascending Ordering = iota
	// Descending sources put the most recent record first.
	Descending
)

func (o Ordering) String() string {
	switch o {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// MonitorTarget is one configured (exchange, instrument) pair.
type MonitorTarget struct {
	Exchange string
	Symbol   string
	Name     string
}

// Key identifies the target in persisted state.
func (t MonitorTarget) Key() string {
	return t.Exchange + "_" + t.Symbol
}
