package logger

import (
	"sort"
	"sync"
	"sync/atomic"
)

type componentStat struct {
	warns  int64
	errors int64
}

var components sync.Map // map[string]*componentStat

func statFor(component string) *componentStat {
	v, _ := components.LoadOrStore(component, &componentStat{})
	return v.(*componentStat)
}

func recordWarn(component string) {
	atomic.AddInt64(&statFor(component).warns, 1)
}

func recordError(component string) {
	atomic.AddInt64(&statFor(component).errors, 1)
}

// Totals returns the number of warnings and errors logged through Entry so far.
func Totals() (warns, errors int64) {
	components.Range(func(_, v any) bool {
		cs := v.(*componentStat)
		warns += atomic.LoadInt64(&cs.warns)
		errors += atomic.LoadInt64(&cs.errors)
		return true
	})
	return warns, errors
}

// LogReport writes one summary line with per-component warning and error counts.
func LogReport(log *Log) {
	names := make([]string, 0)
	counts := map[string]map[string]int64{}
	components.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*componentStat)
		names = append(names, name)
		counts[name] = map[string]int64{
			"warns":  atomic.LoadInt64(&cs.warns),
			"errors": atomic.LoadInt64(&cs.errors),
		}
		return true
	})
	sort.Strings(names)

	warns, errors := Totals()
	log.WithComponent("report").WithFields(Fields{
		"warns":      warns,
		"errors":     errors,
		"components": counts,
		"names":      names,
	}).Info("run report")
}

func resetReport() {
	components.Range(func(k, _ any) bool {
		components.Delete(k)
		return true
	})
}
