// Package state persists the last observed funding interval of every target
// between runs.
package state

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"fundingwatch/internal/model"
)

const failureSuffix = "_error"

// Snapshot is the whole persisted record. Entries is keyed by
// MonitorTarget.Key. Failures holds the keys whose last poll failed and has
// already been reported.
type Snapshot struct {
	Entries  map[string]model.MonitorState
	Failures map[string]bool
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Entries:  make(map[string]model.MonitorState),
		Failures: make(map[string]bool),
	}
}

// stateRecord is the on-disk form of a MonitorState. Updated is kept as a
// string so files written with other timestamp layouts still load.
type stateRecord struct {
	Mode          model.IntervalMode `json:"mode"`
	IntervalHours float64            `json:"interval_hours"`
	Updated       string             `json:"updated"`
}

var updatedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseUpdated(v string) time.Time {
	for _, layout := range updatedLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MarshalJSON writes the flat layout {"<key>": {...}, "<key>_error": true}
// with sorted keys.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(s.Entries)+len(s.Failures))
	for key, st := range s.Entries {
		flat[key] = stateRecord{
			Mode:          st.Mode,
			IntervalHours: st.IntervalHours,
			Updated:       st.Updated.Format(time.RFC3339Nano),
		}
	}
	for key, failed := range s.Failures {
		if failed {
			flat[key+failureSuffix] = true
		}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat layout. Entries whose mode is unknown are
// dropped so the next poll treats them as a first observation.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}
	if flat == nil {
		return fmt.Errorf("state document is not an object")
	}

	*s = *NewSnapshot()
	for key, raw := range flat {
		if strings.HasSuffix(key, failureSuffix) {
			var failed bool
			if err := json.Unmarshal(raw, &failed); err == nil {
				if failed {
					s.Failures[strings.TrimSuffix(key, failureSuffix)] = true
				}
				continue
			}
		}

		var rec stateRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		if !rec.Mode.Valid() {
			continue
		}
		s.Entries[key] = model.MonitorState{
			Mode:          rec.Mode,
			IntervalHours: rec.IntervalHours,
			Updated:       parseUpdated(rec.Updated),
		}
	}
	return nil
}
