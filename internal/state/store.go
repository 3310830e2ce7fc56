package state

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fundingwatch/logger"
)

// Backend reads and writes the raw state document. Read returns (nil, nil)
// when no document exists yet.
type Backend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	String() string
}

// Store loads and saves snapshots through a Backend.
type Store struct {
	backend Backend
	log     *logger.Log
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend, log: logger.GetLogger()}
}

// Load returns the persisted snapshot. A missing, unreadable or corrupt
// document yields an empty snapshot; Load never fails.
func (s *Store) Load(ctx context.Context) *Snapshot {
	log := s.log.WithComponent("state_store").WithFields(logger.Fields{"backend": s.backend.String()})

	data, err := s.backend.Read(ctx)
	if err != nil {
		log.WithError(err).Warn("failed to read state, starting empty")
		return NewSnapshot()
	}
	if len(bytes.TrimSpace(data)) == 0 {
		log.Info("no previous state, starting empty")
		return NewSnapshot()
	}

	snap := NewSnapshot()
	if err := json.Unmarshal(data, snap); err != nil {
		log.WithError(err).Warn("state is corrupt, starting empty")
		return NewSnapshot()
	}
	log.WithFields(logger.Fields{
		"entries":  len(snap.Entries),
		"failures": len(snap.Failures),
	}).Debug("state loaded")
	return snap
}

// Save replaces the persisted document with snap.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	start := time.Now()
	log := s.log.WithComponent("state_store").WithFields(logger.Fields{"backend": s.backend.String()})

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	if err := s.backend.Write(ctx, data); err != nil {
		log.WithError(err).Error("failed to save state")
		return fmt.Errorf("write state to %s: %w", s.backend, err)
	}
	logger.LogPerformanceEntry(log, "state_store", "save", time.Since(start), logger.Fields{"bytes": len(data)})
	return nil
}
