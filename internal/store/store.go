// Package store holds the single in-memory copy of the MTMS state and makes
// every mutation write-through to a snapshot.Adapter.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/dmitrijs2005/mtms/internal/logging"
	"github.com/dmitrijs2005/mtms/internal/metrics"
	"github.com/dmitrijs2005/mtms/internal/models"
	"github.com/dmitrijs2005/mtms/internal/snapshot"
)

// Store serialises writers behind a mutex. A mutation is applied to a
// private clone, saved, and only then published, so readers never observe
// state that failed to persist.
type Store struct {
	mu      sync.RWMutex
	adapter snapshot.Adapter
	state   *models.Snapshot
	log     logging.Logger
	closed  bool
}

// Open loads the initial state from adapter.
func Open(ctx context.Context, adapter snapshot.Adapter, log logging.Logger) (*Store, error) {
	state, err := adapter.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load initial state: %w", err)
	}
	log.Info(ctx, "state loaded", "users", len(state.Users), "transfers", len(state.Transfers))

	return &Store{adapter: adapter, state: state, log: log}, nil
}

// View runs fn against the current state under a read lock. fn must not
// modify or retain the snapshot.
func (s *Store) View(fn func(snap *models.Snapshot) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// Update applies fn to a copy of the state and persists the result. If fn
// or the save fails, the published state is unchanged and the error is
// returned as is.
func (s *Store) Update(ctx context.Context, fn func(snap *models.Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.ErrClosed
	}

	next := s.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	if err := s.save(ctx, next); err != nil {
		return err
	}
	s.state = next
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Close writes the final state and rejects subsequent mutations.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.save(ctx, s.state)
}

func (s *Store) save(ctx context.Context, snap *models.Snapshot) error {
	start := time.Now()
	err := s.adapter.Save(ctx, snap)
	metrics.RecordSave(err, time.Since(start))

	if err != nil {
		s.log.Error(ctx, "snapshot save failed", "error", err)
		if !errors.Is(err, common.ErrPersistence) {
			err = common.Persistence("save snapshot", err)
		}
		return err
	}
	return nil
}
