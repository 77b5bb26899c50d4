// Package memory provides in-memory storage implementations for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/Zevik/google-sheets-site-builder/internal/sitedata"
)

// SnapshotStore keeps the latest snapshot per site in process memory.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*sitedata.Snapshot
}

// NewSnapshotStore constructs a SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[string]*sitedata.Snapshot)}
}

// Get returns the stored snapshot or sitedata.ErrCacheMiss.
func (s *SnapshotStore) Get(_ context.Context, siteID string) (*sitedata.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[siteID]
	if !ok {
		return nil, sitedata.ErrCacheMiss
	}
	return snap, nil
}

// Put replaces the snapshot for a site.
func (s *SnapshotStore) Put(_ context.Context, siteID string, snap *sitedata.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[siteID] = snap
	return nil
}

// Invalidate removes the snapshot for a site.
func (s *SnapshotStore) Invalidate(_ context.Context, siteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, siteID)
	return nil
}
