// Package memstore is an in-memory hostiface.Storage, used by tests and by
// single-process demos that don't need restart durability.
package memstore

import (
	"sync"

	solid "github.com/polybase-io/solid/consensus/solid"
	"github.com/polybase-io/solid/hostiface"
)

type entry struct {
	hash solid.Hash
	m    solid.ProposalManifest
}

type Store struct {
	mu      sync.RWMutex
	byH     map[uint64]entry
	highest uint64
}

var _ hostiface.Storage = (*Store)(nil)

func New() *Store {
	return &Store{byH: make(map[uint64]entry)}
}

func (s *Store) PutConfirmed(height uint64, hash solid.Hash, m solid.ProposalManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byH[height] = entry{hash: hash, m: m}
	if height > s.highest {
		s.highest = height
	}
	return nil
}

func (s *Store) GetConfirmed(height uint64) (solid.ProposalManifest, solid.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byH[height]
	if !ok {
		return solid.ProposalManifest{}, solid.Hash{}, false, nil
	}
	return e.m, e.hash, true, nil
}

func (s *Store) LastConfirmed() (solid.Confirmed, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.byH[s.highest]
	if !ok {
		return solid.Confirmed{}, nil
	}
	return solid.Confirmed{Hash: e.hash, Height: s.highest}, nil
}

func (s *Store) Close() error { return nil }
