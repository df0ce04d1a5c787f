// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection resolves which index is active and keeps that
// choice durable across sessions.
package selection

import (
	"fmt"
	"sync"

	"github.com/pdiddy/kbctl/pkg/types"
)

// Store is the durable home of the persisted selection.
type Store interface {
	Selection() (types.Index, bool, error)
	SaveSelection(ix types.Index) error
	ClearSelection() error
}

// Selector owns the single active index.
type Selector struct {
	store Store

	mu        sync.Mutex
	selected  types.Index
	haveIndex bool
}

// New builds a selector over the given store.
func New(store Store) *Selector {
	return &Selector{store: store}
}

// Selected returns the active index, if any.
func (s *Selector) Selected() (types.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.haveIndex
}

// Resolve reconciles the selection with a freshly fetched list. A live
// selection still present in the list is kept. Otherwise the persisted
// choice is restored when the list contains its identity pair, and the
// first list entry is the fallback; an empty list clears the selection.
// The selection is never left pointing at an entry the list lacks.
func (s *Selector) Resolve(list []types.Index) (types.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveIndex && contains(list, s.selected) {
		return s.selected, true
	}
	s.haveIndex = false
	s.selected = types.Index{}

	if len(list) == 0 {
		return types.Index{}, false
	}

	// Absent, unparsable, or failed reads all fall back to list[0].
	persisted, ok, err := s.store.Selection()
	if err == nil && ok {
		persisted = types.NormalizeRef(persisted)
		if contains(list, persisted) {
			s.selected = persisted
			s.haveIndex = true
			return s.selected, true
		}
	}

	s.selected = list[0]
	s.haveIndex = true
	return s.selected, true
}

// Select makes ix the active index and persists it. Memory and the
// store move together: a failed write leaves the previous selection in
// place.
func (s *Selector) Select(ix types.Index) error {
	ix = types.NormalizeRef(ix)
	if ix.IsZero() {
		return fmt.Errorf("cannot select an unnamed index")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.SaveSelection(ix); err != nil {
		return fmt.Errorf("persisting selection: %w", err)
	}
	s.selected = ix
	s.haveIndex = true
	return nil
}

// Invalidate drops the selection if it matches the deleted pair, both
// in memory and in the store.
func (s *Selector) Invalidate(ix types.Index) error {
	ix = types.NormalizeRef(ix)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.haveIndex || !s.selected.Equal(ix) {
		return nil
	}
	s.selected = types.Index{}
	s.haveIndex = false
	if err := s.store.ClearSelection(); err != nil {
		return fmt.Errorf("clearing persisted selection: %w", err)
	}
	return nil
}

func contains(list []types.Index, ix types.Index) bool {
	for _, entry := range list {
		if entry.Equal(ix) {
			return true
		}
	}
	return false
}
