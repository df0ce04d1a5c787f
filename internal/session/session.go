// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session wires the orchestration components together for one
// client session: list refreshes feed the selector, the selected index
// parameterizes the ingestion controller and the job poller, and
// switching indexes resets both.
package session

import (
	"context"
	"sync"

	"github.com/pdiddy/kbctl/internal/backend"
	"github.com/pdiddy/kbctl/internal/indexing"
	"github.com/pdiddy/kbctl/internal/ingest"
	"github.com/pdiddy/kbctl/internal/registry"
	"github.com/pdiddy/kbctl/internal/selection"
	"github.com/pdiddy/kbctl/pkg/types"
)

// Service is the full backend surface a session needs; *backend.Client
// satisfies it.
type Service interface {
	registry.Service
	ingest.Service
	indexing.Service
}

// Session owns one connected set of components.
type Session struct {
	Service  Service
	Registry *registry.Registry
	Selector *selection.Selector
	Ingest   *ingest.Controller
	Poller   *indexing.Poller

	mu     sync.Mutex
	active types.Index
	have   bool
}

// New builds and wires a session over a backend client and the durable
// selection store.
func New(client Service, store selection.Store, cfg types.IndexConfig) *Session {
	s := &Session{
		Service:  client,
		Registry: registry.New(client, cfg.MaxIndexes),
		Selector: selection.New(store),
		Ingest:   ingest.New(client),
	}
	s.Poller = indexing.New(client, cfg.PollInterval, func(ctx context.Context) {
		s.Ingest.RefreshFiles(ctx)
	})
	s.Registry.SetObserver((*observer)(s))
	return s
}

// observer adapts registry notifications onto the selector.
type observer Session

func (o *observer) ListChanged(list []types.Index) {
	s := (*Session)(o)
	ix, ok := s.Selector.Resolve(list)
	s.setActive(ix, ok)
}

func (o *observer) EntryDeleted(ix types.Index) {
	s := (*Session)(o)
	s.Selector.Invalidate(ix)
}

// Refresh fetches the index list; the selector recomputes and the
// active index propagates downstream as a side effect.
func (s *Session) Refresh(ctx context.Context) error {
	return s.Registry.Refresh(ctx)
}

// Select makes ix the active index explicitly and persists the choice.
func (s *Session) Select(ix types.Index) error {
	if err := s.Selector.Select(ix); err != nil {
		return err
	}
	selected, ok := s.Selector.Selected()
	s.setActive(selected, ok)
	return nil
}

// Active returns the current active index, if any.
func (s *Session) Active() (types.Index, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.have
}

// ApplyServiceConfig mirrors server-side restrictions locally.
func (s *Session) ApplyServiceConfig(sc backend.ServiceConfig) {
	s.Registry.SetOperationsRestricted(sc.OperationsRestricted)
}

// Close tears the session down; the poller's loop is cancelled with no
// further observable effects.
func (s *Session) Close() {
	s.Poller.Stop()
}

// setActive propagates a selection change to the ingestion controller
// and the poller. Re-selecting the current index is a no-op: an index
// switch must reset downstream state, staying put must not.
func (s *Session) setActive(ix types.Index, ok bool) {
	s.mu.Lock()
	if s.have == ok && (!ok || s.active.Equal(ix)) {
		s.mu.Unlock()
		return
	}
	s.active = ix
	s.have = ok
	s.mu.Unlock()

	if ok {
		s.Ingest.SetActive(ix)
		s.Poller.SetActive(ix)
	} else {
		s.Ingest.ClearActive()
		s.Poller.SetActive(types.Index{})
	}
}
