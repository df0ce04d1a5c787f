// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry holds the authoritative client-side list of known
// indexes and performs create and delete against the service.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdiddy/kbctl/pkg/types"
)

var (
	// ErrCapacityExceeded means the list is at the client-side maximum;
	// no create request is sent.
	ErrCapacityExceeded = errors.New("maximum number of indexes reached")

	// ErrInvalidName means the name is empty or too long after
	// normalization.
	ErrInvalidName = errors.New("invalid index name")

	// ErrOperationsRestricted mirrors the service's restricted mode:
	// create and delete are refused without a request.
	ErrOperationsRestricted = errors.New("operation not allowed")

	// ErrAborted means the user declined the delete confirmation.
	ErrAborted = errors.New("delete aborted")
)

// Service is the slice of the backend client the registry needs.
type Service interface {
	ListIndexes(ctx context.Context) ([]types.Index, error)
	CreateIndex(ctx context.Context, ix types.Index) error
	DeleteIndex(ctx context.Context, ix types.Index) error
}

// Observer is notified of list changes. The selector hangs off this to
// recompute the active index.
type Observer interface {
	// ListChanged fires after every in-memory list replacement.
	ListChanged(list []types.Index)

	// EntryDeleted fires after a successful delete, before ListChanged.
	EntryDeleted(ix types.Index)
}

// Registry caches the index list and enforces client-side limits.
type Registry struct {
	svc        Service
	maxIndexes int

	mu         sync.Mutex
	list       []types.Index
	loading    bool
	errMessage string
	restricted bool
	observer   Observer
}

// New builds a registry. maxIndexes <= 0 falls back to 7.
func New(svc Service, maxIndexes int) *Registry {
	if maxIndexes <= 0 {
		maxIndexes = 7
	}
	return &Registry{svc: svc, maxIndexes: maxIndexes}
}

// SetObserver installs the list-change observer. Pass nil to detach.
func (r *Registry) SetObserver(obs Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observer = obs
}

// SetOperationsRestricted toggles the local mirror of the service's
// restricted mode.
func (r *Registry) SetOperationsRestricted(restricted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restricted = restricted
}

// List returns a copy of the current index list.
func (r *Registry) List() []types.Index {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Index, len(r.list))
	copy(out, r.list)
	return out
}

// Loading reports whether a refresh is in flight.
func (r *Registry) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

// ErrorMessage is the current user-visible notice: the capacity notice
// while the list is full, or the last create/delete failure.
func (r *Registry) ErrorMessage() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errMessage
}

// Refresh fetches the full list, normalizes and deduplicates it, and
// replaces the in-memory copy. On failure the previous list is kept;
// the loading flag clears either way.
func (r *Registry) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.loading = true
	r.mu.Unlock()

	fetched, err := r.svc.ListIndexes(ctx)

	r.mu.Lock()
	r.loading = false
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("refreshing index list: %w", err)
	}
	r.replaceLocked(dedupe(fetched))
	obs, list := r.observer, r.snapshotLocked()
	r.mu.Unlock()

	if obs != nil {
		obs.ListChanged(list)
	}
	return nil
}

// Create validates locally, then asks the service to create the index
// and refreshes on success. Capacity and name validation never reach
// the network.
func (r *Registry) Create(ctx context.Context, name string, restricted bool) error {
	name = types.NormalizeName(name)
	if name == "" || len(name) > types.MaxIndexNameLen {
		return ErrInvalidName
	}

	r.mu.Lock()
	if r.restricted {
		r.mu.Unlock()
		return ErrOperationsRestricted
	}
	if len(r.list) >= r.maxIndexes {
		r.mu.Unlock()
		return ErrCapacityExceeded
	}
	r.mu.Unlock()

	if err := r.svc.CreateIndex(ctx, types.Index{Name: name, Restricted: restricted}); err != nil {
		r.mu.Lock()
		r.errMessage = fmt.Sprintf("could not create index %q: %v", name, err)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.errMessage = ""
	r.mu.Unlock()
	return r.Refresh(ctx)
}

// Delete asks confirm before sending anything, then removes the matching
// identity pair from the in-memory list on success. The observer's
// EntryDeleted hook lets the selector drop a selection that pointed at
// the removed entry.
func (r *Registry) Delete(ctx context.Context, ix types.Index, confirm func(types.Index) bool) error {
	ix = types.NormalizeRef(ix)

	r.mu.Lock()
	if r.restricted {
		r.mu.Unlock()
		return ErrOperationsRestricted
	}
	r.mu.Unlock()

	if confirm != nil && !confirm(ix) {
		return ErrAborted
	}

	if err := r.svc.DeleteIndex(ctx, ix); err != nil {
		r.mu.Lock()
		r.errMessage = fmt.Sprintf("could not delete index %q: %v", ix.Name, err)
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	kept := r.list[:0]
	for _, entry := range r.list {
		if !entry.Equal(ix) {
			kept = append(kept, entry)
		}
	}
	r.replaceLocked(kept)
	obs, list := r.observer, r.snapshotLocked()
	r.mu.Unlock()

	if obs != nil {
		obs.EntryDeleted(ix)
		obs.ListChanged(list)
	}
	return nil
}

// AtCapacity reports whether the list has reached the client maximum.
func (r *Registry) AtCapacity() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.list) >= r.maxIndexes
}

// replaceLocked swaps the list and recomputes the capacity notice; this
// runs on every list change regardless of which operation caused it.
func (r *Registry) replaceLocked(list []types.Index) {
	r.list = list
	if len(r.list) >= r.maxIndexes {
		r.errMessage = fmt.Sprintf("maximum number of indexes (%d) reached; delete one to create another", r.maxIndexes)
	} else {
		r.errMessage = ""
	}
}

func (r *Registry) snapshotLocked() []types.Index {
	out := make([]types.Index, len(r.list))
	copy(out, r.list)
	return out
}

// dedupe drops repeated identity pairs, keeping server order.
func dedupe(list []types.Index) []types.Index {
	seen := make(map[types.Index]struct{}, len(list))
	out := list[:0]
	for _, raw := range list {
		ix := types.NormalizeRef(raw)
		if ix.IsZero() {
			continue
		}
		if _, dup := seen[ix]; dup {
			continue
		}
		seen[ix] = struct{}{}
		out = append(out, ix)
	}
	return out
}
