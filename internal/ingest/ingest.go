// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest tracks document uploads and file metadata for the
// active index: one in-flight upload, fetch-to-fetch page-growth
// detection, and a degraded mode for backends without a files endpoint.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pdiddy/kbctl/internal/backend"
	"github.com/pdiddy/kbctl/pkg/types"
)

var (
	// ErrNoActiveIndex means no index is selected.
	ErrNoActiveIndex = errors.New("no active index")

	// ErrUploadInFlight means an upload is already running; the caller
	// should retry after it finishes rather than queue a second one.
	ErrUploadInFlight = errors.New("an upload is already in flight")
)

// Service is the slice of the backend client the controller needs.
type Service interface {
	ListFiles(ctx context.Context, ix types.Index) ([]types.Document, error)
	Upload(ctx context.Context, ix types.Index, filename string, r io.Reader, multimodal bool) (backend.UploadResult, error)
}

// Controller manages uploads and the file list for one active index at
// a time. Switching indexes resets all state synchronously; responses
// belonging to a previous index are fenced out by a generation counter
// and never mutate current state.
type Controller struct {
	svc Service

	mu         sync.Mutex
	active     types.Index
	haveActive bool
	gen        uint64

	files       []types.Document
	pages       map[string]int
	status      string
	fetchFailed bool
	degraded    bool

	uploading      bool
	uploadProgress int
}

// New builds a controller.
func New(svc Service) *Controller {
	return &Controller{svc: svc, pages: make(map[string]int)}
}

// SetActive switches the controller to ix, discarding every trace of
// the previous index before any fetch for the new one can begin.
func (c *Controller) SetActive(ix types.Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.active = types.NormalizeRef(ix)
	c.haveActive = !c.active.IsZero()
}

// ClearActive detaches the controller from any index.
func (c *Controller) ClearActive() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
}

// resetLocked bumps the generation so in-flight responses from the old
// index are discarded on arrival.
func (c *Controller) resetLocked() {
	c.gen++
	c.active = types.Index{}
	c.haveActive = false
	c.files = nil
	c.pages = make(map[string]int)
	c.status = ""
	c.fetchFailed = false
	c.degraded = false
	c.uploading = false
	c.uploadProgress = 0
}

// Active returns the current index, if any.
func (c *Controller) Active() (types.Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.haveActive
}

// Files returns a copy of the last fetched file list.
func (c *Controller) Files() []types.Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Document, len(c.files))
	copy(out, c.files)
	return out
}

// Status is the current user-visible status line.
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Degraded reports whether file listing is unavailable for this index
// session. Once set it stays set until the active index changes.
func (c *Controller) Degraded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.degraded
}

// Uploading reports whether an upload is in flight.
func (c *Controller) Uploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// UploadProgress is 0 while idle or failed, 100 after a completed
// upload.
func (c *Controller) UploadProgress() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploadProgress
}

// Upload sends one document to the active index. Only one upload may
// run at a time; a second call while one is in flight returns
// ErrUploadInFlight without touching the first. On success the file
// list is refreshed; on failure upload state clears so the caller can
// retry. A response that arrives after the active index changed is
// dropped: the upload completes on the wire but leaks nothing into the
// new index's state.
func (c *Controller) Upload(ctx context.Context, filename string, r io.Reader, multimodal bool) (backend.UploadResult, error) {
	c.mu.Lock()
	if !c.haveActive {
		c.mu.Unlock()
		return backend.UploadResult{}, ErrNoActiveIndex
	}
	if c.uploading {
		c.mu.Unlock()
		return backend.UploadResult{}, ErrUploadInFlight
	}
	c.uploading = true
	c.uploadProgress = 0
	c.status = fmt.Sprintf("uploading %s...", filename)
	gen, ix := c.gen, c.active
	c.mu.Unlock()

	result, err := c.svc.Upload(ctx, ix, filename, r, multimodal)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return result, err
	}
	if err != nil {
		c.uploading = false
		c.uploadProgress = 0
		c.status = fmt.Sprintf("upload of %s failed: %v", filename, err)
		c.mu.Unlock()
		return backend.UploadResult{}, err
	}
	c.uploading = false
	c.uploadProgress = 100
	c.status = result.Message
	if result.Pages > 0 {
		c.status = fmt.Sprintf("%s (%d pages)", result.Message, result.Pages)
	}
	c.mu.Unlock()

	// Best effort: the upload already succeeded, a failed refresh only
	// delays the visible file list.
	c.RefreshFiles(ctx)
	return result, nil
}

// RefreshFiles fetches file metadata for the active index and diffs
// page counts against the previous fetch. A 404 flips the controller
// into degraded mode for the rest of the index session; other failures
// clear the list but stay retryable.
func (c *Controller) RefreshFiles(ctx context.Context) error {
	c.mu.Lock()
	if !c.haveActive {
		c.mu.Unlock()
		return ErrNoActiveIndex
	}
	if c.degraded {
		c.mu.Unlock()
		return backend.ErrMissingCapability
	}
	gen, ix := c.gen, c.active
	c.mu.Unlock()

	fetched, err := c.svc.ListFiles(ctx, ix)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}

	if errors.Is(err, backend.ErrMissingCapability) {
		c.degraded = true
		c.files = nil
		c.status = fmt.Sprintf("file listing is not available for index %s; automatic refresh disabled", ix)
		return err
	}
	if err != nil {
		c.files = nil
		c.fetchFailed = true
		c.status = fmt.Sprintf("could not fetch files: %v", err)
		return err
	}

	next := make(map[string]int, len(fetched))
	for i := range fetched {
		doc := &fetched[i]
		prev := c.pages[doc.Filename]
		doc.PreviousPages = prev
		doc.Growing = doc.TotalPages > prev
		next[doc.Filename] = doc.TotalPages
	}
	c.files = fetched
	c.pages = next
	// A recovered fetch clears its own error message but leaves other
	// status lines (e.g. an upload acknowledgement) alone.
	if c.fetchFailed {
		c.fetchFailed = false
		c.status = ""
	}
	return nil
}

// AutoRefresh refreshes the file list on a fixed cadence until the
// context ends or the controller enters degraded mode. Transient
// failures keep the loop running.
func (c *Controller) AutoRefresh(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.RefreshFiles(ctx); errors.Is(err, backend.ErrMissingCapability) || errors.Is(err, ErrNoActiveIndex) {
				return
			}
		}
	}
}
