// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/kbctl/internal/backend"
	"github.com/pdiddy/kbctl/pkg/types"
)

// memStore is an in-memory selection.Store.
type memStore struct {
	mu   sync.Mutex
	ix   types.Index
	have bool
}

func (m *memStore) Selection() (types.Index, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ix, m.have, nil
}

func (m *memStore) SaveSelection(ix types.Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ix, m.have = ix, true
	return nil
}

func (m *memStore) ClearSelection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ix, m.have = types.Index{}, false
	return nil
}

// fakeBackend is a scriptable stand-in for the index service.
type fakeBackend struct {
	mu        sync.Mutex
	indexes   []any
	files     []types.Document
	statusSeq []string
	statusIdx int
	fileCalls int
	deleted   []string
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		json.NewEncoder(w).Encode(map[string]any{"indexes": f.indexes})
	})
	mux.HandleFunc("DELETE /indexes/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.deleted = append(f.deleted, r.PathValue("name"))
		io.WriteString(w, `{"message": "Index deleted"}`)
	})
	mux.HandleFunc("GET /indexes/{name}/files", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.fileCalls++
		json.NewEncoder(w).Encode(map[string]any{"files": f.files})
	})
	mux.HandleFunc("POST /indexes/{name}/upload", func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"message": "File uploaded", "pages": 3}`)
	})
	mux.HandleFunc("POST /indexes/{name}/index", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		io.WriteString(w, `{"status": "initiated", "message": "Indexing started in background"}`)
	})
	mux.HandleFunc("GET /indexes/{name}/index/status", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		body := f.statusSeq[len(f.statusSeq)-1]
		if f.statusIdx < len(f.statusSeq) {
			body = f.statusSeq[f.statusIdx]
		}
		f.statusIdx++
		f.mu.Unlock()
		io.WriteString(w, body)
	})
	return mux
}

func (f *fakeBackend) fileCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fileCalls
}

func newSession(t *testing.T, fb *fakeBackend, store *memStore) *Session {
	t.Helper()
	ts := httptest.NewServer(fb.handler())
	t.Cleanup(ts.Close)

	client := backend.New(types.BackendConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "kbctl-test/0.1"},
		BaseURL:    ts.URL,
		MaxRetries: 1,
	})
	s := New(client, store, types.IndexConfig{MaxIndexes: 7, PollInterval: time.Millisecond})
	t.Cleanup(s.Close)
	return s
}

func TestRefreshResolvesSelectionAndActivatesComponents(t *testing.T) {
	fb := &fakeBackend{indexes: []any{"docs", map[string]any{"name": "legal", "is_restricted": true}}}
	store := &memStore{ix: types.Index{Name: "legal", Restricted: true}, have: true}
	s := newSession(t, fb, store)

	require.NoError(t, s.Refresh(context.Background()))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, types.Index{Name: "legal", Restricted: true}, active)

	ingestActive, ok := s.Ingest.Active()
	require.True(t, ok)
	assert.Equal(t, active, ingestActive)
}

func TestRefreshFallsBackWhenPersistedIndexGone(t *testing.T) {
	fb := &fakeBackend{indexes: []any{"beta"}}
	store := &memStore{ix: types.Index{Name: "alpha"}, have: true}
	s := newSession(t, fb, store)

	require.NoError(t, s.Refresh(context.Background()))

	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, types.Index{Name: "beta"}, active)
}

func TestDeleteSelectedClearsPersistedSelection(t *testing.T) {
	fb := &fakeBackend{indexes: []any{"docs", "notes"}}
	store := &memStore{}
	s := newSession(t, fb, store)

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.Select(types.Index{Name: "docs"}))
	_, have, _ := store.Selection()
	require.True(t, have)

	fb.mu.Lock()
	fb.indexes = []any{"notes"}
	fb.mu.Unlock()
	require.NoError(t, s.Registry.Delete(context.Background(), types.Index{Name: "docs"}, nil))

	// Persisted entry is gone and the selection fell back to the list head.
	_, have, _ = store.Selection()
	assert.False(t, have, "persisted selection survived the delete")
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, types.Index{Name: "notes"}, active)
}

func TestSelectionChangePropagatesReset(t *testing.T) {
	fb := &fakeBackend{
		indexes: []any{"docs", "notes"},
		files:   []types.Document{{Filename: "a.pdf", TotalPages: 2}},
	}
	s := newSession(t, fb, &memStore{})

	require.NoError(t, s.Refresh(context.Background()))
	require.NoError(t, s.Ingest.RefreshFiles(context.Background()))
	require.Len(t, s.Ingest.Files(), 1)

	require.NoError(t, s.Select(types.Index{Name: "notes"}))
	assert.Empty(t, s.Ingest.Files(), "stale file list visible after index switch")
	assert.Equal(t, types.JobNotStarted, s.Poller.Snapshot().State)
}

// The end-to-end ingestion flow: upload a document, start the job, poll
// through in_progress to completed.
func TestUploadThenIndexToCompletion(t *testing.T) {
	fb := &fakeBackend{
		indexes: []any{"docs"},
		files:   []types.Document{{Filename: "report.pdf", TotalPages: 3}},
		statusSeq: []string{
			`{"status": "in_progress", "progress": 45}`,
			`{"status": "completed"}`,
		},
	}
	s := newSession(t, fb, &memStore{})
	ctx := context.Background()

	require.NoError(t, s.Refresh(ctx))

	_, err := s.Ingest.Upload(ctx, "report.pdf", strings.NewReader("%PDF-1.4"), false)
	require.NoError(t, err)
	afterUpload := fb.fileCallCount()
	assert.Equal(t, 1, afterUpload, "upload success refreshes the file list once")

	require.NoError(t, s.Poller.Start(ctx))
	snap := s.Poller.Wait(ctx)

	assert.Equal(t, types.JobCompleted, snap.State)
	assert.Equal(t, 100, snap.Progress)
	assert.Equal(t, 1, fb.fileCallCount()-afterUpload, "exactly one post-completion refresh")
}
