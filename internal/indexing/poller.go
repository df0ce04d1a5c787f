// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package indexing drives the state machine of the backend's
// asynchronous indexing job: start, fixed-interval status polling,
// terminal-state detection, and cancellation on index switch or
// teardown.
package indexing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pdiddy/kbctl/pkg/types"
)

// ErrNoActiveIndex means Start was called without an index set.
var ErrNoActiveIndex = errors.New("no active index")

// DefaultInterval is the polling cadence when none is configured.
const DefaultInterval = 5 * time.Second

// Service is the slice of the backend client the poller needs.
type Service interface {
	StartIndexing(ctx context.Context, ix types.Index) (string, error)
	JobStatus(ctx context.Context, ix types.Index) (types.JobSnapshot, error)
}

// Poller owns at most one polling loop at a time. Starting a new job,
// switching the active index, or Stop cancels the previous loop, and a
// generation counter guarantees a cancelled loop's in-flight response
// produces no further observable effects.
type Poller struct {
	svc         Service
	interval    time.Duration
	onCompleted func(ctx context.Context)

	mu         sync.Mutex
	active     types.Index
	haveActive bool
	gen        uint64

	state    types.JobState
	progress int
	message  string

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a poller. onCompleted, when non-nil, runs exactly once
// after a job reaches Completed (the post-completion file refresh);
// interval <= 0 falls back to DefaultInterval.
func New(svc Service, interval time.Duration, onCompleted func(ctx context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		svc:         svc,
		interval:    interval,
		onCompleted: onCompleted,
		state:       types.JobNotStarted,
	}
}

// SetActive points the poller at a new index, cancelling any running
// loop and resetting the visible job state.
func (p *Poller) SetActive(ix types.Index) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
	p.active = types.NormalizeRef(ix)
	p.haveActive = !p.active.IsZero()
	p.state = types.JobNotStarted
	p.progress = 0
	p.message = ""
}

// Stop cancels any running loop. The job state keeps its last value.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelLocked()
}

// cancelLocked tears down the current loop and bumps the generation so
// its in-flight poll, if any, is discarded on arrival.
func (p *Poller) cancelLocked() {
	p.gen++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Snapshot returns the current job state.
func (p *Poller) Snapshot() types.JobSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.JobSnapshot{State: p.state, Progress: p.progress, Message: p.message}
}

// Start begins a new indexing job and its polling loop. Any previous
// loop is cancelled first. If the begin-indexing request fails the
// poller leaves indexing mode immediately and reports the error.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if !p.haveActive {
		p.mu.Unlock()
		return ErrNoActiveIndex
	}
	p.cancelLocked()
	gen, ix := p.gen, p.active
	p.state = types.JobInProgress
	p.progress = 0
	p.message = ""
	p.mu.Unlock()

	msg, err := p.svc.StartIndexing(ctx, ix)

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return nil
	}
	if err != nil {
		p.state = types.JobNotStarted
		p.progress = 0
		p.message = fmt.Sprintf("could not start indexing: %v", err)
		p.mu.Unlock()
		return err
	}
	p.message = msg

	loopCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	done := make(chan struct{})
	p.done = done
	p.mu.Unlock()

	go func() {
		// Release the context when the loop exits on its own so the
		// chain is not held alive until the next Start.
		defer cancel()
		p.loop(loopCtx, gen, ix, done)
	}()
	return nil
}

// Wait blocks until the current polling loop exits (terminal state,
// poll error, or cancellation) or ctx ends, then returns the snapshot.
// Without a running loop it returns immediately.
func (p *Poller) Wait(ctx context.Context) types.JobSnapshot {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	return p.Snapshot()
}

func (p *Poller) loop(ctx context.Context, gen uint64, ix types.Index, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap, err := p.svc.JobStatus(ctx, ix)
		completed, keepPolling := p.apply(gen, snap, err)
		if completed && p.onCompleted != nil {
			p.onCompleted(ctx)
		}
		if !keepPolling {
			return
		}
	}
}

// apply folds one poll result into the state machine. It reports
// whether the job just completed and whether the loop should continue.
// Results from a superseded generation are dropped wholesale.
func (p *Poller) apply(gen uint64, snap types.JobSnapshot, err error) (completed, keepPolling bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.gen != gen {
		return false, false
	}

	if err != nil {
		// A failed status fetch exits indexing mode; the user can start
		// again once the service is reachable.
		p.state = types.JobNotStarted
		p.message = fmt.Sprintf("could not check indexing status: %v", err)
		p.cancel = nil
		return false, false
	}

	switch snap.State {
	case types.JobCompleted:
		p.state = types.JobCompleted
		p.progress = 100
		p.message = snap.Message
		if p.message == "" {
			p.message = "indexing completed"
		}
		p.cancel = nil
		return true, false

	case types.JobFailed:
		p.state = types.JobFailed
		p.message = "indexing failed"
		if snap.Message != "" {
			p.message = fmt.Sprintf("indexing failed: %s", snap.Message)
		}
		p.cancel = nil
		return false, false

	case types.JobInProgress:
		p.state = types.JobInProgress
		p.progress = snap.Progress
		if snap.Message != "" {
			p.message = snap.Message
		}
		return false, true

	default:
		// The service has not registered the job yet; keep polling
		// without touching progress.
		p.message = "indexing not started yet"
		return false, true
	}
}
