package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"legalease/internal/acquire"
	"legalease/internal/model"
)

// Tracker launches runs in the background and remembers their latest status.
// Finished runs are forgotten after retention.
type Tracker struct {
	o         *Orchestrator
	retention time.Duration
	logger    *slog.Logger

	mu   sync.RWMutex
	runs map[string]tracked
	wg   sync.WaitGroup
}

type tracked struct {
	status model.RunStatus
	done   time.Time
}

func NewTracker(o *Orchestrator, retention time.Duration, logger *slog.Logger) *Tracker {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Tracker{o: o, retention: retention, logger: logger, runs: make(map[string]tracked)}
}

// Launch claims the owner's slot synchronously and executes the run in the background.
// cleanup, if non-nil, runs after the run reaches a terminal state.
func (t *Tracker) Launch(ctx context.Context, ownerID string, src acquire.Source, cleanup func()) (model.RunStatus, error) {
	run, err := t.o.Begin(ctx, ownerID)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return model.RunStatus{}, err
	}
	initial := run.Status()
	t.store(initial)

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if cleanup != nil {
			defer cleanup()
		}
		res := run.Execute(ctx, src, t.store)
		t.store(res.Status)
	}()
	return initial, nil
}

// Get returns the latest status of runID if it belongs to ownerID.
func (t *Tracker) Get(ownerID, runID string) (model.RunStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.runs[runID]
	if !ok || e.status.OwnerID != ownerID {
		return model.RunStatus{}, false
	}
	return e.status, true
}

// Wait blocks until every launched run has finished.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) store(s model.RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := tracked{status: s}
	if s.Stage.Terminal() {
		e.done = s.UpdatedAt
	}
	t.runs[s.RunID] = e
	t.evictLocked(s.UpdatedAt)
}

func (t *Tracker) evictLocked(now time.Time) {
	for id, e := range t.runs {
		if !e.done.IsZero() && now.Sub(e.done) > t.retention {
			delete(t.runs, id)
			t.logger.Debug("run_evicted", "run_id", id)
		}
	}
}
