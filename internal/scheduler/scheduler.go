// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs continuous import tasks. Each running task
// owns one goroutine that polls the source, feeds candidates to the
// ingestion pipeline, and sleeps until the next tick. A task never has
// two polls in flight: the next timer is armed only after the previous
// tick returns.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/internal/ingest"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/internal/source"
	"github.com/pdiddy/papertrail/pkg/types"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskRunning  = errors.New("task already running")
)

// runner tracks one running task goroutine. waitCancel interrupts the
// inter-tick sleep only; an in-flight tick finishes before the
// goroutine observes the stop and exits.
type runner struct {
	waitCancel context.CancelFunc
	done       chan struct{}
}

// Scheduler owns every import task and its run state.
type Scheduler struct {
	source   source.Source
	pipeline *ingest.Pipeline
	gateway  *provider.Gateway
	store    *catalog.Store
	bus      *bus.Bus
	cfg      types.SchedulerConfig

	// rootCtx bounds in-flight ticks; StopAll cancels it at shutdown.
	rootCtx    context.Context
	rootCancel context.CancelFunc

	mu      sync.Mutex
	tasks   map[string]*types.ImportTask
	runners map[string]*runner
}

// New wires the scheduler. Zero config fields fall back to defaults.
func New(src source.Source, pipe *ingest.Pipeline, gw *provider.Gateway, store *catalog.Store, b *bus.Bus, cfg types.SchedulerConfig) *Scheduler {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = 60 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Hour
	}
	if cfg.KnownStreak <= 0 {
		cfg.KnownStreak = 5
	}
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = 0.3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:     src,
		pipeline:   pipe,
		gateway:    gw,
		store:      store,
		bus:        b,
		cfg:        cfg,
		rootCtx:    ctx,
		rootCancel: cancel,
		tasks:      make(map[string]*types.ImportTask),
		runners:    make(map[string]*runner),
	}
}

// Create registers a new task in the stopped state. An interval of
// zero or less uses the configured default.
func (s *Scheduler) Create(name string, filter types.TaskFilter, interval time.Duration) (*types.ImportTask, error) {
	if interval <= 0 {
		interval = s.cfg.DefaultInterval
	}
	t := &types.ImportTask{
		ID:       uuid.NewString(),
		Name:     name,
		Filter:   filter,
		Interval: interval,
		State:    types.TaskStopped,
		Created:  time.Now().UTC(),
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	if err := s.store.SaveTask(t); err != nil {
		return nil, err
	}
	s.publishUpdated(t)
	return t.Clone(), nil
}

// Start begins polling. The first tick runs immediately.
func (s *Scheduler) Start(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	if _, running := s.runners[id]; running {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskRunning, id)
	}

	t.State = types.TaskRunning
	waitCtx, waitCancel := context.WithCancel(context.Background())
	r := &runner{waitCancel: waitCancel, done: make(chan struct{})}
	s.runners[id] = r
	s.mu.Unlock()

	// Persistence failure does not stop the task; the record catches
	// up on the next tick's save.
	_ = s.store.SaveTask(t)
	s.publishUpdated(t)

	go s.run(waitCtx, id, r)
	return nil
}

// Stop halts polling. An in-flight tick is allowed to finish; Stop
// returns once the task goroutine has exited.
func (s *Scheduler) Stop(id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	r, running := s.runners[id]
	if !running {
		s.mu.Unlock()
		return nil
	}
	delete(s.runners, id)
	t.State = types.TaskStopped
	s.mu.Unlock()

	r.waitCancel()
	<-r.done

	if err := s.store.SaveTask(t); err != nil {
		return err
	}
	s.publishUpdated(t)
	return nil
}

// Delete stops the task if it is running, then removes it. Papers it
// imported stay in the catalog.
func (s *Scheduler) Delete(id string) error {
	if err := s.Stop(id); err != nil {
		return err
	}

	s.mu.Lock()
	t := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if err := s.store.DeleteTask(id); err != nil {
		return err
	}
	if t != nil {
		s.publishUpdated(t)
	}
	return nil
}

// Get returns a copy of the task.
func (s *Scheduler) Get(id string) (*types.ImportTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return t.Clone(), nil
}

// List returns copies of all tasks in creation order.
func (s *Scheduler) List() []*types.ImportTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := make([]*types.ImportTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t.Clone())
	}
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].Created.Equal(tasks[j].Created) {
			return tasks[i].Created.Before(tasks[j].Created)
		}
		return tasks[i].ID < tasks[j].ID
	})
	return tasks
}

// Resume loads persisted tasks and restarts the ones that were running
// when the previous process exited.
func (s *Scheduler) Resume() error {
	stored, err := s.store.Tasks()
	if err != nil {
		return fmt.Errorf("loading tasks: %w", err)
	}

	var toStart []string
	s.mu.Lock()
	for _, t := range stored {
		if _, exists := s.tasks[t.ID]; exists {
			continue
		}
		if t.State == types.TaskRunning {
			// Re-enter through Start so the runner bookkeeping holds.
			t.State = types.TaskStopped
			toStart = append(toStart, t.ID)
		}
		s.tasks[t.ID] = t
	}
	s.mu.Unlock()

	for _, id := range toStart {
		if err := s.Start(id); err != nil {
			return err
		}
	}
	return nil
}

// StopAll cancels in-flight ticks and waits for every task goroutine
// to exit. Task states are left as persisted so Resume restarts them.
func (s *Scheduler) StopAll() {
	s.rootCancel()

	s.mu.Lock()
	runners := make([]*runner, 0, len(s.runners))
	for id, r := range s.runners {
		runners = append(runners, r)
		delete(s.runners, id)
	}
	s.mu.Unlock()

	for _, r := range runners {
		r.waitCancel()
		<-r.done
	}
}

// run is the per-task loop: tick, then sleep for the effective delay.
// waitCtx only guards the sleep, so a stop never interrupts a tick
// midway through ingesting a candidate.
func (s *Scheduler) run(waitCtx context.Context, id string, r *runner) {
	defer close(r.done)

	for {
		s.tick(s.rootCtx, id)

		delay, ok := s.nextDelay(id)
		if !ok {
			return
		}

		timer := time.NewTimer(delay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// nextDelay computes the wait before the next tick: the configured
// interval stretched by 2^failures and capped at MaxBackoff. ok is
// false when the task no longer exists.
func (s *Scheduler) nextDelay(id string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return 0, false
	}
	delay := t.Interval
	for i := 0; i < t.Failures; i++ {
		delay *= 2
		if delay >= s.cfg.MaxBackoff {
			return s.cfg.MaxBackoff, true
		}
	}
	if delay > s.cfg.MaxBackoff {
		delay = s.cfg.MaxBackoff
	}
	return delay, true
}

// tick runs one poll for the task: query the source newest-first,
// filter, and ingest until the page is exhausted or a streak of
// already-known papers shows the rest of the page has been seen.
func (s *Scheduler) tick(ctx context.Context, id string) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	filter := t.Filter
	s.mu.Unlock()

	refs, err := s.source.Search(ctx, source.Filter{Category: filter.Category, Text: filter.Text}, 0, 0)
	if err != nil {
		s.recordOutcome(id, 0, 0, false)
		return
	}

	refs = s.semanticFilter(ctx, filter.Semantic, refs)

	attempted, imported, knownStreak := 0, 0, 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		attempted++
		_, err := s.pipeline.Ingest(ctx, ref.ArxivID)
		switch {
		case err == nil:
			imported++
			knownStreak = 0
		case errors.Is(err, ingest.ErrAlreadyKnown):
			knownStreak++
			if knownStreak >= s.cfg.KnownStreak {
				// Newest-first ordering: a run of known papers means
				// everything after them was seen on an earlier tick.
				s.recordOutcome(id, attempted, imported, true)
				return
			}
		default:
			// A failed candidate does not fail the tick; the next
			// tick retries it if it is still in the window.
			knownStreak = 0
		}
	}
	s.recordOutcome(id, attempted, imported, true)
}

// semanticFilter drops candidates scoring below the threshold against
// the task's semantic query. An empty query passes everything through.
func (s *Scheduler) semanticFilter(ctx context.Context, query string, refs []source.Reference) []source.Reference {
	if query == "" || len(refs) == 0 {
		return refs
	}

	queryVec, queryProv := s.gateway.Embed(ctx, query)

	kept := refs[:0]
	for _, ref := range refs {
		vec, prov := s.gateway.Embed(ctx, ref.Title+"\n\n"+ref.Abstract)
		if prov != queryProv || len(vec) != len(queryVec) {
			// Scores across provider vector spaces are meaningless;
			// pass the candidate rather than drop it on bad data.
			kept = append(kept, ref)
			continue
		}
		if graph.Cosine(queryVec, vec) >= s.cfg.SemanticThreshold {
			kept = append(kept, ref)
		}
	}
	return kept
}

// recordOutcome folds one tick's result into the task counters,
// persists the record, and publishes the tick event.
func (s *Scheduler) recordOutcome(id string, attempted, imported int, sourceOK bool) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if sourceOK {
		t.Failures = 0
	} else {
		t.Failures++
	}
	t.Attempted += attempted
	t.Imported += imported
	t.LastRun = time.Now().UTC()
	snapshot := t.Clone()
	s.mu.Unlock()

	_ = s.store.SaveTask(snapshot)
	s.publish(types.EventTaskTick, map[string]any{
		"task_id":   snapshot.ID,
		"attempted": attempted,
		"imported":  imported,
		"failures":  snapshot.Failures,
	})
}

func (s *Scheduler) publishUpdated(t *types.ImportTask) {
	s.publish(types.EventTaskUpdated, map[string]any{
		"task_id": t.ID,
		"state":   string(t.State),
	})
}

func (s *Scheduler) publish(eventType string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(types.NewEvent(eventType, payload))
}
