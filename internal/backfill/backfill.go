// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backfill retries degraded enrichment. Papers keep their
// placeholder fields and local embeddings until a scan finds the
// responsible provider available again; each scan re-enriches a
// bounded batch so the catalog converges over successive ticks
// instead of stalling the worker on one long pass.
package backfill

import (
	"context"
	"time"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/ingest"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/pkg/types"
)

// Worker scans for degraded papers and re-enriches them.
type Worker struct {
	store    *catalog.Store
	gateway  *provider.Gateway
	pipeline *ingest.Pipeline
	bus      *bus.Bus
	cfg      types.BackfillConfig
}

// New wires the worker. A zero batch size uses 10.
func New(store *catalog.Store, gw *provider.Gateway, pipe *ingest.Pipeline, b *bus.Bus, cfg types.BackfillConfig) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	return &Worker{store: store, gateway: gw, pipeline: pipe, bus: b, cfg: cfg}
}

// Interval is the configured delay between scans, for the caller's
// schedule.
func (w *Worker) Interval() time.Duration {
	return w.cfg.Interval
}

// Tick runs one scan and returns how many papers changed. When no
// provider is available for any candidate the scan is a cheap no-op;
// an unchanged catalog with available providers means there was
// nothing left to repair.
func (w *Worker) Tick(ctx context.Context) int {
	avail := w.gateway.Availability()

	var candidates []*types.Paper
	seen := make(map[string]struct{})
	add := func(papers []*types.Paper) {
		for _, p := range papers {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			candidates = append(candidates, p)
		}
	}

	if avail.TextGen {
		add(w.store.Placeholders())
	}
	if avail.Embedding {
		add(w.store.LocalEmbeddings())
	}
	if len(candidates) > w.cfg.BatchSize {
		candidates = candidates[:w.cfg.BatchSize]
	}

	changed := 0
	for _, p := range candidates {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.pipeline.Reenrich(ctx, p.ID)
		if err != nil || !ok {
			// A mid-scan provider failure leaves the rest of the batch
			// for the next tick.
			continue
		}
		changed++
		w.publish(p.ID)
	}
	return changed
}

func (w *Worker) publish(paperID string) {
	if w.bus == nil {
		return
	}
	w.bus.Publish(types.NewEvent(types.EventBackfilled, map[string]any{
		"paper_id": paperID,
	}))
}
