// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backfill

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/internal/ingest"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/internal/source"
	"github.com/pdiddy/papertrail/pkg/types"
)

// --- fakes ---

type fakeSource struct{}

func (fakeSource) Search(context.Context, source.Filter, int, int) ([]source.Reference, error) {
	return nil, nil
}

func (fakeSource) Lookup(_ context.Context, id string) (source.Reference, error) {
	return source.Reference{ArxivID: id}, nil
}

func (fakeSource) FetchFullText(context.Context, source.Reference) (string, error) {
	return "", nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) { return f.vec, f.err }
func (f *fakeEmbedder) Probe(context.Context) error                      { return f.err }

type fakeGenerator struct {
	gen provider.Generated
	err error
}

func (f *fakeGenerator) Generate(context.Context, string, string, string) (provider.Generated, error) {
	return f.gen, f.err
}
func (f *fakeGenerator) Probe(context.Context) error { return f.err }

type fixture struct {
	embedder  *fakeEmbedder
	generator *fakeGenerator
	gateway   *provider.Gateway
	store     *catalog.Store
	bus       *bus.Bus
	worker    *Worker
}

func newFixture(t *testing.T, cfg types.BackfillConfig) *fixture {
	t.Helper()

	store, err := catalog.Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	b := bus.New()
	t.Cleanup(b.Close)

	emb := &fakeEmbedder{vec: []float32{1, 0}}
	gen := &fakeGenerator{gen: provider.Generated{
		Summary:  "Backfilled summary.",
		Keywords: []string{"backfilled"},
		Analysis: "Backfilled analysis.",
	}}
	gw := provider.NewGateway(gen, emb, b, time.Second)

	g := graph.New(store, 0.75)
	pipe := ingest.New(fakeSource{}, gw, store, g, b)
	w := New(store, gw, pipe, b, cfg)

	return &fixture{embedder: emb, generator: gen, gateway: gw, store: store, bus: b, worker: w}
}

// degraded stores a paper with placeholder fields and a local vector.
func degraded(t *testing.T, s *catalog.Store, id string) {
	t.Helper()
	err := s.Upsert(&types.Paper{
		ID:                id,
		Title:             "Paper " + id,
		Abstract:          "abstract",
		Summary:           types.PlaceholderSummary,
		Keywords:          []string{types.PlaceholderKeywords},
		Analysis:          types.PlaceholderAnalysis,
		Embedding:         []float32{0.5, 0.5},
		EmbeddingProvider: types.EmbeddingProviderLocal,
	})
	if err != nil {
		t.Fatalf("Upsert(%s) error = %v", id, err)
	}
}

// --- Tick ---

func TestTickNoOpWhileProvidersDown(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	degraded(t, f.store, "2301.00001")

	// Availability is pessimistic before any probe; nothing scans.
	if changed := f.worker.Tick(context.Background()); changed != 0 {
		t.Errorf("Tick() = %d, want 0 with providers down", changed)
	}

	paper, _ := f.store.Get("2301.00001")
	if paper.Summary != types.PlaceholderSummary {
		t.Error("placeholders must survive a down-provider tick")
	}
}

func TestTickRepairsDegradedPapers(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	degraded(t, f.store, "2301.00001")
	f.gateway.Probe(context.Background())

	ch, cancel := f.bus.Subscribe()
	defer cancel()

	if changed := f.worker.Tick(context.Background()); changed != 1 {
		t.Fatalf("Tick() = %d, want 1", changed)
	}

	paper, _ := f.store.Get("2301.00001")
	if paper.HasPlaceholder() {
		t.Error("placeholders should be repaired")
	}
	if paper.Summary != "Backfilled summary." {
		t.Errorf("summary = %q", paper.Summary)
	}
	if paper.EmbeddingProvider != types.EmbeddingProviderRemote {
		t.Errorf("embedding provider = %q, want remote", paper.EmbeddingProvider)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Type != types.EventBackfilled {
				continue
			}
			if e.Payload["paper_id"] != "2301.00001" {
				t.Errorf("payload = %v", e.Payload)
			}
			return
		case <-timeout:
			t.Fatal("no backfilled event")
		}
	}
}

func TestTickConverges(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	degraded(t, f.store, "2301.00001")
	degraded(t, f.store, "2301.00002")
	f.gateway.Probe(context.Background())

	if changed := f.worker.Tick(context.Background()); changed != 2 {
		t.Fatalf("first Tick() = %d, want 2", changed)
	}
	if changed := f.worker.Tick(context.Background()); changed != 0 {
		t.Errorf("second Tick() = %d, want 0 (nothing left to repair)", changed)
	}
	if got := len(f.store.Placeholders()); got != 0 {
		t.Errorf("placeholders remaining = %d, want 0", got)
	}
	if got := len(f.store.LocalEmbeddings()); got != 0 {
		t.Errorf("local embeddings remaining = %d, want 0", got)
	}
}

func TestTickRespectsBatchSize(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{BatchSize: 2})
	for i := 1; i <= 5; i++ {
		degraded(t, f.store, fmt.Sprintf("2301.0000%d", i))
	}
	f.gateway.Probe(context.Background())

	if changed := f.worker.Tick(context.Background()); changed != 2 {
		t.Fatalf("first Tick() = %d, want batch of 2", changed)
	}
	if changed := f.worker.Tick(context.Background()); changed != 2 {
		t.Fatalf("second Tick() = %d, want batch of 2", changed)
	}
	if changed := f.worker.Tick(context.Background()); changed != 1 {
		t.Fatalf("third Tick() = %d, want final 1", changed)
	}
	if got := len(f.store.Placeholders()); got != 0 {
		t.Errorf("placeholders remaining = %d, want 0", got)
	}
}

func TestTickEmbeddingOnlyRecovery(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	f.generator.err = errors.New("text gen still down")

	degraded(t, f.store, "2301.00001")
	f.gateway.Probe(context.Background())

	if changed := f.worker.Tick(context.Background()); changed != 1 {
		t.Fatalf("Tick() = %d, want 1 (embedding upgrade counts)", changed)
	}

	paper, _ := f.store.Get("2301.00001")
	if paper.EmbeddingProvider != types.EmbeddingProviderRemote {
		t.Errorf("embedding provider = %q, want remote", paper.EmbeddingProvider)
	}
	if paper.Summary != types.PlaceholderSummary {
		t.Error("generated fields must stay placeholders while text gen is down")
	}
}

func TestTickMidScanProviderFailure(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	degraded(t, f.store, "2301.00001")
	f.gateway.Probe(context.Background())

	// Both providers fail on the actual calls despite the good probe.
	f.embedder.err = errors.New("flaked")
	f.generator.err = errors.New("flaked")

	if changed := f.worker.Tick(context.Background()); changed != 0 {
		t.Errorf("Tick() = %d, want 0", changed)
	}
	paper, _ := f.store.Get("2301.00001")
	if paper.Summary != types.PlaceholderSummary {
		t.Error("failed repair must leave the sentinel in place")
	}
}

// --- config ---

func TestIntervalDefaults(t *testing.T) {
	f := newFixture(t, types.BackfillConfig{})
	if f.worker.Interval() != 60*time.Second {
		t.Errorf("Interval() = %v, want 60s default", f.worker.Interval())
	}

	w := New(f.store, f.gateway, nil, nil, types.BackfillConfig{Interval: 5 * time.Minute})
	if w.Interval() != 5*time.Minute {
		t.Errorf("Interval() = %v, want 5m", w.Interval())
	}
}
