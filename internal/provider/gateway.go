// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"sync"
	"time"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/pkg/types"
)

// Gateway routes enrichment calls to the configured backends and owns
// the availability state. Failed primaries are never retried within a
// call: embedding falls through to the local backend, generation
// degrades to placeholders. Callers always get a usable result.
type Gateway struct {
	generator Generator
	embedder  Embedder
	local     LocalEmbedder
	bus       *bus.Bus
	timeout   time.Duration

	mu    sync.Mutex
	avail Availability
}

// NewGateway wires the gateway. A nil generator or embedder models an
// unconfigured provider and is treated as permanently unavailable
// (the local embedding fallback still works). Availability starts
// pessimistic; call Probe once at startup to initialize it.
func NewGateway(g Generator, e Embedder, b *bus.Bus, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Gateway{generator: g, embedder: e, bus: b, timeout: timeout}
}

// Availability returns the current provider state.
func (gw *Gateway) Availability() Availability {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	return gw.avail
}

// Embed produces a vector for text, tagged with the provider that made
// it. The remote backend is tried only while it is considered
// available; any failure downgrades availability and falls through to
// the local backend, which cannot fail.
func (gw *Gateway) Embed(ctx context.Context, text string) ([]float32, string) {
	if gw.embedder != nil && gw.Availability().Embedding {
		cctx, cancel := context.WithTimeout(ctx, gw.timeout)
		vec, err := gw.embedder.Embed(cctx, text)
		cancel()
		if err == nil {
			gw.reportEmbedding(true)
			return vec, types.EmbeddingProviderRemote
		}
		gw.reportEmbedding(false)
	}

	vec, _ := gw.local.Embed(ctx, text)
	return vec, types.EmbeddingProviderLocal
}

// Generate produces the generated block, or the placeholder block when
// the provider is down or the call fails. There is no fallback text
// generator; degradation is the fallback.
func (gw *Gateway) Generate(ctx context.Context, title, abstract, fullText string) Generated {
	if gw.generator == nil || !gw.Availability().TextGen {
		return PlaceholderGenerated()
	}

	cctx, cancel := context.WithTimeout(ctx, gw.timeout)
	defer cancel()

	gen, err := gw.generator.Generate(cctx, title, abstract, fullText)
	if err != nil {
		gw.reportTextGen(false)
		return PlaceholderGenerated()
	}
	gw.reportTextGen(true)
	return gen
}

// Probe refreshes both availability verdicts with cheap requests. It
// is the only path that can bring a downgraded provider back.
func (gw *Gateway) Probe(ctx context.Context) Availability {
	if gw.embedder != nil {
		cctx, cancel := context.WithTimeout(ctx, gw.timeout)
		gw.reportEmbedding(gw.embedder.Probe(cctx) == nil)
		cancel()
	}
	if gw.generator != nil {
		cctx, cancel := context.WithTimeout(ctx, gw.timeout)
		gw.reportTextGen(gw.generator.Probe(cctx) == nil)
		cancel()
	}
	return gw.Availability()
}

// reportEmbedding records a remote-embedding outcome. Transitions are
// edge-triggered: only a change of verdict publishes an event.
func (gw *Gateway) reportEmbedding(ok bool) {
	gw.mu.Lock()
	changed := gw.avail.Embedding != ok
	gw.avail.Embedding = ok
	gw.mu.Unlock()
	if changed {
		gw.publishChange("embedding", ok)
	}
}

// reportTextGen records a text-generation outcome.
func (gw *Gateway) reportTextGen(ok bool) {
	gw.mu.Lock()
	changed := gw.avail.TextGen != ok
	gw.avail.TextGen = ok
	gw.mu.Unlock()
	if changed {
		gw.publishChange("text_generation", ok)
	}
}

func (gw *Gateway) publishChange(provider string, available bool) {
	if gw.bus == nil {
		return
	}
	gw.bus.Publish(types.NewEvent(types.EventProviderAvailability, map[string]any{
		"provider":  provider,
		"available": available,
	}))
}
