// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns one external reference into a stored, possibly
// partially degraded, paper record. Provider failures never propagate
// out of an ingest: embeddings fall back to the local backend and
// generated fields degrade to placeholders. Only source failures are
// surfaced, and then nothing is persisted.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/internal/source"
	"github.com/pdiddy/papertrail/pkg/types"
)

// Sentinel errors surfaced to callers. Already-known is a normal skip
// outcome, not a failure; callers must be able to tell the two apart.
var (
	ErrInvalidReference = errors.New("invalid reference")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrAlreadyKnown     = errors.New("paper already known")
	ErrUnknownPaper     = errors.New("unknown paper")
)

// AlreadyKnownError reports a dedup hit and carries the existing ID.
// errors.Is(err, ErrAlreadyKnown) matches it.
type AlreadyKnownError struct {
	ID string
}

func (e *AlreadyKnownError) Error() string {
	return fmt.Sprintf("paper %s already known", e.ID)
}

func (e *AlreadyKnownError) Is(target error) bool {
	return target == ErrAlreadyKnown
}

// Pipeline coordinates fetch, enrichment, storage, graph update, and
// event publication for one reference at a time per paper ID.
type Pipeline struct {
	source  source.Source
	gateway *provider.Gateway
	store   *catalog.Store
	graph   *graph.Engine
	bus     *bus.Bus

	// Per-ID locks serialize ingest/reenrich of the same paper.
	// Entries are never removed; the map is bounded by catalog size.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New wires the pipeline.
func New(src source.Source, gw *provider.Gateway, store *catalog.Store, g *graph.Engine, b *bus.Bus) *Pipeline {
	return &Pipeline{
		source:  src,
		gateway: gw,
		store:   store,
		graph:   g,
		bus:     b,
		locks:   make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) lock(id string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.locks[id]
	if !ok {
		m = &sync.Mutex{}
		p.locks[id] = m
	}
	return m
}

// Ingest normalizes, dedups, fetches, enriches, and stores one
// reference. A known ID returns AlreadyKnownError before any network
// call; continuous import relies on that short-circuit for dedup.
func (p *Pipeline) Ingest(ctx context.Context, reference string) (*types.Paper, error) {
	id, ok := source.NormalizeReference(reference)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}

	m := p.lock(id)
	m.Lock()
	defer m.Unlock()

	if _, known := p.store.Get(id); known {
		return nil, &AlreadyKnownError{ID: id}
	}

	ref, err := p.source.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	fullText, err := p.source.FetchFullText(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	paper := &types.Paper{
		ID:              id,
		Title:           ref.Title,
		Authors:         ref.Authors,
		Categories:      ref.Categories,
		PrimaryCategory: ref.PrimaryCategory,
		Abstract:        ref.Abstract,
		FullText:        fullText,
		PDFURL:          ref.PDFURL,
		Published:       ref.Published,
	}

	p.enrich(ctx, paper, true)

	if err := p.store.Upsert(paper); err != nil {
		return nil, fmt.Errorf("storing paper %s: %w", id, err)
	}
	p.graph.OnPaperChanged(id)

	p.publish(types.EventIngested, map[string]any{
		"paper_id":    paper.ID,
		"title":       paper.Title,
		"placeholder": paper.HasPlaceholder(),
	})
	return paper, nil
}

// Reenrich re-runs enrichment for fields still degraded, skipping
// fetch and metadata entirely. Safe to call when nothing is degraded:
// it returns (false, nil) and writes nothing. This is the path the
// backfill worker uses.
func (p *Pipeline) Reenrich(ctx context.Context, id string) (bool, error) {
	m := p.lock(id)
	m.Lock()
	defer m.Unlock()

	paper, ok := p.store.Get(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPaper, id)
	}
	if !paper.HasPlaceholder() && !paper.HasLocalEmbedding() {
		return false, nil
	}

	changed := p.enrich(ctx, paper, false)
	if !changed {
		return false, nil
	}

	if err := p.store.Upsert(paper); err != nil {
		return false, fmt.Errorf("storing paper %s: %w", id, err)
	}
	p.graph.OnPaperChanged(id)
	return true, nil
}

// enrich fills the embedding and generated fields. On the initial
// pass everything is written; afterwards only degraded fields are
// replaced, and only with non-placeholder results. Returns whether
// anything changed.
func (p *Pipeline) enrich(ctx context.Context, paper *types.Paper, initial bool) bool {
	changed := false

	if initial || paper.Embedding == nil || paper.HasLocalEmbedding() {
		// A local vector is only replaced by a remote one; re-running
		// the local embedder would produce the same vector.
		vec, prov := p.gateway.Embed(ctx, embedText(paper))
		if initial || prov == types.EmbeddingProviderRemote || paper.Embedding == nil {
			if paper.EmbeddingProvider != prov || initial {
				paper.Embedding = vec
				paper.EmbeddingProvider = prov
				changed = true
			}
		}
	}

	if initial || paper.HasPlaceholder() {
		gen := p.gateway.Generate(ctx, paper.Title, paper.Abstract, paper.FullText)
		if initial {
			paper.Summary = gen.Summary
			paper.Keywords = gen.Keywords
			paper.Analysis = gen.Analysis
			changed = true
		} else {
			// Replace only fields that are still sentinels, and only
			// with real content.
			if paper.HasPlaceholderSummary() && gen.Summary != types.PlaceholderSummary {
				paper.Summary = gen.Summary
				changed = true
			}
			if paper.HasPlaceholderKeywords() && !(len(gen.Keywords) == 1 && gen.Keywords[0] == types.PlaceholderKeywords) {
				paper.Keywords = gen.Keywords
				changed = true
			}
			if paper.HasPlaceholderAnalysis() && gen.Analysis != types.PlaceholderAnalysis {
				paper.Analysis = gen.Analysis
				changed = true
			}
		}
	}
	return changed
}

// embedText is the canonical text embedded for a paper: title plus
// abstract. Both providers see the same input so a recompute after a
// provider change stays comparable with fresh ingests.
func embedText(p *types.Paper) string {
	return p.Title + "\n\n" + p.Abstract
}

func (p *Pipeline) publish(eventType string, payload map[string]any) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(types.NewEvent(eventType, payload))
}
