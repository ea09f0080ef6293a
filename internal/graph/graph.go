// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph maintains the relationship graph over paper IDs.
// Mutation is single-writer: every OnPaperChanged runs under one lock,
// so edge rebuilds for different papers never interleave even though
// the producers are concurrent.
package graph

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/pkg/types"
)

// edgeKey identifies an edge. Source < Target canonically, so an
// undirected pair stores at most one edge per reason.
type edgeKey struct {
	source string
	target string
	reason types.EdgeReason
}

// Engine owns the graph. It only reads papers from the catalog; it
// never writes them.
type Engine struct {
	store     *catalog.Store
	threshold float64

	mu    sync.Mutex
	nodes map[string]types.GraphNode
	edges map[edgeKey]types.GraphEdge
}

// New returns an empty engine. threshold is the minimum cosine
// similarity for a similarity edge; zero or negative uses 0.75.
func New(store *catalog.Store, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = 0.75
	}
	return &Engine{
		store:     store,
		threshold: threshold,
		nodes:     make(map[string]types.GraphNode),
		edges:     make(map[edgeKey]types.GraphEdge),
	}
}

// Rebuild recomputes the whole graph from the catalog. Used at
// startup as the reconciliation pass: a crash between a paper upsert
// and its graph update leaves the graph stale for that paper only
// until this (or its next change) runs.
func (e *Engine) Rebuild() {
	for _, p := range e.store.All() {
		e.OnPaperChanged(p.ID)
	}
}

// OnPaperChanged drops every edge touching the paper and rebuilds
// them against the current catalog. Recomputing from scratch is
// O(catalog) per change but guarantees no stale edge survives a field
// update, e.g. an embedding arriving through backfill. Idempotent and
// safe to call from a reconciliation pass.
func (e *Engine) OnPaperChanged(id string) {
	paper, ok := e.store.Get(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	for k := range e.edges {
		if k.source == id || k.target == id {
			delete(e.edges, k)
		}
	}

	if !ok {
		delete(e.nodes, id)
		return
	}

	e.nodes[id] = types.GraphNode{ID: id, Title: paper.Title, Category: paper.PrimaryCategory}

	for _, other := range e.store.All() {
		if other.ID == id {
			continue
		}
		for _, edge := range relate(paper, other, e.threshold) {
			e.edges[edgeKey{edge.Source, edge.Target, edge.Reason}] = edge
		}
	}
}

// RemovePaper drops the node and all its edges.
func (e *Engine) RemovePaper(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.nodes, id)
	for k := range e.edges {
		if k.source == id || k.target == id {
			delete(e.edges, k)
		}
	}
}

// Neighbors returns every edge touching the paper, strongest first.
func (e *Engine) Neighbors(id string) []types.GraphEdge {
	e.mu.Lock()
	defer e.mu.Unlock()

	var edges []types.GraphEdge
	for k, edge := range e.edges {
		if k.source == id || k.target == id {
			edges = append(edges, edge)
		}
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].Weight > edges[j].Weight })
	return edges
}

// Snapshot returns copies of all nodes and edges for export or
// visualization, in stable order.
func (e *Engine) Snapshot() ([]types.GraphNode, []types.GraphEdge) {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodes := make([]types.GraphNode, 0, len(e.nodes))
	for _, n := range e.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]types.GraphEdge, 0, len(e.edges))
	for _, edge := range e.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Reason < b.Reason
	})
	return nodes, edges
}

// relate computes every edge between two papers: shared authors,
// shared categories, and embedding similarity.
func relate(a, b *types.Paper, threshold float64) []types.GraphEdge {
	src, dst := a.ID, b.ID
	if src > dst {
		src, dst = dst, src
	}

	var edges []types.GraphEdge

	if w := sharedAuthorWeight(a.Authors, b.Authors); w > 0 {
		edges = append(edges, types.GraphEdge{Source: src, Target: dst, Reason: types.EdgeSharedAuthor, Weight: w})
	}
	if w := jaccard(a.Categories, b.Categories); w > 0 {
		edges = append(edges, types.GraphEdge{Source: src, Target: dst, Reason: types.EdgeSharedCategory, Weight: w})
	}

	// Similarity only within one provider's vector space; comparing
	// vectors across providers is meaningless.
	if len(a.Embedding) > 0 && len(b.Embedding) > 0 &&
		a.EmbeddingProvider == b.EmbeddingProvider &&
		len(a.Embedding) == len(b.Embedding) {
		if w := Cosine(a.Embedding, b.Embedding); w >= threshold {
			edges = append(edges, types.GraphEdge{Source: src, Target: dst, Reason: types.EdgeSimilarity, Weight: w})
		}
	}
	return edges
}

// sharedAuthorWeight is |shared| / min(|A|, |B|), matching authors by
// case-insensitive exact name.
func sharedAuthorWeight(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, name := range a {
		set[strings.ToLower(name)] = struct{}{}
	}
	shared := 0
	seen := make(map[string]struct{}, len(b))
	for _, name := range b {
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := set[key]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	min := len(a)
	if len(b) < min {
		min = len(b)
	}
	return float64(shared) / float64(min)
}

// jaccard is |intersection| / |union| over category tags.
func jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	union := len(set)
	inter := 0
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		if _, ok := set[s]; ok {
			inter++
		} else {
			union++
		}
	}
	if inter == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Cosine returns the cosine similarity of two equal-length vectors.
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
