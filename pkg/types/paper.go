// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Placeholder sentinels stored verbatim in generated fields when the
// text-generation provider is unavailable. Backfill finds degraded
// records by direct equality against these values.
const (
	PlaceholderSummary  = "<summary>"
	PlaceholderKeywords = "<keywords>"
	PlaceholderAnalysis = "<analysis>"
)

// Embedding provider tags. Vectors from different providers live in
// different vector spaces and must never be compared to each other.
const (
	EmbeddingProviderRemote = "remote"
	EmbeddingProviderLocal  = "local"
)

// Paper is a cataloged research paper. The arXiv ID is the canonical
// identity: re-ingesting the same ID updates the record, never
// duplicates it.
type Paper struct {
	// ID is the canonical arXiv identifier (e.g. "2301.07041").
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Categories are the arXiv category tags (e.g. "cs.AI").
	Categories []string `json:"categories" yaml:"categories"`

	// PrimaryCategory is the first category reported by the source.
	PrimaryCategory string `json:"primary_category" yaml:"primary_category"`

	// Abstract is the paper abstract as returned by the source.
	Abstract string `json:"abstract" yaml:"abstract"`

	// FullText is the raw text fetched from the source at ingest time.
	FullText string `json:"full_text,omitempty" yaml:"full_text,omitempty"`

	// Summary is the generated summary, or PlaceholderSummary when the
	// text-generation provider was unavailable.
	Summary string `json:"summary" yaml:"summary"`

	// Keywords are the generated keywords, or a single
	// PlaceholderKeywords entry when degraded.
	Keywords []string `json:"keywords" yaml:"keywords"`

	// Analysis is the generated extended analysis, or
	// PlaceholderAnalysis when degraded.
	Analysis string `json:"analysis" yaml:"analysis"`

	// Embedding is the embedding vector, nil until computed.
	Embedding []float32 `json:"embedding,omitempty" yaml:"embedding,omitempty"`

	// EmbeddingProvider records which backend produced Embedding
	// (EmbeddingProviderRemote or EmbeddingProviderLocal). Similarity
	// is only meaningful between vectors from the same provider.
	EmbeddingProvider string `json:"embedding_provider,omitempty" yaml:"embedding_provider,omitempty"`

	// PDFURL is the source's PDF link for the paper.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// Published is the publication or preprint date.
	Published time.Time `json:"published" yaml:"published"`

	// Created is when the record was first stored.
	Created time.Time `json:"created" yaml:"created"`

	// Updated is when the record was last written.
	Updated time.Time `json:"updated" yaml:"updated"`
}

// HasPlaceholderSummary reports whether the summary is degraded.
func (p *Paper) HasPlaceholderSummary() bool {
	return p.Summary == PlaceholderSummary
}

// HasPlaceholderKeywords reports whether the keywords are degraded.
func (p *Paper) HasPlaceholderKeywords() bool {
	return len(p.Keywords) == 1 && p.Keywords[0] == PlaceholderKeywords
}

// HasPlaceholderAnalysis reports whether the analysis is degraded.
func (p *Paper) HasPlaceholderAnalysis() bool {
	return p.Analysis == PlaceholderAnalysis
}

// HasPlaceholder reports whether any generated field is degraded.
// A paper with placeholders is a normal, displayable record; the
// placeholders mark it as a backfill candidate, not an error state.
func (p *Paper) HasPlaceholder() bool {
	return p.HasPlaceholderSummary() || p.HasPlaceholderKeywords() || p.HasPlaceholderAnalysis()
}

// HasLocalEmbedding reports whether the embedding came from the local
// fallback backend and should be recomputed once the remote provider
// recovers.
func (p *Paper) HasLocalEmbedding() bool {
	return len(p.Embedding) > 0 && p.EmbeddingProvider == EmbeddingProviderLocal
}

// Clone returns a deep copy of the paper. The catalog hands out clones
// so callers can never mutate stored records in place.
func (p *Paper) Clone() *Paper {
	c := *p
	c.Authors = append([]string(nil), p.Authors...)
	c.Categories = append([]string(nil), p.Categories...)
	c.Keywords = append([]string(nil), p.Keywords...)
	c.Embedding = append([]float32(nil), p.Embedding...)
	return &c
}
