// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider is the uniform surface for enrichment calls. The
// gateway owns primary/fallback selection and the placeholder policy:
// embedding failures fall through to an always-available local
// backend, text-generation failures degrade to placeholder sentinels,
// and availability transitions are published as events exactly once
// per flip.
package provider

import (
	"context"

	"github.com/pdiddy/papertrail/pkg/types"
)

// Generator produces the generated block for a paper. Each backend
// implements the same capability contract per the Strategy pattern.
type Generator interface {
	Generate(ctx context.Context, title, abstract, fullText string) (Generated, error)
	Probe(ctx context.Context) error
}

// Embedder produces an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Probe(ctx context.Context) error
}

// Generated is the text-generation output for one paper. Fields are
// filled with the placeholder sentinels when the provider is down.
type Generated struct {
	Summary  string
	Keywords []string
	Analysis string
}

// PlaceholderGenerated returns a fully degraded block. The sentinels
// must be persisted verbatim so backfill can find them by equality.
func PlaceholderGenerated() Generated {
	return Generated{
		Summary:  types.PlaceholderSummary,
		Keywords: []string{types.PlaceholderKeywords},
		Analysis: types.PlaceholderAnalysis,
	}
}

// IsPlaceholder reports whether any field of the block is a sentinel.
func (g Generated) IsPlaceholder() bool {
	if g.Summary == types.PlaceholderSummary || g.Analysis == types.PlaceholderAnalysis {
		return true
	}
	return len(g.Keywords) == 1 && g.Keywords[0] == types.PlaceholderKeywords
}

// Availability is the process-wide provider state. It is initialized
// by probing at startup, downgraded opportunistically whenever a real
// call fails, and read before each enrichment attempt.
type Availability struct {
	// Embedding reports whether the remote embedding backend is up.
	// The local fallback is always available regardless.
	Embedding bool `json:"embedding"`

	// TextGen reports whether the text-generation backend is up.
	TextGen bool `json:"text_generation"`
}
