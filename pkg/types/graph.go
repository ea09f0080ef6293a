// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// EdgeReason identifies why two papers are linked.
type EdgeReason string

const (
	EdgeSharedAuthor   EdgeReason = "shared-author"
	EdgeSharedCategory EdgeReason = "shared-category"
	EdgeSimilarity     EdgeReason = "similarity"
)

// GraphNode is a paper's presence in the relationship graph, with
// denormalized display fields so visualization layers need no catalog
// lookup.
type GraphNode struct {
	// ID is the paper ID.
	ID string `json:"id" yaml:"id"`

	// Title is the paper title.
	Title string `json:"title" yaml:"title"`

	// Category is the paper's primary category.
	Category string `json:"category" yaml:"category"`
}

// GraphEdge links two papers for one reason. Edges are undirected in
// meaning and stored once with Source < Target; a pair may carry one
// edge per reason but never two edges with the same reason.
type GraphEdge struct {
	// Source is the lexically smaller paper ID.
	Source string `json:"source" yaml:"source"`

	// Target is the lexically larger paper ID.
	Target string `json:"target" yaml:"target"`

	// Reason is why the papers are linked.
	Reason EdgeReason `json:"reason" yaml:"reason"`

	// Weight is the link strength in [0,1].
	Weight float64 `json:"weight" yaml:"weight"`
}
