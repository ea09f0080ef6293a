// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalDimension is the vector size of the local fallback embedder.
// It differs from typical remote models on purpose: the two vector
// spaces are unrelated and must never be compared.
const LocalDimension = 256

// LocalEmbedder is the always-available fallback: a deterministic
// hashed bag-of-words embedding computed in process. Quality is far
// below a learned model, but it keeps semantic filtering and
// similarity edges working within its own vector space while the
// remote provider is down.
type LocalEmbedder struct{}

// Embed hashes each token into a fixed-size vector and normalizes to
// unit length. Identical text always yields an identical vector.
func (LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, LocalDimension)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%LocalDimension] += 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Probe always succeeds; the local embedder has no failure mode.
func (LocalEmbedder) Probe(context.Context) error { return nil }

// tokenize lowercases and splits on anything that is not a letter or
// digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
