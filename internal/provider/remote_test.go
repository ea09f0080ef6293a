// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// --- parseGenerated ---

func TestParseGenerated(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantErr  bool
		summary  string
		keywords []string
	}{
		{
			name:     "plain JSON",
			raw:      `{"summary": "s", "keywords": ["a", "b"], "analysis": "x"}`,
			summary:  "s",
			keywords: []string{"a", "b"},
		},
		{
			name:     "json code fence",
			raw:      "```json\n{\"summary\": \"s\", \"keywords\": [\"a\"], \"analysis\": \"x\"}\n```",
			summary:  "s",
			keywords: []string{"a"},
		},
		{
			name:     "bare code fence",
			raw:      "```\n{\"summary\": \"s\", \"keywords\": [], \"analysis\": \"\"}\n```",
			summary:  "s",
			keywords: []string{},
		},
		{
			name:     "echoed sentinel keyword dropped",
			raw:      `{"summary": "s", "keywords": ["<keywords>", "real"], "analysis": "x"}`,
			summary:  "s",
			keywords: []string{"real"},
		},
		{
			name:    "missing summary",
			raw:     `{"summary": "", "keywords": ["a"], "analysis": "x"}`,
			wantErr: true,
		},
		{
			name:    "not JSON",
			raw:     "I could not analyze this paper.",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGenerated(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseGenerated() error = %v", err)
			}
			if got.Summary != tt.summary {
				t.Errorf("summary = %q, want %q", got.Summary, tt.summary)
			}
			if len(got.Keywords) != len(tt.keywords) {
				t.Fatalf("keywords = %v, want %v", got.Keywords, tt.keywords)
			}
			for i := range tt.keywords {
				if got.Keywords[i] != tt.keywords[i] {
					t.Errorf("keywords[%d] = %q, want %q", i, got.Keywords[i], tt.keywords[i])
				}
			}
		})
	}
}

// --- RemoteGenerator ---

func TestRemoteGeneratorGenerate(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{"choices": [{"message": {"role": "assistant",
			"content": "{\"summary\": \"Introduces transformers.\", \"keywords\": [\"attention\"], \"analysis\": \"Opens sequence modeling.\"}"}}]}`)
	}))
	defer ts.Close()

	old := generateAPIBase
	generateAPIBase = ts.URL
	defer func() { generateAPIBase = old }()

	g := &RemoteGenerator{Client: ts.Client(), Model: "test-model", APIKey: "test-key"}
	got, err := g.Generate(context.Background(), "Attention Is All You Need", "abstract", "")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if got.Summary != "Introduces transformers." {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.IsPlaceholder() {
		t.Error("real result flagged as placeholder")
	}
}

func TestRemoteGeneratorHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	old := generateAPIBase
	generateAPIBase = ts.URL
	defer func() { generateAPIBase = old }()

	g := &RemoteGenerator{Client: ts.Client(), Model: "test-model", APIKey: "test-key"}
	if _, err := g.Generate(context.Background(), "t", "a", ""); err == nil {
		t.Error("expected error on HTTP 429")
	}
}

// --- RemoteEmbedder ---

func TestRemoteEmbedderEmbed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`)
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	e := &RemoteEmbedder{Client: ts.Client(), Model: "test-embed", APIKey: "test-key"}
	vec, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("len(vec) = %d, want 3", len(vec))
	}
}

func TestRemoteEmbedderEmptyResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer ts.Close()

	old := embedAPIBase
	embedAPIBase = ts.URL
	defer func() { embedAPIBase = old }()

	e := &RemoteEmbedder{Client: ts.Client(), Model: "test-embed", APIKey: "test-key"}
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error on empty data")
	}
}

// --- probe ---

func TestProbe(t *testing.T) {
	status := http.StatusOK
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	}))
	defer ts.Close()

	old := probeAPIBase
	probeAPIBase = ts.URL
	defer func() { probeAPIBase = old }()

	e := &RemoteEmbedder{Client: ts.Client(), APIKey: "test-key"}
	if err := e.Probe(context.Background()); err != nil {
		t.Errorf("Probe() error = %v", err)
	}

	status = http.StatusUnauthorized
	if err := e.Probe(context.Background()); err == nil {
		t.Error("expected error on HTTP 401")
	}
}
