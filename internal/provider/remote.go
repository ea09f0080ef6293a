// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Provider API endpoints. Declared as vars so tests can substitute
// httptest servers.
var (
	generateAPIBase = "https://api.openai.com/v1/chat/completions"
	embedAPIBase    = "https://api.openai.com/v1/embeddings"
	probeAPIBase    = "https://api.openai.com/v1/models"
)

// RemoteGenerator calls a chat-completions API to produce the
// generated block for a paper.
type RemoteGenerator struct {
	Client *http.Client
	Model  string
	APIKey string
}

// generatePrompt asks for all three generated fields in one call so a
// paper costs one request, not three.
const generatePrompt = `Analyze this research paper.

Title: %s

Content:
%s

Respond with JSON only, no code fences:
{
  "summary": "key contributions, methodology, and results in a few sentences",
  "keywords": ["5-10 short canonical keywords"],
  "analysis": "research questions answered and directions for further work"
}`

// chat API JSON structures.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate runs one completion and parses the structured block out of
// the response.
func (g *RemoteGenerator) Generate(ctx context.Context, title, abstract, fullText string) (Generated, error) {
	content := abstract
	if fullText != "" {
		content = clip(fullText, 8000)
	}

	body, err := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "user", Content: fmt.Sprintf(generatePrompt, title, content)},
		},
	})
	if err != nil {
		return Generated{}, fmt.Errorf("encoding request: %w", err)
	}

	var cr chatResponse
	if err := g.post(ctx, generateAPIBase, body, &cr); err != nil {
		return Generated{}, err
	}
	if len(cr.Choices) == 0 {
		return Generated{}, fmt.Errorf("empty completion response")
	}

	return parseGenerated(cr.Choices[0].Message.Content)
}

// Probe checks reachability without spending tokens.
func (g *RemoteGenerator) Probe(ctx context.Context) error {
	return probe(ctx, g.Client, g.APIKey)
}

func (g *RemoteGenerator) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("completion API returned HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing completion response: %w", err)
	}
	return nil
}

// generatedJSON is the wire shape the prompt asks for.
type generatedJSON struct {
	Summary  string   `json:"summary"`
	Keywords []string `json:"keywords"`
	Analysis string   `json:"analysis"`
}

// parseGenerated decodes the model output, tolerating markdown code
// fences around the JSON.
func parseGenerated(raw string) (Generated, error) {
	raw = stripFences(raw)

	var gj generatedJSON
	if err := json.Unmarshal([]byte(raw), &gj); err != nil {
		return Generated{}, fmt.Errorf("parsing generated block: %w", err)
	}
	if gj.Summary == "" {
		return Generated{}, fmt.Errorf("generated block missing summary")
	}

	// Drop anything that looks like an echoed sentinel so a real
	// result can never be mistaken for a placeholder.
	keywords := gj.Keywords[:0]
	for _, k := range gj.Keywords {
		k = strings.TrimSpace(k)
		if k != "" && !strings.HasPrefix(k, "<") {
			keywords = append(keywords, k)
		}
	}

	return Generated{
		Summary:  strings.TrimSpace(gj.Summary),
		Keywords: keywords,
		Analysis: strings.TrimSpace(gj.Analysis),
	}, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// RemoteEmbedder calls an embeddings API.
type RemoteEmbedder struct {
	Client *http.Client
	Model  string
	APIKey string
}

// embeddings API JSON structures.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the remote embedding for text.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, embedAPIBase, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned HTTP %d", resp.StatusCode)
	}

	var er embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	if len(er.Data) == 0 || len(er.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}
	return er.Data[0].Embedding, nil
}

// Probe checks reachability without running inference.
func (e *RemoteEmbedder) Probe(ctx context.Context) error {
	return probe(ctx, e.Client, e.APIKey)
}

// probe issues a cheap metadata request against the provider.
func probe(ctx context.Context, client *http.Client, apiKey string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeAPIBase, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("probe request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
