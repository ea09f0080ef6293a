// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source talks to the external reference source. The arXiv
// implementation queries the Atom API sorted newest-first; failures
// are transient by contract and absorbed by the callers' backoff, not
// escalated.
package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/papertrail/internal/httputil"
	"github.com/pdiddy/papertrail/pkg/types"
)

// arXiv endpoints. Declared as vars so tests can substitute httptest
// servers.
var (
	arxivAPIBase = "https://export.arxiv.org/api/query"
	arxivAbsBase = "https://export.arxiv.org/abs/"
)

// Reference is one candidate paper returned by the source.
type Reference struct {
	ArxivID         string
	Title           string
	Authors         []string
	Categories      []string
	PrimaryCategory string
	Abstract        string
	PDFURL          string
	Published       time.Time
}

// Filter narrows a source query. Empty fields match everything.
// Semantic conditions are scored by the caller, not the source.
type Filter struct {
	Category string
	Text     string
}

// Source is the boundary to the upstream paper source.
type Source interface {
	// Search returns up to limit references matching the filter, in
	// descending recency order starting at offset.
	Search(ctx context.Context, f Filter, limit, offset int) ([]Reference, error)

	// Lookup fetches one reference by canonical ID.
	Lookup(ctx context.Context, arxivID string) (Reference, error)

	// FetchFullText retrieves the raw text for a reference.
	FetchFullText(ctx context.Context, ref Reference) (string, error)
}

// arxivPattern matches arXiv IDs: "2301.07041", "arXiv:2301.07041",
// "2301.07041v2".
var arxivPattern = regexp.MustCompile(`^(?:arXiv:)?(\d{4}\.\d{4,5})(?:v\d+)?$`)

// NormalizeReference turns an external reference (bare ID, arXiv:
// prefix, or an arxiv.org abs/pdf URL) into the canonical ID, with
// version suffix stripped. It reports false for anything it cannot
// recognize.
func NormalizeReference(ref string) (string, bool) {
	ref = strings.TrimSpace(ref)

	if m := arxivPattern.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if !strings.HasSuffix(u.Host, "arxiv.org") {
		return "", false
	}
	path := strings.TrimPrefix(u.Path, "/abs/")
	path = strings.TrimPrefix(path, "/pdf/")
	path = strings.TrimSuffix(path, ".pdf")
	if m := arxivPattern.FindStringSubmatch(path); m != nil {
		return m[1], true
	}
	return "", false
}

// Arxiv queries the arXiv Atom API.
type Arxiv struct {
	Client *http.Client
	Config types.SourceConfig
}

// Search queries arXiv for the newest references matching the filter.
func (a *Arxiv) Search(ctx context.Context, f Filter, limit, offset int) ([]Reference, error) {
	q := buildQuery(f)
	if q == "" {
		// No conditions: match everything in descending recency.
		q = "all:*"
	}
	if limit <= 0 {
		limit = a.Config.MaxResults
	}
	if limit <= 0 {
		limit = 20
	}

	reqURL := fmt.Sprintf("%s?search_query=%s&start=%d&max_results=%d&sortBy=submittedDate&sortOrder=descending",
		arxivAPIBase, url.QueryEscape(q), offset, limit)

	feed, err := a.fetchFeed(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var refs []Reference
	for _, entry := range feed.Entries {
		if ref, ok := entryToReference(entry); ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// Lookup fetches a single reference by ID via the id_list parameter.
func (a *Arxiv) Lookup(ctx context.Context, arxivID string) (Reference, error) {
	reqURL := fmt.Sprintf("%s?id_list=%s", arxivAPIBase, url.QueryEscape(arxivID))

	feed, err := a.fetchFeed(ctx, reqURL)
	if err != nil {
		return Reference{}, err
	}
	for _, entry := range feed.Entries {
		if ref, ok := entryToReference(entry); ok {
			return ref, nil
		}
	}
	return Reference{}, fmt.Errorf("no entry found for arXiv ID %s", arxivID)
}

// FetchFullText retrieves the abstract page and strips it down to
// plain text. The PDF body itself is out of scope; the abs page text
// is the raw-text representation the catalog stores.
func (a *Arxiv) FetchFullText(ctx context.Context, ref Reference) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, arxivAbsBase+ref.ArxivID, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.Config.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return "", fmt.Errorf("fetching full text: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("full text fetch returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading full text: %w", err)
	}
	return stripTags(string(body)), nil
}

// stripTags reduces an HTML page to whitespace-normalized text. A
// real markup parser is not worth it for text that only feeds the
// enrichment providers.
func stripTags(html string) string {
	var sb strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
			sb.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			sb.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

func (a *Arxiv) fetchFeed(ctx context.Context, reqURL string) (*arxivFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", a.Config.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, a.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &feed, nil
}

// buildQuery constructs the search_query parameter from the filter.
// Conditions are ANDed.
func buildQuery(f Filter) string {
	var parts []string
	if f.Category != "" {
		parts = append(parts, "cat:"+f.Category)
	}
	if f.Text != "" {
		terms := strings.Fields(f.Text)
		parts = append(parts, "all:"+strings.Join(terms, "+"))
	}
	return strings.Join(parts, "+AND+")
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  string          `xml:"published"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
}

func entryToReference(entry arxivEntry) (Reference, bool) {
	id := extractArxivID(entry.ID)
	if id == "" {
		return Reference{}, false
	}

	ref := Reference{
		ArxivID:  id,
		Title:    strings.Join(strings.Fields(entry.Title), " "),
		Abstract: strings.TrimSpace(entry.Summary),
	}
	for _, a := range entry.Authors {
		ref.Authors = append(ref.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range entry.Categories {
		if c.Term != "" {
			ref.Categories = append(ref.Categories, c.Term)
		}
	}
	if len(ref.Categories) > 0 {
		ref.PrimaryCategory = ref.Categories[0]
	}
	for _, l := range entry.Links {
		if l.Title == "pdf" {
			ref.PDFURL = l.Href
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
		ref.Published = t
	}
	return ref, true
}

// extractArxivID pulls the arXiv ID from the entry's <id> URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" → "2301.07041").
func extractArxivID(idURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(idURL, prefix)
	if idx < 0 {
		return ""
	}
	id := idURL[idx+len(prefix):]

	// Strip version suffix (e.g. "v1", "v2").
	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}
