// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog owns all Paper records. It is an in-memory keyed
// store guarded by a single read/write lock, optionally written
// through to a SQLite snapshot so a restart resumes with the same
// catalog. Enrichment writes always go through Upsert; nothing else
// mutates papers.
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/papertrail/pkg/types"
)

const dbFile = "papertrail.db"

// Store holds the paper catalog and persisted import tasks.
type Store struct {
	mu     sync.RWMutex
	papers map[string]*types.Paper

	db *sql.DB // nil when memory-only
}

// Open creates a store backed by dataDir/papertrail.db, creating the
// schema and loading any existing snapshot into memory. An empty
// dataDir gives a memory-only store.
func Open(dataDir string) (*Store, error) {
	s := &Store{papers: make(map[string]*types.Paper)}
	if dataDir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.db = db

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := s.loadPapers(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	return s, nil
}

// Close releases the snapshot database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			authors TEXT,
			categories TEXT,
			primary_category TEXT,
			abstract TEXT,
			full_text TEXT,
			summary TEXT,
			keywords TEXT,
			analysis TEXT,
			embedding TEXT,
			embedding_provider TEXT,
			pdf_url TEXT,
			published TEXT,
			created TEXT,
			updated TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT,
			category TEXT,
			text_filter TEXT,
			semantic TEXT,
			interval_seconds INTEGER,
			state TEXT,
			attempted INTEGER,
			imported INTEGER,
			failures INTEGER,
			last_run TEXT,
			created TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Get returns a copy of the paper with the given ID.
func (s *Store) Get(id string) (*types.Paper, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.papers[id]
	if !ok {
		return nil, false
	}
	return p.Clone(), true
}

// Upsert stores the paper, stamping Created on first insert and
// Updated always, and writes through to the snapshot in the same
// call. Re-upserting an existing ID replaces the record; it never
// creates a second one.
func (s *Store) Upsert(p *types.Paper) error {
	if p.ID == "" {
		return fmt.Errorf("paper has no ID")
	}

	now := time.Now().UTC()
	stored := p.Clone()

	s.mu.Lock()
	if prev, ok := s.papers[p.ID]; ok {
		stored.Created = prev.Created
	} else {
		stored.Created = now
	}
	stored.Updated = now
	s.papers[p.ID] = stored
	s.mu.Unlock()

	// Report timestamps back to the caller's copy.
	p.Created = stored.Created
	p.Updated = stored.Updated

	return s.persistPaper(stored)
}

// All returns copies of every paper, sorted by ID for stable output.
func (s *Store) All() []*types.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()

	papers := make([]*types.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		papers = append(papers, p.Clone())
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].ID < papers[j].ID })
	return papers
}

// Placeholders returns copies of every paper with at least one
// degraded generated field. The scan is O(catalog) by design; the
// backfill worker batches on top of it.
func (s *Store) Placeholders() []*types.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var papers []*types.Paper
	for _, p := range s.papers {
		if p.HasPlaceholder() {
			papers = append(papers, p.Clone())
		}
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].ID < papers[j].ID })
	return papers
}

// LocalEmbeddings returns copies of every paper whose vector came from
// the local fallback backend; these are recomputed once the remote
// embedding provider recovers.
func (s *Store) LocalEmbeddings() []*types.Paper {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var papers []*types.Paper
	for _, p := range s.papers {
		if p.HasLocalEmbedding() {
			papers = append(papers, p.Clone())
		}
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].ID < papers[j].ID })
	return papers
}

// Count returns the number of papers in the catalog.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.papers)
}

func (s *Store) persistPaper(p *types.Paper) error {
	if s.db == nil {
		return nil
	}

	authors, _ := json.Marshal(p.Authors)
	categories, _ := json.Marshal(p.Categories)
	keywords, _ := json.Marshal(p.Keywords)
	embedding, _ := json.Marshal(p.Embedding)

	_, err := s.db.Exec(
		`INSERT INTO papers (id, title, authors, categories, primary_category,
			abstract, full_text, summary, keywords, analysis,
			embedding, embedding_provider, pdf_url, published, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, authors=excluded.authors,
			categories=excluded.categories, primary_category=excluded.primary_category,
			abstract=excluded.abstract, full_text=excluded.full_text,
			summary=excluded.summary, keywords=excluded.keywords,
			analysis=excluded.analysis, embedding=excluded.embedding,
			embedding_provider=excluded.embedding_provider, pdf_url=excluded.pdf_url,
			published=excluded.published, updated=excluded.updated`,
		p.ID, p.Title, string(authors), string(categories), p.PrimaryCategory,
		p.Abstract, p.FullText, p.Summary, string(keywords), p.Analysis,
		string(embedding), p.EmbeddingProvider, p.PDFURL,
		timeString(p.Published), timeString(p.Created), timeString(p.Updated),
	)
	if err != nil {
		return fmt.Errorf("persisting paper %s: %w", p.ID, err)
	}
	return nil
}

func (s *Store) loadPapers() error {
	rows, err := s.db.Query(
		`SELECT id, title, authors, categories, primary_category,
			abstract, full_text, summary, keywords, analysis,
			embedding, embedding_provider, pdf_url, published, created, updated
		 FROM papers`)
	if err != nil {
		return fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p                                    types.Paper
			authors, categories, keywords, embed string
			published, created, updated          string
		)
		if err := rows.Scan(
			&p.ID, &p.Title, &authors, &categories, &p.PrimaryCategory,
			&p.Abstract, &p.FullText, &p.Summary, &keywords, &p.Analysis,
			&embed, &p.EmbeddingProvider, &p.PDFURL, &published, &created, &updated,
		); err != nil {
			return fmt.Errorf("scanning paper row: %w", err)
		}

		json.Unmarshal([]byte(authors), &p.Authors)
		json.Unmarshal([]byte(categories), &p.Categories)
		json.Unmarshal([]byte(keywords), &p.Keywords)
		json.Unmarshal([]byte(embed), &p.Embedding)
		p.Published = parseTime(published)
		p.Created = parseTime(created)
		p.Updated = parseTime(updated)

		s.papers[p.ID] = &p
	}
	return rows.Err()
}

// SaveTask persists an import task record. Memory-only stores drop
// task state on exit; that is acceptable for tests and one-shot runs.
func (s *Store) SaveTask(t *types.ImportTask) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, name, category, text_filter, semantic,
			interval_seconds, state, attempted, imported, failures, last_run, created)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, category=excluded.category,
			text_filter=excluded.text_filter, semantic=excluded.semantic,
			interval_seconds=excluded.interval_seconds, state=excluded.state,
			attempted=excluded.attempted, imported=excluded.imported,
			failures=excluded.failures, last_run=excluded.last_run`,
		t.ID, t.Name, t.Filter.Category, t.Filter.Text, t.Filter.Semantic,
		int64(t.Interval/time.Second), string(t.State),
		t.Attempted, t.Imported, t.Failures,
		timeString(t.LastRun), timeString(t.Created),
	)
	if err != nil {
		return fmt.Errorf("persisting task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask removes a persisted task record.
func (s *Store) DeleteTask(id string) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting task %s: %w", id, err)
	}
	return nil
}

// Tasks returns all persisted import tasks.
func (s *Store) Tasks() ([]*types.ImportTask, error) {
	if s.db == nil {
		return nil, nil
	}

	rows, err := s.db.Query(
		`SELECT id, name, category, text_filter, semantic,
			interval_seconds, state, attempted, imported, failures, last_run, created
		 FROM tasks ORDER BY created`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*types.ImportTask
	for rows.Next() {
		var (
			t                types.ImportTask
			intervalSeconds  int64
			state            string
			lastRun, created string
		)
		if err := rows.Scan(
			&t.ID, &t.Name, &t.Filter.Category, &t.Filter.Text, &t.Filter.Semantic,
			&intervalSeconds, &state, &t.Attempted, &t.Imported, &t.Failures,
			&lastRun, &created,
		); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Interval = time.Duration(intervalSeconds) * time.Second
		t.State = types.TaskState(state)
		t.LastRun = parseTime(lastRun)
		t.Created = parseTime(created)
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

func timeString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
