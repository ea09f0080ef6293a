// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// TaskState is the run state of an import task.
type TaskState string

const (
	TaskStopped TaskState = "stopped"
	TaskRunning TaskState = "running"
)

// TaskFilter selects which source references an import task matches.
// All set conditions must hold (logical AND); unset conditions match
// everything.
type TaskFilter struct {
	// Category is an arXiv category tag (e.g. "cs.AI").
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Text is a free-text search condition passed to the source.
	Text string `json:"text,omitempty" yaml:"text,omitempty"`

	// Semantic is an embedding-similarity condition: candidates are
	// scored against this query and low scorers are dropped.
	Semantic string `json:"semantic,omitempty" yaml:"semantic,omitempty"`
}

// IsEmpty reports whether the filter has no conditions.
func (f TaskFilter) IsEmpty() bool {
	return f.Category == "" && f.Text == "" && f.Semantic == ""
}

// ImportTask is a continuously running poll job that discovers new
// matching references. The scheduler owns all task state; at most one
// poll is in flight per task at any time.
type ImportTask struct {
	// ID is a generated unique task identifier.
	ID string `json:"id" yaml:"id"`

	// Name is a human-readable label.
	Name string `json:"name" yaml:"name"`

	// Filter selects matching references.
	Filter TaskFilter `json:"filter" yaml:"filter"`

	// Interval is the configured delay between poll ticks. Consecutive
	// source failures stretch the effective delay exponentially up to
	// the scheduler's ceiling; one success restores Interval.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// State is the run state. Tasks are created stopped.
	State TaskState `json:"state" yaml:"state"`

	// Attempted counts ingest attempts across all ticks, including
	// already-known skips.
	Attempted int `json:"attempted" yaml:"attempted"`

	// Imported counts successful ingests across all ticks.
	Imported int `json:"imported" yaml:"imported"`

	// Failures counts consecutive source-query failures; it drives the
	// backoff delay and resets on the first success.
	Failures int `json:"failures" yaml:"failures"`

	// LastRun is when the most recent tick completed.
	LastRun time.Time `json:"last_run" yaml:"last_run"`

	// Created is when the task was created.
	Created time.Time `json:"created" yaml:"created"`
}

// Clone returns a copy of the task so callers never share the
// scheduler's mutable state.
func (t *ImportTask) Clone() *ImportTask {
	c := *t
	return &c
}
