// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/pdiddy/papertrail/internal/backfill"
	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/internal/ingest"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/internal/scheduler"
	"github.com/pdiddy/papertrail/internal/source"
	"github.com/pdiddy/papertrail/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the continuous-import daemon",
	Long: `Serve runs the papertrail daemon: persisted import tasks resume
polling, the backfill worker retries degraded enrichment on a fixed
schedule, and provider availability is re-probed periodically.
Lifecycle events are logged to stderr. Stop with SIGINT or SIGTERM;
running tasks finish their current poll before shutdown.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)

	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	b := bus.New()
	defer b.Close()

	client := &http.Client{Timeout: cfg.Source.Timeout}
	src := &source.Arxiv{Client: client, Config: cfg.Source}

	var gen provider.Generator
	var emb provider.Embedder
	if cfg.Provider.APIKey != "" {
		gen = &provider.RemoteGenerator{Client: client, Model: cfg.Provider.GenerateModel, APIKey: cfg.Provider.APIKey}
		emb = &provider.RemoteEmbedder{Client: client, Model: cfg.Provider.EmbedModel, APIKey: cfg.Provider.APIKey}
	} else {
		fmt.Fprintln(os.Stderr, "No provider API key configured; running with local embeddings and placeholders")
	}
	gw := provider.NewGateway(gen, emb, b, cfg.Provider.Timeout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	avail := gw.Probe(ctx)
	fmt.Fprintf(os.Stderr, "Provider availability: embedding=%v text_generation=%v\n",
		avail.Embedding, avail.TextGen)

	g := graph.New(store, cfg.Graph.SimilarityThreshold)
	g.Rebuild()
	fmt.Fprintf(os.Stderr, "Catalog loaded: %d papers\n", store.Count())

	pipe := ingest.New(src, gw, store, g, b)

	sched := scheduler.New(src, pipe, gw, store, b, cfg.Scheduler)
	if err := sched.Resume(); err != nil {
		return err
	}

	worker := backfill.New(store, gw, pipe, b, cfg.Backfill)

	events, cancelSub := b.Subscribe()
	defer cancelSub()
	go logEvents(events)

	// Fixed schedules: backfill scans and availability probes. Task
	// polling is not cron-driven because each task's next fire depends
	// on its own backoff state.
	c := cron.New()
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", worker.Interval()), func() { worker.Tick(ctx) }); err != nil {
		return fmt.Errorf("scheduling backfill: %w", err)
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", cfg.Provider.ProbeInterval), func() { gw.Probe(ctx) }); err != nil {
		return fmt.Errorf("scheduling probe: %w", err)
	}
	c.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	fmt.Fprintln(os.Stderr, "Shutting down")

	cronCtx := c.Stop()
	cancel()
	sched.StopAll()
	<-cronCtx.Done()
	return nil
}

// logEvents writes every bus event to stderr until the bus closes.
func logEvents(events <-chan types.Event) {
	for e := range events {
		fmt.Fprintf(os.Stderr, "[%s] %s %v\n", e.Time.Format("15:04:05"), e.Type, e.Payload)
	}
}
