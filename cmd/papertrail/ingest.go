// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/papertrail/internal/bus"
	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/internal/ingest"
	"github.com/pdiddy/papertrail/internal/provider"
	"github.com/pdiddy/papertrail/internal/source"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [references...]",
	Short: "Ingest papers by arXiv ID or URL",
	Long: `Ingest fetches each reference (arXiv ID, arXiv: prefix, or an
arxiv.org abs/pdf URL), enriches it, and stores it in the catalog.
Already-known papers are skipped. When the enrichment provider is
unavailable the paper is stored with placeholder fields and a local
embedding; the serve daemon's backfill repairs it later.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("provide one or more references (arXiv IDs or URLs)")
	}

	cfg := loadConfig(cmd)

	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	client := &http.Client{Timeout: cfg.Source.Timeout}
	src := &source.Arxiv{Client: client, Config: cfg.Source}

	var gen provider.Generator
	var emb provider.Embedder
	if cfg.Provider.APIKey != "" {
		gen = &provider.RemoteGenerator{Client: client, Model: cfg.Provider.GenerateModel, APIKey: cfg.Provider.APIKey}
		emb = &provider.RemoteEmbedder{Client: client, Model: cfg.Provider.EmbedModel, APIKey: cfg.Provider.APIKey}
	}

	b := bus.New()
	defer b.Close()

	ctx := context.Background()
	gw := provider.NewGateway(gen, emb, b, cfg.Provider.Timeout)
	gw.Probe(ctx)

	g := graph.New(store, cfg.Graph.SimilarityThreshold)
	g.Rebuild()

	pipe := ingest.New(src, gw, store, g, b)

	failed := 0
	for _, ref := range args {
		paper, err := pipe.Ingest(ctx, ref)
		switch {
		case err == nil:
			status := "ok"
			if paper.HasPlaceholder() {
				status = "ok (placeholders)"
			}
			fmt.Fprintf(os.Stdout, "%-24s  %s  %s\n", ref, status, paper.Title)
		case errors.Is(err, ingest.ErrAlreadyKnown):
			fmt.Fprintf(os.Stdout, "%-24s  skipped (already known)\n", ref)
		default:
			failed++
			fmt.Fprintf(os.Stdout, "%-24s  failed: %v\n", ref, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d paper(s) failed ingestion", failed)
	}
	return nil
}
