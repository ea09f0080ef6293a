// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/papertrail/internal/catalog"
	"github.com/pdiddy/papertrail/internal/graph"
	"github.com/pdiddy/papertrail/pkg/types"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Inspect the catalog (list, show, related, export)",
}

// --- list subcommand ---

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cataloged papers",
	RunE:  runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	papers := store.All()
	if len(papers) == 0 {
		fmt.Println("Catalog is empty.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-50s  %-10s  %-10s  %s\n",
		"ID", "Title", "Category", "Embedding", "Enriched")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 100))
	for _, p := range papers {
		title := p.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		enriched := "yes"
		if p.HasPlaceholder() {
			enriched = "pending"
		}
		fmt.Fprintf(os.Stdout, "%-12s  %-50s  %-10s  %-10s  %s\n",
			p.ID, title, p.PrimaryCategory, p.EmbeddingProvider, enriched)
	}
	fmt.Fprintf(os.Stdout, "\n%d papers\n", len(papers))
	return nil
}

// --- show subcommand ---

var papersShowCmd = &cobra.Command{
	Use:   "show [paper-id]",
	Short: "Show one paper as YAML",
	RunE:  runPapersShow,
}

func runPapersShow(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one paper ID")
	}

	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	p, ok := store.Get(args[0])
	if !ok {
		return fmt.Errorf("no paper with ID %q", args[0])
	}

	// Full text and raw vectors drown the useful fields in a terminal.
	p.FullText = ""
	p.Embedding = nil

	out, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	fmt.Print(string(out))
	return nil
}

// --- related subcommand ---

var papersRelatedCmd = &cobra.Command{
	Use:   "related [paper-id]",
	Short: "Show papers related to one paper",
	Long: `Related rebuilds the relationship graph from the catalog and lists the
edges touching the given paper, strongest first.`,
	RunE: runPapersRelated,
}

func runPapersRelated(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("provide exactly one paper ID")
	}
	id := args[0]

	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if _, ok := store.Get(id); !ok {
		return fmt.Errorf("no paper with ID %q", id)
	}

	g := graph.New(store, cfg.Graph.SimilarityThreshold)
	g.Rebuild()

	edges := g.Neighbors(id)
	if len(edges) == 0 {
		fmt.Println("No related papers.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-12s  %-16s  %s\n", "Paper", "Reason", "Weight")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 40))
	for _, e := range edges {
		other := e.Source
		if other == id {
			other = e.Target
		}
		fmt.Fprintf(os.Stdout, "%-12s  %-16s  %.3f\n", other, e.Reason, e.Weight)
	}
	return nil
}

// --- export subcommand ---

var papersExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog and graph to YAML or JSON",
	Long: `Export writes all papers plus the relationship graph to stdout or, with
--output, to a file. Full text is omitted; use the database for that.`,
	RunE: runPapersExport,
}

// exportDoc is the export file layout.
type exportDoc struct {
	Papers []*types.Paper    `json:"papers" yaml:"papers"`
	Nodes  []types.GraphNode `json:"nodes" yaml:"nodes"`
	Edges  []types.GraphEdge `json:"edges" yaml:"edges"`
}

func runPapersExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	cfg := loadConfig(cmd)
	store, err := catalog.Open(cfg.Store.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	g := graph.New(store, cfg.Graph.SimilarityThreshold)
	g.Rebuild()
	nodes, edges := g.Snapshot()

	papers := store.All()
	for _, p := range papers {
		p.FullText = ""
	}
	doc := exportDoc{Papers: papers, Nodes: nodes, Edges: edges}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
}

func init() {
	papersExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	papersExportCmd.Flags().String("output", "", "output file (default stdout)")

	papersCmd.AddCommand(papersListCmd)
	papersCmd.AddCommand(papersShowCmd)
	papersCmd.AddCommand(papersRelatedCmd)
	papersCmd.AddCommand(papersExportCmd)

	rootCmd.AddCommand(papersCmd)
}
