// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the papertrail CLI. The serve
// command runs the continuous-import daemon; the remaining commands
// are one-shot operations against the same catalog.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/papertrail/internal/secrets"
	"github.com/pdiddy/papertrail/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback if set, the secret value for key
// otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the papertrail CLI.
var rootCmd = &cobra.Command{
	Use:   "papertrail",
	Short: "Continuous import and cataloging of research papers",
	Long: `papertrail ingests research papers from arXiv into a local catalog,
enriches them with summaries, keywords, and embeddings, and maintains a
relationship graph over the result.

Run "papertrail serve" for continuous import with scheduled tasks and
background backfill, or use ingest, task, and papers for one-shot
operations against the same catalog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./papertrail.yaml or ~/.config/papertrail/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "directory for the catalog database (default \"data\", empty disables persistence)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("papertrail")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "papertrail"))
		}
	}

	viper.SetEnvPrefix("PAPERTRAIL")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig overlays the config file and environment onto defaults.
// Flags that carry their own settings take precedence in the commands
// that define them.
func loadConfig(cmd *cobra.Command) types.Config {
	cfg := types.Defaults()

	overlayDuration(&cfg.Source.Timeout, "source.timeout")
	overlayString(&cfg.Source.UserAgent, "source.user_agent")
	overlayInt(&cfg.Source.MaxResults, "source.max_results")

	overlayDuration(&cfg.Provider.Timeout, "provider.timeout")
	overlayString(&cfg.Provider.GenerateModel, "provider.generate_model")
	overlayString(&cfg.Provider.EmbedModel, "provider.embed_model")
	overlayString(&cfg.Provider.APIKey, "provider.api_key")
	overlayDuration(&cfg.Provider.ProbeInterval, "provider.probe_interval")

	overlayDuration(&cfg.Scheduler.DefaultInterval, "scheduler.default_interval")
	overlayDuration(&cfg.Scheduler.MaxBackoff, "scheduler.max_backoff")
	overlayInt(&cfg.Scheduler.KnownStreak, "scheduler.known_streak")
	overlayFloat(&cfg.Scheduler.SemanticThreshold, "scheduler.semantic_threshold")

	overlayDuration(&cfg.Backfill.Interval, "backfill.interval")
	overlayInt(&cfg.Backfill.BatchSize, "backfill.batch_size")

	overlayFloat(&cfg.Graph.SimilarityThreshold, "graph.similarity_threshold")
	overlayString(&cfg.Store.DataDir, "store.data_dir")

	if cmd.Flags().Changed("data-dir") || rootCmd.PersistentFlags().Changed("data-dir") {
		cfg.Store.DataDir, _ = cmd.Flags().GetString("data-dir")
	}

	cfg.Provider.APIKey = secretDefault("openai-api-key", cfg.Provider.APIKey)
	return cfg
}

func overlayString(dst *string, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetString(key)
	}
}

func overlayInt(dst *int, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetInt(key)
	}
}

func overlayFloat(dst *float64, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetFloat64(key)
	}
}

func overlayDuration(dst *time.Duration, key string) {
	if viper.IsSet(key) {
		*dst = viper.GetDuration(key)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
