// Package cli implements the contextd command tree.
package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/contextd/contextd/internal/config"
	"github.com/contextd/contextd/internal/graph"
	"github.com/contextd/contextd/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "contextd",
	Short: "Personal context tracking and prediction",
	Long:  "Contextd records desktop activity, builds a temporal relevance graph, and predicts what you will need next. Single Go binary, local-only data.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.contextd/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recentCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(statsCmd)
}

// loadConfig resolves the config file path and loads it.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			return config.Default(), err
		}
	}
	return config.Load(path)
}

// resolvePaths fills in the database and graph paths from defaults.
func resolvePaths(cfg *config.Config) error {
	if cfg.Database.Path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
		cfg.Database.Path = p
	}
	if cfg.Graph.Path == "" {
		cfg.Graph.Path = filepath.Join(filepath.Dir(cfg.Database.Path), "graph.json")
	}
	return nil
}

// openStores opens the database and loads the graph snapshot for CLI
// commands that query locally instead of going through the server.
func openStores() (*store.DB, *graph.Graph, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, cfg, err
	}
	if err := resolvePaths(&cfg); err != nil {
		return nil, nil, cfg, err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, cfg, fmt.Errorf("open database: %w", err)
	}

	g := graph.New(cfg.Graph.Path, cfg.Graph.MaxNodes, cfg.Graph.DecayFactor)
	if err := g.Load(); err != nil {
		db.Close()
		return nil, nil, cfg, fmt.Errorf("load graph: %w", err)
	}
	return db, g, cfg, nil
}
