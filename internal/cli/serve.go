package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/contextd/contextd/internal/engine"
	"github.com/contextd/contextd/internal/graph"
	"github.com/contextd/contextd/internal/monitor"
	"github.com/contextd/contextd/internal/privacy"
	"github.com/contextd/contextd/internal/semantic"
	"github.com/contextd/contextd/internal/server"
	"github.com/contextd/contextd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the contextd daemon",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := resolvePaths(&cfg); err != nil {
		return err
	}

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	g := graph.New(cfg.Graph.Path, cfg.Graph.MaxNodes, cfg.Graph.DecayFactor)
	if err := g.Load(); err != nil {
		return fmt.Errorf("load graph: %w", err)
	}

	filter, err := privacy.NewFilter(cfg.Privacy)
	if err != nil {
		return fmt.Errorf("privacy filter: %w", err)
	}

	// Prefer Ollama embeddings; fall back to TF-IDF over indexed texts.
	var emb semantic.Embedder
	if semantic.ProbeOllama(cfg.Embedding.OllamaURL, cfg.Embedding.OllamaModel) {
		emb = semantic.NewOllamaEmbedder(cfg.Embedding.OllamaURL, cfg.Embedding.OllamaModel, 768)
		fmt.Fprintf(os.Stderr, "  embedder: ollama (%s)\n", cfg.Embedding.OllamaModel)
	} else {
		tfidf, err := semantic.NewTFIDFEmbedder(db, cfg.Embedding.MaxTerms)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: tfidf embedder init failed: %v\n", err)
		} else {
			emb = tfidf
			fmt.Fprintf(os.Stderr, "  embedder: tfidf (fallback)\n")
		}
	}
	index := semantic.NewIndex(db, emb)

	eng := engine.New(db, g, index, filter, cfg.Prediction.MinConfidence)
	defer eng.Stop()
	eng.StartMaintenanceTimer(time.Duration(cfg.Graph.MaintenanceInterval) * time.Second)

	// Re-embed documents produced by a different model, off the hot path.
	if emb != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if n, err := index.Reindex(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "reindex: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "  reindexed %d documents\n", n)
			}
		}()
	}

	monCtx, monCancel := context.WithCancel(context.Background())
	defer monCancel()
	if cfg.Monitor.Enabled {
		mon := monitor.New(eng, time.Duration(cfg.Monitor.Interval)*time.Second, cfg.Monitor.TopN)
		mon.Start(monCtx)
		defer mon.Stop()
		fmt.Fprintf(os.Stderr, "  monitor: sampling every %ds\n", cfg.Monitor.Interval)
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "contextd serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "  graph: %s\n", cfg.Graph.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return err
	}
	// Final snapshot so nothing observed since the last cycle is lost.
	return g.Save()
}
