package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/contextd/contextd/internal/engine"
	"github.com/contextd/contextd/internal/predict"
	"github.com/contextd/contextd/internal/privacy"
	"github.com/contextd/contextd/internal/semantic"
)

func init() {
	recentCmd.Flags().IntVarP(&recentLimit, "limit", "n", 20, "Maximum number of activities")
	recentCmd.Flags().Float64Var(&recentHours, "hours", 24, "How far back to look, in hours")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of results")
	searchCmd.Flags().Float64Var(&searchFloor, "floor", 0.3, "Minimum similarity")

	predictCmd.Flags().StringVar(&predictID, "id", "", "Graph node id of the current activity")
	predictCmd.Flags().StringVar(&predictApp, "app", "", "Current application name")
	predictCmd.Flags().StringVar(&predictWindow, "window", "", "Current window title")
	predictCmd.Flags().StringVar(&predictFile, "file", "", "Current file path")
	predictCmd.Flags().StringVar(&predictURL, "url", "", "Current URL")
	predictCmd.Flags().IntVar(&predictMax, "max", 10, "Maximum number of predictions")

	relatedCmd.Flags().IntVar(&relatedDepth, "depth", 2, "Traversal depth")
	relatedCmd.Flags().Float64Var(&relatedMin, "min-strength", 0.1, "Minimum edge strength to follow")
}

// --- recent command ---

var (
	recentLimit int
	recentHours float64
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent activities",
	RunE:  runRecent,
}

func runRecent(cmd *cobra.Command, args []string) error {
	db, _, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	activities, err := db.RecentActivities(recentLimit, recentHours)
	if err != nil {
		return fmt.Errorf("recent activities: %w", err)
	}
	if len(activities) == 0 {
		fmt.Println("No activities recorded.")
		return nil
	}

	for _, a := range activities {
		line := fmt.Sprintf("%s  %-16s %s", a.Timestamp.Format("2006-01-02 15:04"), a.ActivityType, a.AppName)
		if a.WindowTitle != "" {
			line += " — " + a.WindowTitle
		}
		if a.FilePath != "" {
			line += " (" + a.FilePath + ")"
		}
		fmt.Println(line)
	}
	return nil
}

// --- search command ---

var (
	searchLimit int
	searchFloor float64
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed activity descriptions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	db, _, cfg, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	// CLI always uses the TF-IDF embedder; Ollama detection is server-side.
	emb, err := semantic.NewTFIDFEmbedder(db, cfg.Embedding.MaxTerms)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	index := semantic.NewIndex(db, emb)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	matches, err := index.SearchSimilar(ctx, query, searchLimit, searchFloor)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if len(matches) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	for i, m := range matches {
		fmt.Printf("%d. [%.3f] %s\n", i+1, m.Similarity, m.Text)
	}
	return nil
}

// --- predict command ---

var (
	predictID     string
	predictApp    string
	predictWindow string
	predictFile   string
	predictURL    string
	predictMax    int
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict relevant context for the current activity",
	RunE:  runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	db, g, cfg, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	emb, err := semantic.NewTFIDFEmbedder(db, cfg.Embedding.MaxTerms)
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	index := semantic.NewIndex(db, emb)

	filter, err := privacy.NewFilter(cfg.Privacy)
	if err != nil {
		return fmt.Errorf("privacy filter: %w", err)
	}
	eng := engine.New(db, g, index, filter, cfg.Prediction.MinConfidence)
	defer eng.Stop()

	current := predict.CurrentActivity{
		ActivityID:  predictID,
		AppName:     predictApp,
		WindowTitle: predictWindow,
		FilePath:    predictFile,
		URL:         predictURL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	predictions, err := eng.Predict(ctx, current, predictMax)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}
	if len(predictions) == 0 {
		fmt.Println("No predictions above the confidence threshold.")
		return nil
	}

	for i, p := range predictions {
		fmt.Printf("%d. [%.2f] %s\n", i+1, p.Confidence, p.Reason)
		for k, v := range p.Data {
			fmt.Printf("     %s: %s\n", k, v)
		}
	}
	return nil
}

// --- related command ---

var (
	relatedDepth int
	relatedMin   float64
)

var relatedCmd = &cobra.Command{
	Use:   "related [node-id]",
	Short: "Show activities related to a graph node",
	Args:  cobra.ExactArgs(1),
	RunE:  runRelated,
}

func runRelated(cmd *cobra.Command, args []string) error {
	db, g, _, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	related, err := g.RelatedTo(args[0], relatedDepth, relatedMin)
	if err != nil {
		return fmt.Errorf("related: %w", err)
	}
	if len(related) == 0 {
		fmt.Println("No related activities found.")
		return nil
	}

	for _, rel := range related {
		fmt.Printf("[%.3f] depth %d  %s (%s)\n", rel.Strength, rel.Depth, rel.ActivityID, rel.ActivityType)
	}
	return nil
}

// --- stats command ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and graph statistics",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, g, cfg, err := openStores()
	if err != nil {
		return err
	}
	defer db.Close()

	filter, err := privacy.NewFilter(cfg.Privacy)
	if err != nil {
		return fmt.Errorf("privacy filter: %w", err)
	}
	eng := engine.New(db, g, nil, filter, cfg.Prediction.MinConfidence)
	defer eng.Stop()

	s, err := eng.Stats()
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	fmt.Printf("activities: %d\n", s.Activities)
	fmt.Printf("indexed vectors: %d\n", s.Vectors)
	fmt.Printf("graph: %d nodes (%d activity, %d context), %d edges\n",
		s.Graph.TotalNodes, s.Graph.ActivityNodes, s.Graph.ContextNodes, s.Graph.TotalEdges)
	fmt.Printf("capacity: %d nodes, decay factor %.2f\n", s.Graph.MaxNodes, s.Graph.DecayFactor)
	fmt.Printf("privacy: enabled=%v apps=%d urls=%d dirs=%d\n",
		s.Privacy.Enabled, s.Privacy.BlockedApps, s.Privacy.URLPatterns, s.Privacy.BlockedDirectories)

	if apps, err := db.TopApplications(5); err == nil && len(apps) > 0 {
		fmt.Println("\ntop applications:")
		for _, a := range apps {
			fmt.Printf("  %-24s %d\n", a.Name, a.UsageCount)
		}
	}
	return nil
}
