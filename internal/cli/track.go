package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/contextd/contextd/internal/client"
)

var (
	trackID     string
	trackType   string
	trackApp    string
	trackWindow string
	trackFile   string
	trackURL    string
	trackServer string
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Report an activity to a running daemon",
	RunE:  runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackID, "id", "", "Activity id (generated if empty)")
	trackCmd.Flags().StringVar(&trackType, "type", "manual", "Activity type")
	trackCmd.Flags().StringVar(&trackApp, "app", "", "Application name")
	trackCmd.Flags().StringVar(&trackWindow, "window", "", "Window title")
	trackCmd.Flags().StringVar(&trackFile, "file", "", "File path")
	trackCmd.Flags().StringVar(&trackURL, "url", "", "URL")
	trackCmd.Flags().StringVar(&trackServer, "server", "", "Daemon URL (default $CONTEXTD_URL or http://127.0.0.1:37878)")

	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) error {
	c := client.New(trackServer)
	if !c.Healthy() {
		return fmt.Errorf("contextd daemon not reachable; start it with `contextd serve`")
	}

	id := trackID
	if id == "" {
		id = uuid.NewString()
	}

	status, err := c.Track(client.TrackRequest{
		ActivityID:   id,
		ActivityType: trackType,
		Timestamp:    time.Now().Format(time.RFC3339),
		AppName:      trackApp,
		WindowTitle:  trackWindow,
		FilePath:     trackFile,
		URL:          trackURL,
	})
	if err != nil {
		return fmt.Errorf("track: %w", err)
	}

	fmt.Printf("%s (%s)\n", status, id)
	return nil
}
