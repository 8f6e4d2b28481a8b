package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/muurk/castctl/internal/castv2"
	"github.com/muurk/castctl/internal/client"
)

// Media command flags
var (
	contentType string
	noAutoplay  bool
)

func init() {
	rootCmd.AddCommand(mediaCmd)

	mediaCmd.AddCommand(mediaLoadCmd)
	mediaCmd.AddCommand(mediaStatusCmd)
	mediaCmd.AddCommand(mediaPlayCmd)
	mediaCmd.AddCommand(mediaPauseCmd)
	mediaCmd.AddCommand(mediaStopCmd)
	mediaCmd.AddCommand(mediaSeekCmd)

	mediaLoadCmd.Flags().StringVar(&contentType, "content-type", "video/mp4", "MIME type of the content")
	mediaLoadCmd.Flags().BoolVar(&noAutoplay, "no-autoplay", false, "Load without starting playback")
}

// mediaCmd groups media playback commands
var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Control media playback on the receiver",
	Long: `Load content into the default media receiver and control playback.

Playback commands (play, pause, stop, seek) operate on the first active
media session of the running application.`,
}

// mediaLoadCmd loads content into the media receiver
var mediaLoadCmd = &cobra.Command{
	Use:   "load <url>",
	Short: "Load content into the media receiver",
	Long: `Launch the default media receiver if needed and load the given
content URL into it.`,
	Example: `  # Load a video
  castctl media load http://example.com/video.mp4

  # Load audio without autoplay
  castctl media load http://example.com/audio.mp3 --content-type audio/mpeg --no-autoplay`,
	Args: cobra.ExactArgs(1),
	RunE: runMediaLoad,
}

func runMediaLoad(cmd *cobra.Command, args []string) error {
	url := args[0]

	return withClient(func(ctx context.Context, c *client.Client) error {
		fmt.Println("Launching media receiver...")
		app, err := c.LaunchMediaReceiver(ctx)
		if err != nil {
			return fmt.Errorf("failed to launch media receiver: %w", err)
		}

		fmt.Printf("Loading %s...\n", url)
		media := castv2.MediaInformation{
			ContentID:   url,
			ContentType: contentType,
			StreamType:  "BUFFERED",
		}
		status, err := c.Load(ctx, app, media, !noAutoplay)
		if err != nil {
			return fmt.Errorf("load failed: %w", err)
		}

		fmt.Printf("✓ Loaded (session %d, state %s)\n", status.MediaSessionID, status.PlayerState)
		return nil
	})
}

// mediaStatusCmd shows the current media session status
var mediaStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show media playback status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *client.Client) error {
			app, err := runningMediaApp(ctx, c)
			if err != nil {
				return err
			}
			statuses, err := c.MediaStatus(ctx, app)
			if err != nil {
				return fmt.Errorf("failed to get media status: %w", err)
			}
			if len(statuses) == 0 {
				fmt.Println("No active media session.")
				return nil
			}
			for i := range statuses {
				printMediaStatus(&statuses[i])
			}
			return nil
		})
	},
}

var mediaPlayCmd = &cobra.Command{
	Use:   "play",
	Short: "Resume playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMediaCommand("play", func(ctx context.Context, c *client.Client, app *castv2.Application, sessionID int) (*castv2.MediaStatus, error) {
			return c.Play(ctx, app, sessionID)
		})
	},
}

var mediaPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMediaCommand("pause", func(ctx context.Context, c *client.Client, app *castv2.Application, sessionID int) (*castv2.MediaStatus, error) {
			return c.Pause(ctx, app, sessionID)
		})
	},
}

var mediaStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback and unload the media",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMediaCommand("stop", func(ctx context.Context, c *client.Client, app *castv2.Application, sessionID int) (*castv2.MediaStatus, error) {
			return c.StopMedia(ctx, app, sessionID)
		})
	},
}

var mediaSeekCmd = &cobra.Command{
	Use:   "seek <seconds>",
	Short: "Seek to a position in seconds",
	Example: `  # Jump to 90 seconds in
  castctl media seek 90`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		position, err := strconv.ParseFloat(args[0], 64)
		if err != nil || position < 0 {
			return fmt.Errorf("position must be a non-negative number of seconds")
		}
		return runMediaCommand("seek", func(ctx context.Context, c *client.Client, app *castv2.Application, sessionID int) (*castv2.MediaStatus, error) {
			return c.Seek(ctx, app, sessionID, position)
		})
	},
}

// runMediaCommand resolves the active media session and applies cmdFn to it
func runMediaCommand(verb string, cmdFn func(ctx context.Context, c *client.Client, app *castv2.Application, sessionID int) (*castv2.MediaStatus, error)) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		app, err := runningMediaApp(ctx, c)
		if err != nil {
			return err
		}
		statuses, err := c.MediaStatus(ctx, app)
		if err != nil {
			return fmt.Errorf("failed to get media status: %w", err)
		}
		if len(statuses) == 0 {
			return fmt.Errorf("no active media session to %s", verb)
		}

		status, err := cmdFn(ctx, c, app, statuses[0].MediaSessionID)
		if err != nil {
			return fmt.Errorf("%s failed: %w", verb, err)
		}
		fmt.Printf("✓ %s\n", status.PlayerState)
		return nil
	})
}

// runningMediaApp returns the first running non-idle application
func runningMediaApp(ctx context.Context, c *client.Client) (*castv2.Application, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	for i := range status.Applications {
		if !status.Applications[i].IsIdleScreen {
			return &status.Applications[i], nil
		}
	}
	return nil, fmt.Errorf("no application is running. Use 'castctl media load' first")
}

// printReceiverStatus renders a receiver status for terminal output
func printReceiverStatus(status *castv2.ReceiverStatus) {
	fmt.Println("Receiver status:")
	printVolume(&status.Volume)

	if len(status.Applications) == 0 {
		fmt.Println("  No applications running")
		return
	}
	fmt.Printf("  Applications (%d):\n", len(status.Applications))
	for _, app := range status.Applications {
		fmt.Printf("    %s (%s)\n", displayName(app.DisplayName, app.AppID), app.AppID)
		if app.StatusText != "" {
			fmt.Printf("      Status:  %s\n", app.StatusText)
		}
		fmt.Printf("      Session: %s\n", app.SessionID)
		if app.IsIdleScreen {
			fmt.Println("      (idle screen)")
		}
	}
}

// printVolume renders a volume for terminal output
func printVolume(vol *castv2.Volume) {
	switch {
	case vol.Muted != nil && *vol.Muted:
		fmt.Println("  Volume: muted")
	case vol.Level != nil:
		fmt.Printf("  Volume: %d%%\n", int(*vol.Level*100+0.5))
	default:
		fmt.Println("  Volume: unknown")
	}
}

// printMediaStatus renders one media session status
func printMediaStatus(status *castv2.MediaStatus) {
	fmt.Printf("Media session %d:\n", status.MediaSessionID)
	fmt.Printf("  State:    %s\n", status.PlayerState)
	if status.IdleReason != "" {
		fmt.Printf("  Idle:     %s\n", status.IdleReason)
	}
	if status.Media != nil {
		fmt.Printf("  Content:  %s\n", status.Media.ContentID)
		if status.Media.Duration > 0 {
			fmt.Printf("  Position: %.0fs / %.0fs\n", status.CurrentTime, status.Media.Duration)
			return
		}
	}
	fmt.Printf("  Position: %.0fs\n", status.CurrentTime)
}
