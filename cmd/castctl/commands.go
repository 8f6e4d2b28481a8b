package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/castctl/internal/channel"
	"github.com/muurk/castctl/internal/client"
	"github.com/muurk/castctl/internal/config"
	"github.com/muurk/castctl/internal/discovery"
	"github.com/muurk/castctl/internal/relay"
	"github.com/muurk/castctl/internal/tui"
)

// Command flags
var (
	receiverHost string
	receiverPort int
	receiverName string
	scanTimeout  int
	muteFlag     bool
	unmuteFlag   bool
	relayListen  string
)

func init() {
	// Common flags for receiver commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&receiverHost, "host", "", "Receiver IP address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&receiverPort, "port", channel.DefaultPort, "Receiver protocol port")
	rootCmd.PersistentFlags().StringVar(&receiverName, "receiver", "", "Receiver name, nickname, or id from the registry")

	// Add subcommands directly to root
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(relayCmd)
}

// discoverCmd scans the network for cast receivers
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan for cast receivers on the network",
	Long: `Scan for cast receivers using mDNS/DNS-SD discovery.

This command browses for receiver advertisements and displays all
discovered receivers with their addresses, ids, and models. Sightings are
recorded in the local registry so later commands can resolve receivers
by name.`,
	Example: `  # Scan for 10 seconds (default)
  castctl discover

  # Quick 3-second scan
  castctl discover --timeout 3`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for cast receivers (timeout: %ds)...\n\n", scanTimeout)

	devices, err := discovery.Scan(context.Background(), time.Duration(scanTimeout)*time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No receivers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the receiver is powered on")
		fmt.Println("  - Check that you are on the same network as the receiver")
		fmt.Println("  - Some networks block mDNS multicast traffic")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host flag to specify the IP manually if discovery fails")
		return nil
	}

	fmt.Printf("Found %d receiver(s):\n\n", len(devices))

	for i, device := range devices {
		fmt.Printf("%d. %s\n", i+1, device.Name)
		fmt.Printf("   Id:      %s\n", device.ID)
		fmt.Printf("   Model:   %s\n", device.Model)
		fmt.Printf("   Address: %s\n", device.Addr())
		fmt.Println()
	}

	rememberSightings(devices)

	fmt.Println("Use 'castctl status --receiver <name>' to query a receiver")
	fmt.Println("Use 'castctl monitor' for the interactive monitor")

	return nil
}

// rememberSightings records discovered receivers in the registry.
// Registry failures are reported but never fail the command.
func rememberSightings(devices []*discovery.Device) {
	registry, err := config.LoadRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load registry: %v\n", err)
		return
	}
	for _, device := range devices {
		registry.UpdateReceiverSeen(device.ID, device.Name, device.Model, device.IP, device.Port)
	}
	if err := registry.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save registry: %v\n", err)
	}
}

// statusCmd queries the receiver's platform status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show receiver status",
	Long: `Connect to a receiver and display its current status: running
applications and volume.`,
	Example: `  # Status of the default or only receiver
  castctl status

  # Status of a named receiver
  castctl status --receiver "Living Room"

  # Status by address
  castctl status --host 192.168.1.40`,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		status, err := c.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}
		printReceiverStatus(status)
		return nil
	})
}

// launchCmd launches an application on the receiver
var launchCmd = &cobra.Command{
	Use:   "launch <app-id>",
	Short: "Launch an application on the receiver",
	Long: `Launch an application by its id and wait until the receiver reports
it running. If the application is already running, its existing session is
reported instead of starting a second one.

Use "media" as a shorthand for the default media receiver application.`,
	Example: `  # Launch the default media receiver
  castctl launch media

  # Launch a specific application
  castctl launch CC1AD845 --receiver "Living Room"`,
	Args: cobra.ExactArgs(1),
	RunE: runLaunch,
}

func runLaunch(cmd *cobra.Command, args []string) error {
	appID := args[0]
	if appID == "media" {
		appID = client.DefaultMediaReceiverAppID
	}

	return withClient(func(ctx context.Context, c *client.Client) error {
		fmt.Printf("Launching %s...\n", appID)
		app, err := c.Launch(ctx, appID)
		if err != nil {
			return fmt.Errorf("launch failed: %w", err)
		}
		fmt.Printf("✓ %s running (session %s)\n", displayName(app.DisplayName, app.AppID), app.SessionID)
		return nil
	})
}

// stopCmd stops a running application session
var stopCmd = &cobra.Command{
	Use:   "stop [session-id]",
	Short: "Stop a running application",
	Long: `Stop an application session on the receiver. With no session id,
the first running non-idle application is stopped.`,
	Example: `  # Stop whatever is running
  castctl stop

  # Stop a specific session
  castctl stop 7E2-abc123`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStop,
}

func runStop(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, c *client.Client) error {
		sessionID := ""
		if len(args) > 0 {
			sessionID = args[0]
		} else {
			status, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			for i := range status.Applications {
				if !status.Applications[i].IsIdleScreen {
					sessionID = status.Applications[i].SessionID
					break
				}
			}
			if sessionID == "" {
				fmt.Println("Nothing to stop: no application is running.")
				return nil
			}
		}

		fmt.Printf("Stopping session %s...\n", sessionID)
		status, err := c.Stop(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("stop failed: %w", err)
		}
		fmt.Println("✓ Stopped")
		printReceiverStatus(status)
		return nil
	})
}

// volumeCmd sets the receiver volume or mute state
var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Set receiver volume",
	Long: `Set the receiver volume level (0-100) or toggle mute.

With no arguments, the current volume is displayed.`,
	Example: `  # Show current volume
  castctl volume

  # Set volume to 30%
  castctl volume 30

  # Mute and unmute
  castctl volume --mute
  castctl volume --unmute`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

func init() {
	volumeCmd.Flags().BoolVar(&muteFlag, "mute", false, "Mute the receiver")
	volumeCmd.Flags().BoolVar(&unmuteFlag, "unmute", false, "Unmute the receiver")
}

func runVolume(cmd *cobra.Command, args []string) error {
	if muteFlag && unmuteFlag {
		return fmt.Errorf("--mute and --unmute are mutually exclusive")
	}

	return withClient(func(ctx context.Context, c *client.Client) error {
		switch {
		case muteFlag || unmuteFlag:
			vol, err := c.SetMuted(ctx, muteFlag)
			if err != nil {
				return fmt.Errorf("failed to set mute: %w", err)
			}
			printVolume(vol)

		case len(args) == 1:
			percent, err := strconv.Atoi(args[0])
			if err != nil || percent < 0 || percent > 100 {
				return fmt.Errorf("volume level must be an integer between 0 and 100")
			}
			vol, err := c.SetVolume(ctx, float64(percent)/100)
			if err != nil {
				return fmt.Errorf("failed to set volume: %w", err)
			}
			printVolume(vol)

		default:
			status, err := c.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			printVolume(&status.Volume)
		}
		return nil
	})
}

// monitorCmd launches the interactive TUI monitor
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive receiver monitor",
	Long: `Launch an interactive TUI that discovers receivers, connects to a
selected one, and shows live connection state, receiver and media status,
and a scrolling log of receiver events.

This is the recommended way to watch a receiver for most users.`,
	Example: `  # Launch the monitor
  castctl monitor
  # Or simply (monitor is default):
  castctl`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	timeout := discovery.DefaultScanTimeout
	if registry, err := config.LoadRegistry(); err == nil && registry.Preferences != nil {
		if registry.Preferences.DiscoverTimeout > 0 {
			timeout = time.Duration(registry.Preferences.DiscoverTimeout) * time.Second
		}
	}
	return tui.Run(timeout)
}

// relayCmd runs the websocket event relay
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Relay receiver events over websocket",
	Long: `Connect to a receiver and run a local HTTP server that streams the
receiver's spontaneous events as JSON over a websocket.

Endpoints:
  GET /ws      websocket event stream
  GET /status  JSON relay summary

The relay runs until interrupted.`,
	Example: `  # Relay events from the only receiver on the network
  castctl relay

  # Relay on a custom address
  castctl relay --listen 0.0.0.0:9000 --receiver "Living Room"`,
	RunE: runRelay,
}

func init() {
	relayCmd.Flags().StringVar(&relayListen, "listen", "", "Relay listen address (default from registry, else "+relay.DefaultListenAddr+")")
}

func runRelay(cmd *cobra.Command, args []string) error {
	host, port, label, err := resolveTarget()
	if err != nil {
		return err
	}

	listen := relayListen
	if listen == "" {
		if registry, err := config.LoadRegistry(); err == nil &&
			registry.Preferences != nil && registry.Preferences.Relay != nil {
			listen = registry.Preferences.Relay.ListenAddr
		}
	}

	server := relay.New(relay.Config{
		ListenAddr: listen,
		Source:     label,
	})
	if err := server.Start(); err != nil {
		return err
	}

	ch := channel.NewChannel()
	ch.AddEventListener(server)
	ch.AddStateListener(server)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = ch.Connect(ctx, host, port)
	cancel()
	if err != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = server.Shutdown(shutdownCtx)
		shutdownCancel()
		return fmt.Errorf("failed to connect to %s: %w", label, err)
	}

	fmt.Printf("Relaying events from %s\n", label)
	fmt.Printf("  Websocket: ws://%s/ws\n", server.Addr())
	fmt.Printf("  Status:    http://%s/status\n", server.Addr())
	fmt.Println("\nPress Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	fmt.Println("\nShutting down...")
	ch.Disconnect()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}

// withClient resolves the target receiver, connects a client, runs fn, and
// disconnects
func withClient(fn func(ctx context.Context, c *client.Client) error) error {
	host, port, label, err := resolveTarget()
	if err != nil {
		return err
	}

	c := client.NewClientWithPort(host, port)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", label, err)
	}
	defer c.Close()

	return fn(ctx, c)
}

// resolveTarget determines which receiver to talk to: the --host flag, then
// the --receiver registry lookup, then the registry default, then discovery.
// Returns the address plus a human-readable label for messages.
func resolveTarget() (host string, port int, label string, err error) {
	if receiverHost != "" {
		return receiverHost, receiverPort, fmt.Sprintf("%s:%d", receiverHost, receiverPort), nil
	}

	registry, regErr := config.LoadRegistry()
	if regErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load registry: %v\n", regErr)
		registry = config.NewRegistry()
	}

	if receiverName != "" {
		if _, entry := registry.FindReceiver(receiverName); entry != nil && entry.LastIP != "" {
			return entry.LastIP, portOrDefault(entry.Port), receiverLabel(entry), nil
		}
		// Not in the registry yet; look for it on the network
		ctx, cancel := context.WithTimeout(context.Background(), discovery.DefaultScanTimeout)
		defer cancel()
		device, findErr := discovery.NewScanner().FindByName(ctx, receiverName)
		if findErr != nil {
			return "", 0, "", fmt.Errorf("receiver %q not found: %w", receiverName, findErr)
		}
		registry.UpdateReceiverSeen(device.ID, device.Name, device.Model, device.IP, device.Port)
		if saveErr := registry.Save(); saveErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not save registry: %v\n", saveErr)
		}
		return device.IP, portOrDefault(device.Port), device.Name, nil
	}

	if _, entry := registry.DefaultReceiver(); entry != nil && entry.LastIP != "" {
		return entry.LastIP, portOrDefault(entry.Port), receiverLabel(entry), nil
	}

	// Last resort: scan and require exactly one receiver
	fmt.Println("No receiver specified, attempting auto-discovery...")
	devices, scanErr := discovery.QuickScan(context.Background())
	if scanErr != nil {
		return "", 0, "", fmt.Errorf("discovery failed: %w", scanErr)
	}
	if len(devices) == 0 {
		return "", 0, "", fmt.Errorf("no receivers found. Use --host to specify the address manually")
	}
	if len(devices) > 1 {
		fmt.Printf("Found %d receivers:\n", len(devices))
		for i, device := range devices {
			fmt.Printf("%d. %s (%s)\n", i+1, device.Name, device.Addr())
		}
		return "", 0, "", fmt.Errorf("multiple receivers found. Use --receiver to specify which one")
	}

	device := devices[0]
	fmt.Printf("Found receiver: %s (%s)\n\n", device.Name, device.Addr())
	registry.UpdateReceiverSeen(device.ID, device.Name, device.Model, device.IP, device.Port)
	if saveErr := registry.Save(); saveErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not save registry: %v\n", saveErr)
	}
	return device.IP, portOrDefault(device.Port), device.Name, nil
}

func portOrDefault(port int) int {
	if port > 0 {
		return port
	}
	return channel.DefaultPort
}

func receiverLabel(entry *config.Receiver) string {
	if entry.Nickname != "" {
		return entry.Nickname
	}
	if entry.Name != "" {
		return entry.Name
	}
	return entry.LastIP
}

func displayName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
