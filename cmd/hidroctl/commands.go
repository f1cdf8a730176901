package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/hidroctl/internal/bridge"
	"github.com/muurk/hidroctl/internal/client"
	"github.com/muurk/hidroctl/internal/config"
	"github.com/muurk/hidroctl/internal/discovery"
	"github.com/muurk/hidroctl/internal/protocol"
	"github.com/muurk/hidroctl/internal/ui"
)

// Command flags
var (
	controllerHost string
	controllerPort int
	logLevel       string
	scanTimeout    int
	outputFormat   string

	mqttBroker   string
	mqttUser     string
	mqttPassword string
	topicPrefix  string
	bridgeSerial string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&controllerHost, "host", "", "Controller address (skips discovery)")
	rootCmd.PersistentFlags().IntVar(&controllerPort, "port", client.DefaultPort, "Controller WebSocket port")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(zoneCmd)
	rootCmd.AddCommand(autoCmd)
	rootCmd.AddCommand(bridgeCmd)
}

// scanCmd discovers controllers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for Hidromotic controllers on the network",
	Long: `Scan for Hidromotic controllers using mDNS/DNS-SD discovery.

This command listens for mDNS broadcasts from controllers and displays all
discovered controllers with their addresses, serial numbers, and metadata.`,
	Example: `  # Scan for 10 seconds (default)
  hidroctl scan

  # Quick 3-second scan
  hidroctl scan --timeout 3`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for Hidromotic controllers (timeout: %ds)...\n\n", scanTimeout)

	controllers, err := discovery.ScanForControllers(time.Duration(scanTimeout) * time.Second)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(controllers) == 0 {
		fmt.Println("No controllers found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the controller is powered on and joined to your WiFi")
		fmt.Println("  - Verify your computer is on the same network segment")
		fmt.Println("  - Try increasing --timeout for slower networks")
		fmt.Println("  - Use --host to specify the address manually if discovery fails")
		return nil
	}

	// Remember addresses for later commands.
	registry, err := config.LoadRegistry()
	if err == nil {
		for _, c := range controllers {
			registry.UpdateLastSeen(c.Serial, c.IP, c.Port)
		}
		if err := registry.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save config: %v\n", err)
		}
	}

	fmt.Printf("Found %d controller(s):\n\n", len(controllers))
	for i, c := range controllers {
		fmt.Printf("%d. %s\n", i+1, c.Hostname)
		fmt.Printf("   Serial:  %s\n", c.Serial)
		fmt.Printf("   Address: %s:%d\n", c.IP, c.Port)
		if len(c.Metadata) > 0 {
			fmt.Printf("   Metadata: %v\n", c.Metadata)
		}
		fmt.Println()
	}

	fmt.Println("Use 'hidroctl status --host <ip>' to view controller state")
	fmt.Println("Use 'hidroctl watch' for the live dashboard")
	return nil
}

// statusCmd prints a one-shot controller state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show controller state",
	Long: `Connect to a controller, fetch its full configuration, and print the
current state of every zone, tank, and the pump.`,
	Example: `  # Status with auto-discovery
  hidroctl status

  # Status of a specific controller
  hidroctl status --host 192.168.1.74

  # JSON output for scripting
  hidroctl status --host 192.168.1.74 --format json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&outputFormat, "format", "detailed", "Output format (detailed, json)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	host, err := getControllerHost()
	if err != nil {
		return err
	}

	snap, c, err := connectAndWait(host)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	if outputFormat == "json" {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printSnapshot(host, snap)
	return nil
}

// watchCmd runs the live terminal dashboard
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Launch the live controller dashboard",
	Long: `Launch an interactive terminal dashboard showing live controller state.

The dashboard updates as the controller reports changes and lets you toggle
zones and automatic irrigation from the keyboard.`,
	Example: `  # Dashboard with auto-discovery
  hidroctl watch
  # Or simply (watch is default):
  hidroctl

  # Dashboard for a specific controller
  hidroctl watch --host 192.168.1.74`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	// Without a terminal (pipes, cron) degrade to a one-shot status dump.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runStatus(cmd, args)
	}

	host, err := getControllerHost()
	if err != nil {
		return err
	}

	c := client.NewClient(host, controllerPort)
	model := ui.NewWatchModel(c, host)
	p := tea.NewProgram(model, tea.WithAltScreen())

	unsubscribe := c.Subscribe(func(snap *protocol.Snapshot) {
		p.Send(ui.SnapshotMsg{Snapshot: snap})
	})
	defer unsubscribe()

	if err := c.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", host, controllerPort, err)
	}
	defer c.Disconnect()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("dashboard error: %w", err)
	}
	return nil
}

// zoneCmd switches a single irrigation zone
var zoneCmd = &cobra.Command{
	Use:   "zone <index> <on|off>",
	Short: "Turn an irrigation zone on or off",
	Long: `Switch a single irrigation zone.

Zone indices are zero-based and match the order shown by 'hidroctl status'.
The command waits for the controller's configuration before switching so the
zone can be mapped to its physical output.`,
	Example: `  # Turn zone 0 on
  hidroctl zone 0 on --host 192.168.1.74

  # Turn zone 2 off
  hidroctl zone 2 off`,
	Args: cobra.ExactArgs(2),
	RunE: runZone,
}

func runZone(cmd *cobra.Command, args []string) error {
	zone, err := strconv.Atoi(args[0])
	if err != nil || zone < 0 {
		return fmt.Errorf("invalid zone index %q", args[0])
	}
	on, err := parseOnOffArg(args[1])
	if err != nil {
		return err
	}

	host, err := getControllerHost()
	if err != nil {
		return err
	}

	snap, c, err := connectAndWait(host)
	if err != nil {
		return err
	}
	defer c.Disconnect()

	if _, ok := snap.Zones[zone]; !ok {
		return fmt.Errorf("zone %d is not configured on this controller (%d zones)", zone, len(snap.Zones))
	}

	if err := c.SetZoneState(zone, on); err != nil {
		return fmt.Errorf("failed to switch zone %d: %w", zone, err)
	}

	fmt.Printf("✓ Zone %d switched %s\n", zone, args[1])
	return nil
}

// autoCmd switches automatic irrigation
var autoCmd = &cobra.Command{
	Use:   "auto <on|off>",
	Short: "Enable or disable automatic irrigation",
	Long: `Switch the controller's automatic irrigation program.

When disabled, scheduled waterings are suspended until re-enabled; manual
zone commands still work.`,
	Example: `  # Suspend scheduled watering
  hidroctl auto off --host 192.168.1.74

  # Resume
  hidroctl auto on`,
	Args: cobra.ExactArgs(1),
	RunE: runAuto,
}

func runAuto(cmd *cobra.Command, args []string) error {
	on, err := parseOnOffArg(args[0])
	if err != nil {
		return err
	}

	host, err := getControllerHost()
	if err != nil {
		return err
	}

	c := client.NewClient(host, controllerPort)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", host, controllerPort, err)
	}
	defer c.Disconnect()

	if err := c.SetAutoIrrigation(on); err != nil {
		return fmt.Errorf("failed to switch automatic irrigation: %w", err)
	}

	fmt.Printf("✓ Automatic irrigation %s\n", args[0])
	return nil
}

// bridgeCmd runs the MQTT bridge
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Bridge controller state to an MQTT broker",
	Long: `Run a long-lived bridge that republishes controller state to MQTT and
forwards MQTT commands back to the controller.

Home Assistant autodiscovery configs are published so zones, tanks, and the
pump appear as entities automatically. The broker password is read from the
HIDROCTL_MQTT_PASSWORD environment variable when --mqtt-password is unset;
it is never stored in the config file.`,
	Example: `  # Bridge a discovered controller to a local broker
  hidroctl bridge --broker tcp://192.168.1.10:1883

  # With credentials and a custom prefix
  hidroctl bridge --host 192.168.1.74 --broker tcp://broker:1883 \
    --mqtt-user ha --topic-prefix irrigation`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&mqttBroker, "broker", "", "MQTT broker URL (e.g. tcp://host:1883)")
	bridgeCmd.Flags().StringVar(&mqttUser, "mqtt-user", "", "MQTT username")
	bridgeCmd.Flags().StringVar(&mqttPassword, "mqtt-password", "", "MQTT password (prefer HIDROCTL_MQTT_PASSWORD)")
	bridgeCmd.Flags().StringVar(&topicPrefix, "topic-prefix", "", "MQTT topic prefix (default \"hidromotic\")")
	bridgeCmd.Flags().StringVar(&bridgeSerial, "serial", "", "Controller serial for topic naming (default from discovery)")
}

func runBridge(cmd *cobra.Command, args []string) error {
	registry, _ := config.LoadRegistry()

	// Fall back to saved bridge preferences for anything not given on the
	// command line.
	if registry != nil && registry.Preferences != nil && registry.Preferences.MQTT != nil {
		pref := registry.Preferences.MQTT
		if mqttBroker == "" {
			mqttBroker = pref.Broker
		}
		if mqttUser == "" {
			mqttUser = pref.Username
		}
		if topicPrefix == "" {
			topicPrefix = pref.TopicPrefix
		}
	}
	if mqttBroker == "" {
		return fmt.Errorf("no MQTT broker configured; use --broker")
	}
	if mqttPassword == "" {
		mqttPassword = os.Getenv("HIDROCTL_MQTT_PASSWORD")
	}

	host, serial, err := getControllerHostAndSerial()
	if err != nil {
		return err
	}
	if bridgeSerial != "" {
		serial = bridgeSerial
	}

	c := client.NewClient(host, controllerPort)
	if err := c.Connect(); err != nil {
		return fmt.Errorf("failed to connect to %s:%d: %w", host, controllerPort, err)
	}
	defer c.Disconnect()

	b, err := bridge.NewBridge(c, serial, bridge.Config{
		Broker:      mqttBroker,
		Username:    mqttUser,
		Password:    mqttPassword,
		TopicPrefix: topicPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to start MQTT bridge: %w", err)
	}
	b.Start()
	defer b.Stop()

	fmt.Printf("Bridging %s:%d to %s (press Ctrl-C to stop)\n", host, controllerPort, mqttBroker)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nShutting down...")
	return nil
}

// connectAndWait connects to a controller and blocks until the first full
// configuration arrives.
func connectAndWait(host string) (*protocol.Snapshot, *client.Client, error) {
	c := client.NewClient(host, controllerPort)

	ready := make(chan *protocol.Snapshot, 1)
	unsubscribe := c.Subscribe(func(snap *protocol.Snapshot) {
		select {
		case ready <- snap:
		default:
		}
	})
	defer unsubscribe()

	if err := c.Connect(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s:%d: %w", host, controllerPort, err)
	}

	select {
	case snap := <-ready:
		return snap, c, nil
	case <-time.After(10 * time.Second):
		c.Disconnect()
		return nil, nil, fmt.Errorf("timed out waiting for controller configuration from %s", host)
	}
}

func printSnapshot(host string, snap *protocol.Snapshot) {
	variant := "Hidromotic"
	if snap.IsMini {
		variant = "Hidromotic Mini"
	}
	fmt.Printf("%s at %s (fw %d, hw %s)\n\n", variant, host, snap.FirmwareVersion, snap.HardwareID)

	auto := "off"
	if snap.AutoIrrigation {
		auto = "on"
	}
	fmt.Printf("Automatic irrigation: %s\n\n", auto)

	if len(snap.Zones) > 0 {
		fmt.Println("Zones:")
		for _, idx := range sortedKeys(snap.Zones) {
			zone := snap.Zones[idx]
			state := "off"
			if zone.On {
				state = "ON"
			}
			label := zone.Label
			if label == "" {
				label = fmt.Sprintf("Zone %d", idx+1)
			}
			fmt.Printf("  %d. %-20s %s\n", idx, label, state)
		}
		fmt.Println()
	}

	if len(snap.Tanks) > 0 {
		fmt.Println("Tanks:")
		for _, idx := range sortedKeys(snap.Tanks) {
			tank := snap.Tanks[idx]
			state := "idle"
			if tank.On {
				state = "FILLING"
			}
			level := "?"
			if tank.Level != protocol.LevelUnknown {
				level = fmt.Sprintf("%d/4", tank.Level)
			}
			label := tank.Label
			if label == "" {
				label = fmt.Sprintf("Tank %d", idx+1)
			}
			fmt.Printf("  %d. %-20s %-8s level %s\n", idx, label, state, level)
		}
		fmt.Println()
	}

	if snap.Pump != nil {
		state := "off"
		if snap.Pump.State == protocol.StateOn {
			state = "RUNNING"
		}
		fmt.Printf("Pump: %s\n", state)
	}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func parseOnOffArg(arg string) (bool, error) {
	switch arg {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}
	return false, fmt.Errorf("expected 'on' or 'off', got %q", arg)
}

// getControllerHost resolves the controller address from the --host flag or
// mDNS discovery.
func getControllerHost() (string, error) {
	host, _, err := getControllerHostAndSerial()
	return host, err
}

func getControllerHostAndSerial() (string, string, error) {
	if controllerHost != "" {
		return controllerHost, controllerHost, nil
	}

	fmt.Println("No controller specified, attempting auto-discovery...")
	controllers, err := discovery.ScanForControllers(5 * time.Second)
	if err != nil {
		return "", "", fmt.Errorf("discovery failed: %w", err)
	}

	if len(controllers) == 0 {
		return "", "", fmt.Errorf("no controllers found. Use --host to specify the address manually")
	}
	if len(controllers) > 1 {
		fmt.Printf("Found %d controllers:\n", len(controllers))
		for i, c := range controllers {
			fmt.Printf("%d. %s (%s)\n", i+1, c.Serial, c.IP)
		}
		return "", "", fmt.Errorf("multiple controllers found. Use --host to specify which one")
	}

	c := controllers[0]
	fmt.Printf("Found controller: %s (%s)\n\n", c.Serial, c.IP)

	if registry, err := config.LoadRegistry(); err == nil {
		registry.UpdateLastSeen(c.Serial, c.IP, c.Port)
		if err := registry.Save(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not save config: %v\n", err)
		}
	}

	return c.IP, c.Serial, nil
}
