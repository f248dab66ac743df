package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/netsweep/internal/parsers"
	"github.com/anstrom/netsweep/internal/scanning"
	"github.com/anstrom/netsweep/internal/workspace"
)

const liveOutputBuffer = 1024

var (
	scanNetwork    string
	scanTargets    string
	scanTargetFile string
	scanHost       string
	scanType       string
	scanPorts      string
	scanTiming     int
	scanSkipPing   bool
	scanWorkers    int
	scanTimeout    time.Duration
	scanInterface  string
	scanExclude    string
	scanExclPorts  string
	scanUserAgent  string
	scanFormat     string
	scanQuiet      bool
	scanKeepFiles  bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a network, host list or single host",
	Long: `Scan a target for live hosts, open ports and running services.

The target is given as exactly one of --network, --targets, --target-file
or --host. Large targets are partitioned into bounded work units and
scanned concurrently; press Ctrl-C to cancel, keeping the results of the
units that already finished.`,
	Example: `  netsweep scan --network 192.168.0.0/16
  netsweep scan --network 10.0.0.0/24 --type top1000
  netsweep scan --targets "192.168.1.10,192.168.1.20" --type custom --ports 22,80,443
  netsweep scan --target-file hosts.txt --workers 10
  netsweep scan --host 192.168.1.1 --type allports --skip-ping`,
	Run: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanNetwork, "network", "", "CIDR network to scan (e.g. 10.0.0.0/16)")
	scanCmd.Flags().StringVar(&scanTargets, "targets", "", "Comma-separated list of addresses to scan")
	scanCmd.Flags().StringVar(&scanTargetFile, "target-file", "", "Newline-separated file of addresses to scan")
	scanCmd.Flags().StringVar(&scanHost, "host", "", "Single host to scan")
	scanCmd.Flags().StringVar(&scanType, "type", "top100", "Scan type: discovery, top100, top1000, allports, custom")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "Port specification for --type custom (e.g. '80,443' or '1-1000')")
	scanCmd.Flags().IntVar(&scanTiming, "timing", 0, "Timing template 1-5 (0 = tool default)")
	scanCmd.Flags().BoolVar(&scanSkipPing, "skip-ping", false, "Skip host discovery and probe ports directly")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent scan processes (default from config)")
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 0, "Per-unit wall-clock budget (default from config)")
	scanCmd.Flags().StringVar(&scanInterface, "interface", "", "Network interface to scan from")
	scanCmd.Flags().StringVar(&scanExclude, "exclude", "", "Comma-separated addresses to exclude")
	scanCmd.Flags().StringVar(&scanExclPorts, "exclude-ports", "", "Port specification to exclude")
	scanCmd.Flags().StringVar(&scanUserAgent, "user-agent", "", "HTTP user agent for service probes")
	scanCmd.Flags().StringVar(&scanFormat, "format", "nmap-xml", "Tool output format: nmap-xml, nuclei-jsonl")
	scanCmd.Flags().BoolVar(&scanQuiet, "quiet", false, "Suppress live tool output")
	scanCmd.Flags().BoolVar(&scanKeepFiles, "keep-files", false, "Keep per-unit output artifacts after the scan")

	scanCmd.MarkFlagsMutuallyExclusive("network", "targets", "target-file", "host")
}

func runScan(cmd *cobra.Command, _ []string) {
	if scanNetwork == "" && scanTargets == "" && scanTargetFile == "" && scanHost == "" {
		fmt.Fprintf(os.Stderr, "Error: one of --network, --targets, --target-file or --host must be specified\n\n")
		_ = cmd.Help()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if scanWorkers > 0 {
		cfg.Scanner.MaxWorkers = scanWorkers
	}
	if scanTimeout > 0 {
		cfg.Scanner.UnitTimeout = scanTimeout
	}

	profile := buildProfile()
	if err := profile.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	parser, err := parserForFormat(scanFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ws, err := workspace.New(cfg.Scanner.WorkDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing workspace: %v\n", err)
		os.Exit(1)
	}
	scanDir, err := ws.ScanDir(uuid.New().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error preparing scan directory: %v\n", err)
		os.Exit(1)
	}
	if !scanKeepFiles {
		defer func() { _ = scanDir.Cleanup() }()
	}

	sink := scanning.NewChannelSink(liveOutputBuffer)
	var printerWG sync.WaitGroup
	if !scanQuiet {
		printerWG.Add(1)
		go func() {
			defer printerWG.Done()
			for line := range sink.Lines() {
				fmt.Printf("  [%s] %s\n", line.Target, line.Text)
			}
		}()
	}

	coord := scanning.NewCoordinator(scanning.CoordinatorConfig{
		BinaryPath:  cfg.Scanner.BinaryPath,
		MaxWorkers:  cfg.Scanner.MaxWorkers,
		UnitTimeout: cfg.Scanner.UnitTimeout,
		KillGrace:   cfg.Scanner.KillGrace,
		TailLines:   cfg.Scanner.TailLines,
		ChunkPolicy: scanning.ChunkPolicy{
			ChunkSize:     cfg.Scanner.ChunkSize,
			FileChunkSize: cfg.Scanner.FileChunkSize,
		},
	}, scanDir, parser, sink)

	// Ctrl-C cancels the scan; completed units are kept.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nCancelling scan, keeping completed results...")
		coord.Cancel()
	}()

	inv, err := dispatch(coord, profile)
	signal.Stop(sigCh)
	sink.Close()
	printerWG.Wait()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	displayInventory(inv, coord.State() == scanning.StateCancelled)
	if dropped := sink.Dropped(); dropped > 0 && !scanQuiet {
		fmt.Fprintf(os.Stderr, "Note: %d output lines dropped (terminal fell behind)\n", dropped)
	}
}

// parserForFormat selects the artifact parser for the configured tool.
func parserForFormat(format string) (scanning.ResultParser, error) {
	switch format {
	case "nmap-xml":
		return parsers.NewNmapXML(), nil
	case "nuclei-jsonl":
		return parsers.NewNucleiJSONL(), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (expected nmap-xml or nuclei-jsonl)", format)
	}
}

// buildProfile maps the scan flags onto an engine profile.
func buildProfile() scanning.Profile {
	profile := scanning.Profile{
		Kind:          scanning.ScanKind(scanType),
		CustomPorts:   scanPorts,
		Timing:        scanTiming,
		SkipDiscovery: scanSkipPing,
		Verbose:       verbose,
		Interface:     scanInterface,
		ExcludePorts:  scanExclPorts,
		UserAgent:     scanUserAgent,
	}
	if scanExclude != "" {
		for _, h := range strings.Split(scanExclude, ",") {
			if h = strings.TrimSpace(h); h != "" {
				profile.ExcludeHosts = append(profile.ExcludeHosts, h)
			}
		}
	}
	return profile
}

// dispatch routes the selected target flag to the matching coordinator call.
func dispatch(coord *scanning.Coordinator, profile scanning.Profile) (*scanning.Inventory, error) {
	ctx := context.Background()
	switch {
	case scanNetwork != "":
		return coord.ScanNetwork(ctx, scanNetwork, profile)
	case scanTargets != "":
		hosts := strings.Split(scanTargets, ",")
		for i := range hosts {
			hosts[i] = strings.TrimSpace(hosts[i])
		}
		return coord.ScanList(ctx, hosts, profile)
	case scanTargetFile != "":
		return coord.ScanFile(ctx, scanTargetFile, profile)
	default:
		return coord.ScanSingle(ctx, scanHost, profile)
	}
}

// displayInventory prints the merged scan outcome.
func displayInventory(inv *scanning.Inventory, cancelled bool) {
	status := "completed"
	if cancelled {
		status = "cancelled (partial results)"
	}
	fmt.Printf("\nScan %s in %v\n", status, inv.Duration.Round(time.Millisecond))
	fmt.Printf("Units: %d total, %d completed, %d failed\n",
		inv.UnitsTotal, inv.UnitsCompleted, inv.UnitsFailed)
	fmt.Printf("Hosts found: %d\n\n", len(inv.Hosts))

	if len(inv.Hosts) > 0 {
		displayHostsTable(inv.Hosts)
	}
	if inv.Errors != "" {
		fmt.Fprintf(os.Stderr, "\nUnit errors:\n")
		for _, part := range strings.Split(inv.Errors, "; ") {
			fmt.Fprintf(os.Stderr, "  - %s\n", part)
		}
	}
}

// displayHostsTable renders the host inventory in a table format.
func displayHostsTable(hosts []scanning.Host) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Host", "Hostname", "Port", "Protocol", "Service", "Version")

	for i := range hosts {
		host := &hosts[i]
		if len(host.Services) == 0 {
			_ = table.Append([]string{host.IP, host.Hostname, "", "", "", ""})
			continue
		}
		for _, svc := range host.Services {
			_ = table.Append([]string{
				host.IP,
				host.Hostname,
				strconv.Itoa(int(svc.Port)),
				svc.Protocol,
				svc.Name,
				svc.Version,
			})
		}
	}
	_ = table.Render()
}
