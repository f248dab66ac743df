package scanning

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Port validation constants.
	expectedPortRangeParts = 2
	maxPortNumber          = 65535
)

// TargetKind discriminates the scan target union.
type TargetKind string

const (
	TargetCIDR       TargetKind = "cidr"
	TargetHostList   TargetKind = "hostlist"
	TargetHostFile   TargetKind = "hostfile"
	TargetSingleHost TargetKind = "singlehost"
)

// Target is the immutable scan target, constructed once per scan call.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Target struct {
	Kind     TargetKind
	CIDR     string
	Hosts    []string
	FilePath string
	Address  string
}

// CIDRTarget builds a target covering a CIDR network.
func CIDRTarget(cidr string) Target {
	return Target{Kind: TargetCIDR, CIDR: cidr}
}

// HostListTarget builds a target from an explicit address list.
func HostListTarget(hosts []string) Target {
	return Target{Kind: TargetHostList, Hosts: hosts}
}

// HostFileTarget builds a target from a newline-separated host file.
func HostFileTarget(path string) Target {
	return Target{Kind: TargetHostFile, FilePath: path}
}

// SingleHostTarget builds a target for one host.
func SingleHostTarget(addr string) Target {
	return Target{Kind: TargetSingleHost, Address: addr}
}

// String returns a short description used in logs and error summaries.
func (t Target) String() string {
	switch t.Kind {
	case TargetCIDR:
		return t.CIDR
	case TargetHostList:
		return fmt.Sprintf("%d hosts", len(t.Hosts))
	case TargetHostFile:
		return t.FilePath
	case TargetSingleHost:
		return t.Address
	default:
		return "unknown"
	}
}

// ScanKind selects the port coverage of a scan.
type ScanKind string

const (
	KindDiscovery ScanKind = "discovery"
	KindTop100    ScanKind = "top100"
	KindTop1000   ScanKind = "top1000"
	KindAllPorts  ScanKind = "allports"
	KindCustom    ScanKind = "custom"
)

// Profile configures how each work unit's subprocess scans its slice of the
// target. It maps onto the external tool's command line in command.go.
type Profile struct {
	// Kind selects the scan mode and port coverage
	Kind ScanKind
	// CustomPorts is the port spec for KindCustom (e.g. "80,443" or "1-1000")
	CustomPorts string
	// Timing is the tool timing template, 1..5 (0 = tool default)
	Timing int
	// SkipDiscovery skips host discovery and probes ports directly
	SkipDiscovery bool
	// Verbose requests verbose tool output
	Verbose bool
	// Interface pins the scan to a network interface
	Interface string
	// ExcludeHosts lists addresses removed from the scan
	ExcludeHosts []string
	// ExcludePorts is a port spec removed from the scan
	ExcludePorts string
	// UserAgent overrides the HTTP user agent for service probes
	UserAgent string
}

// Validate checks if the scan profile is valid.
func (p *Profile) Validate() error {
	validKinds := map[ScanKind]bool{
		KindDiscovery: true,
		KindTop100:    true,
		KindTop1000:   true,
		KindAllPorts:  true,
		KindCustom:    true,
	}
	if !validKinds[p.Kind] {
		return fmt.Errorf("invalid scan kind: %s", p.Kind)
	}
	if p.Timing < 0 || p.Timing > 5 {
		return fmt.Errorf("invalid timing template: %d (must be 0-5, 0 uses the tool default)", p.Timing)
	}
	if p.Kind == KindCustom {
		if p.CustomPorts == "" {
			return fmt.Errorf("custom scan kind requires a port specification")
		}
		if err := validatePortSpec(p.CustomPorts); err != nil {
			return err
		}
	}
	if p.ExcludePorts != "" {
		if err := validatePortSpec(p.ExcludePorts); err != nil {
			return err
		}
	}
	return nil
}

// validatePortSpec validates a comma-separated port specification.
func validatePortSpec(spec string) error {
	for _, part := range strings.Split(spec, ",") {
		if err := validatePortPart(strings.TrimSpace(part)); err != nil {
			return err
		}
	}
	return nil
}

// validatePortPart validates a single port or port range.
func validatePortPart(part string) error {
	if strings.Contains(part, "-") {
		return validatePortRange(part)
	}
	return validateSinglePort(part)
}

// validatePortRange validates a port range (e.g. "80-100").
func validatePortRange(part string) error {
	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != expectedPortRangeParts {
		return fmt.Errorf("invalid port range format: %s", part)
	}

	start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil {
		return fmt.Errorf("invalid start port: %s", rangeParts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return fmt.Errorf("invalid end port: %s", rangeParts[1])
	}

	if start < 0 || start > maxPortNumber || end < 0 || end > maxPortNumber {
		return fmt.Errorf("invalid port range: %s (must be 0-%d)", part, maxPortNumber)
	}
	if start > end {
		return fmt.Errorf("invalid port range: start port must be less than end port")
	}
	return nil
}

// validateSinglePort validates a single port.
func validateSinglePort(part string) error {
	port, err := strconv.Atoi(part)
	if err != nil {
		return fmt.Errorf("invalid port: %s", part)
	}
	if port < 0 || port > maxPortNumber {
		return fmt.Errorf("invalid port: %d (must be 0-%d)", port, maxPortNumber)
	}
	return nil
}

// WorkUnit is one bounded, independently schedulable scan task. Units are
// created by the partitioner, consumed exactly once by exactly one worker,
// then discarded.
type WorkUnit struct {
	// ID uniquely identifies the unit within its scan
	ID string
	// TargetSpec is the tool-facing target argument (subnet or address)
	TargetSpec string
	// Hosts is non-nil only for chunked host lists; the runner materializes
	// it to a temporary file at execution time and removes it afterwards
	Hosts []string
	// OutputPath is where the tool writes its structured output artifact
	OutputPath string
	// Profile configures the subprocess for this unit
	Profile Profile
}

// Describe returns the unit's target for logs and error summaries.
func (u WorkUnit) Describe() string {
	if len(u.Hosts) > 0 {
		return fmt.Sprintf("%d hosts", len(u.Hosts))
	}
	return u.TargetSpec
}

// ScanResult is produced exactly once per executed work unit.
type ScanResult struct {
	// UnitID identifies the originating work unit
	UnitID string
	// Target describes what the unit scanned
	Target string
	// Hosts discovered by this unit (empty on failure)
	Hosts []Host
	// Error is the per-unit failure, empty on success
	Error string
	// RawCommand is the exact command line that was executed
	RawCommand string
	// Duration is the unit's wall-clock run time
	Duration time.Duration
	// Canceled marks a unit interrupted by scan cancellation; such results
	// are dropped so a cancelled scan returns exactly the completed units
	Canceled bool
}

// Host represents a scanned host and its findings. Host identity is the IP
// address; merging two records with the same IP unions their services.
type Host struct {
	// IP is the host's address and identity key
	IP string
	// Hostname is the reverse-resolved name, if any
	Hostname string
	// OS is the detected operating system, if any
	OS string
	// Services are the discovered services, unique per (port, protocol)
	Services []Service
}

// Service represents one discovered service on a host.
type Service struct {
	// Port is the service port number
	Port uint16
	// Protocol is the transport protocol ("tcp" or "udp")
	Protocol string
	// Name is the detected service name, if any
	Name string
	// Version is the detected service version, if any
	Version string
}

// serviceKey is the identity of a service within a host.
type serviceKey struct {
	port     uint16
	protocol string
}

// Inventory is the aggregated outcome of a whole scan invocation.
type Inventory struct {
	// ScanID identifies the scan invocation
	ScanID string
	// Hosts is the merged, deduplicated host inventory
	Hosts []Host
	// Errors is the combined per-unit error summary, empty if all units succeeded
	Errors string
	// UnitsTotal is the number of work units the target was partitioned into
	UnitsTotal int
	// UnitsCompleted is the number of units that produced a result
	UnitsCompleted int
	// UnitsFailed is the number of completed units that recorded an error
	UnitsFailed int
	// Duration is the whole-scan wall-clock time
	Duration time.Duration
}
