package scanning

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// State is the coordinator's scan lifecycle phase.
type State string

const (
	StateIdle         State = "idle"
	StatePartitioning State = "partitioning"
	StateDispatched   State = "dispatched"
	StateDraining     State = "draining"
	StateCompleted    State = "completed"
	StateCancelled    State = "cancelled"
)

// ScanWorkspace is the on-disk surface the engine needs for one scan:
// per-unit artifact paths plus the runner's chunk-file store.
type ScanWorkspace interface {
	ArtifactStore
	UnitOutputPath(unitID string) string
}

// CoordinatorConfig holds the knobs for a coordinator.
type CoordinatorConfig struct {
	// BinaryPath is the external scan executable
	BinaryPath string
	// MaxWorkers caps concurrent subprocesses (default 5)
	MaxWorkers int
	// UnitTimeout is the per-unit wall-clock budget
	UnitTimeout time.Duration
	// KillGrace is the terminate-to-kill escalation pause
	KillGrace time.Duration
	// TailLines bounds the output kept as failure context
	TailLines int
	// ChunkPolicy bounds host-list work unit sizes
	ChunkPolicy ChunkPolicy
}

// Coordinator is the façade over the whole engine. It validates the profile,
// partitions the target, dispatches units across the worker pool and merges
// results into an inventory. One scan runs at a time per coordinator; the
// process registry and cancel function are replaced on every invocation so
// cancellation can never leak across scans.
type Coordinator struct {
	cfg    CoordinatorConfig
	ws     ScanWorkspace
	parser ResultParser
	sink   Sink
	runner UnitRunner
	log    *logging.Logger

	mu       sync.Mutex
	state    State
	cancel   context.CancelFunc
	registry *ProcessRegistry
}

// NewCoordinator creates a coordinator using the production process runner.
func NewCoordinator(cfg CoordinatorConfig, ws ScanWorkspace, parser ResultParser, sink Sink) *Coordinator {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	if sink == nil {
		sink = DiscardSink()
	}
	return &Coordinator{
		cfg:    cfg,
		ws:     ws,
		parser: parser,
		sink:   sink,
		log:    logging.Default().WithComponent("coordinator"),
		state:  StateIdle,
	}
}

// WithRunner overrides the unit runner. Used by tests to substitute fakes.
func (c *Coordinator) WithRunner(runner UnitRunner) *Coordinator {
	c.runner = runner
	return c
}

// State returns the current lifecycle phase.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ScanNetwork scans a CIDR network.
func (c *Coordinator) ScanNetwork(ctx context.Context, cidr string, profile Profile) (*Inventory, error) {
	return c.scan(ctx, "network", CIDRTarget(cidr), profile)
}

// ScanList scans an explicit list of addresses.
func (c *Coordinator) ScanList(ctx context.Context, hosts []string, profile Profile) (*Inventory, error) {
	return c.scan(ctx, "list", HostListTarget(hosts), profile)
}

// ScanFile scans the hosts named in a newline-separated file.
func (c *Coordinator) ScanFile(ctx context.Context, path string, profile Profile) (*Inventory, error) {
	return c.scan(ctx, "file", HostFileTarget(path), profile)
}

// ScanSingle scans one host.
func (c *Coordinator) ScanSingle(ctx context.Context, addr string, profile Profile) (*Inventory, error) {
	return c.scan(ctx, "single", SingleHostTarget(addr), profile)
}

// Cancel stops an in-progress scan: queued units are abandoned and every
// live subprocess is terminated, escalating to kill after the grace period.
// The interrupted scan call still returns normally with the results that
// completed before cancellation. Safe to call at any time.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	registry := c.registry
	active := c.state == StatePartitioning || c.state == StateDispatched || c.state == StateDraining
	c.mu.Unlock()

	if !active || cancel == nil {
		return
	}
	c.log.Info("Cancelling scan")
	cancel()
	registry.TerminateAll(c.cfg.KillGrace)
}

// scan runs the full pipeline for one invocation.
func (c *Coordinator) scan(ctx context.Context, mode string, target Target, profile Profile) (*Inventory, error) {
	scanID := uuid.New().String()
	log := c.log.WithScanID(scanID)
	start := time.Now()

	scanCtx, cancel, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	// Validation failures end the invocation before any subprocess runs;
	// the lifecycle still lands on Completed so the state machine never
	// pretends the call did not happen.
	if err := profile.Validate(); err != nil {
		c.setState(StateCompleted)
		return nil, errors.WrapScanError(errors.CodeValidation, "invalid scan profile", err)
	}
	if target.Kind == TargetHostFile {
		hosts, err := readHostFile(target.FilePath)
		if err != nil {
			c.setState(StateCompleted)
			return nil, err
		}
		target.Hosts = hosts
	}

	units, err := Partition(target, profile, c.cfg.ChunkPolicy)
	if err != nil {
		c.setState(StateCompleted)
		log.ErrorScan("Target partitioning failed", target.String(), err)
		return nil, err
	}
	for i := range units {
		units[i].OutputPath = c.ws.UnitOutputPath(units[i].ID)
	}
	log.InfoScan("Scan dispatched", target.String(), "units", len(units), "workers", c.cfg.MaxWorkers)

	runner := c.runner
	if runner == nil {
		runner = NewProcessRunner(RunnerConfig{
			BinaryPath:  c.cfg.BinaryPath,
			UnitTimeout: c.cfg.UnitTimeout,
			KillGrace:   c.cfg.KillGrace,
			TailLines:   c.cfg.TailLines,
		}, c.currentRegistry(), c.parser, c.sink, c.ws)
	}

	c.setState(StateDispatched)
	tracked := &dispatchTracker{
		runner:    runner,
		remaining: int64(len(units)),
		drained:   func() { c.setState(StateDraining) },
	}
	results := RunUnits(scanCtx, units, tracked, c.cfg.MaxWorkers)

	hosts, errSummary := Merge(results)
	canceled := scanCtx.Err() != nil

	inv := &Inventory{
		ScanID:         scanID,
		Hosts:          hosts,
		Errors:         errSummary,
		UnitsTotal:     len(units),
		UnitsCompleted: len(results),
		UnitsFailed:    countFailed(results),
		Duration:       time.Since(start),
	}

	status := "completed"
	final := StateCompleted
	if canceled {
		status = "cancelled"
		final = StateCancelled
	}
	c.setState(final)

	m := metrics.GetGlobalMetrics()
	m.IncrementScansTotal(mode, status)
	m.RecordScanDuration(mode, inv.Duration)
	m.AddHostsMerged(mode, len(hosts))

	log.InfoScan("Scan finished", target.String(),
		"status", status,
		"hosts", len(hosts),
		"units_completed", inv.UnitsCompleted,
		"units_failed", inv.UnitsFailed,
		"duration", inv.Duration)
	return inv, nil
}

// begin transitions Idle (or a finished state) into Partitioning and
// installs a fresh cancel function and process registry for this invocation.
func (c *Coordinator) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateIdle, StateCompleted, StateCancelled:
	default:
		return nil, nil, errors.NewScanError(errors.CodeValidation, "scan already in progress")
	}
	scanCtx, cancel := context.WithCancel(ctx)
	c.state = StatePartitioning
	c.cancel = cancel
	c.registry = NewProcessRegistry()
	return scanCtx, cancel, nil
}

// dispatchTracker flips the coordinator into Draining once the last
// queued unit has been handed to a worker: from then on the pool is only
// waiting for outstanding results. If cancellation empties the queue
// first, the scan goes straight from Dispatched to Cancelled.
type dispatchTracker struct {
	runner    UnitRunner
	remaining int64
	drained   func()
}

func (d *dispatchTracker) Run(ctx context.Context, unit WorkUnit) ScanResult {
	if atomic.AddInt64(&d.remaining, -1) == 0 {
		d.drained()
	}
	return d.runner.Run(ctx, unit)
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) currentRegistry() *ProcessRegistry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry
}

// readHostFile loads a newline-separated host file. Blank lines and
// comment lines are skipped.
func readHostFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied target file
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeFileNotFound,
			"failed to read target file", path, err)
	}
	var hosts []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hosts = append(hosts, line)
	}
	return hosts, nil
}

func countFailed(results []ScanResult) int {
	n := 0
	for _, res := range results {
		if res.Error != "" {
			n++
		}
	}
	return n
}
