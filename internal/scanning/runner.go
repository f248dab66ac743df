package scanning

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/anstrom/netsweep/internal/errors"
	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

const (
	defaultUnitTimeout = 10 * time.Minute
	defaultKillGrace   = 5 * time.Second
	defaultTailLines   = 20

	// Scanner buffer sizes for subprocess output lines.
	readerInitialBuffer = 64 * 1024
	readerMaxLineLength = 1024 * 1024
)

// ResultParser converts the tool's output artifact into hosts. It is
// swappable per tool; the engine only cares about the produced host shape.
type ResultParser interface {
	Parse(outputPath string) ([]Host, error)
}

// ArtifactStore is the slice of the workspace the runner needs: chunk-file
// materialization and cleanup.
type ArtifactStore interface {
	WriteHostList(unitID string, hosts []string) (string, error)
	Remove(path string) error
}

// RunnerConfig holds per-process execution settings.
type RunnerConfig struct {
	// BinaryPath is the external scan executable
	BinaryPath string
	// UnitTimeout is the wall-clock budget per work unit
	UnitTimeout time.Duration
	// KillGrace is the pause between terminate and kill
	KillGrace time.Duration
	// TailLines bounds the output kept as failure context
	TailLines int
}

// ProcessRunner executes one external scan process per work unit: it builds
// the command line, streams combined output to the sink, enforces the
// wall-clock timeout and registers the process for cancellation.
type ProcessRunner struct {
	cfg      RunnerConfig
	registry *ProcessRegistry
	parser   ResultParser
	sink     Sink
	store    ArtifactStore
	log      *logging.Logger
}

// NewProcessRunner creates a runner. The registry, parser and store are
// required; a nil sink discards output.
func NewProcessRunner(cfg RunnerConfig, registry *ProcessRegistry,
	parser ResultParser, sink Sink, store ArtifactStore) *ProcessRunner {
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = defaultUnitTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = defaultKillGrace
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = defaultTailLines
	}
	if sink == nil {
		sink = DiscardSink()
	}
	return &ProcessRunner{
		cfg:      cfg,
		registry: registry,
		parser:   parser,
		sink:     sink,
		store:    store,
		log:      logging.Default().WithComponent("runner"),
	}
}

// Run executes one work unit to completion, timeout or cancellation and
// returns its result. Blocking from the calling worker's perspective.
func (r *ProcessRunner) Run(ctx context.Context, unit WorkUnit) ScanResult {
	start := time.Now()
	result := ScanResult{
		UnitID: unit.ID,
		Target: unit.Describe(),
	}

	inputPath := ""
	if len(unit.Hosts) > 0 {
		path, err := r.store.WriteHostList(unit.ID, unit.Hosts)
		if err != nil {
			r.recordFailure(&result, errors.ErrSpawnFailed(result.Target, err).WithUnit(unit.ID), nil)
			return r.finish(result, start, "error")
		}
		inputPath = path
		defer func() {
			if err := r.store.Remove(path); err != nil {
				r.log.Warn("Failed to remove chunk file", "unit_id", unit.ID, "path", path, "error", err)
			}
		}()
	}

	args := BuildArgs(unit, inputPath)
	result.RawCommand = r.cfg.BinaryPath + " " + strings.Join(args, " ")
	r.log.Debug("Starting scan process", "unit_id", unit.ID, "command", result.RawCommand)

	cmd := exec.Command(r.cfg.BinaryPath, args...) //nolint:gosec // argv built from validated profile
	// The tool gets its own process group so termination reaches any
	// children it forks; a wrapper script must not leave orphans holding
	// the output pipe open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// Combined stdout+stderr on a single pipe so lines reach the sink in
	// the order the tool emits them.
	pr, pw, err := os.Pipe()
	if err != nil {
		r.recordFailure(&result, errors.ErrSpawnFailed(result.Target, err).WithUnit(unit.ID), nil)
		return r.finish(result, start, "error")
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pw.Close()
		_ = pr.Close()
		r.recordFailure(&result, errors.ErrSpawnFailed(result.Target, err).WithUnit(unit.ID), nil)
		return r.finish(result, start, "error")
	}
	// The child holds its own copies of the write end.
	_ = pw.Close()

	group := processGroup{pid: cmd.Process.Pid}
	r.registry.Register(unit.ID, result.Target, group)
	defer r.registry.Deregister(unit.ID)

	tail := newTailBuffer(r.cfg.TailLines)
	readerDone := make(chan struct{})
	go r.streamOutput(pr, unit.ID, result.Target, tail, readerDone)

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	timer := time.NewTimer(r.cfg.UnitTimeout)
	defer timer.Stop()

	var exitErr error
	var timedOut, canceled bool
	select {
	case exitErr = <-waitErr:
	case <-timer.C:
		timedOut = true
		exitErr = r.stopProcess(group, waitErr)
	case <-ctx.Done():
		canceled = true
		exitErr = r.stopProcess(group, waitErr)
	}
	// Reader sees EOF once every holder of the write end is gone. A
	// descendant that escaped the process group could still keep the pipe
	// open, so the wait is bounded; closing the read end forces the
	// reader out.
	select {
	case <-readerDone:
	case <-time.After(r.cfg.KillGrace):
		_ = pr.Close()
		<-readerDone
	}

	switch {
	case canceled:
		result.Canceled = true
		r.log.Debug("Unit canceled", "unit_id", unit.ID)
		return r.finish(result, start, "canceled")
	case timedOut:
		scanErr := errors.ErrUnitTimeout(result.Target).WithUnit(unit.ID)
		r.recordFailure(&result, scanErr, tail.contents())
		return r.finish(result, start, "error")
	case exitErr != nil:
		scanErr := errors.WrapScanErrorWithTarget(errors.CodeNonZeroExit,
			"scan tool reported failure", result.Target, exitErr).WithUnit(unit.ID)
		r.recordFailure(&result, scanErr, tail.contents())
		return r.finish(result, start, "error")
	}

	hosts, parseErr := r.collectArtifact(unit)
	if parseErr != nil {
		r.recordFailure(&result, parseErr, nil)
		return r.finish(result, start, "error")
	}
	result.Hosts = hosts
	r.log.InfoUnit("Unit completed", unit.ID,
		"target", result.Target, "hosts", len(hosts))
	return r.finish(result, start, "success")
}

// streamOutput reads combined subprocess output line by line, forwarding
// each line to the sink and the tail buffer, and signals done on EOF.
func (r *ProcessRunner) streamOutput(pr *os.File, unitID, target string,
	tail *tailBuffer, done chan<- struct{}) {
	defer close(done)
	defer func() { _ = pr.Close() }()

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, readerInitialBuffer), readerMaxLineLength)
	for scanner.Scan() {
		text := scanner.Text()
		tail.add(text)
		r.sink.Emit(Line{UnitID: unitID, Target: target, Text: text})
		metrics.GetGlobalMetrics().IncrementOutputLines()
	}
}

// stopProcess terminates the subprocess and everything it forked,
// escalating to kill after the grace period, and reaps the exit status.
func (r *ProcessRunner) stopProcess(group processGroup, waitErr <-chan error) error {
	if err := group.Signal(syscall.SIGTERM); err != nil {
		r.log.Debug("Terminate signal failed", "pgid", group.pid, "error", err)
	}
	select {
	case err := <-waitErr:
		return err
	case <-time.After(r.cfg.KillGrace):
	}
	if err := group.Kill(); err != nil {
		r.log.Debug("Kill failed", "pgid", group.pid, "error", err)
	}
	return <-waitErr
}

// processGroup signals the tool's whole process group, so forked
// descendants die with it and release the output pipe. Satisfies
// processController, so registry-driven cancellation gets the same reach.
type processGroup struct {
	pid int
}

func (g processGroup) Signal(sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return syscall.EINVAL
	}
	return syscall.Kill(-g.pid, s)
}

func (g processGroup) Kill() error {
	return syscall.Kill(-g.pid, syscall.SIGKILL)
}

// collectArtifact validates the output file and hands it to the parser.
func (r *ProcessRunner) collectArtifact(unit WorkUnit) ([]Host, *errors.ScanError) {
	info, err := os.Stat(unit.OutputPath)
	if err != nil || info.Size() == 0 {
		return nil, errors.ErrEmptyArtifact(unit.OutputPath).WithUnit(unit.ID)
	}
	hosts, err := r.parser.Parse(unit.OutputPath)
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeParse,
			"failed to parse scan output", unit.Describe(), err).WithUnit(unit.ID)
	}
	return hosts, nil
}

// recordFailure fills the result's error, attaching trailing output as
// context when available.
func (r *ProcessRunner) recordFailure(result *ScanResult, scanErr *errors.ScanError, tail []string) {
	msg := scanErr.Error()
	if len(tail) > 0 {
		msg += " | last output: " + strings.Join(tail, " / ")
	}
	result.Error = msg
	metrics.GetGlobalMetrics().IncrementUnitErrors(string(scanErr.Code))
	r.log.ErrorUnit("Unit failed", result.UnitID, scanErr, "target", result.Target)
}

// finish stamps the duration and records unit metrics.
func (r *ProcessRunner) finish(result ScanResult, start time.Time, status string) ScanResult {
	result.Duration = time.Since(start)
	metrics.GetGlobalMetrics().IncrementUnitsTotal(status)
	metrics.GetGlobalMetrics().RecordUnitDuration(status, result.Duration)
	return result
}

// tailBuffer keeps the last N output lines. It is written only by the
// reader goroutine and read only after the done signal, so it needs no
// locking.
type tailBuffer struct {
	max   int
	lines []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	if t.max <= 0 {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.max {
		t.lines = t.lines[1:]
	}
}

func (t *tailBuffer) contents() []string {
	return t.lines
}
