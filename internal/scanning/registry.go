package scanning

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/anstrom/netsweep/internal/logging"
	"github.com/anstrom/netsweep/internal/metrics"
)

// terminatePollInterval is how often TerminateAll rechecks for exits
// during the grace period.
const terminatePollInterval = 50 * time.Millisecond

// processController is the signalling surface the registry needs. The
// runner registers a processGroup so termination reaches forked
// descendants; tests substitute fakes.
type processController interface {
	Signal(sig os.Signal) error
	Kill() error
}

// ProcessHandle ties a live subprocess to its work unit.
type ProcessHandle struct {
	UnitID  string
	Target  string
	Started time.Time

	proc processController
}

// Terminate asks the process to exit gracefully.
func (h *ProcessHandle) Terminate() error {
	return h.proc.Signal(syscall.SIGTERM)
}

// Kill forcibly ends the process.
func (h *ProcessHandle) Kill() error {
	return h.proc.Kill()
}

// ProcessRegistry is the shared, mutex-guarded set of currently running
// scan subprocesses. It is owned by one Coordinator, scoped to a single
// scan invocation, and passed into the runner explicitly so cancellation
// can reach every in-flight process regardless of which worker spawned it.
type ProcessRegistry struct {
	mu          sync.Mutex
	handles     map[string]*ProcessHandle
	terminating bool
}

// NewProcessRegistry creates an empty registry.
func NewProcessRegistry() *ProcessRegistry {
	return &ProcessRegistry{
		handles: make(map[string]*ProcessHandle),
	}
}

// Register records a live subprocess for a work unit. If cancellation has
// already begun, the process is terminated immediately so late spawns
// cannot outlive the scan.
func (r *ProcessRegistry) Register(unitID, target string, proc processController) *ProcessHandle {
	handle := &ProcessHandle{
		UnitID:  unitID,
		Target:  target,
		Started: time.Now(),
		proc:    proc,
	}

	r.mu.Lock()
	r.handles[unitID] = handle
	terminating := r.terminating
	count := len(r.handles)
	r.mu.Unlock()

	metrics.GetGlobalMetrics().SetActiveProcesses(count)

	if terminating {
		if err := handle.Terminate(); err != nil {
			logging.Warn("Failed to terminate late-registered process",
				"unit_id", unitID, "error", err)
		}
	}
	return handle
}

// Deregister removes a unit's handle. Safe to call for unknown units.
func (r *ProcessRegistry) Deregister(unitID string) {
	r.mu.Lock()
	delete(r.handles, unitID)
	count := len(r.handles)
	r.mu.Unlock()

	metrics.GetGlobalMetrics().SetActiveProcesses(count)
}

// Len returns the number of currently registered processes.
func (r *ProcessRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// snapshot copies the current handle set.
func (r *ProcessRegistry) snapshot() []*ProcessHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*ProcessHandle, 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	return out
}

// TerminateAll terminates every registered process, escalating to kill for
// any still registered after the grace period. It never blocks past
// grace plus one poll interval and is safe to call concurrently with
// ongoing dispatch.
func (r *ProcessRegistry) TerminateAll(grace time.Duration) {
	r.mu.Lock()
	r.terminating = true
	r.mu.Unlock()

	live := r.snapshot()
	if len(live) == 0 {
		return
	}

	logging.Info("Terminating active scan processes", "count", len(live))
	for _, h := range live {
		if err := h.Terminate(); err != nil {
			logging.Debug("Terminate signal failed", "unit_id", h.UnitID, "error", err)
		}
	}

	// Give processes the grace period to exit; workers deregister them as
	// their waits return.
	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if r.Len() == 0 {
			return
		}
		time.Sleep(terminatePollInterval)
	}

	for _, h := range r.snapshot() {
		logging.Warn("Process survived grace period, killing", "unit_id", h.UnitID)
		if err := h.Kill(); err != nil {
			logging.Debug("Kill failed", "unit_id", h.UnitID, "error", err)
		}
	}
}
