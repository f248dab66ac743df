package scanning

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner completes units after a fixed delay and records the observed
// concurrency high-water mark.
type fakeRunner struct {
	delay time.Duration

	mu        sync.Mutex
	active    int
	peak      int
	ranUnits  []string
	failUnits map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, unit WorkUnit) ScanResult {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.ranUnits = append(f.ranUnits, unit.ID)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		return ScanResult{UnitID: unit.ID, Target: unit.Describe(), Canceled: true}
	}

	res := ScanResult{
		UnitID: unit.ID,
		Target: unit.Describe(),
		Hosts:  []Host{{IP: "10.0.0.1"}},
	}
	if f.failUnits[unit.ID] {
		res.Hosts = nil
		res.Error = "[NON_ZERO_EXIT] scan tool reported failure"
	}
	return res
}

func (f *fakeRunner) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

func makeUnits(n int) []WorkUnit {
	units := make([]WorkUnit, n)
	for i := range units {
		units[i] = WorkUnit{ID: fmt.Sprintf("unit-%d", i), TargetSpec: fmt.Sprintf("10.0.%d.0/24", i)}
	}
	return units
}

func TestRunUnitsCompletesEveryUnit(t *testing.T) {
	runner := &fakeRunner{delay: time.Millisecond}
	units := makeUnits(20)

	results := RunUnits(context.Background(), units, runner, 5)
	require.Len(t, results, 20)

	seen := make(map[string]bool)
	for _, res := range results {
		assert.False(t, seen[res.UnitID], "unit %s produced two results", res.UnitID)
		seen[res.UnitID] = true
	}
}

func TestRunUnitsRespectsWorkerCap(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	units := makeUnits(12)

	results := RunUnits(context.Background(), units, runner, 3)
	require.Len(t, results, 12)
	assert.LessOrEqual(t, runner.peakConcurrency(), 3)
}

func TestRunUnitsShrinksPoolToUnitCount(t *testing.T) {
	runner := &fakeRunner{delay: 10 * time.Millisecond}
	units := makeUnits(2)

	results := RunUnits(context.Background(), units, runner, 50)
	require.Len(t, results, 2)
	assert.LessOrEqual(t, runner.peakConcurrency(), 2)
}

func TestRunUnitsDefaultWorkerCount(t *testing.T) {
	runner := &fakeRunner{delay: 10 * time.Millisecond}
	units := makeUnits(20)

	results := RunUnits(context.Background(), units, runner, 0)
	require.Len(t, results, 20)
	assert.LessOrEqual(t, runner.peakConcurrency(), DefaultMaxWorkers)
}

func TestRunUnitsEmptyInput(t *testing.T) {
	runner := &fakeRunner{}
	assert.Nil(t, RunUnits(context.Background(), nil, runner, 5))
}

func TestRunUnitsPerUnitFailuresDoNotAbortSiblings(t *testing.T) {
	runner := &fakeRunner{
		delay:     time.Millisecond,
		failUnits: map[string]bool{"unit-3": true, "unit-7": true},
	}
	units := makeUnits(10)

	results := RunUnits(context.Background(), units, runner, 4)
	require.Len(t, results, 10)

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

// blockingRunner completes a fixed number of units immediately and blocks
// the rest until the context is canceled.
type blockingRunner struct {
	completeFirst int64
	started       int64
	release       chan struct{}
	releaseOnce   sync.Once
}

func (b *blockingRunner) Run(ctx context.Context, unit WorkUnit) ScanResult {
	n := atomic.AddInt64(&b.started, 1)
	if n <= b.completeFirst {
		return ScanResult{UnitID: unit.ID, Hosts: []Host{{IP: "10.0.0.1"}}}
	}
	b.releaseOnce.Do(func() { close(b.release) })
	<-ctx.Done()
	return ScanResult{UnitID: unit.ID, Canceled: true}
}

func TestRunUnitsCancellationKeepsCompletedResults(t *testing.T) {
	release := make(chan struct{})
	runner := &blockingRunner{completeFirst: 3, release: release}
	units := makeUnits(10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan []ScanResult, 1)
	go func() {
		done <- RunUnits(ctx, units, runner, 2)
	}()

	// Wait until the completed units are through and a worker is blocked,
	// then cancel the scan.
	<-release
	cancel()

	select {
	case results := <-done:
		// The three completed units survive; blocked and queued units do not.
		require.Len(t, results, 3)
		for _, res := range results {
			assert.False(t, res.Canceled)
			assert.Empty(t, res.Error)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain after cancellation")
	}
}

func TestRunUnitsCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{delay: time.Millisecond}
	results := RunUnits(ctx, makeUnits(5), runner, 2)
	assert.Empty(t, results)
}
