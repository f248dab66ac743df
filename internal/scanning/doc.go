// Package scanning implements the concurrent scan orchestration engine for
// netsweep. It partitions a scan target into bounded work units, runs the
// external scan tool as one subprocess per unit under a capped worker pool,
// streams live output, enforces per-unit wall-clock timeouts, supports
// cooperative cancellation through a shared process registry, and merges
// per-unit results into a single deduplicated host inventory.
//
// The main entry point is the Coordinator, which wires together the
// partitioner, the worker pool, the process runner and the result
// aggregator for a single scan invocation:
//
//	coord := scanning.NewCoordinator(scanning.CoordinatorConfig{
//		BinaryPath: "nmap",
//		MaxWorkers: 5,
//	}, scanDir, parser, sink)
//	inv, err := coord.ScanNetwork(ctx, "10.0.0.0/16", profile)
//
// Per-unit failures (spawn errors, timeouts, non-zero exits, unparsable
// output) are confined to their unit and surface only through the
// aggregated error summary; only target validation aborts a scan.
package scanning
