package scanning

import (
	"fmt"
	"strings"
)

// BuildArgs assembles the external tool's argument list for one work unit.
// inputPath is the materialized host-list file for chunked units, empty
// otherwise. The target (positional or file flag) always comes last.
func BuildArgs(unit WorkUnit, inputPath string) []string {
	p := unit.Profile
	args := make([]string, 0, 16)

	switch p.Kind {
	case KindDiscovery:
		args = append(args, "-sn")
	case KindTop100:
		args = append(args, "--top-ports", "100")
	case KindTop1000:
		args = append(args, "--top-ports", "1000")
	case KindAllPorts:
		args = append(args, "-p-")
	case KindCustom:
		args = append(args, "-p", p.CustomPorts)
	}

	if p.Timing > 0 {
		args = append(args, fmt.Sprintf("-T%d", p.Timing))
	}
	// Discovery scans ping by definition; -Pn would contradict them.
	if p.SkipDiscovery && p.Kind != KindDiscovery {
		args = append(args, "-Pn")
	}
	if p.Verbose {
		args = append(args, "-v")
	}
	if p.Interface != "" {
		args = append(args, "-e", p.Interface)
	}
	if len(p.ExcludeHosts) > 0 {
		args = append(args, "--exclude", strings.Join(p.ExcludeHosts, ","))
	}
	if p.ExcludePorts != "" {
		args = append(args, "--exclude-ports", p.ExcludePorts)
	}
	if p.UserAgent != "" {
		args = append(args, "--script-args", "http.useragent="+p.UserAgent)
	}

	args = append(args, "-oX", unit.OutputPath)

	if inputPath != "" {
		args = append(args, "-iL", inputPath)
	} else {
		args = append(args, unit.TargetSpec)
	}
	return args
}
