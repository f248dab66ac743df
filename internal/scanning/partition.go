package scanning

import (
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/google/uuid"

	"github.com/anstrom/netsweep/internal/errors"
)

const (
	// splitPrefixLen is the subnet size large CIDR targets are split into.
	splitPrefixLen = 24

	// Default chunk thresholds per target flavor.
	DefaultChunkSize     = 256
	DefaultFileChunkSize = 100
)

// ChunkPolicy bounds the size of host-list work units.
type ChunkPolicy struct {
	// ChunkSize is the per-unit limit for in-memory address lists
	ChunkSize int
	// FileChunkSize is the per-unit limit for newline-file host lists
	FileChunkSize int
}

// DefaultChunkPolicy returns the standard chunk thresholds.
func DefaultChunkPolicy() ChunkPolicy {
	return ChunkPolicy{
		ChunkSize:     DefaultChunkSize,
		FileChunkSize: DefaultFileChunkSize,
	}
}

// Partition splits a scan target into bounded work units. It is pure and
// deterministic: no subprocesses, no filesystem access. Host chunks stay in
// memory on the unit and are materialized by the runner; output paths are
// assigned by the coordinator.
//
// CIDR targets with an IPv4 prefix shorter than /24 are split into the
// exact set of /24 subnets covering the range. Host lists longer than the
// chunk threshold are split into ceil(N/threshold) fixed-size chunks that
// together preserve the original set. Single hosts are never chunked.
func Partition(target Target, profile Profile, policy ChunkPolicy) ([]WorkUnit, error) {
	if policy.ChunkSize <= 0 {
		policy.ChunkSize = DefaultChunkSize
	}
	if policy.FileChunkSize <= 0 {
		policy.FileChunkSize = DefaultFileChunkSize
	}

	switch target.Kind {
	case TargetCIDR:
		return partitionCIDR(target.CIDR, profile)
	case TargetHostList:
		return partitionHosts(target.Hosts, profile, policy.ChunkSize)
	case TargetHostFile:
		// The coordinator resolves the file into Hosts before partitioning;
		// only the chunk threshold differs from an in-memory list.
		return partitionHosts(target.Hosts, profile, policy.FileChunkSize)
	case TargetSingleHost:
		return partitionSingle(target.Address, profile)
	default:
		return nil, errors.NewScanError(errors.CodeValidation,
			fmt.Sprintf("unknown target kind: %s", target.Kind))
	}
}

// partitionCIDR produces one unit per covering /24, or a single unit for
// networks of /24 or smaller. IPv6 networks are never split.
func partitionCIDR(cidr string, profile Profile) ([]WorkUnit, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(errors.CodeValidation,
			"invalid CIDR notation", cidr, err)
	}

	ones, _ := ipnet.Mask.Size()
	ip4 := ipnet.IP.To4()
	if ip4 == nil || ones >= splitPrefixLen {
		return []WorkUnit{newUnit(ipnet.String(), nil, profile)}, nil
	}

	count := 1 << (splitPrefixLen - ones)
	base := binary.BigEndian.Uint32(ip4)

	units := make([]WorkUnit, 0, count)
	for i := 0; i < count; i++ {
		addr := make(net.IP, net.IPv4len)
		binary.BigEndian.PutUint32(addr, base+uint32(i)<<8) //nolint:gosec // i < 2^24
		subnet := fmt.Sprintf("%s/%d", addr.String(), splitPrefixLen)
		units = append(units, newUnit(subnet, nil, profile))
	}
	return units, nil
}

// partitionHosts chunks an address list into fixed-size units.
func partitionHosts(hosts []string, profile Profile, threshold int) ([]WorkUnit, error) {
	cleaned := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if strings.ContainsAny(h, " \t") {
			return nil, errors.ErrInvalidTarget(h)
		}
		cleaned = append(cleaned, h)
	}
	if len(cleaned) == 0 {
		return nil, errors.ErrEmptyTarget()
	}

	if len(cleaned) <= threshold {
		return []WorkUnit{newUnit("", cleaned, profile)}, nil
	}

	units := make([]WorkUnit, 0, (len(cleaned)+threshold-1)/threshold)
	for start := 0; start < len(cleaned); start += threshold {
		end := start + threshold
		if end > len(cleaned) {
			end = len(cleaned)
		}
		units = append(units, newUnit("", cleaned[start:end], profile))
	}
	return units, nil
}

// partitionSingle produces exactly one unit for one host.
func partitionSingle(addr string, profile Profile) ([]WorkUnit, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.ErrEmptyTarget()
	}
	if strings.ContainsAny(addr, " \t") {
		return nil, errors.ErrInvalidTarget(addr)
	}
	return []WorkUnit{newUnit(addr, nil, profile)}, nil
}

// newUnit builds a work unit with a fresh ID. The output path is assigned
// later by the coordinator from the workspace.
func newUnit(targetSpec string, hosts []string, profile Profile) WorkUnit {
	return WorkUnit{
		ID:         uuid.New().String(),
		TargetSpec: targetSpec,
		Hosts:      hosts,
		Profile:    profile,
	}
}
