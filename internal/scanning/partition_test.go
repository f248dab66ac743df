package scanning

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/netsweep/internal/errors"
)

func TestPartitionCIDR(t *testing.T) {
	tests := []struct {
		name      string
		cidr      string
		wantUnits int
		wantFirst string
		wantLast  string
	}{
		{
			name:      "slash 24 stays whole",
			cidr:      "192.168.1.0/24",
			wantUnits: 1,
			wantFirst: "192.168.1.0/24",
			wantLast:  "192.168.1.0/24",
		},
		{
			name:      "slash 25 stays whole",
			cidr:      "192.168.1.128/25",
			wantUnits: 1,
			wantFirst: "192.168.1.128/25",
			wantLast:  "192.168.1.128/25",
		},
		{
			name:      "slash 22 splits into four",
			cidr:      "10.1.0.0/22",
			wantUnits: 4,
			wantFirst: "10.1.0.0/24",
			wantLast:  "10.1.3.0/24",
		},
		{
			name:      "slash 16 splits into 256",
			cidr:      "172.16.0.0/16",
			wantUnits: 256,
			wantFirst: "172.16.0.0/24",
			wantLast:  "172.16.255.0/24",
		},
		{
			name:      "host bits are masked before splitting",
			cidr:      "10.1.2.3/22",
			wantUnits: 4,
			wantFirst: "10.1.0.0/24",
			wantLast:  "10.1.3.0/24",
		},
		{
			name:      "ipv6 is never split",
			cidr:      "2001:db8::/32",
			wantUnits: 1,
			wantFirst: "2001:db8::/32",
			wantLast:  "2001:db8::/32",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := Partition(CIDRTarget(tt.cidr), Profile{Kind: KindTop100}, DefaultChunkPolicy())
			require.NoError(t, err)
			require.Len(t, units, tt.wantUnits)
			assert.Equal(t, tt.wantFirst, units[0].TargetSpec)
			assert.Equal(t, tt.wantLast, units[len(units)-1].TargetSpec)
		})
	}
}

func TestPartitionCIDRInvalid(t *testing.T) {
	_, err := Partition(CIDRTarget("not-a-network"), Profile{Kind: KindTop100}, DefaultChunkPolicy())
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	assert.True(t, errors.IsFatal(err))
}

func TestPartitionCIDRSubnetsAreContiguous(t *testing.T) {
	units, err := Partition(CIDRTarget("10.0.0.0/20"), Profile{Kind: KindDiscovery}, DefaultChunkPolicy())
	require.NoError(t, err)
	require.Len(t, units, 16)
	for i, unit := range units {
		assert.Equal(t, fmt.Sprintf("10.0.%d.0/24", i), unit.TargetSpec)
	}
}

func TestPartitionHostList(t *testing.T) {
	makeHosts := func(n int) []string {
		hosts := make([]string, n)
		for i := range hosts {
			hosts[i] = fmt.Sprintf("10.0.%d.%d", i/250, i%250)
		}
		return hosts
	}

	t.Run("small list is one unit", func(t *testing.T) {
		units, err := Partition(HostListTarget([]string{"10.0.0.1", "10.0.0.2"}),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, units[0].Hosts)
	})

	t.Run("list at threshold is one unit", func(t *testing.T) {
		units, err := Partition(HostListTarget(makeHosts(256)),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.NoError(t, err)
		assert.Len(t, units, 1)
	})

	t.Run("large list is chunked and preserves every host", func(t *testing.T) {
		hosts := makeHosts(600)
		units, err := Partition(HostListTarget(hosts),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.NoError(t, err)
		require.Len(t, units, 3)
		assert.Len(t, units[0].Hosts, 256)
		assert.Len(t, units[1].Hosts, 256)
		assert.Len(t, units[2].Hosts, 88)

		var flat []string
		for _, unit := range units {
			flat = append(flat, unit.Hosts...)
		}
		assert.Equal(t, hosts, flat)
	})

	t.Run("file lists use the smaller threshold", func(t *testing.T) {
		target := HostFileTarget("hosts.txt")
		target.Hosts = makeHosts(250)
		units, err := Partition(target, Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.NoError(t, err)
		require.Len(t, units, 3)
		assert.Len(t, units[0].Hosts, 100)
		assert.Len(t, units[2].Hosts, 50)
	})

	t.Run("blank entries are skipped", func(t *testing.T) {
		units, err := Partition(HostListTarget([]string{"10.0.0.1", "", "  ", "10.0.0.2"}),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, units[0].Hosts)
	})

	t.Run("entry with whitespace is rejected", func(t *testing.T) {
		_, err := Partition(HostListTarget([]string{"10.0.0.1 10.0.0.2"}),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})

	t.Run("all-blank list is rejected", func(t *testing.T) {
		_, err := Partition(HostListTarget([]string{"", "  "}),
			Profile{Kind: KindTop100}, DefaultChunkPolicy())
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})
}

func TestPartitionSingleHost(t *testing.T) {
	units, err := Partition(SingleHostTarget("192.168.1.10"),
		Profile{Kind: KindAllPorts}, DefaultChunkPolicy())
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "192.168.1.10", units[0].TargetSpec)
	assert.Empty(t, units[0].Hosts)

	_, err = Partition(SingleHostTarget("  "), Profile{Kind: KindTop100}, DefaultChunkPolicy())
	require.Error(t, err)
}

func TestPartitionUnitIDsAreUnique(t *testing.T) {
	units, err := Partition(CIDRTarget("10.0.0.0/20"), Profile{Kind: KindTop100}, DefaultChunkPolicy())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, unit := range units {
		assert.NotEmpty(t, unit.ID)
		assert.False(t, seen[unit.ID], "duplicate unit ID %s", unit.ID)
		seen[unit.ID] = true
	}
}

func TestPartitionCarriesProfile(t *testing.T) {
	profile := Profile{Kind: KindCustom, CustomPorts: "22,80", Timing: 4}
	units, err := Partition(CIDRTarget("10.0.0.0/23"), profile, DefaultChunkPolicy())
	require.NoError(t, err)
	for _, unit := range units {
		assert.Equal(t, profile, unit.Profile)
	}
}
