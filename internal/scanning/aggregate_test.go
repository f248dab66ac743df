package scanning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeUnionsHostsByIP(t *testing.T) {
	results := []ScanResult{
		{
			UnitID: "u1",
			Target: "10.0.0.0/24",
			Hosts: []Host{
				{IP: "10.0.0.5", Services: []Service{{Port: 22, Protocol: "tcp", Name: "ssh"}}},
				{IP: "10.0.0.9", Services: []Service{{Port: 80, Protocol: "tcp", Name: "http"}}},
			},
		},
		{
			UnitID: "u2",
			Target: "10.0.1.0/24",
			Hosts: []Host{
				{IP: "10.0.0.5", Hostname: "db01", Services: []Service{
					{Port: 22, Protocol: "tcp", Name: "ssh"},
					{Port: 5432, Protocol: "tcp", Name: "postgresql"},
				}},
			},
		},
	}

	hosts, errSummary := Merge(results)
	require.Empty(t, errSummary)
	require.Len(t, hosts, 2)

	merged := hosts[0]
	assert.Equal(t, "10.0.0.5", merged.IP)
	assert.Equal(t, "db01", merged.Hostname)
	require.Len(t, merged.Services, 2, "duplicate (port, protocol) must collapse")
	assert.Equal(t, uint16(22), merged.Services[0].Port)
	assert.Equal(t, uint16(5432), merged.Services[1].Port)
}

func TestMergeSamePortDifferentProtocol(t *testing.T) {
	results := []ScanResult{
		{Hosts: []Host{{IP: "10.0.0.1", Services: []Service{{Port: 53, Protocol: "tcp"}}}}},
		{Hosts: []Host{{IP: "10.0.0.1", Services: []Service{{Port: 53, Protocol: "udp"}}}}},
	}

	hosts, _ := Merge(results)
	require.Len(t, hosts, 1)
	require.Len(t, hosts[0].Services, 2)
	assert.Equal(t, "tcp", hosts[0].Services[0].Protocol)
	assert.Equal(t, "udp", hosts[0].Services[1].Protocol)
}

func TestMergeFirstNonEmptyScalarWins(t *testing.T) {
	results := []ScanResult{
		{Hosts: []Host{{IP: "10.0.0.1", Hostname: "web01"}}},
		{Hosts: []Host{{IP: "10.0.0.1", Hostname: "other", OS: "Linux"}}},
	}

	hosts, _ := Merge(results)
	require.Len(t, hosts, 1)
	assert.Equal(t, "web01", hosts[0].Hostname)
	assert.Equal(t, "Linux", hosts[0].OS)
}

func TestMergeSortsHostsNumerically(t *testing.T) {
	results := []ScanResult{
		{Hosts: []Host{{IP: "10.0.0.10"}, {IP: "10.0.0.2"}, {IP: "10.0.0.9"}}},
	}

	hosts, _ := Merge(results)
	require.Len(t, hosts, 3)
	assert.Equal(t, "10.0.0.2", hosts[0].IP)
	assert.Equal(t, "10.0.0.9", hosts[1].IP)
	assert.Equal(t, "10.0.0.10", hosts[2].IP)
}

func TestMergeConcatenatesTaggedErrors(t *testing.T) {
	results := []ScanResult{
		{Target: "10.0.0.0/24", Error: "[TIMEOUT] scan process exceeded time budget (target: 10.0.0.0/24)"},
		{Target: "10.0.1.0/24", Hosts: []Host{{IP: "10.0.1.1"}}},
		{Target: "10.0.2.0/24", Error: "[NON_ZERO_EXIT] scan tool reported failure (target: 10.0.2.0/24)"},
	}

	hosts, errSummary := Merge(results)
	assert.Len(t, hosts, 1)
	assert.Contains(t, errSummary, "10.0.0.0/24: [TIMEOUT]")
	assert.Contains(t, errSummary, "10.0.2.0/24: [NON_ZERO_EXIT]")
	assert.Contains(t, errSummary, "; ")
}

func TestMergeEmptyResults(t *testing.T) {
	hosts, errSummary := Merge(nil)
	assert.Empty(t, hosts)
	assert.Empty(t, errSummary)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	original := []Service{{Port: 22, Protocol: "tcp"}}
	results := []ScanResult{
		{Hosts: []Host{{IP: "10.0.0.1", Services: original}}},
		{Hosts: []Host{{IP: "10.0.0.1", Services: []Service{{Port: 80, Protocol: "tcp"}}}}},
	}

	_, _ = Merge(results)
	assert.Len(t, original, 1, "input service slice must not grow")
}
