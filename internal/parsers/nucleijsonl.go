package parsers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/anstrom/netsweep/internal/scanning"
)

// Scanner buffer sizes for JSONL findings, which can carry large
// matched-at payloads.
const (
	jsonlInitialBuffer = 64 * 1024
	jsonlMaxLineLength = 4 * 1024 * 1024
)

// NucleiJSONL parses nuclei -jsonl output artifacts. Each line is one
// finding; findings against the same address are folded into one host.
type NucleiJSONL struct{}

// NewNucleiJSONL creates a nuclei JSONL parser.
func NewNucleiJSONL() *NucleiJSONL {
	return &NucleiJSONL{}
}

// nucleiFinding is the subset of a nuclei result line the engine uses.
type nucleiFinding struct {
	TemplateID string `json:"template-id"`
	Host       string `json:"host"`
	IP         string `json:"ip"`
	Port       string `json:"port"`
	Type       string `json:"type"`
	MatchedAt  string `json:"matched-at"`
	Info       struct {
		Name     string `json:"name"`
		Severity string `json:"severity"`
	} `json:"info"`
}

// Parse reads a JSONL artifact and returns one host per distinct address,
// with one service per distinct (port, protocol) across its findings.
func (p *NucleiJSONL) Parse(outputPath string) ([]scanning.Host, error) {
	f, err := os.Open(outputPath) //nolint:gosec // path assigned by the workspace
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	byIP := make(map[string]*scanning.Host)
	var order []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, jsonlInitialBuffer), jsonlMaxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var finding nucleiFinding
		if err := json.Unmarshal([]byte(line), &finding); err != nil {
			return nil, fmt.Errorf("malformed finding on line %d: %w", lineNo, err)
		}
		addr := finding.address()
		if addr == "" {
			continue
		}
		host, ok := byIP[addr]
		if !ok {
			host = &scanning.Host{IP: addr}
			byIP[addr] = host
			order = append(order, addr)
		}
		if svc, ok := finding.service(); ok {
			appendService(host, svc)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	hosts := make([]scanning.Host, 0, len(order))
	for _, addr := range order {
		hosts = append(hosts, *byIP[addr])
	}
	return hosts, nil
}

// address picks the finding's host identity, preferring the resolved IP.
func (f *nucleiFinding) address() string {
	if f.IP != "" {
		return f.IP
	}
	host := f.Host
	if strings.Contains(host, "://") {
		if idx := strings.Index(host, "://"); idx >= 0 {
			host = host[idx+3:]
		}
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// service derives a (port, protocol) service from the finding, when the
// finding carries enough to name one.
func (f *nucleiFinding) service() (scanning.Service, bool) {
	portStr := f.Port
	if portStr == "" {
		portStr = portFromMatchedAt(f.MatchedAt)
	}
	if portStr == "" {
		return scanning.Service{}, false
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return scanning.Service{}, false
	}
	protocol := "tcp"
	if f.Type == "udp" {
		protocol = "udp"
	}
	return scanning.Service{
		Port:     uint16(port),
		Protocol: protocol,
		Name:     f.Info.Name,
	}, true
}

// portFromMatchedAt pulls the port out of a matched-at value, which may be
// a bare host:port or a full URL carrying a path or query.
func portFromMatchedAt(matched string) string {
	if idx := strings.Index(matched, "://"); idx >= 0 {
		matched = matched[idx+3:]
	}
	if idx := strings.IndexAny(matched, "/?#"); idx >= 0 {
		matched = matched[:idx]
	}
	if _, p, err := net.SplitHostPort(matched); err == nil {
		return p
	}
	return ""
}

// appendService adds a service unless the host already has one on the same
// (port, protocol).
func appendService(host *scanning.Host, svc scanning.Service) {
	for _, existing := range host.Services {
		if existing.Port == svc.Port && existing.Protocol == svc.Protocol {
			return
		}
	}
	host.Services = append(host.Services, svc)
}
