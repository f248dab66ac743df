// Package parsers converts external scan tool output artifacts into the
// engine's host model. Each parser handles one tool format and satisfies
// the engine's ResultParser interface.
package parsers

import (
	"os"
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/netsweep/internal/scanning"
)

// NmapXML parses nmap -oX output artifacts.
type NmapXML struct {
	// IncludeDown keeps hosts whose status is not "up"
	IncludeDown bool
}

// NewNmapXML creates an nmap XML parser with default settings.
func NewNmapXML() *NmapXML {
	return &NmapXML{}
}

// Parse reads an nmap XML artifact and returns the hosts it describes.
// Only ports in state "open" become services; down hosts are skipped
// unless IncludeDown is set.
func (p *NmapXML) Parse(outputPath string) ([]scanning.Host, error) {
	data, err := os.ReadFile(outputPath) //nolint:gosec // path assigned by the workspace
	if err != nil {
		return nil, err
	}
	var run nmap.Run
	if err := nmap.Parse(data, &run); err != nil {
		return nil, err
	}

	hosts := make([]scanning.Host, 0, len(run.Hosts))
	for i := range run.Hosts {
		if host, ok := p.convertHost(&run.Hosts[i]); ok {
			hosts = append(hosts, host)
		}
	}
	return hosts, nil
}

// convertHost maps one nmap host record onto the engine's host model.
func (p *NmapXML) convertHost(h *nmap.Host) (scanning.Host, bool) {
	if len(h.Addresses) == 0 {
		return scanning.Host{}, false
	}
	if !p.IncludeDown && h.Status.State != "up" {
		return scanning.Host{}, false
	}

	host := scanning.Host{
		IP: h.Addresses[0].Addr,
	}
	if len(h.Hostnames) > 0 {
		host.Hostname = h.Hostnames[0].Name
	}
	if len(h.OS.Matches) > 0 {
		host.OS = h.OS.Matches[0].Name
	}

	for j := range h.Ports {
		port := &h.Ports[j]
		if port.State.State != "open" {
			continue
		}
		host.Services = append(host.Services, scanning.Service{
			Port:     port.ID,
			Protocol: port.Protocol,
			Name:     port.Service.Name,
			Version:  serviceVersion(&port.Service),
		})
	}
	return host, true
}

// serviceVersion joins the detected product and version into one string,
// matching how nmap presents them.
func serviceVersion(svc *nmap.Service) string {
	parts := make([]string, 0, 2)
	if svc.Product != "" {
		parts = append(parts, svc.Product)
	}
	if svc.Version != "" {
		parts = append(parts, svc.Version)
	}
	return strings.Join(parts, " ")
}
