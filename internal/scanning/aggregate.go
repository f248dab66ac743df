package scanning

import (
	"bytes"
	"net"
	"sort"
	"strings"
)

// Merge folds per-unit results into a deduplicated host inventory and a
// combined error summary. Host identity is the IP address; two records for
// the same IP are unioned, with services deduplicated on (port, protocol).
// For scalar fields the first non-empty value wins. Unit errors are tagged
// with their target and concatenated; a unit that found no hosts and hit no
// error simply contributes nothing.
func Merge(results []ScanResult) ([]Host, string) {
	byIP := make(map[string]*Host)
	order := make([]string, 0, len(results))
	var errParts []string

	for _, res := range results {
		if res.Error != "" {
			errParts = append(errParts, res.Target+": "+res.Error)
		}
		for _, h := range res.Hosts {
			existing, ok := byIP[h.IP]
			if !ok {
				merged := h
				merged.Services = append([]Service(nil), h.Services...)
				byIP[h.IP] = &merged
				order = append(order, h.IP)
				continue
			}
			mergeHost(existing, h)
		}
	}

	hosts := make([]Host, 0, len(order))
	for _, ip := range order {
		h := byIP[ip]
		sortServices(h.Services)
		hosts = append(hosts, *h)
	}
	sortHosts(hosts)
	return hosts, strings.Join(errParts, "; ")
}

// mergeHost unions an incoming record into an existing one.
func mergeHost(dst *Host, src Host) {
	if dst.Hostname == "" {
		dst.Hostname = src.Hostname
	}
	if dst.OS == "" {
		dst.OS = src.OS
	}
	seen := make(map[serviceKey]bool, len(dst.Services))
	for _, s := range dst.Services {
		seen[serviceKey{s.Port, s.Protocol}] = true
	}
	for _, s := range src.Services {
		key := serviceKey{s.Port, s.Protocol}
		if seen[key] {
			continue
		}
		seen[key] = true
		dst.Services = append(dst.Services, s)
	}
}

// sortHosts orders hosts by address, numerically for parseable IPs so
// 10.0.0.9 sorts before 10.0.0.10.
func sortHosts(hosts []Host) {
	sort.Slice(hosts, func(i, j int) bool {
		a, b := net.ParseIP(hosts[i].IP), net.ParseIP(hosts[j].IP)
		if a != nil && b != nil {
			return bytes.Compare(a.To16(), b.To16()) < 0
		}
		return hosts[i].IP < hosts[j].IP
	})
}

// sortServices orders services by port, then protocol.
func sortServices(services []Service) {
	sort.Slice(services, func(i, j int) bool {
		if services[i].Port != services[j].Port {
			return services[i].Port < services[j].Port
		}
		return services[i].Protocol < services[j].Protocol
	})
}
