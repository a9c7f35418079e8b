package source

import (
	"context"
	"slices"
)

// Source yields the hostnames that should resolve to the proxy.
type Source interface {
	Hosts(ctx context.Context) Hosts
}

// Hosts is a set of hostnames.
type Hosts map[string]struct{}

func NewHosts(hosts ...string) Hosts {
	h := make(Hosts, len(hosts))
	for _, host := range hosts {
		h.Add(host)
	}
	return h
}

func (h Hosts) Add(host string) {
	h[host] = struct{}{}
}

func (h Hosts) Has(host string) bool {
	_, ok := h[host]
	return ok
}

// Difference returns the hosts in h that are not in other, sorted.
func (h Hosts) Difference(other Hosts) []string {
	out := []string{}
	for host := range h {
		if !other.Has(host) {
			out = append(out, host)
		}
	}
	slices.Sort(out)
	return out
}

func (h Hosts) Sorted() []string {
	out := make([]string, 0, len(h))
	for host := range h {
		out = append(out, host)
	}
	slices.Sort(out)
	return out
}
