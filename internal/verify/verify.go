package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"
)

var ErrMismatch = errors.New("answer mismatch")

// Resolver queries a DNS server directly to confirm rewrites are being served.
type Resolver struct {
	server string
	client *dns.Client
}

func New(server string, timeout time.Duration) *Resolver {
	if _, _, err := net.SplitHostPort(server); err != nil {
		server = net.JoinHostPort(server, "53")
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (r *Resolver) Server() string {
	return r.server
}

// Verify returns nil when host resolves to answer. IP answers are checked
// against A or AAAA records, anything else against the CNAME target.
func (r *Resolver) Verify(ctx context.Context, host, answer string) error {
	qtype := dns.TypeCNAME
	addr, err := netip.ParseAddr(answer)
	isIP := err == nil
	if isIP {
		qtype = dns.TypeA
		if addr.Is6() && !addr.Is4In6() {
			qtype = dns.TypeAAAA
		}
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), qtype)
	m.RecursionDesired = true

	resp, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return fmt.Errorf("query %s: %w", host, err)
	}
	if resp.Rcode != dns.RcodeSuccess {
		return fmt.Errorf("query %s: %w: rcode %s", host, ErrMismatch, dns.RcodeToString[resp.Rcode])
	}

	var got []string
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.A:
			if isIP && sameIP(v.A, addr) {
				return nil
			}
			got = append(got, v.A.String())
		case *dns.AAAA:
			if isIP && sameIP(v.AAAA, addr) {
				return nil
			}
			got = append(got, v.AAAA.String())
		case *dns.CNAME:
			if !isIP && strings.EqualFold(v.Target, dns.Fqdn(answer)) {
				return nil
			}
			got = append(got, v.Target)
		}
	}
	slog.Debug("Unexpected DNS answer", "host", host, "want", answer, "got", got, "server", r.server)
	return fmt.Errorf("%s resolves to %v, want %s: %w", host, got, answer, ErrMismatch)
}

func sameIP(ip net.IP, want netip.Addr) bool {
	got, ok := netip.AddrFromSlice(ip)
	return ok && got.Unmap() == want.Unmap()
}
