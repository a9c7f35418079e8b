package provider

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/libdns/libdns"
)

// Provider is a DNS control plane holding domain -> answer rewrites.
type Provider interface {
	// Authenticate blocks until a session is established or ctx is done.
	Authenticate(ctx context.Context) error
	ListRewrites(ctx context.Context) ([]Rewrite, error)
	AddRewrite(ctx context.Context, rewrite Rewrite) error
	DeleteRewrite(ctx context.Context, rewrite Rewrite) error
}

type Rewrite struct {
	Domain string `json:"domain"`
	Answer string `json:"answer"`
}

// OwnerFunc reports whether a rewrite is managed by this service.
type OwnerFunc func(Rewrite) bool

// OwnedBy accepts rewrites whose answer equals target.
func OwnedBy(target string) OwnerFunc {
	return func(r Rewrite) bool {
		return r.Answer == target
	}
}

// Managed returns the domains of the rewrites accepted by owns.
func Managed(rewrites []Rewrite, owns OwnerFunc) []string {
	var domains []string
	for _, r := range rewrites {
		if owns(r) {
			domains = append(domains, r.Domain)
		}
	}
	return domains
}

// ToLibdns maps a rewrite to an address record for IP answers and a CNAME otherwise.
func ToLibdns(r Rewrite, ttl time.Duration) (libdns.Record, error) {
	if r.Answer == "" {
		return nil, fmt.Errorf("empty answer for %s", r.Domain)
	}
	if addr, err := netip.ParseAddr(r.Answer); err == nil {
		return &libdns.Address{
			Name: r.Domain,
			IP:   addr,
			TTL:  ttl,
		}, nil
	}
	return &libdns.CNAME{
		Name:   r.Domain,
		Target: r.Answer,
		TTL:    ttl,
	}, nil
}

func FromLibdns(r libdns.Record) Rewrite {
	rr := r.RR()
	return Rewrite{
		Domain: rr.Name,
		Answer: rr.Data,
	}
}

// RecordType is the DNS record type a rewrite answer resolves as, or "" if the answer is empty.
func RecordType(answer string) string {
	rec, err := ToLibdns(Rewrite{Answer: answer}, 0)
	if err != nil {
		return ""
	}
	return rec.RR().Type
}
