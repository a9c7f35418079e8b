package cloudflare

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/libdns/libdns"

	"github.com/evanofslack/adguard-dns-sync/internal/config"
	"github.com/evanofslack/adguard-dns-sync/internal/metrics"
	"github.com/evanofslack/adguard-dns-sync/internal/provider"
)

// CloudflareProvider stores rewrites as A, AAAA or CNAME records in Cloudflare zones.
type CloudflareProvider struct {
	client     *cloudflare.API
	metrics    *metrics.Metrics
	ttl        int
	retryDelay time.Duration
	zoneNames  []string
	zones      map[string]string // Cache zone name to ID mapping
}

var _ provider.Provider = (*CloudflareProvider)(nil)

func New(cfg config.Cloudflare, dns config.DNS, metrics *metrics.Metrics, opts ...cloudflare.Option) (*CloudflareProvider, error) {
	token := cfg.Token
	if token == "" {
		return nil, fmt.Errorf("cloudflare API token required")
	}
	if len(cfg.Zones) == 0 {
		return nil, fmt.Errorf("cloudflare zones required")
	}

	// Same timeout as every other outbound call, and no client-side retries:
	// a failed list abandons the cycle.
	defaults := []cloudflare.Option{
		cloudflare.HTTPClient(&http.Client{Timeout: dns.Timeout}),
		cloudflare.UsingRetryPolicy(0, 0, 0),
	}
	client, err := cloudflare.NewWithAPIToken(token, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:     client,
		metrics:    metrics,
		ttl:        cfg.TTL,
		retryDelay: dns.RetryDelay,
		zoneNames:  cfg.Zones,
		zones:      make(map[string]string),
	}, nil
}

// Authenticate verifies the API token and caches the IDs of all configured zones.
func (p *CloudflareProvider) Authenticate(ctx context.Context) error {
	slog.Info("Authenticating with Cloudflare", "zones", p.zoneNames)
	return provider.RetryForever(ctx, "cloudflare", p.retryDelay, func() error {
		if _, err := p.client.VerifyAPIToken(ctx); err != nil {
			p.metrics.IncAuthAttempt(false)
			return fmt.Errorf("verify api token: %w", err)
		}
		for _, zone := range p.zoneNames {
			if _, ok := p.zones[zone]; ok {
				continue
			}
			id, err := p.client.ZoneIDByName(zone)
			if err != nil {
				p.metrics.IncAuthAttempt(false)
				return fmt.Errorf("failed to get zone ID for %s: %w", zone, err)
			}
			p.zones[zone] = id
		}
		p.metrics.IncAuthAttempt(true)
		return nil
	})
}

func (p *CloudflareProvider) ListRewrites(ctx context.Context) ([]provider.Rewrite, error) {
	var result []provider.Rewrite
	for _, zone := range p.zoneNames {
		records, err := p.listRecords(ctx, zone, cloudflare.ListDNSRecordsParams{})
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			switch r.Type {
			case "A", "AAAA", "CNAME":
			default:
				continue
			}
			rec, err := libdns.RR{Name: r.Name, Type: r.Type, Data: r.Content}.Parse()
			if err != nil {
				slog.Warn("Skipping unparseable DNS record", "zone", zone, "name", r.Name, "type", r.Type, "error", err)
				continue
			}
			result = append(result, provider.FromLibdns(rec))
		}
	}
	return result, nil
}

func (p *CloudflareProvider) AddRewrite(ctx context.Context, rewrite provider.Rewrite) error {
	zone, zoneID, err := p.zoneFor(rewrite.Domain)
	if err != nil {
		p.metrics.IncDNSRequest("create", false)
		return err
	}

	record, err := provider.ToLibdns(rewrite, time.Duration(p.ttl)*time.Second)
	if err != nil {
		p.metrics.IncDNSRequest("create", false)
		return err
	}
	rr := record.RR()
	slog.Debug("Creating DNS record", "zone", zone, "name", rr.Name, "type", rr.Type, "data", rr.Data)

	params := cloudflare.CreateDNSRecordParams{
		Type:    rr.Type,
		Name:    rr.Name,
		Content: rr.Data,
		TTL:     p.ttl,
	}
	if _, err := p.client.CreateDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), params); err != nil {
		p.metrics.IncDNSRequest("create", false)
		return fmt.Errorf("failed to create DNS record: %w", err)
	}

	p.metrics.IncDNSRequest("create", true)
	return nil
}

func (p *CloudflareProvider) DeleteRewrite(ctx context.Context, rewrite provider.Rewrite) error {
	zone, zoneID, err := p.zoneFor(rewrite.Domain)
	if err != nil {
		p.metrics.IncDNSRequest("delete", false)
		return err
	}

	records, err := p.listRecords(ctx, zone, cloudflare.ListDNSRecordsParams{
		Name:    rewrite.Domain,
		Content: rewrite.Answer,
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		slog.Debug("Deleting DNS record", "zone", zone, "name", r.Name, "type", r.Type, "id", r.ID)
		if err := p.client.DeleteDNSRecord(ctx, cloudflare.ZoneIdentifier(zoneID), r.ID); err != nil {
			p.metrics.IncDNSRequest("delete", false)
			return fmt.Errorf("failed to delete DNS record: %w", err)
		}
		p.metrics.IncDNSRequest("delete", true)
	}
	return nil
}

func (p *CloudflareProvider) listRecords(ctx context.Context, zone string, params cloudflare.ListDNSRecordsParams) ([]cloudflare.DNSRecord, error) {
	start := time.Now()
	zoneID, ok := p.zones[zone]
	if !ok {
		return nil, fmt.Errorf("zone %s not resolved, authenticate first", zone)
	}

	// Get all records for the zone with pagination
	var allRecords []cloudflare.DNSRecord
	page := 1
	for {
		params.ResultInfo = cloudflare.ResultInfo{
			Page:    page,
			PerPage: 100,
		}
		records, resultInfo, err := p.client.ListDNSRecords(ctx, cloudflare.ZoneIdentifier(zoneID), params)
		if err != nil {
			p.metrics.IncDNSRequest("read", false)
			return nil, fmt.Errorf("failed to list DNS records: %w", err)
		}

		allRecords = append(allRecords, records...)
		if resultInfo == nil || page >= resultInfo.TotalPages {
			break
		}
		page++
	}

	p.metrics.IncDNSRequest("read", true)
	slog.Debug("Retrieved DNS records", "zone", zone, "count", len(allRecords), "duration", time.Since(start))
	return allRecords, nil
}

// zoneFor picks the most specific configured zone containing domain.
func (p *CloudflareProvider) zoneFor(domain string) (string, string, error) {
	best := ""
	for _, zone := range p.zoneNames {
		if belongsToZone(domain, zone) && len(zone) > len(best) {
			best = zone
		}
	}
	if best == "" {
		return "", "", fmt.Errorf("no configured zone for %s", domain)
	}
	id, ok := p.zones[best]
	if !ok {
		return "", "", fmt.Errorf("zone %s not resolved, authenticate first", best)
	}
	return best, id, nil
}

func belongsToZone(host, zone string) bool {
	// Match exact zone or subdomains with dot separator
	return host == zone || strings.HasSuffix(host, "."+zone)
}
