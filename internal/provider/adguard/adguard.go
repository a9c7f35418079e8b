package adguard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/evanofslack/adguard-dns-sync/internal/config"
	"github.com/evanofslack/adguard-dns-sync/internal/metrics"
	"github.com/evanofslack/adguard-dns-sync/internal/provider"
)

const (
	loginPath   = "/control/login"
	listPath    = "/control/rewrite/list"
	addPath     = "/control/rewrite/add"
	deletePath  = "/control/rewrite/delete"
	maxErrorLen = 512
)

var ErrNotAuthenticated = errors.New("adguard session not authenticated")

// AdGuardProvider manages DNS rewrites through the AdGuard Home control API.
// Every Authenticate call starts a fresh cookie session.
type AdGuardProvider struct {
	baseURL    string
	user       string
	password   string
	timeout    time.Duration
	retryDelay time.Duration
	metrics    *metrics.Metrics
	http       *http.Client
}

var _ provider.Provider = (*AdGuardProvider)(nil)

func New(cfg config.AdGuard, dns config.DNS, metrics *metrics.Metrics) (*AdGuardProvider, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("adguard url required")
	}
	return &AdGuardProvider{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		user:       cfg.User,
		password:   cfg.Password,
		timeout:    dns.Timeout,
		retryDelay: dns.RetryDelay,
		metrics:    metrics,
	}, nil
}

func (p *AdGuardProvider) Authenticate(ctx context.Context) error {
	slog.Info("Authenticating with AdGuard Home", "url", p.baseURL)
	p.http = nil
	return provider.RetryForever(ctx, "adguard", p.retryDelay, func() error {
		return p.login(ctx)
	})
}

func (p *AdGuardProvider) login(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	client := &http.Client{Jar: jar, Timeout: p.timeout}

	creds := map[string]string{"name": p.user, "password": p.password}
	if err := p.post(ctx, client, loginPath, creds); err != nil {
		p.metrics.IncAuthAttempt(false)
		return fmt.Errorf("login: %w", err)
	}

	p.metrics.IncAuthAttempt(true)
	p.http = client
	slog.Debug("Authenticated with AdGuard Home", "url", p.baseURL)
	return nil
}

func (p *AdGuardProvider) ListRewrites(ctx context.Context) ([]provider.Rewrite, error) {
	if p.http == nil {
		return nil, ErrNotAuthenticated
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+listPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.http.Do(req)
	if err != nil {
		p.metrics.IncDNSRequest("read", false)
		return nil, fmt.Errorf("list rewrites: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		p.metrics.IncDNSRequest("read", false)
		return nil, fmt.Errorf("list rewrites: %w", err)
	}

	var rewrites []provider.Rewrite
	if err := json.NewDecoder(resp.Body).Decode(&rewrites); err != nil {
		p.metrics.IncDNSRequest("read", false)
		return nil, fmt.Errorf("parse rewrite list, err=%w", err)
	}

	p.metrics.IncDNSRequest("read", true)
	slog.Debug("Retrieved DNS rewrites", "count", len(rewrites), "duration", time.Since(start))
	return rewrites, nil
}

func (p *AdGuardProvider) AddRewrite(ctx context.Context, rewrite provider.Rewrite) error {
	slog.Debug("Creating DNS rewrite", "domain", rewrite.Domain, "answer", rewrite.Answer)
	return p.mutate(ctx, "create", addPath, rewrite)
}

func (p *AdGuardProvider) DeleteRewrite(ctx context.Context, rewrite provider.Rewrite) error {
	slog.Debug("Deleting DNS rewrite", "domain", rewrite.Domain, "answer", rewrite.Answer)
	return p.mutate(ctx, "delete", deletePath, rewrite)
}

func (p *AdGuardProvider) mutate(ctx context.Context, op, path string, rewrite provider.Rewrite) error {
	if p.http == nil {
		return ErrNotAuthenticated
	}
	if err := p.post(ctx, p.http, path, rewrite); err != nil {
		p.metrics.IncDNSRequest(op, false)
		return fmt.Errorf("%s rewrite %s: %w", op, rewrite.Domain, err)
	}
	p.metrics.IncDNSRequest(op, true)
	return nil
}

func (p *AdGuardProvider) post(ctx context.Context, client *http.Client, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorLen))
	return fmt.Errorf("adguard api request, status=%d, body=%q", resp.StatusCode, strings.TrimSpace(string(msg)))
}
