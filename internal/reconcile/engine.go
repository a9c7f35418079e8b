package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/evanofslack/adguard-dns-sync/internal/config"
	"github.com/evanofslack/adguard-dns-sync/internal/metrics"
	"github.com/evanofslack/adguard-dns-sync/internal/provider"
	"github.com/evanofslack/adguard-dns-sync/internal/source"
)

type Engine interface {
	Reconcile(ctx context.Context) (Results, error)
}

// Verifier checks that a host resolves to answer once a rewrite has been added.
type Verifier interface {
	Verify(ctx context.Context, host, answer string) error
}

type engine struct {
	source      source.Source
	dnsProvider provider.Provider
	target      string
	owns        provider.OwnerFunc
	dryRun      bool
	protected   map[string]bool
	verifier    Verifier
	metrics     *metrics.Metrics
	log         *slog.Logger
}

type Option func(*engine)

// WithOwner replaces the default answer == target ownership predicate.
func WithOwner(owns provider.OwnerFunc) Option {
	return func(e *engine) { e.owns = owns }
}

func WithVerifier(v Verifier) Option {
	return func(e *engine) { e.verifier = v }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *engine) { e.log = l }
}

func NewEngine(src source.Source, dp provider.Provider, cfg *config.Config, metrics *metrics.Metrics, opts ...Option) *engine {
	protected := make(map[string]bool)
	for _, r := range cfg.Reconcile.ProtectedRecords {
		protected[r] = true
	}
	e := &engine{
		source:      src,
		dnsProvider: dp,
		target:      cfg.DNS.Target,
		owns:        provider.OwnedBy(cfg.DNS.Target),
		dryRun:      cfg.Reconcile.DryRun,
		protected:   protected,
		metrics:     metrics,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile runs one full cycle. An error means the cycle was abandoned before any change was made.
func (e *engine) Reconcile(ctx context.Context) (Results, error) {
	e.log.Info("Starting full sync", "target", e.target)

	desired := e.source.Hosts(ctx)
	e.metrics.SetDesiredHosts(len(desired))

	if err := e.dnsProvider.Authenticate(ctx); err != nil {
		return Results{}, fmt.Errorf("authenticate: %w", err)
	}

	rewrites, err := e.dnsProvider.ListRewrites(ctx)
	if err != nil {
		e.log.Error("Could not fetch existing rewrites", "error", err)
		return Results{}, fmt.Errorf("list rewrites: %w", err)
	}
	managed := source.NewHosts(provider.Managed(rewrites, e.owns)...)
	e.metrics.SetManagedHosts(len(managed))
	e.log.Debug("Compared hosts", "desired", len(desired), "managed", len(managed), "remote", len(rewrites))

	plan := e.generatePlan(desired, managed)
	if plan.IsEmpty() {
		e.log.Info("DNS is already in sync. No changes needed.")
		return Results{InSync: true, Skipped: plan.Skip, DryRun: e.dryRun}, nil
	}

	results := e.executePlan(ctx, plan)
	e.log.Info("Sync complete",
		"added", len(results.Added),
		"removed", len(results.Removed),
		"skipped", len(results.Skipped),
		"failed", len(results.Failures))
	return results, nil
}

func (e *engine) generatePlan(desired, managed source.Hosts) Plan {
	plan := Plan{}
	recordType := provider.RecordType(e.target)

	for _, host := range desired.Difference(managed) {
		if e.isProtected(host) {
			e.log.Warn("Skipping protected record", "host", host)
			e.metrics.IncDNSOperation("skip", recordType)
			plan.Skip = append(plan.Skip, host)
			continue
		}
		plan.Add = append(plan.Add, host)
		e.metrics.IncDNSOperation("create", recordType)
	}

	for _, host := range managed.Difference(desired) {
		if e.isProtected(host) {
			e.log.Info("Skipping delete protected record", "host", host)
			e.metrics.IncDNSOperation("skip", recordType)
			plan.Skip = append(plan.Skip, host)
			continue
		}
		plan.Remove = append(plan.Remove, host)
		e.metrics.IncDNSOperation("delete", recordType)
	}
	return plan
}

func (e *engine) executePlan(ctx context.Context, plan Plan) Results {
	results := Results{Skipped: plan.Skip, DryRun: e.dryRun}

	if e.dryRun {
		for _, host := range plan.Add {
			e.log.Info("Dry run mode - would add host", "host", host, "answer", e.target)
		}
		for _, host := range plan.Remove {
			e.log.Info("Dry run mode - would remove host", "host", host, "answer", e.target)
		}
		results.Added = append(results.Added, plan.Add...)
		results.Removed = append(results.Removed, plan.Remove...)
		return results
	}

	if len(plan.Add) > 0 {
		e.log.Info("Adding new hosts", "count", len(plan.Add))
	}
	for _, host := range plan.Add {
		rewrite := provider.Rewrite{Domain: host, Answer: e.target}
		e.log.Info("Adding host", "host", host)
		if err := e.dnsProvider.AddRewrite(ctx, rewrite); err != nil {
			e.log.Error("Failed to add host", "host", host, "error", err)
			results.Failures = append(results.Failures, OperationResult{Rewrite: rewrite, Op: "create", Error: err.Error()})
			continue
		}
		results.Added = append(results.Added, host)
	}

	if len(plan.Remove) > 0 {
		e.log.Info("Removing stale hosts", "count", len(plan.Remove))
	}
	for _, host := range plan.Remove {
		rewrite := provider.Rewrite{Domain: host, Answer: e.target}
		e.log.Info("Removing host", "host", host)
		if err := e.dnsProvider.DeleteRewrite(ctx, rewrite); err != nil {
			e.log.Error("Failed to remove host", "host", host, "error", err)
			results.Failures = append(results.Failures, OperationResult{Rewrite: rewrite, Op: "delete", Error: err.Error()})
			continue
		}
		results.Removed = append(results.Removed, host)
	}

	if e.verifier != nil {
		for _, host := range results.Added {
			if err := e.verifier.Verify(ctx, host, e.target); err != nil {
				e.log.Warn("Added host does not resolve to target", "host", host, "answer", e.target, "error", err)
				results.Mismatched = append(results.Mismatched, host)
			}
		}
	}

	if len(results.Failures) > 0 {
		e.log.Warn("Sync finished with failed operations", "failures", len(results.Failures))
	}
	return results
}

func (e *engine) isProtected(host string) bool {
	return e.protected[host]
}
