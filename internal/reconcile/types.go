package reconcile

import (
	"github.com/evanofslack/adguard-dns-sync/internal/provider"
)

type Plan struct {
	Add    []string
	Remove []string
	// Skip holds protected hosts that would otherwise have been changed.
	Skip []string
}

func (p Plan) IsEmpty() bool {
	return len(p.Add) == 0 && len(p.Remove) == 0
}

type Results struct {
	Added    []string
	Removed  []string
	Skipped  []string
	Failures []OperationResult
	// Mismatched lists added hosts that did not resolve to the target after apply.
	Mismatched []string
	InSync     bool
	DryRun     bool
}

type OperationResult struct {
	Rewrite provider.Rewrite
	Op      string
	Error   string
}
