// Package stability implements the §4.3 stability lock classifier: the sole
// authority on which accounts must not move this run, and why.
package stability

import (
	"sort"
	"time"

	"github.com/aristath/territory-assign/internal/domain"
)

// Lock is the opaque result of classifying one account. Downstream code
// must treat it as opaque (§4.3) — only this package interprets LockType.
type Lock struct {
	IsLocked    bool
	LockType    domain.LockType
	TargetRepID string
	Reason      string
}

const (
	defaultCREThreshold           = 3
	defaultRenewalWindowDays      = 45
	defaultRecentChangeWindowDays = 90
)

// Classify runs the six checks of §4.3 in priority order; first match wins.
// now is injected so the classifier stays pure and testable.
func Classify(account domain.Account, idx *domain.Index, cfg domain.Configuration, now time.Time) Lock {
	// 1. manual_lock
	if account.ExcludeFromReassignment {
		return Lock{IsLocked: true, LockType: domain.LockManual, TargetRepID: account.OwnerID, Reason: "manually excluded from reassignment"}
	}

	// 2. backfill_migration
	if owner, ok := idx.Reps[account.OwnerID]; ok && owner.IsBackfillSource {
		target := owner.BackfillTargetRepID
		return Lock{IsLocked: true, LockType: domain.LockBackfillMigration, TargetRepID: target, Reason: "current owner is a backfill source; migrating to backfill target"}
	}

	// 3. cre_risk
	creThreshold := cfg.Stability.CREThreshold
	if creThreshold <= 0 {
		creThreshold = defaultCREThreshold
	}
	if account.CRECount >= creThreshold || account.CRERisk {
		return Lock{IsLocked: true, LockType: domain.LockCRERisk, TargetRepID: account.OwnerID, Reason: "open at-risk opportunities meet or exceed the CRE threshold"}
	}

	// 4. renewal_soon
	windowDays := cfg.Stability.RenewalWindowDays
	if windowDays <= 0 {
		windowDays = defaultRenewalWindowDays
	}
	if account.HasRenewalDate {
		window := now.Add(time.Duration(windowDays) * 24 * time.Hour)
		if !account.RenewalDate.After(window) {
			return Lock{IsLocked: true, LockType: domain.LockRenewalSoon, TargetRepID: account.OwnerID, Reason: "earliest renewal falls within the stability window"}
		}
	}

	// 5. pe_firm
	if account.PEFirm != "" {
		repIDs := make([]string, 0, len(idx.Reps))
		for id := range idx.Reps {
			repIDs = append(repIDs, id)
		}
		sort.Strings(repIDs)
		for _, id := range repIDs {
			rep := idx.Reps[id]
			for _, firm := range rep.PEFirms {
				if firm == account.PEFirm {
					return Lock{IsLocked: true, LockType: domain.LockPEFirm, TargetRepID: rep.RepID, Reason: "account's PE firm matches a rep's affinity list"}
				}
			}
		}
	}

	// 6. recent_change
	recentWindowDays := cfg.Stability.RecentChangeWindowDays
	if recentWindowDays <= 0 {
		recentWindowDays = defaultRecentChangeWindowDays
	}
	if !account.OwnerChangeDate.IsZero() {
		cutoff := now.Add(-time.Duration(recentWindowDays) * 24 * time.Hour)
		if account.OwnerChangeDate.After(cutoff) {
			return Lock{IsLocked: true, LockType: domain.LockRecentChange, TargetRepID: account.OwnerID, Reason: "owner changed within the recent-change stability window"}
		}
	}

	return Lock{IsLocked: false, LockType: domain.LockNone}
}

// Counts tallies how many accounts were locked by each LockType, for the
// §4.8 diagnostics report.
type Counts map[domain.LockType]int

// ClassifyAll classifies every account in accounts and returns the
// per-account lock map plus aggregate counts.
func ClassifyAll(accounts []domain.Account, idx *domain.Index, cfg domain.Configuration, now time.Time) (map[string]Lock, Counts) {
	locks := make(map[string]Lock, len(accounts))
	counts := make(Counts)

	for _, a := range accounts {
		lock := Classify(a, idx, cfg, now)
		locks[a.AccountID] = lock
		if lock.IsLocked {
			counts[lock.LockType]++
		}
	}

	return locks, counts
}
