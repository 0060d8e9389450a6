// Package memory is a mutex-protected, in-process reference
// implementation of persistence.Port — no database, no disk. It backs
// cmd/demo and anywhere a caller wants the full generate/execute cycle
// without wiring a real store.
//
// Grounded on the teacher's
// internal/modules/planning/in_memory_recommendation_repository.go:
// one struct per store, a sync.RWMutex guarding plain maps, and a
// zerolog.Logger field scoped with .With().Str("repository", ...).
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/persistence"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// build holds one buildID's full dataset.
type build struct {
	accounts map[string]domain.Account
	reps     map[string]domain.SalesRep
	opps     []domain.Opportunity
	configs  map[string]domain.Configuration // scope -> config
	assigns  map[string]persistence.AssignmentWrite
	audits   []persistence.AuditEntry
}

func newBuild() *build {
	return &build{
		accounts: make(map[string]domain.Account),
		reps:     make(map[string]domain.SalesRep),
		configs:  make(map[string]domain.Configuration),
		assigns:  make(map[string]persistence.AssignmentWrite),
	}
}

// Store is the in-memory persistence.Port implementation.
type Store struct {
	mu     sync.RWMutex
	builds map[string]*build
	log    zerolog.Logger
}

// New returns an empty Store.
func New(log zerolog.Logger) *Store {
	return &Store{
		builds: make(map[string]*build),
		log:    log.With().Str("repository", "persistence_inmemory").Logger(),
	}
}

func (s *Store) buildFor(buildID string) *build {
	b, ok := s.builds[buildID]
	if !ok {
		b = newBuild()
		s.builds[buildID] = b
	}
	return b
}

// Seed loads a build's starting accounts/reps/opportunities/config,
// overwriting anything previously seeded under the same buildID.
func (s *Store) Seed(buildID string, accounts []domain.Account, reps []domain.SalesRep, opps []domain.Opportunity, cfg domain.Configuration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := newBuild()
	for _, a := range accounts {
		a.IsParent = a.UltimateParentID == ""
		a.IsCustomer = a.HierarchyARR > 0
		b.accounts[a.AccountID] = a
	}
	for _, r := range reps {
		b.reps[r.RepID] = r
	}
	b.opps = append([]domain.Opportunity(nil), opps...)
	b.configs["all"] = cfg
	s.builds[buildID] = b
}

func (s *Store) ListParentAccounts(ctx context.Context, buildID string) ([]domain.AggregatedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buildFor(buildID)
	accounts := make([]domain.Account, 0, len(b.accounts))
	for _, a := range b.accounts {
		accounts = append(accounts, a)
	}
	reps := make([]domain.SalesRep, 0, len(b.reps))
	for _, r := range b.reps {
		reps = append(reps, r)
	}

	idx := domain.NewIndex(accounts, reps, b.opps)
	return domain.Aggregate(idx), nil
}

func (s *Store) ListOpportunities(ctx context.Context, buildID string, accountIDs []string) ([]domain.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buildFor(buildID)
	if len(accountIDs) == 0 {
		return append([]domain.Opportunity(nil), b.opps...), nil
	}

	want := make(map[string]bool, len(accountIDs))
	for _, id := range accountIDs {
		want[id] = true
	}
	out := make([]domain.Opportunity, 0, len(b.opps))
	for _, o := range b.opps {
		if want[o.AccountID] {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListReps(ctx context.Context, buildID string, filter persistence.RepFilter) ([]domain.SalesRep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buildFor(buildID)
	out := make([]domain.SalesRep, 0, len(b.reps))
	for _, r := range b.reps {
		if filter.EligibleOnly && !r.Eligible() {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) LoadConfig(ctx context.Context, buildID string, scope string) (domain.Configuration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := s.buildFor(buildID)
	return b.configs[scope], nil
}

func (s *Store) SaveConfig(ctx context.Context, buildID string, scope string, patch domain.Configuration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	b.configs[scope] = patch
	return nil
}

func (s *Store) WriteProposedOwners(ctx context.Context, buildID string, batch []persistence.OwnerWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	for _, w := range batch {
		a, ok := b.accounts[w.AccountID]
		if !ok {
			continue
		}
		a.NewOwnerID = w.NewOwnerID
		b.accounts[w.AccountID] = a
	}
	return nil
}

func (s *Store) WriteProposedOppOwners(ctx context.Context, buildID string, batch []persistence.OwnerWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	byAccount := make(map[string]string, len(batch))
	for _, w := range batch {
		byAccount[w.AccountID] = w.NewOwnerID
	}
	for i, o := range b.opps {
		if newOwner, ok := byAccount[o.AccountID]; ok {
			b.opps[i].NewOwnerID = newOwner
		}
	}
	return nil
}

func (s *Store) UpsertAssignments(ctx context.Context, buildID string, batch []persistence.AssignmentWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	for _, w := range batch {
		b.assigns[w.AccountID] = w
	}
	return nil
}

func (s *Store) AppendAudit(ctx context.Context, entry persistence.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(entry.BuildID)
	b.audits = append(b.audits, entry)
	return nil
}

func (s *Store) CreateBackfillRep(ctx context.Context, buildID string, leavingRepID string) (domain.SalesRep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	leaving, ok := b.reps[leavingRepID]
	if !ok {
		return domain.SalesRep{}, fmt.Errorf("leaving rep not found: %s", leavingRepID)
	}

	rep := domain.SalesRep{
		RepID:                "backfill-" + uuid.New().String(),
		Name:                 "BF-" + leaving.Name,
		Region:               leaving.Region,
		TeamTier:             leaving.TeamTier,
		PEFirms:              append([]string(nil), leaving.PEFirms...),
		IsActive:             true,
		IncludeInAssignments: true,
		IsBackfillTarget:     true,
	}
	b.reps[rep.RepID] = rep

	s.log.Info().Str("build_id", buildID).Str("leaving_rep_id", leavingRepID).Str("backfill_rep_id", rep.RepID).Msg("created backfill rep")
	return rep, nil
}

func (s *Store) MigrateToBackfillRep(ctx context.Context, buildID string, fromRepID, toRepID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	moved := 0
	for id, a := range b.accounts {
		if a.OwnerID == fromRepID {
			a.OwnerID = toRepID
			b.accounts[id] = a
			moved++
		}
	}
	for i, o := range b.opps {
		if o.OwnerID == fromRepID {
			b.opps[i].OwnerID = toRepID
		}
	}

	s.log.Info().Str("build_id", buildID).Str("from_rep_id", fromRepID).Str("to_rep_id", toRepID).Int("accounts_moved", moved).Msg("migrated accounts to backfill rep")
	return nil
}

func (s *Store) SetBackfillSource(ctx context.Context, buildID string, repID string, isSource bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	rep, ok := b.reps[repID]
	if !ok {
		return fmt.Errorf("rep not found: %s", repID)
	}
	rep.IsBackfillSource = isSource
	b.reps[repID] = rep
	return nil
}

func (s *Store) SetIncludeInAssignments(ctx context.Context, buildID string, repID string, include bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.buildFor(buildID)
	rep, ok := b.reps[repID]
	if !ok {
		return fmt.Errorf("rep not found: %s", repID)
	}
	rep.IncludeInAssignments = include
	b.reps[repID] = rep
	return nil
}

// Cache is a minimal in-process persistence.CacheInvalidator: it has no
// backing cache to evict, so it only records the most recent
// invalidation for inspection (by tests or a status endpoint).
type Cache struct {
	mu       sync.Mutex
	lastKeys []string
}

// NewCache returns an empty Cache.
func NewCache() *Cache {
	return &Cache{}
}

func (c *Cache) Invalidate(buildID string, keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastKeys = append([]string(nil), keys...)
}

// LastInvalidated returns the keys passed to the most recent Invalidate
// call.
func (c *Cache) LastInvalidated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lastKeys...)
}
