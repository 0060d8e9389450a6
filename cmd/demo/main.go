// Package main is a standalone demonstration of the assignment engine
// against an in-memory persistence.Port, with no database or HTTP server
// required: it seeds a handful of accounts and reps, runs generate() and
// execute(), and prints the resulting report to the console.
package main

import (
	"context"
	"fmt"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/events"
	"github.com/aristath/territory-assign/internal/modules/assignment"
	"github.com/aristath/territory-assign/internal/modules/solver"
	"github.com/aristath/territory-assign/internal/persistence/memory"
	"github.com/aristath/territory-assign/pkg/logger"
)

const demoBuildID = "demo"

func main() {
	log := logger.New(logger.Config{Level: "info", Pretty: true})
	log.Info().Msg("running assignment engine demo")

	store := memory.New(log)
	store.Seed(demoBuildID, demoAccounts(), demoReps(), nil, domain.Configuration{})

	manager := events.NewManager()
	unsubscribe := manager.Subscribe(func(evt events.EventWithData) {
		log.Info().Str("module", evt.Module).Msg("progress event")
	})
	defer unsubscribe()

	sv := solver.New(solver.Config{}, nil)
	orch := assignment.New(store, sv, manager, memory.NewCache())

	ctx := context.Background()
	report, err := orch.Generate(ctx, demoBuildID, assignment.ScopeAll)
	if err != nil {
		log.Fatal().Err(err).Msg("generate failed")
	}

	fmt.Printf("generated %d proposals for %d/%d accounts\n",
		len(report.Proposals), report.AssignedAccounts, report.TotalAccounts)
	for _, p := range report.Proposals {
		fmt.Printf("  %s -> %s (%s): %s\n", p.AccountID, p.ProposedOwnerID, p.RuleApplied, p.Rationale)
	}
	for _, c := range report.Conflicts {
		fmt.Printf("  conflict: %s [%s] %s\n", c.AccountID, c.Severity, c.Reason)
	}
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}

	result, err := orch.Execute(ctx, demoBuildID, report.Proposals, false)
	if err != nil {
		log.Fatal().Err(err).Msg("execute failed")
	}
	if result.Halted {
		fmt.Printf("execute halted: rep %s projected %.0f%% over target\n",
			result.Overload.RepID, result.Overload.OverloadPercent*100)
		return
	}
	fmt.Printf("executed: %d accounts written\n", result.WrittenAccounts)
}

func demoAccounts() []domain.Account {
	return []domain.Account{
		{AccountID: "acct-1", ARR: 120000, HierarchyARR: 120000, OwnerID: "rep-1", ExpansionTier: domain.TierT1},
		{AccountID: "acct-2", ARR: 45000, HierarchyARR: 45000, OwnerID: "rep-1", ExpansionTier: domain.TierT2},
		{AccountID: "acct-3", ARR: 80000, HierarchyARR: 80000, OwnerID: "", ExpansionTier: domain.TierT1},
		{AccountID: "acct-4", ARR: 15000, HierarchyARR: 15000, OwnerID: "rep-2", ExpansionTier: domain.TierT2},
	}
}

func demoReps() []domain.SalesRep {
	return []domain.SalesRep{
		{RepID: "rep-1", Name: "Alex Rivera", IsActive: true, IncludeInAssignments: true},
		{RepID: "rep-2", Name: "Sam Okafor", IsActive: true, IncludeInAssignments: true},
	}
}
