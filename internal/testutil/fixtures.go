package testutil

import (
	"time"

	"github.com/aristath/territory-assign/internal/domain"
)

// NewAccountFixtures returns a small, realistic set of parent accounts
// spanning tiers T1-T3 and a mix of owned/unowned rows, for tests that
// need more than one or two hand-built domain.Account values.
func NewAccountFixtures() []domain.Account {
	return []domain.Account{
		{
			AccountID:    "acct-globex",
			ARR:          180000,
			ATR:          20000,
			HierarchyARR: 180000,
			OwnerID:      "rep-rivera",
			ExpansionTier: domain.TierT1,
			Geo:           "NA",
			Industry:      "Manufacturing",
		},
		{
			AccountID:    "acct-initech",
			ARR:          62000,
			HierarchyARR: 62000,
			OwnerID:      "rep-rivera",
			ExpansionTier: domain.TierT2,
			Geo:           "NA",
			Industry:      "Financial Services",
		},
		{
			AccountID:    "acct-umbrella",
			ARR:          95000,
			HierarchyARR: 95000,
			OwnerID:      "",
			ExpansionTier: domain.TierT1,
			Geo:           "EMEA",
			Industry:      "Healthcare",
		},
		{
			AccountID:    "acct-soylent",
			ARR:          12000,
			HierarchyARR: 12000,
			OwnerID:      "rep-okafor",
			ExpansionTier: domain.TierT3,
			Geo:           "EMEA",
			Industry:      "Consumer Goods",
		},
	}
}

// NewSalesRepFixtures returns two active reps included in assignments,
// matching the owners referenced by NewAccountFixtures.
func NewSalesRepFixtures() []domain.SalesRep {
	return []domain.SalesRep{
		{
			RepID:                "rep-rivera",
			Name:                 "Alex Rivera",
			Region:               "NA",
			TeamTier:             "core",
			IsActive:             true,
			IncludeInAssignments: true,
		},
		{
			RepID:                "rep-okafor",
			Name:                 "Sam Okafor",
			Region:               "EMEA",
			TeamTier:             "core",
			IsActive:             true,
			IncludeInAssignments: true,
		},
	}
}

// NewOpportunityFixtures returns a handful of renewal and expansion
// opportunities against NewAccountFixtures' accounts.
func NewOpportunityFixtures() []domain.Opportunity {
	now := time.Now()
	return []domain.Opportunity{
		{
			AccountID:           "acct-globex",
			OwnerID:             "rep-rivera",
			OpportunityType:     "Renewals",
			AvailableToRenew:    180000,
			NetARR:              180000,
			RenewalEventDate:    now.AddDate(0, 2, 0),
			HasRenewalEventDate: true,
			CloseDate:           now.AddDate(0, 2, 0),
		},
		{
			AccountID:        "acct-initech",
			OwnerID:          "rep-rivera",
			OpportunityType:  "Expansion",
			NetARR:           15000,
			Amount:           15000,
			CloseDate:        now.AddDate(0, 1, 0),
		},
		{
			AccountID:        "acct-soylent",
			OwnerID:          "rep-okafor",
			OpportunityType:  "Renewals",
			AvailableToRenew: 12000,
			NetARR:           12000,
			RenewalEventDate: now.AddDate(0, 4, 0),
			HasRenewalEventDate: true,
			CloseDate:        now.AddDate(0, 4, 0),
		},
	}
}

// NewConfigurationFixture returns a Configuration with the variance and
// target knobs populated, leaving thresholds unset so threshold.Calculate
// exercises its full derivation path in tests that need it.
func NewConfigurationFixture() domain.Configuration {
	return domain.Configuration{
		CustomerTargetARR:      100000,
		CustomerMaxARR:         250000,
		ProspectTargetARR:      50000,
		CREVariance:            0.10,
		ATRVariance:            0.15,
		Tier1Variance:          0.10,
		Tier2Variance:          0.15,
		RenewalConcentrationMax: 0.40,
		CapacityVariancePercent: 0.20,
		ScoreWeightContinuity:  0.4,
		ScoreWeightGeography:   0.3,
		ScoreWeightTeamTier:    0.3,
	}
}
