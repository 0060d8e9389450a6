package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_ATRCountsOnlyNormalizedRenewals(t *testing.T) {
	accounts := []Account{
		{AccountID: "parent-1", IsParent: true, ARR: 100},
	}
	opps := []Opportunity{
		{AccountID: "parent-1", OpportunityType: "Renewals", AvailableToRenew: 10},
		{AccountID: "parent-1", OpportunityType: "renewals ", AvailableToRenew: 10},
		{AccountID: "parent-1", OpportunityType: "Renewal", AvailableToRenew: 10}, // singular, does NOT count
		{AccountID: "parent-1", OpportunityType: "New Subscription", AvailableToRenew: 10},
		{AccountID: "parent-1", OpportunityType: "Expansion", AvailableToRenew: 10},
	}

	idx := NewIndex(accounts, nil, opps)
	aggs := Aggregate(idx)

	if assert.Len(t, aggs, 1) {
		assert.Equal(t, float64(20), aggs[0].AggregatedATR)
	}
}

func TestAggregate_IncludesChildSubtree(t *testing.T) {
	accounts := []Account{
		{AccountID: "parent-1", IsParent: true, ARR: 100},
		{AccountID: "child-1", UltimateParentID: "parent-1", ARR: 50},
		{AccountID: "child-2", UltimateParentID: "parent-1", ARR: 25},
	}

	idx := NewIndex(accounts, nil, nil)
	aggs := Aggregate(idx)

	if assert.Len(t, aggs, 1) {
		assert.Equal(t, float64(175), aggs[0].AggregatedARR)
		assert.ElementsMatch(t, []string{"child-1", "child-2"}, aggs[0].ChildIDs)
	}
}

func TestAggregate_PrefersHierarchyBookingsThenCalculatedThenARR(t *testing.T) {
	accounts := []Account{
		{AccountID: "parent-1", IsParent: true, ARR: 100,
			HierarchyBookingsARRConverted: 300, HasHierarchyBookingsARRConverted: true,
			CalculatedARR: 200, HasCalculatedARR: true},
		{AccountID: "parent-2", IsParent: true, ARR: 100,
			CalculatedARR: 200, HasCalculatedARR: true},
		{AccountID: "parent-3", IsParent: true, ARR: 100},
	}

	idx := NewIndex(accounts, nil, nil)
	aggs := Aggregate(idx)

	byID := make(map[string]float64, len(aggs))
	for _, a := range aggs {
		byID[a.AccountID] = a.AggregatedARR
	}
	assert.Equal(t, float64(300), byID["parent-1"])
	assert.Equal(t, float64(200), byID["parent-2"])
	assert.Equal(t, float64(100), byID["parent-3"])
}

func TestParseMoney_NonFiniteDefaultsToZero(t *testing.T) {
	assert.Equal(t, float64(0), ParseMoney(nil))
	assert.Equal(t, float64(0), ParseMoney("not-a-number"))
	assert.Equal(t, float64(42.5), ParseMoney("42.5"))
	assert.Equal(t, float64(42.5), ParseMoney(42.5))
}
