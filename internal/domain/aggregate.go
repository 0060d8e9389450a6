package domain

// AggregatedAccount materializes the subtree view of a parent account: its
// aggregated ARR/ATR, child id set, and the flags downstream modules need.
// Aggregate is pure and side-effect-free (§4.1).
type AggregatedAccount struct {
	Account
	AggregatedARR float64
	AggregatedATR float64
	ChildIDs      []string
}

// HierarchyValueSource picks the best-available field for an account's
// aggregated ARR, preferring hierarchy_bookings_arr_converted, then
// calculated_arr, then arr (§4.1).
type HierarchyValueSource struct {
	HierarchyBookingsARRConverted float64
	HasHierarchyBookingsARRConverted bool
	CalculatedARR                 float64
	HasCalculatedARR              bool
	ARR                            float64
}

// ResolveARR implements the preference order documented in §4.1.
func (s HierarchyValueSource) ResolveARR() float64 {
	if s.HasHierarchyBookingsARRConverted {
		return ParseMoney(s.HierarchyBookingsARRConverted)
	}
	if s.HasCalculatedARR {
		return ParseMoney(s.CalculatedARR)
	}
	return ParseMoney(s.ARR)
}

// Aggregate computes the AggregatedAccount for every parent account in idx.
// ATR is summed strictly over opportunities whose normalized type equals
// "renewals" (§3 invariant) belonging to the parent and all of its children.
func Aggregate(idx *Index) []AggregatedAccount {
	parents := idx.ParentAccounts()
	out := make([]AggregatedAccount, 0, len(parents))

	for _, parent := range parents {
		subtree := append([]string{parent.AccountID}, idx.Children[parent.AccountID]...)

		var arr, atr float64
		for _, id := range subtree {
			acc, ok := idx.Accounts[id]
			if !ok {
				continue
			}
			arr += HierarchyValueSource{
				HierarchyBookingsARRConverted:    acc.HierarchyBookingsARRConverted,
				HasHierarchyBookingsARRConverted: acc.HasHierarchyBookingsARRConverted,
				CalculatedARR:                    acc.CalculatedARR,
				HasCalculatedARR:                 acc.HasCalculatedARR,
				ARR:                              acc.ARR,
			}.ResolveARR()
			for _, opp := range idx.Opportunities[id] {
				if opp.CountsTowardATR() {
					atr += ParseMoney(opp.AvailableToRenew)
				}
			}
		}

		out = append(out, AggregatedAccount{
			Account:       parent,
			AggregatedARR: arr,
			AggregatedATR: atr,
			ChildIDs:      idx.Children[parent.AccountID],
		})
	}

	return out
}
