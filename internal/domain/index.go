package domain

import "sort"

// Index is built once per run from the raw account/rep/opportunity slices
// so scoring, lock classification, and the LP builder never recompute the
// parent->children graph or id lookups themselves (§9: "index accounts by
// id once per run").
type Index struct {
	Accounts map[string]Account
	Reps     map[string]SalesRep

	Children map[string][]string // parent account id -> child account ids
	Opportunities map[string][]Opportunity // account id -> its opportunities
}

// NewIndex builds an Index from raw slices. Pure; no I/O.
func NewIndex(accounts []Account, reps []SalesRep, opps []Opportunity) *Index {
	idx := &Index{
		Accounts:      make(map[string]Account, len(accounts)),
		Reps:          make(map[string]SalesRep, len(reps)),
		Children:      make(map[string][]string),
		Opportunities: make(map[string][]Opportunity),
	}

	for _, a := range accounts {
		idx.Accounts[a.AccountID] = a
	}
	for _, r := range reps {
		idx.Reps[r.RepID] = r
	}
	for _, a := range accounts {
		if a.UltimateParentID != "" {
			idx.Children[a.UltimateParentID] = append(idx.Children[a.UltimateParentID], a.AccountID)
		}
	}
	for _, o := range opps {
		idx.Opportunities[o.AccountID] = append(idx.Opportunities[o.AccountID], o)
	}

	return idx
}

// ParentAccounts returns every account whose IsParent flag is set, i.e. the
// roots of the ownership hierarchy (§3 invariant: every parent account has
// exactly one effective owner).
func (idx *Index) ParentAccounts() []Account {
	out := make([]Account, 0, len(idx.Accounts))
	for _, a := range idx.Accounts {
		if a.IsParent {
			out = append(out, a)
		}
	}
	return out
}

// EligibleReps returns reps satisfying §4.4's eligibility rule, sorted by
// RepID so callers that break ties on iteration order (the waterfall
// fallback) resolve deterministically run over run (§8).
func (idx *Index) EligibleReps() []SalesRep {
	out := make([]SalesRep, 0, len(idx.Reps))
	for _, r := range idx.Reps {
		if r.Eligible() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepID < out[j].RepID })
	return out
}
