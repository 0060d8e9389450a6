// Package scoring implements the three independent (account, rep) scorers
// and their weighted composite, each returning a value in [0,1].
//
// Grounded on the pack's scorer shape (internal/modules/scoring/scorers in
// the teacher): a small pure function per dimension returning a {Score,
// Components} result, combined with configured weights.
package scoring

import "github.com/aristath/territory-assign/internal/domain"

const (
	continuityManagerChainScore = 0.4
	geographySiblingScore       = 0.65
	geographyMacroScore         = 0.4
	teamTierAdjacentScore       = 0.6
)

// Weights holds the normalized continuity/geography/team-tier weights used
// by Composite. DefaultWeights matches spec.md §4.2's defaults.
type Weights struct {
	Continuity float64
	Geography  float64
	TeamTier   float64
}

// DefaultWeights is the 0.4/0.35/0.25 split named in §4.2.
var DefaultWeights = Weights{Continuity: 0.4, Geography: 0.35, TeamTier: 0.25}

// Normalize scales w so its three components sum to 1. A zero-sum input
// falls back to DefaultWeights rather than dividing by zero.
func (w Weights) Normalize() Weights {
	sum := w.Continuity + w.Geography + w.TeamTier
	if sum <= 0 {
		return DefaultWeights
	}
	return Weights{
		Continuity: w.Continuity / sum,
		Geography:  w.Geography / sum,
		TeamTier:   w.TeamTier / sum,
	}
}

// Result carries a component score plus the one-line reason it was
// produced, for rationale generation downstream.
type Result struct {
	Score  float64
	Reason string
}

// Continuity scores 1.0 when rep equals the account's current owner, ~0.4
// when rep shares the current owner's manager chain, 0 otherwise.
func Continuity(account domain.Account, rep domain.SalesRep, currentOwner domain.SalesRep, hasCurrentOwner bool) Result {
	if hasCurrentOwner && rep.RepID == currentOwner.RepID {
		return Result{Score: 1.0, Reason: "current owner"}
	}
	if hasCurrentOwner {
		for _, m := range currentOwner.ManagerChain() {
			if m == rep.FLM || m == rep.SLM || m == rep.RepID {
				return Result{Score: continuityManagerChainScore, Reason: "shares current owner's manager chain"}
			}
		}
	}
	return Result{Score: 0, Reason: "no continuity with current owner"}
}

// Geography scores exact region match 1.0, sibling region (via
// territoryMappings) ~0.65, same macro-region ~0.4, else 0. When no custom
// mapping exists for the account's territory, account.Geo and
// account.SalesTerritory are compared directly against rep.Region.
func Geography(account domain.Account, rep domain.SalesRep, mappings domain.TerritoryMapping) Result {
	if account.SalesTerritory != "" {
		if mapped, ok := mappings[account.SalesTerritory]; ok {
			if mapped == rep.Region {
				return Result{Score: geographySiblingScore, Reason: "sibling region via territory mapping"}
			}
		}
	}

	if account.Geo != "" && account.Geo == rep.Region {
		return Result{Score: 1.0, Reason: "exact region match"}
	}
	if account.SalesTerritory != "" && account.SalesTerritory == rep.Region {
		return Result{Score: 1.0, Reason: "exact region match"}
	}

	if macroRegion(account.Geo) != "" && macroRegion(account.Geo) == macroRegion(rep.Region) {
		return Result{Score: geographyMacroScore, Reason: "same macro-region"}
	}

	return Result{Score: 0, Reason: "no geographic overlap"}
}

// macroRegion buckets a region string into a coarse macro-region for the
// "same macro-region" comparison tier. Unknown regions map to "".
func macroRegion(region string) string {
	switch region {
	case "NA-East", "NA-West", "NA-Central", "LATAM":
		return "AMER"
	case "EMEA-North", "EMEA-South", "EMEA-Central", "UK":
		return "EMEA"
	case "APAC-North", "APAC-South", "ANZ":
		return "APAC"
	default:
		return ""
	}
}

// TeamTier scores exact tier match 1.0, adjacent tier ~0.6, else 0.
func TeamTier(account domain.Account, rep domain.SalesRep) Result {
	tier := account.EffectiveTier()
	if string(tier) == rep.TeamTier {
		return Result{Score: 1.0, Reason: "exact tier match"}
	}
	if adjacentTier(tier, rep.TeamTier) {
		return Result{Score: teamTierAdjacentScore, Reason: "adjacent tier"}
	}
	return Result{Score: 0, Reason: "no tier fit"}
}

var tierOrder = map[string]int{"T1": 1, "T2": 2, "T3": 3, "T4": 4}

func adjacentTier(accountTier domain.Tier, repTier string) bool {
	a, aok := tierOrder[string(accountTier)]
	b, bok := tierOrder[repTier]
	if !aok || !bok {
		return false
	}
	diff := a - b
	return diff == 1 || diff == -1
}

// Composite combines the three scorers with normalized weights (§4.2).
type Composite struct {
	Score      float64
	Continuity Result
	Geography  Result
	TeamTier   Result
}

// Score computes the composite (account, rep) score.
func Score(account domain.Account, rep domain.SalesRep, currentOwner domain.SalesRep, hasCurrentOwner bool, mappings domain.TerritoryMapping, weights Weights) Composite {
	w := weights.Normalize()
	c := Continuity(account, rep, currentOwner, hasCurrentOwner)
	g := Geography(account, rep, mappings)
	tt := TeamTier(account, rep)

	return Composite{
		Score:      w.Continuity*c.Score + w.Geography*g.Score + w.TeamTier*tt.Score,
		Continuity: c,
		Geography:  g,
		TeamTier:   tt,
	}
}
