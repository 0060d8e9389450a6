// Package threshold computes the per-dimension (min, target, max) balance
// bands a territory run is checked against, per §4.4.
package threshold

import (
	"fmt"

	"github.com/aristath/territory-assign/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// defaultVariance applies when a configuration field is unset (<=0), so a
// zero-value Configuration still yields usable bands instead of a
// (0, 0, 0) threshold for every dimension.
const defaultVariance = 0.1

// Calculate derives Thresholds for the scoped customer population across
// eligible reps. Pure: same inputs always yield the same result plus any
// warnings, never an error — malformed business data degrades the output,
// it doesn't abort the run (§9).
func Calculate(accounts []domain.Account, reps []domain.SalesRep, opps []domain.Opportunity, cfg domain.Configuration) (domain.Thresholds, []string) {
	var warnings []string

	eligible := 0
	for _, r := range reps {
		if r.Eligible() {
			eligible++
		}
	}
	if eligible == 0 {
		warnings = append(warnings, "no assignment-eligible reps in scope; all thresholds are zero")
		return domain.Thresholds{}, warnings
	}

	idx := domain.NewIndex(accounts, reps, opps)
	aggregates := domain.Aggregate(idx)

	var arrTotal, atrTotal float64
	var t1Count, t2Count, t3Count, t4Count int
	quarterlyTotals := [4]float64{}

	for _, agg := range aggregates {
		account, ok := idx.Accounts[agg.AccountID]
		if !ok || !account.IsCustomer {
			continue
		}

		arrTotal += agg.AggregatedARR
		atrTotal += agg.AggregatedATR

		switch account.EffectiveTier() {
		case domain.TierT1:
			t1Count++
		case domain.TierT2:
			t2Count++
		case domain.TierT3:
			t3Count++
		case domain.TierT4:
			t4Count++
		}
	}

	for _, oppsForAccount := range idx.Opportunities {
		for _, o := range oppsForAccount {
			if !o.CountsTowardATR() || !o.HasRenewalEventDate {
				continue
			}
			q := domain.FiscalQuarter(o.RenewalEventDate)
			quarterlyTotals[q-1] += o.AvailableToRenew
		}
	}

	result := domain.Thresholds{
		ARR:     band(arrTotal, eligible, nonZero(cfg.CapacityVariancePercent, defaultVariance)),
		ATR:     band(atrTotal, eligible, nonZero(cfg.ATRVariance, defaultVariance)),
		T1Count: band(float64(t1Count), eligible, nonZero(cfg.Tier1Variance, defaultVariance)),
		T2Count: band(float64(t2Count), eligible, nonZero(cfg.Tier2Variance, defaultVariance)),
		T3Count: band(float64(t3Count), eligible, defaultVariance),
		T4Count: band(float64(t4Count), eligible, defaultVariance),
		Quarterly: domain.QuarterlyTargets{
			Q1: band(quarterlyTotals[0], eligible, nonZero(cfg.RenewalConcentrationMax, defaultVariance)),
			Q2: band(quarterlyTotals[1], eligible, nonZero(cfg.RenewalConcentrationMax, defaultVariance)),
			Q3: band(quarterlyTotals[2], eligible, nonZero(cfg.RenewalConcentrationMax, defaultVariance)),
			Q4: band(quarterlyTotals[3], eligible, nonZero(cfg.RenewalConcentrationMax, defaultVariance)),
		},
	}

	if warn := sanityCheck(aggregates, result.ARR); warn != "" {
		warnings = append(warnings, warn)
	}

	return result, warnings
}

// band divides total across eligibleReps to get a per-rep target, then
// applies variance symmetrically to derive (min, target, max).
func band(total float64, eligibleReps int, variance float64) domain.DimensionThreshold {
	target := total / float64(eligibleReps)
	return domain.DimensionThreshold{
		Min:    target * (1 - variance),
		Target: target,
		Max:    target * (1 + variance),
	}
}

func nonZero(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

// sanityCheck flags an ARR threshold whose target sits further than two
// standard deviations from the population mean per-account ARR — a signal
// the scoped population is unusually skewed, surfaced as a warning rather
// than failing the calculation.
func sanityCheck(aggregates []domain.AggregatedAccount, arrBand domain.DimensionThreshold) string {
	if len(aggregates) < 2 {
		return ""
	}
	vals := make([]float64, 0, len(aggregates))
	for _, agg := range aggregates {
		vals = append(vals, agg.AggregatedARR)
	}
	mean := stat.Mean(vals, nil)
	stddev := stat.StdDev(vals, nil)
	if stddev == 0 {
		return ""
	}
	if deviation := (arrBand.Target - mean) / stddev; deviation > 2 || deviation < -2 {
		return fmt.Sprintf("ARR per-rep target deviates %.1f standard deviations from per-account mean; scoped population may be skewed", deviation)
	}
	return ""
}
