package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/modules/threshold"
	"github.com/aristath/territory-assign/internal/persistence"
)

// RecalibrationJob checks every tracked build's Configuration.LastCalculatedAt
// for staleness (§4.4) and recomputes capacity thresholds when the
// interval has elapsed, the background counterpart to Generate()'s
// lazy recalibration-on-missing-value path.
type RecalibrationJob struct {
	port       persistence.Port
	buildIDs   func() []string
	staleAfter time.Duration
	log        zerolog.Logger
}

// NewRecalibrationJob builds a recalibration job. buildIDs is called on
// every tick to get the current set of builds to check; staleAfter is
// the maximum age a Configuration.LastCalculatedAt may reach before
// recalibration runs again.
func NewRecalibrationJob(port persistence.Port, buildIDs func() []string, staleAfter time.Duration, log zerolog.Logger) *RecalibrationJob {
	return &RecalibrationJob{
		port:       port,
		buildIDs:   buildIDs,
		staleAfter: staleAfter,
		log:        log.With().Str("job", "threshold_recalibration").Logger(),
	}
}

// Name identifies the job for scheduler logging.
func (j *RecalibrationJob) Name() string { return "threshold_recalibration" }

// Run recalibrates thresholds for every stale build. A single build's
// failure is logged and skipped; it never aborts the rest of the batch.
func (j *RecalibrationJob) Run() error {
	ctx := context.Background()
	now := time.Now()

	var failures int
	for _, buildID := range j.buildIDs() {
		cfg, err := j.port.LoadConfig(ctx, buildID, "all")
		if err != nil {
			j.log.Error().Err(err).Str("build_id", buildID).Msg("failed to load configuration")
			failures++
			continue
		}

		if cfg.HasLastCalculatedAt && now.Sub(cfg.LastCalculatedAt) < j.staleAfter {
			continue
		}

		if err := j.recalibrate(ctx, buildID, cfg, now); err != nil {
			j.log.Error().Err(err).Str("build_id", buildID).Msg("failed to recalibrate thresholds")
			failures++
		}
	}

	if failures > 0 {
		return fmt.Errorf("recalibration failed for %d build(s)", failures)
	}
	return nil
}

func (j *RecalibrationJob) recalibrate(ctx context.Context, buildID string, cfg domain.Configuration, now time.Time) error {
	accounts, err := j.port.ListParentAccounts(ctx, buildID)
	if err != nil {
		return fmt.Errorf("loading parent accounts: %w", err)
	}
	plainAccounts := make([]domain.Account, len(accounts))
	for i, a := range accounts {
		plainAccounts[i] = a.Account
	}
	opps, err := j.port.ListOpportunities(ctx, buildID, nil)
	if err != nil {
		return fmt.Errorf("loading opportunities: %w", err)
	}
	reps, err := j.port.ListReps(ctx, buildID, persistence.RepFilter{})
	if err != nil {
		return fmt.Errorf("loading reps: %w", err)
	}

	thresholds, warnings := threshold.Calculate(plainAccounts, reps, opps, cfg)
	for _, w := range warnings {
		j.log.Warn().Str("build_id", buildID).Msg(w)
	}

	cfg.Thresholds = thresholds
	cfg.HasLastCalculatedAt = true
	cfg.LastCalculatedAt = now

	if err := j.port.SaveConfig(ctx, buildID, "all", cfg); err != nil {
		return fmt.Errorf("saving recalibrated configuration: %w", err)
	}

	j.log.Info().Str("build_id", buildID).Msg("thresholds recalibrated")
	return nil
}
