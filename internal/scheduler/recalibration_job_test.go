package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/territory-assign/internal/domain"
	"github.com/aristath/territory-assign/internal/persistence/memory"
)

func TestRecalibrationJob_RecalibratesStaleBuild(t *testing.T) {
	store := memory.New(zerolog.Nop())
	store.Seed("build1",
		[]domain.Account{
			{AccountID: "acc1", ARR: 100, HierarchyARR: 100, OwnerID: "repX", ExpansionTier: "tier1"},
		},
		[]domain.SalesRep{
			{RepID: "repX", Name: "Rep X", IsActive: true, IncludeInAssignments: true},
		},
		nil,
		domain.Configuration{},
	)

	job := NewRecalibrationJob(store, func() []string { return []string{"build1"} }, time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	cfg, err := store.LoadConfig(context.Background(), "build1", "all")
	require.NoError(t, err)
	assert.True(t, cfg.HasLastCalculatedAt)
}

func TestRecalibrationJob_SkipsFreshBuild(t *testing.T) {
	store := memory.New(zerolog.Nop())
	store.Seed("build1", nil, nil, nil, domain.Configuration{
		HasLastCalculatedAt: true,
		LastCalculatedAt:    time.Now(),
		Thresholds:          domain.Thresholds{ARR: domain.DimensionThreshold{Target: 42}},
	})

	job := NewRecalibrationJob(store, func() []string { return []string{"build1"} }, time.Hour, zerolog.Nop())
	require.NoError(t, job.Run())

	cfg, err := store.LoadConfig(context.Background(), "build1", "all")
	require.NoError(t, err)
	assert.Equal(t, 42.0, cfg.Thresholds.ARR.Target)
}

func TestRecalibrationJob_Name(t *testing.T) {
	job := NewRecalibrationJob(nil, func() []string { return nil }, time.Hour, zerolog.Nop())
	assert.Equal(t, "threshold_recalibration", job.Name())
}
