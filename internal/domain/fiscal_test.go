package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiscalQuarter(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"Feb 1 is Q1", time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 1},
		{"Apr 30 is Q1", time.Date(2025, time.April, 30, 0, 0, 0, 0, time.UTC), 1},
		{"May 1 is Q2", time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC), 2},
		{"Oct 31 is Q3", time.Date(2025, time.October, 31, 0, 0, 0, 0, time.UTC), 3},
		{"Nov 1 is Q4", time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC), 4},
		{"Jan 15 is Q4", time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC), 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FiscalQuarter(tt.date))
		})
	}
}
