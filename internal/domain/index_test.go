package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEligibleReps_SortedByRepIDForDeterministicTieBreaks(t *testing.T) {
	reps := []SalesRep{
		{RepID: "rep-zeta", IsActive: true, IncludeInAssignments: true},
		{RepID: "rep-alpha", IsActive: true, IncludeInAssignments: true},
		{RepID: "rep-inactive", IsActive: false, IncludeInAssignments: true},
		{RepID: "rep-mu", IsActive: true, IncludeInAssignments: true},
	}

	idx := NewIndex(nil, reps, nil)

	for i := 0; i < 5; i++ {
		out := idx.EligibleReps()
		ids := make([]string, len(out))
		for j, r := range out {
			ids[j] = r.RepID
		}
		assert.Equal(t, []string{"rep-alpha", "rep-mu", "rep-zeta"}, ids)
	}
}
