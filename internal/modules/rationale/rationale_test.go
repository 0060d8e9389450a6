package rationale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_WithDetails(t *testing.T) {
	s := Format(CodeP0, "Jane Rep", "manual override")
	assert.Equal(t, "P0: Manual or strategic lock → Jane Rep (manual override)", s)
}

func TestFormat_WithoutDetails(t *testing.T) {
	s := Format(CodeP3, "Jane Rep", "")
	assert.Equal(t, "P3: Same region → Jane Rep", s)
}

func TestParse_RoundTrip(t *testing.T) {
	s := Format(CodeP4, "Jane Rep", "continuity")
	code, rest, ok := Parse(s)
	require.True(t, ok)
	assert.Equal(t, CodeP4, code)
	assert.Equal(t, "Same current owner → Jane Rep (continuity)", rest)
}

func TestParse_TolerantOfDoublePrefix(t *testing.T) {
	code, rest, ok := Parse("P4: P4: Same current owner → Jane Rep")
	require.True(t, ok)
	assert.Equal(t, CodeP4, code)
	assert.Equal(t, "Same current owner → Jane Rep", rest)
}

func TestParse_UnrecognizedPrefixFails(t *testing.T) {
	_, _, ok := Parse("not a rationale string")
	assert.False(t, ok)
}

func TestValid_KnownAndUnknownCodes(t *testing.T) {
	assert.True(t, Valid(CodeRO))
	assert.True(t, Valid(CodeP7))
	assert.False(t, Valid(Code("P9")))
}
