package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cityfix/pkg/domain-errors"
)

// TestParseUserID_Invariants validates the parsing invariant:
// "IDs arriving from the outside are positive integers".
func TestParseUserID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects non-numeric input", func(t *testing.T) {
		_, err := ParseUserID("abc")
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects zero and negatives", func(t *testing.T) {
		_, err := ParseUserID("0")
		require.Error(t, err)
		_, err = ParseUserID("-7")
		require.Error(t, err)
	})

	t.Run("accepts positive integer with surrounding space", func(t *testing.T) {
		id, err := ParseUserID(" 42 ")
		require.NoError(t, err)
		assert.Equal(t, UserID(42), id)
		assert.Equal(t, "42", id.String())
	})
}

func TestParseReportID(t *testing.T) {
	id, err := ParseReportID("9")
	require.NoError(t, err)
	assert.Equal(t, ReportID(9), id)
	assert.False(t, id.IsZero())

	_, err = ParseReportID("9.5")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}
