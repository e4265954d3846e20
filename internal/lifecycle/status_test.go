package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	tests := map[string]Status{
		"trial":     StatusTrialing,
		"Trialing":  StatusTrialing,
		" in_trial": StatusTrialing,
		"paid":      StatusActive,
		"unpaid":    StatusPastDue,
		"grace":     StatusGracePeriod,
		"cancelled": StatusCanceled,
		"pending":   StatusPendingPayment,
	}
	for in, want := range tests {
		got, ok := ParseStatus(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}

	_, ok := ParseStatus("suspended")
	assert.False(t, ok)
}

func TestStatus_EveryCanonicalParses(t *testing.T) {
	for _, st := range AllStatuses {
		got, ok := ParseStatus(string(st))
		assert.True(t, ok)
		assert.Equal(t, st, got)
		assert.True(t, st.Valid())
	}
}

func TestStatus_HasAccess(t *testing.T) {
	assert.True(t, StatusGracePeriod.HasAccess())
	assert.True(t, StatusTrialing.HasAccess())
	assert.False(t, StatusExpired.HasAccess())
	assert.False(t, StatusPendingPayment.HasAccess())
	assert.False(t, StatusCanceled.HasAccess())
}

func TestStatus_IsLive(t *testing.T) {
	for _, st := range AllStatuses {
		want := st != StatusExpired && st != StatusCanceled
		assert.Equal(t, want, st.IsLive(), st)
	}
	assert.False(t, StatusExpired.IsTerminal())
	assert.False(t, StatusExpired.IsLive())
}

func TestNewFeatureSet(t *testing.T) {
	fs, err := NewFeatureSet(FeatureQRCodes, FeatureEmbeds, FeatureQRCodes)
	require.NoError(t, err)
	assert.Equal(t, FeatureSetVersion, fs.Version)
	assert.Equal(t, []Feature{FeatureQRCodes, FeatureEmbeds}, fs.Flags)
	assert.True(t, fs.Has(FeatureEmbeds))
	assert.False(t, fs.Has(FeatureAnalytics))

	_, err = NewFeatureSet("teleportation")
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	got, err := ParseInterval("annual")
	require.NoError(t, err)
	assert.Equal(t, IntervalYear, got)
	assert.Equal(t, int64(365), got.NominalDays())

	_, err = ParseInterval("weekly")
	assert.Error(t, err)
}
