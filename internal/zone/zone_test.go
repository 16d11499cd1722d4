package zone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZoneCode_PadsToThreeDigits(t *testing.T) {
	tests := []struct {
		state, zone, want string
	}{
		{"TX", "1", "TXZ001"},
		{"TX", "01", "TXZ001"},
		{"TX", "001", "TXZ001"},
		{"OK", "25", "OKZ025"},
		{"WY", "120", "WYZ120"},
		{"FL", "0", "FLZ000"},
	}

	for _, tt := range tests {
		got, err := ZoneCode(tt.state, tt.zone)
		require.NoError(t, err, "state=%s zone=%s", tt.state, tt.zone)
		assert.Equal(t, tt.want, got)
	}
}

func TestZoneCode_RejectsLongZone(t *testing.T) {
	_, err := ZoneCode("TX", "1234")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidZone)
	assert.Contains(t, err.Error(), "1234")
}

func TestZoneCode_RejectsNonNumericAndEmpty(t *testing.T) {
	for _, in := range []string{"", "ab", "1a", "-1", " "} {
		_, err := ZoneCode("TX", in)
		assert.ErrorIs(t, err, ErrInvalidZone, "zone %q", in)
	}
}

func TestZoneCode_RejectsBadState(t *testing.T) {
	for _, state := range []string{"", "T", "TEX", "T1", "tx"} {
		_, err := ZoneCode(state, "001")
		assert.ErrorIs(t, err, ErrInvalidState, "state %q", state)
	}
}

func TestCountyCode_EmptyIsNotAnError(t *testing.T) {
	for _, state := range []string{"TX", "OK", "", "BAD"} {
		got, err := CountyCode(state, "")
		require.NoError(t, err)
		assert.Empty(t, got)
	}
}

func TestCountyCode(t *testing.T) {
	got, err := CountyCode("TX", "5")
	require.NoError(t, err)
	assert.Equal(t, "TXC005", got)

	got, err = CountyCode("TX", "113")
	require.NoError(t, err)
	assert.Equal(t, "TXC113", got)

	_, err = CountyCode("TX", "0113")
	assert.ErrorIs(t, err, ErrInvalidCounty)
}

func TestFeedID(t *testing.T) {
	assert.Equal(t, "TXZ001", FeedID("TXZ001", ""))
	assert.Equal(t, "TXZ001,TXC005", FeedID("TXZ001", "TXC005"))
}

func TestNew(t *testing.T) {
	id, err := New("tx", "1", "5")
	require.NoError(t, err)
	assert.Equal(t, Identifier{
		State:      "TX",
		ZoneCode:   "TXZ001",
		CountyCode: "TXC005",
		FeedID:     "TXZ001,TXC005",
	}, id)

	id, err = New("ok", "25", "")
	require.NoError(t, err)
	assert.Equal(t, "OKZ025", id.FeedID)
	assert.Empty(t, id.CountyCode)
}

func TestNew_PropagatesValidationErrors(t *testing.T) {
	_, err := New("Texas", "1", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = New("TX", "9999", "")
	assert.ErrorIs(t, err, ErrInvalidZone)

	_, err = New("TX", "1", "9999")
	assert.ErrorIs(t, err, ErrInvalidCounty)
}
