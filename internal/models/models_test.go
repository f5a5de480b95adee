package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndexType(t *testing.T) {
	cases := []struct {
		in   string
		want IndexType
	}{
		{"NDVI", IndexNDVI},
		{"ndvi", IndexNDVI},
		{" Osavi ", IndexOSAVI},
		{"ndre", IndexNDRE},
	}
	for _, tc := range cases {
		got, err := ParseIndexType(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestParseIndexType_Unsupported(t *testing.T) {
	for _, in := range []string{"EVI", "", "NDWI"} {
		_, err := ParseIndexType(in)
		assert.ErrorIs(t, err, ErrUnsupportedIndex, in)
	}
}

func TestIndexTypeBands(t *testing.T) {
	assert.Equal(t, []Band{BandNIR, BandRed}, IndexNDVI.Bands())
	assert.Equal(t, []Band{BandNIR, BandRed}, IndexOSAVI.Bands())
	assert.Equal(t, []Band{BandNIR, BandRedEdge}, IndexNDRE.Bands())
}

func TestRateLimitedError_Message(t *testing.T) {
	err := &RateLimitedError{RetryAfter: 30 * time.Second}
	assert.Contains(t, err.Error(), "30s")
}
