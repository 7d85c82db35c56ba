package chain

import (
	"math/big"
	"testing"

	"github.com/nft-marketplace/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	tests := []struct {
		input string
		wei   string
	}{
		{"0.05", "50000000000000000"},
		{"1", "1000000000000000000"},
		{"1.5", "1500000000000000000"},
		{"0.000000000000000001", "1"},
		{" 2 ", "2000000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			wei, err := ParseEther(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wei, wei.String())
		})
	}
}

func TestParseEther_Rejects(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-1", "0.0000000000000000001", "0x10", "1,5"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseEther(in)
			require.ErrorIs(t, err, models.ErrValidationFailed)
		})
	}
}

func TestEtherRoundTrip(t *testing.T) {
	for _, in := range []string{"0.05", "1", "1.50", "123456.789", "0.000000000000000001", "10000000"} {
		wei, err := ParseEther(in)
		require.NoError(t, err)

		out := FormatEther(wei)
		want := decimal.RequireFromString(in)
		got := decimal.RequireFromString(out)
		assert.True(t, want.Equal(got), "round trip %q -> %s -> %q", in, wei, out)
	}

	wei, err := ParseEther("0.05")
	require.NoError(t, err)
	assert.Equal(t, "0.05", FormatEther(wei))
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0", FormatEther(nil))
	assert.Equal(t, "0", FormatEther(big.NewInt(0)))
	assert.Equal(t, "0.01", FormatEther(big.NewInt(10_000_000_000_000_000)))
}
