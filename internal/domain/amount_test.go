package domain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEther(t *testing.T) {
	v, err := ParseEther("0.1")
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", v.String())

	v, err = ParseEther("105")
	require.NoError(t, err)
	assert.Equal(t, "105000000000000000000", v.String())

	_, err = ParseEther("0.0000000000000000001")
	assert.Error(t, err)

	_, err = ParseEther("abc")
	assert.Error(t, err)
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0.04", FormatEther(big.NewInt(40000000000000000)))
	assert.Equal(t, "5", FormatEther(MustParseEther("5.0")))
	assert.Equal(t, "0", FormatEther(nil))
}

func TestMulRate(t *testing.T) {
	// 0.1 ether at 40% = 0.04 ether
	got := MulRate(MustParseEther("0.1"), MustParseEther("0.4"))
	assert.Equal(t, "40000000000000000", got.String())
}

func TestPhase_Permissions(t *testing.T) {
	assert.True(t, PhaseActive.AllowsDeposit())
	assert.False(t, PhaseWithdrawPhase1.AllowsDeposit())
	assert.False(t, PhaseNotStarted.AllowsWithdraw())
	assert.True(t, PhaseWithdrawPhase2.AllowsWithdraw())
	assert.False(t, PhaseEnded.AllowsWithdraw())
	assert.False(t, Phase("BOGUS").IsValid())
	assert.Equal(t, 4, PhaseEnded.Ordinal())
}

func TestNetworks_Resolve(t *testing.T) {
	n := DefaultNetworks()

	cfg, ok := n.Resolve(4690)
	require.True(t, ok)
	assert.Equal(t, "iotex_test", cfg.Name)

	_, ok = n.Resolve(1)
	assert.False(t, ok)
}

func TestSchedule_IsValid(t *testing.T) {
	assert.True(t, DefaultSchedule().IsValid())
	assert.False(t, Schedule{NoFeeDuration: 2, PhaseOneDuration: 1, PhaseTwoDuration: 1}.IsValid())
}
