package registry

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChains() []ChainInfo {
	return []ChainInfo{
		{
			Name:          "polygon",
			GasPrice:      decimal.NewFromFloat(30),
			BridgeAddress: "0xpoly",
			Tokens:        []string{"USDC", "WETH", "MATIC"},
		},
		{
			Name:          "ethereum",
			GasPrice:      decimal.NewFromFloat(25),
			BridgeAddress: "0xeth",
			Tokens:        []string{"WETH", "USDC", "DAI"},
		},
	}
}

func TestRegistry_ListSortedByName(t *testing.T) {
	reg := New(testChains(), nil)

	chains := reg.List()
	require.Len(t, chains, 2)
	assert.Equal(t, "ethereum", chains[0].Name)
	assert.Equal(t, "polygon", chains[1].Name)
}

func TestRegistry_Get(t *testing.T) {
	reg := New(testChains(), nil)

	chain, ok := reg.Get("ethereum")
	require.True(t, ok)
	assert.Equal(t, "0xeth", chain.BridgeAddress)
	assert.True(t, chain.SupportsToken("DAI"))
	assert.False(t, chain.SupportsToken("MATIC"))

	_, ok = reg.Get("solana")
	assert.False(t, ok)
}

func TestRegistry_UpdateReplacesChainSet(t *testing.T) {
	reg := New(testChains(), nil)
	require.Equal(t, 2, reg.Len())

	reg.Update([]ChainInfo{{Name: "arbitrum", Tokens: []string{"USDC"}}})
	assert.Equal(t, 1, reg.Len())
	_, ok := reg.Get("ethereum")
	assert.False(t, ok)
}

func TestRegistry_UpdateDropsUnnamedEntries(t *testing.T) {
	reg := New([]ChainInfo{{Name: ""}, {Name: "base", Tokens: []string{"USDC"}}}, nil)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_UpdateCopiesTokenSlice(t *testing.T) {
	tokens := []string{"USDC", "WETH"}
	reg := New([]ChainInfo{{Name: "ethereum", Tokens: tokens}}, nil)

	tokens[0] = "MUTATED"
	chain, ok := reg.Get("ethereum")
	require.True(t, ok)
	assert.True(t, chain.SupportsToken("USDC"))
}

func TestRegistry_Refresh(t *testing.T) {
	reg := New(nil, nil)

	err := reg.Refresh(func() ([]ChainInfo, error) {
		return testChains(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.False(t, reg.LastRefresh().IsZero())
}

func TestRegistry_RefreshFeedError(t *testing.T) {
	reg := New(testChains(), nil)

	err := reg.Refresh(func() ([]ChainInfo, error) {
		return nil, errors.New("feed down")
	})
	assert.Error(t, err)
	// Failed refresh leaves the previous chain set intact.
	assert.Equal(t, 2, reg.Len())
}

func TestCommonTokens(t *testing.T) {
	chains := testChains()
	common := CommonTokens(chains[0], chains[1])
	assert.Equal(t, []string{"USDC", "WETH"}, common)

	none := CommonTokens(chains[0], ChainInfo{Name: "other", Tokens: []string{"SOL"}})
	assert.Empty(t, none)
}
