package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"github.com/tokenbrowser/ethgateway/internal/fakenode"
	"go.uber.org/zap/zaptest"
)

func TestSuggestedNonce(t *testing.T) {
	addr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	for name, tc := range map[string]struct {
		cached   *uint64
		chain    uint64
		expected uint64
	}{
		"empty cache":       {chain: 7, expected: 7},
		"cache leads chain": {cached: u64(9), chain: 7, expected: 9},
		"cache lags chain":  {cached: u64(5), chain: 7, expected: 7},
		"cache equal":       {cached: u64(7), chain: 7, expected: 7},
	} {
		t.Run(name, func(t *testing.T) {
			chain := fakenode.NewChain()
			chain.Nonces[addr] = tc.chain
			cache := fakenode.NewCache()
			if tc.cached != nil {
				cache.Put(canonicalAddress(addr), *tc.cached)
			}
			o := NewNonceOracle(chain, cache, zaptest.NewLogger(t))
			n, err := o.Suggested(context.Background(), addr)
			require.NoError(t, err)
			require.Equal(t, tc.expected, n)
		})
	}
}

func u64(v uint64) *uint64 { return &v }

// Successive suggestions are non-decreasing while chain responses are.
func TestSuggestedNonceMonotone(t *testing.T) {
	addr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain := fakenode.NewChain()
	cache := fakenode.NewCache()
	cache.Put(canonicalAddress(addr), 4)
	o := NewNonceOracle(chain, cache, zaptest.NewLogger(t))

	var last uint64
	for _, chainNonce := range []uint64{0, 2, 4, 4, 5, 9} {
		chain.Nonces[addr] = chainNonce
		n, err := o.Suggested(context.Background(), addr)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, last)
		last = n
	}
	require.Equal(t, uint64(9), last)
}

func TestSuggestedNonceCacheFailure(t *testing.T) {
	addr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain := fakenode.NewChain()
	chain.Nonces[addr] = 3
	cache := fakenode.NewCache()
	cache.GetErr = errors.New("connection refused")

	// The cache is advisory: a read failure degrades to the chain view.
	o := NewNonceOracle(chain, cache, zaptest.NewLogger(t))
	n, err := o.Suggested(context.Background(), addr)
	require.NoError(t, err)
	require.Equal(t, uint64(3), n)
}

func TestSuggestedNonceChainFailure(t *testing.T) {
	addr := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	chain := fakenode.NewChain()
	chain.NonceErr = errors.New("upstream down")

	o := NewNonceOracle(chain, fakenode.NewCache(), zaptest.NewLogger(t))
	_, err := o.Suggested(context.Background(), addr)
	require.Error(t, err)
}
