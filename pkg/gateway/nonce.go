package gateway

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// NonceOracle computes the next nonce to assign (and the floor below
// which submissions are rejected), reconciling the cached hint with
// the node's pending-inclusive transaction count.
type NonceOracle struct {
	chain Chain
	cache Cache
	log   *zap.Logger
}

// NewNonceOracle creates a NonceOracle on top of the given chain
// client and nonce cache.
func NewNonceOracle(chain Chain, cache Cache, log *zap.Logger) *NonceOracle {
	return &NonceOracle{chain: chain, cache: cache, log: log}
}

// Suggested returns max(cached, chain) for addr. The cache is
// advisory: a cache failure degrades to the chain view alone.
func (o *NonceOracle) Suggested(ctx context.Context, addr common.Address) (uint64, error) {
	cached, ok, err := o.cache.Nonce(ctx, canonicalAddress(addr))
	if err != nil {
		o.log.Warn("nonce cache read failed", zap.Error(err))
		ok = false
	}
	chainNonce, err := o.chain.TransactionCount(ctx, addr)
	if err != nil {
		return 0, err
	}
	if ok && cached > chainNonce {
		return cached, nil
	}
	return chainNonce, nil
}
