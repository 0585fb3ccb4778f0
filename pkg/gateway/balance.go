package gateway

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceOracle computes confirmed and effective balances from chain
// state plus the pending ledger.
type BalanceOracle struct {
	chain  Chain
	ledger Ledger
}

// NewBalanceOracle creates a BalanceOracle on top of the given chain
// client and pending ledger.
func NewBalanceOracle(chain Chain, ledger Ledger) *BalanceOracle {
	return &BalanceOracle{chain: chain, ledger: ledger}
}

// Balances returns the confirmed balance of addr as seen by the chain
// node and the effective balance adjusted by unconfirmed ledger rows:
//
//	effective = confirmed + Σ pending-in value − Σ pending-out (value + gas cost)
//
// With ignorePendingIn set, funds only promised to addr by unconfirmed
// incoming transactions don't count: that's the admissibility view used
// when addr wants to spend.
func (o *BalanceOracle) Balances(ctx context.Context, addr common.Address, ignorePendingIn bool) (confirmed, effective *big.Int, err error) {
	confirmed, err = o.chain.Balance(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	out, in, err := o.ledger.PendingSums(ctx, canonicalAddress(addr), !ignorePendingIn)
	if err != nil {
		return nil, nil, err
	}
	effective = new(big.Int).Add(confirmed, in)
	effective.Sub(effective, out)
	return confirmed, effective, nil
}
