// Package fakenode contains in-memory implementations of the chain
// client, the nonce cache and the ledger used to test the gateway.
package fakenode

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/ledger"
)

// Chain is a fake chain client with settable balances and nonces.
type Chain struct {
	mtx        sync.Mutex
	Balances   map[common.Address]*big.Int
	Nonces     map[common.Address]uint64
	Txs        map[common.Hash]json.RawMessage
	Sent       [][]byte
	SendErr    error
	BalanceErr error
	NonceErr   error
}

// NewChain returns a new empty fake chain client.
func NewChain() *Chain {
	return &Chain{
		Balances: make(map[common.Address]*big.Int),
		Nonces:   make(map[common.Address]uint64),
		Txs:      make(map[common.Hash]json.RawMessage),
	}
}

// Balance implements the gateway Chain interface.
func (c *Chain) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.BalanceErr != nil {
		return nil, c.BalanceErr
	}
	b, ok := c.Balances[addr]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(b), nil
}

// TransactionCount implements the gateway Chain interface.
func (c *Chain) TransactionCount(_ context.Context, addr common.Address) (uint64, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.NonceErr != nil {
		return 0, c.NonceErr
	}
	return c.Nonces[addr], nil
}

// SendRawTransaction implements the gateway Chain interface. The
// returned hash is the keccak hash of the raw encoding, matching what
// a real node computes.
func (c *Chain) SendRawTransaction(_ context.Context, raw []byte) (common.Hash, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.SendErr != nil {
		return common.Hash{}, c.SendErr
	}
	cp := make([]byte, len(raw))
	copy(cp, raw)
	c.Sent = append(c.Sent, cp)
	return crypto.Keccak256Hash(raw), nil
}

// TransactionByHash implements the gateway Chain interface.
func (c *Chain) TransactionByHash(_ context.Context, hash common.Hash) (json.RawMessage, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.Txs[hash], nil
}

// Cache is a fake in-memory nonce cache.
type Cache struct {
	mtx    sync.Mutex
	nonces map[string]uint64
	GetErr error
	SetErr error
}

// NewCache returns a new empty fake cache.
func NewCache() *Cache {
	return &Cache{nonces: make(map[string]uint64)}
}

// Nonce implements the gateway Cache interface.
func (c *Cache) Nonce(_ context.Context, addr string) (uint64, bool, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.GetErr != nil {
		return 0, false, c.GetErr
	}
	n, ok := c.nonces[addr]
	return n, ok, nil
}

// SetNonce implements the gateway Cache interface.
func (c *Cache) SetNonce(_ context.Context, addr string, nonce uint64) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.SetErr != nil {
		return c.SetErr
	}
	c.nonces[addr] = nonce
	return nil
}

// Put seeds the cache with a nonce hint.
func (c *Cache) Put(addr string, nonce uint64) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.nonces[addr] = nonce
}

// Ledger is a fake in-memory pending ledger.
type Ledger struct {
	mtx           sync.Mutex
	Pending       []ledger.PendingTx
	InsertErr     error
	Notifications map[string][]string
	PushEndpoints map[string]string // service/registrationID -> tokenID
}

// NewLedger returns a new empty fake ledger.
func NewLedger() *Ledger {
	return &Ledger{
		Notifications: make(map[string][]string),
		PushEndpoints: make(map[string]string),
	}
}

// Add seeds the ledger with a pending row.
func (l *Ledger) Add(tx ledger.PendingTx) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.Pending = append(l.Pending, tx)
}

// PendingSums implements the gateway Ledger interface.
func (l *Ledger) PendingSums(_ context.Context, addr string, includeIn bool) (out, in *big.Int, err error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	out = new(big.Int)
	in = new(big.Int)
	for _, tx := range l.Pending {
		if tx.From == addr {
			out.Add(out, tx.Value)
			out.Add(out, tx.GasCost)
		}
		if includeIn && tx.To == addr {
			in.Add(in, tx.Value)
		}
	}
	return out, in, nil
}

// InsertPending implements the gateway Ledger interface with the same
// conflict-ignore semantics as the real store.
func (l *Ledger) InsertPending(_ context.Context, tx ledger.PendingTx) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.InsertErr != nil {
		return l.InsertErr
	}
	for _, existing := range l.Pending {
		if existing.Hash == tx.Hash {
			return nil
		}
	}
	l.Pending = append(l.Pending, tx)
	return nil
}

// RegisterNotifications implements the gateway Ledger interface.
func (l *Ledger) RegisterNotifications(_ context.Context, tokenID string, addrs []string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
loop:
	for _, addr := range addrs {
		for _, existing := range l.Notifications[tokenID] {
			if existing == addr {
				continue loop
			}
		}
		l.Notifications[tokenID] = append(l.Notifications[tokenID], addr)
	}
	return nil
}

// DeregisterNotifications implements the gateway Ledger interface.
func (l *Ledger) DeregisterNotifications(_ context.Context, tokenID string, addrs []string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	kept := l.Notifications[tokenID][:0]
	for _, existing := range l.Notifications[tokenID] {
		remove := false
		for _, addr := range addrs {
			if existing == addr {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, existing)
		}
	}
	l.Notifications[tokenID] = kept
	return nil
}

// RegisterPushEndpoint implements the gateway Ledger interface.
func (l *Ledger) RegisterPushEndpoint(_ context.Context, service, registrationID, tokenID string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.PushEndpoints[service+"/"+registrationID] = tokenID
	return nil
}

// DeregisterPushEndpoint implements the gateway Ledger interface.
func (l *Ledger) DeregisterPushEndpoint(_ context.Context, service, registrationID, tokenID string) error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.PushEndpoints[service+"/"+registrationID] == tokenID {
		delete(l.PushEndpoints, service+"/"+registrationID)
	}
	return nil
}

// Verifier is a fake request verifier returning a fixed token identity.
type Verifier struct {
	TokenID string
}

// Verify implements the gateway Verifier interface.
func (v Verifier) Verify(*http.Request) (string, bool) {
	return v.TokenID, v.TokenID != ""
}
