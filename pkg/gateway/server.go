// Package gateway implements the wallet gateway service: the HTTP
// surface, the balance and nonce oracles, the skeleton builder and the
// signed-transaction submission pipeline.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/tokenbrowser/ethgateway/pkg/config"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/codec"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/ledger"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	// Chain abstracts away the upstream Ethereum node as used by the
	// gateway.
	Chain interface {
		Balance(ctx context.Context, addr common.Address) (*big.Int, error)
		TransactionCount(ctx context.Context, addr common.Address) (uint64, error)
		SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error)
		TransactionByHash(ctx context.Context, hash common.Hash) (json.RawMessage, error)
	}

	// Cache is the shared advisory nonce cache.
	Cache interface {
		Nonce(ctx context.Context, addr string) (uint64, bool, error)
		SetNonce(ctx context.Context, addr string, nonce uint64) error
	}

	// Ledger is the durable store of pending transactions and
	// notification registrations.
	Ledger interface {
		PendingSums(ctx context.Context, addr string, includeIn bool) (out, in *big.Int, err error)
		InsertPending(ctx context.Context, tx ledger.PendingTx) error
		RegisterNotifications(ctx context.Context, tokenID string, addrs []string) error
		DeregisterNotifications(ctx context.Context, tokenID string, addrs []string) error
		RegisterPushEndpoint(ctx context.Context, service, registrationID, tokenID string) error
		DeregisterPushEndpoint(ctx context.Context, service, registrationID, tokenID string) error
	}

	// Verifier establishes the token identity of a request. Signature
	// verification of the request itself is done by the fronting auth
	// layer; the gateway only consumes the result.
	Verifier interface {
		Verify(r *http.Request) (tokenID string, ok bool)
	}

	// Server represents the wallet gateway HTTP server.
	Server struct {
		*http.Server
		chain    Chain
		cache    Cache
		ledger   Ledger
		verifier Verifier
		codec    *codec.Codec
		balances *BalanceOracle
		nonces   *NonceOracle
		cfg      config.GatewayConfiguration
		log      *zap.Logger
		started  *atomic.Bool
		errChan  chan error
	}
)

// HeaderVerifier trusts the identity header established by the
// fronting auth proxy.
type HeaderVerifier struct{}

// Verify implements the Verifier interface.
func (HeaderVerifier) Verify(r *http.Request) (string, bool) {
	id := r.Header.Get("Token-Id-Address")
	return id, id != ""
}

// New creates a new Server struct.
func New(cfg config.GatewayConfiguration, chain Chain, cache Cache, ldgr Ledger,
	verifier Verifier, log *zap.Logger, errChan chan error) *Server {
	addr := ":8080"
	if len(cfg.Addresses) > 0 {
		addr = cfg.Addresses[0]
	}
	if verifier == nil {
		verifier = HeaderVerifier{}
	}
	s := &Server{
		Server:   &http.Server{Addr: addr},
		chain:    chain,
		cache:    cache,
		ledger:   ldgr,
		verifier: verifier,
		codec:    codec.New(cfg.ChainID),
		balances: NewBalanceOracle(chain, ldgr),
		nonces:   NewNonceOracle(chain, cache, log),
		cfg:      cfg,
		log:      log,
		started:  atomic.NewBool(false),
		errChan:  errChan,
	}
	s.Handler = s
	return s
}

// Name returns service name.
func (s *Server) Name() string {
	return "gateway"
}

// Start creates a new gateway server listening on the configured port.
// It returns its errors via the errChan passed to New(). The Server
// only starts once, subsequent calls to Start are no-op.
func (s *Server) Start() {
	if !s.started.CAS(false, true) {
		s.log.Info("gateway server already started")
		return
	}
	s.log.Info("starting gateway server", zap.String("endpoint", s.Addr))
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.errChan <- err
		return
	}
	s.Addr = ln.Addr().String() // set Addr to the actual address
	go func() {
		err := s.Serve(ln)
		if !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("failed to start gateway server", zap.Error(err))
			s.errChan <- err
		}
	}()
}

// Shutdown stops the gateway server if it's running, gracefully
// draining in-flight requests. It can only be called once, subsequent
// calls to Shutdown on the same instance are no-op.
func (s *Server) Shutdown() {
	if !s.started.CAS(true, false) {
		return
	}
	s.log.Info("shutting down gateway server", zap.String("endpoint", s.Addr))
	err := s.Server.Shutdown(context.Background())
	if err != nil {
		s.log.Warn("error during gateway server shutdown", zap.Error(err))
	}
}

// ServeHTTP dispatches requests to the endpoint handlers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	name, handler := s.route(r)
	if handler == nil {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
	addReqTimeMetric(name, time.Since(start))
}

func (s *Server) route(r *http.Request) (string, http.HandlerFunc) {
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/balance/"):
		return "balance", s.handleBalance
	case r.Method == http.MethodPost && path == "/tx/skeleton":
		return "tx_skeleton", s.handleSkeleton
	case r.Method == http.MethodPost && path == "/tx":
		return "tx_submit", s.handleSubmit
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/tx/") && path != "/tx/skeleton":
		return "tx_get", s.handleGetTransaction
	case r.Method == http.MethodPost && path == "/notifications/register":
		return "notifications_register", s.handleRegisterNotifications
	case r.Method == http.MethodPost && path == "/notifications/deregister":
		return "notifications_deregister", s.handleDeregisterNotifications
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/pn/"):
		service, action, ok := splitPNPath(path)
		if !ok {
			return "", nil
		}
		switch action {
		case "register":
			return "pn_register", func(w http.ResponseWriter, r *http.Request) {
				s.handleRegisterPushEndpoint(w, r, service)
			}
		case "deregister":
			return "pn_deregister", func(w http.ResponseWriter, r *http.Request) {
				s.handleDeregisterPushEndpoint(w, r, service)
			}
		}
	}
	return "", nil
}

func splitPNPath(path string) (service, action string, ok bool) {
	parts := strings.Split(strings.TrimPrefix(path, "/pn/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// requestContext bounds upstream calls made on behalf of one request.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
}

// canonicalAddress renders addr in the canonical lowercase hex form
// used for ledger rows and cache keys.
func canonicalAddress(addr common.Address) string {
	return hexutil.Encode(addr.Bytes())
}
