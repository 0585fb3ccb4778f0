package gateway

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/ledger"
	"github.com/tokenbrowser/ethgateway/pkg/gateway/params"
	"go.uber.org/zap"
)

var errInvalidRequestSignature = newError(http.StatusBadRequest, "invalid_signature", "Invalid Request Signature")

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	return dec.Decode(v)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr := strings.TrimPrefix(r.URL.Path, "/balance/")
	if !params.IsValidAddress(addr) {
		s.writeError(w, errInvalidAddress)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	confirmed, effective, err := s.balances.Balances(ctx, common.HexToAddress(addr), false)
	if err != nil {
		s.log.Error("balance lookup failed", zap.String("address", addr), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"confirmed_balance":   hexutil.EncodeBig(confirmed),
		"unconfirmed_balance": hexutil.EncodeBig(effective),
	})
}

type skeletonRequest struct {
	From     *string `json:"from"`
	To       *string `json:"to"`
	Value    any     `json:"value"`
	Nonce    any     `json:"nonce"`
	Gas      any     `json:"gas"`
	GasPrice any     `json:"gas_price"`
}

func (s *Server) handleSkeleton(w http.ResponseWriter, r *http.Request) {
	var req skeletonRequest
	if err := decodeJSON(r, &req); err != nil || req.From == nil || req.To == nil || req.Value == nil {
		s.writeError(w, errBadArguments)
		return
	}
	if !params.IsValidAddress(*req.From) {
		s.writeError(w, errInvalidFromAddress)
		return
	}
	if !params.IsValidAddress(*req.To) {
		s.writeError(w, errInvalidToAddress)
		return
	}
	value, err := params.ParseInt(req.Value)
	if err != nil || value.Sign() == 0 {
		s.writeError(w, errInvalidValue)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	var nonce uint64
	if req.Nonce == nil {
		nonce, err = s.nonces.Suggested(ctx, common.HexToAddress(*req.From))
		if err != nil {
			s.log.Error("nonce lookup failed", zap.String("address", *req.From), zap.Error(err))
			s.writeError(w, errUnexpected)
			return
		}
	} else if nonce, err = params.ParseUint64(req.Nonce); err != nil {
		s.writeError(w, errInvalidNonce)
		return
	}

	gas := s.cfg.DefaultGas
	if req.Gas != nil {
		if gas, err = params.ParseUint64(req.Gas); err != nil {
			s.writeError(w, errInvalidGas)
			return
		}
	}

	gasPrice := new(big.Int).SetUint64(s.cfg.DefaultGasPrice)
	if req.GasPrice != nil {
		if gasPrice, err = params.ParseInt(req.GasPrice); err != nil {
			s.writeError(w, errInvalidGasPrice)
			return
		}
	}

	tx := s.codec.NewTransaction(nonce, gasPrice, gas, common.HexToAddress(*req.To), value)
	raw, err := s.codec.Encode(tx)
	if err != nil {
		s.log.Error("skeleton encoding failed", zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"tx_data": map[string]string{
			"nonce":    hexutil.EncodeUint64(nonce),
			"from":     *req.From,
			"to":       *req.To,
			"value":    hexutil.EncodeBig(value),
			"startGas": hexutil.EncodeUint64(gas),
			"gasPrice": hexutil.EncodeBig(gasPrice),
		},
		"tx": hexutil.Encode(raw),
	})
}

type submitRequest struct {
	Tx        *string `json:"tx"`
	Signature *string `json:"signature"`
}

// handleSubmit runs the submission pipeline: decode, signature
// reconcile, balance check, nonce check, broadcast, cache update,
// ledger insert. It fails fast on the first error.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(zap.String("request", uuid.NewString()))

	// Anonymous submissions are allowed.
	tokenID, _ := s.verifier.Verify(r)

	var req submitRequest
	if err := decodeJSON(r, &req); err != nil || req.Tx == nil {
		s.writeError(w, errBadArguments)
		return
	}

	raw, err := hexutil.Decode(*req.Tx)
	if err != nil {
		s.writeError(w, errInvalidTransaction)
		return
	}
	tx, err := s.codec.Decode(raw)
	if err != nil {
		s.writeError(w, errInvalidTransaction)
		return
	}

	if s.codec.IsSigned(tx) {
		if req.Signature != nil {
			txSig, err := s.codec.Signature(tx)
			if err != nil || !strings.EqualFold(*req.Signature, hexutil.Encode(txSig)) {
				s.writeError(w, errInvalidSignature)
				return
			}
		}
	} else {
		if req.Signature == nil {
			s.writeError(w, errMissingSignature)
			return
		}
		if !params.IsValidSignature(*req.Signature) {
			s.writeError(w, errInvalidSignature)
			return
		}
		sig, err := hexutil.Decode(*req.Signature)
		if err != nil {
			s.writeError(w, errInvalidSignature)
			return
		}
		if tx, err = s.codec.WithSignature(tx, sig); err != nil {
			s.writeError(w, errInvalidSignature)
			return
		}
	}

	from, err := s.codec.Sender(tx)
	if err != nil {
		s.writeError(w, errInvalidSignature)
		return
	}
	if tx.To() == nil {
		// Contract creation is not a wallet transfer.
		s.writeError(w, errInvalidTransaction)
		return
	}
	fromAddr := canonicalAddress(from)
	toAddr := canonicalAddress(*tx.To())

	ctx, cancel := s.requestContext(r)
	defer cancel()

	// The sender must not spend funds that are only promised by
	// unconfirmed incoming transactions.
	confirmed, effective, err := s.balances.Balances(ctx, from, true)
	if err != nil {
		log.Error("balance lookup failed", zap.String("address", fromAddr), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}

	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas()), tx.GasPrice())
	cost := new(big.Int).Add(tx.Value(), gasCost)
	log.Info("attempting to send transaction",
		zap.String("from", fromAddr),
		zap.String("to", toAddr),
		zap.String("value", tx.Value().String()),
		zap.Uint64("gas", tx.Gas()),
		zap.String("gas_price", tx.GasPrice().String()),
		zap.String("cost", cost.String()),
		zap.String("balance", confirmed.String()),
		zap.String("effective_balance", effective.String()))

	if effective.Cmp(cost) < 0 {
		s.writeError(w, errInsufficientFunds)
		return
	}

	floor, err := s.nonces.Suggested(ctx, from)
	if err != nil {
		log.Error("nonce lookup failed", zap.String("address", fromAddr), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	// A nonce above the floor is fine: the chain accepts gapped nonces
	// and backfills, so only too-low values are rejected.
	if tx.Nonce() < floor {
		s.writeError(w, errNonceTooLow)
		return
	}

	encoded, err := s.codec.Encode(tx)
	if err != nil {
		s.writeError(w, errInvalidTransaction)
		return
	}
	hash, err := s.chain.SendRawTransaction(ctx, encoded)
	if err != nil {
		log.Error("broadcast failed", zap.String("from", fromAddr), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}

	// The broadcast is observable on-chain now: commit side effects on
	// a context detached from the client connection so that a client
	// disconnect can't leave the ledger behind.
	commitCtx, commitCancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer commitCancel()

	if err := s.cache.SetNonce(commitCtx, fromAddr, tx.Nonce()+1); err != nil {
		log.Warn("nonce cache update failed", zap.String("address", fromAddr), zap.Error(err))
	}
	err = s.ledger.InsertPending(commitCtx, ledger.PendingTx{
		Hash:          hash.Hex(),
		From:          fromAddr,
		To:            toAddr,
		Value:         tx.Value(),
		GasCost:       gasCost,
		SenderTokenID: tokenID,
	})
	if err != nil {
		// Split brain: the transaction is on the network but not in the
		// ledger. Operators reconcile out of band.
		log.Error("transaction broadcast but not recorded",
			zap.String("hash", hash.Hex()), zap.Error(err))
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash.Hex()})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	hash := strings.TrimPrefix(r.URL.Path, "/tx/")
	if !params.IsValidTransactionHash(hash) {
		s.writeError(w, errBadArguments)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	raw, err := s.chain.TransactionByHash(ctx, common.HexToHash(hash))
	if err != nil {
		s.log.Error("transaction lookup failed", zap.String("hash", hash), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	if raw == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]any{"tx": nil})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"tx": raw})
}

type addressesRequest struct {
	Addresses []string `json:"addresses"`
}

func (s *Server) addressesFromRequest(w http.ResponseWriter, r *http.Request) (string, []string, bool) {
	tokenID, ok := s.verifier.Verify(r)
	if !ok {
		s.writeError(w, errInvalidRequestSignature)
		return "", nil, false
	}
	var req addressesRequest
	if err := decodeJSON(r, &req); err != nil || len(req.Addresses) == 0 {
		s.writeError(w, errBadArguments)
		return "", nil, false
	}
	addrs := make([]string, len(req.Addresses))
	for i, addr := range req.Addresses {
		if !params.IsValidAddress(addr) {
			s.writeError(w, errBadArguments)
			return "", nil, false
		}
		addrs[i] = strings.ToLower(addr)
	}
	return tokenID, addrs, true
}

func (s *Server) handleRegisterNotifications(w http.ResponseWriter, r *http.Request) {
	tokenID, addrs, ok := s.addressesFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.RegisterNotifications(ctx, tokenID, addrs); err != nil {
		s.log.Error("notification registration failed", zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeregisterNotifications(w http.ResponseWriter, r *http.Request) {
	tokenID, addrs, ok := s.addressesFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeregisterNotifications(ctx, tokenID, addrs); err != nil {
		s.log.Error("notification deregistration failed", zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pnRequest struct {
	RegistrationID *string `json:"registration_id"`
}

func (s *Server) pnFromRequest(w http.ResponseWriter, r *http.Request) (tokenID, registrationID string, ok bool) {
	tokenID, ok = s.verifier.Verify(r)
	if !ok {
		s.writeError(w, errInvalidRequestSignature)
		return "", "", false
	}
	var req pnRequest
	if err := decodeJSON(r, &req); err != nil || req.RegistrationID == nil || *req.RegistrationID == "" {
		s.writeError(w, errBadArguments)
		return "", "", false
	}
	return tokenID, *req.RegistrationID, true
}

func (s *Server) handleRegisterPushEndpoint(w http.ResponseWriter, r *http.Request, service string) {
	tokenID, registrationID, ok := s.pnFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.RegisterPushEndpoint(ctx, service, registrationID, tokenID); err != nil {
		s.log.Error("push endpoint registration failed", zap.String("service", service), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeregisterPushEndpoint(w http.ResponseWriter, r *http.Request, service string) {
	tokenID, registrationID, ok := s.pnFromRequest(w, r)
	if !ok {
		return
	}
	ctx, cancel := s.requestContext(r)
	defer cancel()
	if err := s.ledger.DeregisterPushEndpoint(ctx, service, registrationID, tokenID); err != nil {
		s.log.Error("push endpoint deregistration failed", zap.String("service", service), zap.Error(err))
		s.writeError(w, errUnexpected)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
