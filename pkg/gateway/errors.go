package gateway

import (
	"encoding/json"
	"net/http"
)

// Error is a client-facing error. The slug set is part of the wire
// contract and matches what wallet clients already handle.
type Error struct {
	ID      string `json:"id"`
	Message string `json:"message"`

	httpCode int
}

type errorResponse struct {
	Errors []Error `json:"errors"`
}

func newError(httpCode int, id, message string) Error {
	return Error{ID: id, Message: message, httpCode: httpCode}
}

var (
	errBadArguments       = newError(http.StatusBadRequest, "bad_arguments", "Bad Arguments")
	errInvalidAddress     = newError(http.StatusBadRequest, "invalid_address", "Invalid Address")
	errInvalidFromAddress = newError(http.StatusBadRequest, "invalid_from_address", "Invalid From Address")
	errInvalidToAddress   = newError(http.StatusBadRequest, "invalid_to_address", "Invalid To Address")
	errInvalidValue       = newError(http.StatusBadRequest, "invalid_value", "Invalid Value")
	errInvalidNonce       = newError(http.StatusBadRequest, "invalid_nonce", "Invalid Nonce")
	errNonceTooLow        = newError(http.StatusBadRequest, "invalid_nonce", "Provided nonce is too low")
	errInvalidGas         = newError(http.StatusBadRequest, "invalid_gas", "Invalid Gas")
	errInvalidGasPrice    = newError(http.StatusBadRequest, "invalid_gas_price", "Invalid Gas Price")
	errInvalidTransaction = newError(http.StatusBadRequest, "invalid_transaction", "Invalid Transaction")
	errInvalidSignature   = newError(http.StatusBadRequest, "invalid_signature", "Invalid Signature")
	errMissingSignature   = newError(http.StatusBadRequest, "missing_signature", "Missing Signature")
	errInsufficientFunds  = newError(http.StatusBadRequest, "insufficient_funds", "Insufficient Funds")
	errUnexpected         = newError(http.StatusInternalServerError, "unexpected_error",
		"An error occurred communicating with the ethereum network, try again later")
)

func (s *Server) writeError(w http.ResponseWriter, e Error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.httpCode)
	if err := json.NewEncoder(w).Encode(errorResponse{Errors: []Error{e}}); err != nil {
		s.log.Warn("error encoding error response")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, httpCode int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Warn("error encoding response")
	}
}
