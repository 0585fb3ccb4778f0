package config

import (
	"errors"
	"time"
)

const (
	// DefaultGas is the gas limit used for skeleton transactions when
	// the client doesn't provide one. It covers a plain value transfer.
	DefaultGas = 21000
	// DefaultGasPrice is the gas price (in wei) used for skeleton
	// transactions when the client doesn't provide one.
	DefaultGasPrice = 20000000000
	// DefaultRequestTimeout bounds every upstream call made on behalf
	// of a single client request.
	DefaultRequestTimeout = 30 * time.Second
)

// GatewayConfiguration is the gateway service configuration.
type GatewayConfiguration struct {
	// Addresses holds the list of bind addresses in the form of "address:port".
	Addresses []string `yaml:"Addresses"`
	// ChainRPC is the URL of the upstream Ethereum JSON-RPC node.
	ChainRPC string `yaml:"ChainRPC"`
	// ChainID is the EIP-155 chain ID used for signature recovery and
	// attachment. Zero means pre-EIP-155 (homestead) signatures.
	ChainID uint64 `yaml:"ChainID"`
	// DatabaseURL is the postgres connection string for the pending
	// transaction ledger.
	DatabaseURL string `yaml:"DatabaseURL"`
	// CacheURL is the redis connection string for the nonce cache.
	CacheURL string `yaml:"CacheURL"`

	DefaultGas      uint64        `yaml:"DefaultGas"`
	DefaultGasPrice uint64        `yaml:"DefaultGasPrice"`
	RequestTimeout  time.Duration `yaml:"RequestTimeout"`
}

// Validate checks GatewayConfiguration for internal consistency. It
// returns an error if the configuration is invalid.
func (cfg *GatewayConfiguration) Validate() error {
	if cfg.ChainRPC == "" {
		return errors.New("ChainRPC is not set")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DatabaseURL is not set")
	}
	if cfg.CacheURL == "" {
		return errors.New("CacheURL is not set")
	}
	if cfg.DefaultGas == 0 {
		cfg.DefaultGas = DefaultGas
	}
	if cfg.DefaultGasPrice == 0 {
		cfg.DefaultGasPrice = DefaultGasPrice
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return nil
}
