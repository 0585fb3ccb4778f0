// Package ledger implements the gateway's durable store: the pending
// (broadcast-but-unconfirmed) transaction ledger and the notification
// registration tables, backed by postgres.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// PendingTx is one row of the pending ledger. Value and GasCost are
// stored as decimal strings to preserve the full 256-bit range.
type PendingTx struct {
	Hash          string
	From          string
	To            string
	Value         *big.Int
	GasCost       *big.Int
	SenderTokenID string // empty for anonymous submissions
}

// Ledger wraps the relational store. Connections are pooled; each
// method uses at most one short transaction.
type Ledger struct {
	db  *sql.DB
	log *zap.Logger
}

// Open connects to the database at the given postgres URL.
func Open(ctx context.Context, url string, log *zap.Logger) (*Ledger, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Ledger{db: db, log: log}, nil
}

// NewFromDB wraps an existing database handle. Used by tests.
func NewFromDB(db *sql.DB, log *zap.Logger) *Ledger {
	return &Ledger{db: db, log: log}
}

// EnsureSchema creates the gateway tables when they don't exist yet.
// Full schema migration is handled out of band.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// PendingSums computes, within a single read transaction, the total
// outgoing amount (value plus estimated gas cost) of unconfirmed
// transactions sent from addr and, when includeIn is set, the total
// incoming value of unconfirmed transactions sent to addr.
func (l *Ledger) PendingSums(ctx context.Context, addr string, includeIn bool) (out, in *big.Int, err error) {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback()

	out = new(big.Int)
	in = new(big.Int)

	rows, err := tx.QueryContext(ctx,
		"SELECT value, estimated_gas_cost FROM transactions WHERE confirmed IS NULL AND from_address = $1", addr)
	if err != nil {
		return nil, nil, err
	}
	for rows.Next() {
		var value, gasCost string
		if err := rows.Scan(&value, &gasCost); err != nil {
			rows.Close()
			return nil, nil, err
		}
		for _, s := range [...]string{value, gasCost} {
			i, ok := new(big.Int).SetString(s, 10)
			if !ok {
				rows.Close()
				return nil, nil, fmt.Errorf("malformed ledger amount %q", s)
			}
			out.Add(out, i)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, nil, err
	}

	if includeIn {
		rows, err = tx.QueryContext(ctx,
			"SELECT value FROM transactions WHERE confirmed IS NULL AND to_address = $1", addr)
		if err != nil {
			return nil, nil, err
		}
		for rows.Next() {
			var value string
			if err := rows.Scan(&value); err != nil {
				rows.Close()
				return nil, nil, err
			}
			i, ok := new(big.Int).SetString(value, 10)
			if !ok {
				rows.Close()
				return nil, nil, fmt.Errorf("malformed ledger amount %q", value)
			}
			in.Add(in, i)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, nil, err
		}
		if err := rows.Close(); err != nil {
			return nil, nil, err
		}
	}
	return out, in, tx.Commit()
}

// InsertPending records a broadcast transaction. A conflicting hash is
// treated as success: the transaction is already on the network and
// the row the caller needs already exists.
func (l *Ledger) InsertPending(ctx context.Context, ptx PendingTx) error {
	tokenID := sql.NullString{String: ptx.SenderTokenID, Valid: ptx.SenderTokenID != ""}
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO transactions (transaction_hash, from_address, to_address, value, estimated_gas_cost, sender_token_id)
		 VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (transaction_hash) DO NOTHING`,
		ptx.Hash, ptx.From, ptx.To, ptx.Value.String(), ptx.GasCost.String(), tokenID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		l.log.Info("duplicate pending transaction", zap.String("hash", ptx.Hash))
	}
	return nil
}

// RegisterNotifications inserts (tokenID, address) pairs, ignoring
// pairs that are already registered.
func (l *Ledger) RegisterNotifications(ctx context.Context, tokenID string, addrs []string) error {
	placeholders := make([]string, len(addrs))
	args := make([]any, 0, len(addrs)*2)
	for i, addr := range addrs {
		placeholders[i] = fmt.Sprintf("($%d, $%d)", i*2+1, i*2+2)
		args = append(args, tokenID, addr)
	}
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO notification_registrations (token_id, eth_address) VALUES "+
			strings.Join(placeholders, ", ")+" ON CONFLICT DO NOTHING", args...)
	return err
}

// DeregisterNotifications removes the subset of tokenID's
// registrations matching the supplied addresses.
func (l *Ledger) DeregisterNotifications(ctx context.Context, tokenID string, addrs []string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM notification_registrations WHERE token_id = $1 AND eth_address = ANY($2)",
		tokenID, pq.Array(addrs))
	return err
}

// RegisterPushEndpoint upserts a push-notification endpoint keyed by
// (service, registrationID), last writer wins on the token identity.
func (l *Ledger) RegisterPushEndpoint(ctx context.Context, service, registrationID, tokenID string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO push_notification_registrations (service, registration_id, token_id)
		 VALUES ($1, $2, $3) ON CONFLICT (service, registration_id) DO UPDATE SET token_id = $3`,
		service, registrationID, tokenID)
	return err
}

// DeregisterPushEndpoint removes a push-notification endpoint.
func (l *Ledger) DeregisterPushEndpoint(ctx context.Context, service, registrationID, tokenID string) error {
	_, err := l.db.ExecContext(ctx,
		"DELETE FROM push_notification_registrations WHERE service = $1 AND registration_id = $2 AND token_id = $3",
		service, registrationID, tokenID)
	return err
}

// Close releases the connection pool.
func (l *Ledger) Close() error {
	return l.db.Close()
}
