package ledger

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errReset = errors.New("connection reset")

// flakyConn serves canned two-column rows and, when failAt is
// non-negative, fails iteration at that row index the way a dropped
// connection does.
type flakyConn struct {
	rows   [][]driver.Value
	failAt int
}

type flakyDriver struct {
	conn *flakyConn
}

func (d *flakyDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *flakyConn) Prepare(string) (driver.Stmt, error) { return &flakyStmt{c: c}, nil }
func (c *flakyConn) Close() error                        { return nil }
func (c *flakyConn) Begin() (driver.Tx, error)           { return nopTx{}, nil }

func (c *flakyConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return nopTx{}, nil
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type flakyStmt struct {
	c *flakyConn
}

func (s *flakyStmt) Close() error  { return nil }
func (s *flakyStmt) NumInput() int { return -1 }

func (s *flakyStmt) Exec([]driver.Value) (driver.Result, error) {
	return nil, errors.New("exec not supported")
}

func (s *flakyStmt) Query([]driver.Value) (driver.Rows, error) {
	return &flakyRows{rows: s.c.rows, failAt: s.c.failAt}, nil
}

type flakyRows struct {
	rows   [][]driver.Value
	failAt int
	pos    int
}

func (r *flakyRows) Columns() []string { return []string{"value", "estimated_gas_cost"} }
func (r *flakyRows) Close() error      { return nil }

func (r *flakyRows) Next(dest []driver.Value) error {
	if r.failAt >= 0 && r.pos == r.failAt {
		return errReset
	}
	if r.pos >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.pos])
	r.pos++
	return nil
}

func openFlakyLedger(t *testing.T, conn *flakyConn) *Ledger {
	name := "flaky-" + t.Name()
	sql.Register(name, &flakyDriver{conn: conn})
	db, err := sql.Open(name, "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFromDB(db, zaptest.NewLogger(t))
}

func TestPendingSumsOut(t *testing.T) {
	l := openFlakyLedger(t, &flakyConn{
		rows: [][]driver.Value{
			{"20", "10"},
			{"5", "2"},
		},
		failAt: -1,
	})

	out, in, err := l.PendingSums(context.Background(), "0xaa", false)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(37), out)
	require.Equal(t, new(big.Int), in)
}

// A connection failure mid-iteration must surface as an error, not as
// a truncated sum: a partial pending-out total would overstate the
// effective balance.
func TestPendingSumsIterationFailure(t *testing.T) {
	l := openFlakyLedger(t, &flakyConn{
		rows: [][]driver.Value{
			{"20", "10"},
			{"5", "2"},
		},
		failAt: 1,
	})

	_, _, err := l.PendingSums(context.Background(), "0xaa", false)
	require.ErrorIs(t, err, errReset)
}

func TestPendingSumsImmediateFailure(t *testing.T) {
	l := openFlakyLedger(t, &flakyConn{failAt: 0})

	_, _, err := l.PendingSums(context.Background(), "0xaa", true)
	require.ErrorIs(t, err, errReset)
}
