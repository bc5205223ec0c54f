package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VoteService/internal/core/votes"
)

// healthyDriver is an always-up database that answers every query with a
// zero score row
type healthyDriver struct{}

func (healthyDriver) Open(string) (driver.Conn, error) { return &healthyConn{}, nil }

type healthyConn struct{}

func (c *healthyConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("prepare not supported")
}
func (c *healthyConn) Close() error              { return nil }
func (c *healthyConn) Begin() (driver.Tx, error) { return nil, errors.New("transactions not supported") }

func (c *healthyConn) QueryContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Rows, error) {
	return &scoreRows{}, nil
}

type scoreRows struct {
	done bool
}

func (r *scoreRows) Columns() []string { return []string{"up", "down"} }
func (r *scoreRows) Close() error      { return nil }

func (r *scoreRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = int64(0)
	dest[1] = int64(0)
	return nil
}

func init() {
	sql.Register("healthy-votes", healthyDriver{})
}

// Waiting for a pooled connection is saturation, not an outage: it must not
// open the circuit
func TestVoteRepo_SaturatedPoolDoesNotTripBreaker(t *testing.T) {
	db, err := sql.Open("healthy-votes", "")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	repo := NewVoteRepository(db,
		WithOperationTimeout(50*time.Millisecond),
		WithCircuitBreaker(3, time.Minute),
	)
	ctx := context.Background()
	sel := votes.Selector{ItemID: 1, ItemKind: votes.ItemKindComment}

	// Hold the only connection
	held, err := db.Conn(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := repo.Score(ctx, sel)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, votes.ErrCircuitOpen, "call %d rejected by the breaker", i)

		var se *votes.StorageError
		require.ErrorAs(t, err, &se)
		assert.False(t, se.IsConnectivity())
	}

	require.NoError(t, held.Close())

	score, err := repo.Score(ctx, sel)
	require.NoError(t, err)
	assert.Equal(t, votes.Score{}, score)
}
