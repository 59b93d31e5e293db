package localcart

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeDB emulates the guest_carts statements the postgres backend issues.
type fakeDB struct {
	rows map[string][]byte
	err  error
}

type fakeRow struct {
	raw []byte
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.raw
	return nil
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	switch {
	case strings.Contains(sql, "INSERT INTO guest_carts"):
		f.rows[args[0].(string)] = args[1].([]byte)
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	case strings.Contains(sql, "DELETE FROM guest_carts WHERE slot"):
		delete(f.rows, args[0].(string))
		return pgconn.NewCommandTag("DELETE 1"), nil
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.err != nil {
		return fakeRow{err: f.err}
	}
	raw, ok := f.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{raw: raw}
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	db := &fakeDB{rows: map[string][]byte{}}
	s := NewPostgres(db, 0, zap.NewNop().Sugar()).Slot("session-1")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())

	require.NoError(t, s.Save(ctx, sampleCart()))
	assert.Contains(t, db.rows, "guest_cart:session-1")

	got, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleCart(), got)

	require.NoError(t, s.Clear(ctx))
	assert.Empty(t, db.rows)
}

func TestPostgresStoreErrors(t *testing.T) {
	ctx := context.Background()

	db := &fakeDB{rows: map[string][]byte{"guest_cart:s": []byte(`nope`)}}
	got, err := NewPostgres(db, 0, zap.NewNop().Sugar()).Slot("s").Load(ctx)
	require.NoError(t, err, "corrupt rows are recovered as empty")
	assert.True(t, got.IsEmpty())

	db.err = errors.New("connection refused")
	_, err = NewPostgres(db, 0, zap.NewNop().Sugar()).Slot("s").Load(ctx)
	assert.ErrorContains(t, err, "connection refused")
}
