package content_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/docquiz/internal/content"
	"github.com/victornm/docquiz/internal/errors"
)

func TestStore_Excerpt(t *testing.T) {
	long := strings.Repeat("x", 250)

	tests := map[string]struct {
		db     *fakeDB
		assert func(t *testing.T, got string, err error, db *fakeDB)
	}{
		"chunks are clipped and joined": {
			db: &fakeDB{chunks: []string{"  first chunk  ", long}},
			assert: func(t *testing.T, got string, err error, db *fakeDB) {
				require.NoError(t, err)
				assert.Equal(t, "first chunk\n"+strings.Repeat("x", 200), got)
			},
		},
		"query carries limits and search terms": {
			db: &fakeDB{},
			assert: func(t *testing.T, got string, err error, db *fakeDB) {
				require.NoError(t, err)
				assert.Empty(t, got)
				assert.Equal(t, []any{"doc-1", 50, "index or key", 10}, db.args)
				assert.Contains(t, db.sql, "ts_rank")
			},
		},
		"query failure is upstream": {
			db: &fakeDB{queryErr: stderrors.New("pool closed")},
			assert: func(t *testing.T, got string, err error, db *fakeDB) {
				assert.True(t, errors.IsUpstream(err))
			},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := content.NewStore(content.Config{
				DB:          tt.db,
				SearchTerms: []string{"index", "key"},
			})

			got, err := s.Excerpt(context.Background(), "doc-1")
			tt.assert(t, got, err, tt.db)
		})
	}
}

func TestStore_Exists(t *testing.T) {
	s := content.NewStore(content.Config{DB: &fakeDB{exists: true}})
	ok, err := s.Exists(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)

	s = content.NewStore(content.Config{DB: &fakeDB{rowErr: stderrors.New("timeout")}})
	_, err = s.Exists(context.Background(), "doc-1")
	require.Error(t, err)
	assert.False(t, errors.IsUpstream(err))
}

func TestStore_Migrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, content.NewStore(content.Config{DB: db}).Migrate(context.Background()))
	assert.Contains(t, db.sql, "CREATE TABLE IF NOT EXISTS document_chunks")
}

type fakeDB struct {
	chunks   []string
	exists   bool
	queryErr error
	rowErr   error

	sql  string
	args []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	return pgconn.CommandTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.sql, f.args = sql, args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{values: f.chunks, i: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.sql, f.args = sql, args
	return fakeRow{exists: f.exists, err: f.rowErr}
}

type fakeRow struct {
	exists bool
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*bool) = r.exists
	return nil
}

type fakeRows struct {
	values []string
	i      int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.i++
	return r.i < len(r.values)
}

func (r *fakeRows) Scan(dest ...any) error {
	*dest[0].(*string) = r.values[r.i]
	return nil
}

func (r *fakeRows) Values() ([]any, error) {
	return []any{r.values[r.i]}, nil
}
