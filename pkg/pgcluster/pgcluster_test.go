package pgcluster_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/marmos91/dittostore/pkg/pgcluster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	value string
	err   error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = r.value
	return nil
}

type querier struct {
	row row
	sql string
}

func (q *querier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.sql = sql
	return q.row
}

func TestQueryDataDirectory(t *testing.T) {
	tests := []struct {
		name    string
		row     row
		want    string
		wantErr error
	}{
		{"found", row{value: "/var/lib/postgresql/16/main"}, "/var/lib/postgresql/16/main", nil},
		{"empty", row{}, "", pgcluster.ErrEmptyDataDirectory},
		{"no rows", row{err: pgx.ErrNoRows}, "", pgx.ErrNoRows},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &querier{row: tt.row}
			dir, err := pgcluster.QueryDataDirectory(t.Context(), q)
			assert.Equal(t, "SHOW data_directory", q.sql)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, dir)
		})
	}
}

func TestDataDirectory_Validation(t *testing.T) {
	_, err := pgcluster.DataDirectory(t.Context(), "")
	assert.ErrorIs(t, err, pgcluster.ErrNoConnString)

	_, err = pgcluster.DataDirectory(t.Context(), "postgres://%zz")
	assert.Error(t, err)
}
