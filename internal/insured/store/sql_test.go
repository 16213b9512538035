package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"insured/pkg/platform/sentinel"
)

type SQLiteSuite struct {
	contractSuite
	db  *sql.DB
	sql *SQL
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteSuite))
}

func (s *SQLiteSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	s.Require().NoError(err)
	// every pooled connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	s.db = db
	s.sql = NewSQL(db, SQLite)
	s.Require().NoError(s.sql.EnsureSchema(s.ctx))
	s.store = s.sql
}

func (s *SQLiteSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *SQLiteSuite) TestEnsureSchemaIsIdempotent() {
	s.Require().NoError(s.sql.EnsureSchema(s.ctx))
}

func (s *SQLiteSuite) TestTransactions() {
	runner := NewSQLTx(s.db)

	s.Run("commit persists every write", func() {
		err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.sql.Insert(ctx, newPerson(8001)); err != nil {
				return err
			}
			return s.sql.Insert(ctx, newPerson(8002))
		})
		s.Require().NoError(err)

		n, err := s.sql.Count(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, n)
	})

	s.Run("error rolls back", func() {
		boom := errors.New("boom")
		err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := s.sql.Insert(ctx, newPerson(8003)); err != nil {
				return err
			}
			return boom
		})
		s.ErrorIs(err, boom)

		ok, err := s.sql.Exists(s.ctx, 8003)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("panic rolls back and propagates", func() {
		s.Panics(func() {
			_ = runner.RunInTx(s.ctx, func(ctx context.Context) error {
				_ = s.sql.Insert(ctx, newPerson(8004))
				panic("unexpected")
			})
		})
		ok, err := s.sql.Exists(s.ctx, 8004)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("nested calls join the outer transaction", func() {
		boom := errors.New("outer failure")
		err := runner.RunInTx(s.ctx, func(ctx context.Context) error {
			if err := runner.RunInTx(ctx, func(ctx context.Context) error {
				return s.sql.Insert(ctx, newPerson(8005))
			}); err != nil {
				return err
			}
			return boom
		})
		s.ErrorIs(err, boom)

		ok, err := s.sql.Exists(s.ctx, 8005)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *SQLiteSuite) TestClosedDatabaseIsUnavailable() {
	s.Require().NoError(s.db.Close())

	_, err := s.sql.FindByID(s.ctx, 1)
	s.ErrorIs(err, sentinel.ErrUnavailable)
}

func TestDialectBind(t *testing.T) {
	q := `SELECT a FROM t WHERE x = ? AND y = ?`
	require.Equal(t, `SELECT a FROM t WHERE x = $1 AND y = $2`, Postgres.bind(q))
	require.Equal(t, q, SQLite.bind(q))
}

func TestDialectFor(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		d, err := DialectFor(driver)
		require.NoError(t, err)
		require.Equal(t, "postgres", d.Name)
	}
	d, err := DialectFor("sqlite")
	require.NoError(t, err)
	require.Equal(t, "sqlite", d.Name)

	_, err = DialectFor("oracle")
	require.Error(t, err)
}

func TestParseDate(t *testing.T) {
	for _, raw := range []any{"1990-05-17", []byte("1990-05-17")} {
		d, err := parseDate(raw)
		require.NoError(t, err)
		require.Equal(t, "1990-05-17", d.String())
	}
	_, err := parseDate(42)
	require.Error(t, err)
}

func TestStorageErrClassifiesDataExceptions(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"pgx numeric overflow", &pgconn.PgError{Code: "22003"}, sentinel.ErrInvalidData},
		{"lib/pq bad byte sequence", &pq.Error{Code: "22021"}, sentinel.ErrInvalidData},
		{"wrapped data exception", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "22P02"}), sentinel.ErrInvalidData},
		{"connection failure", &pgconn.PgError{Code: "08006"}, sentinel.ErrUnavailable},
		{"plain driver error", errors.New("broken pipe"), sentinel.ErrUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := storageErr("insert insured person", tc.err)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, tc.err)
		})
	}

	require.NotErrorIs(t, storageErr("list", context.Canceled), sentinel.ErrUnavailable)
}
