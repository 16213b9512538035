package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"insured/internal/insured/models"
	"insured/pkg/platform/sentinel"
	"insured/pkg/platform/tx"
)

const insuredColumns = `identification_number, first_name, middle_name, first_surname, second_surname,
	phone, email, birth_date, insured_value, notes, version`

// SQL persists insured persons in a relational database through database/sql.
// Every method joins the transaction carried by ctx when one is present.
type SQL struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQL constructs a SQL-backed store. Call EnsureSchema before first use on
// an empty database.
func NewSQL(db *sql.DB, dialect Dialect) *SQL {
	return &SQL{db: db, dialect: dialect}
}

// EnsureSchema creates the insured_persons table if it does not exist.
func (s *SQL) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("ensure insured_persons table: %w", err)
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQL) conn(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *SQL) Exists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.conn(ctx).QueryRowContext(ctx,
		s.dialect.bind(`SELECT 1 FROM insured_persons WHERE identification_number = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, storageErr("check insured person", err)
	}
	return true, nil
}

func (s *SQL) FindByID(ctx context.Context, id int64) (*models.InsuredPerson, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		s.dialect.bind(`SELECT `+insuredColumns+` FROM insured_persons WHERE identification_number = ?`), id)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("find insured person", err)
	}
	return p, nil
}

// Insert relies on ON CONFLICT DO NOTHING so the primary key, not a prior
// read, decides which of two concurrent creates wins.
func (s *SQL) Insert(ctx context.Context, p *models.InsuredPerson) error {
	res, err := s.conn(ctx).ExecContext(ctx, s.dialect.bind(`
		INSERT INTO insured_persons (`+insuredColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT (identification_number) DO NOTHING`),
		p.IdentificationNumber,
		p.FirstName,
		nullString(p.MiddleName),
		p.FirstSurname,
		p.SecondSurname,
		p.Phone,
		p.Email,
		s.dialect.dateArg(p.BirthDate),
		p.InsuredValue.Decimal.String(),
		nullString(p.Notes),
	)
	if err != nil {
		return storageErr("insert insured person", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("insert insured person", err)
	}
	if affected == 0 {
		return sentinel.ErrAlreadyExists
	}
	p.Version = 1
	return nil
}

// Replace overwrites every data column. With expectedVersion > 0 the write is
// a compare-and-swap on the version column.
func (s *SQL) Replace(ctx context.Context, id int64, p *models.InsuredPerson, expectedVersion int64) error {
	query := `
		UPDATE insured_persons SET
			first_name = ?,
			middle_name = ?,
			first_surname = ?,
			second_surname = ?,
			phone = ?,
			email = ?,
			birth_date = ?,
			insured_value = ?,
			notes = ?,
			version = version + 1
		WHERE identification_number = ?`
	args := []any{
		p.FirstName,
		nullString(p.MiddleName),
		p.FirstSurname,
		p.SecondSurname,
		p.Phone,
		p.Email,
		s.dialect.dateArg(p.BirthDate),
		p.InsuredValue.Decimal.String(),
		nullString(p.Notes),
		id,
	}
	if expectedVersion != 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}
	query += ` RETURNING version`

	var version int64
	err := s.conn(ctx).QueryRowContext(ctx, s.dialect.bind(query), args...).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return s.missOrConflict(ctx, id)
	}
	if err != nil {
		return storageErr("replace insured person", err)
	}
	p.Version = version
	return nil
}

func (s *SQL) Delete(ctx context.Context, id int64, expectedVersion int64) error {
	query := `DELETE FROM insured_persons WHERE identification_number = ?`
	args := []any{id}
	if expectedVersion != 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}
	res, err := s.conn(ctx).ExecContext(ctx, s.dialect.bind(query), args...)
	if err != nil {
		return storageErr("delete insured person", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete insured person", err)
	}
	if affected == 0 {
		return s.missOrConflict(ctx, id)
	}
	return nil
}

// missOrConflict classifies a write that matched no row.
func (s *SQL) missOrConflict(ctx context.Context, id int64) error {
	exists, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func (s *SQL) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM insured_persons`).Scan(&n); err != nil {
		return 0, storageErr("count insured persons", err)
	}
	return n, nil
}

func (s *SQL) ListPage(ctx context.Context, offset, limit int) ([]*models.InsuredPerson, error) {
	out := []*models.InsuredPerson{}
	if offset < 0 || limit <= 0 {
		return out, nil
	}
	rows, err := s.conn(ctx).QueryContext(ctx, s.dialect.bind(`
		SELECT `+insuredColumns+`
		FROM insured_persons
		ORDER BY identification_number
		LIMIT ? OFFSET ?`), limit, offset)
	if err != nil {
		return nil, storageErr("list insured persons", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, storageErr("scan insured person", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list insured persons", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPerson(row rowScanner) (*models.InsuredPerson, error) {
	var (
		p          models.InsuredPerson
		middleName sql.NullString
		notes      sql.NullString
		birthDate  any
		value      decimal.Decimal
	)
	err := row.Scan(
		&p.IdentificationNumber,
		&p.FirstName,
		&middleName,
		&p.FirstSurname,
		&p.SecondSurname,
		&p.Phone,
		&p.Email,
		&birthDate,
		&value,
		&notes,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	if p.BirthDate, err = parseDate(birthDate); err != nil {
		return nil, err
	}
	p.InsuredValue = decimal.NewNullDecimal(value)
	if middleName.Valid {
		p.MiddleName = &middleName.String
	}
	if notes.Valid {
		p.Notes = &notes.String
	}
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// storageErr marks driver failures as unavailable storage while keeping
// context cancellation recognizable to callers. Postgres data exceptions
// (SQLSTATE class 22) are the caller's input, not an outage.
func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sqlState(err) == dataExceptionClass {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrInvalidData, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
}

const dataExceptionClass = "22"

// sqlState returns the two-character SQLSTATE class reported by either
// Postgres driver, or "" for other errors.
func sqlState(err error) string {
	var code string
	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgErr):
		code = pgErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	}
	if len(code) < 2 {
		return ""
	}
	return code[:2]
}
