package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"insured/internal/insured/models"
)

// Dialect captures the differences between the SQL engines the store runs on.
type Dialect struct {
	Name   string
	schema string
	// numbered placeholders ($1, $2) instead of "?"
	numbered bool
	// dates are stored as YYYY-MM-DD text rather than a DATE column
	textDates bool
}

var (
	// Postgres serves both the lib/pq ("postgres") and pgx ("pgx") drivers.
	Postgres = Dialect{
		Name:     "postgres",
		numbered: true,
		schema: `CREATE TABLE IF NOT EXISTS insured_persons (
			identification_number BIGINT PRIMARY KEY,
			first_name TEXT NOT NULL,
			middle_name TEXT,
			first_surname TEXT NOT NULL,
			second_surname TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT NOT NULL,
			birth_date DATE NOT NULL,
			insured_value NUMERIC NOT NULL,
			notes TEXT,
			version BIGINT NOT NULL DEFAULT 1
		)`,
	}

	SQLite = Dialect{
		Name:      "sqlite",
		textDates: true,
		schema: `CREATE TABLE IF NOT EXISTS insured_persons (
			identification_number INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL,
			middle_name TEXT,
			first_surname TEXT NOT NULL,
			second_surname TEXT NOT NULL,
			phone TEXT NOT NULL,
			email TEXT NOT NULL,
			birth_date TEXT NOT NULL,
			insured_value TEXT NOT NULL,
			notes TEXT,
			version INTEGER NOT NULL DEFAULT 1
		)`,
	}
)

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite":
		return SQLite, nil
	default:
		return Dialect{}, fmt.Errorf("no SQL dialect for driver %q", driver)
	}
}

// bind rewrites "?" placeholders for engines that number them.
func (d Dialect) bind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) dateArg(date models.Date) any {
	if d.textDates {
		return date.String()
	}
	return date.Time
}

// parseDate accepts whatever the driver hands back for birth_date.
func parseDate(raw any) (models.Date, error) {
	switch v := raw.(type) {
	case time.Time:
		return models.DateOf(v), nil
	case string:
		return models.ParseDate(v)
	case []byte:
		return models.ParseDate(string(v))
	case nil:
		return models.Date{}, nil
	default:
		return models.Date{}, fmt.Errorf("unexpected birth_date type: %T", raw)
	}
}
