package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InsuredPerson is the only resource managed by the registry.
//
// Invariants:
//   - IdentificationNumber is supplied by the caller and never changes
//   - a stored record always passes Validate
//   - Version is owned by the store: 1 after insert, +1 per replace
type InsuredPerson struct {
	IdentificationNumber int64               `json:"identificationNumber"`
	FirstName            string              `json:"firstName"`
	MiddleName           *string             `json:"middleName,omitempty"`
	FirstSurname         string              `json:"firstSurname"`
	SecondSurname        string              `json:"secondSurname"`
	Phone                string              `json:"phone"`
	Email                string              `json:"email"`
	BirthDate            Date                `json:"birthDate"`
	InsuredValue         decimal.NullDecimal `json:"insuredValue"`
	Notes                *string             `json:"notes,omitempty"`

	// Version is the optimistic concurrency token. Zero means "unknown" on
	// writes coming from callers that did not send If-Match.
	Version int64 `json:"-"`
}

// MarshalJSON writes insuredValue as a JSON number rather than the quoted
// string shopspring/decimal produces by default.
func (p InsuredPerson) MarshalJSON() ([]byte, error) {
	type wire InsuredPerson
	value := []byte("null")
	if p.InsuredValue.Valid {
		value = []byte(p.InsuredValue.Decimal.String())
	}
	return json.Marshal(struct {
		wire
		InsuredValue json.RawMessage `json:"insuredValue"`
	}{wire: wire(p), InsuredValue: value})
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (p *InsuredPerson) Clone() *InsuredPerson {
	if p == nil {
		return nil
	}
	c := *p
	c.MiddleName = cloneString(p.MiddleName)
	c.Notes = cloneString(p.Notes)
	return &c
}

// Equal compares every data field, ignoring Version. Decimal values compare
// numerically so "1000" and "1000.00" are equal.
func (p *InsuredPerson) Equal(o *InsuredPerson) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.IdentificationNumber == o.IdentificationNumber &&
		p.FirstName == o.FirstName &&
		equalString(p.MiddleName, o.MiddleName) &&
		p.FirstSurname == o.FirstSurname &&
		p.SecondSurname == o.SecondSurname &&
		p.Phone == o.Phone &&
		p.Email == o.Email &&
		p.BirthDate.Equal(o.BirthDate) &&
		p.InsuredValue.Valid == o.InsuredValue.Valid &&
		p.InsuredValue.Decimal.Equal(o.InsuredValue.Decimal) &&
		equalString(p.Notes, o.Notes)
}

// FullName joins the name parts for log lines.
func (p *InsuredPerson) FullName() string {
	parts := []string{p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	parts = append(parts, p.FirstSurname, p.SecondSurname)
	return strings.Join(parts, " ")
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// dateLayout is the wire and storage format of Date.
const dateLayout = "2006-01-02"

// Date is a calendar date without time of day, held at UTC midnight.
// The zero Date means "absent".
type Date struct {
	time.Time
}

// NewDate builds a Date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate accepts YYYY-MM-DD, RFC 3339 and "YYYY-MM-DDTHH:MM:SS".
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
}

// Equal reports whether both values denote the same calendar date.
func (d Date) Equal(o Date) bool {
	if d.IsZero() || o.IsZero() {
		return d.IsZero() == o.IsZero()
	}
	return d.Year() == o.Year() && d.Month() == o.Month() && d.Day() == o.Day()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("birthDate must be a string date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
