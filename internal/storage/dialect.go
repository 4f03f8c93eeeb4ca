package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Dialect names a SQL backend and hides its driver differences.
type Dialect string

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return string(d)
}

// DSN adds the connection options the store relies on.
func (d Dialect) DSN(dsn string) string {
	if d != SQLite || strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Rebind rewrites ? placeholders into the dialect's native form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
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

func toCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDate(d core.Date) any {
	if d.IsZero() {
		return nil
	}
	return d.String()
}

// sqlDate scans DATE columns (postgres) and YYYY-MM-DD text (sqlite).
type sqlDate struct {
	core.Date
}

func (d *sqlDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date = core.Date{}
	case time.Time:
		d.Date = core.DateOf(v)
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
	return nil
}

func (d *sqlDate) parse(s string) error {
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	d.Date = parsed
	return nil
}

// sqlTime scans TIMESTAMPTZ columns (postgres) and RFC 3339 text (sqlite).
type sqlTime struct {
	time.Time
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
	case time.Time:
		t.Time = v.UTC()
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("scan time: unsupported type %T", src)
	}
	return nil
}

func (t *sqlTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("scan time %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}
