// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database types
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// Dialect papers over the few places where Postgres and SQLite disagree.
// Queries are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Name string
}

// DialectFor returns the dialect for a DATABASE_TYPE value.
func DialectFor(dbType string) (Dialect, error) {
	switch strings.ToLower(dbType) {
	case Postgres, "postgresql":
		return Dialect{Name: Postgres}, nil
	case SQLite, "sqlite3", "":
		return Dialect{Name: SQLite}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Open connects to the database, verifies the connection and returns the
// matching dialect.
func Open(ctx context.Context, dbType, url string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(dbType)
	if err != nil {
		return nil, Dialect{}, err
	}

	dsn := url
	if d.Name == SQLite {
		dsn = sqliteDSN(url)
	}

	conn, err := sql.Open(d.Name, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open %s database: %w", d.Name, err)
	}

	// SQLite allows a single writer; funnel everything through one
	// connection so transactions serialize instead of failing busy.
	if d.Name == SQLite {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, Dialect{}, fmt.Errorf("database ping failed: %w", err)
	}

	return conn, d, nil
}

func sqliteDSN(url string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	if strings.Contains(url, "?") {
		return url + "&" + pragmas
	}
	return url + "?" + pragmas
}

// Rebind rewrites ? placeholders to $N for Postgres.
func (d Dialect) Rebind(query string) string {
	if d.Name != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// LockClause returns the row locking suffix for SELECTs that precede a
// state transition. SQLite transactions already serialize.
func (d Dialect) LockClause() string {
	if d.Name == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (d Dialect) serialKey() string {
	if d.Name == Postgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// IsUniqueViolation reports whether err came from a unique or primary key
// constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}

	return false
}
