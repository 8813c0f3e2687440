// Package pgdb provides a postgres backed issuance Journal for the authority.
package pgdb

import (
	"context"
	_ "embed"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"code.roadauth.org/golang/pkg/authority"
)

// PGDB is implemented by pgx.Tx, pgx.Conn & pgxpool.Pool
// accessing a postgres database through this common interface simplifies testing
type PGDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

//go:embed journal_schema.sql
var schemaScriptTpl string

// JournalMigrate creates the issuance table under dbschema.
func JournalMigrate(pgconn *pgx.Conn, dbschema string) error {

	// render schema creation script
	schemaName := pgx.Identifier{dbschema}.Sanitize()
	schemaScript := strings.ReplaceAll(schemaScriptTpl, "${schema_name}", schemaName)

	_, err := pgconn.Exec(context.Background(), schemaScript)

	return wrapError(err, "Failed db schema initialization") // nil if err is nil...
}

// Journal is a postgres backed authority.Journal.
type Journal struct {
	DB PGDB
}

// NewJournal returns a Journal backed by a connection pool on dsn.
func NewJournal(ctx context.Context, dsn string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if nil != err {
		return nil, wrapError(err, "failed connection pool creation")
	}

	return &Journal{DB: pool}, nil
}

// Record registers entry.
// It errors with authority.ErrDuplicate if the identity was journaled before.
func (self *Journal) Record(ctx context.Context, entry authority.JournalEntry) error {
	var created int
	row := self.DB.QueryRow(
		ctx,
		`WITH created AS (INSERT INTO issuance(identity, ai, ar, issued_at)
		   VALUES ($1, $2, $3, $4)
		   ON CONFLICT(identity) DO NOTHING
		   RETURNING 1)
		 SELECT count(*) FROM created`,
		entry.Identity,
		entry.Ai,
		entry.Ar,
		entry.IssuedAt,
	)
	err := row.Scan(&created)
	if nil != err {
		return wrapError(err, "failed recording issuance")
	}
	if 1 != created {
		return wrapError(authority.ErrDuplicate, "identity already journaled")
	}

	return nil
}

// Lookup returns the entry journaled for identity.
// The bool flag is true if such an entry exists.
func (self *Journal) Lookup(ctx context.Context, identity []byte) (authority.JournalEntry, bool, error) {
	var entry authority.JournalEntry
	row := self.DB.QueryRow(
		ctx,
		`SELECT identity, ai, ar, issued_at
		 FROM issuance
		 WHERE identity = $1`,
		identity,
	)
	err := row.Scan(&entry.Identity, &entry.Ai, &entry.Ar, &entry.IssuedAt)
	if nil != err {
		if errors.Is(err, pgx.ErrNoRows) {
			return entry, false, nil
		}
		return entry, false, wrapError(err, "failed loading issuance")
	}

	return entry, true, nil
}

// Count returns the number of journaled issuances.
func (self *Journal) Count(ctx context.Context) (int, error) {
	var rv int
	row := self.DB.QueryRow(
		ctx,
		`SELECT COUNT(*) FROM issuance`,
	)
	err := row.Scan(&rv)
	if nil != err {
		return 0, wrapError(err, "failed count query")
	}

	return rv, nil
}

var _ authority.Journal = &Journal{}
