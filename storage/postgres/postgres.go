// Package postgres has a storage provider that uses a PostgreSQL database table.
//
// The database table has the following structure, and is created by
// Provision if it does not exist:
//
//	create table <table_name>(
//	  key character varying(255) primary key,
//	  session_data text not null,
//	  expires_at timestamp with time zone null
//	)
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jjeffery/ddbsessions/storage"
	"github.com/jjeffery/errors"
	"github.com/lib/pq"
)

// DefaultTableName is used when New is called with a blank table name.
const DefaultTableName = "http_sessions"

// Provider provides storage for sessions using a PostgreSQL table.
// It implements the storage.Provider and storage.Provisioner interfaces.
//
// The structure of the SQL table is described in the package comment.
type Provider struct {
	db        *sql.DB
	tableName string
	ident     string
}

var (
	_ storage.Provider    = (*Provider)(nil)
	_ storage.Provisioner = (*Provider)(nil)
)

// New creates a new Provider given a database handle and the PostgreSQL table name.
func New(db *sql.DB, tableName string) *Provider {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &Provider{
		db:        db,
		tableName: tableName,
		ident:     pq.QuoteIdentifier(tableName),
	}
}

// TableName returns the name of the table.
func (db *Provider) TableName() string {
	return db.tableName
}

// Provision implements the storage.Provisioner interface. It creates the
// table if it does not exist.
func (db *Provider) Provision(ctx context.Context) error {
	queryFmt := `create table if not exists %s(` +
		`key character varying(255) primary key,` +
		` session_data text not null,` +
		` expires_at timestamp with time zone null)`
	query := fmt.Sprintf(queryFmt, db.ident)
	if _, err := db.db.ExecContext(ctx, query); err != nil {
		return &storage.ProvisionError{Table: db.tableName, Err: err}
	}
	return nil
}

// DropTable deletes the table.
func (db *Provider) DropTable(ctx context.Context) error {
	query := fmt.Sprintf(`drop table if exists %s`, db.ident)
	if _, err := db.db.ExecContext(ctx, query); err != nil {
		return errors.Wrap(err, "cannot drop table").With("table", db.tableName)
	}
	return nil
}

// Fetch implements the storage.Provider interface. Rows that have
// expired but have not been purged are not returned.
func (db *Provider) Fetch(ctx context.Context, key string) (*storage.Item, error) {
	errors := errors.With("key", key, "table", db.tableName)
	var (
		data    string
		expires sql.NullTime
	)
	queryFmt := `select session_data, expires_at from %s` +
		` where key = $1 and (expires_at is null or expires_at > now())`
	query := fmt.Sprintf(queryFmt, db.ident)
	err := db.db.QueryRowContext(ctx, query, key).Scan(&data, &expires)
	if err == sql.ErrNoRows {
		// not found
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot get row")
	}
	item := &storage.Item{
		Key:  key,
		Data: data,
	}
	if expires.Valid {
		item.ExpiresAt = expires.Time
	}
	return item, nil
}

// Save implements the storage.Provider interface.
func (db *Provider) Save(ctx context.Context, item *storage.Item) error {
	var expires sql.NullTime
	if !item.ExpiresAt.IsZero() {
		expires.Valid = true
		expires.Time = item.ExpiresAt
	}
	queryFmt := `insert into %s(key, session_data, expires_at) values($1, $2, $3)` +
		` on conflict(key) do update set session_data = $2, expires_at = $3`
	query := fmt.Sprintf(queryFmt, db.ident)
	if _, err := db.db.ExecContext(ctx, query, item.Key, item.Data, expires); err != nil {
		return errors.Wrap(err, "cannot save row").With("key", item.Key, "table", db.tableName)
	}
	return nil
}

// Purge deletes all expired rows, returning the number deleted.
func (db *Provider) Purge(ctx context.Context) (int64, error) {
	errors := errors.With("table", db.tableName)
	query := fmt.Sprintf("delete from %s where expires_at <= now()", db.ident)
	result, err := db.db.ExecContext(ctx, query)
	if err != nil {
		return 0, errors.Wrap(err, "cannot delete rows")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "cannot get rows affected")
	}
	return n, nil
}
