package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/lib/pq"

	"github.com/roach88/narrow/internal/querysql"
)

//go:embed schema_postgres.sql
var postgresSchemaSQL string

// pgroongaIndex backs the keyword search backend. It needs the pgroonga
// extension, so it is applied separately and only on request.
const pgroongaIndex = `
CREATE EXTENSION IF NOT EXISTS pgroonga;
CREATE INDEX IF NOT EXISTS idx_messages_search_pgroonga ON messages USING pgroonga(search_pgroonga);
`

// OpenPostgres connects to Postgres with a lib/pq DSN and applies the
// schema. The schema is idempotent.
func OpenPostgres(dsn string) (*Store, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(postgresSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, dialect: querysql.Postgres}, nil
}

// EnableKeywordSearch installs the pgroonga index used by the keyword
// search backend.
func (s *Store) EnableKeywordSearch(ctx context.Context) error {
	if s.dialect != querysql.Postgres {
		return fmt.Errorf("keyword search index requires postgres, have %s", s.dialect)
	}
	if _, err := s.db.ExecContext(ctx, pgroongaIndex); err != nil {
		return fmt.Errorf("enable keyword search: %w", err)
	}
	return nil
}
