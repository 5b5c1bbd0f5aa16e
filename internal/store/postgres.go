package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgDB is the subset of *pgxpool.Pool the backend needs.
type pgDB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresBackend stores each entity as ordered JSON rows in a single table.
// A save replaces every row of every entity it touches inside one transaction.
type PostgresBackend struct {
	db pgDB
}

func NewPostgresBackend(db pgDB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entity_rows (
	entity   TEXT    NOT NULL,
	position INTEGER NOT NULL,
	data     JSONB   NOT NULL,
	PRIMARY KEY (entity, position)
)`

// EnsureSchema creates the backing table if it does not exist.
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create entity_rows: %w", err)
	}
	return tx.Commit(ctx)
}

func (b *PostgresBackend) Load(ctx context.Context, entity Entity) ([]Record, error) {
	rows, err := b.db.Query(ctx, `
		SELECT data
		FROM entity_rows
		WHERE entity = $1
		ORDER BY position
	`, string(entity))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", entity, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", entity, err)
		}
		rec := Record{}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s row: %w", entity, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (b *PostgresBackend) Save(ctx context.Context, snapshots ...Snapshot) error {
	if len(snapshots) == 0 {
		return ErrEmptySave
	}

	tx, err := b.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, snap := range snapshots {
		if _, err := tx.Exec(ctx, `DELETE FROM entity_rows WHERE entity = $1`, string(snap.Entity)); err != nil {
			return fmt.Errorf("clear %s: %w", snap.Entity, err)
		}

		for i, rec := range snap.Records {
			data, err := json.Marshal(project(rec, snap.Fields))
			if err != nil {
				return fmt.Errorf("encode %s row: %w", snap.Entity, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO entity_rows (entity, position, data)
				VALUES ($1, $2, $3)
			`, string(snap.Entity), i, data); err != nil {
				return fmt.Errorf("insert %s row: %w", snap.Entity, err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

// project keeps only the snapshot's fields, filling missing ones with "".
func project(rec Record, fields []string) Record {
	out := make(Record, len(fields))
	for _, f := range fields {
		out[f] = rec[f]
	}
	return out
}
