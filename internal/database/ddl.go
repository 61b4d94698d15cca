package database

import (
	"context"
	"fmt"
)

// ddlStatements create the schema. Statements are idempotent so init-db
// can run against an existing database without harm.
var ddlStatements = []string{
	`CREATE TABLE IF NOT EXISTS expense_datasets (
		id            BIGSERIAL PRIMARY KEY,
		file_name     TEXT NOT NULL,
		row_count     INTEGER NOT NULL,
		uploader      TEXT NOT NULL DEFAULT '',
		original_path TEXT NOT NULL,
		checksum      TEXT NOT NULL DEFAULT '',
		columns       JSONB NOT NULL,
		branch_name   TEXT NOT NULL,
		period        TEXT NOT NULL,
		uploaded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS expense_rows (
		dataset_id BIGINT NOT NULL REFERENCES expense_datasets(id) ON DELETE CASCADE,
		seq        INTEGER NOT NULL,
		row_data   JSONB NOT NULL,
		PRIMARY KEY (dataset_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_expense_datasets_branch
		ON expense_datasets (branch_name)`,

	`CREATE INDEX IF NOT EXISTS idx_expense_datasets_period
		ON expense_datasets (period)`,

	`CREATE INDEX IF NOT EXISTS idx_expense_datasets_uploaded_at
		ON expense_datasets (uploaded_at DESC)`,
}

// CreateTables creates the datasets and rows tables plus their indexes.
func (s *Store) CreateTables(ctx context.Context) error {
	for _, stmt := range ddlStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}
	return nil
}
