package database

// store.go implements core.Store on PostgreSQL.
//
// Rows are stored as JSONB arrays of raw cell strings, one array per
// row, positionally aligned with the dataset's columns array. JSONB
// arrays keep their element order, which is what makes byte-order
// faithful CSV reconstruction possible later.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keihiworks/keihi/internal/core"
)

// Store persists datasets and rows in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New returns a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const datasetColumns = `id, file_name, row_count, uploader, original_path,
	checksum, columns, branch_name, period, uploaded_at`

// CreateDataset inserts the dataset and all of its rows in one
// transaction. Either everything becomes visible or nothing does.
func (s *Store) CreateDataset(ctx context.Context, p core.CreateDatasetParams) (core.Dataset, error) {
	var ds core.Dataset

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return ds, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO expense_datasets
			(file_name, row_count, uploader, original_path, checksum, columns, branch_name, period)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at`,
		p.FileName, len(p.Rows), p.Uploader, p.OriginalPath, p.Checksum,
		p.Header, p.BranchName, p.Period,
	).Scan(&ds.ID, &ds.UploadedAt)
	if err != nil {
		return ds, fmt.Errorf("insert dataset: %w", err)
	}

	if len(p.Rows) > 0 {
		batch := &pgx.Batch{}
		for seq, row := range p.Rows {
			batch.Queue(`
				INSERT INTO expense_rows (dataset_id, seq, row_data)
				VALUES ($1, $2, $3)`,
				ds.ID, seq, row)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return ds, fmt.Errorf("insert rows: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return ds, fmt.Errorf("commit: %w", err)
	}

	ds.FileName = p.FileName
	ds.RowCount = len(p.Rows)
	ds.Uploader = p.Uploader
	ds.OriginalPath = p.OriginalPath
	ds.Checksum = p.Checksum
	ds.Columns = p.Header
	ds.BranchName = p.BranchName
	ds.Period = p.Period
	return ds, nil
}

// GetDataset fetches one dataset's metadata by id.
func (s *Store) GetDataset(ctx context.Context, id int64) (core.Dataset, error) {
	var ds core.Dataset
	err := s.pool.QueryRow(ctx, `
		SELECT `+datasetColumns+`
		FROM expense_datasets
		WHERE id = $1`,
		id,
	).Scan(&ds.ID, &ds.FileName, &ds.RowCount, &ds.Uploader, &ds.OriginalPath,
		&ds.Checksum, &ds.Columns, &ds.BranchName, &ds.Period, &ds.UploadedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ds, core.ErrDatasetNotFound
		}
		return ds, fmt.Errorf("get dataset %d: %w", id, err)
	}
	return ds, nil
}

// ListDatasets returns datasets matching the filter, most recent upload
// first with id as a tiebreak for same-timestamp uploads.
func (s *Store) ListDatasets(ctx context.Context, f core.DatasetFilter) ([]core.Dataset, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+datasetColumns+`
		FROM expense_datasets
		WHERE ($1 = '' OR branch_name = $1)
		  AND ($2 = '' OR period = $2)
		ORDER BY uploaded_at DESC, id DESC`,
		f.Branch, f.Period)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var datasets []core.Dataset
	for rows.Next() {
		var ds core.Dataset
		if err := rows.Scan(&ds.ID, &ds.FileName, &ds.RowCount, &ds.Uploader,
			&ds.OriginalPath, &ds.Checksum, &ds.Columns, &ds.BranchName,
			&ds.Period, &ds.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// DatasetRows returns one window of a dataset's rows in upload order,
// plus the total size of the (possibly filtered) row set.
//
// The column filter compares the JSONB array element at FilterIndex
// against FilterValue, case-sensitively, inside the database so only the
// requested window travels over the wire.
func (s *Store) DatasetRows(ctx context.Context, q core.RowQuery) (core.RowPage, error) {
	var page core.RowPage

	var columns []string
	err := s.pool.QueryRow(ctx,
		`SELECT columns FROM expense_datasets WHERE id = $1`, q.DatasetID,
	).Scan(&columns)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return page, core.ErrDatasetNotFound
		}
		return page, fmt.Errorf("get dataset columns: %w", err)
	}

	const where = `dataset_id = $1 AND ($2::int < 0 OR row_data ->> $2::int = $3)`

	err = s.pool.QueryRow(ctx,
		`SELECT count(*) FROM expense_rows WHERE `+where,
		q.DatasetID, q.FilterIndex, q.FilterValue,
	).Scan(&page.Total)
	if err != nil {
		return page, fmt.Errorf("count rows: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT row_data
		FROM expense_rows
		WHERE `+where+`
		ORDER BY seq
		LIMIT $4 OFFSET $5`,
		q.DatasetID, q.FilterIndex, q.FilterValue, q.Limit, q.Offset)
	if err != nil {
		return page, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var values []string
		if err := rows.Scan(&values); err != nil {
			return page, fmt.Errorf("scan row: %w", err)
		}
		page.Rows = append(page.Rows, core.Row{Columns: columns, Values: values})
	}
	return page, rows.Err()
}

// AllRows returns every row of every dataset matching the filter,
// ordered by dataset id then row order. Each row carries its dataset's
// columns because headers differ between datasets.
func (s *Store) AllRows(ctx context.Context, f core.DatasetFilter) ([]core.Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.columns, r.row_data
		FROM expense_rows r
		JOIN expense_datasets d ON d.id = r.dataset_id
		WHERE ($1 = '' OR d.branch_name = $1)
		  AND ($2 = '' OR d.period = $2)
		ORDER BY r.dataset_id, r.seq`,
		f.Branch, f.Period)
	if err != nil {
		return nil, fmt.Errorf("query all rows: %w", err)
	}
	defer rows.Close()

	var result []core.Row
	for rows.Next() {
		var row core.Row
		if err := rows.Scan(&row.Columns, &row.Values); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Version returns the PostgreSQL server version string. Used by the
// database probe endpoint.
func (s *Store) Version(ctx context.Context) (string, error) {
	var version string
	if err := s.pool.QueryRow(ctx, `SELECT version()`).Scan(&version); err != nil {
		return "", fmt.Errorf("select version: %w", err)
	}
	return version, nil
}
