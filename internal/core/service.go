package core

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"time"

	"github.com/keihiworks/keihi/internal/logging"
)

// periodPattern is the accepted submission-month format (YYYY-MM).
var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Detail-page and preview paging bounds. Requests outside these are
// rejected rather than clamped so callers notice their mistake.
const (
	DefaultPageSize    = 20
	MaxPageSize        = 200
	DefaultPreviewSize = 50
	MaxPreviewSize     = 1000
)

// ServiceConfig carries the tunables the service needs from the
// application configuration.
type ServiceConfig struct {
	MaxFileSize          int64
	AmountColumn         string
	DateColumn           string
	MaxConcurrentUploads int
	UploadWaitTime       time.Duration
}

// Service implements the expense dataset operations on top of a Store
// and an Archiver. It owns upload validation, the two-phase archive+DB
// write, and all read-side pagination and filtering rules.
type Service struct {
	store   Store
	archive Archiver
	limiter *UploadLimiter
	opts    ValidateOptions
}

// NewService wires a Service from its storage collaborators.
func NewService(store Store, archive Archiver, cfg ServiceConfig) *Service {
	return &Service{
		store:   store,
		archive: archive,
		limiter: NewUploadLimiter(cfg.MaxConcurrentUploads, cfg.UploadWaitTime),
		opts: ValidateOptions{
			MaxFileSize:  cfg.MaxFileSize,
			AmountColumn: cfg.AmountColumn,
			DateColumn:   cfg.DateColumn,
		},
	}
}

// UploadInput is one CSV submission.
type UploadInput struct {
	FileName   string
	Data       []byte
	BranchName string
	Period     string
	Uploader   string
}

// Upload validates a CSV, archives the original bytes, and persists the
// dataset with its rows.
//
// The write is two-phase: the archive file goes first because an
// orphaned file is cheap to delete, then the database transaction. When
// the database half fails the archived file is removed, so a failed
// upload leaves no visible state at all.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*UploadResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if input.BranchName == "" {
		return nil, userErrorf(KindInvalidArgument, "ARG001", nil, "branch_nameを指定してください。")
	}
	if !periodPattern.MatchString(input.Period) {
		return nil, userErrorf(KindInvalidArgument, "ARG001",
			fmt.Errorf("invalid period %q", input.Period),
			"periodはYYYY-MM形式で指定してください。")
	}

	name := input.FileName
	if name == "" {
		name = "uploaded.csv"
	}

	table, err := Validate(name, input.Data, s.opts)
	if err != nil {
		return nil, err
	}

	path, checksum, err := s.archive.Save(name, input.Data)
	if err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}

	ds, err := s.store.CreateDataset(ctx, CreateDatasetParams{
		FileName:     filepath.Base(path),
		Uploader:     input.Uploader,
		OriginalPath: path,
		Checksum:     checksum,
		BranchName:   input.BranchName,
		Period:       input.Period,
		Header:       table.Header,
		Rows:         table.Rows,
	})
	if err != nil {
		if rmErr := s.archive.Remove(path); rmErr != nil {
			logging.FromContext(ctx).Error("orphaned archive cleanup failed",
				"path", path, "error", rmErr)
		}
		return nil, fmt.Errorf("create dataset: %w", err)
	}

	logging.FromContext(ctx).Info("upload stored",
		"user", input.Uploader,
		"file", ds.FileName,
		"branch", input.BranchName,
		"period", input.Period,
		"rows", ds.RowCount,
		"warnings", len(table.Warnings),
	)

	return &UploadResult{
		Status:     "success",
		DatasetID:  ds.ID,
		BranchName: ds.BranchName,
		Period:     ds.Period,
		UploadedAt: ds.UploadedAt,
		RowCount:   ds.RowCount,
		File:       ds.FileName,
		Warnings:   len(table.Warnings),
	}, nil
}

// ListDatasets returns dataset summaries, most recent upload first.
// Empty filter fields match everything.
func (s *Service) ListDatasets(ctx context.Context, f DatasetFilter) ([]Dataset, error) {
	return s.store.ListDatasets(ctx, f)
}

// DatasetPage returns one page of a dataset's rows.
//
// filterCol and filterVal must be given together; filterCol must be one
// of the dataset's header columns. A page past the end of the row set is
// not an error: it comes back with no rows and the real total.
func (s *Service) DatasetPage(ctx context.Context, id int64, page, size int, filterCol, filterVal string) (*DatasetPage, error) {
	if page < 1 {
		return nil, userErrorf(KindInvalidArgument, "ARG002",
			fmt.Errorf("page %d out of range", page), "pageは1以上で指定してください。")
	}
	if size < 1 || size > MaxPageSize {
		return nil, userErrorf(KindInvalidArgument, "ARG002",
			fmt.Errorf("size %d out of range", size), "sizeは1〜%dで指定してください。", MaxPageSize)
	}

	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}

	filterIdx := -1
	if filterCol != "" || filterVal != "" {
		if filterCol == "" || filterVal == "" {
			return nil, userErrorf(KindInvalidArgument, "ARG003",
				nil, "filter_colとfilter_valは両方指定してください。")
		}
		filterIdx = columnIndex(ds.Columns, filterCol)
		if filterIdx < 0 {
			return nil, userErrorf(KindInvalidArgument, "ARG003",
				fmt.Errorf("column %q not in dataset %d header", filterCol, id),
				"filter_col %q はこのデータセットの列ではありません。", filterCol)
		}
	}

	rp, err := s.store.DatasetRows(ctx, RowQuery{
		DatasetID:   id,
		FilterIndex: filterIdx,
		FilterValue: filterVal,
		Limit:       size,
		Offset:      (page - 1) * size,
	})
	if err != nil {
		return nil, err
	}

	return &DatasetPage{
		BranchName: ds.BranchName,
		Period:     ds.Period,
		Total:      rp.Total,
		Page:       page,
		Size:       size,
		Rows:       rp.Rows,
	}, nil
}

// FilteredRows is the cross-dataset preview: every row matching the
// dataset-level and optional row-level filters, paged in memory.
//
// The row filter matches by column name because column positions differ
// between datasets; rows whose dataset lacks the column do not match.
func (s *Service) FilteredRows(ctx context.Context, f DatasetFilter, filterCol, filterVal string, page, size int) (*FilteredPage, error) {
	if page < 1 {
		return nil, userErrorf(KindInvalidArgument, "ARG002",
			fmt.Errorf("page %d out of range", page), "pageは1以上で指定してください。")
	}
	if size < 1 || size > MaxPreviewSize {
		return nil, userErrorf(KindInvalidArgument, "ARG002",
			fmt.Errorf("size %d out of range", size), "sizeは1〜%dで指定してください。", MaxPreviewSize)
	}

	rows, err := s.matchingRows(ctx, f, filterCol, filterVal)
	if err != nil {
		return nil, err
	}

	total := len(rows)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}

	return &FilteredPage{
		Total: total,
		Page:  page,
		Size:  size,
		Rows:  rows[start:end],
	}, nil
}

// ExportCSV reconstructs a CSV across every dataset matching the
// filters. The header comes from the first matching row's dataset; rows
// from datasets with other headers contribute values by column name and
// leave missing columns empty. Returns ErrNoMatchingRows when nothing
// matches, which the API surfaces as 404.
func (s *Service) ExportCSV(ctx context.Context, f DatasetFilter, filterCol, filterVal string) ([]byte, error) {
	rows, err := s.matchingRows(ctx, f, filterCol, filterVal)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNoMatchingRows
	}
	return buildCSV(rows[0].Columns, rows)
}

// ExportDataset returns the archived original upload, byte for byte.
func (s *Service) ExportDataset(ctx context.Context, id int64) (io.ReadCloser, Dataset, error) {
	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, Dataset{}, err
	}
	rc, err := s.archive.Open(ds.OriginalPath)
	if err != nil {
		return nil, Dataset{}, fmt.Errorf("open archive %s: %w", ds.OriginalPath, err)
	}
	return rc, ds, nil
}

// matchingRows fetches all rows for the dataset filter and applies the
// optional row-level column filter.
func (s *Service) matchingRows(ctx context.Context, f DatasetFilter, filterCol, filterVal string) ([]Row, error) {
	if (filterCol == "") != (filterVal == "") {
		return nil, userErrorf(KindInvalidArgument, "ARG003",
			nil, "filter_colとfilter_valは両方指定してください。")
	}

	rows, err := s.store.AllRows(ctx, f)
	if err != nil {
		return nil, err
	}
	if filterCol == "" {
		return rows, nil
	}

	matched := rows[:0:0]
	for _, row := range rows {
		if v, ok := row.Get(filterCol); ok && v == filterVal {
			matched = append(matched, row)
		}
	}
	return matched, nil
}

// ActiveUploads returns how many uploads currently hold a limiter slot.
func (s *Service) ActiveUploads() int {
	return s.limiter.ActiveCount()
}

// WaitForUploads blocks until in-flight uploads finish or ctx expires.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// columnIndex returns the position of name in columns, or -1.
func columnIndex(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
