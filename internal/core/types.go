package core

// types.go defines the domain types shared between the validator, the
// service, the store, and the HTTP layer.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"
)

// Dataset is one uploaded CSV's metadata. Rows are stored separately and
// fetched through RowQuery. The JSON shape matches the public list
// endpoint; storage-internal fields are never serialized.
type Dataset struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	RowCount   int       `json:"row_count"`
	BranchName string    `json:"branch_name"`
	Period     string    `json:"period"`
	UploadedAt time.Time `json:"uploaded_at"`

	// Internal bookkeeping, not part of API responses.
	Uploader     string   `json:"-"`
	OriginalPath string   `json:"-"`
	Checksum     string   `json:"-"`
	Columns      []string `json:"-"`
}

// Row is a single CSV data row. Values align positionally with Columns,
// which is the owning dataset's header. Keeping the pairing positional
// (instead of a map) preserves CSV column order through storage and JSON.
type Row struct {
	Columns []string
	Values  []string
}

// Get returns the value under a column name and whether the column exists.
func (r Row) Get(col string) (string, bool) {
	for i, c := range r.Columns {
		if c == col {
			if i < len(r.Values) {
				return r.Values[i], true
			}
			return "", true
		}
	}
	return "", false
}

// MarshalJSON emits the row as a JSON object whose keys appear in CSV
// column order. encoding/json sorts map keys alphabetically, which would
// scramble the original header order, so the object is built by hand.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v string
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Warning is a non-fatal data-quality finding from the strengthened
// validation mode. Warnings never block an upload.
type Warning struct {
	Line   int    // 1-based CSV line number (header is line 1)
	Column string // header name the check applied to
	Value  string // offending raw cell value
	Reason string // short technical reason, for logs
}

// Table is the validator's output: the parsed header, the data rows in
// file order, and any warnings collected along the way.
type Table struct {
	Header   []string
	Rows     [][]string
	Warnings []Warning
}

// CreateDatasetParams carries everything the store needs to persist one
// upload atomically.
type CreateDatasetParams struct {
	FileName     string
	Uploader     string
	OriginalPath string
	Checksum     string
	BranchName   string
	Period       string
	Header       []string
	Rows         [][]string
}

// DatasetFilter restricts dataset-level queries. Empty fields match all.
type DatasetFilter struct {
	Branch string
	Period string
}

// RowQuery selects a window of rows from one dataset.
// FilterIndex < 0 disables the column filter; otherwise a row matches
// when its value at that header position equals FilterValue exactly
// (case-sensitive).
type RowQuery struct {
	DatasetID   int64
	FilterIndex int
	FilterValue string
	Limit       int
	Offset      int
}

// RowPage is one window of rows plus the total count of the (possibly
// filtered) row set it was cut from.
type RowPage struct {
	Rows  []Row
	Total int
}

// Store is the persistence boundary for datasets and rows.
// Implementations must make CreateDataset atomic: either the dataset and
// all of its rows become visible together, or nothing does.
type Store interface {
	CreateDataset(ctx context.Context, p CreateDatasetParams) (Dataset, error)
	GetDataset(ctx context.Context, id int64) (Dataset, error)
	ListDatasets(ctx context.Context, f DatasetFilter) ([]Dataset, error)
	DatasetRows(ctx context.Context, q RowQuery) (RowPage, error)

	// AllRows returns every row of every dataset matching the filter,
	// ordered by dataset id then row order, each row carrying its
	// dataset's columns. Used for cross-dataset export.
	AllRows(ctx context.Context, f DatasetFilter) ([]Row, error)
}

// Archiver is the file-archive boundary: it keeps the original uploaded
// bytes for byte-identical re-download.
type Archiver interface {
	// Save stores data under a timestamped, sanitized name and returns
	// the archive path plus a content checksum.
	Save(name string, data []byte) (path string, checksum string, err error)

	// Open returns the archived bytes for a previously saved path.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes an archived file. Used to clean up when the
	// database half of an upload fails.
	Remove(path string) error
}

// UploadResult is the response payload for a successful upload.
type UploadResult struct {
	Status     string    `json:"status"`
	DatasetID  int64     `json:"dataset_id"`
	BranchName string    `json:"branch_name"`
	Period     string    `json:"period"`
	UploadedAt time.Time `json:"uploaded_at"`
	RowCount   int       `json:"row_count"`
	File       string    `json:"file"`
	Warnings   int       `json:"warnings"`
}

// DatasetPage is one page of a dataset's rows plus the metadata the
// detail endpoint echoes back.
type DatasetPage struct {
	BranchName string
	Period     string
	Total      int
	Page       int
	Size       int
	Rows       []Row
}

// FilteredPage is one page of the cross-dataset row search.
type FilteredPage struct {
	Total int
	Page  int
	Size  int
	Rows  []Row
}
