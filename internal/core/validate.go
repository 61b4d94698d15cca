package core

// validate.go checks an uploaded CSV before anything is persisted.
//
// Checks run in a fixed order and the first failure wins: extension,
// size, encoding, emptiness, header, column counts. Everything after
// that point is non-fatal: the optional amount/date checks only collect
// warnings, so a branch can still submit a file with a typo in one cell.

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// DefaultMaxFileSize is the upload size limit applied when ValidateOptions
// leaves MaxFileSize at zero (10 MiB).
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// dateLayouts are the formats accepted by the date-column warning check.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"20060102",
}

// ValidateOptions configures the validator. Zero values fall back to
// defaults; an empty column name disables that warning check.
type ValidateOptions struct {
	MaxFileSize  int64
	AmountColumn string
	DateColumn   string
}

// Validate parses raw upload bytes into a Table or returns a *UserError
// describing the first problem found.
//
// Line numbers in errors and warnings are 1-based file line numbers,
// matching what the user sees in a spreadsheet: blank lines still count
// toward the numbering even though they never become rows.
func Validate(filename string, data []byte, opts ValidateOptions) (*Table, error) {
	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, userErrorf(KindInvalidExtension, "FILE001", nil,
			"CSVファイル（.csv）のみアップロード可能です。")
	}

	if int64(len(data)) > maxSize {
		return nil, userErrorf(KindPayloadTooLarge, "FILE002",
			fmt.Errorf("file size %d exceeds limit %d", len(data), maxSize),
			"ファイルサイズが%dMBを超えています。", maxSize/(1024*1024))
	}

	data = stripBOM(data)
	if !utf8.Valid(data) {
		return nil, NewUserError(KindEncodingError, fmt.Errorf("file %q is not valid UTF-8", filename))
	}

	records, lines, err := parseCSV(data)
	if err != nil {
		return nil, NewUserError(KindEncodingError, fmt.Errorf("parse csv: %w", err))
	}
	if len(records) == 0 {
		return nil, NewUserError(KindEmptyFile, nil)
	}

	header := cleanHeader(records[0])
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	table := &Table{Header: header}
	for i, rec := range records[1:] {
		line := lines[i+1]
		if isEmptyRow(rec) {
			continue
		}
		if len(rec) != len(header) {
			return nil, userErrorf(KindColumnCountMismatch, "VAL003",
				fmt.Errorf("line %d: expected %d columns, got %d", line, len(header), len(rec)),
				"%d行目の列数が一致しません。", line)
		}
		table.Rows = append(table.Rows, rec)
		table.Warnings = append(table.Warnings, checkCells(header, rec, line, opts)...)
	}

	return table, nil
}

// validateHeader rejects empty and duplicate column names.
func validateHeader(header []string) error {
	seen := make(map[string]int, len(header))
	for i, name := range header {
		if name == "" {
			return userErrorf(KindDuplicateHeader, "VAL001",
				fmt.Errorf("header column %d is empty", i+1),
				"ヘッダの%d列目が空です。", i+1)
		}
		if _, dup := seen[name]; dup {
			return userErrorf(KindDuplicateHeader, "VAL002",
				fmt.Errorf("duplicate header column %q", name),
				"ヘッダに重複があります: %s", name)
		}
		seen[name] = i
	}
	return nil
}

// checkCells runs the strengthened-mode checks on one row. Findings are
// warnings only and never block the upload.
func checkCells(header, row []string, line int, opts ValidateOptions) []Warning {
	var warnings []Warning
	for i, col := range header {
		if i >= len(row) {
			break
		}
		val := strings.TrimSpace(row[i])
		if val == "" {
			continue
		}
		switch col {
		case opts.AmountColumn:
			if opts.AmountColumn == "" {
				continue
			}
			if _, err := decimal.NewFromString(normalizeAmount(val)); err != nil {
				warnings = append(warnings, Warning{
					Line:   line,
					Column: col,
					Value:  row[i],
					Reason: "not a number",
				})
			}
		case opts.DateColumn:
			if opts.DateColumn == "" {
				continue
			}
			if !isValidDate(val) {
				warnings = append(warnings, Warning{
					Line:   line,
					Column: col,
					Value:  row[i],
					Reason: "not a valid date",
				})
			}
		}
	}
	return warnings
}

// normalizeAmount strips formatting commonly found in exported ledgers
// (thousands separators, currency sign) before the decimal parse.
func normalizeAmount(s string) string {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	return s
}

// isValidDate reports whether s parses as a calendar date in any of the
// accepted layouts. time.Parse rejects impossible dates like 2025-02-30.
func isValidDate(s string) bool {
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// cleanHeader trims surrounding whitespace from each header cell.
func cleanHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.TrimSpace(h)
	}
	return out
}

// stripBOM removes a leading UTF-8 byte-order mark. Excel on Windows
// writes one on every CSV export.
func stripBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// isEmptyRow reports whether every cell is blank.
func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
