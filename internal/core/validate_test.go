package core

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ============================================================================
// Validate Tests
// ============================================================================

func TestValidate_CheckOrder(t *testing.T) {
	big := append([]byte("a,b\n"), bytes.Repeat([]byte("x"), int(DefaultMaxFileSize))...)

	tests := []struct {
		name     string
		filename string
		data     []byte
		wantKind Kind
	}{
		{
			name:     "wrong extension",
			filename: "expenses.txt",
			data:     []byte("a,b\n1,2\n"),
			wantKind: KindInvalidExtension,
		},
		{
			name:     "extension checked before size",
			filename: "expenses.xlsx",
			data:     big,
			wantKind: KindInvalidExtension,
		},
		{
			name:     "exactly one byte over the limit",
			filename: "big.csv",
			data:     big[:DefaultMaxFileSize+1],
			wantKind: KindPayloadTooLarge,
		},
		{
			name:     "invalid utf-8",
			filename: "data.csv",
			data:     []byte{0xff, 0xfe, 0x41},
			wantKind: KindEncodingError,
		},
		{
			name:     "empty file",
			filename: "empty.csv",
			data:     []byte{},
			wantKind: KindEmptyFile,
		},
		{
			name:     "duplicate header",
			filename: "dup.csv",
			data:     []byte("金額,備考,金額\n1,2,3\n"),
			wantKind: KindDuplicateHeader,
		},
		{
			name:     "empty header cell",
			filename: "blank.csv",
			data:     []byte("金額,,備考\n1,2,3\n"),
			wantKind: KindDuplicateHeader,
		},
		{
			name:     "row with too few columns",
			filename: "short.csv",
			data:     []byte("a,b,c\n1,2\n"),
			wantKind: KindColumnCountMismatch,
		},
		{
			name:     "row with too many columns",
			filename: "long.csv",
			data:     []byte("a,b\n1,2,3\n"),
			wantKind: KindColumnCountMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.filename, tt.data, ValidateOptions{})
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestValidate_ParsesTable(t *testing.T) {
	data := []byte("金額,勘定科目,備考\n1200,交通費,地下鉄\n800,会議費,コーヒー\n")

	table, err := Validate("keihi.csv", data, ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	wantHeader := []string{"金額", "勘定科目", "備考"}
	if len(table.Header) != len(wantHeader) {
		t.Fatalf("header length = %d, want %d", len(table.Header), len(wantHeader))
	}
	for i, h := range wantHeader {
		if table.Header[i] != h {
			t.Errorf("header[%d] = %q, want %q", i, table.Header[i], h)
		}
	}

	if len(table.Rows) != 2 {
		t.Fatalf("row count = %d, want 2", len(table.Rows))
	}
	if table.Rows[0][0] != "1200" || table.Rows[1][2] != "コーヒー" {
		t.Errorf("rows out of order: %v", table.Rows)
	}
	if len(table.Warnings) != 0 {
		t.Errorf("warnings = %d, want 0", len(table.Warnings))
	}
}

func TestValidate_CaseInsensitiveExtension(t *testing.T) {
	for _, name := range []string{"DATA.CSV", "data.Csv", "data.csv"} {
		if _, err := Validate(name, []byte("a,b\n1,2\n"), ValidateOptions{}); err != nil {
			t.Errorf("Validate(%q) error = %v, want nil", name, err)
		}
	}
}

func TestValidate_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)

	table, err := Validate("bom.csv", data, ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if table.Header[0] != "a" {
		t.Errorf("header[0] = %q, want %q (BOM not stripped)", table.Header[0], "a")
	}
}

func TestValidate_SkipsEmptyLines(t *testing.T) {
	data := []byte("a,b\n1,2\n\n3,4\n")

	table, err := Validate("gaps.csv", data, ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(table.Rows) != 2 {
		t.Errorf("row count = %d, want 2 (empty line should not count)", len(table.Rows))
	}
}

func TestValidate_MismatchReportsLineNumber(t *testing.T) {
	// Line 1 is the header, line 4 is the bad row.
	data := []byte("a,b\n1,2\n3,4\n5\n")

	_, err := Validate("bad.csv", data, ValidateOptions{})
	var ue *UserError
	if !errors.As(err, &ue) {
		t.Fatalf("error is not *UserError: %v", err)
	}
	if ue.Kind != KindColumnCountMismatch {
		t.Fatalf("kind = %q, want %q", ue.Kind, KindColumnCountMismatch)
	}
	if !strings.Contains(ue.User.Message, "4行目") {
		t.Errorf("message %q does not identify line 4", ue.User.Message)
	}
	if !strings.Contains(ue.Technical.Error(), "line 4") {
		t.Errorf("technical %q does not identify line 4", ue.Technical.Error())
	}
}

func TestValidate_BlankLinesKeepFileLineNumbers(t *testing.T) {
	// encoding/csv drops wholly blank lines while reading, so record
	// index and file line diverge. Line 3 is blank; the bad row sits on
	// file line 4 and must be reported as such.
	data := []byte("a,b\n1,2\n\n3\n")

	_, err := Validate("gaps.csv", data, ValidateOptions{})
	var ue *UserError
	if !errors.As(err, &ue) {
		t.Fatalf("error is not *UserError: %v", err)
	}
	if ue.Kind != KindColumnCountMismatch {
		t.Fatalf("kind = %q, want %q", ue.Kind, KindColumnCountMismatch)
	}
	if !strings.Contains(ue.User.Message, "4行目") {
		t.Errorf("message %q does not identify line 4", ue.User.Message)
	}
	if !strings.Contains(ue.Technical.Error(), "line 4") {
		t.Errorf("technical %q does not identify line 4", ue.Technical.Error())
	}

	// Warnings use file lines too: the bad amount is on file line 4.
	data = []byte("金額\n1200\n\noops\n")
	table, err := Validate("gaps.csv", data, ValidateOptions{AmountColumn: "金額"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(table.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(table.Warnings))
	}
	if table.Warnings[0].Line != 4 {
		t.Errorf("warning line = %d, want 4", table.Warnings[0].Line)
	}
}

// ============================================================================
// Strengthened-mode Warning Tests
// ============================================================================

func TestValidate_AmountAndDateWarnings(t *testing.T) {
	opts := ValidateOptions{AmountColumn: "金額", DateColumn: "日付"}

	tests := []struct {
		name         string
		data         string
		wantWarnings int
	}{
		{
			name:         "clean rows",
			data:         "日付,金額\n2025-10-01,1200\n2025-10-02,800\n",
			wantWarnings: 0,
		},
		{
			name:         "bad amount",
			data:         "日付,金額\n2025-10-01,千二百円\n",
			wantWarnings: 1,
		},
		{
			name:         "amount with thousands separator is fine",
			data:         "日付,金額\n2025-10-01,\"1,200\"\n",
			wantWarnings: 0,
		},
		{
			name:         "yen sign is fine",
			data:         "日付,金額\n2025-10-01,¥1200\n",
			wantWarnings: 0,
		},
		{
			name:         "bad date",
			data:         "日付,金額\n10月1日,1200\n",
			wantWarnings: 1,
		},
		{
			name:         "impossible calendar date",
			data:         "日付,金額\n2025-02-30,1200\n",
			wantWarnings: 1,
		},
		{
			name:         "slash date format accepted",
			data:         "日付,金額\n2025/10/01,1200\n",
			wantWarnings: 0,
		},
		{
			name:         "both cells bad in one row",
			data:         "日付,金額\nいつか,abc\n",
			wantWarnings: 2,
		},
		{
			name:         "empty cells never warn",
			data:         "日付,金額\n,\n",
			wantWarnings: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Validate("w.csv", []byte(tt.data), opts)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if len(table.Warnings) != tt.wantWarnings {
				t.Errorf("warnings = %d, want %d (%v)", len(table.Warnings), tt.wantWarnings, table.Warnings)
			}
		})
	}
}

func TestValidate_WarningsDisabledWhenUnconfigured(t *testing.T) {
	data := []byte("日付,金額\nガラクタ,ガラクタ\n")

	table, err := Validate("w.csv", data, ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(table.Warnings) != 0 {
		t.Errorf("warnings = %d, want 0 when no columns configured", len(table.Warnings))
	}
}

func TestValidate_WarningCarriesLocation(t *testing.T) {
	data := []byte("日付,金額\n2025-10-01,1200\n2025-10-02,oops\n")

	table, err := Validate("w.csv", data, ValidateOptions{AmountColumn: "金額"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(table.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(table.Warnings))
	}
	w := table.Warnings[0]
	if w.Line != 3 || w.Column != "金額" || w.Value != "oops" {
		t.Errorf("warning = %+v, want line 3 / 金額 / oops", w)
	}
}

// ============================================================================
// Header Helpers
// ============================================================================

func TestValidateHeader(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		wantErr bool
	}{
		{"unique names", []string{"a", "b", "c"}, false},
		{"single column", []string{"金額"}, false},
		{"duplicate", []string{"a", "b", "a"}, true},
		{"empty name", []string{"a", ""}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateHeader(tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateHeader(%v) error = %v, wantErr %v", tt.header, err, tt.wantErr)
			}
		})
	}
}

func TestIsEmptyRow(t *testing.T) {
	if !isEmptyRow([]string{"", "  ", "\t"}) {
		t.Error("whitespace-only row should be empty")
	}
	if isEmptyRow([]string{"", "x"}) {
		t.Error("row with a value should not be empty")
	}
}
