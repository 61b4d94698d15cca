package core

import (
	"bytes"
	"encoding/csv"
	"io"
)

// parseCSV reads all records from raw CSV bytes, pairing each record
// with the 1-based file line it starts on. encoding/csv silently skips
// wholly blank lines while reading, so record index and file line drift
// apart; FieldPos keeps the numbers the user sees in a spreadsheet.
// FieldsPerRecord is disabled so the validator can report mismatched
// rows itself; LazyQuotes tolerates the stray quote that hand-edited
// expense sheets tend to contain.
func parseCSV(data []byte) ([][]string, []int, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var records [][]string
	var lines []int
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, lines, nil
		}
		if err != nil {
			return nil, nil, err
		}
		line, _ := r.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
}

// buildCSV reconstructs a CSV document from a header and rows. Rows may
// come from datasets with different headers: each row contributes values
// by column name, and columns it lacks are left empty. Lines end with \n.
func buildCSV(header []string, rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, err
	}
	record := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			v, _ := row.Get(col)
			record[i] = v
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
