package web

// handlers_export.go serves the three download surfaces: the JSON
// preview across datasets, the reconstructed cross-dataset CSV, and the
// archived original file of a single dataset.

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/keihiworks/keihi/internal/core"
	"github.com/keihiworks/keihi/internal/logging"
)

// exportFilter reads the dataset-level filter from the query string.
// branch_name is the canonical parameter; branch is accepted as an
// alias for parity with the list endpoint.
func exportFilter(r *http.Request) core.DatasetFilter {
	q := r.URL.Query()
	branch := q.Get("branch_name")
	if branch == "" {
		branch = q.Get("branch")
	}
	return core.DatasetFilter{Branch: branch, Period: q.Get("period")}
}

// handleDownloadAllJSON returns the filtered row set as structured data.
// Same selection as download_all_csv, paged.
func (s *Server) handleDownloadAllJSON(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", core.DefaultPreviewSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	result, err := s.service.FilteredRows(r.Context(), exportFilter(r),
		q.Get("filter_col"), q.Get("filter_val"), page, size)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rows := result.Rows
	if rows == nil {
		rows = []core.Row{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"meta": map[string]any{
			"total": result.Total,
			"page":  result.Page,
			"size":  result.Size,
		},
		"data": rows,
	})
}

// handleDownloadAllCSV returns the filtered row set as a reconstructed
// CSV attachment. No matches is a 404, matching the original behavior.
func (s *Server) handleDownloadAllCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data, err := s.service.ExportCSV(r.Context(), exportFilter(r),
		q.Get("filter_col"), q.Get("filter_val"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("filtered_%s.csv", time.Now().Format("20060102_150405"))
	writeCSVAttachment(w, filename, data)
}

// handleDatasetCSV streams the archived original upload of one dataset,
// byte for byte.
func (s *Server) handleDatasetCSV(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rc, ds, err := s.service.ExportDataset(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	defer rc.Close()

	filename := fmt.Sprintf("dataset_%d_%s.csv", ds.ID, time.Now().Format("20060102_150405"))
	setCSVHeaders(w, filename)
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are already sent; all we can do is log.
		s.logCopyError(r, err)
	}
}

// logCopyError records a mid-stream failure after headers went out.
func (s *Server) logCopyError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Error("stream archived file failed",
		"path", r.URL.Path, "error", err)
}

// writeCSVAttachment sends data as a CSV file download.
func writeCSVAttachment(w http.ResponseWriter, filename string, data []byte) {
	setCSVHeaders(w, filename)
	w.Write(data)
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
