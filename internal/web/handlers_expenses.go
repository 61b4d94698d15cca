package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keihiworks/keihi/internal/core"
	mw "github.com/keihiworks/keihi/internal/web/middleware"
)

// multipartFormOverhead is slack added on top of the file size limit for
// the other form fields and multipart framing. Files over the limit
// still reach the validator, which rejects them with the proper 413.
const multipartFormOverhead = 1 << 20

// handleUpload processes a CSV upload: multipart field "file" plus form
// fields "branch_name" and "period".
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartFormOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, r, core.NewUserError(core.KindPayloadTooLarge, err))
			return
		}
		s.respondError(w, r, core.NewUserError(core.KindInvalidArgument,
			fmt.Errorf("parse multipart form: %w", err)))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.NewUserError(core.KindInvalidArgument,
			fmt.Errorf("missing file field: %w", err)))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("read upload: %w", err))
		return
	}

	result, err := s.service.Upload(r.Context(), core.UploadInput{
		FileName:   header.Filename,
		Data:       data,
		BranchName: r.FormValue("branch_name"),
		Period:     r.FormValue("period"),
		Uploader:   mw.UserFromContext(r.Context()),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleListDatasets returns dataset summaries, optionally filtered by
// branch and period, most recent first.
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	datasets, err := s.service.ListDatasets(r.Context(), core.DatasetFilter{
		Branch: r.URL.Query().Get("branch"),
		Period: r.URL.Query().Get("period"),
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if datasets == nil {
		datasets = []core.Dataset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": datasets})
}

// handleDatasetDetail returns one page of a dataset's rows.
func (s *Server) handleDatasetDetail(w http.ResponseWriter, r *http.Request) {
	id, err := datasetID(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	size, err := queryInt(r, "size", core.DefaultPageSize)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	q := r.URL.Query()
	result, err := s.service.DatasetPage(r.Context(), id, page, size,
		q.Get("filter_col"), q.Get("filter_val"))
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
			"branch_name": result.BranchName,
			"period":      result.Period,
			"total":       result.Total,
			"page":        result.Page,
			"size":        result.Size,
		},
		"data": rows,
	})
}

// datasetID parses the {datasetID} URL parameter.
func datasetID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "datasetID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.NewUserError(core.KindInvalidArgument,
			fmt.Errorf("invalid dataset id %q", raw))
	}
	return id, nil
}

// queryInt parses an integer query parameter, returning def when the
// parameter is absent. Non-numeric values are an InvalidArgument; range
// checks belong to the service.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewUserError(core.KindInvalidArgument,
			fmt.Errorf("invalid %s %q", name, raw))
	}
	return v, nil
}
