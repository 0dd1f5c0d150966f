package server

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/vegasq/dataview/convert"
	"github.com/vegasq/dataview/distribution"
	"github.com/vegasq/dataview/internal/dataset"
	"github.com/vegasq/dataview/output"
	"github.com/vegasq/dataview/query"
)

const defaultPageSize = 50

type loadRequest struct {
	BucketName string `json:"bucket_name"`
	FileName   string `json:"file_name"`
}

type queryRequest struct {
	Query      string `json:"query"`
	BucketName string `json:"bucket_name"`
	FileName   string `json:"file_name"`
	SessionID  string `json:"session_id"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
}

type datasetResponse struct {
	BucketName    string               `json:"bucket_name"`
	FileName      string               `json:"file_name"`
	Columns       []string             `json:"columns"`
	TableData     json.RawMessage      `json:"tableData"`
	Distributions distribution.Summary `json:"distributions"`
	Total         int                  `json:"total"`
}

type pageResponse struct {
	TableData json.RawMessage `json:"tableData"`
}

type queryResponse struct {
	Columns       []string             `json:"columns"`
	TableData     json.RawMessage      `json:"tableData"`
	Distributions distribution.Summary `json:"distributions"`
	Total         int                  `json:"total"`
}

type uploadResponse struct {
	SessionID     string               `json:"session_id"`
	Columns       []string             `json:"columns"`
	Preview       json.RawMessage      `json:"preview"`
	Distributions distribution.Summary `json:"distributions"`
	Total         int                  `json:"total"`
}

type sessionPageResponse struct {
	Columns []string        `json:"columns"`
	Data    json.RawMessage `json:"data"`
}

type sessionQueryResponse struct {
	Columns       []string             `json:"columns"`
	Data          json.RawMessage      `json:"data"`
	Distributions distribution.Summary `json:"distributions"`
	Total         int                  `json:"total"`
}

type schemaResponse struct {
	Columns []string          `json:"columns"`
	Dtypes  map[string]string `json:"dtypes"`
}

func (s *Server) handleLoadDataset(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !decode(w, r, &req) {
		return
	}
	if req.BucketName == "" || req.FileName == "" {
		writeDetail(w, http.StatusBadRequest, "bucket_name and file_name are required")
		return
	}

	view, err := s.datasets.Load(r.Context(), req.BucketName, req.FileName)
	if err != nil {
		s.fail(w, "Failed to load dataset", err)
		return
	}
	rows, err := output.MarshalRecords(view.Rows)
	if err != nil {
		s.fail(w, "Failed to load dataset", err)
		return
	}
	writeJSON(w, http.StatusOK, datasetResponse{
		BucketName:    req.BucketName,
		FileName:      req.FileName,
		Columns:       view.Columns,
		TableData:     rows,
		Distributions: view.Distributions,
		Total:         view.Total,
	})
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, false)
	if !ok {
		return
	}

	page, err := s.datasets.Page(r.Context(), req.BucketName, req.FileName, req.Query, req.Page, req.PageSize)
	if err != nil {
		s.fail(w, "Failed to get page", err)
		return
	}
	rows, err := output.MarshalRecords(page)
	if err != nil {
		s.fail(w, "Failed to get page", err)
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{TableData: rows})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, false)
	if !ok {
		return
	}

	view, err := s.datasets.Query(r.Context(), req.BucketName, req.FileName, req.Query)
	if err != nil {
		s.fail(w, "Failed to execute query", err)
		return
	}
	rows, err := output.MarshalRecords(view.Rows)
	if err != nil {
		s.fail(w, "Failed to execute query", err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{
		Columns:       view.Columns,
		TableData:     rows,
		Distributions: view.Distributions,
		Total:         view.Total,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Dataset.MaxUploadMB<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeDetail(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	name := path.Base(strings.ReplaceAll(header.Filename, "\\", "/"))
	if name == "." || name == "/" || strings.HasPrefix(name, ".") {
		writeDetail(w, http.StatusBadRequest, "invalid file name")
		return
	}

	bucket := s.cfg.Storage.Bucket
	view, err := s.datasets.Store(r.Context(), bucket, name, file)
	if err != nil {
		s.fail(w, "Failed to upload dataset", err)
		return
	}
	preview, err := output.MarshalRecords(view.Rows)
	if err != nil {
		s.fail(w, "Failed to upload dataset", err)
		return
	}

	id := s.sessions.Create(dataset.Ref{Bucket: bucket, File: name})
	s.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("file", name),
		zap.Int("rows", view.Total))

	writeJSON(w, http.StatusOK, uploadResponse{
		SessionID:     id,
		Columns:       view.Columns,
		Preview:       preview,
		Distributions: view.Distributions,
		Total:         view.Total,
	})
}

func (s *Server) handleSessionPage(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, true)
	if !ok {
		return
	}
	ref, err := s.sessions.Get(req.SessionID)
	if err != nil {
		s.fail(w, "Failed to get page", err)
		return
	}

	page, err := s.datasets.Page(r.Context(), ref.Bucket, ref.File, req.Query, req.Page, req.PageSize)
	if err != nil {
		s.fail(w, "Failed to get page", err)
		return
	}
	rows, err := output.MarshalRecords(page)
	if err != nil {
		s.fail(w, "Failed to get page", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionPageResponse{Columns: page.ColumnNames(), Data: rows})
}

func (s *Server) handleSessionQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r, true)
	if !ok {
		return
	}
	ref, err := s.sessions.Get(req.SessionID)
	if err != nil {
		s.fail(w, "Failed to execute query", err)
		return
	}

	view, err := s.datasets.QueryPage(r.Context(), ref.Bucket, ref.File, req.Query, req.Page, req.PageSize)
	if err != nil {
		s.fail(w, "Failed to execute query", err)
		return
	}
	rows, err := output.MarshalRecords(view.Rows)
	if err != nil {
		s.fail(w, "Failed to execute query", err)
		return
	}
	writeJSON(w, http.StatusOK, sessionQueryResponse{
		Columns:       view.Columns,
		Data:          rows,
		Distributions: view.Distributions,
		Total:         view.Total,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	ref, err := s.sessions.Get(r.URL.Query().Get("session_id"))
	if err != nil {
		s.fail(w, "Failed to get schema", err)
		return
	}
	columns, types, err := s.datasets.Schema(r.Context(), ref.Bucket, ref.File)
	if err != nil {
		s.fail(w, "Failed to get schema", err)
		return
	}

	dtypes := make(map[string]string, len(types))
	for name, typ := range types {
		dtypes[name] = typ.String()
	}
	writeJSON(w, http.StatusOK, schemaResponse{Columns: columns, Dtypes: dtypes})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	s.sessions.Delete(mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// queryRequest decodes and checks a paging or query request. Page and page
// size default to 1 and 50.
func (s *Server) queryRequest(w http.ResponseWriter, r *http.Request, session bool) (queryRequest, bool) {
	var req queryRequest
	if !decode(w, r, &req) {
		return req, false
	}
	switch {
	case session && req.SessionID == "":
		writeDetail(w, http.StatusBadRequest, "session_id is required")
		return req, false
	case !session && (req.BucketName == "" || req.FileName == ""):
		writeDetail(w, http.StatusBadRequest, "bucket_name and file_name are required")
		return req, false
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = defaultPageSize
	}
	return req, true
}

// fail writes err with the status it maps to. Server errors are prefixed
// with what failed and logged.
func (s *Server) fail(w http.ResponseWriter, what string, err error) {
	status := statusOf(err)
	switch status {
	case http.StatusNotFound:
		writeDetail(w, status, "File not found")
	case http.StatusInternalServerError:
		s.logger.Error(what, zap.Error(err))
		writeDetail(w, status, fmt.Sprintf("%s: %v", what, err))
	default:
		writeDetail(w, status, err.Error())
	}
}

func statusOf(err error) int {
	switch {
	case query.IsInvalid(err),
		errors.Is(err, dataset.ErrSessionNotFound),
		errors.Is(err, convert.ErrUnsupportedFormat),
		errors.Is(err, convert.ErrNoColumns):
		return http.StatusBadRequest
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"detail":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
