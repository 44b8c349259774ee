package httpapi

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/joelkehle/hcp-insights/internal/claims"
)

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if !methodOnly(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		list, err := s.store.ListDatasets(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "datasets": list})
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxUpload)
	rows, err := claims.ParseCSV(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, newError(CodeTooLarge, "upload exceeds size limit"))
			return
		}
		writeError(w, validationError("parse csv: %v", err))
		return
	}
	ds, err := s.store.SaveDataset(r.Context(), r.URL.Query().Get("name"), rows)
	if err != nil {
		writeError(w, err)
		return
	}
	log.Printf("dataset stored id=%s name=%q rows=%d", ds.ID, ds.Name, ds.RowCount)
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true, "dataset": ds})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/datasets/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, newError(CodeNotFound, "unknown dataset path"))
		return
	}
	if !methodOnly(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		if err := s.store.DeleteDataset(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		log.Printf("dataset deleted id=%s", id)
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}
	ds, err := s.store.GetDataset(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "dataset": ds})
}
