package server

import (
	"encoding/json"
	stdliberrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/export"
	"github.com/samanhappy/selectly/pkg/logging"
	"github.com/samanhappy/selectly/pkg/storage"
)

func nowUTC() time.Time { return time.Now().UTC() }

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	records, err := s.records.ListRecords(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "listing records"))
		return
	}
	respondJSON(w, map[string]any{"records": records})
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	var rec storage.CollectionRecord
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "parsing record"))
		return
	}

	if err := s.records.CreateRecord(r.Context(), &rec); err != nil {
		if stdliberrors.Is(err, storage.ErrDuplicateRecord) {
			respondError(w, http.StatusConflict, err)
			return
		}
		respondError(w, http.StatusInternalServerError, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "saving record"))
		return
	}

	s.appLogger.Info(logging.CategoryStorage, "record_collected", "selection saved",
		map[string]any{"id": rec.ID, "sourceUrl": rec.SourceURL})
	respondJSON(w, rec)
}

func (s *Server) handleUpdateRecordNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "parsing note"))
		return
	}

	id := chi.URLParam(r, "recordID")
	if err := s.records.UpdateRecordNote(r.Context(), id, body.Note); err != nil {
		respondError(w, http.StatusInternalServerError, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "updating note"))
		return
	}
	respondJSON(w, map[string]any{"id": id, "note": body.Note})
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "recordID")
	if err := s.records.DeleteRecord(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "deleting record"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportRecords(w http.ResponseWriter, r *http.Request) {
	records, err := s.records.ListRecords(r.Context(), 0)
	if err != nil {
		respondError(w, http.StatusInternalServerError, apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "listing records"))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename("selectly-records", "csv", nowUTC()))
		err = export.WriteRecordsCSV(w, records)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename("selectly-records", "xlsx", nowUTC()))
		err = export.WriteRecordsXLSX(w, records)
	default:
		respondError(w, http.StatusBadRequest, apperrors.Newf(apperrors.ErrCodeInvalidInput, "unsupported format %q", format))
		return
	}

	if err != nil {
		// Headers are already sent; log instead of double-writing a status.
		s.appLogger.Error(logging.CategoryExport, "records_export_failed", err.Error(), nil)
	}
}
