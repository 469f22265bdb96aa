package server

import (
	"encoding/json"
	stdliberrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/samanhappy/selectly/pkg/config"
	apperrors "github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/export"
	"github.com/samanhappy/selectly/pkg/logging"
)

// reconfigureRouter pushes the current provider set into the model router
// after any configuration mutation.
func (s *Server) reconfigureRouter(r *http.Request) {
	if s.router == nil {
		return
	}
	s.router.Configure(s.configs.Current(r.Context()).LLM)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.configs.Current(r.Context()))
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var partial config.Partial
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&partial); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "parsing configuration"))
		return
	}

	cfg := s.configs.Save(r.Context(), &partial)
	metricConfigSaves.Inc()
	s.reconfigureRouter(r)
	respondJSON(w, cfg)
}

func (s *Server) handleExportConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.Filename("selectly-config", "json", nowUTC()))
	if err := export.WriteConfig(w, s.configs.Current(r.Context())); err != nil {
		s.appLogger.Error(logging.CategoryExport, "config_export_failed", err.Error(), nil)
	}
}

func (s *Server) handleImportConfig(w http.ResponseWriter, r *http.Request) {
	raw, err := export.ReadConfig(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.configs.Import(r.Context(), raw); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	metricConfigSaves.Inc()
	s.reconfigureRouter(r)
	respondJSON(w, s.configs.Current(r.Context()))
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]any{
		"providers": s.configs.EnabledProviders(r.Context()),
	})
}

func (s *Server) handleSetProvider(w http.ResponseWriter, r *http.Request) {
	var provider config.Provider
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&provider); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "parsing provider"))
		return
	}
	provider.ID = chi.URLParam(r, "providerID")

	cfg, err := s.configs.SetProvider(r.Context(), provider)
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	s.reconfigureRouter(r)
	respondJSON(w, cfg)
}

func (s *Server) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.configs.RemoveProvider(r.Context(), chi.URLParam(r, "providerID"))
	if err != nil {
		respondError(w, statusForError(err), err)
		return
	}
	s.reconfigureRouter(r)
	respondJSON(w, cfg)
}

func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "providerID")
	provider, ok := s.configs.GetProvider(r.Context(), id)
	if !ok {
		respondError(w, http.StatusNotFound, stdliberrors.New("unknown provider"))
		return
	}

	// An override body lets the settings page test unsaved credentials.
	var override struct {
		BaseURL string `json:"baseUrl"`
		APIKey  string `json:"apiKey"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&override); err == nil {
		if override.BaseURL != "" {
			provider.BaseURL = override.BaseURL
		}
		if override.APIKey != "" {
			provider.APIKey = override.APIKey
		}
	}

	success := s.router.TestProvider(r.Context(), provider)
	status := config.TestStatusError
	if success {
		status = config.TestStatusSuccess
	}
	s.configs.UpdateProviderStatus(r.Context(), id, status)

	respondJSON(w, map[string]any{"provider": id, "success": success})
}
