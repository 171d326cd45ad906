package pool

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/debate-arena/backend/internal/model/catalog"
	"github.com/zhouzirui/debate-arena/backend/internal/service/provider"
	"github.com/zhouzirui/debate-arena/backend/internal/store"
	"github.com/zhouzirui/debate-arena/backend/pkg/utils"
)

// ProviderClient is the slice of the provider client this handler drives:
// catalog lookups plus runtime credential rebinding.
type ProviderClient interface {
	ListModels(ctx context.Context) ([]catalog.Model, error)
	SetCredential(apiKey string)
}

// Handler serves the model catalog browser and the persisted model pool.
type Handler struct {
	client ProviderClient
	pool   *store.Store
}

// New creates the pool handler.
func New(client ProviderClient, pool *store.Store) *Handler {
	return &Handler{client: client, pool: pool}
}

// RegisterRoutes mounts the catalog and pool routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleCatalog)
	r.Get("/pool", h.handleGetPool)
	r.Put("/pool", h.handlePutPool)
	r.Post("/pool/import", h.handleImport)
	r.Get("/pool/export", h.handleExport)
	r.Put("/credential", h.handleSetCredential)
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	models, err := h.client.ListModels(r.Context())
	if err != nil {
		var apiErr *provider.APIError
		if errors.As(err, &apiErr) {
			utils.RespondError(w, http.StatusBadGateway, apiErr.Error())
			return
		}
		utils.RespondError(w, http.StatusBadGateway, "failed to fetch model catalog")
		return
	}
	utils.RespondJSON(w, http.StatusOK, models)
}

func (h *Handler) handleGetPool(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.pool.Models())
}

func (h *Handler) handlePutPool(w http.ResponseWriter, r *http.Request) {
	var models []catalog.Model
	if err := json.NewDecoder(r.Body).Decode(&models); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of models")
		return
	}
	if err := h.pool.SetModels(models); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, models)
}

// handleImport merges an exported model list into the pool; existing ids
// are not duplicated.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	var models []catalog.Model
	if err := json.NewDecoder(r.Body).Decode(&models); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body: expected a JSON array of models")
		return
	}

	merged, err := h.pool.Import(models)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, merged)
}

// handleExport returns the pool in the same JSON array shape import accepts.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="models.json"`)
	utils.RespondJSON(w, http.StatusOK, h.pool.Models())
}

func (h *Handler) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.APIKey == "" {
		utils.RespondError(w, http.StatusBadRequest, "apiKey is required")
		return
	}
	if err := h.pool.SetCredential(payload.APIKey); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Rebind the live client so the next completion uses the new key
	// without a process restart.
	h.client.SetCredential(payload.APIKey)
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}
