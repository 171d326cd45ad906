package debate

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	model "github.com/zhouzirui/debate-arena/backend/internal/model/debate"
	debateService "github.com/zhouzirui/debate-arena/backend/internal/service/debate"
	"github.com/zhouzirui/debate-arena/backend/pkg/utils"
)

// Handler exposes the debate session controls over HTTP.
type Handler struct {
	debates *debateService.Service
}

// New creates the debate handler.
func New(debates *debateService.Service) *Handler {
	return &Handler{debates: debates}
}

// RegisterRoutes mounts the debate routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/debates", h.handleCreate)
	r.Get("/debates", h.handleList)
	r.Get("/debates/{debateID}", h.handleGet)
	r.Delete("/debates/{debateID}", h.handleRemove)
	r.Post("/debates/{debateID}/start", h.handleStart)
	r.Post("/debates/{debateID}/pause", h.handlePause)
	r.Post("/debates/{debateID}/retry", h.handleStart)
	r.Post("/debates/{debateID}/semi-auto", h.handleToggleSemiAuto)
	r.Post("/debates/{debateID}/reset", h.handleReset)
	r.Post("/debates/{debateID}/restart", h.handleRestart)
	r.Post("/debates/{debateID}/interventions", h.handleIntervene)
	r.Put("/debates/{debateID}/participants/{participantID}/model", h.handleChangeModel)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var cfg model.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.debates.Create(cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.debates.List())
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.Get(chi.URLParam(r, "debateID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := h.debates.Remove(chi.URLParam(r, "debateID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.Start(chi.URLParam(r, "debateID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.Pause(chi.URLParam(r, "debateID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleToggleSemiAuto(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.ToggleSemiAuto(chi.URLParam(r, "debateID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	session, err := h.debates.Reset(chi.URLParam(r, "debateID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	var cfg model.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.debates.Restart(chi.URLParam(r, "debateID"), cfg)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleIntervene(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.debates.Intervene(chi.URLParam(r, "debateID"), payload.Content)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleChangeModel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model     string `json:"model"`
		ModelName string `json:"modelName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.debates.ChangeModel(
		chi.URLParam(r, "debateID"),
		chi.URLParam(r, "participantID"),
		payload.Model,
		payload.ModelName,
	)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, debateService.ErrSessionNotFound),
		errors.Is(err, debateService.ErrParticipantNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, debateService.ErrInvalidConfig),
		errors.Is(err, debateService.ErrEmptyIntervention):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, debateService.ErrSessionCompleted):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
