package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/deploytrack/internal/api/request"
	"github.com/edvin/deploytrack/internal/api/response"
	"github.com/edvin/deploytrack/internal/core"
	"github.com/edvin/deploytrack/internal/model"
	"github.com/edvin/deploytrack/internal/platform"
)

// ServiceRegistry is the registry surface the handler needs, satisfied
// by *core.RegistryService.
type ServiceRegistry interface {
	Register(ctx context.Context, svc *model.Service) error
	GetByID(ctx context.Context, id string) (*model.Service, error)
	List(ctx context.Context) ([]model.Service, error)
	Refresh(ctx context.Context, id string) (*model.Service, error)
	RefreshAll(ctx context.Context) ([]model.Service, error)
}

type Service struct {
	svc ServiceRegistry
}

func NewService(svc ServiceRegistry) *Service {
	return &Service{svc: svc}
}

func (h *Service) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.List(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, services)
}

func (h *Service) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string `json:"name" validate:"required,servicename"`
		URL            string `json:"url" validate:"required,url"`
		HealthPath     string `json:"health_path"`
		ResponseFormat string `json:"response_format" validate:"omitempty,shape"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.HealthPath == "" {
		req.HealthPath = "/health/info"
	}
	if req.ResponseFormat == "" {
		req.ResponseFormat = "auto"
	}

	now := time.Now()
	svc := &model.Service{
		ID:             platform.NewID(),
		Name:           req.Name,
		URL:            req.URL,
		HealthPath:     req.HealthPath,
		ResponseFormat: req.ResponseFormat,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := h.svc.Register(r.Context(), svc); err != nil {
		if errors.Is(err, core.ErrDuplicateName) {
			response.WriteError(w, http.StatusConflict, err.Error())
			return
		}
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, svc)
}

func (h *Service) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	svc, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		response.WriteError(w, http.StatusNotFound, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, svc)
}

func (h *Service) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	refreshed, err := h.svc.Refresh(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, refreshed)
}

// RefreshAll re-probes every registered service and returns the
// updated registry.
func (h *Service) RefreshAll(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.RefreshAll(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, services)
}
