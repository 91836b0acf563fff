package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/edvin/deploytrack/internal/api/request"
	"github.com/edvin/deploytrack/internal/api/response"
	"github.com/edvin/deploytrack/internal/model"
)

// DeploymentOrchestrator is the orchestration surface the handler
// needs, satisfied by *core.DeploymentService.
type DeploymentOrchestrator interface {
	Create(ctx context.Context, serviceID, targetVersion string) (*model.Deployment, error)
	ListByService(ctx context.Context, serviceID string) ([]model.Deployment, error)
	Poll(ctx context.Context, id string) (*model.Deployment, error)
}

type Deployment struct {
	svc DeploymentOrchestrator
}

func NewDeployment(svc DeploymentOrchestrator) *Deployment {
	return &Deployment{svc: svc}
}

func (h *Deployment) Create(w http.ResponseWriter, r *http.Request) {
	serviceID, err := request.RequireID(chi.URLParam(r, "serviceID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Version string `json:"version" validate:"required"`
	}
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.Create(r.Context(), serviceID, req.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusCreated, d)
}

func (h *Deployment) ListByService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := request.RequireID(chi.URLParam(r, "serviceID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	deployments, err := h.svc.ListByService(r.Context(), serviceID)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, deployments)
}

// Status returns the deployment's current state, settling it first if
// its job has finished since the last look.
func (h *Deployment) Status(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "id"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, err := h.svc.Poll(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			response.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	response.WriteJSON(w, http.StatusOK, d)
}
