package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/deploytrack/internal/model"
)

func newDeploymentHandler() *Deployment {
	return NewDeployment(nil)
}

// --- Create ---

func TestDeploymentCreate_MissingServiceID(t *testing.T) {
	h := newDeploymentHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/services//deployments", nil), "serviceID", "")

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeploymentCreate_InvalidJSON(t *testing.T) {
	h := newDeploymentHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequestRaw(http.MethodPost, "/services/test-id-1/deployments", "{bad"), "serviceID", validID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "invalid JSON")
}

func TestDeploymentCreate_MissingVersion(t *testing.T) {
	h := newDeploymentHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/services/test-id-1/deployments", map[string]any{}), "serviceID", validID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeErrorResponse(rec)
	assert.Contains(t, body["error"], "validation error")
}

func TestDeploymentCreate_Success(t *testing.T) {
	orch := &mockOrchestrator{}
	orch.On("Create", mock.Anything, validID, "1.3.0").
		Return(&model.Deployment{ID: "test-deploy-1", ServiceID: validID, Version: "1.3.0", Status: model.StatusInProgress}, nil)

	h := NewDeployment(orch)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/services/"+validID+"/deployments",
		map[string]any{"version": "1.3.0"}), "serviceID", validID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var got model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusInProgress, got.Status)
	orch.AssertExpectations(t)
}

func TestDeploymentCreate_ServiceNotFound(t *testing.T) {
	orch := &mockOrchestrator{}
	orch.On("Create", mock.Anything, validID, "1.3.0").Return(nil, pgx.ErrNoRows)

	h := NewDeployment(orch)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodPost, "/services/"+validID+"/deployments",
		map[string]any{"version": "1.3.0"}), "serviceID", validID)

	h.Create(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	orch.AssertExpectations(t)
}

// --- ListByService ---

func TestDeploymentListByService_MissingServiceID(t *testing.T) {
	h := newDeploymentHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/services//deployments", nil), "serviceID", "")

	h.ListByService(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Status ---

func TestDeploymentStatus_MissingID(t *testing.T) {
	h := newDeploymentHandler()
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/deployments/", nil), "id", "")

	h.Status(rec, r)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeploymentStatus_Success(t *testing.T) {
	orch := &mockOrchestrator{}
	orch.On("Poll", mock.Anything, "test-deploy-1").
		Return(&model.Deployment{ID: "test-deploy-1", Status: model.StatusSuccess}, nil)

	h := NewDeployment(orch)
	rec := httptest.NewRecorder()
	r := withChiURLParam(newRequest(http.MethodGet, "/deployments/test-deploy-1", nil), "id", "test-deploy-1")

	h.Status(rec, r)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got model.Deployment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, model.StatusSuccess, got.Status)
	orch.AssertExpectations(t)
}
