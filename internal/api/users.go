package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chasqui-io/chasqui/internal/storage"
	apiTypes "github.com/chasqui-io/chasqui/pkg/api"
)

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.FindAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users", err.Error())
		return
	}
	out := make([]apiTypes.UserResponse, 0, len(tenants))
	for _, t := range tenants {
		out = append(out, toUserResponse(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tenant, err := h.tenants.FindByExternalID(r.Context(), id)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*tenant))
}

// createUser registers a tenant and immediately enqueues its first
// bring-up, so pairing can start without a separate call.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req apiTypes.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ExternalID == "" {
		writeError(w, http.StatusBadRequest, "externalId is required", "")
		return
	}

	tenant, err := h.tenants.Create(r.Context(), storage.Tenant{
		ExternalID:      req.ExternalID,
		Name:            req.Name,
		ReceiveMessages: req.ReceiveMessages,
	})
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	h.manager.Connect(tenant.ExternalID, tenant.ReceiveMessages)
	h.log.Info("user created, bring-up enqueued", "session", tenant.ExternalID)

	writeJSON(w, http.StatusCreated, toUserResponse(*tenant))
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req apiTypes.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	existing, err := h.tenants.FindByExternalID(r.Context(), id)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	existing.Name = req.Name
	existing.ReceiveMessages = req.ReceiveMessages
	updated, err := h.tenants.Update(r.Context(), *existing)
	if err != nil {
		h.writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*updated))
}

// deleteUser removes the tenant and tears down any live session with it.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.tenants.Delete(r.Context(), id); err != nil {
		h.writeUserError(w, err)
		return
	}
	h.manager.Disconnect(id)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrTenantNotFound):
		writeError(w, http.StatusNotFound, "user not found", "")
	case errors.Is(err, storage.ErrTenantExists):
		writeError(w, http.StatusConflict, "user already exists", "")
	case errors.Is(err, storage.ErrInvalidTenantID):
		writeError(w, http.StatusBadRequest, "invalid user id", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "user operation failed", err.Error())
	}
}

func toUserResponse(t storage.Tenant) apiTypes.UserResponse {
	return apiTypes.UserResponse{
		ExternalID:      t.ExternalID,
		Name:            t.Name,
		ReceiveMessages: t.ReceiveMessages,
		Status:          t.Status,
		CreatedAt:       t.CreatedAt,
	}
}
