package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/storage"
)

// sessionStatus reports the live session state for a tenant. When the
// tenant exists but has no live session, a bring-up is enqueued so polling
// the status is enough to (re)start pairing; the caller then watches the
// realtime channel for the QR.
func (h *Handler) sessionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	status, err := h.manager.GetStatus(id)
	if err == nil {
		writeJSON(w, http.StatusOK, status)
		return
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to get session status", err.Error())
		return
	}

	tenant, terr := h.tenants.FindByExternalID(r.Context(), id)
	if terr != nil {
		if errors.Is(terr, storage.ErrTenantNotFound) || errors.Is(terr, storage.ErrInvalidTenantID) {
			writeError(w, http.StatusNotFound, "session not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to look up tenant", terr.Error())
		return
	}

	h.manager.Connect(id, tenant.ReceiveMessages)
	h.log.Info("bring-up enqueued from status request", "session", id)

	writeJSON(w, http.StatusOK, domain.Status{State: domain.StateConnecting.String()})
}

func (h *Handler) sessionLogout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := h.manager.GetStatus(id); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found", "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get session status", err.Error())
		return
	}

	h.manager.Disconnect(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}
