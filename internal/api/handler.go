// Package api exposes the HTTP surface: session control, outbound sends,
// tenant CRUD, and the realtime WebSocket.
package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chasqui-io/chasqui/internal/lifecycle"
	"github.com/chasqui-io/chasqui/internal/realtime"
	"github.com/chasqui-io/chasqui/internal/storage"
	apiTypes "github.com/chasqui-io/chasqui/pkg/api"
)

// Handler routes REST API requests to the lifecycle manager and tenant
// repository.
type Handler struct {
	manager *lifecycle.Manager
	tenants *storage.TenantRepository
	hub     *realtime.Hub
	log     *slog.Logger
}

func NewHandler(manager *lifecycle.Manager, tenants *storage.TenantRepository, hub *realtime.Hub, log *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		tenants: tenants,
		hub:     hub,
		log:     log,
	}
}

// Mount registers all API routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/sessions/{id}/status", h.sessionStatus)
	r.Post("/sessions/{id}/logout", h.sessionLogout)
	r.Post("/messages/{id}", h.sendMessage)
	r.Post("/messages/media/{id}", h.sendMedia)
	r.Post("/messages/universal-media/{id}", h.sendUniversalMedia)
	r.Get("/users", h.listUsers)
	r.Post("/users", h.createUser)
	r.Get("/users/{id}", h.getUser)
	r.Put("/users/{id}", h.updateUser)
	r.Delete("/users/{id}", h.deleteUser)
	r.Get("/realtime", h.realtimeWebSocket)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, message, details string) {
	resp := apiTypes.ErrorResponse{Error: message}
	if details != "" {
		resp.Details = details
	}
	writeJSON(w, code, resp)
}

func generateID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
