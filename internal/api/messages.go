package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/chasqui-io/chasqui/internal/domain"
	"github.com/chasqui-io/chasqui/internal/lifecycle"
	apiTypes "github.com/chasqui-io/chasqui/pkg/api"
)

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req apiTypes.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required", "")
		return
	}

	result, err := h.manager.SendText(r.Context(), id, lifecycle.TextRequest{
		Number:      req.Number,
		Message:     req.Message,
		FileName:    req.FileName,
		Caption:     req.Caption,
		PDFBase64:   req.PDFBase64,
		ImageBase64: req.ImageBase64,
	})
	if err != nil {
		h.writeSendError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) sendMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req apiTypes.SendMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required", "")
		return
	}
	if req.Base64 == "" || req.MimeType == "" {
		writeError(w, http.StatusBadRequest, "base64 and mimeType are required", "")
		return
	}

	result, err := h.manager.SendMedia(r.Context(), id, lifecycle.MediaRequest{
		Number:   req.Number,
		Base64:   req.Base64,
		MimeType: req.MimeType,
		FileName: req.FileName,
		Caption:  req.Caption,
	})
	if err != nil {
		h.writeSendError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) sendUniversalMedia(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req apiTypes.SendUniversalMediaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Number == "" {
		writeError(w, http.StatusBadRequest, "number is required", "")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required", "")
		return
	}

	result, err := h.manager.SendMediaUniversal(r.Context(), id, lifecycle.UniversalMediaRequest{
		Number:    req.Number,
		Type:      req.Type,
		Link:      req.Link,
		Text:      req.Text,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		FileName:  req.FileName,
	})
	if err != nil {
		h.writeSendError(w, id, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeSendError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotConnected):
		writeError(w, http.StatusConflict, "session not connected", err.Error())
	case errors.Is(err, domain.ErrInvalidNumber):
		writeError(w, http.StatusBadRequest, "invalid recipient number", err.Error())
	case errors.Is(err, domain.ErrUnregisteredRecipient):
		writeError(w, http.StatusUnprocessableEntity, "recipient not registered", err.Error())
	default:
		h.log.Error("send failed", "session", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send message", err.Error())
	}
}
