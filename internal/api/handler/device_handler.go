package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/linquo/push-dispatch/internal/domain"
	"github.com/linquo/push-dispatch/internal/service"
)

// DeviceHandler handles device token registration endpoints.
type DeviceHandler struct {
	svc    *service.QueueService
	logger *zap.Logger
}

func NewDeviceHandler(svc *service.QueueService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{svc: svc, logger: logger}
}

// Register handles POST /api/v1/devices
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	t, err := h.svc.RegisterDevice(r.Context(), req)
	if err != nil {
		h.logger.Warn("register device failed", zap.Error(err))
		mapError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// Deactivate handles DELETE /api/v1/devices/{token}
func (h *DeviceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.svc.DeactivateDevice(r.Context(), token); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
