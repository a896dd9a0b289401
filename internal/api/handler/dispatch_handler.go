package handler

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/linquo/push-dispatch/internal/api/middleware"
	"github.com/linquo/push-dispatch/internal/dispatch"
	"github.com/linquo/push-dispatch/internal/domain"
)

// DispatchHandler exposes the batch trigger. It speaks the exact
// response contract the console's cron caller already consumes:
//
//	{ "success": true,  "message": ..., "details": {total, success, failed} }
//	{ "success": true,  "message": "No pending notifications" }
//	{ "success": false, "error": ... }            (HTTP 500)
type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewDispatchHandler(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, logger: logger}
}

type dispatchResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Details *dispatch.Summary `json:"details,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// Run handles POST /api/v1/dispatch
//
// Individual notification failures inside a completed batch do not fail
// the invocation; only a precondition failure (missing credential,
// batch-fetch error) returns success=false.
func (h *DispatchHandler) Run(w http.ResponseWriter, r *http.Request) {
	summary, err := h.dispatcher.Run(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrDispatchBusy) {
			respondJSON(w, http.StatusConflict, dispatchResponse{
				Success: false,
				Error:   err.Error(),
			})
			return
		}
		h.logger.Error("dispatch run failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.Error(err),
		)
		respondJSON(w, http.StatusInternalServerError, dispatchResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	if summary.Total == 0 {
		respondJSON(w, http.StatusOK, dispatchResponse{
			Success: true,
			Message: "No pending notifications",
		})
		return
	}

	respondJSON(w, http.StatusOK, dispatchResponse{
		Success: true,
		Message: fmt.Sprintf("Processed %d notifications", summary.Total),
		Details: &summary,
	})
}
