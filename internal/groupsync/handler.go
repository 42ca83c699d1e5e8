package groupsync

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helios-portal/helios-portal/internal/platform/httpx"
)

// Handler exposes the administrative trigger and the status display.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers sync routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/run", h.run)
	r.Get("/status", h.status)
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunOnce(r.Context())
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			httpx.Problem(w, http.StatusConflict, "Already Running", "a sync run is already in progress")
			return
		}
		h.logger.Error("manual sync run", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.service.Status())
}
