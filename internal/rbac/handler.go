package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helios-portal/helios-portal/internal/platform/httpx"
)

// Handler exposes the admin permissions endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers permission routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{userID}", h.list)
	r.Put("/{userID}", h.setOverride)
}

type overrideView struct {
	Capability Capability `json:"capability"`
	Granted    bool       `json:"granted"`
	Overridden bool       `json:"overridden"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	resolved, err := h.service.Resolve(r.Context(), userID)
	if err != nil {
		h.logger.Error("resolve permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	stored, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("list permissions", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]overrideView, 0, len(stored))
	for _, o := range stored {
		views = append(views, overrideView{Capability: o.Capability, Granted: o.Granted, Overridden: o.Overridden})
	}
	effective := make([]Capability, 0, len(resolved))
	for c := range resolved {
		effective = append(effective, c)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"effective": effective,
		"stored":    views,
	})
}

type setOverrideRequest struct {
	Capability string `json:"capability" validate:"required"`
	Granted    *bool  `json:"granted" validate:"required"`
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return
	}
	var req setOverrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "capability and granted are required")
		return
	}
	capability, err := ParseCapability(req.Capability)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetOverride(r.Context(), userID, capability, *req.Granted); err != nil {
		h.logger.Error("set override", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
