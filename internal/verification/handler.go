package verification

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/helios-portal/helios-portal/internal/auth"
	"github.com/helios-portal/helios-portal/internal/platform/httpx"
	"github.com/helios-portal/helios-portal/internal/shared"
)

// Handler wires HTTP endpoints for the verification flow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers verification routes. Both endpoints are rate
// limited per IP on top of the idempotent re-request behavior.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	r.Post("/code", h.requestCode)
	r.Post("/verify", h.verify)
}

func (h *Handler) requestCode(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	code, err := h.service.RequestCode(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("request verification code", slog.Int64("user_id", identity.UserID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"code":       code.Code,
		"expires_at": code.ExpiresAt,
	})
}

type verifyRequest struct {
	Username string `json:"username" validate:"required,min=3,max=20"`
	Code     string `json:"code" validate:"required"`
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "username and code are required")
		return
	}
	token := auth.AccessTokenFromContext(r.Context())
	result, err := h.service.Verify(r.Context(), identity.UserID, req.Username, req.Code, token)
	if err != nil {
		var flowErr *FlowError
		if errors.As(err, &flowErr) {
			httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
				"verified": false,
				"reason":   flowErr.Reason,
				"message":  flowErr.Reason.Message(),
			})
			return
		}
		if errors.Is(err, shared.ErrExternalService) {
			httpx.Problem(w, http.StatusBadGateway, "Provider Unavailable", "try again")
			return
		}
		h.logger.Error("verify", slog.Int64("user_id", identity.UserID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"verified":     true,
		"roblox_id":    result.RobloxID,
		"roblox_name":  result.RobloxName,
		"rank":         result.Rank,
		"rank_name":    result.RankName,
		"access_token": result.AccessToken,
	})
}
