package staff

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helios-portal/helios-portal/internal/platform/httpx"
	"github.com/helios-portal/helios-portal/internal/shared"
)

// Handler wires HTTP endpoints for staff accounts.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers staff routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/me", h.me)
}

type userView struct {
	ID          int64   `json:"id"`
	DiscordID   string  `json:"discord_id"`
	DiscordName string  `json:"discord_name"`
	RobloxID    *int64  `json:"roblox_id,omitempty"`
	RobloxName  *string `json:"roblox_name,omitempty"`
	Rank        *int    `json:"rank,omitempty"`
	RankName    *string `json:"rank_name,omitempty"`
	Status      Status  `json:"status"`
}

func toView(u *User) userView {
	return userView{
		ID:          u.ID,
		DiscordID:   u.DiscordID,
		DiscordName: u.DiscordName,
		RobloxID:    u.RobloxID,
		RobloxName:  u.RobloxName,
		Rank:        u.Rank,
		RankName:    u.RankName,
		Status:      u.Status,
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]userView, 0, len(users))
	for i := range users {
		views = append(views, toView(&users[i]))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if identity == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "")
		return
	}
	user, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		h.logger.Error("load current user", slog.Int64("user_id", identity.UserID), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, toView(user))
}
