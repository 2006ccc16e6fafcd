package dashboard

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

type Service interface {
	Stats(ctx context.Context, userID string) (models.DashboardStats, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// Stats godoc
// @Summary Статистика личного кабинета
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /dashboard/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.dashboard.Stats"
	stats, err := h.service.Stats(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.log.Error("failed to collect stats",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, stats)
}
