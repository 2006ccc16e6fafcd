// Package goal содержит HTTP-обработчики личных целей пользователя.
package goal

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/request"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	goalsvc "github.com/magabrotheeeer/motivation-hub/internal/services/goal"
)

type Service interface {
	Create(ctx context.Context, userID string, req goalsvc.CreateRequest) (*models.UserGoal, error)
	Update(ctx context.Context, userID string, id int64, req goalsvc.UpdateRequest) (*models.UserGoal, error)
	Complete(ctx context.Context, userID string, id int64) (*models.UserGoal, error)
	Delete(ctx context.Context, userID string, id int64) error
	List(ctx context.Context, f models.GoalFilter) ([]models.UserGoal, error)
	Get(ctx context.Context, userID string, id int64) (*models.UserGoal, error)
}

// CreateRequest новая цель. target_date в формате 2006-01-02.
type CreateRequest struct {
	ScopeID     *int64 `json:"scope_id"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	TargetDate  string `json:"target_date"`
}

// UpdateRequest частичное обновление цели.
type UpdateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	TargetDate  *string `json:"target_date"`
	Status      *string `json:"status"`
	Progress    *int    `json:"progress"`
}

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) logger(r *http.Request, op string) *slog.Logger {
	return h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("user_id", middlewarectx.UserIDFrom(r.Context())),
	)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	if err := request.Decode(r, dst); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, request.Message(err))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return false
	}
	return true
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, models.NewValidationError("target_date", "must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

// Create godoc
// @Summary Создание цели
// @Tags Goals
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRequest true "Цель"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Тариф не включает личные цели"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /goals [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Create"
	log := h.logger(r, op)

	var req CreateRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	target, err := parseDate(req.TargetDate)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	g, err := h.service.Create(r.Context(), middlewarectx.UserIDFrom(r.Context()), goalsvc.CreateRequest{
		ScopeID:     req.ScopeID,
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  target,
	})
	if err != nil {
		log.Warn("failed to create goal", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.Created(w, r, g)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.List"
	goals, err := h.service.List(r.Context(), models.GoalFilter{
		UserID: middlewarectx.UserIDFrom(r.Context()),
		Status: models.GoalStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.logger(r, op).Warn("failed to list goals", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, goals)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Get"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	g, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		h.logger(r, op).Warn("failed to get goal", slog.Int64("goal_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, g)
}

// Update применяет частичное обновление к цели {id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Update"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	var req UpdateRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	upd := goalsvc.UpdateRequest{
		Title:       req.Title,
		Description: req.Description,
		Progress:    req.Progress,
	}
	if req.TargetDate != nil {
		if upd.TargetDate, err = parseDate(*req.TargetDate); err != nil {
			response.Fail(w, r, err)
			return
		}
	}
	if req.Status != nil {
		status := models.GoalStatus(*req.Status)
		upd.Status = &status
	}
	g, err := h.service.Update(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, upd)
	if err != nil {
		log.Warn("failed to update goal", slog.Int64("goal_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, g)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Complete"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	g, err := h.service.Complete(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		h.logger(r, op).Warn("failed to complete goal", slog.Int64("goal_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, g)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.goal.Delete"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	if err := h.service.Delete(r.Context(), middlewarectx.UserIDFrom(r.Context()), id); err != nil {
		h.logger(r, op).Warn("failed to delete goal", slog.Int64("goal_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
