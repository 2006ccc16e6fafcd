// Package message содержит HTTP-обработчики мотивационных сообщений.
package message

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/request"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	msgsvc "github.com/magabrotheeeer/motivation-hub/internal/services/message"
)

const maxListLimit = 100

type Service interface {
	Generate(ctx context.Context, userID string, req msgsvc.GenerateRequest) (*models.AIMessage, error)
	Daily(ctx context.Context, userID string) (*models.AIMessage, bool, error)
	List(ctx context.Context, f models.MessageFilter) ([]models.AIMessage, error)
	Get(ctx context.Context, userID string, id int64) (*models.AIMessage, error)
	UpdateFlags(ctx context.Context, userID string, id int64, flags models.MessageFlags) (*models.AIMessage, error)
}

// GenerateRequest параметры генерации. Тип выводится из заполненных полей, если не задан.
type GenerateRequest struct {
	MessageType string `json:"message_type"`
	ScopeID     *int64 `json:"scope_id"`
	GoalID      *int64 `json:"goal_id"`
	CustomText  string `json:"custom_prompt" validate:"max=500"`
}

// FlagsRequest отметки прочтения, избранного и оценка.
type FlagsRequest struct {
	IsRead      *bool `json:"is_read"`
	IsFavorited *bool `json:"is_favorited"`
	Rating      *int  `json:"rating"`
}

type dailyResponse struct {
	Message *models.AIMessage `json:"message"`
	Created bool              `json:"created"`
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

// Generate godoc
// @Summary Генерация мотивационного сообщения
// @Tags Messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateRequest true "Параметры генерации"
// @Success 201 {object} response.Response
// @Failure 403 {object} response.ErrorResponse "Нет действующей подписки"
// @Failure 429 {object} response.ErrorResponse "Дневной лимит исчерпан"
// @Failure 502 {object} response.ErrorResponse "Сервис генерации недоступен"
// @Router /messages [post]
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.Generate"
	log := h.logger(r, op)

	var req GenerateRequest
	if err := request.Decode(r, &req); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, request.Message(err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		response.Invalid(w, r, err)
		return
	}
	msg, err := h.service.Generate(r.Context(), middlewarectx.UserIDFrom(r.Context()), msgsvc.GenerateRequest{
		Type:    models.MessageType(req.MessageType),
		ScopeID: req.ScopeID,
		GoalID:  req.GoalID,
		Custom:  req.CustomText,
	})
	if err != nil {
		log.Warn("failed to generate message", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.Created(w, r, msg)
}

// Daily возвращает сообщение дня, создавая его при первом запросе за сутки.
func (h *Handler) Daily(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.Daily"
	msg, created, err := h.service.Daily(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Warn("failed to get daily message", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.JSON(w, r, status, response.StatusOKWithData(dailyResponse{Message: msg, Created: created}))
}

// List поддерживает фильтры type, scope_id, unread, favorites и пагинацию limit/offset.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.List"

	f, err := filterFrom(r)
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	msgs, err := h.service.List(r.Context(), f)
	if err != nil {
		h.logger(r, op).Warn("failed to list messages", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, msgs)
}

func filterFrom(r *http.Request) (models.MessageFilter, error) {
	f := models.MessageFilter{
		UserID: middlewarectx.UserIDFrom(r.Context()),
		Type:   models.MessageType(r.URL.Query().Get("type")),
	}
	var err error
	if raw := r.URL.Query().Get("scope_id"); raw != "" {
		id, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil || id <= 0 {
			return f, fmt.Errorf("%w: invalid scope_id", request.ErrBadRequest)
		}
		f.ScopeID = &id
	}
	if f.Unread, err = request.BoolQuery(r, "unread"); err != nil {
		return f, err
	}
	if f.Favorites, err = request.BoolQuery(r, "favorites"); err != nil {
		return f, err
	}
	if f.Limit, err = request.IntQuery(r, "limit", 20); err != nil {
		return f, err
	}
	f.Limit = min(f.Limit, maxListLimit)
	if f.Offset, err = request.IntQuery(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.Get"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	msg, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		h.logger(r, op).Warn("failed to get message", slog.Int64("message_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, msg)
}

// UpdateFlags меняет флаги сообщения {id}.
func (h *Handler) UpdateFlags(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.message.UpdateFlags"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	var req FlagsRequest
	if err := request.Decode(r, &req); err != nil {
		log.Warn("failed to decode request body", sl.Err(err))
		response.BadRequest(w, r, request.Message(err))
		return
	}
	msg, err := h.service.UpdateFlags(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, models.MessageFlags{
		IsRead:      req.IsRead,
		IsFavorited: req.IsFavorited,
		Rating:      req.Rating,
	})
	if err != nil {
		log.Warn("failed to update message flags", slog.Int64("message_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, msg)
}
