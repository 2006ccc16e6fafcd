// Package subscription содержит HTTP-обработчики оформления и управления подписками.
package subscription

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/request"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	subsvc "github.com/magabrotheeeer/motivation-hub/internal/services/subscription"
)

type Service interface {
	Checkout(ctx context.Context, user *models.User, req subsvc.CheckoutRequest) (*subsvc.CheckoutResult, error)
	Activate(ctx context.Context, subID int64) (*subsvc.ActivationResult, error)
	Cancel(ctx context.Context, userID string, subID int64) (*models.Subscription, error)
	UpdateScopes(ctx context.Context, userID string, subID int64, scopeIDs []int64) (*models.Subscription, error)
	Active(ctx context.Context, userID string) ([]models.Subscription, error)
	List(ctx context.Context, userID string) ([]models.Subscription, error)
	Get(ctx context.Context, userID string, subID int64) (*models.Subscription, error)
}

// CheckoutRequest выбор пакета и областей.
type CheckoutRequest struct {
	PackageID int64   `json:"package_id" validate:"required,min=1"`
	ScopeIDs  []int64 `json:"scope_ids" validate:"required,min=1"`
	AutoRenew bool    `json:"auto_renew"`
}

// ScopesRequest новый набор областей подписки.
type ScopesRequest struct {
	ScopeIDs []int64 `json:"scope_ids" validate:"required,min=1"`
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

// Checkout godoc
// @Summary Оформление подписки
// @Description Создает подписку в статусе pending и возвращает ссылку на оплату
// @Tags Subscriptions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CheckoutRequest true "Пакет и области"
// @Success 201 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 502 {object} response.ErrorResponse "Платежный шлюз недоступен"
// @Router /subscriptions [post]
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Checkout"
	log := h.logger(r, op)

	caps := middlewarectx.CapabilitiesFrom(r.Context())
	if caps == nil || caps.User == nil {
		response.JSON(w, r, http.StatusUnauthorized, response.Error("unauthorized"))
		return
	}
	var req CheckoutRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	res, err := h.service.Checkout(r.Context(), caps.User, subsvc.CheckoutRequest{
		PackageID: req.PackageID,
		ScopeIDs:  req.ScopeIDs,
		AutoRenew: req.AutoRenew,
	})
	if err != nil {
		log.Warn("checkout failed", slog.Int64("package_id", req.PackageID), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("checkout started", slog.Int64("subscription_id", res.Subscription.ID), slog.String("charge_id", res.ChargeID))
	response.Created(w, r, res)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.List"
	subs, err := h.service.List(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Error("failed to list subscriptions", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, subs)
}

// Active возвращает действующие подписки пользователя.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Active"
	subs, err := h.service.Active(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Error("failed to list active subscriptions", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, subs)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Get"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	sub, err := h.service.Get(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		h.logger(r, op).Warn("failed to get subscription", slog.Int64("subscription_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, sub)
}

// Cancel отменяет подписку {id}; доступ по ней прекращается сразу.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Cancel"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	sub, err := h.service.Cancel(r.Context(), middlewarectx.UserIDFrom(r.Context()), id)
	if err != nil {
		log.Warn("failed to cancel subscription", slog.Int64("subscription_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("subscription cancelled", slog.Int64("subscription_id", id))
	response.OK(w, r, sub)
}

// UpdateScopes заменяет выбранные области действующей подписки {id}.
func (h *Handler) UpdateScopes(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.UpdateScopes"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	var req ScopesRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	sub, err := h.service.UpdateScopes(r.Context(), middlewarectx.UserIDFrom(r.Context()), id, req.ScopeIDs)
	if err != nil {
		log.Warn("failed to update scopes", slog.Int64("subscription_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, sub)
}

// Activate активирует подписку {id} вручную (администратор), без участия платежного шлюза.
func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.Activate"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	res, err := h.service.Activate(r.Context(), id)
	if err != nil {
		log.Warn("failed to activate subscription", slog.Int64("subscription_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("subscription activated by admin",
		slog.Int64("subscription_id", id), slog.Bool("role_upgraded", res.RoleUpgraded))
	response.OK(w, r, res)
}
