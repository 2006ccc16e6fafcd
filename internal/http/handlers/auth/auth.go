// Package auth содержит HTTP-обработчики регистрации, входа, профиля,
// пробного периода и административного управления пользователями.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
	"github.com/magabrotheeeer/motivation-hub/internal/http/request"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
	authsvc "github.com/magabrotheeeer/motivation-hub/internal/services/auth"
)

// Service описывает операции с учетными записями.
type Service interface {
	Register(ctx context.Context, req authsvc.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, username, password string) (*authsvc.LoginResult, error)
	Me(ctx context.Context, userID string) (*models.User, error)
	Access(ctx context.Context, userID string) (access.Summary, error)
	Feature(ctx context.Context, userID, feature string) (access.FeatureInfo, error)
	StartTrial(ctx context.Context, userID string) (*models.User, error)
	ManageTrial(ctx context.Context, userID, action string, days int) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error)
	Downgrade(ctx context.Context, userID string) (*models.User, error)
}

// RegisterRequest входные данные для регистрации.
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	// StartTrial по умолчанию true.
	StartTrial *bool `json:"start_trial"`
}

// LoginRequest входные данные для входа. В username можно передать email.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TrialRequest управление пробным периодом администратором.
type TrialRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Action string `json:"action" validate:"required,oneof=start extend cancel"`
	Days   int    `json:"days" validate:"min=0,max=365"`
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
	)
}

// decode разбирает и валидирует тело запроса. При ошибке ответ уже отправлен.
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

// Register godoc
// @Summary Регистрация пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Данные пользователя"
// @Success 201 {object} response.Response
// @Failure 409 {object} response.ErrorResponse "Пользователь уже существует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Router /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Register"
	log := h.logger(r, op)

	var req RegisterRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	user, err := h.service.Register(r.Context(), authsvc.RegisterRequest{
		Username:   req.Username,
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		StartTrial: req.StartTrial,
	})
	if err != nil {
		log.Warn("registration failed", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.Created(w, r, user)
}

// Login godoc
// @Summary Авторизация пользователя
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Учетные данные"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Login"
	log := h.logger(r, op)

	var req LoginRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	res, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Warn("login failed", slog.String("username", req.Username), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, res)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Me"
	user, err := h.service.Me(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Error("failed to load profile", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, user)
}

// Access возвращает сводку прав текущего пользователя.
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Access"
	summary, err := h.service.Access(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Error("failed to resolve access", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, summary)
}

// Feature объясняет доступ к функции {feature}.
func (h *Handler) Feature(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Feature"
	info, err := h.service.Feature(r.Context(), middlewarectx.UserIDFrom(r.Context()), chi.URLParam(r, "feature"))
	if err != nil {
		h.logger(r, op).Error("failed to resolve feature access", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, info)
}

// StartTrial запускает пробный период текущего пользователя.
func (h *Handler) StartTrial(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.StartTrial"
	user, err := h.service.StartTrial(r.Context(), middlewarectx.UserIDFrom(r.Context()))
	if err != nil {
		h.logger(r, op).Warn("failed to start trial", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, user)
}

// ManageTrial запускает, продлевает или отменяет пробный период пользователя (администратор).
func (h *Handler) ManageTrial(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ManageTrial"
	log := h.logger(r, op)

	var req TrialRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	user, err := h.service.ManageTrial(r.Context(), req.UserID, req.Action, req.Days)
	if err != nil {
		log.Warn("failed to manage trial", slog.String("action", req.Action), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	log.Info("trial updated by admin",
		slog.String("admin_id", middlewarectx.UserIDFrom(r.Context())),
		slog.String("user_id", req.UserID),
		slog.String("action", req.Action))
	response.OK(w, r, user)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.ListUsers"
	limit, err := request.IntQuery(r, "limit", 50)
	if err == nil && limit > 200 {
		err = errors.New("limit must not exceed 200")
	}
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	offset, err := request.IntQuery(r, "offset", 0)
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	users, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		h.logger(r, op).Error("failed to list users", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, users)
}

// Downgrade переводит подписчика {id} в обычные пользователи.
func (h *Handler) Downgrade(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.Downgrade"
	user, err := h.service.Downgrade(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger(r, op).Warn("failed to downgrade user", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, user)
}
