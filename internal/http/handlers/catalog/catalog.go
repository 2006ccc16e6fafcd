// Package catalog содержит HTTP-обработчики каталога областей и пакетов.
package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/motivation-hub/internal/http/request"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

type Service interface {
	Scopes(ctx context.Context, category models.ScopeCategory) ([]models.Scope, error)
	Categories() []models.CategoryInfo
	CreateScope(ctx context.Context, sc *models.Scope) error
	Packages(ctx context.Context, featured bool) ([]models.Package, error)
	Package(ctx context.Context, id int64) (*models.Package, error)
	Compare(ctx context.Context, id int64) (*models.PackageComparison, error)
	CreatePackage(ctx context.Context, p *models.Package) error
	UpdatePackage(ctx context.Context, p *models.Package) error
	DeletePackage(ctx context.Context, id int64) error
}

// ScopeRequest новая область развития.
type ScopeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
	Category    string `json:"category" validate:"required"`
	Icon        string `json:"icon" validate:"max=50"`
}

// PackageRequest создание или замена пакета.
type PackageRequest struct {
	Name               string          `json:"name" validate:"required,max=100"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Duration           string          `json:"duration"`
	DurationDays       int             `json:"duration_days" validate:"required,min=1"`
	MaxScopes          int             `json:"max_scopes" validate:"required,min=1"`
	MessagesPerDay     int             `json:"messages_per_day" validate:"required,min=1"`
	CustomGoalsEnabled bool            `json:"custom_goals_enabled"`
	PrioritySupport    bool            `json:"priority_support"`
	IsActive           *bool           `json:"is_active"`
	IsFeatured         bool            `json:"is_featured"`
	DisplayOrder       int             `json:"display_order"`
}

func (req PackageRequest) toModel() *models.Package {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.Package{
		Name:               req.Name,
		Description:        req.Description,
		Price:              req.Price,
		Duration:           models.DurationLabel(req.Duration),
		DurationDays:       req.DurationDays,
		MaxScopes:          req.MaxScopes,
		MessagesPerDay:     req.MessagesPerDay,
		CustomGoalsEnabled: req.CustomGoalsEnabled,
		PrioritySupport:    req.PrioritySupport,
		IsActive:           active,
		IsFeatured:         req.IsFeatured,
		DisplayOrder:       req.DisplayOrder,
	}
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

// Scopes godoc
// @Summary Список областей развития
// @Tags Catalog
// @Produce json
// @Param category query string false "Категория"
// @Success 200 {object} response.Response
// @Failure 422 {object} response.ErrorResponse "Неизвестная категория"
// @Router /scopes [get]
func (h *Handler) Scopes(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.Scopes"
	scopes, err := h.service.Scopes(r.Context(), models.ScopeCategory(r.URL.Query().Get("category")))
	if err != nil {
		h.logger(r, op).Warn("failed to list scopes", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, scopes)
}

func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	response.OK(w, r, h.service.Categories())
}

func (h *Handler) CreateScope(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.CreateScope"
	log := h.logger(r, op)

	var req ScopeRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	sc := &models.Scope{
		Name:        req.Name,
		Description: req.Description,
		Category:    models.ScopeCategory(req.Category),
		Icon:        req.Icon,
		IsActive:    true,
	}
	if err := h.service.CreateScope(r.Context(), sc); err != nil {
		log.Warn("failed to create scope", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.Created(w, r, sc)
}

// Packages godoc
// @Summary Список тарифных пакетов
// @Tags Catalog
// @Produce json
// @Param featured query bool false "Только рекомендуемые"
// @Success 200 {object} response.Response
// @Router /packages [get]
func (h *Handler) Packages(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.Packages"
	featured, err := request.BoolQuery(r, "featured")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	pkgs, err := h.service.Packages(r.Context(), featured)
	if err != nil {
		h.logger(r, op).Error("failed to list packages", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, pkgs)
}

func (h *Handler) Package(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.Package"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	pkg, err := h.service.Package(r.Context(), id)
	if err != nil {
		h.logger(r, op).Warn("failed to get package", slog.Int64("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, pkg)
}

// Compare godoc
// @Summary Сравнение пакета с остальными
// @Tags Catalog
// @Produce json
// @Param id path int true "ID пакета"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.ErrorResponse "Пакет не найден"
// @Router /packages/{id}/comparison [get]
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.Compare"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	cmp, err := h.service.Compare(r.Context(), id)
	if err != nil {
		h.logger(r, op).Warn("failed to compare package", slog.Int64("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, cmp)
}

func (h *Handler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.CreatePackage"
	log := h.logger(r, op)

	var req PackageRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	pkg := req.toModel()
	if err := h.service.CreatePackage(r.Context(), pkg); err != nil {
		log.Warn("failed to create package", sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.Created(w, r, pkg)
}

// UpdatePackage заменяет поля пакета {id}.
func (h *Handler) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.UpdatePackage"
	log := h.logger(r, op)

	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	var req PackageRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	pkg := req.toModel()
	pkg.ID = id
	if err := h.service.UpdatePackage(r.Context(), pkg); err != nil {
		log.Warn("failed to update package", slog.Int64("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	response.OK(w, r, pkg)
}

func (h *Handler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.catalog.DeletePackage"
	id, err := request.IDParam(r, "id")
	if err != nil {
		response.BadRequest(w, r, request.Message(err))
		return
	}
	if err := h.service.DeletePackage(r.Context(), id); err != nil {
		h.logger(r, op).Warn("failed to delete package", slog.Int64("package_id", id), sl.Err(err))
		response.Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
