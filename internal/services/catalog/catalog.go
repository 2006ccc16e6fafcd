// Package catalog каталог пакетов и областей развития с кешированием в Redis.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/lib/sl"
	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Repository описывает хранилище каталога.
type Repository interface {
	ListScopes(ctx context.Context, category models.ScopeCategory, activeOnly bool) ([]models.Scope, error)
	CreateScope(ctx context.Context, sc *models.Scope) error
	ListPackages(ctx context.Context, featuredOnly, activeOnly bool) ([]models.Package, error)
	GetPackage(ctx context.Context, id int64) (*models.Package, error)
	CreatePackage(ctx context.Context, p *models.Package) error
	UpdatePackage(ctx context.Context, p *models.Package) error
	DeletePackage(ctx context.Context, id int64) error
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

const (
	keyPackagesAll      = "catalog:packages:all"
	keyPackagesFeatured = "catalog:packages:featured"
	keyScopesPrefix     = "catalog:scopes:"
)

func scopesKey(category models.ScopeCategory) string {
	if category == "" {
		return keyScopesPrefix + "all"
	}
	return keyScopesPrefix + string(category)
}

func allScopeKeys() []string {
	keys := []string{scopesKey("")}
	for _, c := range models.ScopeCategories() {
		keys = append(keys, scopesKey(c.Value))
	}
	return keys
}

// Service отдает активный каталог и выполняет административные правки.
type Service struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
	log   *slog.Logger
}

// New создает Service.
func New(repo Repository, cache Cache, ttl time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		ttl:   ttl,
		log:   log,
	}
}

// cached читает key из кеша, при промахе вызывает load и сохраняет результат.
// Ошибки кеша не прерывают запрос.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var result T
	found, err := s.cache.Get(ctx, key, &result)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", key), sl.Err(err))
	}
	if found {
		return result, nil
	}

	result, err = load()
	if err != nil {
		return result, err
	}
	if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
		s.log.Warn("failed to cache value", slog.String("key", key), sl.Err(err))
	}
	return result, nil
}

func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate cache", slog.Any("keys", keys), sl.Err(err))
	}
}

// Scopes возвращает активные области, опционально одной категории.
func (s *Service) Scopes(ctx context.Context, category models.ScopeCategory) ([]models.Scope, error) {
	const op = "catalog.Scopes"
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%s: %w", op, models.NewValidationError("category", "unknown category %q", category))
	}
	scopes, err := cached(ctx, s, scopesKey(category), func() ([]models.Scope, error) {
		return s.repo.ListScopes(ctx, category, true)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return scopes, nil
}

// Categories возвращает список категорий.
func (s *Service) Categories() []models.CategoryInfo {
	return models.ScopeCategories()
}

// CreateScope добавляет область.
func (s *Service) CreateScope(ctx context.Context, sc *models.Scope) error {
	const op = "catalog.CreateScope"
	sc.Name = strings.TrimSpace(sc.Name)
	if sc.Name == "" {
		return fmt.Errorf("%s: %w", op, models.NewValidationError("name", "is required"))
	}
	if !sc.Category.Valid() {
		return fmt.Errorf("%s: %w", op, models.NewValidationError("category", "unknown category %q", sc.Category))
	}
	if err := s.repo.CreateScope(ctx, sc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, allScopeKeys()...)
	s.log.Info("scope created", slog.String("op", op), slog.Int64("scope_id", sc.ID))
	return nil
}

// Packages возвращает активные пакеты, featured ограничивает выборку рекомендуемыми.
func (s *Service) Packages(ctx context.Context, featured bool) ([]models.Package, error) {
	const op = "catalog.Packages"
	key := keyPackagesAll
	if featured {
		key = keyPackagesFeatured
	}
	pkgs, err := cached(ctx, s, key, func() ([]models.Package, error) {
		return s.repo.ListPackages(ctx, featured, true)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return pkgs, nil
}

// Package возвращает активный пакет. Неактивный пакет считается отсутствующим.
func (s *Service) Package(ctx context.Context, id int64) (*models.Package, error) {
	const op = "catalog.Package"
	pkg, err := s.repo.GetPackage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !pkg.IsActive {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return pkg, nil
}

// Compare возвращает активный пакет вместе со всеми активными пакетами для сравнения.
func (s *Service) Compare(ctx context.Context, id int64) (*models.PackageComparison, error) {
	const op = "catalog.Compare"
	pkg, err := s.Package(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	all, err := s.Packages(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.PackageComparison{Selected: pkg, All: all}, nil
}

// CreatePackage добавляет пакет.
func (s *Service) CreatePackage(ctx context.Context, p *models.Package) error {
	const op = "catalog.CreatePackage"
	if p.Duration == "" {
		p.Duration = models.DurationMonthly
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.CreatePackage(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, keyPackagesAll, keyPackagesFeatured)
	s.log.Info("package created", slog.String("op", op), slog.Int64("package_id", p.ID))
	return nil
}

// UpdatePackage сохраняет изменения пакета. Лимиты читаются из пакета при каждой проверке,
// поэтому правка сразу действует и на существующие подписки.
func (s *Service) UpdatePackage(ctx context.Context, p *models.Package) error {
	const op = "catalog.UpdatePackage"
	if p.Duration == "" {
		p.Duration = models.DurationMonthly
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.UpdatePackage(ctx, p); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, keyPackagesAll, keyPackagesFeatured)
	s.log.Info("package updated", slog.String("op", op), slog.Int64("package_id", p.ID))
	return nil
}

// DeletePackage удаляет пакет, если на него не ссылается ни одна подписка.
func (s *Service) DeletePackage(ctx context.Context, id int64) error {
	const op = "catalog.DeletePackage"
	if err := s.repo.DeletePackage(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(ctx, keyPackagesAll, keyPackagesFeatured)
	s.log.Info("package deleted", slog.String("op", op), slog.Int64("package_id", id))
	return nil
}
