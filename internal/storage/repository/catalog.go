package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

const scopeColumns = `id, name, description, category, icon, is_active, created_at`

func scanScope(row scanner) (models.Scope, error) {
	var (
		sc       models.Scope
		category string
	)
	err := row.Scan(&sc.ID, &sc.Name, &sc.Description, &category, &sc.Icon, &sc.IsActive, &sc.CreatedAt)
	sc.Category = models.ScopeCategory(category)
	return sc, err
}

func queryScopes(ctx context.Context, q querier, query string, args ...any) ([]models.Scope, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	result := []models.Scope{}
	for rows.Next() {
		sc, err := scanScope(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// ListScopes возвращает области, опционально по категории и только активные.
func (s *Storage) ListScopes(ctx context.Context, category models.ScopeCategory, activeOnly bool) ([]models.Scope, error) {
	const op = "storage.ListScopes"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if category != "" {
		args = append(args, string(category))
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if activeOnly {
		where = append(where, "is_active")
	}
	query := `SELECT ` + scopeColumns + ` FROM scopes`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY category, name`

	result, err := queryScopes(ctx, s.DB, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetScopesByIDs возвращает области с указанными ID. Отсутствующие ID просто не попадают в результат.
func (s *Storage) GetScopesByIDs(ctx context.Context, ids []int64) ([]models.Scope, error) {
	const op = "storage.GetScopesByIDs"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []models.Scope{}, nil
	}

	result, err := queryScopes(ctx, s.DB,
		`SELECT `+scopeColumns+` FROM scopes WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CreateScope сохраняет новую область.
func (s *Storage) CreateScope(ctx context.Context, sc *models.Scope) error {
	const op = "storage.CreateScope"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO scopes (name, description, category, icon, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`,
		sc.Name, sc.Description, string(sc.Category), sc.Icon, sc.IsActive).Scan(&sc.ID, &sc.CreatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, models.NewValidationError("name", "scope %q already exists", sc.Name))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const packageColumns = `id, name, description, price, duration, duration_days, max_scopes, messages_per_day,
	custom_goals_enabled, priority_support, is_active, is_featured, display_order, created_at, updated_at`

func scanPackage(row scanner) (*models.Package, error) {
	var (
		p        models.Package
		duration string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &duration, &p.DurationDays, &p.MaxScopes,
		&p.MessagesPerDay, &p.CustomGoalsEnabled, &p.PrioritySupport, &p.IsActive, &p.IsFeatured,
		&p.DisplayOrder, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Duration = models.DurationLabel(duration)
	return &p, nil
}

// ListPackages возвращает пакеты в порядке показа.
func (s *Storage) ListPackages(ctx context.Context, featuredOnly, activeOnly bool) ([]models.Package, error) {
	const op = "storage.ListPackages"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	var where []string
	if activeOnly {
		where = append(where, "is_active")
	}
	if featuredOnly {
		where = append(where, "is_featured")
	}
	query := `SELECT ` + packageColumns + ` FROM packages`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY display_order, price`

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = rows.Close() }()

	result := []models.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// GetPackage возвращает пакет по ID, всегда читая актуальную версию из базы.
func (s *Storage) GetPackage(ctx context.Context, id int64) (*models.Package, error) {
	const op = "storage.GetPackage"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	p, err := scanPackage(s.DB.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM packages WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, notFound(err))
	}
	return p, nil
}

// CreatePackage сохраняет новый пакет.
func (s *Storage) CreatePackage(ctx context.Context, p *models.Package) error {
	const op = "storage.CreatePackage"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO packages (name, description, price, duration, duration_days, max_scopes, messages_per_day,
			custom_goals_enabled, priority_support, is_active, is_featured, display_order)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.Price, string(p.Duration), p.DurationDays, p.MaxScopes, p.MessagesPerDay,
		p.CustomGoalsEnabled, p.PrioritySupport, p.IsActive, p.IsFeatured, p.DisplayOrder,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%s: %w", op, models.NewValidationError("name", "package %q already exists", p.Name))
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePackage перезаписывает пакет. Изменения сразу влияют на действующие подписки,
// так как права читаются из пакета в момент проверки.
func (s *Storage) UpdatePackage(ctx context.Context, p *models.Package) error {
	const op = "storage.UpdatePackage"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.DB.QueryRowContext(ctx,
		`UPDATE packages SET name = $1, description = $2, price = $3, duration = $4, duration_days = $5,
			max_scopes = $6, messages_per_day = $7, custom_goals_enabled = $8, priority_support = $9,
			is_active = $10, is_featured = $11, display_order = $12, updated_at = NOW()
		 WHERE id = $13
		 RETURNING created_at, updated_at`,
		p.Name, p.Description, p.Price, string(p.Duration), p.DurationDays, p.MaxScopes, p.MessagesPerDay,
		p.CustomGoalsEnabled, p.PrioritySupport, p.IsActive, p.IsFeatured, p.DisplayOrder, p.ID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, notFound(err))
	}
	return nil
}

// DeletePackage удаляет пакет. Пакет, на который ссылаются подписки, удалить нельзя.
func (s *Storage) DeletePackage(ctx context.Context, id int64) error {
	const op = "storage.DeletePackage"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	res, err := s.DB.ExecContext(ctx, `DELETE FROM packages WHERE id = $1`, id)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return fmt.Errorf("%s: %w", op, models.ErrPackageInUse)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := rowsAffected(res); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
