package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScopeCategory категория области развития.
type ScopeCategory string

const (
	CategoryMental        ScopeCategory = "mental"
	CategoryPhysical      ScopeCategory = "physical"
	CategoryCareer        ScopeCategory = "career"
	CategoryFinancial     ScopeCategory = "financial"
	CategoryRelationships ScopeCategory = "relationships"
	CategorySpiritual     ScopeCategory = "spiritual"
	CategoryCreativity    ScopeCategory = "creativity"
	CategoryLifestyle     ScopeCategory = "lifestyle"
)

var scopeCategoryLabels = []struct {
	Category ScopeCategory
	Label    string
}{
	{CategoryMental, "Mental Health"},
	{CategoryPhysical, "Physical Health"},
	{CategoryCareer, "Career & Professional"},
	{CategoryFinancial, "Financial Growth"},
	{CategoryRelationships, "Relationships"},
	{CategorySpiritual, "Spiritual Growth"},
	{CategoryCreativity, "Creativity & Arts"},
	{CategoryLifestyle, "Lifestyle & Habits"},
}

// CategoryInfo описывает категорию для клиентов API.
type CategoryInfo struct {
	Value ScopeCategory `json:"value"`
	Label string        `json:"label"`
}

// ScopeCategories возвращает все категории в фиксированном порядке.
func ScopeCategories() []CategoryInfo {
	out := make([]CategoryInfo, 0, len(scopeCategoryLabels))
	for _, c := range scopeCategoryLabels {
		out = append(out, CategoryInfo{Value: c.Category, Label: c.Label})
	}
	return out
}

// Valid сообщает, известна ли категория.
func (c ScopeCategory) Valid() bool {
	for _, known := range scopeCategoryLabels {
		if known.Category == c {
			return true
		}
	}
	return false
}

// Label возвращает человекочитаемое название категории.
func (c ScopeCategory) Label() string {
	for _, known := range scopeCategoryLabels {
		if known.Category == c {
			return known.Label
		}
	}
	return string(c)
}

// Scope именованная область развития, которую пользователь выбирает при оформлении подписки.
type Scope struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Category    ScopeCategory `json:"category"`
	Icon        string        `json:"icon,omitempty"`
	IsActive    bool          `json:"is_active"`
	CreatedAt   time.Time     `json:"created_at"`
}

// DurationLabel маркетинговая метка длительности пакета.
type DurationLabel string

const (
	DurationMonthly   DurationLabel = "monthly"
	DurationQuarterly DurationLabel = "quarterly"
	DurationYearly    DurationLabel = "yearly"
)

// Valid сообщает, известна ли метка длительности.
func (d DurationLabel) Valid() bool {
	switch d {
	case DurationMonthly, DurationQuarterly, DurationYearly:
		return true
	}
	return false
}

// PackageComparison выбранный пакет на фоне всех активных пакетов.
type PackageComparison struct {
	Selected *Package  `json:"selected_package"`
	All      []Package `json:"all_packages"`
}

// Package тарифный план. Его поля определяют возможности активной подписки.
type Package struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Duration           DurationLabel   `json:"duration"`
	DurationDays       int             `json:"duration_days"`
	MaxScopes          int             `json:"max_scopes"`
	MessagesPerDay     int             `json:"messages_per_day"`
	CustomGoalsEnabled bool            `json:"custom_goals_enabled"`
	PrioritySupport    bool            `json:"priority_support"`
	IsActive           bool            `json:"is_active"`
	IsFeatured         bool            `json:"is_featured"`
	DisplayOrder       int             `json:"display_order"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Validate проверяет ограничения пакета перед сохранением.
func (p *Package) Validate() error {
	switch {
	case p.Name == "":
		return NewValidationError("name", "is required")
	case p.Price.IsNegative():
		return NewValidationError("price", "must not be negative")
	case p.DurationDays <= 0:
		return NewValidationError("duration_days", "must be positive")
	case p.MaxScopes < 1:
		return NewValidationError("max_scopes", "must be at least 1")
	case p.MessagesPerDay < 1:
		return NewValidationError("messages_per_day", "must be at least 1")
	case p.Duration != "" && !p.Duration.Valid():
		return NewValidationError("duration", "unknown duration %q", p.Duration)
	}
	return nil
}
