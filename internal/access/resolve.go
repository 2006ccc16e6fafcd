package access

import (
	"sort"
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// Capabilities результат вычисления прав пользователя на момент Now.
type Capabilities struct {
	User        *models.User
	Now         time.Time
	Scopes      []string
	Permissions []string
	// Active только действующие подписки (status active и end_date > Now).
	Active []models.Subscription

	scopes      map[string]struct{}
	permissions map[string]struct{}
}

// Resolve вычисляет скоупы и разрешения. Подписки, не являющиеся действующими на now,
// отбрасываются, поэтому вызывающему не обязательно фильтровать их заранее.
func Resolve(user *models.User, subs []models.Subscription, now time.Time) *Capabilities {
	c := &Capabilities{
		User:        user,
		Now:         now,
		scopes:      make(map[string]struct{}),
		permissions: make(map[string]struct{}),
	}
	if user == nil {
		return c.finish()
	}

	for _, s := range subs {
		if s.IsCurrentlyActive(now) {
			c.Active = append(c.Active, s)
		}
	}

	switch user.Role {
	case models.RoleAdmin:
		c.addScopes(ScopeAdmin, ScopeUserManagement, ScopeTrialManagement, ScopeAllContent)
		c.addPerms(PermCreateUsers, PermDeleteUsers, PermManageTrials, PermViewAllUsers, PermManageSubscriptions)
	case models.RoleSubscriber, models.RoleNormal:
		c.addPerms(PermViewProfile, PermUpdateProfile, PermCreateGoals, PermViewOwnSubscriptions, PermManageOwnGoals)
	}

	if user.HasActiveTrial(now) {
		c.addScopes(ScopeTrial)
		c.addPerms(PermTrialAccess, PermLimitedFeatures)
	}

	if len(c.Active) > 0 {
		c.addScopes(ScopeSubscriber)
	}
	for _, s := range c.Active {
		pkg := s.Package
		if pkg == nil {
			continue
		}
		if pkg.CustomGoalsEnabled {
			c.addScopes(ScopeCustomGoals)
			c.addPerms(PermCreateCustomGoals)
		}
		if pkg.PrioritySupport {
			c.addScopes(ScopePrioritySupport)
			c.addPerms(PermPrioritySupport)
		}
		c.addScopes(MessagesPerDayScope(pkg.MessagesPerDay))
		if pkg.MessagesPerDay > 1 {
			c.addPerms(PermMultipleMessages)
		}
	}

	c.addScopes(ScopeProfile, ScopeBasicAccess)
	return c.finish()
}

func (c *Capabilities) addScopes(scopes ...string) {
	for _, s := range scopes {
		c.scopes[s] = struct{}{}
	}
}

func (c *Capabilities) addPerms(perms ...string) {
	for _, p := range perms {
		c.permissions[p] = struct{}{}
	}
}

func (c *Capabilities) finish() *Capabilities {
	c.Scopes = sortedKeys(c.scopes)
	c.Permissions = sortedKeys(c.permissions)
	return c
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// HasScope сообщает, есть ли у пользователя access-скоуп.
func (c *Capabilities) HasScope(scope string) bool {
	_, ok := c.scopes[scope]
	return ok
}

// HasPermission сообщает, есть ли у пользователя разрешение.
func (c *Capabilities) HasPermission(perm string) bool {
	_, ok := c.permissions[perm]
	return ok
}

// IsAdmin сообщает, является ли пользователь администратором.
func (c *Capabilities) IsAdmin() bool {
	return c.User != nil && c.User.IsAdmin()
}

// HasActiveTrial сообщает, действует ли пробный период на момент Now.
func (c *Capabilities) HasActiveTrial() bool {
	return c.User != nil && c.User.HasActiveTrial(c.Now)
}

// HasActiveSubscription сообщает, есть ли хотя бы одна действующая подписка.
func (c *Capabilities) HasActiveSubscription() bool {
	return len(c.Active) > 0
}

// PrimarySubscription действующая подписка, по которой считается квота:
// та, что заканчивается позже всех. nil, если действующих подписок нет.
func (c *Capabilities) PrimarySubscription() *models.Subscription {
	var best *models.Subscription
	for i := range c.Active {
		s := &c.Active[i]
		if best == nil || s.EndDate.After(*best.EndDate) {
			best = s
		}
	}
	return best
}

func (c *Capabilities) hasCustomGoalsPackage() bool {
	for _, s := range c.Active {
		if s.Package != nil && s.Package.CustomGoalsEnabled {
			return true
		}
	}
	return false
}

// CanAccessFeature проверяет доступ к функции. Неизвестная функция недоступна никому, кроме администратора.
func (c *Capabilities) CanAccessFeature(feature string) bool {
	if c.User == nil {
		return false
	}
	if c.IsAdmin() {
		return true
	}
	switch feature {
	case FeatureBasicProfile, FeatureViewContent:
		return true
	case FeatureTrialFeatures:
		return c.HasActiveTrial()
	case FeatureSubscriberFeatures:
		// Роль проверяется отдельно: подписчик с истекшими подписками доступа не получает.
		return c.User.Role == models.RoleSubscriber && c.HasActiveSubscription()
	case FeatureCustomGoals:
		return c.hasCustomGoalsPackage()
	default:
		return false
	}
}
