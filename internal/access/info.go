package access

import (
	"time"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// FeatureInfo объяснение результата CanAccessFeature для клиента.
type FeatureInfo struct {
	Feature            string      `json:"feature"`
	CanAccess          bool        `json:"can_access"`
	Reason             string      `json:"reason"`
	UpgradeOptions     []string    `json:"upgrade_options"`
	Role               models.Role `json:"user_role"`
	HasActiveTrial     bool        `json:"has_active_trial"`
	TrialRemainingDays int         `json:"trial_remaining_days"`
}

// FeatureAccessInfo возвращает доступ к функции с причиной и вариантами апгрейда.
func (c *Capabilities) FeatureAccessInfo(feature string) FeatureInfo {
	info := FeatureInfo{
		Feature:        feature,
		CanAccess:      c.CanAccessFeature(feature),
		Reason:         "Unknown feature",
		UpgradeOptions: []string{},
	}
	if c.User == nil {
		info.Reason = "Not authenticated"
		return info
	}
	info.Role = c.User.Role
	info.HasActiveTrial = c.HasActiveTrial()
	info.TrialRemainingDays = c.User.TrialRemainingDays(c.Now)

	switch {
	case c.IsAdmin():
		info.Reason = "Admin has access to all features"
	case feature == FeatureBasicProfile || feature == FeatureViewContent:
		info.Reason = "Basic feature available to all users"
	case feature == FeatureTrialFeatures && info.HasActiveTrial:
		info.Reason = "Active trial provides access"
	case feature == FeatureTrialFeatures:
		info.Reason = "No active trial"
		if !c.User.HasUsedTrial {
			info.UpgradeOptions = append(info.UpgradeOptions, "Start free trial")
		}
	case feature == FeatureSubscriberFeatures && c.User.Role != models.RoleSubscriber:
		info.Reason = "Not a subscriber"
		info.UpgradeOptions = append(info.UpgradeOptions, "Subscribe to a plan")
	case feature == FeatureSubscriberFeatures && c.HasActiveSubscription():
		info.Reason = "Active subscription provides access"
	case feature == FeatureSubscriberFeatures:
		info.Reason = "Subscription expired or inactive"
		info.UpgradeOptions = append(info.UpgradeOptions, "Renew subscription")
	case feature == FeatureCustomGoals && c.hasCustomGoalsPackage():
		info.Reason = "Subscription includes custom goals"
	case feature == FeatureCustomGoals:
		info.Reason = "Current plan doesn't include custom goals"
		info.UpgradeOptions = append(info.UpgradeOptions, "Upgrade to plan with custom goals")
	}
	return info
}

// Recommendation следующий шаг, который стоит предложить пользователю.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Action      string `json:"action"`
}

// Recommendations подсказки по пробному периоду, подписке и апгрейду.
func (c *Capabilities) Recommendations() []Recommendation {
	out := []Recommendation{}
	if c.User == nil {
		return out
	}
	switch c.User.Role {
	case models.RoleNormal:
		if !c.User.HasUsedTrial {
			out = append(out, Recommendation{
				Type:        "trial",
				Title:       "Start Your Free Trial",
				Description: "Try all premium features for free",
				Action:      "start_trial",
			})
		} else {
			out = append(out, Recommendation{
				Type:        "subscription",
				Title:       "Subscribe to Unlock Features",
				Description: "Get unlimited access to all features",
				Action:      "view_plans",
			})
		}
	case models.RoleSubscriber:
		if sub := c.PrimarySubscription(); sub == nil {
			out = append(out, Recommendation{
				Type:        "renewal",
				Title:       "Renew Your Subscription",
				Description: "Your subscription has ended",
				Action:      "view_plans",
			})
		} else if sub.Package != nil && !sub.Package.CustomGoalsEnabled {
			out = append(out, Recommendation{
				Type:        "upgrade",
				Title:       "Upgrade for Custom Goals",
				Description: "Unlock custom goal creation and more",
				Action:      "upgrade_plan",
			})
		}
	}
	return out
}

// Summary сводка доступа пользователя.
type Summary struct {
	UserID              string           `json:"user_id"`
	Username            string           `json:"username"`
	Email               string           `json:"email"`
	FullName            string           `json:"full_name"`
	Role                models.Role      `json:"role"`
	Scopes              []string         `json:"scopes"`
	Permissions         []string         `json:"permissions"`
	HasActiveTrial      bool             `json:"has_active_trial"`
	TrialRemainingDays  int              `json:"trial_remaining_days"`
	ActiveSubscriptions int              `json:"active_subscriptions"`
	HasUsedTrial        bool             `json:"has_used_trial"`
	CanStartTrial       bool             `json:"can_start_trial"`
	Recommendations     []Recommendation `json:"recommendations"`
	ResolvedAt          time.Time        `json:"resolved_at"`
}

// Summary собирает сводку доступа.
func (c *Capabilities) Summary() Summary {
	s := Summary{
		Scopes:              c.Scopes,
		Permissions:         c.Permissions,
		ActiveSubscriptions: len(c.Active),
		Recommendations:     c.Recommendations(),
		ResolvedAt:          c.Now,
	}
	if c.User == nil {
		return s
	}
	s.UserID = c.User.ID
	s.Username = c.User.Username
	s.Email = c.User.Email
	s.FullName = c.User.FullName()
	s.Role = c.User.Role
	s.HasActiveTrial = c.HasActiveTrial()
	s.TrialRemainingDays = c.User.TrialRemainingDays(c.Now)
	s.HasUsedTrial = c.User.HasUsedTrial
	s.CanStartTrial = !c.User.HasUsedTrial
	return s
}
