package textgen

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/motivation-hub/internal/models"
)

// PromptInput контекст, из которого собирается промпт.
type PromptInput struct {
	User   *models.User
	Type   models.MessageType
	Scope  *models.Scope
	Goal   *models.UserGoal
	Custom string
}

const instructions = "\nProvide a motivational message that is:" +
	"\n- Personalized and specific to the context above" +
	"\n- Actionable with practical advice" +
	"\n- Encouraging and empowering" +
	"\n- 3-5 sentences long" +
	"\n- Written in a warm, supportive tone"

// BuildPrompt собирает пользовательский промпт для модели.
func BuildPrompt(in PromptInput) string {
	var parts []string

	if in.User != nil && in.User.FirstName != "" {
		parts = append(parts, fmt.Sprintf("Create a motivational message for %s.", in.User.FirstName))
	} else {
		parts = append(parts, "Create a motivational message.")
	}

	switch in.Type {
	case models.MessageDaily:
		parts = append(parts, "This is their daily motivation to start the day with purpose and energy.")
	case models.MessageGoalSpecific:
		parts = append(parts, "This message should specifically support their current goal.")
	case models.MessageScopeBased:
		parts = append(parts, "This message should focus on a specific area of personal development.")
	}

	if in.Scope != nil {
		parts = append(parts,
			fmt.Sprintf("\nFocus Area: %s (%s)", in.Scope.Name, in.Scope.Category.Label()),
			"Context: "+in.Scope.Description,
		)
	}

	if in.Goal != nil {
		var b strings.Builder
		b.WriteString("\nCurrent Goal: " + in.Goal.Title)
		if in.Goal.Description != "" {
			b.WriteString("\nGoal Details: " + in.Goal.Description)
		}
		if in.Goal.TargetDate != nil {
			b.WriteString("\nTarget Date: " + in.Goal.TargetDate.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "\nProgress: %d%%", in.Goal.Progress)
		parts = append(parts, b.String())
	}

	if in.Custom != "" {
		parts = append(parts, "\nAdditional Context: "+in.Custom)
	}

	parts = append(parts, instructions)
	return strings.Join(parts, "\n")
}
