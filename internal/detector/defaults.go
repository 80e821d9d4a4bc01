package detector

import (
	"anonchat/backend/internal/models"

	"github.com/lib/pq"
)

// DefaultRules is the starter rule set written into an empty rules table.
func DefaultRules() []models.ViolationRule {
	return []models.ViolationRule{
		{
			Type:     "offensive_language",
			Words:    pq.StringArray{"shit", "bitch"},
			Message:  "Offensive language detected",
			IsActive: true,
		},
		{
			Type:     "spam_links",
			Words:    pq.StringArray{`https?://`, `www\.`},
			Message:  "Spam or promotional links are not allowed",
			IsActive: true,
		},
		{
			Type:     "harassment",
			Words:    pq.StringArray{"kill yourself", "you suck", "stupid idiot"},
			Message:  "Harassment or bullying detected",
			IsActive: true,
		},
	}
}
