package service

import (
	"strings"

	"github.com/guestdesk/backend/internal/models"
)

// MatchKeywords reports whether any keyword is a case-insensitive substring
// of text. An empty keyword list never matches.
func MatchKeywords(keywords []string, text string) bool {
	if len(keywords) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// MatchesTicket reports whether a routing rule matches a ticket. Keyword
// rules match against title plus description.
func MatchesTicket(rule models.RoutingRule, t models.Ticket) bool {
	switch rule.RuleType {
	case models.RuleTypeKeyword:
		return MatchKeywords(rule.Keywords, t.Title+" "+t.Description)
	case models.RuleTypeCategory:
		return t.Category == rule.Category
	case models.RuleTypePriority:
		return t.Priority == rule.Priority
	case models.RuleTypeManual:
		// Catch-all: a manual rule always matches if the scan reaches it.
		return true
	case models.RuleTypeRoundRobin:
		// Rotation is a selection concern, not a content predicate. No
		// rotation cursor exists yet, so these rules never match.
		return false
	}
	return false
}

// MatchesMessage reports whether a routing rule matches a bare inbound
// message. Only keyword rules apply: a message carries no ticket category or
// priority to compare against.
func MatchesMessage(rule models.RoutingRule, content string) bool {
	switch rule.RuleType {
	case models.RuleTypeKeyword:
		return MatchKeywords(rule.Keywords, content)
	case models.RuleTypeCategory, models.RuleTypePriority,
		models.RuleTypeManual, models.RuleTypeRoundRobin:
		return false
	}
	return false
}

// MatchesPreview is the rule-test variant: category and priority are only
// compared when the tester supplied them.
func MatchesPreview(rule models.RoutingRule, content, category, priority string) bool {
	switch rule.RuleType {
	case models.RuleTypeKeyword:
		return MatchKeywords(rule.Keywords, content)
	case models.RuleTypeCategory:
		return category != "" && category == rule.Category
	case models.RuleTypePriority:
		return priority != "" && priority == rule.Priority
	case models.RuleTypeManual:
		return true
	case models.RuleTypeRoundRobin:
		return false
	}
	return false
}

// MatchesTrigger reports whether an auto-ticket rule fires for a message.
// Only the keyword trigger is implemented; the remaining trigger types are
// declared but never fire.
func MatchesTrigger(rule models.AutoTicketRule, content string) bool {
	switch rule.TriggerType {
	case models.TriggerTypeKeyword:
		return MatchKeywords(rule.Keywords, content)
	case models.TriggerTypeCategory, models.TriggerTypeUnresponded, models.TriggerTypeTimeBased:
		return false
	}
	return false
}
