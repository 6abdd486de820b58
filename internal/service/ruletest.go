package service

import (
	"context"

	"github.com/guestdesk/backend/internal/models"
)

// RuleTestService previews routing outcomes for rule authors. It shares the
// matcher and the availability filter with the live engine so a preview and
// a real routing run can never disagree, and it persists nothing.
type RuleTestService struct {
	Store   Store
	Routing *RoutingService
}

type MatchedRuleInfo struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	PriorityLevel int    `json:"priority_level"`
}

type StaffInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

type RuleTestResult struct {
	MatchedRule    MatchedRuleInfo `json:"matched_rule"`
	AssignedStaff  []StaffInfo     `json:"assigned_staff"`
	MessageContent string          `json:"message_content"`
	Category       string          `json:"category,omitempty"`
	Priority       string          `json:"priority,omitempty"`
}

type RuleSummary struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Type             models.RuleType `json:"type"`
	Keywords         []string        `json:"keywords"`
	Category         string          `json:"category,omitempty"`
	Priority         string          `json:"priority,omitempty"`
	TargetStaffCount int             `json:"target_staff_count"`
	RulePriority     int             `json:"rule_priority"`
	IsActive         bool            `json:"is_active"`
}

// TestMessage reports which rule would match a hypothetical message and who
// would receive the ticket. Category and priority are optional.
func (s *RuleTestService) TestMessage(ctx context.Context, hotelID, content, category, priority string) (RuleTestResult, error) {
	result := RuleTestResult{
		MatchedRule:    MatchedRuleInfo{Name: "默认规则", Type: "default"},
		AssignedStaff:  []StaffInfo{},
		MessageContent: content,
		Category:       category,
		Priority:       priority,
	}

	rules, err := s.Store.ActiveRoutingRules(ctx, hotelID)
	if err != nil {
		return RuleTestResult{}, err
	}

	for _, rule := range rules {
		if !MatchesPreview(rule, content, category, priority) {
			continue
		}

		result.MatchedRule = MatchedRuleInfo{
			ID:            rule.ID,
			Name:          rule.Name,
			Type:          string(rule.RuleType),
			PriorityLevel: rule.PriorityLevel,
		}

		available, err := s.Routing.availableStaff(ctx, rule.TargetStaffIDs)
		if err != nil {
			return RuleTestResult{}, err
		}
		for _, m := range available {
			result.AssignedStaff = append(result.AssignedStaff, StaffInfo{
				ID:         m.ID,
				Name:       m.Name,
				Department: m.Department,
			})
		}
		break
	}

	return result, nil
}

// Summaries projects every rule of a hotel for the rule-management UI, with
// the count of active staff behind each rule.
func (s *RuleTestService) Summaries(ctx context.Context, hotelID string) ([]RuleSummary, error) {
	rules, err := s.Store.RoutingRules(ctx, hotelID)
	if err != nil {
		return nil, err
	}

	out := make([]RuleSummary, 0, len(rules))
	for _, rule := range rules {
		activeCount := 0
		if len(rule.TargetStaffIDs) > 0 {
			staff, err := s.Store.StaffByIDs(ctx, rule.TargetStaffIDs)
			if err != nil {
				return nil, err
			}
			for _, m := range staff {
				if m.Status == models.StaffStatusActive {
					activeCount++
				}
			}
		}

		out = append(out, RuleSummary{
			ID:               rule.ID,
			Name:             rule.Name,
			Type:             rule.RuleType,
			Keywords:         rule.Keywords,
			Category:         rule.Category,
			Priority:         rule.Priority,
			TargetStaffCount: activeCount,
			RulePriority:     rule.PriorityLevel,
			IsActive:         rule.IsActive,
		})
	}
	return out, nil
}
