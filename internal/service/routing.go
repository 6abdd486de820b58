package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/guestdesk/backend/internal/models"
)

// RoutingService decides which staff member should receive a ticket or an
// inbound message, based on the hotel's ordered routing rules.
type RoutingService struct {
	Store  Store
	Logger zerolog.Logger

	// FallbackOnUnavailable controls what happens when a rule matches but
	// none of its targets are available: false stops the scan (the ticket
	// stays unassigned), true keeps scanning lower-priority rules.
	FallbackOnUnavailable bool
}

// FindAssigneeForTicket returns the staff ID the ticket should be assigned
// to, or "" when no active rule matches or no target is available.
func (s *RoutingService) FindAssigneeForTicket(ctx context.Context, t models.Ticket) (string, error) {
	rules, err := s.Store.ActiveRoutingRules(ctx, t.HotelID)
	if err != nil {
		return "", err
	}

	for _, rule := range rules {
		if !MatchesTicket(rule, t) {
			continue
		}
		assignee, stop, err := s.selectAssignee(ctx, rule)
		if err != nil {
			return "", err
		}
		if assignee != "" {
			return assignee, nil
		}
		if stop {
			return "", nil
		}
	}
	return "", nil
}

// FindAssigneeForMessage routes a bare inbound message. The conversation
// resolves the hotel; a vanished conversation yields no assignee.
func (s *RoutingService) FindAssigneeForMessage(ctx context.Context, m models.Message) (string, error) {
	conv, err := s.Store.Conversation(ctx, m.ConversationID)
	if err != nil {
		return "", err
	}
	if conv == nil {
		s.Logger.Warn().Str("message_id", m.ID).Str("conversation_id", m.ConversationID).Msg("conversation not found, skipping routing")
		return "", nil
	}

	rules, err := s.Store.ActiveRoutingRules(ctx, conv.HotelID)
	if err != nil {
		return "", err
	}

	for _, rule := range rules {
		if !MatchesMessage(rule, m.Content) {
			continue
		}
		assignee, stop, err := s.selectAssignee(ctx, rule)
		if err != nil {
			return "", err
		}
		if assignee != "" {
			return assignee, nil
		}
		if stop {
			return "", nil
		}
	}
	return "", nil
}

// selectAssignee applies the matched rule's target list. A rule without
// targets is skipped (stop=false); a rule whose targets are all unavailable
// ends the scan unless fallback is enabled.
func (s *RoutingService) selectAssignee(ctx context.Context, rule models.RoutingRule) (assignee string, stop bool, err error) {
	if len(rule.TargetStaffIDs) == 0 {
		s.Logger.Warn().Str("rule_id", rule.ID).Msg("routing rule has no targets, skipping")
		return "", false, nil
	}

	available, err := s.availableStaff(ctx, rule.TargetStaffIDs)
	if err != nil {
		return "", false, err
	}
	if len(available) > 0 {
		return available[0].ID, false, nil
	}
	return "", !s.FallbackOnUnavailable, nil
}

// availableStaff filters the candidates to active and available staff,
// preserving the preference order encoded in ids. Storage order is never
// trusted; re-ordering here keeps selection deterministic.
func (s *RoutingService) availableStaff(ctx context.Context, ids []string) ([]models.Staff, error) {
	records, err := s.Store.StaffByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Staff, len(records))
	for _, m := range records {
		byID[m.ID] = m
	}

	out := make([]models.Staff, 0, len(ids))
	for _, id := range ids {
		m, ok := byID[id]
		if !ok || !m.Assignable() {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

// AutoAssignTicket finds an assignee and commits the assignment. It returns
// false without error when the ticket is already assigned, no rule matched,
// no target was available, or a concurrent writer assigned the ticket first.
// On success the passed ticket is updated in place.
func (s *RoutingService) AutoAssignTicket(ctx context.Context, t *models.Ticket) (bool, error) {
	if t.AssignedTo != nil && *t.AssignedTo != "" {
		s.Logger.Info().Str("ticket_id", t.ID).Msg("ticket already assigned")
		return false, nil
	}

	assignee, err := s.FindAssigneeForTicket(ctx, *t)
	if err != nil {
		return false, err
	}
	if assignee == "" {
		return false, nil
	}

	ok, err := s.Store.AssignTicket(ctx, t.ID, assignee)
	if err != nil {
		return false, err
	}
	if !ok {
		s.Logger.Warn().Str("ticket_id", t.ID).Str("assignee_id", assignee).Msg("lost assignment race, leaving ticket untouched")
		return false, nil
	}

	t.AssignedTo = &assignee
	t.Status = models.TicketStatusAssigned
	s.Logger.Info().Str("ticket_id", t.ID).Str("assignee_id", assignee).Msg("ticket auto-assigned")
	return true, nil
}
