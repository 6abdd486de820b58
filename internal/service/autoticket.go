package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/guestdesk/backend/internal/models"
)

// guestFallback replaces {guest_name} when the conversation has no name.
const guestFallback = "客人"

// AutoTicketService turns matching inbound messages into tickets.
type AutoTicketService struct {
	Store   Store
	Routing *RoutingService
	Logger  zerolog.Logger
}

// EvaluateMessage runs the auto-ticket rule scan once and returns the first
// matching rule together with the message's conversation. Both are nil when
// no rule fires or the conversation is gone. Callers that go on to create a
// ticket pass the result to CreateTicketFromRule, so a single scan covers
// both the decision and the creation.
func (s *AutoTicketService) EvaluateMessage(ctx context.Context, m models.Message) (*models.AutoTicketRule, *models.Conversation, error) {
	conv, err := s.Store.Conversation(ctx, m.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, nil
	}

	rules, err := s.Store.ActiveAutoTicketRules(ctx, conv.HotelID)
	if err != nil {
		return nil, nil, err
	}

	for i := range rules {
		if MatchesTrigger(rules[i], m.Content) {
			return &rules[i], conv, nil
		}
	}
	return nil, conv, nil
}

// ShouldCreateTicket reports whether any active rule fires for the message.
func (s *AutoTicketService) ShouldCreateTicket(ctx context.Context, m models.Message) (bool, error) {
	rule, _, err := s.EvaluateMessage(ctx, m)
	return rule != nil, err
}

// CreateTicketFromMessage scans and creates in one call. Returns nil when no
// rule fires.
func (s *AutoTicketService) CreateTicketFromMessage(ctx context.Context, m models.Message) (*models.Ticket, error) {
	rule, conv, err := s.EvaluateMessage(ctx, m)
	if err != nil || rule == nil {
		return nil, err
	}
	return s.CreateTicketFromRule(ctx, m, conv, rule)
}

// CreateTicketFromRule synthesizes a ticket from a matched rule. Every
// matching message creates its own ticket; webhook redelivery dedup is the
// caller's job, by WeChat message ID.
func (s *AutoTicketService) CreateTicketFromRule(ctx context.Context, m models.Message, conv *models.Conversation, rule *models.AutoTicketRule) (*models.Ticket, error) {
	ticket := models.Ticket{
		ID:             NewTicketID(),
		HotelID:        conv.HotelID,
		ConversationID: conv.ID,
		Title:          RenderTemplate(rule.TicketTitleTemplate, m, conv),
		Description:    RenderTemplate(rule.TicketDescriptionTemplate, m, conv),
		Category:       rule.TicketCategory,
		Priority:       rule.TicketPriority,
		Status:         models.TicketStatusPending,
	}

	if err := s.Store.CreateTicket(ctx, ticket); err != nil {
		return nil, err
	}

	if err := s.Store.CreateTimelineEntry(ctx, models.TimelineEntry{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		EventType: "created",
		NewValue:  ticket.Title,
		Comment:   "Auto-created from message: " + truncate(m.Content, 50) + "...",
	}); err != nil {
		return nil, err
	}

	if rule.AutoAssign {
		assigned, err := s.Routing.AutoAssignTicket(ctx, &ticket)
		if err != nil {
			return nil, err
		}
		if assigned {
			if err := s.Store.CreateTimelineEntry(ctx, models.TimelineEntry{
				ID:        uuid.NewString(),
				TicketID:  ticket.ID,
				EventType: "assigned",
				NewValue:  *ticket.AssignedTo,
				Comment:   "Auto-assigned based on routing rules",
			}); err != nil {
				return nil, err
			}
		}
	}

	s.Logger.Info().
		Str("ticket_id", ticket.ID).
		Str("rule_id", rule.ID).
		Str("message_id", m.ID).
		Msg("auto-ticket created")

	return &ticket, nil
}

// RenderTemplate substitutes the fixed placeholder set. Unknown placeholders
// pass through unchanged.
func RenderTemplate(template string, m models.Message, conv *models.Conversation) string {
	guestName := conv.GuestName
	if guestName == "" {
		guestName = guestFallback
	}

	r := strings.NewReplacer(
		"{guest_name}", guestName,
		"{guest_phone}", conv.GuestPhone,
		"{message_content}", m.Content,
		"{hotel_id}", conv.HotelID,
	)
	return r.Replace(template)
}

// NewTicketID builds IDs like TK202602140933125F2A.
func NewTicketID() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return "TK" + time.Now().UTC().Format("20060102150405") + suffix
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
