package service

import (
	"context"
	"time"

	"github.com/guestdesk/backend/internal/models"
)

// Store is the persistence surface the engines need. *db.Store satisfies it;
// tests inject in-memory fixtures.
type Store interface {
	ActiveRoutingRules(ctx context.Context, hotelID string) ([]models.RoutingRule, error)
	RoutingRules(ctx context.Context, hotelID string) ([]models.RoutingRule, error)
	ActiveAutoTicketRules(ctx context.Context, hotelID string) ([]models.AutoTicketRule, error)
	StaffByIDs(ctx context.Context, ids []string) ([]models.Staff, error)
	Conversation(ctx context.Context, id string) (*models.Conversation, error)
	CreateTicket(ctx context.Context, t models.Ticket) error
	AssignTicket(ctx context.Context, ticketID string, staffID string) (bool, error)
	CreateTimelineEntry(ctx context.Context, e models.TimelineEntry) error
	UnassignedTickets(ctx context.Context, olderThan time.Duration, limit int) ([]models.Ticket, error)
}
