package service

import (
	"context"
	"sort"
	"time"

	"github.com/guestdesk/backend/internal/models"
)

// fakeStore is an in-memory Store with the same ordering contract as the
// SQL store: rules come back priority_level descending, insertion order
// preserved within a level, staff in arbitrary order.
type fakeStore struct {
	rules     []models.RoutingRule
	autoRules []models.AutoTicketRule
	staff     []models.Staff
	convs     map[string]models.Conversation
	tickets   map[string]*models.Ticket
	timeline  []models.TimelineEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		convs:   map[string]models.Conversation{},
		tickets: map[string]*models.Ticket{},
	}
}

func (f *fakeStore) sortedRules(hotelID string, activeOnly bool) []models.RoutingRule {
	var out []models.RoutingRule
	for _, r := range f.rules {
		if r.HotelID != hotelID {
			continue
		}
		if activeOnly && !r.IsActive {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriorityLevel > out[j].PriorityLevel
	})
	return out
}

func (f *fakeStore) ActiveRoutingRules(_ context.Context, hotelID string) ([]models.RoutingRule, error) {
	return f.sortedRules(hotelID, true), nil
}

func (f *fakeStore) RoutingRules(_ context.Context, hotelID string) ([]models.RoutingRule, error) {
	return f.sortedRules(hotelID, false), nil
}

func (f *fakeStore) ActiveAutoTicketRules(_ context.Context, hotelID string) ([]models.AutoTicketRule, error) {
	var out []models.AutoTicketRule
	for _, r := range f.autoRules {
		if r.HotelID == hotelID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriorityLevel > out[j].PriorityLevel
	})
	return out, nil
}

func (f *fakeStore) StaffByIDs(_ context.Context, ids []string) ([]models.Staff, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	// Reverse order on purpose: callers must not rely on storage order.
	var out []models.Staff
	for i := len(f.staff) - 1; i >= 0; i-- {
		if want[f.staff[i].ID] {
			out = append(out, f.staff[i])
		}
	}
	return out, nil
}

func (f *fakeStore) Conversation(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeStore) CreateTicket(_ context.Context, t models.Ticket) error {
	copied := t
	f.tickets[t.ID] = &copied
	return nil
}

func (f *fakeStore) AssignTicket(_ context.Context, ticketID string, staffID string) (bool, error) {
	t, ok := f.tickets[ticketID]
	if !ok || t.AssignedTo != nil {
		return false, nil
	}
	t.AssignedTo = &staffID
	t.Status = models.TicketStatusAssigned
	return true, nil
}

func (f *fakeStore) CreateTimelineEntry(_ context.Context, e models.TimelineEntry) error {
	f.timeline = append(f.timeline, e)
	return nil
}

func (f *fakeStore) UnassignedTickets(_ context.Context, _ time.Duration, limit int) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.AssignedTo == nil && t.Status == models.TicketStatusPending {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
