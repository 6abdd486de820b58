package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/guestdesk/backend/internal/models"
	"github.com/guestdesk/backend/internal/service"
)

type memStore struct {
	rules     []models.RoutingRule
	autoRules []models.AutoTicketRule
	staff     []models.Staff
	convs     map[string]models.Conversation
	tickets   map[string]*models.Ticket
	timeline  []models.TimelineEntry
	seenMsgs  map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		convs:    map[string]models.Conversation{},
		tickets:  map[string]*models.Ticket{},
		seenMsgs: map[string]bool{},
	}
}

func (f *memStore) Ping(context.Context) error { return nil }

func (f *memStore) ActiveRoutingRules(_ context.Context, hotelID string) ([]models.RoutingRule, error) {
	var out []models.RoutingRule
	for _, r := range f.rules {
		if r.HotelID == hotelID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityLevel > out[j].PriorityLevel })
	return out, nil
}

func (f *memStore) RoutingRules(_ context.Context, hotelID string) ([]models.RoutingRule, error) {
	var out []models.RoutingRule
	for _, r := range f.rules {
		if r.HotelID == hotelID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityLevel > out[j].PriorityLevel })
	return out, nil
}

func (f *memStore) ActiveAutoTicketRules(_ context.Context, hotelID string) ([]models.AutoTicketRule, error) {
	var out []models.AutoTicketRule
	for _, r := range f.autoRules {
		if r.HotelID == hotelID && r.IsActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityLevel > out[j].PriorityLevel })
	return out, nil
}

func (f *memStore) StaffByIDs(_ context.Context, ids []string) ([]models.Staff, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Staff
	for _, m := range f.staff {
		if want[m.ID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *memStore) Conversation(_ context.Context, id string) (*models.Conversation, error) {
	c, ok := f.convs[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *memStore) UpsertConversation(_ context.Context, c models.Conversation) (models.Conversation, error) {
	for _, existing := range f.convs {
		if existing.HotelID == c.HotelID && existing.GuestWeChatID == c.GuestWeChatID {
			existing.LastMessageAt = time.Now()
			f.convs[existing.ID] = existing
			return existing, nil
		}
	}
	f.convs[c.ID] = c
	return c, nil
}

func (f *memStore) InsertMessage(_ context.Context, m models.Message) error {
	if m.WeChatMsgID != "" {
		f.seenMsgs[m.WeChatMsgID] = true
	}
	return nil
}

func (f *memStore) HasWeChatMessage(_ context.Context, id string) (bool, error) {
	return f.seenMsgs[id], nil
}

func (f *memStore) CreateTicket(_ context.Context, t models.Ticket) error {
	copied := t
	f.tickets[t.ID] = &copied
	return nil
}

func (f *memStore) Ticket(_ context.Context, id string) (models.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return models.Ticket{}, pgx.ErrNoRows
	}
	return *t, nil
}

func (f *memStore) AssignTicket(_ context.Context, ticketID string, staffID string) (bool, error) {
	t, ok := f.tickets[ticketID]
	if !ok || t.AssignedTo != nil {
		return false, nil
	}
	t.AssignedTo = &staffID
	t.Status = models.TicketStatusAssigned
	return true, nil
}

func (f *memStore) CreateTimelineEntry(_ context.Context, e models.TimelineEntry) error {
	f.timeline = append(f.timeline, e)
	return nil
}

func (f *memStore) TicketTimeline(_ context.Context, ticketID string) ([]models.TimelineEntry, error) {
	var out []models.TimelineEntry
	for _, e := range f.timeline {
		if e.TicketID == ticketID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *memStore) ListTickets(_ context.Context, hotelID, status, q string, limit, offset int) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if hotelID != "" && t.HotelID != hotelID {
			continue
		}
		if status != "" && string(t.Status) != status {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}

func (f *memStore) UnassignedTickets(_ context.Context, _ time.Duration, limit int) ([]models.Ticket, error) {
	var out []models.Ticket
	for _, t := range f.tickets {
		if t.AssignedTo == nil && t.Status == models.TicketStatusPending {
			out = append(out, *t)
		}
	}
	return out, nil
}

func newTestHandler(store *memStore) (*Handler, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	logger := zerolog.Nop()
	routing := &service.RoutingService{Store: store, Logger: logger}
	h := &Handler{
		Store:      store,
		Routing:    routing,
		AutoTicket: &service.AutoTicketService{Store: store, Routing: routing, Logger: logger},
		RuleTest:   &service.RuleTestService{Store: store, Routing: routing},
		Validator:  validator.New(),
		Logger:     logger,
	}

	r := gin.New()
	r.POST("/api/webhook/wechat", h.WeChatWebhook)
	r.POST("/api/rules/test", h.TestRule)
	r.GET("/api/rules/summary", h.RuleSummaries)
	r.POST("/api/tickets/:id/auto-assign", h.AutoAssignTicket)
	return h, r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookCreatesAutoTicket(t *testing.T) {
	store := newMemStore()
	store.staff = []models.Staff{{ID: "S1", HotelID: "H1", Status: models.StaffStatusActive, IsAvailable: true}}
	store.rules = []models.RoutingRule{
		{ID: "R1", HotelID: "H1", RuleType: models.RuleTypeKeyword, Keywords: []string{"漏水"}, TargetStaffIDs: []string{"S1"}, PriorityLevel: 10, IsActive: true},
	}
	store.autoRules = []models.AutoTicketRule{
		{
			ID: "A1", HotelID: "H1", TriggerType: models.TriggerTypeKeyword,
			Keywords:                  []string{"漏水"},
			TicketCategory:            "maintenance",
			TicketPriority:            "P2",
			TicketTitleTemplate:       "{guest_name}的房间问题",
			TicketDescriptionTemplate: "{message_content}",
			AutoAssign:                true,
			PriorityLevel:             10,
			IsActive:                  true,
		},
	}

	_, r := newTestHandler(store)
	payload := map[string]any{
		"msgtype": "text",
		"msgid":   "wx-1",
		"agentid": "H1",
		"content": "房间漏水了",
		"from_user": map[string]any{
			"userid": "guest-1",
			"name":   "李四",
		},
	}

	w := postJSON(t, r, "/api/webhook/wechat", payload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"errcode":0`) {
		t.Fatalf("expected errcode 0, got %s", w.Body.String())
	}

	if len(store.tickets) != 1 {
		t.Fatalf("expected a single auto-ticket, got %d", len(store.tickets))
	}
	for _, ticket := range store.tickets {
		if ticket.Title != "李四的房间问题" {
			t.Fatalf("unexpected title %q", ticket.Title)
		}
		if ticket.AssignedTo == nil || *ticket.AssignedTo != "S1" {
			t.Fatalf("expected auto-assignment to S1, got %+v", ticket.AssignedTo)
		}
	}
}

func TestWebhookIgnoresDuplicateDelivery(t *testing.T) {
	store := newMemStore()
	store.autoRules = []models.AutoTicketRule{
		{ID: "A1", HotelID: "H1", TriggerType: models.TriggerTypeKeyword, Keywords: []string{"漏水"}, TicketTitleTemplate: "t", PriorityLevel: 10, IsActive: true},
	}

	_, r := newTestHandler(store)
	payload := map[string]any{
		"msgtype":   "text",
		"msgid":     "wx-dup",
		"agentid":   "H1",
		"content":   "漏水",
		"from_user": map[string]any{"userid": "guest-1"},
	}

	for i := 0; i < 2; i++ {
		w := postJSON(t, r, "/api/webhook/wechat", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}

	if len(store.tickets) != 1 {
		t.Fatalf("duplicate delivery must not create a second ticket, got %d", len(store.tickets))
	}
}

func TestRuleTestEndpoint(t *testing.T) {
	store := newMemStore()
	store.staff = []models.Staff{{ID: "S1", HotelID: "H1", Name: "王五", Status: models.StaffStatusActive, IsAvailable: true}}
	store.rules = []models.RoutingRule{
		{ID: "R1", HotelID: "H1", Name: "投诉规则", RuleType: models.RuleTypeKeyword, Keywords: []string{"投诉"}, TargetStaffIDs: []string{"S1"}, PriorityLevel: 10, IsActive: true},
	}

	_, r := newTestHandler(store)

	w := postJSON(t, r, "/api/rules/test", map[string]any{"hotel_id": "H1", "message_content": "我要投诉"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result service.RuleTestResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.MatchedRule.ID != "R1" {
		t.Fatalf("expected R1 matched, got %+v", result.MatchedRule)
	}
	if len(result.AssignedStaff) != 1 || result.AssignedStaff[0].ID != "S1" {
		t.Fatalf("expected S1 preview, got %+v", result.AssignedStaff)
	}
}

func TestRuleTestEndpointValidation(t *testing.T) {
	store := newMemStore()
	_, r := newTestHandler(store)

	w := postJSON(t, r, "/api/rules/test", map[string]any{"message_content": "缺少hotel_id"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "VALIDATION_ERROR") {
		t.Fatalf("expected validation error code, got %s", w.Body.String())
	}
}

func TestAutoAssignEndpointNotFound(t *testing.T) {
	store := newMemStore()
	_, r := newTestHandler(store)

	w := postJSON(t, r, "/api/tickets/missing/auto-assign", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAutoAssignEndpoint(t *testing.T) {
	store := newMemStore()
	store.staff = []models.Staff{{ID: "S1", HotelID: "H1", Status: models.StaffStatusActive, IsAvailable: true}}
	store.rules = []models.RoutingRule{
		{ID: "R1", HotelID: "H1", RuleType: models.RuleTypeKeyword, Keywords: []string{"漏水"}, TargetStaffIDs: []string{"S1"}, PriorityLevel: 10, IsActive: true},
	}
	store.tickets["T1"] = &models.Ticket{ID: "T1", HotelID: "H1", Title: "房间漏水", Status: models.TicketStatusPending}

	_, r := newTestHandler(store)
	w := postJSON(t, r, "/api/tickets/T1/auto-assign", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.tickets["T1"].AssignedTo == nil || *store.tickets["T1"].AssignedTo != "S1" {
		t.Fatalf("expected T1 assigned to S1")
	}
	if !strings.Contains(w.Body.String(), `"assigned":true`) {
		t.Fatalf("expected assigned true, got %s", w.Body.String())
	}
}
