package models

import "time"

type RuleType string

const (
	RuleTypeKeyword    RuleType = "keyword"
	RuleTypeCategory   RuleType = "category"
	RuleTypePriority   RuleType = "priority"
	RuleTypeRoundRobin RuleType = "round_robin"
	RuleTypeManual     RuleType = "manual"
)

type TriggerType string

const (
	TriggerTypeKeyword     TriggerType = "keyword"
	TriggerTypeCategory    TriggerType = "category"
	TriggerTypeUnresponded TriggerType = "unresponded"
	TriggerTypeTimeBased   TriggerType = "time_based"
)

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
	TicketStatusReopened   TicketStatus = "reopened"
)

type StaffStatus string

const (
	StaffStatusActive   StaffStatus = "active"
	StaffStatusInactive StaffStatus = "inactive"
	StaffStatusOnLeave  StaffStatus = "on_leave"
)

// RoutingRule maps ticket or message attributes to an ordered list of
// candidate staff. TargetStaffIDs order is the assignment preference order.
type RoutingRule struct {
	ID             string    `json:"id"`
	HotelID        string    `json:"hotel_id"`
	Name           string    `json:"name"`
	RuleType       RuleType  `json:"rule_type"`
	Keywords       []string  `json:"keywords"`
	Category       string    `json:"category"`
	Priority       string    `json:"priority"`
	TargetStaffIDs []string  `json:"target_staff_ids"`
	PriorityLevel  int       `json:"priority_level"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AutoTicketRule converts a matching inbound guest message into a new ticket.
type AutoTicketRule struct {
	ID                        string      `json:"id"`
	HotelID                   string      `json:"hotel_id"`
	Name                      string      `json:"name"`
	TriggerType               TriggerType `json:"trigger_type"`
	Keywords                  []string    `json:"keywords"`
	TicketCategory            string      `json:"ticket_category"`
	TicketPriority            string      `json:"ticket_priority"`
	TicketTitleTemplate       string      `json:"ticket_title_template"`
	TicketDescriptionTemplate string      `json:"ticket_description_template"`
	AutoAssign                bool        `json:"auto_assign"`
	PriorityLevel             int         `json:"priority_level"`
	IsActive                  bool        `json:"is_active"`
	CreatedAt                 time.Time   `json:"created_at"`
	UpdatedAt                 time.Time   `json:"updated_at"`
}

type Staff struct {
	ID          string      `json:"id"`
	HotelID     string      `json:"hotel_id"`
	Name        string      `json:"name"`
	Department  string      `json:"department"`
	Status      StaffStatus `json:"status"`
	IsAvailable bool        `json:"is_available"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Assignable reports whether the staff member may receive new tickets.
func (s Staff) Assignable() bool {
	return s.Status == StaffStatusActive && s.IsAvailable
}

type Ticket struct {
	ID             string       `json:"id"`
	HotelID        string       `json:"hotel_id"`
	ConversationID string       `json:"conversation_id,omitempty"`
	AssignedTo     *string      `json:"assigned_to"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Category       string       `json:"category"`
	Priority       string       `json:"priority"`
	Status         TicketStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Conversation struct {
	ID            string    `json:"id"`
	HotelID       string    `json:"hotel_id"`
	GuestWeChatID string    `json:"guest_wechat_id"`
	GuestName     string    `json:"guest_name"`
	GuestPhone    string    `json:"guest_phone"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	WeChatMsgID    string    `json:"wechat_msg_id,omitempty"`
	Direction      string    `json:"direction"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

type TimelineEntry struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	StaffID   *string   `json:"staff_id"`
	EventType string    `json:"event_type"`
	NewValue  string    `json:"new_value"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
