package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guestdesk/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ActiveRoutingRules returns the active rules for a hotel ordered by
// priority_level descending, ties broken by insertion order.
func (s *Store) ActiveRoutingRules(ctx context.Context, hotelID string) ([]models.RoutingRule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, hotel_id, name, rule_type, keywords, category, priority, target_staff_ids, priority_level, is_active, created_at, updated_at
		FROM routing_rules
		WHERE hotel_id = $1 AND is_active = TRUE
		ORDER BY priority_level DESC, created_at ASC
	`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoutingRules(rows)
}

// RoutingRules returns every rule for a hotel, active or not, in evaluation order.
func (s *Store) RoutingRules(ctx context.Context, hotelID string) ([]models.RoutingRule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, hotel_id, name, rule_type, keywords, category, priority, target_staff_ids, priority_level, is_active, created_at, updated_at
		FROM routing_rules
		WHERE hotel_id = $1
		ORDER BY priority_level DESC, created_at ASC
	`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRoutingRules(rows)
}

func scanRoutingRules(rows pgx.Rows) ([]models.RoutingRule, error) {
	var out []models.RoutingRule
	for rows.Next() {
		var r models.RoutingRule
		if err := rows.Scan(&r.ID, &r.HotelID, &r.Name, &r.RuleType, &r.Keywords, &r.Category, &r.Priority, &r.TargetStaffIDs, &r.PriorityLevel, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ActiveAutoTicketRules(ctx context.Context, hotelID string) ([]models.AutoTicketRule, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, hotel_id, name, trigger_type, keywords, ticket_category, ticket_priority,
			ticket_title_template, COALESCE(ticket_description_template, ''), auto_assign, priority_level, is_active, created_at, updated_at
		FROM auto_ticket_rules
		WHERE hotel_id = $1 AND is_active = TRUE
		ORDER BY priority_level DESC, created_at ASC
	`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AutoTicketRule
	for rows.Next() {
		var r models.AutoTicketRule
		if err := rows.Scan(&r.ID, &r.HotelID, &r.Name, &r.TriggerType, &r.Keywords, &r.TicketCategory, &r.TicketPriority,
			&r.TicketTitleTemplate, &r.TicketDescriptionTemplate, &r.AutoAssign, &r.PriorityLevel, &r.IsActive, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// StaffByIDs returns the staff records for the given IDs in arbitrary storage
// order. Callers that care about preference order must re-order themselves.
func (s *Store) StaffByIDs(ctx context.Context, ids []string) ([]models.Staff, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, hotel_id, name, COALESCE(department, ''), status, is_available, updated_at
		FROM staff
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Staff
	for rows.Next() {
		var m models.Staff
		if err := rows.Scan(&m.ID, &m.HotelID, &m.Name, &m.Department, &m.Status, &m.IsAvailable, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Conversation returns nil without error when the conversation does not
// exist; a vanished conversation is a normal outcome for the engines.
func (s *Store) Conversation(ctx context.Context, id string) (*models.Conversation, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, hotel_id, guest_wechat_id, COALESCE(guest_name, ''), COALESCE(guest_phone, ''), last_message_at, created_at
		FROM conversations WHERE id = $1
	`, id)
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.HotelID, &c.GuestWeChatID, &c.GuestName, &c.GuestPhone, &c.LastMessageAt, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (s *Store) UpsertConversation(ctx context.Context, c models.Conversation) (models.Conversation, error) {
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO conversations (id, hotel_id, guest_wechat_id, guest_name, guest_phone, last_message_at, created_at)
		VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
		ON CONFLICT (hotel_id, guest_wechat_id) DO UPDATE SET last_message_at = NOW()
		RETURNING id, hotel_id, guest_wechat_id, COALESCE(guest_name, ''), COALESCE(guest_phone, ''), last_message_at, created_at
	`, c.ID, c.HotelID, c.GuestWeChatID, c.GuestName, c.GuestPhone)
	var out models.Conversation
	err := row.Scan(&out.ID, &out.HotelID, &out.GuestWeChatID, &out.GuestName, &out.GuestPhone, &out.LastMessageAt, &out.CreatedAt)
	return out, err
}

func (s *Store) InsertMessage(ctx context.Context, m models.Message) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, wechat_msg_id, direction, content, created_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,NOW())
	`, m.ID, m.ConversationID, m.WeChatMsgID, m.Direction, m.Content)
	return err
}

// HasWeChatMessage reports whether an inbound message with this WeChat
// message ID was already stored (webhook redelivery dedup).
func (s *Store) HasWeChatMessage(ctx context.Context, wechatMsgID string) (bool, error) {
	if wechatMsgID == "" {
		return false, nil
	}
	var exists bool
	err := s.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM messages WHERE wechat_msg_id = $1)`, wechatMsgID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateTicket(ctx context.Context, t models.Ticket) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO tickets (id, hotel_id, conversation_id, assigned_to, title, description, category, priority, status, created_at, updated_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,NOW(),NOW())
	`, t.ID, t.HotelID, t.ConversationID, t.AssignedTo, t.Title, t.Description, t.Category, t.Priority, t.Status)
	return err
}

func (s *Store) Ticket(ctx context.Context, id string) (models.Ticket, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, hotel_id, COALESCE(conversation_id, ''), assigned_to, title, COALESCE(description, ''), category, priority, status, created_at, updated_at
		FROM tickets WHERE id = $1
	`, id)
	var t models.Ticket
	err := row.Scan(&t.ID, &t.HotelID, &t.ConversationID, &t.AssignedTo, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// AssignTicket commits an assignment only if the ticket is still unassigned.
// The WHERE clause is the commit-time re-check that serializes racing
// auto-assignment attempts; zero rows affected means another writer won.
func (s *Store) AssignTicket(ctx context.Context, ticketID string, staffID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE tickets
		SET assigned_to = $1, status = $2, updated_at = NOW()
		WHERE id = $3 AND assigned_to IS NULL
	`, staffID, models.TicketStatusAssigned, ticketID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) CreateTimelineEntry(ctx context.Context, e models.TimelineEntry) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO ticket_timeline (id, ticket_id, staff_id, event_type, new_value, comment, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,NOW())
	`, e.ID, e.TicketID, e.StaffID, e.EventType, e.NewValue, e.Comment)
	return err
}

func (s *Store) TicketTimeline(ctx context.Context, ticketID string) ([]models.TimelineEntry, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, ticket_id, staff_id, event_type, COALESCE(new_value, ''), COALESCE(comment, ''), created_at
		FROM ticket_timeline WHERE ticket_id = $1 ORDER BY created_at ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TimelineEntry
	for rows.Next() {
		var e models.TimelineEntry
		if err := rows.Scan(&e.ID, &e.TicketID, &e.StaffID, &e.EventType, &e.NewValue, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListTickets(ctx context.Context, hotelID, status, q string, limit, offset int) ([]models.Ticket, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, hotel_id, COALESCE(conversation_id, ''), assigned_to, title, COALESCE(description, ''), category, priority, status, created_at, updated_at FROM tickets`
	var args []any
	var wheres []string
	if hotelID != "" {
		args = append(args, hotelID)
		wheres = append(wheres, fmt.Sprintf("hotel_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.HotelID, &t.ConversationID, &t.AssignedTo, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UnassignedTickets feeds the periodic assignment sweeper. Old tickets first
// so long-waiting guests are retried before fresh ones.
func (s *Store) UnassignedTickets(ctx context.Context, olderThan time.Duration, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, hotel_id, COALESCE(conversation_id, ''), assigned_to, title, COALESCE(description, ''), category, priority, status, created_at, updated_at
		FROM tickets
		WHERE assigned_to IS NULL AND status = $1 AND created_at < NOW() - make_interval(secs => $2)
		ORDER BY created_at ASC
		LIMIT $3
	`, models.TicketStatusPending, olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Ticket
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.HotelID, &t.ConversationID, &t.AssignedTo, &t.Title, &t.Description, &t.Category, &t.Priority, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
