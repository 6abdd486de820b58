package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/guestdesk/backend/internal/models"
	"github.com/guestdesk/backend/internal/service"
	"github.com/guestdesk/backend/internal/wechat"
)

// Store is everything the handlers need from persistence. *db.Store
// satisfies it; tests inject an in-memory fake.
type Store interface {
	service.Store
	Ping(ctx context.Context) error
	HasWeChatMessage(ctx context.Context, wechatMsgID string) (bool, error)
	UpsertConversation(ctx context.Context, c models.Conversation) (models.Conversation, error)
	InsertMessage(ctx context.Context, m models.Message) error
	Ticket(ctx context.Context, id string) (models.Ticket, error)
	ListTickets(ctx context.Context, hotelID, status, q string, limit, offset int) ([]models.Ticket, error)
	TicketTimeline(ctx context.Context, ticketID string) ([]models.TimelineEntry, error)
}

type Handler struct {
	Store      Store
	Routing    *service.RoutingService
	AutoTicket *service.AutoTicketService
	RuleTest   *service.RuleTestService
	WeChat     wechat.Client
	Validator  *validator.Validate
	Logger     zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type webhookPayload struct {
	MsgType string `json:"msgtype"`
	MsgID   string `json:"msgid"`
	AgentID string `json:"agentid"`
	Content string `json:"content"`
	From    struct {
		UserID string `json:"userid"`
		Name   string `json:"name"`
		Phone  string `json:"phone"`
	} `json:"from_user"`
}

// @Summary WeChat Work webhook
// @Description Receives inbound guest messages, creates conversations and auto-tickets
// @Tags webhook
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/webhook/wechat [post]
func (h *Handler) WeChatWebhook(c *gin.Context) {
	// WeChat retries on anything but errcode 0, so processing failures are
	// logged and swallowed.
	ok := gin.H{"errcode": 0, "errmsg": "ok"}

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.Logger.Warn().Err(err).Msg("malformed webhook payload")
		c.JSON(http.StatusOK, ok)
		return
	}

	if payload.MsgType != "text" || payload.From.UserID == "" {
		c.JSON(http.StatusOK, ok)
		return
	}

	ctx := c.Request.Context()

	seen, err := h.Store.HasWeChatMessage(ctx, payload.MsgID)
	if err != nil {
		h.Logger.Error().Err(err).Msg("webhook dedup check failed")
		c.JSON(http.StatusOK, ok)
		return
	}
	if seen {
		h.Logger.Info().Str("msg_id", payload.MsgID).Msg("duplicate message ignored")
		c.JSON(http.StatusOK, ok)
		return
	}

	hotelID := payload.AgentID
	if hotelID == "" {
		hotelID = "default_hotel"
	}

	conv, err := h.Store.UpsertConversation(ctx, models.Conversation{
		ID:            uuid.NewString(),
		HotelID:       hotelID,
		GuestWeChatID: payload.From.UserID,
		GuestName:     payload.From.Name,
		GuestPhone:    payload.From.Phone,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("conversation upsert failed")
		c.JSON(http.StatusOK, ok)
		return
	}

	msg := models.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		WeChatMsgID:    payload.MsgID,
		Direction:      "inbound",
		Content:        payload.Content,
	}
	if err := h.Store.InsertMessage(ctx, msg); err != nil {
		h.Logger.Error().Err(err).Msg("message insert failed")
		c.JSON(http.StatusOK, ok)
		return
	}

	// Single rule scan decides and creates; see AutoTicketService.
	rule, ruleConv, err := h.AutoTicket.EvaluateMessage(ctx, msg)
	if err != nil {
		h.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("auto-ticket evaluation failed")
		c.JSON(http.StatusOK, ok)
		return
	}
	if rule != nil {
		ticket, err := h.AutoTicket.CreateTicketFromRule(ctx, msg, ruleConv, rule)
		if err != nil {
			h.Logger.Error().Err(err).Str("message_id", msg.ID).Msg("auto-ticket creation failed")
			c.JSON(http.StatusOK, ok)
			return
		}
		if h.WeChat != nil {
			reply := "已收到您的反馈，工单号 " + ticket.ID
			if err := h.WeChat.SendText(ctx, payload.From.UserID, reply); err != nil {
				h.Logger.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("confirmation send failed")
			}
		}
	}

	c.JSON(http.StatusOK, ok)
}

type createTicketRequest struct {
	HotelID        string `json:"hotel_id" validate:"required"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title" validate:"required,max=200"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Priority       string `json:"priority"`
	AutoAssign     bool   `json:"auto_assign"`
}

// @Summary Create ticket
// @Tags tickets
// @Accept json
// @Produce json
// @Success 201 {object} models.Ticket
// @Failure 400 {object} map[string]any
// @Router /api/tickets [post]
func (h *Handler) CreateTicket(c *gin.Context) {
	var req createTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", err.Error())
		return
	}

	if req.Category == "" {
		req.Category = "other"
	}
	if req.Priority == "" {
		req.Priority = "P3"
	}

	ticket := models.Ticket{
		ID:             service.NewTicketID(),
		HotelID:        req.HotelID,
		ConversationID: req.ConversationID,
		Title:          req.Title,
		Description:    req.Description,
		Category:       req.Category,
		Priority:       req.Priority,
		Status:         models.TicketStatusPending,
	}

	ctx := c.Request.Context()
	if err := h.Store.CreateTicket(ctx, ticket); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to create ticket", err.Error())
		return
	}

	if err := h.Store.CreateTimelineEntry(ctx, models.TimelineEntry{
		ID:        uuid.NewString(),
		TicketID:  ticket.ID,
		EventType: "created",
		NewValue:  ticket.Title,
	}); err != nil {
		h.Logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("timeline entry failed")
	}

	if req.AutoAssign {
		if _, err := h.Routing.AutoAssignTicket(ctx, &ticket); err != nil {
			h.Logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("auto-assign on create failed")
		}
	}

	c.JSON(http.StatusCreated, ticket)
}

// @Summary List tickets
// @Tags tickets
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets [get]
func (h *Handler) TicketsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	tickets, err := h.Store.ListTickets(
		c.Request.Context(),
		c.Query("hotel_id"),
		c.Query("status"),
		c.Query("q"),
		limit,
		offset,
	)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list tickets", err.Error())
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"items": tickets, "limit": limit, "offset": offset})
}

// @Summary Ticket details with timeline
// @Tags tickets
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id} [get]
func (h *Handler) TicketDetails(c *gin.Context) {
	ctx := c.Request.Context()
	ticket, err := h.Store.Ticket(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket", err.Error())
		return
	}

	timeline, err := h.Store.TicketTimeline(ctx, ticket.ID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load timeline", err.Error())
		return
	}
	if timeline == nil {
		timeline = []models.TimelineEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"ticket": ticket, "timeline": timeline})
}

// @Summary Trigger auto-assignment for a ticket
// @Tags tickets
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/tickets/{id}/auto-assign [post]
func (h *Handler) AutoAssignTicket(c *gin.Context) {
	ctx := c.Request.Context()
	ticket, err := h.Store.Ticket(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Ticket not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load ticket", err.Error())
		return
	}

	assigned, err := h.Routing.AutoAssignTicket(ctx, &ticket)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Auto-assignment failed", err.Error())
		return
	}
	if assigned {
		if err := h.Store.CreateTimelineEntry(ctx, models.TimelineEntry{
			ID:        uuid.NewString(),
			TicketID:  ticket.ID,
			EventType: "assigned",
			NewValue:  *ticket.AssignedTo,
			Comment:   "Auto-assigned based on routing rules",
		}); err != nil {
			h.Logger.Error().Err(err).Str("ticket_id", ticket.ID).Msg("timeline entry failed")
		}
	}

	c.JSON(http.StatusOK, gin.H{"assigned": assigned, "ticket": ticket})
}

type ruleTestRequest struct {
	HotelID        string `json:"hotel_id" validate:"required"`
	MessageContent string `json:"message_content" validate:"required"`
	Category       string `json:"category"`
	Priority       string `json:"priority"`
}

// @Summary Preview routing for a hypothetical message
// @Tags rules
// @Accept json
// @Produce json
// @Success 200 {object} service.RuleTestResult
// @Failure 400 {object} map[string]any
// @Router /api/rules/test [post]
func (h *Handler) TestRule(c *gin.Context) {
	var req ruleTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", err.Error())
		return
	}

	result, err := h.RuleTest.TestMessage(c.Request.Context(), req.HotelID, req.MessageContent, req.Category, req.Priority)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Rule test failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Rule summaries for a hotel
// @Tags rules
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/rules/summary [get]
func (h *Handler) RuleSummaries(c *gin.Context) {
	hotelID := c.Query("hotel_id")
	if hotelID == "" {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "hotel_id is required", nil)
		return
	}

	summaries, err := h.RuleTest.Summaries(c.Request.Context(), hotelID)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load rule summaries", err.Error())
		return
	}
	if summaries == nil {
		summaries = []service.RuleSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"items": summaries})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
