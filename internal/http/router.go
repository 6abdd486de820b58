package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/guestdesk/backend/internal/config"
	"github.com/guestdesk/backend/internal/http/handlers"
	"github.com/guestdesk/backend/internal/http/middleware"
	"github.com/guestdesk/backend/internal/service"
	"github.com/guestdesk/backend/internal/wechat"

	_ "github.com/guestdesk/backend/docs"
)

func Router(cfg config.Config, store handlers.Store, wechatClient wechat.Client, logger zerolog.Logger) *gin.Engine {
	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	routing := &service.RoutingService{
		Store:                 store,
		Logger:                logger,
		FallbackOnUnavailable: cfg.FallbackOnUnavailable,
	}
	autoTicket := &service.AutoTicketService{Store: store, Routing: routing, Logger: logger}
	ruleTest := &service.RuleTestService{Store: store, Routing: routing}

	h := &handlers.Handler{
		Store:      store,
		Routing:    routing,
		AutoTicket: autoTicket,
		RuleTest:   ruleTest,
		WeChat:     wechatClient,
		Validator:  validator.New(),
		Logger:     logger,
	}

	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	{
		api.POST("/webhook/wechat", h.WeChatWebhook)
		api.GET("/tickets", h.TicketsList)
		api.GET("/tickets/:id", h.TicketDetails)
		api.GET("/rules/summary", h.RuleSummaries)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.POST("/tickets", h.CreateTicket)
		admin.POST("/tickets/:id/auto-assign", h.AutoAssignTicket)
		admin.POST("/rules/test", h.TestRule)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
