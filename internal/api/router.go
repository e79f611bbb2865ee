package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/larrykluger/push-notifications-docusign/config"
	"github.com/larrykluger/push-notifications-docusign/internal/identity"
	"github.com/larrykluger/push-notifications-docusign/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, handler *Handler, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(log), mw.Recovery(log))

	idCookie := cfg.Identity.IDCookie
	if idCookie == "" {
		idCookie = identity.DefaultIDCookie
	}
	rateLimiter := mw.RateLimiter(
		rate.Limit(cfg.Server.RateLimitPerSec),
		cfg.Server.RateLimitBurst,
		mw.ClientIP(cfg.Server.RequestIPHeader),
		mw.Cookie(idCookie),
	)

	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	caching := mw.Cache(cache.New(ttl, 2*ttl), ttl)

	r.GET("/healthz", handler.Healthz)

	api := r.Group("/api")
	api.Use(rateLimiter, mw.Timeout(cfg.Server.RequestTimeout()))
	{
		api.GET("/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		api.GET("", handler.Dispatch)
		api.POST("", handler.Dispatch)
		api.GET("/:op", handler.Dispatch)
		api.POST("/:op", handler.Dispatch)
	}

	return r
}
