package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/adapters/auth"
	"github.com/nasty-codes-software/resonance/internal/adapters/signal"
	"github.com/nasty-codes-software/resonance/internal/adapters/store"
	"github.com/nasty-codes-software/resonance/internal/app"
	"github.com/nasty-codes-software/resonance/internal/config"
)

func SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	hub *app.Hub,
	st *store.Store,
	tokens *auth.TokenService,
) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookies := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("resonance_session", cookies))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	sess := &sessionHandler{store: st, tokens: tokens}
	api.POST("/session", sess.handle)
	api.GET("/channels", channelRoster(st))

	ctrl := signal.NewWSController(cfg, hub)
	api.GET("/ws", func(c *gin.Context) {
		ctrl.HandleSocket(ctx, c)
	})

	return r
}
