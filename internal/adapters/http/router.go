package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Spotlight/internal/adapters/signal"
	"github.com/dkeye/Spotlight/internal/app/orch"
	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/dkeye/Spotlight/internal/config"
	"github.com/dkeye/Spotlight/internal/core"
	"github.com/dkeye/Spotlight/internal/domain"
	"github.com/dkeye/Spotlight/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	sessionName    = "SpotlightSessions"
	clientTokenKey = "client_token"
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

// ClientTokenMiddleware gives every browser a stable token kept in the
// signed session cookie; the token doubles as participant identity.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get("ct").(string)
		if token == "" {
			token = genClientToken()
			session.Set("ct", token)
			if err := session.Save(); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
			}
		}
		c.Set(clientTokenKey, token)
		c.Next()
	}
}

type Deps struct {
	Orch    *orch.Orchestrator
	Signal  *signal.SignalWSController
	Metrics *metrics.Metrics
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if deps.Metrics != nil {
		r.Use(metrics.GinMiddleware(deps.Metrics))
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler(func() {
			deps.Metrics.SetActiveRooms(len(deps.Orch.Rooms.List()))
		})))
	}
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: deps.Orch}
	api := r.Group("/api")
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:name", h.getRoom)
	api.DELETE("/rooms/:name", h.deleteRoom)
	api.GET("/me", h.me)
	api.GET("/stage", h.stage)

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString(clientTokenKey)).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}

type handlers struct {
	orch *orch.Orchestrator
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) getRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	room, ok := h.orch.Rooms.GetRoom(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":         room.Room().Name,
		"member_count": room.MemberCount(),
		"members":      room.MembersSnapshot(),
	})
}

func (h *handlers) deleteRoom(c *gin.Context) {
	name := domain.RoomName(c.Param("name"))
	if _, ok := h.orch.Rooms.GetRoom(name); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	h.orch.EvictRoom(name)
	c.Status(http.StatusNoContent)
}

func (h *handlers) me(c *gin.Context) {
	sid := core.SessionID(c.GetString(clientTokenKey))
	p := h.orch.Registry.GetOrCreateParticipant(sid)
	resp := gin.H{"id": p.ID, "name": p.Name}
	if room, _, ok := h.orch.Registry.RoomOf(sid); ok {
		resp["room"] = room
	}
	c.JSON(http.StatusOK, resp)
}

// stage returns the stage snapshot of the caller's own viewer session.
func (h *handlers) stage(c *gin.Context) {
	sid := core.SessionID(c.GetString(clientTokenKey))
	snap, err := h.orch.Snapshot(c.Request.Context(), sid)
	switch {
	case errors.Is(err, orch.ErrNotInRoom):
		c.JSON(http.StatusNotFound, gin.H{"error": "not in a room"})
		return
	case errors.Is(err, spotlight.ErrLoopStopped):
		c.JSON(http.StatusGone, gin.H{"error": "stage stopped"})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}
