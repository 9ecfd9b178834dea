// Package http exposes the REST surface: identity, meeting lifecycle, chat
// history and the notification inbox, plus the WebSocket signal endpoint.
package http

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ostrenko/confab/internal/adapters/signal"
	"github.com/ostrenko/confab/internal/auth"
	"github.com/ostrenko/confab/internal/chat"
	"github.com/ostrenko/confab/internal/config"
	"github.com/ostrenko/confab/internal/meeting"
	"github.com/ostrenko/confab/internal/store"
)

type Handlers struct {
	Cfg      *config.Config
	Meetings *meeting.Service
	Chat     *chat.Service
	Store    store.Store
	Signal   *signal.Controller

	now func() time.Time
}

func NewHandlers(cfg *config.Config, meetings *meeting.Service, chatSvc *chat.Service, st store.Store, sig *signal.Controller) *Handlers {
	return &Handlers{
		Cfg:      cfg,
		Meetings: meetings,
		Chat:     chatSvc,
		Store:    st,
		Signal:   sig,
		now:      time.Now,
	}
}

func SetupRouter(ctx context.Context, h *Handlers) *gin.Engine {
	if h.Cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if h.Cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	api := r.Group("/api")

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)

	authd := api.Group("", auth.Middleware(h.Cfg.JWTSecret))
	{
		authd.GET("/users/me", h.Me)
		authd.PUT("/users/me", h.UpdateMe)

		authd.POST("/meetings/start", h.StartMeeting)
		authd.POST("/meetings/schedule", h.ScheduleMeeting)
		authd.GET("/meetings", h.MyMeetings)
		authd.GET("/meetings/upcoming", h.UpcomingMeetings)
		authd.GET("/meetings/previous", h.PreviousMeetings)
		authd.GET("/meetings/invites", h.Invites)
		authd.GET("/meetings/:id", h.GetMeeting)
		authd.POST("/meetings/:id/join", h.JoinMeeting)
		authd.POST("/meetings/:id/respond", h.RespondInvite)
		authd.POST("/meetings/:id/end", h.EndMeeting)
		authd.DELETE("/meetings/:id", h.DeleteMeeting)
		authd.GET("/meetings/:id/messages", h.ChatHistory)

		authd.GET("/notifications", h.ListNotifications)
		authd.POST("/notifications/:id/read", h.MarkNotificationRead)

		authd.GET("/ice", h.ICEConfig)
		authd.GET("/rooms", h.ListRooms)

		authd.GET("/ws/signal", func(c *gin.Context) {
			h.Signal.HandleSignal(ctx, c)
		})
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

// ICEConfig hands connecting clients the STUN servers to seed their peer
// connections with.
func (h *Handlers) ICEConfig(c *gin.Context) {
	c.JSON(200, gin.H{"stunServers": h.Cfg.STUNServers})
}

// ListRooms reports the live rooms and their member counts.
func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(200, gin.H{"rooms": h.Signal.Orch.Rooms.List()})
}
