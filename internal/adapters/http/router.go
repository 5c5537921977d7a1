// Package http exposes the signaling core over a stateless JSON API.
// Negotiation messages are relayed by polling drain, not pushed: the
// recipient has no channel to be pushed through yet — that channel is
// exactly what is being negotiated.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/app"
	"github.com/huddle-p2p/huddle/internal/config"
)

func SetupRouter(cfg *config.Config, svc *app.Service, hub *EventHub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &Handlers{Service: svc, ICEServers: cfg.ICEServers}

	api := r.Group("/api")
	api.POST("/rooms/join", h.Join)
	api.POST("/rooms/leave", h.Leave)
	api.GET("/rooms", h.List)
	api.GET("/rooms/:room", h.Describe)
	api.POST("/relay/offer", h.RelayOffer)
	api.POST("/relay/answer", h.RelayAnswer)
	api.POST("/relay/candidate", h.RelayCandidate)
	api.POST("/relay/drain", h.Drain)
	api.GET("/ice-servers", h.ICEPaths)

	if hub != nil {
		api.GET("/rooms/:room/events", hub.HandleEvents)
	}

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
