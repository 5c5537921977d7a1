package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/app"
	"github.com/huddle-p2p/huddle/internal/domain"
)

type Handlers struct {
	Service    *app.Service
	ICEServers []domain.ICEServer
}

type JoinRequest struct {
	RoomID      string `json:"roomId" binding:"required"`
	PeerID      string `json:"peerId" binding:"required"`
	DisplayName string `json:"displayName"`
}

type LeaveRequest struct {
	RoomID string `json:"roomId" binding:"required"`
	PeerID string `json:"peerId" binding:"required"`
}

type RelayDescriptionRequest struct {
	RoomID      string                    `json:"roomId" binding:"required"`
	To          string                    `json:"to" binding:"required"`
	From        string                    `json:"from" binding:"required"`
	Description domain.SessionDescription `json:"description" binding:"required"`
}

type RelayCandidateRequest struct {
	RoomID    string           `json:"roomId" binding:"required"`
	To        string           `json:"to" binding:"required"`
	From      string           `json:"from" binding:"required"`
	Candidate domain.Candidate `json:"candidate" binding:"required"`
}

type DrainRequest struct {
	RoomID  string `json:"roomId" binding:"required"`
	ForPeer string `json:"forPeerId" binding:"required"`
}

type DrainResponse struct {
	Messages []domain.Message `json:"messages"`
}

type ICEServersResponse struct {
	ICEServers []domain.ICEServer `json:"iceServers"`
}

func (h *Handlers) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	peer, err := domain.NewPeer(domain.PeerID(req.PeerID), req.DisplayName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := h.Service.Join(domain.RoomID(req.RoomID), peer)
	log.Info().Str("module", "adapters.http").Str("room", req.RoomID).Str("peer", req.PeerID).Str("role", string(res.Role)).Msg("join")
	c.JSON(http.StatusOK, res)
}

func (h *Handlers) Leave(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.Service.Leave(domain.RoomID(req.RoomID), domain.PeerID(req.PeerID))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handlers) Describe(c *gin.Context) {
	snap, err := h.Service.Describe(domain.RoomID(c.Param("room")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handlers) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.Service.List()})
}

func (h *Handlers) RelayOffer(c *gin.Context) {
	h.relayDescription(c, domain.KindOffer)
}

func (h *Handlers) RelayAnswer(c *gin.Context) {
	h.relayDescription(c, domain.KindAnswer)
}

func (h *Handlers) relayDescription(c *gin.Context, kind domain.MessageKind) {
	var req RelayDescriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := domain.NewOffer(domain.PeerID(req.From), req.Description)
	if kind == domain.KindAnswer {
		msg = domain.NewAnswer(domain.PeerID(req.From), req.Description)
	}
	h.Service.Relay(domain.RoomID(req.RoomID), domain.PeerID(req.To), msg)
	c.JSON(http.StatusOK, gin.H{"queued": true})
}

func (h *Handlers) RelayCandidate(c *gin.Context) {
	var req RelayCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg := domain.NewCandidate(domain.PeerID(req.From), req.Candidate)
	h.Service.Relay(domain.RoomID(req.RoomID), domain.PeerID(req.To), msg)
	c.JSON(http.StatusOK, gin.H{"queued": true})
}

func (h *Handlers) Drain(c *gin.Context) {
	var req DrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msgs := h.Service.Drain(domain.RoomID(req.RoomID), domain.PeerID(req.ForPeer))
	if msgs == nil {
		msgs = []domain.Message{}
	}
	c.JSON(http.StatusOK, DrainResponse{Messages: msgs})
}

// ICEPaths is the read-only path-discovery endpoint: the list of
// relay-capable network paths used to build the fallback strategy.
func (h *Handlers) ICEPaths(c *gin.Context) {
	c.JSON(http.StatusOK, ICEServersResponse{ICEServers: h.ICEServers})
}
