// Package rtc implements core.Transport on top of pion/webrtc.
package rtc

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

// Connection wraps a single *webrtc.PeerConnection behind the narrow
// surface the negotiation state machine drives. Candidates trickle out
// through OnLocalCandidate as they are gathered; nothing waits for
// gathering to complete.
type Connection struct {
	pc      *webrtc.PeerConnection
	onCand  func(domain.Candidate)
	onState func(core.TransportState)
}

func webrtcConfig(servers []domain.ICEServer, relayOnly bool) webrtc.Configuration {
	cfg := webrtc.Configuration{}
	if relayOnly {
		servers = domain.RelayOnly(servers)
		cfg.ICETransportPolicy = webrtc.ICETransportPolicyRelay
	}
	for _, s := range servers {
		cfg.ICEServers = append(cfg.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return cfg
}

// NewFactory returns a TransportFactory over the given path set. With
// relayOnly the connection is restricted to TURN paths only.
func NewFactory(servers []domain.ICEServer) core.TransportFactory {
	return func(relayOnly bool) (core.Transport, error) {
		if relayOnly && len(domain.RelayOnly(servers)) == 0 {
			return nil, fmt.Errorf("no relay-capable ice servers configured")
		}
		pc, err := webrtc.NewPeerConnection(webrtcConfig(servers, relayOnly))
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}
		c := &Connection{pc: pc}
		c.wire()
		return c, nil
	}
}

func (c *Connection) wire() {
	c.pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onCand != nil {
			init := cand.ToJSON()
			c.onCand(domain.Candidate{
				Candidate:     init.Candidate,
				SDPMid:        init.SDPMid,
				SDPMLineIndex: init.SDPMLineIndex,
			})
		}
	})

	c.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("peer_connection_state", s.String()).Msg("peer state")
		if c.onState == nil {
			return
		}
		switch s {
		case webrtc.PeerConnectionStateConnecting:
			c.onState(core.TransportConnecting)
		case webrtc.PeerConnectionStateConnected:
			c.onState(core.TransportConnected)
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateDisconnected:
			c.onState(core.TransportFailed)
		case webrtc.PeerConnectionStateClosed:
			c.onState(core.TransportClosed)
		}
	})
}

func (c *Connection) OnLocalCandidate(fn func(domain.Candidate)) { c.onCand = fn }

func (c *Connection) OnStateChange(fn func(core.TransportState)) { c.onState = fn }

// CreateOffer builds and applies the local offer. A control data channel
// is opened first so the offer carries at least one media line even
// before tracks are attached.
func (c *Connection) CreateOffer(ctx context.Context) (domain.SessionDescription, error) {
	if _, err := c.pc.CreateDataChannel("control", nil); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create data channel: %w", err)
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create offer: %w", err)
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return fromPion(offer), nil
}

func (c *Connection) CreateAnswer(ctx context.Context) (domain.SessionDescription, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return domain.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return domain.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	return fromPion(answer), nil
}

func (c *Connection) SetRemoteDescription(desc domain.SessionDescription) error {
	sdpType := webrtc.NewSDPType(desc.Type)
	return c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: sdpType, SDP: desc.SDP})
}

func (c *Connection) AddRemoteCandidate(cand domain.Candidate) error {
	return c.pc.AddICECandidate(webrtc.ICECandidateInit{
		Candidate:     cand.Candidate,
		SDPMid:        cand.SDPMid,
		SDPMLineIndex: cand.SDPMLineIndex,
	})
}

func (c *Connection) Close() error {
	if err := c.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
		return err
	}
	return nil
}

func fromPion(d webrtc.SessionDescription) domain.SessionDescription {
	return domain.SessionDescription{Type: d.Type.String(), SDP: d.SDP}
}
