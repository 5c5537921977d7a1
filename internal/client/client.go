// Package client is the stateless HTTP client for the signaling API.
// Every call is an independent request/response; no persistent connection
// is required to relay negotiation messages.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Join(ctx context.Context, roomID domain.RoomID, peerID domain.PeerID, displayName string) (core.JoinResult, error) {
	var res core.JoinResult
	err := c.post(ctx, "/api/rooms/join", map[string]any{
		"roomId":      roomID,
		"peerId":      peerID,
		"displayName": displayName,
	}, &res)
	return res, err
}

func (c *Client) Leave(ctx context.Context, roomID domain.RoomID, peerID domain.PeerID) error {
	return c.post(ctx, "/api/rooms/leave", map[string]any{
		"roomId": roomID,
		"peerId": peerID,
	}, nil)
}

func (c *Client) Describe(ctx context.Context, roomID domain.RoomID) (core.RoomSnapshot, error) {
	var snap core.RoomSnapshot
	err := c.get(ctx, "/api/rooms/"+string(roomID), &snap)
	return snap, err
}

func (c *Client) SendOffer(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, desc domain.SessionDescription) error {
	return c.sendDescription(ctx, "/api/relay/offer", roomID, to, from, desc)
}

func (c *Client) SendAnswer(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, desc domain.SessionDescription) error {
	return c.sendDescription(ctx, "/api/relay/answer", roomID, to, from, desc)
}

func (c *Client) sendDescription(ctx context.Context, path string, roomID domain.RoomID, to, from domain.PeerID, desc domain.SessionDescription) error {
	return c.post(ctx, path, map[string]any{
		"roomId":      roomID,
		"to":          to,
		"from":        from,
		"description": desc,
	}, nil)
}

func (c *Client) SendCandidate(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, cand domain.Candidate) error {
	return c.post(ctx, "/api/relay/candidate", map[string]any{
		"roomId":    roomID,
		"to":        to,
		"from":      from,
		"candidate": cand,
	}, nil)
}

func (c *Client) Drain(ctx context.Context, roomID domain.RoomID, forPeer domain.PeerID) ([]domain.Message, error) {
	var res struct {
		Messages []domain.Message `json:"messages"`
	}
	err := c.post(ctx, "/api/relay/drain", map[string]any{
		"roomId":    roomID,
		"forPeerId": forPeer,
	}, &res)
	return res.Messages, err
}

func (c *Client) ICEServers(ctx context.Context) ([]domain.ICEServer, error) {
	var res struct {
		ICEServers []domain.ICEServer `json:"iceServers"`
	}
	err := c.get(ctx, "/api/ice-servers", &res)
	return res.ICEServers, err
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		io.Copy(io.Discard, resp.Body)
		return domain.ErrRoomNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("signaling server: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
