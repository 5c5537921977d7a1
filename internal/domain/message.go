package domain

import "time"

// MessageKind tags the variant carried by a relayed Message.
type MessageKind string

const (
	KindOffer     MessageKind = "offer"
	KindAnswer    MessageKind = "answer"
	KindCandidate MessageKind = "candidate"
)

// SessionDescription is the negotiation payload a peer proposes or accepts.
// Opaque to the relay; only the transport adapter interprets it.
type SessionDescription struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is a single proposed network path endpoint.
type Candidate struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

// Message is one mailbox entry. Exactly one of Description or Candidate is
// set, selected by Kind, so consumers can switch exhaustively.
type Message struct {
	Kind        MessageKind         `json:"kind"`
	From        PeerID              `json:"from"`
	Description *SessionDescription `json:"description,omitempty"`
	Candidate   *Candidate          `json:"candidate,omitempty"`
	EnqueuedAt  time.Time           `json:"enqueuedAt"`
}

func NewOffer(from PeerID, desc SessionDescription) Message {
	return Message{Kind: KindOffer, From: from, Description: &desc, EnqueuedAt: time.Now()}
}

func NewAnswer(from PeerID, desc SessionDescription) Message {
	return Message{Kind: KindAnswer, From: from, Description: &desc, EnqueuedAt: time.Now()}
}

func NewCandidate(from PeerID, cand Candidate) Message {
	return Message{Kind: KindCandidate, From: from, Candidate: &cand, EnqueuedAt: time.Now()}
}
