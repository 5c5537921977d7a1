package negotiate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/huddle-p2p/huddle/internal/core"
	"github.com/huddle-p2p/huddle/internal/domain"
)

// Signaler is what the session needs from the relay: stateless calls, no
// persistent connection. Satisfied by client.Client.
type Signaler interface {
	Join(ctx context.Context, roomID domain.RoomID, peerID domain.PeerID, displayName string) (core.JoinResult, error)
	Leave(ctx context.Context, roomID domain.RoomID, peerID domain.PeerID) error
	Describe(ctx context.Context, roomID domain.RoomID) (core.RoomSnapshot, error)
	SendOffer(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, desc domain.SessionDescription) error
	SendAnswer(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, desc domain.SessionDescription) error
	SendCandidate(ctx context.Context, roomID domain.RoomID, to, from domain.PeerID, cand domain.Candidate) error
	Drain(ctx context.Context, roomID domain.RoomID, forPeer domain.PeerID) ([]domain.Message, error)
}

type Config struct {
	RoomID      domain.RoomID
	PeerID      domain.PeerID
	DisplayName string

	Signaler     Signaler
	NewTransport core.TransportFactory

	// PollInterval is the mailbox drain period.
	PollInterval time.Duration
	// ConnectTimeout bounds the wait for negotiation progress once the
	// exchange has started: an offer for the responder, then a working
	// path for both sides.
	ConnectTimeout time.Duration
	// ResponderWait bounds how long an initiator waits for any responder
	// to appear in the room.
	ResponderWait time.Duration

	// Notify optionally hints that directory state changed and a poll is
	// worth doing now (wired to the room event feed). Purely an
	// accelerator; polling alone is sufficient.
	Notify <-chan struct{}
}

const (
	defaultPollInterval   = 500 * time.Millisecond
	defaultConnectTimeout = 10 * time.Second
	defaultResponderWait  = 30 * time.Second
)

// inputs merged into the session's single processing queue.
type input interface{ isInput() }

type messageInput struct{ msg domain.Message }

type localCandidateInput struct {
	gen  int
	cand domain.Candidate
}

type transportStateInput struct {
	gen   int
	state core.TransportState
}

func (messageInput) isInput()        {}
func (localCandidateInput) isInput() {}
func (transportStateInput) isInput() {}

// errLeave signals an orderly leave through internal call chains; Run
// translates it to a nil return.
var errLeave = errors.New("session left")

type failKind int

const (
	failTimeout failKind = iota
	failPath
	failDescription
)

// Session is one participant's negotiation state machine. All state is
// owned by the single goroutine inside Run: polled relay messages and
// transport events are merged into one input queue and processed in
// order, never concurrently.
type Session struct {
	cfg Config

	mu       sync.Mutex
	phase    Phase
	strategy Strategy

	role domain.Role
	peer domain.PeerID // negotiation peer for the candidate exchange

	transport core.Transport
	gen       int // transport generation; stale events are discarded
	escalated bool

	inputs    chan input
	leaveC    chan struct{}
	leaveOnce sync.Once
	connected chan struct{}
	connOnce  sync.Once

	deadline *time.Timer
}

func New(cfg Config) (*Session, error) {
	if cfg.Signaler == nil || cfg.NewTransport == nil {
		return nil, errors.New("negotiate: signaler and transport factory are required")
	}
	if cfg.RoomID == "" || cfg.PeerID == "" {
		return nil, errors.New("negotiate: room and peer identifiers are required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ResponderWait <= 0 {
		cfg.ResponderWait = defaultResponderWait
	}
	return &Session{
		cfg:       cfg,
		phase:     PhaseIdle,
		inputs:    make(chan input, 64),
		leaveC:    make(chan struct{}),
		connected: make(chan struct{}),
	}, nil
}

// Phase is a snapshot for observers; only Run's goroutine mutates it.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Strategy() Strategy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strategy
}

// Connected is closed the first time the session reaches Connected.
func (s *Session) Connected() <-chan struct{} { return s.connected }

// Leave requests an orderly exit: the session leaves the room, discards
// the transport, and Run returns nil. Safe to call from any goroutine.
func (s *Session) Leave() {
	s.leaveOnce.Do(func() { close(s.leaveC) })
}

// Run executes the session to completion: nil on leave or ctx
// cancellation, *FailureError on a terminal negotiation failure.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.closeTransport()

	res, err := s.cfg.Signaler.Join(ctx, s.cfg.RoomID, s.cfg.PeerID, s.cfg.DisplayName)
	if err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	s.setRole(res.Role)
	s.setPhase(PhaseRoleAssigned)
	defer s.leaveRoom()

	if s.role == domain.RoleInitiator {
		// Offering is deferred until a responder is in the room.
		peer, err := s.waitForResponder(ctx, res)
		if errors.Is(err, errLeave) {
			return nil
		}
		if err != nil {
			return err
		}
		s.peer = peer
		if err := s.sendOffer(ctx); err != nil {
			s.setPhase(PhaseFailed)
			return err
		}
	} else {
		// Candidates flow to the authoritative initiator returned by
		// join, even if this peer lost the initiator race.
		s.peer = res.Initiator.ID
		s.setPhase(PhaseAwaitingOffer)
		s.armDeadline(s.cfg.ConnectTimeout)
	}

	go s.pollLoop(ctx)
	return s.loop(ctx)
}

// waitForResponder polls the directory (nudged by Notify, when wired)
// until a responder joins, bounded by ResponderWait.
func (s *Session) waitForResponder(ctx context.Context, joined core.JoinResult) (domain.PeerID, error) {
	if len(joined.Responders) > 0 {
		return joined.Responders[0].ID, nil
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(s.cfg.ResponderWait)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.leaveC:
			s.setPhase(PhaseIdle)
			return "", errLeave
		case <-deadline.C:
			s.setPhase(PhaseFailed)
			return "", &FailureError{Reason: ReasonNoResponse}
		case <-s.cfg.Notify:
		case <-ticker.C:
		}

		snap, err := s.cfg.Signaler.Describe(ctx, s.cfg.RoomID)
		if err != nil {
			log.Debug().Err(err).Str("module", "negotiate").Msg("describe failed, will retry")
			continue
		}
		if len(snap.Responders) > 0 {
			return snap.Responders[0].ID, nil
		}
	}
}

// pollLoop drains the mailbox on a fixed interval and feeds messages into
// the processing queue. It blocks only on its own timer; a transient
// drain failure is tolerated and retried on the next tick.
func (s *Session) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.leaveC:
			return
		case <-s.cfg.Notify:
		case <-ticker.C:
		}

		msgs, err := s.cfg.Signaler.Drain(ctx, s.cfg.RoomID, s.cfg.PeerID)
		if err != nil {
			log.Debug().Err(err).Str("module", "negotiate").Msg("drain failed, will retry")
			continue
		}
		for _, m := range msgs {
			s.deliver(ctx, messageInput{msg: m})
		}
	}
}

func (s *Session) loop(ctx context.Context) error {
	defer s.stopDeadline()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.leaveC:
			return s.exitLeave()
		case <-s.deadlineC():
			if err := s.onFailure(ctx, failTimeout); err != nil {
				return err
			}
		case in := <-s.inputs:
			switch v := in.(type) {
			case messageInput:
				if err := s.handleMessage(ctx, v.msg); err != nil {
					return err
				}
			case localCandidateInput:
				if v.gen != s.gen {
					continue // candidate from a discarded transport
				}
				if err := s.cfg.Signaler.SendCandidate(ctx, s.cfg.RoomID, s.peer, s.cfg.PeerID, v.cand); err != nil {
					log.Warn().Err(err).Str("module", "negotiate").Msg("forward candidate failed")
				}
			case transportStateInput:
				if v.gen != s.gen {
					continue
				}
				if err := s.handleTransportState(ctx, v.state); err != nil {
					return err
				}
			}
		}
	}
}

func (s *Session) handleMessage(ctx context.Context, msg domain.Message) error {
	switch msg.Kind {
	case domain.KindOffer:
		if s.role != domain.RoleResponder || msg.Description == nil {
			log.Warn().Str("module", "negotiate").Str("from", string(msg.From)).Msg("unexpected offer, ignoring")
			return nil
		}
		return s.answerOffer(ctx, msg)

	case domain.KindAnswer:
		if s.role != domain.RoleInitiator || msg.Description == nil || s.transport == nil {
			log.Warn().Str("module", "negotiate").Str("from", string(msg.From)).Msg("unexpected answer, ignoring")
			return nil
		}
		if err := s.transport.SetRemoteDescription(*msg.Description); err != nil {
			log.Warn().Err(err).Str("module", "negotiate").Msg("answer rejected")
			return s.onFailure(ctx, failDescription)
		}
		s.setPhase(PhaseConnecting)
		s.armDeadline(s.cfg.ConnectTimeout)
		return nil

	case domain.KindCandidate:
		// Best effort, and still applied after Connected: some
		// transports require trickle past initial connection.
		if s.transport == nil || msg.Candidate == nil {
			return nil
		}
		if err := s.transport.AddRemoteCandidate(*msg.Candidate); err != nil {
			log.Warn().Err(err).Str("module", "negotiate").Msg("apply candidate failed, ignoring")
		}
		return nil

	default:
		log.Warn().Str("module", "negotiate").Str("kind", string(msg.Kind)).Msg("unknown message kind")
		return nil
	}
}

// answerOffer handles both the first offer and a re-offer sent by an
// initiator that escalated to relay-only.
func (s *Session) answerOffer(ctx context.Context, msg domain.Message) error {
	s.peer = msg.From
	s.setPhase(PhaseAnswering)

	if s.transport == nil {
		if err := s.buildTransport(ctx); err != nil {
			s.setPhase(PhaseFailed)
			return &FailureError{Reason: ReasonPathFailed}
		}
	}
	if err := s.transport.SetRemoteDescription(*msg.Description); err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Msg("offer rejected")
		return s.onFailure(ctx, failDescription)
	}
	answer, err := s.transport.CreateAnswer(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Msg("create answer failed")
		return s.onFailure(ctx, failDescription)
	}
	if err := s.cfg.Signaler.SendAnswer(ctx, s.cfg.RoomID, s.peer, s.cfg.PeerID, answer); err != nil {
		return fmt.Errorf("send answer: %w", err)
	}
	s.setPhase(PhaseConnecting)
	s.armDeadline(s.cfg.ConnectTimeout)
	return nil
}

func (s *Session) handleTransportState(ctx context.Context, state core.TransportState) error {
	switch state {
	case core.TransportConnected:
		s.setPhase(PhaseConnected)
		s.stopDeadline()
		s.connOnce.Do(func() { close(s.connected) })
		return nil
	case core.TransportFailed:
		return s.onFailure(ctx, failPath)
	default:
		return nil
	}
}

// sendOffer builds a transport for the current strategy and starts (or
// replays) the offer exchange. Initiator only.
func (s *Session) sendOffer(ctx context.Context) error {
	s.setPhase(PhaseOffering)
	if err := s.buildTransport(ctx); err != nil {
		return &FailureError{Reason: ReasonPathFailed}
	}
	offer, err := s.transport.CreateOffer(ctx)
	if err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Msg("create offer failed")
		return &FailureError{Reason: ReasonPathFailed}
	}
	if err := s.cfg.Signaler.SendOffer(ctx, s.cfg.RoomID, s.peer, s.cfg.PeerID, offer); err != nil {
		return fmt.Errorf("send offer: %w", err)
	}
	s.setPhase(PhaseAwaitingAnswer)
	s.armDeadline(s.cfg.ConnectTimeout)
	return nil
}

// onFailure applies the escalation policy: the first failure rebuilds the
// transport restricted to relay paths and replays the exchange; a second
// failure is terminal.
func (s *Session) onFailure(ctx context.Context, kind failKind) error {
	if s.escalated {
		s.setPhase(PhaseFailed)
		return &FailureError{Reason: terminalReason(kind)}
	}
	s.escalated = true
	s.setStrategy(StrategyRelayOnly)
	log.Warn().Str("module", "negotiate").Str("room", string(s.cfg.RoomID)).Msg("path failed, escalating to relay-only")

	if s.role == domain.RoleInitiator {
		if err := s.sendOffer(ctx); err != nil {
			s.setPhase(PhaseFailed)
			return err
		}
		return nil
	}

	// Responder: a fresh relay-only transport cannot reuse the old
	// offer's path credentials, so wait for the initiator's re-offer.
	if err := s.buildTransport(ctx); err != nil {
		s.setPhase(PhaseFailed)
		return &FailureError{Reason: ReasonPathFailed}
	}
	s.setPhase(PhaseAwaitingOffer)
	s.armDeadline(s.cfg.ConnectTimeout)
	return nil
}

func terminalReason(kind failKind) Reason {
	switch kind {
	case failTimeout:
		return ReasonNoResponse
	case failDescription:
		return ReasonPathFailed
	default:
		return ReasonRelayExhausted
	}
}

// buildTransport replaces the session's transport with a fresh one for
// the current strategy. Events from the replaced transport are discarded
// by generation check.
func (s *Session) buildTransport(ctx context.Context) error {
	s.closeTransport()
	t, err := s.cfg.NewTransport(s.Strategy() == StrategyRelayOnly)
	if err != nil {
		log.Error().Err(err).Str("module", "negotiate").Msg("build transport failed")
		return err
	}
	s.gen++
	gen := s.gen
	t.OnLocalCandidate(func(c domain.Candidate) {
		s.deliver(ctx, localCandidateInput{gen: gen, cand: c})
	})
	t.OnStateChange(func(st core.TransportState) {
		s.deliver(ctx, transportStateInput{gen: gen, state: st})
	})
	s.transport = t
	return nil
}

func (s *Session) deliver(ctx context.Context, in input) {
	select {
	case s.inputs <- in:
	case <-ctx.Done():
	case <-s.leaveC:
	}
}

func (s *Session) exitLeave() error {
	s.setPhase(PhaseIdle)
	return nil
}

// leaveRoom tells the directory we are gone. Runs on every exit path; a
// fresh context because the run context may already be canceled.
func (s *Session) leaveRoom() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.cfg.Signaler.Leave(ctx, s.cfg.RoomID, s.cfg.PeerID); err != nil {
		log.Warn().Err(err).Str("module", "negotiate").Str("room", string(s.cfg.RoomID)).Msg("leave failed")
	}
}

func (s *Session) closeTransport() {
	if s.transport != nil {
		_ = s.transport.Close()
		s.transport = nil
	}
}

func (s *Session) setPhase(p Phase) {
	s.mu.Lock()
	prev := s.phase
	s.phase = p
	s.mu.Unlock()
	if prev != p {
		log.Debug().Str("module", "negotiate").Str("room", string(s.cfg.RoomID)).Str("peer", string(s.cfg.PeerID)).Str("from", prev.String()).Str("to", p.String()).Msg("phase")
	}
}

func (s *Session) setRole(r domain.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = r
}

// Role reports the directory-assigned role once Run has joined.
func (s *Session) Role() domain.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) setStrategy(st Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.strategy = st
}

func (s *Session) armDeadline(d time.Duration) {
	s.stopDeadline()
	s.deadline = time.NewTimer(d)
}

func (s *Session) stopDeadline() {
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
}

func (s *Session) deadlineC() <-chan time.Time {
	if s.deadline == nil {
		return nil
	}
	return s.deadline.C
}
