// Package peermesh maintains one client's full mesh of peer connections:
// one negotiation per remote participant, driven by relayed offer/answer/
// candidate events. The negotiation state machine is kept apart from the
// concrete WebRTC stack so it can be exercised without opening sockets.
package peermesh

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrNegotiationFailed is returned when a track swap could not be
	// applied and the renegotiation fallback failed too.
	ErrNegotiationFailed = errors.New("peermesh: negotiation failed")
	// ErrUnknownPeer is returned for signals naming a peer the mesh does
	// not hold.
	ErrUnknownPeer = errors.New("peermesh: unknown peer")
)

// PeerState tracks where one remote's negotiation stands.
type PeerState int

const (
	StateIdle PeerState = iota
	StateOfferSent
	StateAnswerSent
	StateConnected
	StateClosed
)

func (s PeerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateAnswerSent:
		return "answer-sent"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// LocalTrack is an opaque handle to an outgoing media source. The concrete
// transport decides what it accepts.
type LocalTrack any

// Signaler carries negotiation messages to a named remote through the
// relay.
type Signaler interface {
	SendOffer(to, sdp string) error
	SendAnswer(to, sdp string) error
	SendCandidate(to string, candidate json.RawMessage) error
}

// PeerTransport is one underlying peer connection. Implementations report
// connectivity through the callbacks handed to the factory.
type PeerTransport interface {
	AddTrack(t LocalTrack) error
	CreateOffer(ctx context.Context) (string, error)
	// AcceptOffer applies the remote offer and returns the local answer.
	AcceptOffer(ctx context.Context, sdp string) (string, error)
	AcceptAnswer(sdp string) error
	AddRemoteCandidate(candidate json.RawMessage) error
	// ReplaceTrack swaps the outgoing track of the same kind in place,
	// without renegotiating.
	ReplaceTrack(t LocalTrack) error
	Close() error
}

// TransportCallbacks are invoked by the transport from its own goroutines.
type TransportCallbacks struct {
	OnLocalCandidate func(candidate json.RawMessage)
	OnConnected      func()
	OnFailed         func()
}

// TransportFactory builds the transport for one remote peer.
type TransportFactory func(remoteID string, cb TransportCallbacks) (PeerTransport, error)

type peer struct {
	id        string
	state     PeerState
	transport PeerTransport

	// Candidates relayed before the remote description is applied are
	// held here; the transport rejects them until then.
	remoteSet bool
	pending   []json.RawMessage
}

// Mesh is one participant's set of negotiations. Initiation is
// deterministic: a member already in the room initiates toward each
// newcomer it is told about, and a newcomer only ever answers. The two
// sides of any pair therefore never produce crossing offers.
type Mesh struct {
	mu     sync.Mutex
	selfID string

	sig        Signaler
	newPeer    TransportFactory
	localTrack LocalTrack

	peers map[string]*peer
}

func NewMesh(selfID string, sig Signaler, factory TransportFactory) *Mesh {
	return &Mesh{
		selfID:  selfID,
		sig:     sig,
		newPeer: factory,
		peers:   make(map[string]*peer),
	}
}

// SetLocalTrack records the outgoing media source attached to every peer
// created afterwards. Call before joining.
func (m *Mesh) SetLocalTrack(t LocalTrack) {
	m.mu.Lock()
	m.localTrack = t
	m.mu.Unlock()
}

// HandleUserJoined reacts to a newcomer: this side is the sitting member,
// so it initiates. A repeat announcement for a known peer is ignored, so a
// pair never ends up with two negotiations in flight.
func (m *Mesh) HandleUserJoined(ctx context.Context, remoteID string) error {
	if remoteID == m.selfID {
		return nil
	}
	m.mu.Lock()
	if _, exists := m.peers[remoteID]; exists {
		m.mu.Unlock()
		return nil
	}
	p, err := m.addPeerLocked(remoteID)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	sdp, err := p.transport.CreateOffer(ctx)
	if err != nil {
		m.ClosePeer(remoteID)
		return err
	}

	m.mu.Lock()
	p.state = StateOfferSent
	m.mu.Unlock()

	return m.sig.SendOffer(remoteID, sdp)
}

// HandleOffer answers an incoming offer. The local side is the newcomer
// for this pair and must not have initiated; an offer that crosses an
// in-flight negotiation is dropped.
func (m *Mesh) HandleOffer(ctx context.Context, from, sdp string) error {
	m.mu.Lock()
	p, exists := m.peers[from]
	if exists && p.state != StateIdle {
		m.mu.Unlock()
		log.Warn().Str("module", "peermesh").Str("peer", from).Str("state", p.state.String()).Msg("offer in non-idle state dropped")
		return nil
	}
	if !exists {
		var err error
		p, err = m.addPeerLocked(from)
		if err != nil {
			m.mu.Unlock()
			return err
		}
	}
	m.mu.Unlock()

	answer, err := p.transport.AcceptOffer(ctx, sdp)
	if err != nil {
		m.ClosePeer(from)
		return err
	}
	m.flushCandidates(p)

	m.mu.Lock()
	p.state = StateAnswerSent
	m.mu.Unlock()

	return m.sig.SendAnswer(from, answer)
}

// HandleAnswer completes a negotiation this side initiated.
func (m *Mesh) HandleAnswer(from, sdp string) error {
	m.mu.Lock()
	p, exists := m.peers[from]
	if !exists {
		m.mu.Unlock()
		return ErrUnknownPeer
	}
	if p.state != StateOfferSent {
		m.mu.Unlock()
		log.Warn().Str("module", "peermesh").Str("peer", from).Str("state", p.state.String()).Msg("unexpected answer dropped")
		return nil
	}
	m.mu.Unlock()

	if err := p.transport.AcceptAnswer(sdp); err != nil {
		m.ClosePeer(from)
		return err
	}
	m.flushCandidates(p)
	return nil
}

// HandleCandidate feeds a relayed ICE candidate to the matching peer.
// Trickled candidates can overtake the offer/answer exchange; until the
// remote description is applied they are buffered on the peer and flushed
// once negotiation catches up. Candidates for a peer the mesh does not
// hold at all are rejected.
func (m *Mesh) HandleCandidate(from string, candidate json.RawMessage) error {
	m.mu.Lock()
	p, exists := m.peers[from]
	if !exists {
		m.mu.Unlock()
		return ErrUnknownPeer
	}
	if !p.remoteSet {
		p.pending = append(p.pending, candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()
	return p.transport.AddRemoteCandidate(candidate)
}

// flushCandidates marks the peer's remote description applied and replays
// any candidates that arrived early. Call after AcceptOffer or AcceptAnswer
// succeeds.
func (m *Mesh) flushCandidates(p *peer) {
	m.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	m.mu.Unlock()
	for _, c := range pending {
		if err := p.transport.AddRemoteCandidate(c); err != nil {
			log.Debug().Err(err).Str("module", "peermesh").Str("peer", p.id).Msg("replay candidate")
		}
	}
}

// HandleUserLeft tears down the departed peer only; every other
// negotiation is untouched.
func (m *Mesh) HandleUserLeft(remoteID string) {
	m.ClosePeer(remoteID)
}

// ReplaceTrack swaps the outgoing track on every connected peer. Peers
// whose transport cannot swap in place get a fresh offer instead; a peer
// failing both is closed and the call reports ErrNegotiationFailed.
func (m *Mesh) ReplaceTrack(ctx context.Context, t LocalTrack) error {
	m.mu.Lock()
	m.localTrack = t
	snapshot := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		snapshot = append(snapshot, p)
	}
	m.mu.Unlock()

	var failed bool
	for _, p := range snapshot {
		if err := p.transport.ReplaceTrack(t); err == nil {
			continue
		}
		if err := m.renegotiate(ctx, p); err != nil {
			log.Error().Err(err).Str("module", "peermesh").Str("peer", p.id).Msg("renegotiation failed, closing peer")
			m.ClosePeer(p.id)
			failed = true
		}
	}
	if failed {
		return ErrNegotiationFailed
	}
	return nil
}

// PeerStates reports each remote's negotiation state.
func (m *Mesh) PeerStates() map[string]PeerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]PeerState, len(m.peers))
	for id, p := range m.peers {
		out[id] = p.state
	}
	return out
}

// ClosePeer removes one remote and closes its transport.
func (m *Mesh) ClosePeer(remoteID string) {
	m.mu.Lock()
	p, exists := m.peers[remoteID]
	if exists {
		delete(m.peers, remoteID)
		p.state = StateClosed
	}
	m.mu.Unlock()
	if exists {
		if err := p.transport.Close(); err != nil {
			log.Debug().Err(err).Str("module", "peermesh").Str("peer", remoteID).Msg("transport close")
		}
	}
}

// Close tears down the whole mesh.
func (m *Mesh) Close() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[string]*peer)
	m.mu.Unlock()
	for id, p := range peers {
		p.state = StateClosed
		if err := p.transport.Close(); err != nil {
			log.Debug().Err(err).Str("module", "peermesh").Str("peer", id).Msg("transport close")
		}
	}
}

func (m *Mesh) addPeerLocked(remoteID string) (*peer, error) {
	cb := TransportCallbacks{
		OnLocalCandidate: func(candidate json.RawMessage) {
			if err := m.sig.SendCandidate(remoteID, candidate); err != nil {
				log.Debug().Err(err).Str("module", "peermesh").Str("peer", remoteID).Msg("send candidate")
			}
		},
		OnConnected: func() { m.markConnected(remoteID) },
		OnFailed:    func() { m.ClosePeer(remoteID) },
	}
	t, err := m.newPeer(remoteID, cb)
	if err != nil {
		return nil, err
	}
	if m.localTrack != nil {
		if err := t.AddTrack(m.localTrack); err != nil {
			_ = t.Close()
			return nil, err
		}
	}
	p := &peer{id: remoteID, state: StateIdle, transport: t}
	m.peers[remoteID] = p
	return p, nil
}

func (m *Mesh) markConnected(remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, exists := m.peers[remoteID]; exists && p.state != StateClosed {
		p.state = StateConnected
	}
}

func (m *Mesh) renegotiate(ctx context.Context, p *peer) error {
	sdp, err := p.transport.CreateOffer(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	p.state = StateOfferSent
	m.mu.Unlock()
	return m.sig.SendOffer(p.id, sdp)
}
