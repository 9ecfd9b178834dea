package peermesh

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// pionTransport wraps one pion PeerConnection as a PeerTransport.
type pionTransport struct {
	pc       *webrtc.PeerConnection
	remoteID string
}

// NewPionFactory builds transports backed by pion/webrtc seeded with the
// given STUN servers. Candidates trickle through the callbacks as they are
// gathered; gathering is never awaited.
func NewPionFactory(stunServers []string) TransportFactory {
	cfg := webrtc.Configuration{}
	if len(stunServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: stunServers}}
	}

	return func(remoteID string, cb TransportCallbacks) (PeerTransport, error) {
		pc, err := webrtc.NewPeerConnection(cfg)
		if err != nil {
			return nil, fmt.Errorf("new peer connection: %w", err)
		}
		t := &pionTransport{pc: pc, remoteID: remoteID}

		pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
			if cand == nil || cb.OnLocalCandidate == nil {
				return
			}
			b, err := json.Marshal(cand.ToJSON())
			if err != nil {
				log.Debug().Err(err).Str("module", "peermesh").Msg("marshal candidate")
				return
			}
			cb.OnLocalCandidate(b)
		})

		pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
			log.Info().Str("module", "peermesh").Str("peer", remoteID).Str("peer_connection_state", s.String()).Msg("peer state")
			switch s {
			case webrtc.PeerConnectionStateConnected:
				if cb.OnConnected != nil {
					cb.OnConnected()
				}
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				if cb.OnFailed != nil {
					cb.OnFailed()
				}
			}
		})

		pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
			log.Info().
				Str("module", "peermesh").
				Str("peer", remoteID).
				Str("kind", track.Kind().String()).
				Str("track_id", track.ID()).
				Msg("remote track")
		})

		return t, nil
	}
}

func (t *pionTransport) AddTrack(lt LocalTrack) error {
	track, ok := lt.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("unsupported track type %T", lt)
	}
	if _, err := t.pc.AddTrack(track); err != nil {
		return fmt.Errorf("add track: %w", err)
	}
	return nil
}

func (t *pionTransport) CreateOffer(ctx context.Context) (string, error) {
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return offer.SDP, nil
}

func (t *pionTransport) AcceptOffer(ctx context.Context, sdp string) (string, error) {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return "", fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("create answer: %w", err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}
	return answer.SDP, nil
}

func (t *pionTransport) AcceptAnswer(sdp string) error {
	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	if err := t.pc.SetRemoteDescription(remote); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

func (t *pionTransport) AddRemoteCandidate(candidate json.RawMessage) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}
	return t.pc.AddICECandidate(init)
}

// ReplaceTrack swaps the sender of the same kind in place. No sender of
// that kind means the caller has to renegotiate.
func (t *pionTransport) ReplaceTrack(lt LocalTrack) error {
	track, ok := lt.(webrtc.TrackLocal)
	if !ok {
		return fmt.Errorf("unsupported track type %T", lt)
	}
	for _, sender := range t.pc.GetSenders() {
		cur := sender.Track()
		if cur == nil || cur.Kind() != track.Kind() {
			continue
		}
		if err := sender.ReplaceTrack(track); err != nil {
			return fmt.Errorf("replace track: %w", err)
		}
		return nil
	}
	return fmt.Errorf("no %s sender to replace", track.Kind())
}

func (t *pionTransport) Close() error {
	return t.pc.Close()
}
