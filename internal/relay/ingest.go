package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// pliInterval is how often a keyframe request is sent for each ingest
// track: new viewers must never wait longer than this for a decodable
// reference frame.
const pliInterval = 3 * time.Second

// Service wires the registry and media engine together into the four
// WHIP/WHEP operations. It holds no per-session state itself; everything
// session-scoped lives in the Registry or in the goroutines Ingest/Egress
// spawn.
type Service struct {
	engine   *Engine
	registry *Registry
	log      *logrus.Entry
}

// NewService builds a Service over the given engine, registry, and base
// logger. The logger is annotated per-session in Ingest/Egress.
func NewService(engine *Engine, registry *Registry, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{engine: engine, registry: registry, log: log}
}

// ICEServerURLs returns the configured STUN/TURN servers, for the
// signaling surface's Link: rel="ice-server" headers.
func (s *Service) ICEServerURLs() []string {
	return s.engine.ICEServerURLs()
}

// Ingest implements the WHIP operation: it builds a peer connection for the
// publisher, installs the on-track forwarding and PLI loops before
// accepting the offer, and returns the gathered answer.
func (s *Service) Ingest(ctx context.Context, streamKey, offerSDP string) (uuid.UUID, string, error) {
	sessionID := uuid.New()
	logger := s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"stream_key": streamKey,
		"role":       "ingest",
	})

	pc, err := s.engine.newPeerConnection()
	if err != nil {
		return uuid.Nil, "", err
	}

	session := &Session{ID: sessionID, Role: RoleIngest, StreamKey: streamKey, PC: pc}

	logPeerConnectionEvents(pc, logger)
	s.registerFailureCleanup(pc, session, logger)

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		trackLogger := logger.WithField("kind", track.Kind().String())
		go s.runPLILoop(pc, track, trackLogger)
		go s.runForwardingLoop(streamKey, track, trackLogger)
	})

	answer, err := negotiate(pc, offerSDP)
	if err != nil {
		return uuid.Nil, "", err
	}

	s.registry.Put(session)
	logger.Info("ingest session established")

	return sessionID, answer.SDP, nil
}

// runPLILoop periodically asks the publisher for a keyframe on behalf of
// track, so a viewer joining mid-stream has something to decode. It exits
// on the first RTCP write failure, which happens once the peer connection
// has gone away.
func (s *Service) runPLILoop(pc *webrtc.PeerConnection, track *webrtc.TrackRemote, logger *logrus.Entry) {
	ticker := time.NewTicker(pliInterval)
	defer ticker.Stop()

	ssrc := uint32(track.SSRC())
	for range ticker.C {
		err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}})
		if err != nil {
			logger.WithError(err).Debug("pli loop exiting")
			return
		}
	}
}

// runForwardingLoop reads RTP from track and rewrites each packet onto
// every egress track pair currently subscribed to streamKey. The
// subscriptions lock is held for the duration of one packet's fanout,
// including the writes.
func (s *Service) runForwardingLoop(streamKey string, track *webrtc.TrackRemote, logger *logrus.Entry) {
	kind := track.Kind()
	logger.Debug("forwarding loop started")

	var pkt *rtp.Packet
	for {
		var err error
		pkt, _, err = track.ReadRTP()
		if err != nil {
			logger.WithError(err).Debug("forwarding loop exiting")
			return
		}

		s.registry.WithFanout(streamKey, func(pairs []TrackPair) {
			for _, pair := range pairs {
				var writer *webrtc.TrackLocalStaticRTP
				switch kind {
				case webrtc.RTPCodecTypeVideo:
					writer = pair.Video
				case webrtc.RTPCodecTypeAudio:
					writer = pair.Audio
				default:
					continue
				}
				if writer == nil {
					continue
				}
				if err := writer.WriteRTP(pkt); err != nil {
					logger.WithError(err).Debug("dropped packet for one subscriber")
				}
			}
		})
	}
}

// negotiate applies offerSDP as the remote description, creates and sets
// the local answer, and blocks until ICE gathering completes so the
// returned answer carries a fully gathered set of candidates.
func negotiate(pc *webrtc.PeerConnection, offerSDP string) (*webrtc.SessionDescription, error) {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("%w: set remote description: %v", ErrStack, err)
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create answer: %v", ErrStack, err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, fmt.Errorf("%w: set local description: %v", ErrStack, err)
	}
	<-gatherComplete

	return pc.LocalDescription(), nil
}

// logPeerConnectionEvents installs observability-only signaling/ICE state
// change handlers.
func logPeerConnectionEvents(pc *webrtc.PeerConnection, logger *logrus.Entry) {
	pc.OnSignalingStateChange(func(st webrtc.SignalingState) {
		logger.WithField("signaling_state", st.String()).Debug("signaling state changed")
	})
	pc.OnICEConnectionStateChange(func(st webrtc.ICEConnectionState) {
		logger.WithField("ice_connection_state", st.String()).Debug("ice connection state changed")
	})
}

// registerFailureCleanup removes session's registry entry (and, for an
// ingest session, its subscribers) the moment the underlying connection
// fails or closes on its own, rather than leaking a registry entry for a
// session nobody ever explicitly tears down.
func (s *Service) registerFailureCleanup(pc *webrtc.PeerConnection, session *Session, logger *logrus.Entry) {
	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		logger.WithField("connection_state", st.String()).Info("peer connection state changed")
		if st != webrtc.PeerConnectionStateFailed && st != webrtc.PeerConnectionStateClosed {
			return
		}
		if session.Role == RoleIngest {
			s.registry.ClearKey(session.StreamKey)
		} else {
			s.registry.Unsubscribe(session.StreamKey, session.Pair)
		}
		s.registry.Delete(session.ID)
	})
}
