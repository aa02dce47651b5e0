package relay

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"
)

// Egress implements the WHEP operation: it builds a viewer peer connection
// with a fresh (video, audio) track pair, appends that pair to streamKey's
// fanout list before the offer/answer exchange completes, and returns the
// gathered answer.
func (s *Service) Egress(ctx context.Context, streamKey, offerSDP string) (uuid.UUID, string, error) {
	sessionID := uuid.New()
	logger := s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"stream_key": streamKey,
		"role":       "egress",
	})

	pc, err := s.engine.newPeerConnection()
	if err != nil {
		return uuid.Nil, "", err
	}

	pair, err := s.addEgressTracks(pc)
	if err != nil {
		return uuid.Nil, "", err
	}

	logPeerConnectionEvents(pc, logger)

	// Registered before the offer/answer exchange so a publisher's very
	// first keyframe-gated packets can already reach this viewer.
	s.registry.Subscribe(streamKey, pair)

	answer, err := negotiate(pc, offerSDP)
	if err != nil {
		s.registry.Unsubscribe(streamKey, pair)
		return uuid.Nil, "", err
	}

	session := &Session{ID: sessionID, Role: RoleEgress, StreamKey: streamKey, PC: pc, Pair: pair}
	s.registerFailureCleanup(pc, session, logger)
	s.registry.Put(session)
	logger.Info("egress session established")

	return sessionID, answer.SDP, nil
}

// addEgressTracks creates the H.264/Opus track pair this viewer will
// receive and adds each as an outbound track, draining the resulting
// sender's RTCP so the pion stack doesn't stall on a full read buffer.
func (s *Service) addEgressTracks(pc *webrtc.PeerConnection) (TrackPair, error) {
	video, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "relay")
	if err != nil {
		return TrackPair{}, fmt.Errorf("%w: new video track: %v", ErrStack, err)
	}
	audio, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "relay")
	if err != nil {
		return TrackPair{}, fmt.Errorf("%w: new audio track: %v", ErrStack, err)
	}

	videoSender, err := pc.AddTrack(video)
	if err != nil {
		return TrackPair{}, fmt.Errorf("%w: add video track: %v", ErrStack, err)
	}
	audioSender, err := pc.AddTrack(audio)
	if err != nil {
		return TrackPair{}, fmt.Errorf("%w: add audio track: %v", ErrStack, err)
	}

	go drainRTCP(videoSender)
	go drainRTCP(audioSender)

	return TrackPair{Video: video, Audio: audio}, nil
}

// drainRTCP discards RTCP packets for a sender until its read errors out
// (peer connection closed). Senders must be continually read or pion's
// internal pipe fills and stalls the sender.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
