package relay

import (
	"fmt"

	ice "github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
)

// Engine bundles the shared, process-wide pieces of the media stack: the
// pion API (media engine + interceptor registry + setting engine) and the
// peer-connection configuration every ingest/egress session is built from.
// Constructed once at startup.
type Engine struct {
	api           *webrtc.API
	peerConfig    webrtc.Configuration
	iceServerURLs []string
}

// EngineOptions configures Engine construction from resolved startup config.
type EngineOptions struct {
	ICEServerURLs []string
	UDPMuxPort    uint16
	NATIPs        []string
}

// NewEngine builds the shared webrtc.API and peer-connection configuration.
func NewEngine(opts EngineOptions) (*Engine, error) {
	mediaEngine := &webrtc.MediaEngine{}
	if err := registerCodecs(mediaEngine); err != nil {
		return nil, fmt.Errorf("%w: register codecs: %v", ErrStack, err)
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("%w: register interceptors: %v", ErrStack, err)
	}

	settingEngine := webrtc.SettingEngine{}

	if opts.UDPMuxPort != 0 {
		mux, err := ice.NewMultiUDPMuxFromPort(int(opts.UDPMuxPort), ice.UDPMuxFromPortWithNetworks(ice.NetworkTypeUDP4))
		if err != nil {
			return nil, fmt.Errorf("%w: udp mux on port %d: %v", ErrStack, opts.UDPMuxPort, err)
		}
		settingEngine.SetICEUDPMux(mux)
	}

	if len(opts.NATIPs) > 0 {
		settingEngine.SetNAT1To1IPs(opts.NATIPs, webrtc.ICECandidateTypeHost)
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(settingEngine),
	)

	iceServers := make([]webrtc.ICEServer, 0, len(opts.ICEServerURLs))
	for _, url := range opts.ICEServerURLs {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}

	return &Engine{
		api: api,
		peerConfig: webrtc.Configuration{
			ICEServers: iceServers,
		},
		iceServerURLs: opts.ICEServerURLs,
	}, nil
}

// ICEServerURLs returns the configured STUN/TURN server list, used by the
// signaling surface to emit Link: rel="ice-server" headers.
func (e *Engine) ICEServerURLs() []string {
	return e.iceServerURLs
}

func (e *Engine) newPeerConnection() (*webrtc.PeerConnection, error) {
	pc, err := e.api.NewPeerConnection(e.peerConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: new peer connection: %v", ErrStack, err)
	}
	return pc, nil
}

// registerCodecs configures H.264 video and Opus audio, the only two codecs
// this relay forwards.
func registerCodecs(m *webrtc.MediaEngine) error {
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}, {Type: "goog-remb"}},
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return err
	}

	return m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio)
}
