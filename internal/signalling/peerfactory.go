// Package signalling terminates WHIP/WHEP HTTP signalling and maps it onto
// Forwarder operations. Grounded on Eson-Jia-webrtc's
// whip-whep example for the SettingEngine/UDP-mux/MediaEngine/Interceptor
// wiring, and on a gin-based handler/middleware layout
// (cmd/server/main.go, internal/middleware) for everything else.
package signalling

import (
	"fmt"

	"github.com/pion/ice/v4"
	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/live777/live777-go/config"
	"github.com/live777/live777-go/internal/webrtcsfu"
)

// PeerFactory builds pion PeerConnections sharing one UDP mux and codec
// table, as Eson-Jia-webrtc's whip-whep example does. Unlike that example,
// it does NOT register pion/interceptor/pkg/intervalpli: the Core's own
// coalesced PLI policy (webrtcsfu.feedbackEngine) replaces periodic
// interval-PLI. Besides the codecs, pion's default interceptor set is
// registered (webrtc.RegisterDefaultInterceptors: NACK generator/responder,
// RTCP reports and the rest of that set), which does not include
// interval-PLI.
type PeerFactory struct {
	api          *webrtc.API
	iceServers   []webrtc.ICEServer
	codecByPT    map[webrtc.PayloadType]webrtcsfu.Codec
}

// zapLoggerFactory bridges pion's internal logging (ICE/DTLS/SRTP state
// machines) onto the Core's structured zap logger, instead of pion's
// default stdout logger, so ICE/DTLS diagnostics land in the same log
// stream as everything else.
type zapLoggerFactory struct {
	log *zap.Logger
}

func (f zapLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &zapPionLogger{log: f.log.Named(scope)}
}

type zapPionLogger struct {
	log *zap.Logger
}

func (l *zapPionLogger) Trace(msg string)                          { l.log.Debug(msg) }
func (l *zapPionLogger) Tracef(format string, args ...interface{})  { l.log.Sugar().Debugf(format, args...) }
func (l *zapPionLogger) Debug(msg string)                           { l.log.Debug(msg) }
func (l *zapPionLogger) Debugf(format string, args ...interface{})  { l.log.Sugar().Debugf(format, args...) }
func (l *zapPionLogger) Info(msg string)                            { l.log.Info(msg) }
func (l *zapPionLogger) Infof(format string, args ...interface{})   { l.log.Sugar().Infof(format, args...) }
func (l *zapPionLogger) Warn(msg string)                            { l.log.Warn(msg) }
func (l *zapPionLogger) Warnf(format string, args ...interface{})   { l.log.Sugar().Warnf(format, args...) }
func (l *zapPionLogger) Error(msg string)                           { l.log.Error(msg) }
func (l *zapPionLogger) Errorf(format string, args ...interface{})  { l.log.Sugar().Errorf(format, args...) }

// NewPeerFactory builds the shared webrtc.API: a MediaEngine advertising
// the codecs names, a SettingEngine bound to a single UDP mux
// port, and the default interceptor set minus interval-PLI.
func NewPeerFactory(cfg *config.WebRTCConfig, log *zap.Logger) (*PeerFactory, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mediaEngine := &webrtc.MediaEngine{}
	codecByPT := make(map[webrtc.PayloadType]webrtcsfu.Codec)

	videoCodecs := []struct {
		mime string
		pt   webrtc.PayloadType
		codec webrtcsfu.Codec
	}{
		{webrtc.MimeTypeAV1, 45, webrtcsfu.CodecAV1},
		{webrtc.MimeTypeVP9, 98, webrtcsfu.CodecVP9},
		{webrtc.MimeTypeVP8, 96, webrtcsfu.CodecVP8},
		{webrtc.MimeTypeH264, 102, webrtcsfu.CodecH264},
	}
	for _, vc := range videoCodecs {
		if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    vc.mime,
				ClockRate:   90000,
				RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}, {Type: "goog-remb"}},
			},
			PayloadType: vc.pt,
		}, webrtc.RTPCodecTypeVideo); err != nil {
			return nil, fmt.Errorf("register video codec %s: %w", vc.mime, err)
		}
		codecByPT[vc.pt] = vc.codec
	}

	audioCodecs := []struct {
		mime      string
		pt        webrtc.PayloadType
		clockRate uint32
		channels  uint16
		codec     webrtcsfu.Codec
	}{
		{webrtc.MimeTypeOpus, 111, 48000, 2, webrtcsfu.CodecOpus},
		{webrtc.MimeTypeG722, 9, 8000, 1, webrtcsfu.CodecG722},
	}
	for _, ac := range audioCodecs {
		if err := mediaEngine.RegisterCodec(webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:  ac.mime,
				ClockRate: ac.clockRate,
				Channels:  ac.channels,
			},
			PayloadType: ac.pt,
		}, webrtc.RTPCodecTypeAudio); err != nil {
			return nil, fmt.Errorf("register audio codec %s: %w", ac.mime, err)
		}
		codecByPT[ac.pt] = ac.codec
	}

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, fmt.Errorf("register default interceptors: %w", err)
	}

	settingEngine := webrtc.SettingEngine{}
	settingEngine.LoggerFactory = zapLoggerFactory{log: log}
	mux, err := ice.NewMultiUDPMuxFromPort(cfg.UDPMuxPort, ice.UDPMuxFromPortWithNetworks(ice.NetworkTypeUDP4))
	if err != nil {
		return nil, fmt.Errorf("bind ICE UDP mux on port %d: %w", cfg.UDPMuxPort, err)
	}
	settingEngine.SetICEUDPMux(mux)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithSettingEngine(settingEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
	)

	iceServers := make([]webrtc.ICEServer, 0, len(cfg.ICEUrls))
	for _, url := range cfg.ICEUrls {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: []string{url}})
	}

	return &PeerFactory{api: api, iceServers: iceServers, codecByPT: codecByPT}, nil
}

// New creates a fresh PeerConnection using the shared codec/interceptor
// configuration, with optionally per-session ICE server credentials
// (Coturn-style minted credentials replace the static list when provided).
func (pf *PeerFactory) New(iceServers []webrtc.ICEServer) (*webrtc.PeerConnection, error) {
	servers := pf.iceServers
	if len(iceServers) > 0 {
		servers = iceServers
	}
	return pf.api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
}

// ICEServers returns the static ICE server list, for the Link headers
// every WHIP/WHEP response carries.
func (pf *PeerFactory) ICEServers() []webrtc.ICEServer {
	return pf.iceServers
}

// CodecForPayloadType maps a negotiated payload type back to the Core's
// codec enum, used when building a Track from an accepted SDP answer.
func (pf *PeerFactory) CodecForPayloadType(pt webrtc.PayloadType) (webrtcsfu.Codec, bool) {
	c, ok := pf.codecByPT[pt]
	return c, ok
}
