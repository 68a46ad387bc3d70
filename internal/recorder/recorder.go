// Package recorder taps a stream's published RTP into ffmpeg over loopback
// UDP, producing an MP4 file per recording session. Grounded on an
// internal/recorder/recorder.go-style tap (same ffmpeg-over-UDP-with-
// rewritten-SDP approach), adapted from per-webinar uuid.UUID keys to the
// Core's string stream IDs and from realtime.SFU to the
// webrtcsfu.Forwarder tap interface.
package recorder

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/live777/live777-go/internal/webrtcsfu"
)

const (
	payloadTypeVideo     = 96
	payloadTypeAudio     = 97
	defaultMaxDurationSec = 7200
)

// SFUTap is the subset of the forwarder registry the recorder depends on:
// discovering a publisher's current tracks and installing/removing an RTP
// sink for them. Implemented by *webrtcsfu.Registry.
type SFUTap interface {
	Tracks(streamID string) []webrtcsfu.Track
	RegisterRecordingSink(streamID string, sink RecordingSink)
	UnregisterRecordingSink(streamID string)
}

// RecordingSink receives a copy of every RTP packet forwarded from a
// stream's publisher, for as long as it stays registered.
type RecordingSink = webrtcsfu.RecordingSink

// Session is one active recording.
type Session struct {
	streamID    string
	recordingID uuid.UUID
	outputPath  string
	sdpPath     string
	cmd         *exec.Cmd
	videoConn   *net.UDPConn
	audioConn   *net.UDPConn
	videoAddr   *net.UDPAddr
	audioAddr   *net.UDPAddr
	mu          sync.Mutex
}

// sink implements RecordingSink by forwarding RTP to ffmpeg's UDP ports,
// rewriting the payload type to match the SDP we handed ffmpeg.
type sink struct {
	session *Session
}

func (s *sink) WriteRTP(kind webrtcsfu.MediaKind, packet []byte) {
	if len(packet) < 2 {
		return
	}
	s.session.mu.Lock()
	defer s.session.mu.Unlock()

	pt := byte(payloadTypeVideo)
	conn, addr := s.session.videoConn, s.session.videoAddr
	if kind == webrtcsfu.KindAudio {
		pt = payloadTypeAudio
		conn, addr = s.session.audioConn, s.session.audioAddr
	}

	rewritten := make([]byte, len(packet))
	copy(rewritten, packet)
	rewritten[1] = (packet[1] & 0x80) | pt

	if conn != nil && addr != nil {
		_, _ = conn.WriteToUDP(rewritten, addr)
	}
}

// Service starts and stops recording sessions against an SFUTap.
type Service struct {
	tap       SFUTap
	outputDir string
	maxDurSec int
	log       *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a recording service for the given stream registry.
func NewService(tap SFUTap, outputDir string, log *zap.Logger) *Service {
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{tap: tap, outputDir: outputDir, maxDurSec: defaultMaxDurationSec, log: log}
}

// SetMaxDuration sets the maximum recording duration in seconds (ffmpeg -t).
func (svc *Service) SetMaxDuration(sec int) { svc.maxDurSec = sec }

func codecRTPMap(codec webrtcsfu.Codec, clockRate uint32) (name string, clock uint32) {
	switch codec {
	case webrtcsfu.CodecVP8:
		return "VP8", clockRate
	case webrtcsfu.CodecVP9:
		return "VP9", clockRate
	case webrtcsfu.CodecAV1:
		return "AV1", clockRate
	case webrtcsfu.CodecH264:
		return "H264", clockRate
	case webrtcsfu.CodecOpus:
		return "opus", clockRate
	case webrtcsfu.CodecG722:
		return "G722", clockRate
	default:
		return "VP8", clockRate
	}
}

// buildSDP generates an SDP file ffmpeg reads to demux incoming RTP. Fixed
// payload types 96 (video) / 97 (audio) match the rewrite done in WriteRTP.
func buildSDP(tracks []webrtcsfu.Track, videoPort, audioPort int) string {
	s := "v=0\r\no=- 0 0 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\n"
	for _, t := range tracks {
		port, pt, kindName := videoPort, payloadTypeVideo, "video"
		if t.Kind == webrtcsfu.KindAudio {
			port, pt, kindName = audioPort, payloadTypeAudio, "audio"
		}
		name, clock := codecRTPMap(t.Codec, t.ClockRate)
		s += fmt.Sprintf("m=%s %d RTP/AVP %d\r\na=rtpmap:%d %s/%d\r\n", kindName, port, pt, pt, name, clock)
	}
	return s
}

func freeUDPPort(fallback int) int {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil || listener == nil {
		return fallback
	}
	defer listener.Close()
	return listener.LocalAddr().(*net.UDPAddr).Port
}

// StartRecording begins recording a stream's publisher tracks, returning the
// eventual output file path. Requires the stream to already have a live
// publisher.
func (svc *Service) StartRecording(_ context.Context, streamID string, recordingID uuid.UUID) (outputPath string, err error) {
	tracks := svc.tap.Tracks(streamID)
	if len(tracks) == 0 {
		return "", fmt.Errorf("no publisher tracks: start recording after the publisher is live")
	}

	videoPort := freeUDPPort(5000)
	audioPort := freeUDPPort(5002)

	sdp := buildSDP(tracks, videoPort, audioPort)
	dir := filepath.Join(svc.outputDir, "recordings")
	_ = os.MkdirAll(dir, 0750)
	outputPath = filepath.Join(dir, recordingID.String()+".mp4")
	sdpPath := filepath.Join(dir, recordingID.String()+".sdp")
	if err := os.WriteFile(sdpPath, []byte(sdp), 0600); err != nil {
		return "", fmt.Errorf("write sdp: %w", err)
	}

	cmd := exec.Command("ffmpeg",
		"-f", "sdp", "-i", sdpPath,
		"-c", "copy",
		"-t", fmt.Sprintf("%d", svc.maxDurSec),
		"-y",
		outputPath,
	)
	if err := cmd.Start(); err != nil {
		_ = os.Remove(sdpPath)
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	videoAddr, _ := net.ResolveUDPAddr("udp", fmt.Sprintf("127.0.0.1:%d", videoPort))
	audioAddr, _ := net.ResolveUDPAddr("udp", fmt.Sprintf("127.0.0.1:%d", audioPort))
	videoConn, err1 := net.DialUDP("udp", nil, videoAddr)
	audioConn, err2 := net.DialUDP("udp", nil, audioAddr)
	if err1 != nil || err2 != nil {
		_ = cmd.Process.Kill()
		if videoConn != nil {
			videoConn.Close()
		}
		if audioConn != nil {
			audioConn.Close()
		}
		_ = os.Remove(sdpPath)
		return "", fmt.Errorf("udp dial: %v / %v", err1, err2)
	}

	session := &Session{
		streamID:    streamID,
		recordingID: recordingID,
		outputPath:  outputPath,
		sdpPath:     sdpPath,
		cmd:         cmd,
		videoConn:   videoConn,
		audioConn:   audioConn,
		videoAddr:   videoAddr,
		audioAddr:   audioAddr,
	}
	svc.tap.RegisterRecordingSink(streamID, &sink{session: session})

	svc.mu.Lock()
	if svc.sessions == nil {
		svc.sessions = make(map[string]*Session)
	}
	svc.sessions[streamID] = session
	svc.mu.Unlock()

	svc.log.Info("recording started", zap.String("stream_id", streamID), zap.String("recording_id", recordingID.String()), zap.String("output", outputPath))
	return outputPath, nil
}

// StopRecording stops the stream's active recording and returns its output path.
func (svc *Service) StopRecording(streamID string) (outputPath string, err error) {
	svc.mu.Lock()
	session, ok := svc.sessions[streamID]
	if !ok {
		svc.mu.Unlock()
		return "", fmt.Errorf("no active recording for stream %s", streamID)
	}
	delete(svc.sessions, streamID)
	svc.mu.Unlock()

	svc.tap.UnregisterRecordingSink(streamID)

	session.mu.Lock()
	cmd := session.cmd
	videoConn := session.videoConn
	audioConn := session.audioConn
	session.videoConn = nil
	session.audioConn = nil
	session.cmd = nil
	session.mu.Unlock()

	if videoConn != nil {
		_ = videoConn.Close()
	}
	if audioConn != nil {
		_ = audioConn.Close()
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(os.Interrupt)
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			_ = cmd.Process.Kill()
		}
	}

	_ = os.Remove(session.sdpPath)
	svc.log.Info("recording stopped", zap.String("stream_id", streamID), zap.String("output", session.outputPath))
	return session.outputPath, nil
}

// HasActiveRecording reports whether the stream currently has an active recording.
func (svc *Service) HasActiveRecording(streamID string) bool {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	_, ok := svc.sessions[streamID]
	return ok
}
