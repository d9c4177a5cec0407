// Package stt connects to the external speech engine and turns its frames
// into recognized utterances. The engine does the audio work; this side only
// sees text.
package stt

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrPermissionDenied means microphone access was refused. It is fatal to the
// listen loop; only an explicit re-arm recovers from it.
var ErrPermissionDenied = errors.New("microphone permission denied")

// ErrUnsupported means no speech engine is reachable at all. Surfaced once at
// startup.
var ErrUnsupported = errors.New("speech engine unavailable")

// RecognitionError is a transient engine error (no speech, network blip).
// The listen cycle survives these.
type RecognitionError struct {
	Code string
}

func (e *RecognitionError) Error() string { return fmt.Sprintf("recognition error: %s", e.Code) }

// Recognizer is the capability the listener consumes: a stream of recognized
// utterances plus error and end-of-session signals.
type Recognizer interface {
	Start() error
	Utterances() <-chan string
	Errors() <-chan error
	Ended() <-chan struct{}
	Stop() error
}

type frame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Code string `json:"code,omitempty"`
}

// Stream is a websocket-backed Recognizer.
type Stream struct {
	url        string
	utterances chan string
	errs       chan error
	ended      chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func NewStream(url string) *Stream {
	return &Stream{
		url:        url,
		utterances: make(chan string, 16),
		errs:       make(chan error, 4),
	}
}

func (s *Stream) Utterances() <-chan string { return s.utterances }
func (s *Stream) Errors() <-chan error      { return s.errs }

// Ended signals that the engine closed the session on its own (platform
// session limits do this routinely). The channel is replaced on every Start.
func (s *Stream) Ended() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Start dials the engine and begins reading frames.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		return nil
	}
	if s.url == "" {
		return ErrUnsupported
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.url, nil)
	if err != nil {
		return fmt.Errorf("stt: dial %s: %w", s.url, err)
	}
	s.conn = conn
	s.connected = true
	s.ended = make(chan struct{})
	go s.readLoop(conn, s.ended)
	log.Printf("stt: connected to %s", s.url)
	return nil
}

func (s *Stream) readLoop(conn *websocket.Conn, ended chan struct{}) {
	defer func() {
		s.mu.Lock()
		if s.conn == conn {
			s.connected = false
		}
		s.mu.Unlock()
		close(ended)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Printf("stt: bad frame: %v", err)
			continue
		}
		switch f.Type {
		case "utterance":
			if f.Text == "" {
				continue
			}
			select {
			case s.utterances <- f.Text:
			default:
				log.Printf("stt: utterance buffer full, dropping: %s", f.Text)
			}
		case "error":
			s.errs <- mapError(f.Code)
		case "end":
			return
		default:
			log.Printf("stt: unknown frame type %q", f.Type)
		}
	}
}

func mapError(code string) error {
	if code == "not-allowed" {
		return ErrPermissionDenied
	}
	return &RecognitionError{Code: code}
}

// Stop closes the active session.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.conn == nil {
		return nil
	}
	s.connected = false
	return s.conn.Close()
}
