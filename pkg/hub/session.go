/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hub

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
)

// SessionState is the lifecycle stage of a Session.
type SessionState int

const (
	// StateConnecting is a transport the dispatcher has not accepted yet.
	StateConnecting SessionState = iota
	// StateOpen sessions have been bootstrapped and may send events.
	StateOpen
	// StateClosed sessions are gone; their messages are dropped.
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// transport is the part of *websocket.Conn a Session drives.
type transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Session is one connected client or device. It implements broadcast.Peer.
//
// The outbound queue is unbounded unless MaxPendingFrames is set, so
// Enqueue never blocks the dispatcher.
type Session struct {
	id     string
	remote string
	hub    *Hub
	conn   transport
	log    logger.Logger

	// state is read and written only by the dispatch goroutine.
	state SessionState

	mu         sync.Mutex
	queue      [][]byte
	closed     bool
	maxPending int

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSession(h *Hub, conn transport, remote string) *Session {
	id := uuid.NewString()

	return &Session{
		id:         id,
		remote:     remote,
		hub:        h,
		conn:       conn,
		log:        logger.Wrap(h.log.With().Str("connection_id", id).Logger()),
		state:      StateConnecting,
		maxPending: h.cfg.MaxPendingFrames,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// ID returns the connection id.
func (s *Session) ID() string {
	return s.id
}

// Enqueue appends frame to the outbound queue.
func (s *Session) Enqueue(frame []byte) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	if s.maxPending > 0 && len(s.queue) >= s.maxPending {
		s.mu.Unlock()

		s.log.Warn().Int("max_pending_frames", s.maxPending).Msg("Closing slow session")
		s.hub.metrics.SlowPeerClosed()
		s.Close()

		return ErrSlowPeer
	}

	s.queue = append(s.queue, frame)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	return nil
}

// Close stops the session. The write loop sends a close frame and releases
// the transport.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()

		close(s.done)
	})
}

// take removes and returns everything queued so far.
func (s *Session) take() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := s.queue
	s.queue = nil

	return frames
}

func (s *Session) writeLoop() {
	cfg := &s.hub.cfg

	ticker := time.NewTicker(cfg.PingInterval)

	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.wake:
			for _, frame := range s.take() {
				_ = s.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))

				if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					s.log.Debug().Err(err).Msg("Write failed")
					s.Close()

					return
				}
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.WriteWait)); err != nil {
				s.log.Debug().Err(err).Msg("Ping failed")
				s.Close()

				return
			}
		case <-s.hub.done:
			s.Close()
			s.sendClose(websocket.CloseGoingAway)

			return
		case <-s.done:
			s.sendClose(websocket.CloseNormalClosure)

			return
		}
	}
}

func (s *Session) sendClose(code int) {
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""),
		time.Now().Add(s.hub.cfg.WriteWait))
}

// readLoop decodes frames into the dispatcher inbox until the transport
// fails, then reports the disconnect.
func (s *Session) readLoop() {
	cfg := &s.hub.cfg

	defer func() {
		if !s.hub.submit(command{kind: cmdDisconnect, session: s}) {
			s.Close()
		}
	}()

	s.conn.SetReadLimit(cfg.MaxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				s.log.Warn().Err(err).Msg("Session ended unexpectedly")
			} else {
				s.log.Debug().Err(err).Msg("Session read ended")
			}

			return
		}

		_ = s.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))

		env, err := models.DecodeEnvelope(frame)
		if err != nil {
			s.log.Warn().Err(err).Int("bytes", len(frame)).Msg("Dropping malformed frame")
			s.hub.metrics.EventRejected("invalid", "malformed_frame")

			continue
		}

		if !s.hub.submit(command{kind: cmdMessage, session: s, env: env, received: time.Now()}) {
			return
		}
	}
}
