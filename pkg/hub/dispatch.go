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
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/irrigationhub/pkg/models"
)

type commandKind int

const (
	cmdConnect commandKind = iota
	cmdMessage
	cmdDisconnect
	cmdExpire
	cmdCall
)

func (k commandKind) String() string {
	switch k {
	case cmdConnect:
		return "connect"
	case cmdMessage:
		return "message"
	case cmdDisconnect:
		return "disconnect"
	case cmdExpire:
		return "expire"
	case cmdCall:
		return "call"
	default:
		return "unknown"
	}
}

// command is one unit of work for the dispatch goroutine.
type command struct {
	kind         commandKind
	session      *Session
	connectionID string
	env          models.Envelope
	received     time.Time
	fn           func()
}

func (h *Hub) dispatch(ctx context.Context, cmd command) {
	defer func() {
		if r := recover(); r != nil {
			ev := h.log.Error().
				Interface("panic", r).
				Str("command", cmd.kind.String())

			if cmd.session != nil {
				ev = ev.Str("connection_id", cmd.session.id).Str("event", cmd.env.Event)
			}

			ev.Msg("Recovered from panic in dispatcher")
		}
	}()

	switch cmd.kind {
	case cmdConnect:
		h.open(cmd.session)
	case cmdMessage:
		h.handleMessage(ctx, cmd.session, cmd.env, cmd.received)
	case cmdDisconnect:
		h.disconnect(cmd.session)
	case cmdExpire:
		h.purge(cmd.connectionID)
	case cmdCall:
		cmd.fn()
	}
}

// open moves a session to Open and pushes the bootstrap frames before any of
// its messages are handled.
func (h *Hub) open(s *Session) {
	if s.state != StateConnecting {
		return
	}

	s.state = StateOpen
	h.sessions[s.id] = s
	h.router.Add(s)

	if err := h.router.Bootstrap(s, h.store.Snapshot(), h.registry.Snapshot()); err != nil {
		s.log.Error().Err(err).Msg("Failed to bootstrap session")
	}

	h.sessionCount.Store(int64(len(h.sessions)))
	h.metrics.SessionOpened()

	s.log.Info().Str("remote_addr", s.remote).Msg("Session opened")
}

func (h *Hub) disconnect(s *Session) {
	if s.state == StateClosed {
		return
	}

	wasOpen := s.state == StateOpen
	s.state = StateClosed

	h.router.Remove(s.id)
	delete(h.sessions, s.id)
	s.Close()

	h.sessionCount.Store(int64(len(h.sessions)))

	if wasOpen {
		h.metrics.SessionClosed()
	}

	s.log.Info().Msg("Session closed")

	snapshot, ok := h.registry.MarkDisconnected(s.id)
	if !ok {
		return
	}

	if err := h.router.Emit(models.EventDeviceUpdate, snapshot); err != nil {
		s.log.Error().Err(err).Msg("Failed to broadcast device update")
	}
}

func (h *Hub) purge(connectionID string) {
	snapshot, removed := h.registry.Purge(connectionID)
	if !removed {
		return
	}

	h.updateDeviceCount()

	if err := h.router.Emit(models.EventDeviceUpdate, snapshot); err != nil {
		h.log.Error().Err(err).Str("connection_id", connectionID).Msg("Failed to broadcast device update")
	}
}

func (h *Hub) handleMessage(ctx context.Context, s *Session, env models.Envelope, received time.Time) {
	if s.state != StateOpen {
		s.log.Debug().Str("event", env.Event).Str("state", s.state.String()).Msg("Dropping message from inactive session")
		return
	}

	handle, ok := handlers[env.Event]
	if !ok {
		s.log.Debug().Str("event", env.Event).Msg("Ignoring unknown event")
		h.metrics.EventRejected("unknown", "unknown_event")

		return
	}

	_, span := h.tracer.Start(ctx, "hub."+env.Event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("hub.connection_id", s.id),
			attribute.String("hub.event", env.Event),
		),
	)
	defer span.End()

	if err := handle(h, s, env.Data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		s.log.Warn().Err(err).Str("event", env.Event).Msg("Rejected event")
		h.metrics.EventRejected(env.Event, rejectReason(err))

		return
	}

	h.metrics.EventReceived(env.Event, time.Since(received).Seconds())
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, models.ErrMissingPayload):
		return "missing_payload"
	case errors.Is(err, models.ErrMissingField):
		return "missing_field"
	case errors.Is(err, models.ErrMalformedPayload):
		return "malformed_payload"
	default:
		return "error"
	}
}
