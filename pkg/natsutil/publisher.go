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

package natsutil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
)

const (
	eventSource     = "irrigationhub/hub"
	readingsSubject = "readings"
	limitsSubject   = "limits"
)

// EventPublisher publishes readings and limit changes as CloudEvents to
// NATS JetStream. It implements sink.Sink.
type EventPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
	prefix string
	log    logger.Logger
	now    func() time.Time
}

// NewEventPublisher binds a publisher to nc and makes sure the stream exists
// and captures the hub's subjects. Close drains nc.
func NewEventPublisher(ctx context.Context, nc *nats.Conn, cfg *models.NATSConfig, log logger.Logger) (*EventPublisher, error) {
	if log == nil {
		log = logger.Nop()
	}

	var (
		js  jetstream.JetStream
		err error
	)

	if cfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, cfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &EventPublisher{
		nc:     nc,
		js:     js,
		stream: cfg.Stream,
		prefix: cfg.SubjectPrefix,
		log:    log,
		now:    time.Now,
	}

	if err := p.ensureStream(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *EventPublisher) ensureStream(ctx context.Context) error {
	wanted := p.prefix + ".>"

	stream, err := p.js.Stream(ctx, p.stream)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		if _, err = p.js.CreateStream(ctx, jetstream.StreamConfig{
			Name:     p.stream,
			Subjects: []string{wanted},
		}); err != nil {
			return fmt.Errorf("failed to create stream %s: %w", p.stream, err)
		}

		p.log.Info().Str("stream", p.stream).Str("subjects", wanted).Msg("created JetStream stream")

		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to look up stream %s: %w", p.stream, err)
	}

	cfg := stream.CachedInfo().Config

	subjects := ensureSubjectList(slices.Clone(cfg.Subjects), wanted)
	if len(subjects) == len(cfg.Subjects) {
		return nil
	}

	cfg.Subjects = subjects
	if _, err := p.js.UpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to add %s to stream %s: %w", wanted, p.stream, err)
	}

	p.log.Info().Str("stream", p.stream).Strs("subjects", subjects).Msg("updated JetStream stream subjects")

	return nil
}

// SaveReading publishes a reading on <prefix>.readings.<deviceId>.
func (p *EventPublisher) SaveReading(ctx context.Context, r models.Reading) error {
	subject := p.prefix + "." + readingsSubject + "." + subjectToken(r.DeviceID)

	return p.publish(ctx, models.CloudEventReading, subject, r.Timestamp, r)
}

// UpdateLimits publishes the new limit triple on <prefix>.limits.
func (p *EventPublisher) UpdateLimits(ctx context.Context, l models.Limits) error {
	return p.publish(ctx, models.CloudEventLimits, p.prefix+"."+limitsSubject, p.now(), l)
}

func (p *EventPublisher) publish(ctx context.Context, eventType, subject string, ts time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            eventType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &ts,
		Data:            data,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ack, err := p.js.Publish(ctx, subject, payload, jetstream.WithMsgID(event.ID))
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	p.log.Debug().
		Str("subject", subject).
		Str("event_id", event.ID).
		Uint64("seq", ack.Sequence).
		Msg("published event")

	return nil
}

// Close drains the underlying connection.
func (p *EventPublisher) Close() error {
	if p.nc == nil || p.nc.IsClosed() {
		return nil
	}

	return p.nc.Drain()
}

// ensureSubjectList appends subject unless an existing pattern covers it.
func ensureSubjectList(subjects []string, subject string) []string {
	for _, pattern := range subjects {
		if matchesSubject(pattern, subject) {
			return subjects
		}
	}

	return append(subjects, subject)
}

// matchesSubject reports whether pattern covers subject using NATS token
// wildcards: * matches one token, > matches the rest.
func matchesSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")

	for i, tok := range pt {
		switch {
		case tok == ">":
			return len(st) > i
		case i >= len(st):
			return false
		case tok != "*" && tok != st[i]:
			return false
		}
	}

	return len(pt) == len(st)
}

// subjectToken makes a device id safe to use as one subject token.
func subjectToken(id string) string {
	if id == "" {
		return models.UnknownDeviceID
	}

	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}

		return r
	}, id)
}
