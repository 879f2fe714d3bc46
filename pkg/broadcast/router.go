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

// Package broadcast fans outbound events out to every connected peer.
package broadcast

import (
	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/metrics"
	"github.com/carverauto/irrigationhub/pkg/models"
)

// Peer is one recipient of outbound frames. Enqueue must not block.
type Peer interface {
	ID() string
	Enqueue(frame []byte) error
}

// Router delivers every emitted event to all registered peers, in
// registration order. It is owned by the dispatch goroutine and is not safe
// for concurrent use.
type Router struct {
	peers   map[string]Peer
	order   []string
	log     logger.Logger
	metrics *metrics.Hub
}

// NewRouter creates an empty Router. m may be nil.
func NewRouter(log logger.Logger, m *metrics.Hub) *Router {
	if log == nil {
		log = logger.Nop()
	}

	return &Router{
		peers:   make(map[string]Peer),
		log:     log,
		metrics: m,
	}
}

// Add registers p. Adding an id twice replaces the earlier peer.
func (r *Router) Add(p Peer) {
	if _, ok := r.peers[p.ID()]; !ok {
		r.order = append(r.order, p.ID())
	}

	r.peers[p.ID()] = p
}

// Remove drops the peer with the given id.
func (r *Router) Remove(id string) {
	if _, ok := r.peers[id]; !ok {
		return
	}

	delete(r.peers, id)

	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of peers.
func (r *Router) Len() int {
	return len(r.peers)
}

// Emit encodes the event once and queues it for every peer, the sender
// included. A peer that fails to accept the frame is logged and skipped.
func (r *Router) Emit(event string, payload interface{}) error {
	frame, err := models.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	delivered := 0

	for _, id := range r.order {
		if r.enqueue(r.peers[id], event, frame) {
			delivered++
		}
	}

	r.metrics.FramesEmitted(event, delivered)

	return nil
}

// Send queues one event for a single peer.
func (r *Router) Send(p Peer, event string, payload interface{}) error {
	frame, err := models.EncodeEnvelope(event, payload)
	if err != nil {
		return err
	}

	if r.enqueue(p, event, frame) {
		r.metrics.FramesEmitted(event, 1)
	}

	return nil
}

// Bootstrap pushes the full current state to a newly opened peer, one frame
// per field, in a fixed order ending with the device list.
func (r *Router) Bootstrap(p Peer, st models.ControlState, devices []models.DeviceRecord) error {
	if devices == nil {
		devices = []models.DeviceRecord{}
	}

	frames := []struct {
		event   string
		payload interface{}
	}{
		{models.EventLEDState, st.LEDState},
		{models.EventReservoir1State, st.Reservoir1},
		{models.EventReservoir2State, st.Reservoir2},
		{models.EventUpperLimit, st.Limits.SoilMoistureUpper},
		{models.EventLowerLimit, st.Limits.SoilMoistureLower},
		{models.EventWaterLevelLimit, st.Limits.WaterLevel},
		{models.EventConnectedDevices, devices},
	}

	for _, f := range frames {
		if err := r.Send(p, f.event, f.payload); err != nil {
			return err
		}
	}

	return nil
}

func (r *Router) enqueue(p Peer, event string, frame []byte) bool {
	if err := p.Enqueue(frame); err != nil {
		r.log.Warn().
			Err(err).
			Str("connection_id", p.ID()).
			Str("event", event).
			Msg("Failed to queue frame for peer")
		r.metrics.EnqueueFailed()

		return false
	}

	return true
}
