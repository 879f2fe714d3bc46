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

// Package metrics exposes the hub's Prometheus instrumentation. A nil *Hub
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "irrigationhub"

	ResultOK      = "ok"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Hub holds every collector the hub updates.
type Hub struct {
	sessionsConnected prometheus.Gauge
	sessionsTotal     prometheus.Counter
	devicesRegistered prometheus.Gauge
	eventsReceived    *prometheus.CounterVec // by event
	eventsRejected    *prometheus.CounterVec // by event and reason
	framesEmitted     *prometheus.CounterVec // by event
	enqueueFailures   prometheus.Counter
	slowPeers         prometheus.Counter
	dispatchDuration  *prometheus.HistogramVec // by event
	sinkWrites        *prometheus.CounterVec   // by op and result
	sinkDropped       *prometheus.CounterVec   // by op
	sinkQueueDepth    prometheus.Gauge
}

// NewHub creates the collectors and registers them with reg. A nil
// registerer disables metrics and returns nil.
func NewHub(reg prometheus.Registerer) (*Hub, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Hub{
		sessionsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "connected",
			Help:      "Number of open WebSocket sessions",
		}),
		sessionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "total",
			Help:      "Total number of sessions accepted",
		}),
		devicesRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "devices",
			Help:      "Number of device records, connected or within their grace window",
		}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "received_total",
			Help:      "Inbound events dispatched",
		}, []string{"event"}),
		eventsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "rejected_total",
			Help:      "Inbound events dropped without effect",
		}, []string{"event", "reason"}), // reason: malformed, locked, panic, unknown
		framesEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "frames_total",
			Help:      "Outbound frames enqueued, counted once per recipient",
		}, []string{"event"}),
		enqueueFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "enqueue_failures_total",
			Help:      "Frames that could not be queued for a peer",
		}),
		slowPeers: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "slow_closed_total",
			Help:      "Sessions closed because their outbound queue exceeded the bound",
		}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent handling one inbound event",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"event"}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "writes_total",
			Help:      "Persistence writes by operation and result",
		}, []string{"op", "result"}),
		sinkDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "dropped_total",
			Help:      "Persistence jobs dropped because the queue was full",
		}, []string{"op"}),
		sinkQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "queue_depth",
			Help:      "Persistence jobs waiting for the writer",
		}),
	}

	collectors := []prometheus.Collector{
		m.sessionsConnected, m.sessionsTotal, m.devicesRegistered,
		m.eventsReceived, m.eventsRejected, m.framesEmitted, m.enqueueFailures,
		m.slowPeers, m.dispatchDuration, m.sinkWrites, m.sinkDropped, m.sinkQueueDepth,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// SessionOpened records an accepted session.
func (m *Hub) SessionOpened() {
	if m == nil {
		return
	}

	m.sessionsTotal.Inc()
	m.sessionsConnected.Inc()
}

// SessionClosed records a closed session.
func (m *Hub) SessionClosed() {
	if m == nil {
		return
	}

	m.sessionsConnected.Dec()
}

// SlowPeerClosed records a session dropped for exceeding its queue bound.
func (m *Hub) SlowPeerClosed() {
	if m == nil {
		return
	}

	m.slowPeers.Inc()
}

// SetDevices records the registry size.
func (m *Hub) SetDevices(n int) {
	if m == nil {
		return
	}

	m.devicesRegistered.Set(float64(n))
}

// EventReceived records one dispatched inbound event and its handling time.
func (m *Hub) EventReceived(event string, seconds float64) {
	if m == nil {
		return
	}

	m.eventsReceived.WithLabelValues(event).Inc()
	m.dispatchDuration.WithLabelValues(event).Observe(seconds)
}

// EventRejected records an inbound event that had no effect.
func (m *Hub) EventRejected(event, reason string) {
	if m == nil {
		return
	}

	m.eventsRejected.WithLabelValues(event, reason).Inc()
}

// FramesEmitted records n recipients of one outbound event.
func (m *Hub) FramesEmitted(event string, n int) {
	if m == nil || n == 0 {
		return
	}

	m.framesEmitted.WithLabelValues(event).Add(float64(n))
}

// EnqueueFailed records a frame that could not be queued.
func (m *Hub) EnqueueFailed() {
	if m == nil {
		return
	}

	m.enqueueFailures.Inc()
}

// SinkWrite records a persistence write outcome.
func (m *Hub) SinkWrite(op, result string) {
	if m == nil {
		return
	}

	m.sinkWrites.WithLabelValues(op, result).Inc()
}

// SinkDropped records a job rejected by a full queue.
func (m *Hub) SinkDropped(op string) {
	if m == nil {
		return
	}

	m.sinkDropped.WithLabelValues(op).Inc()
}

// SetSinkQueueDepth records the number of pending persistence jobs.
func (m *Hub) SetSinkQueueDepth(n int) {
	if m == nil {
		return
	}

	m.sinkQueueDepth.Set(float64(n))
}
