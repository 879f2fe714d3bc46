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

// Package hub is the real-time state-sync core. A single dispatch goroutine
// owns the device registry, the control state and the broadcast router;
// WebSocket sessions only decode frames into its inbox and flush their own
// outbound queues.
package hub

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"github.com/carverauto/irrigationhub/pkg/broadcast"
	hubhttp "github.com/carverauto/irrigationhub/pkg/http"
	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/metrics"
	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/registry"
	"github.com/carverauto/irrigationhub/pkg/state"
	"github.com/carverauto/irrigationhub/pkg/telemetry"
)

const (
	tracerName    = "github.com/carverauto/irrigationhub/pkg/hub"
	healthTimeout = 500 * time.Millisecond
)

var errAlreadyRunning = errors.New("hub already running")

// PersistQueue accepts persistence work without blocking. sink.Writer
// implements it.
type PersistQueue interface {
	EnqueueReading(reading models.Reading) error
	EnqueueLimits(limits models.Limits) error
}

type discardQueue struct{}

func (discardQueue) EnqueueReading(models.Reading) error { return nil }
func (discardQueue) EnqueueLimits(models.Limits) error   { return nil }

// Option configures a Hub.
type Option func(*Hub)

// WithQueue sets where readings and limit changes are persisted.
func WithQueue(q PersistQueue) Option {
	return func(h *Hub) {
		h.queue = q
	}
}

// WithMetrics records hub activity on m.
func WithMetrics(m *metrics.Hub) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithClock replaces the clock used for purge timers.
func WithClock(c registry.Clock) Option {
	return func(h *Hub) {
		h.clock = c
	}
}

// WithTracer replaces the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(h *Hub) {
		h.tracer = t
	}
}

// Hub wires sessions to the registry, store, router and relay.
type Hub struct {
	cfg     Config
	log     logger.Logger
	metrics *metrics.Hub
	tracer  trace.Tracer
	clock   registry.Clock
	queue   PersistQueue

	// Owned by the dispatch goroutine once Run starts.
	registry *registry.Registry
	store    *state.Store
	router   *broadcast.Router
	relay    *telemetry.Relay
	sessions map[string]*Session

	// Last selectedPumpMode echoed by controllingStatus.
	pumpSelection bool

	inbox    chan command
	done     chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	sessionCount atomic.Int64
	deviceCount  atomic.Int64

	upgrader websocket.Upgrader
}

// New builds a Hub. Nothing is dispatched until Run.
func New(cfg Config, log logger.Logger, opts ...Option) *Hub {
	if log == nil {
		log = logger.Nop()
	}

	cfg.applyDefaults()

	h := &Hub{
		cfg:      cfg,
		log:      log,
		tracer:   logger.GetTracer(tracerName),
		queue:    discardQueue{},
		sessions: make(map[string]*Session),
		inbox:    make(chan command, cfg.InboxSize),
		done:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.registry = registry.New(cfg.Registry, h.clock, h.expire, logger.Wrap(log.WithComponent("registry")))
	h.store = state.NewStore(cfg.InitialLimits)
	h.router = broadcast.NewRouter(logger.Wrap(log.WithComponent("broadcast")), h.metrics)
	h.relay = telemetry.NewRelay(h.registry, h.queue, h.router, logger.Wrap(log.WithComponent("telemetry")))

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return hubhttp.OriginAllowed(h.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}

	return h
}

// HydrateLimits seeds the limits loaded from persistence. Call before Run.
func (h *Hub) HydrateLimits(l models.Limits) {
	h.store.HydrateLimits(l)
}

// Run dispatches commands until ctx ends, then closes every session and
// stops all purge timers.
func (h *Hub) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}

	defer h.shutdown()

	h.log.Info().
		Int("inbox_size", cap(h.inbox)).
		Dur("grace_period", h.cfg.Registry.GracePeriod).
		Msg("Hub dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			return nil
		case cmd := <-h.inbox:
			h.dispatch(ctx, cmd)
		}
	}
}

// Stop ends dispatch without a context. Safe to call more than once.
func (h *Hub) Stop(context.Context) error {
	h.stopOnce.Do(func() {
		close(h.done)
	})

	return nil
}

func (h *Hub) shutdown() {
	_ = h.Stop(context.Background())

	h.registry.Close()

	for id, s := range h.sessions {
		s.state = StateClosed
		s.Close()
		h.router.Remove(id)
		delete(h.sessions, id)
	}

	h.sessionCount.Store(0)

	h.log.Info().Msg("Hub dispatcher stopped")
}

// submit posts cmd to the dispatcher. It blocks while the inbox is full and
// reports false once the hub has stopped.
func (h *Hub) submit(cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.inbox <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// submitContext is submit bounded by ctx, for callers that must not wait on
// a stalled dispatcher.
func (h *Hub) submitContext(ctx context.Context, cmd command) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.inbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrHubStopped
	}
}

// expire runs on a purge timer goroutine.
func (h *Hub) expire(connectionID string) {
	h.submit(command{kind: cmdExpire, connectionID: connectionID})
}

// Snapshot returns the current control state and device list as seen by the
// dispatcher.
func (h *Hub) Snapshot(ctx context.Context) (models.ControlState, []models.DeviceRecord, error) {
	type result struct {
		state   models.ControlState
		devices []models.DeviceRecord
	}

	ch := make(chan result, 1)

	if err := h.submitContext(ctx, command{kind: cmdCall, fn: func() {
		ch <- result{state: h.store.Snapshot(), devices: h.registry.Snapshot()}
	}}); err != nil {
		return models.ControlState{}, nil, err
	}

	select {
	case r := <-ch:
		return r.state, r.devices, nil
	case <-ctx.Done():
		return models.ControlState{}, nil, ctx.Err()
	case <-h.done:
		return models.ControlState{}, nil, ErrHubStopped
	}
}

// Health is the /healthz body.
type Health struct {
	Status   string               `json:"status"`
	Sessions int64                `json:"sessions"`
	Devices  int64                `json:"devices"`
	Inbox    int                  `json:"inbox"`
	State    *models.ControlState `json:"state,omitempty"`
}

// Health reports counters and, when the dispatcher answers in time, the
// control state.
func (h *Hub) Health() Health {
	report := Health{
		Status:   "ok",
		Sessions: h.sessionCount.Load(),
		Devices:  h.deviceCount.Load(),
		Inbox:    len(h.inbox),
	}

	select {
	case <-h.done:
		report.Status = "stopped"
		return report
	default:
	}

	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	st, _, err := h.Snapshot(ctx)
	if err != nil {
		report.Status = "degraded"
		return report
	}

	report.State = &st

	return report
}

func (h *Hub) updateDeviceCount() {
	n := h.registry.Len()
	h.deviceCount.Store(int64(n))
	h.metrics.SetDevices(n)
}
