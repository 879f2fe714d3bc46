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
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/registry"
)

const testGrace = 300 * time.Second

type recordingQueue struct {
	mu       sync.Mutex
	readings []models.Reading
	limits   []models.Limits
	err      error
}

func (q *recordingQueue) EnqueueReading(r models.Reading) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.readings = append(q.readings, r)

	return q.err
}

func (q *recordingQueue) EnqueueLimits(l models.Limits) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.limits = append(q.limits, l)

	return q.err
}

func (q *recordingQueue) snapshot() ([]models.Reading, []models.Limits) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]models.Reading(nil), q.readings...), append([]models.Limits(nil), q.limits...)
}

// testHub runs a Hub on a fake clock. Purge timers only fire through fireTimers.
type testHub struct {
	*Hub
	t     *testing.T
	queue *recordingQueue

	mu     sync.Mutex
	now    time.Time
	timers []func()
}

func newTestHub(t *testing.T, cfg Config) *testHub {
	t.Helper()

	ctrl := gomock.NewController(t)

	th := &testHub{
		t:     t,
		queue: &recordingQueue{},
		now:   time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	clock := registry.NewMockClock(ctrl)
	clock.EXPECT().Now().DoAndReturn(func() time.Time {
		th.mu.Lock()
		defer th.mu.Unlock()

		return th.now
	}).AnyTimes()
	clock.EXPECT().AfterFunc(testGrace, gomock.Any()).DoAndReturn(func(_ time.Duration, f func()) registry.Timer {
		th.mu.Lock()
		th.timers = append(th.timers, f)
		th.mu.Unlock()

		timer := registry.NewMockTimer(ctrl)
		timer.EXPECT().Stop().Return(true).AnyTimes()

		return timer
	}).AnyTimes()

	if cfg.Registry.GracePeriod == 0 {
		cfg.Registry.GracePeriod = testGrace
	}

	if cfg.InitialLimits == (models.Limits{}) {
		cfg.InitialLimits = models.DefaultLimits()
	}

	th.Hub = New(cfg, logger.NewTestLogger(), WithClock(clock), WithQueue(th.queue))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- th.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return th
}

// sync returns once every command submitted so far has been dispatched.
func (th *testHub) sync() {
	th.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _, err := th.Snapshot(ctx)
	require.NoError(th.t, err)
}

func (th *testHub) state() (models.ControlState, []models.DeviceRecord) {
	th.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, devices, err := th.Snapshot(ctx)
	require.NoError(th.t, err)

	return st, devices
}

// connect opens a session without a transport and discards its bootstrap.
func (th *testHub) connect() *Session {
	th.t.Helper()

	s := th.connectRaw()
	s.take()

	return s
}

func (th *testHub) connectRaw() *Session {
	th.t.Helper()

	s := newSession(th.Hub, nil, "test")
	require.True(th.t, th.submit(command{kind: cmdConnect, session: s}))
	th.sync()

	return s
}

func (th *testHub) send(s *Session, event string, data interface{}) {
	th.t.Helper()

	env := models.Envelope{Event: event}

	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(th.t, err)

		env.Data = raw
	}

	require.True(th.t, th.submit(command{kind: cmdMessage, session: s, env: env, received: time.Now()}))
	th.sync()
}

func (th *testHub) closeSession(s *Session) {
	th.t.Helper()

	require.True(th.t, th.submit(command{kind: cmdDisconnect, session: s}))
	th.sync()
}

func (th *testHub) advance(d time.Duration) {
	th.mu.Lock()
	th.now = th.now.Add(d)
	th.mu.Unlock()
}

// fireTimers runs every purge callback scheduled so far.
func (th *testHub) fireTimers() {
	th.t.Helper()

	th.mu.Lock()
	timers := th.timers
	th.timers = nil
	th.mu.Unlock()

	for _, f := range timers {
		f()
	}

	th.sync()
}

type frame struct {
	Event string
	Data  json.RawMessage
}

// frames drains and decodes everything queued for s.
func frames(t *testing.T, s *Session) []frame {
	t.Helper()

	var out []frame

	for _, raw := range s.take() {
		env, err := models.DecodeEnvelope(raw)
		require.NoError(t, err)

		out = append(out, frame{Event: env.Event, Data: env.Data})
	}

	return out
}

func events(fs []frame) []string {
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Event)
	}

	return names
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))

	return v
}
