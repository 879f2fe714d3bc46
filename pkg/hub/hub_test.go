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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/irrigationhub/pkg/models"
)

func TestBootstrapOrderAndValues(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()
	th.send(a, models.EventToggleLED, true)
	th.send(a, models.EventToggleReservoir2, true)
	th.send(a, models.EventSetNewLimit, []float64{70, 35, 15})
	th.send(a, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1"})

	b := th.connectRaw()
	got := frames(t, b)

	require.Equal(t, []string{
		models.EventLEDState,
		models.EventReservoir1State,
		models.EventReservoir2State,
		models.EventUpperLimit,
		models.EventLowerLimit,
		models.EventWaterLevelLimit,
		models.EventConnectedDevices,
	}, events(got))

	assert.True(t, decode[bool](t, got[0]))
	assert.False(t, decode[bool](t, got[1]))
	assert.True(t, decode[bool](t, got[2]))
	assert.InDelta(t, 70, decode[float64](t, got[3]), 0)
	assert.InDelta(t, 35, decode[float64](t, got[4]), 0)
	assert.InDelta(t, 15, decode[float64](t, got[5]), 0)

	devices := decode[[]models.DeviceRecord](t, got[6])
	require.Len(t, devices, 1)
	assert.Equal(t, "esp-1", devices[0].DeviceID)
	assert.Equal(t, a.ID(), devices[0].ConnectionID)
}

func TestBootstrapEmptyRegistrySendsEmptyList(t *testing.T) {
	th := newTestHub(t, Config{})

	got := frames(t, th.connectRaw())
	require.Len(t, got, 7)
	assert.JSONEq(t, `[]`, string(got[6].Data))
}

func TestToggleLEDReachesEverySessionIncludingSender(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b, c := th.connect(), th.connect(), th.connect()

	th.send(a, models.EventToggleLED, true)

	for _, s := range []*Session{a, b, c} {
		got := frames(t, s)
		require.Len(t, got, 1)
		assert.Equal(t, models.EventLEDState, got[0].Event)
		assert.True(t, decode[bool](t, got[0]))
	}
}

func TestEqualValueIsAcceptedWithoutBroadcast(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()

	th.send(a, models.EventToggleLED, false)
	th.send(a, models.EventLEDStatus, false)
	th.send(a, models.EventTogglePumpMode, false)
	th.send(a, models.EventToggleReservoir1, false)
	th.send(a, models.EventSetNewLimit, models.DefaultLimits().Triple())

	assert.Empty(t, frames(t, a))

	_, limits := th.queue.snapshot()
	assert.Equal(t, []models.Limits{models.DefaultLimits()}, limits, "unchanged limits are still persisted")
}

func TestLastLEDWriteIsBootstrapped(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()
	th.send(a, models.EventToggleLED, true)
	th.send(a, models.EventLEDStatus, false)
	th.send(a, models.EventToggleLED, true)
	th.send(a, models.EventControllingStatus, map[string]bool{"newLedState": false, "selectedPumpMode": true})

	got := frames(t, th.connectRaw())
	require.NotEmpty(t, got)
	assert.Equal(t, models.EventLEDState, got[0].Event)
	assert.False(t, decode[bool](t, got[0]))
}

func TestControllingStatusBroadcastsOnChange(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b := th.connect(), th.connect()

	status := func(led, pump bool) map[string]bool {
		return map[string]bool{"newLedState": led, "selectedPumpMode": pump}
	}

	th.send(a, models.EventControllingStatus, status(false, false))
	assert.Empty(t, frames(t, b), "nothing changed")

	th.send(a, models.EventControllingStatus, status(false, true))

	got := frames(t, b)
	require.Len(t, got, 1, "pump selection alone is relayed")
	assert.Equal(t, models.EventControllingStatus, got[0].Event)
	assert.Equal(t, models.ControllingStatusUpdate{LEDState: false, SelectedPumpMode: true},
		decode[models.ControllingStatusUpdate](t, got[0]))

	assert.Len(t, frames(t, a), 1)

	th.send(a, models.EventControllingStatus, status(false, true))
	assert.Empty(t, frames(t, b))

	th.send(a, models.EventControllingStatus, status(true, true))

	got = frames(t, a)
	require.Len(t, got, 1)
	assert.Equal(t, models.ControllingStatusUpdate{LEDState: true, SelectedPumpMode: true},
		decode[models.ControllingStatusUpdate](t, got[0]))

	st, _ := th.state()
	assert.True(t, st.LEDState)
	assert.False(t, st.PumpMode, "controllingStatus does not change pump mode")
}

func TestPumpModeForcesReservoirsClosed(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b := th.connect(), th.connect()

	th.send(a, models.EventToggleReservoir1, true)
	th.send(a, models.EventToggleReservoir2, true)
	frames(t, a)
	frames(t, b)

	th.send(b, models.EventTogglePumpMode, true)

	for _, s := range []*Session{a, b} {
		got := frames(t, s)
		require.Equal(t, []string{
			models.EventSelectedPumpMode,
			models.EventReservoir1State,
			models.EventReservoir2State,
		}, events(got))
		assert.True(t, decode[bool](t, got[0]))
		assert.False(t, decode[bool](t, got[1]))
		assert.False(t, decode[bool](t, got[2]))
	}

	st, _ := th.state()
	assert.True(t, st.PumpMode)
	assert.False(t, st.Reservoir1)
	assert.False(t, st.Reservoir2)
}

func TestReservoirLockedDuringPumpMode(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b := th.connect(), th.connect()

	th.send(a, models.EventTogglePumpMode, true)
	frames(t, a)
	frames(t, b)

	th.send(b, models.EventToggleReservoir1, true)

	assert.Empty(t, frames(t, a), "refusal is not broadcast")

	got := frames(t, b)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventReservoir1State, got[0].Event)
	assert.False(t, decode[bool](t, got[0]))

	st, _ := th.state()
	assert.False(t, st.Reservoir1)

	th.send(a, models.EventTogglePumpMode, false)
	frames(t, a)
	frames(t, b)

	th.send(b, models.EventToggleReservoir1, true)

	got = frames(t, a)
	require.Len(t, got, 1)
	assert.True(t, decode[bool](t, got[0]))
}

func TestSetNewLimit(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
	}{
		{name: "array", data: []float64{72, 28, 12}},
		{name: "object", data: map[string]float64{"upperLimit": 72, "lowerLimit": 28, "waterLevelLimit": 12}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := newTestHub(t, Config{})

			a, b := th.connect(), th.connect()
			th.send(a, models.EventSetNewLimit, tt.data)

			want := models.Limits{SoilMoistureUpper: 72, SoilMoistureLower: 28, WaterLevel: 12}

			for _, s := range []*Session{a, b} {
				got := frames(t, s)
				require.Len(t, got, 1)
				assert.Equal(t, models.EventSetNewLimit, got[0].Event)
				assert.Equal(t, []float64{72, 28, 12}, decode[[]float64](t, got[0]))
			}

			_, limits := th.queue.snapshot()
			assert.Equal(t, []models.Limits{want}, limits)

			st, _ := th.state()
			assert.Equal(t, want, st.Limits)
		})
	}
}

func TestSetNewLimitInvertedBandIsApplied(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b := th.connect(), th.connect()
	th.send(a, models.EventSetNewLimit, []float64{20, 40, 10})

	want := models.Limits{SoilMoistureUpper: 20, SoilMoistureLower: 40, WaterLevel: 10}

	for _, s := range []*Session{a, b} {
		got := frames(t, s)
		require.Len(t, got, 1)
		assert.Equal(t, []float64{20, 40, 10}, decode[[]float64](t, got[0]))
	}

	st, _ := th.state()
	assert.Equal(t, want, st.Limits)

	_, limits := th.queue.snapshot()
	assert.Equal(t, []models.Limits{want}, limits)
}

func TestSetNewLimitPersistenceFailureStillApplies(t *testing.T) {
	th := newTestHub(t, Config{})
	th.queue.err = assert.AnError

	a := th.connect()
	th.send(a, models.EventSetNewLimit, []float64{80, 40, 25})

	require.Len(t, frames(t, a), 1)

	st, _ := th.state()
	assert.InDelta(t, 80, st.Limits.SoilMoistureUpper, 0)
}

func TestMalformedPayloadsAreNoOps(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()

	th.send(a, models.EventToggleLED, "yes")
	th.send(a, models.EventToggleLED, nil)
	th.send(a, models.EventRegisterDevice, map[string]string{"deviceType": "esp32"})
	th.send(a, models.EventControllingStatus, map[string]bool{"newLedState": true})
	th.send(a, models.EventSetNewLimit, []float64{1, 2})
	th.send(a, models.EventSensorsData, map[string]float64{"soilMoisture": 1})
	th.send(a, "selfDestruct", true)

	assert.Empty(t, frames(t, a))

	st, devices := th.state()
	assert.Equal(t, models.ControlState{Limits: models.DefaultLimits()}, st)
	assert.Empty(t, devices)

	readings, limits := th.queue.snapshot()
	assert.Empty(t, readings)
	assert.Empty(t, limits)
}

func TestSensorsDataRelay(t *testing.T) {
	th := newTestHub(t, Config{})

	device, web := th.connect(), th.connect()

	report := map[string]interface{}{
		"soilMoisture":     42.5,
		"temperature":      21.0,
		"waterLevel":       77.0,
		"newLedState":      true,
		"selectedPumpMode": false,
	}

	th.send(device, models.EventSensorsData, report)

	th.send(device, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1", "deviceType": "esp32"})
	frames(t, device)
	frames(t, web)

	th.send(device, models.EventSensorsData, report)

	got := frames(t, web)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventSensorsData, got[0].Event)
	assert.Equal(t, models.SensorsData{
		SoilMoisture:     42.5,
		Temperature:      21,
		WaterLevel:       77,
		NewLEDState:      true,
		SelectedPumpMode: false,
	}, decode[models.SensorsData](t, got[0]))

	readings, _ := th.queue.snapshot()
	require.Len(t, readings, 2)
	assert.Equal(t, models.UnknownDeviceID, readings[0].DeviceID)
	assert.Equal(t, "esp-1", readings[1].DeviceID)
	assert.InDelta(t, 42.5, readings[1].SoilMoisture, 0)
	assert.False(t, readings[1].Timestamp.IsZero())

	st, _ := th.state()
	assert.False(t, st.LEDState, "sensor reports do not touch control state")
}

func TestHeartbeat(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()

	th.send(a, models.EventDeviceHeartbeat, nil)

	th.send(a, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1"})
	th.advance(30 * time.Second)
	th.send(a, models.EventDeviceHeartbeat, map[string]int{"uptime": 12})

	_, devices := th.state()
	require.Len(t, devices, 1)
	assert.Equal(t, time.Date(2025, 5, 1, 9, 0, 30, 0, time.UTC), devices[0].LastSeen)
}

func TestRegisterTwiceKeepsOneRecord(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()

	th.send(a, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1"})
	th.send(a, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1", "deviceType": "esp32"})

	got := frames(t, a)
	require.Len(t, got, 2)

	devices := decode[[]models.DeviceRecord](t, got[1])
	require.Len(t, devices, 1)
	assert.Equal(t, "esp32", devices[0].DeviceType)
	assert.Equal(t, int64(1), th.Health().Devices)
}

func TestDisconnectThenPurge(t *testing.T) {
	th := newTestHub(t, Config{})

	device, web := th.connect(), th.connect()

	th.send(device, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1"})

	got := frames(t, web)
	require.Len(t, got, 1)
	require.Len(t, decode[[]models.DeviceRecord](t, got[0]), 1)

	th.closeSession(device)

	got = frames(t, web)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventDeviceUpdate, got[0].Event)

	devices := decode[[]models.DeviceRecord](t, got[0])
	require.Len(t, devices, 1)
	assert.False(t, devices[0].Connected)
	require.NotNil(t, devices[0].DisconnectedAt)

	th.advance(testGrace)
	th.fireTimers()

	got = frames(t, web)
	require.Len(t, got, 1)
	assert.Equal(t, models.EventDeviceUpdate, got[0].Event)
	assert.JSONEq(t, `[]`, string(got[0].Data))
	assert.Equal(t, int64(0), th.Health().Devices)
}

func TestWebClientDisconnectIsSilent(t *testing.T) {
	th := newTestHub(t, Config{})

	web, other := th.connect(), th.connect()

	th.closeSession(web)

	assert.Empty(t, frames(t, other))
	assert.Equal(t, int64(1), th.Health().Sessions)
}

func TestMessagesFromClosedSessionAreDropped(t *testing.T) {
	th := newTestHub(t, Config{})

	a, b := th.connect(), th.connect()

	th.closeSession(a)
	th.send(a, models.EventToggleLED, true)

	assert.Empty(t, frames(t, b))

	st, _ := th.state()
	assert.False(t, st.LEDState)

	assert.ErrorIs(t, a.Enqueue([]byte(`{}`)), ErrSessionClosed)
}

func TestMessagesBeforeOpenAreDropped(t *testing.T) {
	th := newTestHub(t, Config{})

	s := newSession(th.Hub, nil, "test")
	th.send(s, models.EventToggleLED, true)

	st, _ := th.state()
	assert.False(t, st.LEDState)
}

func TestDispatcherRecoversFromPanic(t *testing.T) {
	th := newTestHub(t, Config{})

	require.True(t, th.submit(command{kind: cmdCall, fn: func() { panic("boom") }}))

	a := th.connect()
	th.send(a, models.EventToggleLED, true)

	require.Len(t, frames(t, a), 1)
}

func TestSlowPeerIsClosed(t *testing.T) {
	th := newTestHub(t, Config{MaxPendingFrames: 3})

	s := th.connectRaw()

	select {
	case <-s.done:
	default:
		t.Fatal("session exceeding max_pending_frames was not closed")
	}

	assert.ErrorIs(t, s.Enqueue([]byte(`{}`)), ErrSessionClosed)
	assert.Empty(t, s.take())
}

func TestHealth(t *testing.T) {
	th := newTestHub(t, Config{})

	a := th.connect()
	th.connect()
	th.send(a, models.EventRegisterDevice, map[string]string{"deviceId": "esp-1"})
	th.send(a, models.EventToggleLED, true)

	report := th.Health()
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, int64(2), report.Sessions)
	assert.Equal(t, int64(1), report.Devices)
	require.NotNil(t, report.State)
	assert.True(t, report.State.LEDState)
}

func TestHealthDegradedWhenDispatcherStalls(t *testing.T) {
	h := New(Config{InboxSize: 1}, nil)

	require.True(t, h.submit(command{kind: cmdCall, fn: func() {}}), "fills the inbox")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, _, err := h.Snapshot(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan Health, 1)
	go func() { done <- h.Health() }()

	select {
	case report := <-done:
		assert.Equal(t, "degraded", report.Status)
		assert.Nil(t, report.State)
		assert.Equal(t, 1, report.Inbox)
	case <-time.After(5 * time.Second):
		t.Fatal("Health blocked on a full inbox")
	}
}

func TestRunStopsSessionsAndRejectsWork(t *testing.T) {
	h := New(Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- h.Run(ctx) }()

	s := newSession(h, nil, "test")
	require.True(t, h.submit(command{kind: cmdConnect, session: s}))

	_, _, err := h.Snapshot(context.Background())
	require.NoError(t, err)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	select {
	case <-s.done:
	default:
		t.Fatal("session not closed on shutdown")
	}

	_, _, err = h.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrHubStopped)
	assert.Equal(t, "stopped", h.Health().Status)
	assert.ErrorIs(t, h.Run(context.Background()), errAlreadyRunning)
}
