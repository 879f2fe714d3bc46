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
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/sink"
)

var _ sink.Sink = (*EventPublisher)(nil)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
	})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	t.Cleanup(srv.Shutdown)

	return srv
}

func newTestPublisher(t *testing.T, ctx context.Context, url string) *EventPublisher {
	t.Helper()

	cfg := &models.NATSConfig{URL: url, Stream: "IRRIGATION", SubjectPrefix: "irrigation"}

	nc, err := Connect(ctx, cfg, logger.NewTestLogger())
	require.NoError(t, err)

	pub, err := NewEventPublisher(ctx, nc, cfg, logger.NewTestLogger())
	require.NoError(t, err)

	t.Cleanup(func() { _ = pub.Close() })

	return pub
}

func TestEventPublisherPublishesCloudEvents(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)
	pub := newTestPublisher(t, ctx, srv.ClientURL())

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.SaveReading(ctx, models.Reading{
		DeviceID:     "esp.1",
		Temperature:  22,
		SoilMoisture: 41,
		WaterLevel:   80,
		Timestamp:    ts,
	}))
	require.NoError(t, pub.UpdateLimits(ctx, models.Limits{
		SoilMoistureUpper: 70, SoilMoistureLower: 35, WaterLevel: 15,
	}))

	stream, err := pub.js.Stream(ctx, "IRRIGATION")
	require.NoError(t, err)

	msg, err := stream.GetLastMsgForSubject(ctx, "irrigation.readings.esp_1")
	require.NoError(t, err)

	var reading struct {
		models.CloudEvent
		Data models.Reading `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &reading))

	assert.Equal(t, "1.0", reading.SpecVersion)
	assert.Equal(t, models.CloudEventReading, reading.Type)
	assert.Equal(t, "irrigation.readings.esp_1", reading.Subject)
	assert.NotEmpty(t, reading.ID)
	assert.Equal(t, "esp.1", reading.Data.DeviceID)
	assert.InDelta(t, 41, reading.Data.SoilMoisture, 0)
	require.NotNil(t, reading.Time)
	assert.True(t, ts.Equal(*reading.Time))

	msg, err = stream.GetLastMsgForSubject(ctx, "irrigation.limits")
	require.NoError(t, err)

	var limits struct {
		Type string        `json:"type"`
		Data models.Limits `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Data, &limits))

	assert.Equal(t, models.CloudEventLimits, limits.Type)
	assert.Equal(t, models.Limits{SoilMoistureUpper: 70, SoilMoistureLower: 35, WaterLevel: 15}, limits.Data)
}

func TestEventPublisherExtendsExistingStream(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	srv := runJetStreamServer(t)

	nc, err := Connect(ctx, &models.NATSConfig{URL: srv.ClientURL()}, nil)
	require.NoError(t, err)
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{Name: "IRRIGATION", Subjects: []string{"audit.*"}})
	require.NoError(t, err)

	pub := newTestPublisher(t, ctx, srv.ClientURL())

	stream, err := pub.js.Stream(ctx, "IRRIGATION")
	require.NoError(t, err)
	assert.Equal(t, []string{"audit.*", "irrigation.>"}, stream.CachedInfo().Config.Subjects)
}

func TestEnsureSubjectList(t *testing.T) {
	tests := []struct {
		name     string
		subjects []string
		want     []string
	}{
		{name: "empty", want: []string{"irrigation.>"}},
		{name: "already covered", subjects: []string{">"}, want: []string{">"}},
		{name: "exact", subjects: []string{"irrigation.>"}, want: []string{"irrigation.>"}},
		{name: "unrelated", subjects: []string{"logs.*"}, want: []string{"logs.*", "irrigation.>"}},
		{
			name:     "narrower pattern does not cover",
			subjects: []string{"irrigation.readings.*"},
			want:     []string{"irrigation.readings.*", "irrigation.>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ensureSubjectList(tt.subjects, "irrigation.>"))
		})
	}
}

func TestMatchesSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"irrigation.limits", "irrigation.limits", true},
		{"irrigation.*", "irrigation.limits", true},
		{"irrigation.*", "irrigation.readings.esp", false},
		{"irrigation.>", "irrigation.readings.esp", true},
		{"irrigation.>", "irrigation", false},
		{"other.>", "irrigation.limits", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, matchesSubject(tt.pattern, tt.subject), "%s vs %s", tt.pattern, tt.subject)
	}
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "esp-1", subjectToken("esp-1"))
	assert.Equal(t, "greenhouse_bed_3", subjectToken("greenhouse.bed 3"))
	assert.Equal(t, "a__b", subjectToken("a*>b"))
	assert.Equal(t, models.UnknownDeviceID, subjectToken(""))
}
