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

// Package registry tracks the devices attached to the hub, keyed by
// connection id, and expires disconnected devices after a grace window.
package registry

import (
	"sort"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
)

// Config controls registry behavior.
type Config struct {
	GracePeriod       time.Duration
	DefaultDeviceType string
}

// Registry holds one DeviceRecord per registered connection.
//
// Registry is not safe for concurrent use. Every method must be called from
// the hub's dispatch goroutine; timers only report expiry through ExpiryFunc.
type Registry struct {
	clock       Clock
	grace       time.Duration
	defaultType string
	onExpiry    ExpiryFunc
	log         logger.Logger

	records map[string]*models.DeviceRecord
	purges  map[string]Timer
}

// New creates a Registry. A nil clock uses RealClock and a nil logger discards.
func New(cfg Config, clock Clock, onExpiry ExpiryFunc, log logger.Logger) *Registry {
	if clock == nil {
		clock = RealClock{}
	}

	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = models.DefaultGracePeriod
	}

	if cfg.DefaultDeviceType == "" {
		cfg.DefaultDeviceType = models.DefaultDeviceType
	}

	if onExpiry == nil {
		onExpiry = func(string) {}
	}

	if log == nil {
		log = logger.Nop()
	}

	return &Registry{
		clock:       clock,
		grace:       cfg.GracePeriod,
		defaultType: cfg.DefaultDeviceType,
		onExpiry:    onExpiry,
		log:         log,
		records:     make(map[string]*models.DeviceRecord),
		purges:      make(map[string]Timer),
	}
}

// Register inserts or overwrites the record for connectionID and cancels any
// pending purge for it. It returns the full snapshot.
func (r *Registry) Register(connectionID, deviceID, deviceType string) []models.DeviceRecord {
	now := r.clock.Now()

	if deviceType == "" {
		deviceType = r.defaultType
	}

	r.cancelPurge(connectionID)

	registeredAt := now
	if existing, ok := r.records[connectionID]; ok {
		registeredAt = existing.RegisteredAt
	}

	r.records[connectionID] = &models.DeviceRecord{
		ConnectionID: connectionID,
		DeviceID:     deviceID,
		DeviceType:   deviceType,
		LastSeen:     now,
		Connected:    true,
		RegisteredAt: registeredAt,
	}

	r.log.Info().
		Str("connection_id", connectionID).
		Str("device_id", deviceID).
		Str("device_type", deviceType).
		Msg("Device registered")

	return r.Snapshot()
}

// Heartbeat refreshes lastSeen. It reports false for unknown connections.
func (r *Registry) Heartbeat(connectionID string) bool {
	rec, ok := r.records[connectionID]
	if !ok {
		return false
	}

	rec.LastSeen = r.clock.Now()

	return true
}

// MarkDisconnected flags the record as disconnected and schedules its purge.
// It reports false when connectionID was never registered.
func (r *Registry) MarkDisconnected(connectionID string) ([]models.DeviceRecord, bool) {
	rec, ok := r.records[connectionID]
	if !ok {
		return nil, false
	}

	now := r.clock.Now()
	rec.Connected = false
	rec.DisconnectedAt = &now

	r.cancelPurge(connectionID)
	r.purges[connectionID] = r.clock.AfterFunc(r.grace, func() {
		r.onExpiry(connectionID)
	})

	r.log.Info().
		Str("connection_id", connectionID).
		Str("device_id", rec.DeviceID).
		Dur("grace_period", r.grace).
		Msg("Device disconnected")

	return r.Snapshot(), true
}

// Purge removes the record if it is still disconnected and its grace window
// has elapsed. It reports whether anything was removed.
func (r *Registry) Purge(connectionID string) ([]models.DeviceRecord, bool) {
	rec, ok := r.records[connectionID]
	if !ok {
		delete(r.purges, connectionID)

		return nil, false
	}

	if rec.Connected || rec.DisconnectedAt == nil {
		return nil, false
	}

	// A stale expiry from an earlier disconnect can arrive after a reconnect
	// and a second disconnect.
	if r.clock.Now().Sub(*rec.DisconnectedAt) < r.grace {
		return nil, false
	}

	delete(r.purges, connectionID)
	delete(r.records, connectionID)

	r.log.Info().
		Str("connection_id", connectionID).
		Str("device_id", rec.DeviceID).
		Msg("Device purged")

	return r.Snapshot(), true
}

// DeviceID returns the device id registered on connectionID.
func (r *Registry) DeviceID(connectionID string) (string, bool) {
	rec, ok := r.records[connectionID]
	if !ok {
		return "", false
	}

	return rec.DeviceID, true
}

// Snapshot returns copies of every record ordered by registration time, then
// connection id.
func (r *Registry) Snapshot() []models.DeviceRecord {
	out := make([]models.DeviceRecord, 0, len(r.records))

	for _, rec := range r.records {
		out = append(out, rec.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].RegisteredAt.Equal(out[j].RegisteredAt) {
			return out[i].RegisteredAt.Before(out[j].RegisteredAt)
		}

		return out[i].ConnectionID < out[j].ConnectionID
	})

	return out
}

// Len returns the number of records, connected or not.
func (r *Registry) Len() int {
	return len(r.records)
}

// Pending returns the number of scheduled purges.
func (r *Registry) Pending() int {
	return len(r.purges)
}

// Close stops every outstanding purge timer.
func (r *Registry) Close() {
	for id, t := range r.purges {
		t.Stop()
		delete(r.purges, id)
	}
}

func (r *Registry) cancelPurge(connectionID string) {
	t, ok := r.purges[connectionID]
	if !ok {
		return
	}

	t.Stop()
	delete(r.purges, connectionID)

	r.log.Debug().Str("connection_id", connectionID).Msg("Cancelled pending purge")
}
