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

// Package telemetry relays device sensor reports to persistence and to every
// connected peer.
package telemetry

import (
	"errors"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
)

var errIncompleteReport = errors.New("incomplete sensor report")

// DeviceLookup resolves the device registered on a connection.
type DeviceLookup interface {
	DeviceID(connectionID string) (string, bool)
}

// ReadingQueue accepts readings without blocking.
type ReadingQueue interface {
	EnqueueReading(reading models.Reading) error
}

// Emitter broadcasts one event to every peer.
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// Relay forwards sensor reports.
type Relay struct {
	devices DeviceLookup
	queue   ReadingQueue
	emitter Emitter
	now     func() time.Time
	log     logger.Logger
}

// NewRelay creates a Relay. queue may be nil when nothing is persisted.
func NewRelay(devices DeviceLookup, queue ReadingQueue, emitter Emitter, log logger.Logger) *Relay {
	if log == nil {
		log = logger.Nop()
	}

	return &Relay{
		devices: devices,
		queue:   queue,
		emitter: emitter,
		now:     time.Now,
		log:     log,
	}
}

// Report persists the reading best-effort and broadcasts it unconditionally.
// Only a broadcast encoding failure is returned; persistence problems are
// logged and never reach peers.
func (r *Relay) Report(connectionID string, report models.SensorReport) error {
	if !report.Complete() {
		return errIncompleteReport
	}

	deviceID, ok := r.devices.DeviceID(connectionID)
	if !ok {
		deviceID = models.UnknownDeviceID
	}

	reading := report.Reading(deviceID, r.now())

	if r.queue != nil {
		if err := r.queue.EnqueueReading(reading); err != nil {
			r.log.Warn().
				Err(err).
				Str("device_id", deviceID).
				Msg("Reading not persisted")
		}
	}

	return r.emitter.Emit(models.EventSensorsData, models.SensorsData{
		SoilMoisture:     reading.SoilMoisture,
		Temperature:      reading.Temperature,
		WaterLevel:       reading.WaterLevel,
		NewLEDState:      reading.LEDState,
		SelectedPumpMode: reading.PumpMode,
	})
}
