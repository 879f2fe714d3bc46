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
	"encoding/json"
	"errors"

	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/state"
)

// handlerFunc applies one inbound event. A returned error means the event was
// rejected; the session stays open either way.
type handlerFunc func(h *Hub, s *Session, data json.RawMessage) error

var handlers = map[string]handlerFunc{
	models.EventRegisterDevice:    handleRegisterDevice,
	models.EventDeviceHeartbeat:   handleHeartbeat,
	models.EventToggleLED:         handleLED,
	models.EventLEDStatus:         handleLED,
	models.EventControllingStatus: handleControllingStatus,
	models.EventTogglePumpMode:    handleTogglePumpMode,
	models.EventToggleReservoir1:  reservoirHandler(1, models.EventToggleReservoir1, models.EventReservoir1State),
	models.EventToggleReservoir2:  reservoirHandler(2, models.EventToggleReservoir2, models.EventReservoir2State),
	models.EventSetNewLimit:       handleSetNewLimit,
	models.EventSensorsData:       handleSensorsData,
}

func handleRegisterDevice(h *Hub, s *Session, data json.RawMessage) error {
	p, err := models.DecodeRegisterDevice(data)
	if err != nil {
		return err
	}

	snapshot := h.registry.Register(s.id, p.DeviceID, p.DeviceType)
	h.updateDeviceCount()

	return h.router.Emit(models.EventDeviceUpdate, snapshot)
}

func handleHeartbeat(h *Hub, s *Session, _ json.RawMessage) error {
	if !h.registry.Heartbeat(s.id) {
		s.log.Debug().Msg("Heartbeat from unregistered connection")
	}

	return nil
}

func handleLED(h *Hub, _ *Session, data json.RawMessage) error {
	v, err := models.DecodeBool(data)
	if err != nil {
		return err
	}

	if !h.store.SetLED(v) {
		return nil
	}

	return h.router.Emit(models.EventLEDState, v)
}

// handleControllingStatus broadcasts when the LED or the echoed pump
// selection changed. The selection is relayed as sent and never touches pump
// mode.
func handleControllingStatus(h *Hub, _ *Session, data json.RawMessage) error {
	p, err := models.DecodeControllingStatus(data)
	if err != nil {
		return err
	}

	ledChanged := h.store.SetLED(*p.NewLEDState)

	selectionChanged := h.pumpSelection != *p.SelectedPumpMode
	h.pumpSelection = *p.SelectedPumpMode

	if !ledChanged && !selectionChanged {
		return nil
	}

	return h.router.Emit(models.EventControllingStatus, models.ControllingStatusUpdate{
		LEDState:         *p.NewLEDState,
		SelectedPumpMode: *p.SelectedPumpMode,
	})
}

func handleTogglePumpMode(h *Hub, _ *Session, data json.RawMessage) error {
	v, err := models.DecodeBool(data)
	if err != nil {
		return err
	}

	change := h.store.SetPumpMode(v)
	if !change.Changed {
		return nil
	}

	return errors.Join(
		h.router.Emit(models.EventSelectedPumpMode, change.PumpMode),
		h.router.Emit(models.EventReservoir1State, change.Reservoir1),
		h.router.Emit(models.EventReservoir2State, change.Reservoir2),
	)
}

// reservoirHandler toggles reservoir n. Opening it during pump mode is
// refused and the sender alone is told the reservoir stays closed.
func reservoirHandler(n int, inbound, outbound string) handlerFunc {
	return func(h *Hub, s *Session, data json.RawMessage) error {
		v, err := models.DecodeBool(data)
		if err != nil {
			return err
		}

		changed, err := h.store.SetReservoir(n, v)
		if errors.Is(err, state.ErrReservoirLocked) {
			s.log.Info().Int("reservoir", n).Msg("Reservoir request refused while pump mode is active")
			h.metrics.EventRejected(inbound, "reservoir_locked")

			current, _ := h.store.Reservoir(n)

			return h.router.Send(s, outbound, current)
		}

		if err != nil {
			return err
		}

		if !changed {
			return nil
		}

		return h.router.Emit(outbound, v)
	}
}

// handleSetNewLimit replaces the limit triple, persists it and broadcasts it
// in wire order when it changed. The last writer wins even for an inverted
// band.
func handleSetNewLimit(h *Hub, s *Session, data json.RawMessage) error {
	limits, err := models.DecodeLimits(data)
	if err != nil {
		return err
	}

	if limits.Validate() != nil {
		s.log.Warn().
			Float64("upper", limits.SoilMoistureUpper).
			Float64("lower", limits.SoilMoistureLower).
			Msg("Applying limits with lower above upper")
	}

	changed := h.store.SetLimits(limits)

	if err := h.queue.EnqueueLimits(limits); err != nil {
		s.log.Warn().Err(err).Msg("Limits not persisted")
	}

	if !changed {
		return nil
	}

	return h.router.Emit(models.EventSetNewLimit, limits.Triple())
}

func handleSensorsData(h *Hub, s *Session, data json.RawMessage) error {
	report, err := models.DecodeSensorReport(data)
	if err != nil {
		return err
	}

	return h.relay.Report(s.id, report)
}
