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

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound event names.
const (
	EventRegisterDevice   = "registerDevice"
	EventDeviceHeartbeat  = "deviceHeartbeat"
	EventToggleLED        = "toggleLED"
	EventLEDStatus        = "ledStatus"
	EventToggleReservoir1 = "toggleReservoir1"
	EventToggleReservoir2 = "toggleReservoir2"
	EventTogglePumpMode   = "togglePumpMode"
)

// Outbound event names.
const (
	EventLEDState         = "ledState"
	EventReservoir1State  = "reservoir1State"
	EventReservoir2State  = "reservoir2State"
	EventSelectedPumpMode = "selectedPumpMode"
	EventUpperLimit       = "soilMoistureUpperLimit"
	EventLowerLimit       = "soilMoistureLowerLimit"
	EventWaterLevelLimit  = "waterLevelLimit"
	EventConnectedDevices = "connectedDevices"
	EventDeviceUpdate     = "deviceUpdate"
)

// Events that travel in both directions under the same name.
const (
	EventControllingStatus = "controllingStatus"
	EventSetNewLimit       = "setNewLimit"
	EventSensorsData       = "sensorsData_controllingStatus"
)

// Envelope is the JSON shape of every WebSocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeEnvelope parses a raw frame. The event name is mandatory.
func DecodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope

	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	if env.Event == "" {
		return env, ErrMissingEvent
	}

	return env, nil
}

// EncodeEnvelope renders one outbound frame.
func EncodeEnvelope(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}

	return json.Marshal(Envelope{Event: event, Data: data})
}

// RegisterDevice is the registerDevice payload.
type RegisterDevice struct {
	DeviceID   string `json:"deviceId"`
	DeviceType string `json:"deviceType,omitempty"`
}

// ControllingStatus is the inbound controllingStatus payload.
type ControllingStatus struct {
	NewLEDState      *bool `json:"newLedState"`
	SelectedPumpMode *bool `json:"selectedPumpMode"`
}

// ControllingStatusUpdate is broadcast after a controllingStatus changed the LED.
type ControllingStatusUpdate struct {
	LEDState         bool `json:"ledState"`
	SelectedPumpMode bool `json:"selectedPumpMode"`
}

// SensorsData is the broadcast form of a sensor report.
type SensorsData struct {
	SoilMoisture     float64 `json:"soilMoisture"`
	Temperature      float64 `json:"temperature"`
	WaterLevel       float64 `json:"waterLevel"`
	NewLEDState      bool    `json:"newLedState"`
	SelectedPumpMode bool    `json:"selectedPumpMode"`
}

// NewLimit is the object form of a setNewLimit payload.
type NewLimit struct {
	UpperLimit      *float64 `json:"upperLimit"`
	LowerLimit      *float64 `json:"lowerLimit"`
	WaterLevelLimit *float64 `json:"waterLevelLimit"`
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)

	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// DecodeBool decodes a bare boolean payload.
func DecodeBool(raw json.RawMessage) (bool, error) {
	if isAbsent(raw) {
		return false, ErrMissingPayload
	}

	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	return v, nil
}

// DecodeRegisterDevice decodes registerDevice. deviceId is required.
func DecodeRegisterDevice(raw json.RawMessage) (RegisterDevice, error) {
	var p RegisterDevice

	if isAbsent(raw) {
		return p, ErrMissingPayload
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if p.DeviceID == "" {
		return p, fmt.Errorf("%w: deviceId", ErrMissingField)
	}

	return p, nil
}

// DecodeControllingStatus decodes controllingStatus. Both fields are required.
func DecodeControllingStatus(raw json.RawMessage) (ControllingStatus, error) {
	var p ControllingStatus

	if isAbsent(raw) {
		return p, ErrMissingPayload
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if p.NewLEDState == nil {
		return p, fmt.Errorf("%w: newLedState", ErrMissingField)
	}

	if p.SelectedPumpMode == nil {
		return p, fmt.Errorf("%w: selectedPumpMode", ErrMissingField)
	}

	return p, nil
}

// DecodeLimits accepts [upper, lower, waterLevel] or the NewLimit object form.
func DecodeLimits(raw json.RawMessage) (Limits, error) {
	trimmed := bytes.TrimSpace(raw)

	if isAbsent(trimmed) {
		return Limits{}, ErrMissingPayload
	}

	if trimmed[0] == '[' {
		var triple []float64
		if err := json.Unmarshal(trimmed, &triple); err != nil {
			return Limits{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}

		if len(triple) != 3 {
			return Limits{}, fmt.Errorf("%w: expected 3 limits, got %d", ErrMalformedPayload, len(triple))
		}

		return Limits{SoilMoistureUpper: triple[0], SoilMoistureLower: triple[1], WaterLevel: triple[2]}, nil
	}

	var obj NewLimit
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return Limits{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	switch {
	case obj.UpperLimit == nil:
		return Limits{}, fmt.Errorf("%w: upperLimit", ErrMissingField)
	case obj.LowerLimit == nil:
		return Limits{}, fmt.Errorf("%w: lowerLimit", ErrMissingField)
	case obj.WaterLevelLimit == nil:
		return Limits{}, fmt.Errorf("%w: waterLevelLimit", ErrMissingField)
	}

	return Limits{
		SoilMoistureUpper: *obj.UpperLimit,
		SoilMoistureLower: *obj.LowerLimit,
		WaterLevel:        *obj.WaterLevelLimit,
	}, nil
}

// DecodeSensorReport decodes sensorsData_controllingStatus. All five fields are required.
func DecodeSensorReport(raw json.RawMessage) (SensorReport, error) {
	var p SensorReport

	if isAbsent(raw) {
		return p, ErrMissingPayload
	}

	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if !p.Complete() {
		return p, fmt.Errorf("%w: sensor report", ErrMissingField)
	}

	return p, nil
}
