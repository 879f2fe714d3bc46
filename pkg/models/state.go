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

import "time"

// Limits is the calibration triple. It is always replaced as a whole.
type Limits struct {
	SoilMoistureUpper float64 `json:"soilMoistureUpperLimit"`
	SoilMoistureLower float64 `json:"soilMoistureLowerLimit"`
	WaterLevel        float64 `json:"waterLevelLimit"`
}

// DefaultLimits returns the limits used before any client or database supplies them.
func DefaultLimits() Limits {
	return Limits{
		SoilMoistureUpper: 60,
		SoilMoistureLower: 30,
		WaterLevel:        20,
	}
}

// Triple returns the limits in wire order: upper, lower, water level.
func (l Limits) Triple() [3]float64 {
	return [3]float64{l.SoilMoistureUpper, l.SoilMoistureLower, l.WaterLevel}
}

// Validate rejects limits that cannot describe a moisture band.
func (l Limits) Validate() error {
	if l.SoilMoistureLower > l.SoilMoistureUpper {
		return ErrLimitsInverted
	}

	return nil
}

// ControlState is the authoritative actuator and calibration state.
type ControlState struct {
	LEDState   bool   `json:"ledState"`
	PumpMode   bool   `json:"pumpMode"`
	Reservoir1 bool   `json:"reservoir1"`
	Reservoir2 bool   `json:"reservoir2"`
	Limits     Limits `json:"limits"`
}

// Reading is one sensor sample handed to the persistence sink.
type Reading struct {
	DeviceID     string    `json:"deviceId"`
	Temperature  float64   `json:"temperature"`
	SoilMoisture float64   `json:"soilMoisture"`
	WaterLevel   float64   `json:"waterLevel"`
	LEDState     bool      `json:"ledState"`
	PumpMode     bool      `json:"pumpMode"`
	Timestamp    time.Time `json:"timestamp"`
}

// SensorReport is the device-side sensorsData_controllingStatus payload.
// Every field is required; pointers distinguish zero from absent.
type SensorReport struct {
	SoilMoisture     *float64 `json:"soilMoisture"`
	Temperature      *float64 `json:"temperature"`
	WaterLevel       *float64 `json:"waterLevel"`
	NewLEDState      *bool    `json:"newLedState"`
	SelectedPumpMode *bool    `json:"selectedPumpMode"`
}

// Complete reports whether all five fields were supplied.
func (r *SensorReport) Complete() bool {
	return r.SoilMoisture != nil && r.Temperature != nil && r.WaterLevel != nil &&
		r.NewLEDState != nil && r.SelectedPumpMode != nil
}

// Reading converts a complete report into a Reading for deviceID at ts.
func (r *SensorReport) Reading(deviceID string, ts time.Time) Reading {
	return Reading{
		DeviceID:     deviceID,
		Temperature:  *r.Temperature,
		SoilMoisture: *r.SoilMoisture,
		WaterLevel:   *r.WaterLevel,
		LEDState:     *r.NewLEDState,
		PumpMode:     *r.SelectedPumpMode,
		Timestamp:    ts,
	}
}
