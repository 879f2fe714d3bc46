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

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/irrigationhub/pkg/models"
)

func TestNewStoreStartsOff(t *testing.T) {
	s := NewStore(models.DefaultLimits())

	assert.Equal(t, models.ControlState{Limits: models.DefaultLimits()}, s.Snapshot())
}

func TestSetLEDSuppressesEqualValues(t *testing.T) {
	s := NewStore(models.DefaultLimits())

	assert.False(t, s.SetLED(false))
	assert.True(t, s.SetLED(true))
	assert.False(t, s.SetLED(true))
	assert.True(t, s.LED())
}

func TestPumpModeForcesReservoirsClosed(t *testing.T) {
	s := NewStore(models.DefaultLimits())

	changed, err := s.SetReservoir(1, true)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.SetReservoir(2, true)
	require.NoError(t, err)
	require.True(t, changed)

	pc := s.SetPumpMode(true)
	assert.Equal(t, PumpChange{Changed: true, PumpMode: true}, pc)
	assert.False(t, s.Reservoir1())
	assert.False(t, s.Reservoir2())

	assert.False(t, s.SetPumpMode(true).Changed)
}

func TestPumpModeOffKeepsReservoirs(t *testing.T) {
	s := NewStore(models.DefaultLimits())
	s.SetPumpMode(true)

	pc := s.SetPumpMode(false)
	assert.Equal(t, PumpChange{Changed: true}, pc)

	assert.False(t, s.SetPumpMode(false).Changed)
}

func TestSetReservoir(t *testing.T) {
	tests := []struct {
		name        string
		pump        bool
		reservoir   int
		value       bool
		wantChanged bool
		wantErr     error
	}{
		{name: "open reservoir 1", reservoir: 1, value: true, wantChanged: true},
		{name: "open reservoir 2", reservoir: 2, value: true, wantChanged: true},
		{name: "close already closed", reservoir: 1, value: false},
		{name: "unknown reservoir", reservoir: 3, value: true, wantErr: ErrUnknownReservoir},
		{name: "locked by pump mode", pump: true, reservoir: 2, value: true, wantErr: ErrReservoirLocked},
		{name: "closing allowed in pump mode", pump: true, reservoir: 2, value: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(models.DefaultLimits())
			s.SetPumpMode(tt.pump)

			changed, err := s.SetReservoir(tt.reservoir, tt.value)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.False(t, s.Reservoir1())
				assert.False(t, s.Reservoir2())

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantChanged, changed)

			got, err := s.Reservoir(tt.reservoir)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)
		})
	}
}

func TestSetLimitsReplacesTriple(t *testing.T) {
	s := NewStore(models.DefaultLimits())

	next := models.Limits{SoilMoistureUpper: 70, SoilMoistureLower: 40, WaterLevel: 25}

	assert.True(t, s.SetLimits(next))
	assert.False(t, s.SetLimits(next))
	assert.Equal(t, next, s.Limits())
}

func TestHydrateLimits(t *testing.T) {
	s := NewStore(models.DefaultLimits())

	stored := models.Limits{SoilMoistureUpper: 55, SoilMoistureLower: 25, WaterLevel: 15}
	s.HydrateLimits(stored)

	assert.Equal(t, stored, s.Snapshot().Limits)
}
