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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"event":"toggleLED","data":true}`))
	require.NoError(t, err)
	assert.Equal(t, EventToggleLED, env.Event)
	assert.JSONEq(t, `true`, string(env.Data))

	_, err = DecodeEnvelope([]byte(`{"data":true}`))
	require.ErrorIs(t, err, ErrMissingEvent)

	_, err = DecodeEnvelope([]byte(`not json`))
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestEncodeEnvelope(t *testing.T) {
	frame, err := EncodeEnvelope(EventSetNewLimit, Limits{SoilMoistureUpper: 70, SoilMoistureLower: 40, WaterLevel: 25}.Triple())
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"setNewLimit","data":[70,40,25]}`, string(frame))

	frame, err = EncodeEnvelope(EventLEDState, false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"ledState","data":false}`, string(frame))
}

func TestDecodeBool(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    bool
		wantErr error
	}{
		{name: "true", raw: `true`, want: true},
		{name: "false", raw: `false`, want: false},
		{name: "empty", raw: ``, wantErr: ErrMissingPayload},
		{name: "null", raw: `null`, wantErr: ErrMissingPayload},
		{name: "string", raw: `"true"`, wantErr: ErrMalformedPayload},
		{name: "object", raw: `{"on":true}`, wantErr: ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeBool(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeRegisterDevice(t *testing.T) {
	p, err := DecodeRegisterDevice(json.RawMessage(`{"deviceId":"esp-1","deviceType":"esp32"}`))
	require.NoError(t, err)
	assert.Equal(t, RegisterDevice{DeviceID: "esp-1", DeviceType: "esp32"}, p)

	p, err = DecodeRegisterDevice(json.RawMessage(`{"deviceId":"esp-2"}`))
	require.NoError(t, err)
	assert.Empty(t, p.DeviceType)

	_, err = DecodeRegisterDevice(json.RawMessage(`{"deviceType":"esp32"}`))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = DecodeRegisterDevice(json.RawMessage(`"esp-1"`))
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestDecodeControllingStatus(t *testing.T) {
	p, err := DecodeControllingStatus(json.RawMessage(`{"newLedState":true,"selectedPumpMode":false}`))
	require.NoError(t, err)
	assert.True(t, *p.NewLEDState)
	assert.False(t, *p.SelectedPumpMode)

	_, err = DecodeControllingStatus(json.RawMessage(`{"selectedPumpMode":false}`))
	require.ErrorIs(t, err, ErrMissingField)

	_, err = DecodeControllingStatus(json.RawMessage(`{"newLedState":true}`))
	require.ErrorIs(t, err, ErrMissingField)
}

func TestDecodeLimits(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Limits
		wantErr error
	}{
		{
			name: "positional",
			raw:  `[70, 40, 25]`,
			want: Limits{SoilMoistureUpper: 70, SoilMoistureLower: 40, WaterLevel: 25},
		},
		{
			name: "object",
			raw:  `{"upperLimit": 65.5, "lowerLimit": 35, "waterLevelLimit": 10}`,
			want: Limits{SoilMoistureUpper: 65.5, SoilMoistureLower: 35, WaterLevel: 10},
		},
		{name: "short array", raw: `[70, 40]`, wantErr: ErrMalformedPayload},
		{name: "non numeric", raw: `["a", "b", "c"]`, wantErr: ErrMalformedPayload},
		{name: "object missing field", raw: `{"upperLimit": 1, "lowerLimit": 0}`, wantErr: ErrMissingField},
		{name: "absent", raw: `null`, wantErr: ErrMissingPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeLimits(json.RawMessage(tt.raw))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSensorReport(t *testing.T) {
	raw := json.RawMessage(`{"soilMoisture":41.5,"temperature":22.1,"waterLevel":80,"newLedState":true,"selectedPumpMode":false}`)

	report, err := DecodeSensorReport(raw)
	require.NoError(t, err)
	require.True(t, report.Complete())

	_, err = DecodeSensorReport(json.RawMessage(`{"soilMoisture":41.5,"temperature":22.1}`))
	require.ErrorIs(t, err, ErrMissingField)

	zero := json.RawMessage(`{"soilMoisture":0,"temperature":0,"waterLevel":0,"newLedState":false,"selectedPumpMode":false}`)
	_, err = DecodeSensorReport(zero)
	require.NoError(t, err)
}
