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

// DefaultDeviceType is recorded when a device registers without a type.
const DefaultDeviceType = "generic"

// UnknownDeviceID is attributed to readings from connections that never registered.
const UnknownDeviceID = "unknown"

// DeviceRecord is the registry entry for one device connection.
type DeviceRecord struct {
	ConnectionID   string     `json:"connectionId"`
	DeviceID       string     `json:"deviceId"`
	DeviceType     string     `json:"deviceType"`
	LastSeen       time.Time  `json:"lastSeen"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnectedAt"`
	RegisteredAt   time.Time  `json:"registeredAt"`
}

// Clone returns a copy that shares no pointers with the receiver.
func (d *DeviceRecord) Clone() DeviceRecord {
	out := *d

	if d.DisconnectedAt != nil {
		t := *d.DisconnectedAt
		out.DisconnectedAt = &t
	}

	return out
}
