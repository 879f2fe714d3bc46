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

import "errors"

var (
	errInvalidDuration = errors.New("invalid duration")

	// ErrMalformedFrame is returned when a frame is not a JSON envelope.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrMissingEvent is returned for envelopes without an event name.
	ErrMissingEvent = errors.New("missing event name")
	// ErrMissingPayload is returned when an event requires data but none was sent.
	ErrMissingPayload = errors.New("missing payload")
	// ErrMalformedPayload is returned when data has the wrong shape.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrMissingField is returned when a required payload field is absent.
	ErrMissingField = errors.New("missing required field")

	ErrLimitsInverted = errors.New("soil moisture lower limit exceeds upper limit")

	ErrListenAddrRequired   = errors.New("listen_addr is required")
	ErrWSPathInvalid        = errors.New("ws_path must start with /")
	ErrGracePeriodInvalid   = errors.New("registry grace_period must be positive")
	ErrPersistenceRequired  = errors.New("persistence requires cnpg or nats unless disabled")
	ErrQueueSizeInvalid     = errors.New("persistence queue_size must be positive")
	ErrSessionTimingInvalid = errors.New("session ping_interval must be shorter than pong_wait")
	ErrCNPGHostRequired     = errors.New("cnpg host is required")
	ErrCNPGDatabaseRequired = errors.New("cnpg database is required")
	ErrNATSURLRequired      = errors.New("nats url is required")
)
