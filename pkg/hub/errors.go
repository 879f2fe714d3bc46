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

import "errors"

var (
	// ErrSessionClosed is returned when a frame is queued on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrSlowPeer is returned when a session exceeds its pending frame bound.
	ErrSlowPeer = errors.New("session outbound queue full")
	// ErrHubStopped is returned by calls made after Run has returned.
	ErrHubStopped = errors.New("hub stopped")
)
