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

package registry

//go:generate mockgen -destination=mock_registry.go -package=registry github.com/carverauto/irrigationhub/pkg/registry Clock,Timer

import "time"

// Clock abstracts time-related operations.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending call scheduled by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// ExpiryFunc is called from the timer goroutine when a disconnected
// device's grace window ends. It must hand the id back to the owner of the
// Registry rather than call Purge directly.
type ExpiryFunc func(connectionID string)
