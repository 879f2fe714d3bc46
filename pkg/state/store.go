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

// Package state holds the authoritative control state shared by every
// connected client and device.
package state

import (
	"errors"

	"github.com/carverauto/irrigationhub/pkg/models"
)

var (
	// ErrUnknownReservoir is returned for reservoir numbers other than 1 and 2.
	ErrUnknownReservoir = errors.New("unknown reservoir")
	// ErrReservoirLocked is returned when a reservoir is opened while pump mode is on.
	ErrReservoirLocked = errors.New("reservoir locked while pump mode is active")
)

// PumpChange reports the result of SetPumpMode.
type PumpChange struct {
	Changed    bool
	PumpMode   bool
	Reservoir1 bool
	Reservoir2 bool
}

// Store is the last-writer-wins control state.
//
// Store takes no locks. It must only be used from the hub's dispatch
// goroutine, which serializes every mutation.
type Store struct {
	cur models.ControlState
}

// NewStore returns a store with every actuator off and the given limits.
func NewStore(limits models.Limits) *Store {
	return &Store{cur: models.ControlState{Limits: limits}}
}

func (s *Store) LED() bool                     { return s.cur.LEDState }
func (s *Store) PumpMode() bool                { return s.cur.PumpMode }
func (s *Store) Reservoir1() bool              { return s.cur.Reservoir1 }
func (s *Store) Reservoir2() bool              { return s.cur.Reservoir2 }
func (s *Store) Limits() models.Limits         { return s.cur.Limits }
func (s *Store) Snapshot() models.ControlState { return s.cur }

// SetLED stores v and reports whether it differed.
func (s *Store) SetLED(v bool) bool {
	if s.cur.LEDState == v {
		return false
	}

	s.cur.LEDState = v

	return true
}

// SetPumpMode stores v. Turning pump mode on closes both reservoirs in the
// same step.
func (s *Store) SetPumpMode(v bool) PumpChange {
	changed := s.cur.PumpMode != v
	s.cur.PumpMode = v

	if v {
		if s.cur.Reservoir1 || s.cur.Reservoir2 {
			changed = true
		}

		s.cur.Reservoir1 = false
		s.cur.Reservoir2 = false
	}

	return PumpChange{
		Changed:    changed,
		PumpMode:   s.cur.PumpMode,
		Reservoir1: s.cur.Reservoir1,
		Reservoir2: s.cur.Reservoir2,
	}
}

// SetReservoir stores v for reservoir n (1 or 2). Opening a reservoir while
// pump mode is on fails with ErrReservoirLocked and leaves the store as is.
func (s *Store) SetReservoir(n int, v bool) (bool, error) {
	var slot *bool

	switch n {
	case 1:
		slot = &s.cur.Reservoir1
	case 2:
		slot = &s.cur.Reservoir2
	default:
		return false, ErrUnknownReservoir
	}

	if v && s.cur.PumpMode {
		return false, ErrReservoirLocked
	}

	if *slot == v {
		return false, nil
	}

	*slot = v

	return true, nil
}

// Reservoir returns the current value of reservoir n.
func (s *Store) Reservoir(n int) (bool, error) {
	switch n {
	case 1:
		return s.cur.Reservoir1, nil
	case 2:
		return s.cur.Reservoir2, nil
	default:
		return false, ErrUnknownReservoir
	}
}

// SetLimits replaces the whole limit triple and reports whether it differed.
func (s *Store) SetLimits(l models.Limits) bool {
	if s.cur.Limits == l {
		return false
	}

	s.cur.Limits = l

	return true
}

// HydrateLimits seeds limits loaded from persistence at startup.
func (s *Store) HydrateLimits(l models.Limits) {
	s.cur.Limits = l
}
