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

package sink

import (
	"context"
	"errors"

	"github.com/carverauto/irrigationhub/pkg/models"
)

// Multi writes to every sink in order and joins their errors.
type Multi []Sink

func (m Multi) SaveReading(ctx context.Context, reading models.Reading) error {
	var errs []error

	for _, s := range m {
		if err := s.SaveReading(ctx, reading); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) UpdateLimits(ctx context.Context, limits models.Limits) error {
	var errs []error

	for _, s := range m {
		if err := s.UpdateLimits(ctx, limits); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error

	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard accepts and drops every write. Used when persistence is disabled.
type Discard struct{}

func (Discard) SaveReading(context.Context, models.Reading) error { return nil }
func (Discard) UpdateLimits(context.Context, models.Limits) error { return nil }
func (Discard) Close() error                                      { return nil }
