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

// Package sink defines the persistence contract for readings and limit
// changes, and the write-behind Writer that feeds it off the dispatch path.
package sink

//go:generate mockgen -destination=mock_sink.go -package=sink github.com/carverauto/irrigationhub/pkg/sink Sink

import (
	"context"

	"github.com/carverauto/irrigationhub/pkg/models"
)

// Sink persists readings and limit changes.
type Sink interface {
	SaveReading(ctx context.Context, reading models.Reading) error
	UpdateLimits(ctx context.Context, limits models.Limits) error
	Close() error
}
