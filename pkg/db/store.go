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

package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/models"
)

const (
	insertReadingSQL = `
INSERT INTO sensor_readings (
	device_id, temperature, soil_moisture, water_level, led_state, pump_mode, recorded_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	upsertLimitsSQL = `
INSERT INTO control_limits (id, soil_moisture_upper, soil_moisture_lower, water_level, updated_at)
VALUES (1, $1, $2, $3, now())
ON CONFLICT (id) DO UPDATE SET
	soil_moisture_upper = EXCLUDED.soil_moisture_upper,
	soil_moisture_lower = EXCLUDED.soil_moisture_lower,
	water_level         = EXCLUDED.water_level,
	updated_at          = EXCLUDED.updated_at`

	selectLimitsSQL = `
SELECT soil_moisture_upper, soil_moisture_lower, water_level
FROM control_limits
WHERE id = 1`
)

// Store persists readings and limits to Postgres.
type Store struct {
	conn  execer
	close func()
	log   logger.Logger
}

// NewStore wraps an open pool. Close closes the pool.
func NewStore(pool *pgxpool.Pool, log logger.Logger) *Store {
	return newStore(pool, pool.Close, log)
}

func newStore(conn execer, closeFn func(), log logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}

	return &Store{conn: conn, close: closeFn, log: log}
}

// SaveReading appends one sensor sample.
func (s *Store) SaveReading(ctx context.Context, r models.Reading) error {
	if _, err := s.conn.Exec(ctx, insertReadingSQL,
		r.DeviceID,
		r.Temperature,
		r.SoilMoisture,
		r.WaterLevel,
		r.LEDState,
		r.PumpMode,
		r.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("%w: sensor reading for %s: %w", ErrFailedInsert, r.DeviceID, err)
	}

	return nil
}

// UpdateLimits replaces the stored limit triple.
func (s *Store) UpdateLimits(ctx context.Context, l models.Limits) error {
	if _, err := s.conn.Exec(ctx, upsertLimitsSQL,
		l.SoilMoistureUpper,
		l.SoilMoistureLower,
		l.WaterLevel,
	); err != nil {
		return fmt.Errorf("%w: control limits: %w", ErrFailedInsert, err)
	}

	return nil
}

// LatestLimits returns the stored triple, or ErrNoLimits if none was saved yet.
func (s *Store) LatestLimits(ctx context.Context) (models.Limits, error) {
	var l models.Limits

	err := s.conn.QueryRow(ctx, selectLimitsSQL).Scan(
		&l.SoilMoistureUpper,
		&l.SoilMoistureLower,
		&l.WaterLevel,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ErrNoLimits
	}

	if err != nil {
		return l, fmt.Errorf("%w: control limits: %w", ErrFailedToQuery, err)
	}

	return l, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	if s.close != nil {
		s.close()
		s.log.Debug().Msg("CNPG pool closed")
	}

	return nil
}
