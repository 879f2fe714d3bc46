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
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/irrigationhub/pkg/logger"
)

const (
	migrationsTable = "irrigationhub_schema_migrations"
	migrationsDir   = "migrations"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// execer is the subset of a pgx connection the migrator and store need.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunMigrations applies every embedded *.up.sql file that has not been
// recorded in the tracking table, in file name order.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, log logger.Logger) error {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("migrations: acquire connection: %w", err)
	}
	defer conn.Release()

	return applyMigrations(ctx, conn, migrationsFS, migrationsDir, log)
}

func applyMigrations(ctx context.Context, conn execer, fsys fs.FS, dir string, log logger.Logger) error {
	if log == nil {
		log = logger.Nop()
	}

	if _, err := conn.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+migrationsTable+` (
		version     TEXT PRIMARY KEY,
		applied_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("migrations: create tracking table: %w", err)
	}

	var applied []string
	if err := conn.QueryRow(ctx,
		`SELECT COALESCE(array_agg(version), '{}') FROM `+migrationsTable,
	).Scan(&applied); err != nil {
		return fmt.Errorf("migrations: list applied versions: %w", err)
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("migrations: read embedded files: %w", err)
	}

	pending := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}

		if slices.Contains(applied, migrationVersion(name)) {
			continue
		}

		pending = append(pending, name)
	}

	slices.Sort(pending)

	for _, name := range pending {
		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", name, err)
		}

		log.Info().Str("migration", name).Msg("applying migration")

		for idx, stmt := range splitStatements(string(content)) {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("migrations: statement %d in %s: %w", idx+1, name, err)
			}
		}

		if _, err := conn.Exec(ctx,
			`INSERT INTO `+migrationsTable+` (version) VALUES ($1)`, migrationVersion(name),
		); err != nil {
			return fmt.Errorf("migrations: record %s: %w", name, err)
		}
	}

	if len(pending) > 0 {
		log.Info().Int("applied", len(pending)).Msg("schema up to date")
	}

	return nil
}
