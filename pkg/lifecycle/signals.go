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

package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
)

const defaultShutdownTimeout = 15 * time.Second

// ShutdownHook releases one resource. Hooks run in reverse registration order.
type ShutdownHook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Service is anything that runs until its context is cancelled.
type Service interface {
	Run(ctx context.Context) error
}

// RunUntilSignal runs svc until it returns or SIGINT/SIGTERM arrives, then
// runs the shutdown hooks within the given timeout (15s when zero).
func RunUntilSignal(ctx context.Context, svc Service, timeout time.Duration, log logger.Logger, hooks ...ShutdownHook) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- svc.Run(ctx)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")

		runErr = <-errCh
	case runErr = <-errCh:
		stop()
	}

	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}

	return errors.Join(runErr, RunShutdownHooks(timeout, log, hooks...))
}

// RunShutdownHooks runs hooks in reverse order within timeout (15s when zero).
// Startup paths that fail after registering hooks call it directly.
func RunShutdownHooks(timeout time.Duration, log logger.Logger, hooks ...ShutdownHook) error {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return runHooks(ctx, log, hooks)
}

func runHooks(ctx context.Context, log logger.Logger, hooks []ShutdownHook) error {
	var errs []error

	for i := len(hooks) - 1; i >= 0; i-- {
		hook := hooks[i]

		if err := hook.Fn(ctx); err != nil {
			log.Error().Err(err).Str("hook", hook.Name).Msg("Shutdown hook failed")

			errs = append(errs, err)

			continue
		}

		log.Debug().Str("hook", hook.Name).Msg("Shutdown hook complete")
	}

	return errors.Join(errs...)
}
