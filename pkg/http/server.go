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

package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/irrigationhub/pkg/logger"
)

// StatusText is the body of GET /.
const StatusText = "Irrigation hub running"

const readHeaderTimeout = 10 * time.Second

// HealthFunc returns the JSON body of GET /healthz.
type HealthFunc func() interface{}

// Routes describes the handlers mounted on the router.
type Routes struct {
	WSPath      string
	WS          http.Handler
	Health      HealthFunc
	MetricsPath string
	Metrics     http.Handler
}

// NewRouter mounts the status page, health, WebSocket and metrics handlers.
func NewRouter(routes Routes, cors CORSConfig, log logger.Logger) *mux.Router {
	router := mux.NewRouter()

	router.Use(func(next http.Handler) http.Handler {
		return CommonMiddleware(next, cors, log)
	})

	router.HandleFunc("/", handleStatus).Methods(http.MethodGet, http.MethodHead, http.MethodOptions)

	if routes.Health != nil {
		router.HandleFunc("/healthz", handleHealth(routes.Health, log)).Methods(http.MethodGet)
	}

	if routes.WS != nil {
		router.Handle(routes.WSPath, routes.WS).Methods(http.MethodGet)
	}

	if routes.Metrics != nil {
		router.Handle(routes.MetricsPath, routes.Metrics).Methods(http.MethodGet)
	}

	return router
}

func handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write([]byte(StatusText))
}

func handleHealth(health HealthFunc, log logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(health()); err != nil {
			log.Warn().Err(err).Msg("failed to encode health response")
		}
	}
}

// Server runs an http.Server until its context ends.
type Server struct {
	srv *http.Server
	log logger.Logger
}

// NewServer binds handler to addr. Nothing listens until Run.
func NewServer(addr string, handler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Run listens and serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.srv.Addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)

	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked WebSocket connections are not tracked and must be closed by
// their owner.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http shutdown: %w", err)
	}

	return nil
}
