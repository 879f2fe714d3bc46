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

// Package http holds the hub's HTTP plumbing: CORS, routing and the server.
package http

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
)

// CORSConfig lists the origins browsers may call the hub from. "*" allows any.
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// OriginAllowed reports whether origin may talk to the hub. Requests without
// an Origin header (devices, curl) are always allowed.
func OriginAllowed(allowed []string, origin string) bool {
	if origin == "" || slices.Contains(allowed, "*") {
		return true
	}

	return slices.ContainsFunc(allowed, func(o string) bool {
		return strings.EqualFold(o, origin)
	})
}

// CommonMiddleware logs each request and applies CORS headers.
func CommonMiddleware(next http.Handler, cors CORSConfig, log logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}

	wildcard := slices.Contains(cors.AllowedOrigins, "*")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		origin := r.Header.Get("Origin")

		switch {
		case wildcard && !cors.AllowCredentials:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && OriginAllowed(cors.AllowedOrigins, origin):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if cors.AllowCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
