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

import (
	"time"

	"github.com/carverauto/irrigationhub/pkg/models"
	"github.com/carverauto/irrigationhub/pkg/registry"
)

// Config tunes the dispatcher and the WebSocket transport.
type Config struct {
	Registry         registry.Config
	InitialLimits    models.Limits
	InboxSize        int
	AllowedOrigins   []string
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteWait        time.Duration
	MaxMessageBytes  int64
	MaxPendingFrames int
}

// ConfigFromModel converts a validated HubConfig.
func ConfigFromModel(cfg *models.HubConfig) Config {
	limits := models.DefaultLimits()
	if cfg.State.InitialLimits != nil {
		limits = *cfg.State.InitialLimits
	}

	return Config{
		Registry: registry.Config{
			GracePeriod:       time.Duration(cfg.Registry.GracePeriod),
			DefaultDeviceType: cfg.Registry.DefaultDeviceType,
		},
		InitialLimits:    limits,
		InboxSize:        cfg.Session.InboxSize,
		AllowedOrigins:   cfg.AllowedOrigins,
		PingInterval:     time.Duration(cfg.Session.PingInterval),
		PongWait:         time.Duration(cfg.Session.PongWait),
		WriteWait:        time.Duration(cfg.Session.WriteWait),
		MaxMessageBytes:  cfg.Session.MaxMessageBytes,
		MaxPendingFrames: cfg.Session.MaxPendingFrames,
	}
}

func (c *Config) applyDefaults() {
	if c.InboxSize <= 0 {
		c.InboxSize = models.DefaultInboxSize
	}

	if c.PingInterval <= 0 {
		c.PingInterval = models.DefaultPingInterval
	}

	if c.PongWait <= 0 {
		c.PongWait = models.DefaultPongWait
	}

	if c.WriteWait <= 0 {
		c.WriteWait = models.DefaultWriteWait
	}

	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = models.DefaultMaxMessageBytes
	}

	if c.Registry.GracePeriod <= 0 {
		c.Registry.GracePeriod = models.DefaultGracePeriod
	}

	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
}
