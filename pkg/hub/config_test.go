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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/irrigationhub/pkg/models"
)

func TestConfigFromModel(t *testing.T) {
	cfg := &models.HubConfig{
		AllowedOrigins: []string{"https://farm.example.com"},
		Session:        models.SessionConfig{MaxPendingFrames: 64},
		Persistence:    models.PersistenceConfig{Disabled: true},
	}
	require.NoError(t, cfg.Validate())

	got := ConfigFromModel(cfg)

	assert.Equal(t, models.DefaultGracePeriod, got.Registry.GracePeriod)
	assert.Equal(t, models.DefaultDeviceType, got.Registry.DefaultDeviceType)
	assert.Equal(t, models.DefaultLimits(), got.InitialLimits)
	assert.Equal(t, models.DefaultInboxSize, got.InboxSize)
	assert.Equal(t, []string{"https://farm.example.com"}, got.AllowedOrigins)
	assert.Equal(t, models.DefaultPingInterval, got.PingInterval)
	assert.Equal(t, models.DefaultPongWait, got.PongWait)
	assert.Equal(t, 64, got.MaxPendingFrames)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{PingInterval: time.Second}
	cfg.applyDefaults()

	assert.Equal(t, time.Second, cfg.PingInterval)
	assert.Equal(t, models.DefaultPongWait, cfg.PongWait)
	assert.Equal(t, models.DefaultWriteWait, cfg.WriteWait)
	assert.Equal(t, int64(models.DefaultMaxMessageBytes), cfg.MaxMessageBytes)
	assert.Equal(t, models.DefaultGracePeriod, cfg.Registry.GracePeriod)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Zero(t, cfg.MaxPendingFrames)
}
