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

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
)

const (
	DefaultListenAddr      = ":3001"
	DefaultWSPath          = "/socket"
	DefaultMetricsPath     = "/metrics"
	DefaultGracePeriod     = 300 * time.Second
	DefaultPingInterval    = 25 * time.Second
	DefaultPongWait        = 60 * time.Second
	DefaultWriteWait       = 10 * time.Second
	DefaultMaxMessageBytes = 64 * 1024
	DefaultInboxSize       = 1024
	DefaultQueueSize       = 256
	DefaultWriteTimeout    = 5 * time.Second
	DefaultNATSStream      = "IRRIGATION"
	DefaultNATSSubjectRoot = "irrigation"
	DefaultApplicationName = "irrigationhub"
)

// Duration accepts "5m" style strings or integer nanoseconds in JSON.
type Duration time.Duration

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// HubConfig is the full configuration of the hub binary.
type HubConfig struct {
	ListenAddr     string            `json:"listen_addr"`
	WSPath         string            `json:"ws_path"`
	AllowedOrigins []string          `json:"allowed_origins,omitempty"`
	Registry       RegistryConfig    `json:"registry"`
	Session        SessionConfig     `json:"session"`
	State          StateConfig       `json:"state"`
	Persistence    PersistenceConfig `json:"persistence"`
	Metrics        MetricsConfig     `json:"metrics"`
	Logging        *logger.Config    `json:"logging,omitempty"`
}

// RegistryConfig tunes the device registry.
type RegistryConfig struct {
	GracePeriod       Duration `json:"grace_period"`
	DefaultDeviceType string   `json:"default_device_type,omitempty"`
}

// SessionConfig tunes the WebSocket transport and dispatcher inbox.
type SessionConfig struct {
	PingInterval     Duration `json:"ping_interval"`
	PongWait         Duration `json:"pong_wait"`
	WriteWait        Duration `json:"write_wait"`
	MaxMessageBytes  int64    `json:"max_message_bytes"`
	MaxPendingFrames int      `json:"max_pending_frames"`
	InboxSize        int      `json:"inbox_size"`
}

// StateConfig seeds the control state.
type StateConfig struct {
	InitialLimits *Limits `json:"initial_limits,omitempty"`
}

// PersistenceConfig selects the write-behind backends.
type PersistenceConfig struct {
	Disabled     bool          `json:"disabled"`
	QueueSize    int           `json:"queue_size"`
	WriteTimeout Duration      `json:"write_timeout"`
	CNPG         *CNPGDatabase `json:"cnpg,omitempty"`
	NATS         *NATSConfig   `json:"nats,omitempty"`
}

// Enabled reports whether at least one backend should receive writes.
func (p *PersistenceConfig) Enabled() bool {
	return !p.Disabled && (p.CNPG != nil || p.NATS != nil)
}

// CNPGDatabase describes the Postgres (CloudNativePG) connection.
type CNPGDatabase struct {
	Host               string            `json:"host"`
	Port               int               `json:"port,omitempty"`
	Database           string            `json:"database"`
	Username           string            `json:"username,omitempty"`
	Password           string            `json:"password,omitempty" sensitive:"true"`
	ApplicationName    string            `json:"application_name,omitempty"`
	SSLMode            string            `json:"ssl_mode,omitempty"`
	CertDir            string            `json:"cert_dir,omitempty"`
	TLS                *TLSConfig        `json:"tls,omitempty"`
	MaxConnections     int32             `json:"max_connections,omitempty"`
	MinConnections     int32             `json:"min_connections,omitempty"`
	MaxConnLifetime    Duration          `json:"max_conn_lifetime,omitempty"`
	HealthCheckPeriod  Duration          `json:"health_check_period,omitempty"`
	StatementTimeout   Duration          `json:"statement_timeout,omitempty"`
	ExtraRuntimeParams map[string]string `json:"extra_runtime_params,omitempty"`
}

// Validate ensures the connection has somewhere to go.
func (c *CNPGDatabase) Validate() error {
	if c.Host == "" {
		return ErrCNPGHostRequired
	}

	if c.Database == "" {
		return ErrCNPGDatabaseRequired
	}

	return nil
}

// NATSConfig describes the JetStream event sink.
type NATSConfig struct {
	URL           string     `json:"url"`
	Domain        string     `json:"domain,omitempty"`
	Stream        string     `json:"stream,omitempty"`
	SubjectPrefix string     `json:"subject_prefix,omitempty"`
	CredsFile     string     `json:"creds_file,omitempty" sensitive:"true"`
	TLS           *TLSConfig `json:"tls,omitempty"`
}

// Validate ensures the NATS configuration is valid.
func (c *NATSConfig) Validate() error {
	if c.URL == "" {
		return ErrNATSURLRequired
	}

	return nil
}

// TLSConfig holds client certificate paths.
type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// ApplyDefaults fills every unset field with its default.
func (c *HubConfig) ApplyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	if c.WSPath == "" {
		c.WSPath = DefaultWSPath
	}

	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}

	if c.Registry.GracePeriod == 0 {
		c.Registry.GracePeriod = Duration(DefaultGracePeriod)
	}

	if c.Registry.DefaultDeviceType == "" {
		c.Registry.DefaultDeviceType = DefaultDeviceType
	}

	s := &c.Session
	if s.PingInterval == 0 {
		s.PingInterval = Duration(DefaultPingInterval)
	}

	if s.PongWait == 0 {
		s.PongWait = Duration(DefaultPongWait)
	}

	if s.WriteWait == 0 {
		s.WriteWait = Duration(DefaultWriteWait)
	}

	if s.MaxMessageBytes == 0 {
		s.MaxMessageBytes = DefaultMaxMessageBytes
	}

	if s.InboxSize == 0 {
		s.InboxSize = DefaultInboxSize
	}

	if c.State.InitialLimits == nil {
		limits := DefaultLimits()
		c.State.InitialLimits = &limits
	}

	p := &c.Persistence
	if p.QueueSize == 0 {
		p.QueueSize = DefaultQueueSize
	}

	if p.WriteTimeout == 0 {
		p.WriteTimeout = Duration(DefaultWriteTimeout)
	}

	if p.CNPG != nil && p.CNPG.ApplicationName == "" {
		p.CNPG.ApplicationName = DefaultApplicationName
	}

	if p.NATS != nil {
		if p.NATS.Stream == "" {
			p.NATS.Stream = DefaultNATSStream
		}

		if p.NATS.SubjectPrefix == "" {
			p.NATS.SubjectPrefix = DefaultNATSSubjectRoot
		}
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
}

// Validate applies defaults and checks the result. A missing persistence
// backend is an error unless persistence is explicitly disabled.
func (c *HubConfig) Validate() error {
	c.ApplyDefaults()

	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrListenAddrRequired
	}

	if !strings.HasPrefix(c.WSPath, "/") {
		return ErrWSPathInvalid
	}

	if c.Registry.GracePeriod < 0 {
		return ErrGracePeriodInvalid
	}

	if c.Session.PingInterval >= c.Session.PongWait {
		return ErrSessionTimingInvalid
	}

	if err := c.State.InitialLimits.Validate(); err != nil {
		return fmt.Errorf("state.initial_limits: %w", err)
	}

	p := &c.Persistence
	if p.QueueSize < 0 {
		return ErrQueueSizeInvalid
	}

	if p.Disabled {
		return nil
	}

	if p.CNPG == nil && p.NATS == nil {
		return ErrPersistenceRequired
	}

	if p.CNPG != nil {
		if err := p.CNPG.Validate(); err != nil {
			return fmt.Errorf("persistence.cnpg: %w", err)
		}
	}

	if p.NATS != nil {
		if err := p.NATS.Validate(); err != nil {
			return fmt.Errorf("persistence.nats: %w", err)
		}
	}

	return nil
}
