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

package logger

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.31.0"
	"google.golang.org/grpc/credentials"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
	errFailedToParseCACert  = errors.New("failed to parse CA certificate")
)

const (
	maxAttributeValueLength = 4096
	defaultScopeName        = "irrigationhub"
	defaultBatchTimeout     = 5 * time.Second
	otelShutdownTimeout     = 10 * time.Second
)

// OTelConfig selects the OTLP/gRPC collector for logs and traces.
type OTelConfig struct {
	Enabled      bool              `json:"enabled" yaml:"enabled"`
	Endpoint     string            `json:"endpoint" yaml:"endpoint"`
	Headers      map[string]string `json:"headers" yaml:"headers"`
	ServiceName  string            `json:"service_name" yaml:"service_name"`
	BatchTimeout Duration          `json:"batch_timeout" yaml:"batch_timeout"`
	Insecure     bool              `json:"insecure" yaml:"insecure"`
	TLS          *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

// TLSConfig holds the collector client certificate and CA.
type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// OTelWriter re-emits zerolog JSON lines as OTel log records. The
// "component" field becomes the instrumentation scope.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider
	scopes   sync.Map // scope name -> log.Logger
}

//nolint:gochecknoglobals // the provider must outlive every writer for Shutdown
var (
	otelProvider   *sdklog.LoggerProvider
	otelProviderMu sync.Mutex
)

// NewOTELWriter starts a batching OTLP log exporter and installs it as the
// global OTel LoggerProvider.
func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	creds, err := transportCredentials(&config)
	if err != nil {
		return nil, err
	}

	switch {
	case config.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := newResource(ctx, config.ServiceName, "")
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(config.BatchTimeout)
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(timeout))),
	)

	otelProviderMu.Lock()
	otelProvider = provider
	otelProviderMu.Unlock()

	global.SetLoggerProvider(provider)

	return &OTelWriter{ctx: ctx, provider: provider}, nil
}

func newResource(ctx context.Context, serviceName, serviceVersion string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultScopeName
	}

	attrs := []resource.Option{
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	}

	if serviceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(serviceVersion)))
	}

	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	return res, nil
}

// Write never fails: lines that are not JSON objects are dropped.
func (w *OTelWriter) Write(p []byte) (int, error) {
	if w.provider == nil {
		return len(p), nil
	}

	scope, record, ok := decodeRecord(p)
	if !ok {
		return len(p), nil
	}

	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scope(name string) log.Logger {
	if l, ok := w.scopes.Load(name); ok {
		return l.(log.Logger)
	}

	l, _ := w.scopes.LoadOrStore(name, w.provider.Logger(name))

	return l.(log.Logger)
}

// decodeRecord maps one zerolog line onto an OTel record. time, level,
// message and component are lifted out; every other field is an attribute.
func decodeRecord(p []byte) (string, log.Record, bool) {
	var entry map[string]interface{}

	var record log.Record

	if err := json.Unmarshal(p, &entry); err != nil {
		return "", record, false
	}

	scope := defaultScopeName

	for key, value := range entry {
		switch key {
		case "time":
			if ts, ok := value.(string); ok {
				if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
					record.SetTimestamp(parsed)
					continue
				}
			}
		case "level":
			if lvl, ok := value.(string); ok {
				record.SetSeverity(mapZerologLevelToOTEL(lvl))
				record.SetSeverityText(lvl)

				continue
			}
		case "message":
			if msg, ok := value.(string); ok {
				record.SetBody(log.StringValue(msg))
				continue
			}
		case "component":
			if c, ok := value.(string); ok && c != "" {
				scope = c
				continue
			}
		}

		record.AddAttributes(log.KeyValue{Key: key, Value: attributeValue(value)})
	}

	return scope, record, true
}

func attributeValue(value interface{}) log.Value {
	switch v := value.(type) {
	case nil:
		return log.StringValue("null")
	case string:
		return log.StringValue(truncateString(v, maxAttributeValueLength))
	case bool:
		return log.BoolValue(v)
	case float64:
		return log.Float64Value(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return log.StringValue(truncateString(fmt.Sprint(v), maxAttributeValueLength))
		}

		return log.StringValue(truncateString(string(raw), maxAttributeValueLength))
	}
}

func truncateString(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	cut := value[:limit-3]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}

	return cut + "..."
}

func mapZerologLevelToOTEL(level string) log.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return log.SeverityTrace
	case "debug":
		return log.SeverityDebug
	case "warn", "warning":
		return log.SeverityWarn
	case "error":
		return log.SeverityError
	case "fatal", "panic":
		return log.SeverityFatal
	default:
		return log.SeverityInfo
	}
}

// ShutdownOTEL flushes and stops the log provider, if one was started.
func ShutdownOTEL() error {
	otelProviderMu.Lock()
	provider := otelProvider
	otelProvider = nil
	otelProviderMu.Unlock()

	if provider == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
	defer cancel()

	return provider.Shutdown(ctx)
}

// transportCredentials returns nil when the exporter should use the gRPC
// defaults or run insecure.
func transportCredentials(config *OTelConfig) (credentials.TransportCredentials, error) {
	if config.Insecure || config.TLS == nil {
		return nil, nil
	}

	tlsConfig, err := setupTLSConfig(config.TLS)
	if err != nil {
		return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
	}

	return credentials.NewTLS(tlsConfig), nil
}

func setupTLSConfig(files *TLSConfig) (*tls.Config, error) {
	config := &tls.Config{MinVersion: tls.VersionTLS12}

	if files.CertFile != "" && files.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(files.CertFile, files.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		config.Certificates = []tls.Certificate{cert}
	}

	if files.CAFile == "" {
		return config, nil
	}

	pem, err := os.ReadFile(files.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errFailedToParseCACert
	}

	config.RootCAs = pool

	return config, nil
}
