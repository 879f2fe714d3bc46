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

package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/carverauto/irrigationhub/pkg/logger"
	"github.com/carverauto/irrigationhub/pkg/metrics"
	"github.com/carverauto/irrigationhub/pkg/models"
)

var (
	// ErrQueueFull is returned when the writer cannot accept another job.
	ErrQueueFull = errors.New("persistence queue full")
	// ErrWriterClosed is returned after Close.
	ErrWriterClosed = errors.New("persistence writer closed")
)

const (
	OpReading = "reading"
	OpLimits  = "limits"
)

// WriterConfig tunes the write-behind queue.
type WriterConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
}

type job struct {
	op      string
	reading models.Reading
	limits  models.Limits
}

// Writer queues persistence jobs and runs them on a single background
// worker, so callers never wait on storage. Jobs are attempted once.
type Writer struct {
	sink    Sink
	jobs    chan job
	timeout time.Duration
	log     logger.Logger
	metrics *metrics.Hub

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewWriter starts the worker for s.
func NewWriter(s Sink, cfg WriterConfig, log logger.Logger, m *metrics.Hub) *Writer {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = models.DefaultQueueSize
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = models.DefaultWriteTimeout
	}

	if log == nil {
		log = logger.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Writer{
		sink:    s,
		jobs:    make(chan job, cfg.QueueSize),
		timeout: cfg.WriteTimeout,
		log:     log,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go w.run()

	return w
}

// EnqueueReading schedules SaveReading without blocking.
func (w *Writer) EnqueueReading(r models.Reading) error {
	return w.enqueue(job{op: OpReading, reading: r})
}

// EnqueueLimits schedules UpdateLimits without blocking.
func (w *Writer) EnqueueLimits(l models.Limits) error {
	return w.enqueue(job{op: OpLimits, limits: l})
}

// Pending returns the number of queued jobs.
func (w *Writer) Pending() int {
	return len(w.jobs)
}

func (w *Writer) enqueue(j job) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrWriterClosed
	}

	select {
	case w.jobs <- j:
		w.metrics.SetSinkQueueDepth(len(w.jobs))

		return nil
	default:
		w.metrics.SinkDropped(j.op)

		return ErrQueueFull
	}
}

func (w *Writer) run() {
	defer close(w.done)

	for j := range w.jobs {
		w.metrics.SetSinkQueueDepth(len(w.jobs))

		if w.ctx.Err() != nil {
			w.metrics.SinkDropped(j.op)
			continue
		}

		w.process(j)
	}
}

func (w *Writer) process(j job) {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	var err error

	switch j.op {
	case OpReading:
		err = w.sink.SaveReading(ctx, j.reading)
	case OpLimits:
		err = w.sink.UpdateLimits(ctx, j.limits)
	}

	if err == nil {
		w.metrics.SinkWrite(j.op, metrics.ResultOK)
		return
	}

	result := metrics.ResultError
	if errors.Is(err, context.DeadlineExceeded) {
		result = metrics.ResultTimeout
	}

	w.metrics.SinkWrite(j.op, result)

	ev := w.log.Error().Err(err).Str("op", j.op)
	if j.op == OpReading {
		ev = ev.Str("device_id", j.reading.DeviceID)
	}

	ev.Msg("Persistence write failed")
}

// Close stops accepting jobs, drains the queue until ctx is done, then
// closes the sink. Jobs still queued when ctx expires are dropped.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	var drainErr error

	select {
	case <-w.done:
	case <-ctx.Done():
		drainErr = ctx.Err()

		w.log.Warn().Int("pending", len(w.jobs)).Msg("Persistence drain interrupted")
		w.cancel()
		<-w.done
	}

	w.cancel()

	return errors.Join(drainErr, w.sink.Close())
}
