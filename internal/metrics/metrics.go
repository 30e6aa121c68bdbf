// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exports engine activity to Prometheus
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Thermoquad/sambamock/pkg/samba"
)

// Metrics holds the Prometheus collectors fed by engine events
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal  *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	WarningsTotal  *prometheus.CounterVec
	TransfersTotal prometheus.Counter
	TransferBytes  prometheus.Histogram
	LastCommand    prometheus.Gauge
}

// New creates the collectors on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		CommandsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambamock_commands_total",
				Help: "Total number of monitor commands dispatched",
			},
			[]string{"kind"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambamock_errors_total",
				Help: "Total number of errors returned while processing chunks",
			},
			[]string{"class"}, // class: comm, flash, sequence, unsupported, other
		),

		WarningsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sambamock_warnings_total",
				Help: "Non-fatal problems, such as acknowledged but unimplemented erases",
			},
			[]string{"class"},
		),

		TransfersTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sambamock_transfers_total",
				Help: "Total number of completed XMODEM transfers",
			},
		),

		TransferBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sambamock_transfer_bytes",
				Help:    "Bytes written per WRITE_BUFFER command that used XMODEM",
				Buckets: prometheus.ExponentialBuckets(128, 2, 10), // 128B .. 64KiB
			},
		),

		LastCommand: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sambamock_last_command_timestamp_seconds",
				Help: "Unix time of the last dispatched command",
			},
		),
	}
}

// Registry returns the registry holding every collector
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Observe records an engine event. It has the samba.Observer signature.
func (m *Metrics) Observe(ev samba.Event) {
	switch ev.Kind {
	case samba.EventCommand:
		if ev.Command != nil {
			m.CommandsTotal.WithLabelValues(ev.Command.Kind()).Inc()
		}
		m.LastCommand.Set(float64(ev.Time.UnixNano()) / 1e9)
	case samba.EventTransfer:
		m.CommandsTotal.WithLabelValues(ev.Command.Kind()).Inc()
		m.TransfersTotal.Inc()
		m.TransferBytes.Observe(float64(ev.Bytes))
		m.LastCommand.Set(float64(ev.Time.UnixNano()) / 1e9)
	case samba.EventError:
		m.ErrorsTotal.WithLabelValues(samba.ClassifyError(ev.Err)).Inc()
	case samba.EventWarning:
		m.WarningsTotal.WithLabelValues(samba.ClassifyError(ev.Err)).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
