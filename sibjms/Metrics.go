// Copyright (c) IBM Corporation 2019.
//
// This program and the accompanying materials are made available under the
// terms of the Eclipse Public License 2.0, which is available at
// http://www.eclipse.org/legal/epl-2.0.
//
// SPDX-License-Identifier: EPL-2.0

package sibjms

import (
	"github.com/prometheus/client_golang/prometheus"
)

var registry = prometheus.NewRegistry()

// Registry returns the registry holding the client metrics unless a
// connection was created with jms20subset.WithMetricsRegisterer.
func Registry() *prometheus.Registry {
	return registry
}

type metrics struct {
	sent           *prometheus.CounterVec
	received       *prometheus.CounterVec
	transactions   *prometheus.CounterVec
	asyncDepth     prometheus.Gauge
	listenerPanics prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	if r == nil {
		r = registry
	}

	m := &metrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sibjms",
			Name:      "messages_sent_total",
			Help:      "Messages sent, by destination.",
		}, []string{"dest"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sibjms",
			Name:      "messages_received_total",
			Help:      "Messages received, by destination.",
		}, []string{"dest"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sibjms",
			Name:      "transactions_total",
			Help:      "Completed local transactions, by outcome.",
		}, []string{"outcome"}),
		asyncDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sibjms",
			Name:      "async_send_queue_depth",
			Help:      "Sends waiting for the asynchronous send worker.",
		}),
		listenerPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sibjms",
			Name:      "listener_panics_total",
			Help:      "Panics recovered from message listeners.",
		}),
	}

	m.sent = register(r, m.sent).(*prometheus.CounterVec)
	m.received = register(r, m.received).(*prometheus.CounterVec)
	m.transactions = register(r, m.transactions).(*prometheus.CounterVec)
	m.asyncDepth = register(r, m.asyncDepth).(prometheus.Gauge)
	m.listenerPanics = register(r, m.listenerPanics).(prometheus.Counter)
	return m
}

// register returns the collector already registered under the same
// descriptor, so that every connection shares one set of series.
func register(r prometheus.Registerer, c prometheus.Collector) prometheus.Collector {
	if err := r.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
		logger.Warn().Err(err).Msg("metric registration failed")
	}
	return c
}

const (
	outcomeCommit   = "commit"
	outcomeRollback = "rollback"
	outcomeFailed   = "failed"
)
