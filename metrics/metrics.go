// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics registers the Prometheus instruments exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	VotesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilvote_votes_accepted_total",
		Help: "Votes accepted into the ledger.",
	})

	VotesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilvote_votes_rejected_total",
		Help: "Votes rejected, by reason code.",
	}, []string{"reason"})

	AttestationsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilvote_attestations_issued_total",
		Help: "Attestations issued after a successful challenge.",
	})

	AnchorOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veilvote_anchor_outcomes_total",
		Help: "Anchor cycles reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	SuppressedBuckets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilvote_analytics_suppressed_buckets_total",
		Help: "Analytics buckets withheld below the disclosure threshold.",
	})

	Lockouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veilvote_rate_limit_lockouts_total",
		Help: "Subjects locked out by the failure limiter.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veilvote_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
