// Copyright (c) 2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ledger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	txAddedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "tx_added_total",
		Help:      "Count of transactions stored by the ledger.",
	}, []string{"network"})

	txRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "tx_rejected_total",
		Help:      "Count of transactions dropped in favour of a conflict.",
	}, []string{"network", "reason"})

	txRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "tx_removed_total",
		Help:      "Count of transactions removed from the ledger.",
	}, []string{"network"})

	txEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "tx_evicted_total",
		Help:      "Count of conflicting transactions and descendants evicted.",
	}, []string{"network"})

	verificationsUndoneTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "verifications_undone_total",
		Help:      "Count of verified transactions reset by reorgs.",
	}, []string{"network"})

	historyInconsistentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "history_inconsistent_total",
		Help:      "Count of histories whose balance did not reconcile.",
	}, []string{"network"})

	historyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "axewallet",
		Subsystem: "ledger",
		Name:      "history_duration_seconds",
		Help:      "Duration of history computations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"network"})
)

// metrics records ledger activity under the network label.
type metrics struct {
	network string
}

func newMetrics(network string) metrics {
	if network == "" {
		network = "unknown"
	}
	return metrics{network: network}
}

func (m metrics) added() {
	txAddedTotal.WithLabelValues(m.network).Inc()
}

func (m metrics) rejected(reason string) {
	txRejectedTotal.WithLabelValues(m.network, reason).Inc()
}

func (m metrics) removed() {
	txRemovedTotal.WithLabelValues(m.network).Inc()
}

func (m metrics) evicted(n int) {
	txEvictedTotal.WithLabelValues(m.network).Add(float64(n))
}

func (m metrics) undone(n int) {
	verificationsUndoneTotal.WithLabelValues(m.network).Add(float64(n))
}

func (m metrics) inconsistent() {
	historyInconsistentTotal.WithLabelValues(m.network).Inc()
}

func (m metrics) observeHistory(started time.Time) {
	historyDuration.WithLabelValues(m.network).
		Observe(time.Since(started).Seconds())
}
