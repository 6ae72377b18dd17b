/*
 * This file is part of Bitrack.
 *
 * Bitrack is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Bitrack is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Bitrack.  If not, see <http://www.gnu.org/licenses/>.
 */

package collector

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	uptimeMetric   *prometheus.Desc
	requestsMetric *prometheus.Desc

	erroredRequestsMetric   *prometheus.Desc
	malformedRequestsMetric *prometheus.Desc
	storageFailuresMetric   *prometheus.Desc

	deadlockTimeMetric    *prometheus.Desc
	deadlockCountMetric   *prometheus.Desc
	deadlockAbortedMetric *prometheus.Desc
	lockWaitTimeoutMetric *prometheus.Desc
	sqlErrorCountMetric   *prometheus.Desc

	purgedPeersMetric *prometheus.Desc
}

// Request kinds counted by IncrementRequests
const (
	RequestAnnounce = "announce"
	RequestScrape   = "scrape"
	RequestDownload = "download"
)

var (
	startTime = time.Now()

	announceRequests atomic.Uint64
	scrapeRequests   atomic.Uint64
	downloadRequests atomic.Uint64

	erroredRequests   atomic.Uint64
	malformedRequests atomic.Uint64
	storageFailures   atomic.Uint64

	deadlockTime    atomic.Int64 // nanoseconds
	deadlockCount   atomic.Uint64
	deadlockAborted atomic.Uint64
	lockWaitTimeout atomic.Uint64
	sqlErrorCount   atomic.Uint64

	purgedPeers atomic.Uint64
)

var (
	announceTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bitrack_announce_seconds",
		Help:    "Histogram of the time taken to reconcile an announce against the database",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	purgePeersTime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bitrack_purge_inactive_peers_seconds",
		Help:    "Histogram of the time taken to purge inactive peers from database",
		Buckets: []float64{.01, .05, .1, .15, .25, .35, .5, .75, 1, 1.25, 1.5, 1.75, 2.5, 5},
	})
)

func NewCollector() *Collector {
	return &Collector{
		uptimeMetric: prometheus.NewDesc("bitrack_uptime",
			"System uptime in seconds", nil, nil),
		requestsMetric: prometheus.NewDesc("bitrack_requests",
			"Number of requests received", []string{"type"}, nil),

		erroredRequestsMetric: prometheus.NewDesc("bitrack_requests_fail",
			"Number of requests that ended in a panic", nil, nil),
		malformedRequestsMetric: prometheus.NewDesc("bitrack_requests_malformed",
			"Number of requests rejected before reaching the database", nil, nil),
		storageFailuresMetric: prometheus.NewDesc("bitrack_requests_storage_failure",
			"Number of requests failed by a database error", nil, nil),

		deadlockCountMetric: prometheus.NewDesc("bitrack_deadlock_count",
			"Number of unique database deadlocks encountered", nil, nil),
		deadlockAbortedMetric: prometheus.NewDesc("bitrack_deadlock_aborted_count",
			"Number of times deadlock retries were exceeded", nil, nil),
		deadlockTimeMetric: prometheus.NewDesc("bitrack_deadlock_seconds_total",
			"Total time wasted awaiting to free deadlock", nil, nil),
		lockWaitTimeoutMetric: prometheus.NewDesc("bitrack_lock_wait_timeout_count",
			"Number of database lock wait timeouts encountered", nil, nil),
		sqlErrorCountMetric: prometheus.NewDesc("bitrack_sql_errors_count",
			"Number of SQL errors", nil, nil),

		purgedPeersMetric: prometheus.NewDesc("bitrack_purged_peers_total",
			"Number of inactive peers removed by the purge loop", nil, nil),
	}
}

func (collector *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.uptimeMetric
	ch <- collector.requestsMetric
	ch <- collector.erroredRequestsMetric
	ch <- collector.malformedRequestsMetric
	ch <- collector.storageFailuresMetric
	ch <- collector.deadlockCountMetric
	ch <- collector.deadlockAbortedMetric
	ch <- collector.deadlockTimeMetric
	ch <- collector.lockWaitTimeoutMetric
	ch <- collector.sqlErrorCountMetric
	ch <- collector.purgedPeersMetric

	announceTime.Describe(ch)
	purgePeersTime.Describe(ch)
}

func (collector *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(collector.uptimeMetric, prometheus.CounterValue,
		time.Since(startTime).Seconds())

	ch <- prometheus.MustNewConstMetric(collector.requestsMetric, prometheus.CounterValue,
		float64(announceRequests.Load()), RequestAnnounce)
	ch <- prometheus.MustNewConstMetric(collector.requestsMetric, prometheus.CounterValue,
		float64(scrapeRequests.Load()), RequestScrape)
	ch <- prometheus.MustNewConstMetric(collector.requestsMetric, prometheus.CounterValue,
		float64(downloadRequests.Load()), RequestDownload)

	ch <- prometheus.MustNewConstMetric(collector.erroredRequestsMetric, prometheus.CounterValue,
		float64(erroredRequests.Load()))
	ch <- prometheus.MustNewConstMetric(collector.malformedRequestsMetric, prometheus.CounterValue,
		float64(malformedRequests.Load()))
	ch <- prometheus.MustNewConstMetric(collector.storageFailuresMetric, prometheus.CounterValue,
		float64(storageFailures.Load()))

	ch <- prometheus.MustNewConstMetric(collector.deadlockCountMetric, prometheus.CounterValue,
		float64(deadlockCount.Load()))
	ch <- prometheus.MustNewConstMetric(collector.deadlockAbortedMetric, prometheus.CounterValue,
		float64(deadlockAborted.Load()))
	ch <- prometheus.MustNewConstMetric(collector.deadlockTimeMetric, prometheus.CounterValue,
		time.Duration(deadlockTime.Load()).Seconds())
	ch <- prometheus.MustNewConstMetric(collector.lockWaitTimeoutMetric, prometheus.CounterValue,
		float64(lockWaitTimeout.Load()))
	ch <- prometheus.MustNewConstMetric(collector.sqlErrorCountMetric, prometheus.CounterValue,
		float64(sqlErrorCount.Load()))

	ch <- prometheus.MustNewConstMetric(collector.purgedPeersMetric, prometheus.CounterValue,
		float64(purgedPeers.Load()))

	announceTime.Collect(ch)
	purgePeersTime.Collect(ch)
}

func Uptime() time.Duration {
	return time.Since(startTime)
}

func IncrementRequests(kind string) {
	switch kind {
	case RequestAnnounce:
		announceRequests.Add(1)
	case RequestScrape:
		scrapeRequests.Add(1)
	case RequestDownload:
		downloadRequests.Add(1)
	default:
		slog.Error("trying to count request of unknown type", "type", kind)
	}
}

func IncrementErroredRequests() {
	erroredRequests.Add(1)
}

func IncrementMalformedRequests() {
	malformedRequests.Add(1)
}

func IncrementStorageFailures() {
	storageFailures.Add(1)
}

func IncrementDeadlockCount() {
	deadlockCount.Add(1)
}

func IncrementDeadlockTime(time time.Duration) {
	deadlockTime.Add(int64(time))
}

func IncrementDeadlockAborted() {
	deadlockAborted.Add(1)
}

func IncrementLockWaitTimeout() {
	lockWaitTimeout.Add(1)
}

func IncrementSQLErrorCount() {
	sqlErrorCount.Add(1)
}

func AddPurgedPeers(count int64) {
	purgedPeers.Add(uint64(count))
}

func UpdateAnnounceTime(time time.Duration) {
	announceTime.Observe(time.Seconds())
}

func UpdatePurgeInactivePeersTime(time time.Duration) {
	purgePeersTime.Observe(time.Seconds())
}
