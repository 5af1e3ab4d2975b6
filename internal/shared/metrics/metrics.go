package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	requestsCreatedTotal     atomic.Uint64
	recordsCreatedTotal      atomic.Uint64
	consentCompletedTotal    atomic.Uint64
	submitConflictsTotal     atomic.Uint64
	recordsResentTotal       atomic.Uint64
	notificationsSentTotal   atomic.Uint64
	notificationsFailedTotal atomic.Uint64
	notificationsQueuedTotal atomic.Uint64

	workerReceivedTotal  atomic.Uint64
	workerCompletedTotal atomic.Uint64
	workerFailedTotal    atomic.Uint64
	workerDroppedTotal   atomic.Uint64

	dispatchDuration = newHistogram([]float64{50, 100, 250, 500, 1000, 2500, 5000, 10000})
)

// IncRequestsCreated counts consent requests created and the records they produced.
func IncRequestsCreated(records int) {
	requestsCreatedTotal.Add(1)
	if records > 0 {
		recordsCreatedTotal.Add(uint64(records))
	}
}

// IncConsentCompleted increments the completed counter.
func IncConsentCompleted() {
	consentCompletedTotal.Add(1)
}

// IncSubmitConflict counts submissions rejected because the record was already completed.
func IncSubmitConflict() {
	submitConflictsTotal.Add(1)
}

// IncRecordsResent counts records whose notification was re-sent.
func IncRecordsResent(n int) {
	if n > 0 {
		recordsResentTotal.Add(uint64(n))
	}
}

// IncNotificationSent increments the delivered notification counter.
func IncNotificationSent() {
	notificationsSentTotal.Add(1)
}

// IncNotificationFailed increments the failed notification counter.
func IncNotificationFailed() {
	notificationsFailedTotal.Add(1)
}

// IncNotificationQueued counts notifications handed to the out-of-process queue.
func IncNotificationQueued() {
	notificationsQueuedTotal.Add(1)
}

// IncWorkerReceived counts queue messages picked up by a worker.
func IncWorkerReceived() {
	workerReceivedTotal.Add(1)
}

// IncWorkerCompleted counts queue messages processed and deleted.
func IncWorkerCompleted() {
	workerCompletedTotal.Add(1)
}

// IncWorkerFailed counts queue messages left for redelivery.
func IncWorkerFailed() {
	workerFailedTotal.Add(1)
}

// IncWorkerDropped counts unrecoverable queue messages deleted without delivery.
func IncWorkerDropped() {
	workerDroppedTotal.Add(1)
}

// ObserveDispatchDurationMs records a single notification dispatch duration in milliseconds.
func ObserveDispatchDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	dispatchDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "consent_requests_created_total", "Total consent requests created", requestsCreatedTotal.Load())
	writeCounter(&buf, "consent_records_created_total", "Total consent records created", recordsCreatedTotal.Load())
	writeCounter(&buf, "consent_completed_total", "Total consent records completed", consentCompletedTotal.Load())
	writeCounter(&buf, "consent_submit_conflicts_total", "Total submissions on already completed records", submitConflictsTotal.Load())
	writeCounter(&buf, "consent_records_resent_total", "Total records re-notified", recordsResentTotal.Load())
	writeCounter(&buf, "consent_notifications_sent_total", "Total notifications delivered to the mail provider", notificationsSentTotal.Load())
	writeCounter(&buf, "consent_notifications_failed_total", "Total notifications that failed to resolve or send", notificationsFailedTotal.Load())
	writeCounter(&buf, "consent_notifications_queued_total", "Total notifications handed to the queue", notificationsQueuedTotal.Load())
	writeCounter(&buf, "consent_worker_messages_received_total", "Total queue messages received by workers", workerReceivedTotal.Load())
	writeCounter(&buf, "consent_worker_messages_completed_total", "Total queue messages processed successfully", workerCompletedTotal.Load())
	writeCounter(&buf, "consent_worker_messages_failed_total", "Total queue messages left for retry", workerFailedTotal.Load())
	writeCounter(&buf, "consent_worker_messages_dropped_total", "Total unrecoverable queue messages deleted", workerDroppedTotal.Load())
	writeHistogram(&buf, "consent_notification_dispatch_ms", "Notification dispatch duration in milliseconds", dispatchDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
