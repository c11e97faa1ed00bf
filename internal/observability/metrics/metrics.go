package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// IngestLabel identifies an ingest outcome counter by media category and
// terminal result ("stored", "upload_failed", "persist_failed", "rejected").
type IngestLabel struct {
	Category string
	Outcome  string
}

// DispatchLabel identifies a transcode dispatch counter by backend name and
// submission status ("created" or "failed").
type DispatchLabel struct {
	Backend string
	Status  string
}

// Recorder aggregates in-memory counters and gauges for HTTP requests, upload
// ingest outcomes, transcode dispatches, and object store failures. Writers
// coordinate through a RWMutex; gauges use atomics so concurrent dispatches
// stay consistent.
type Recorder struct {
	mu                  sync.RWMutex
	requestCount        map[requestLabel]uint64
	requestDuration     map[requestLabel]time.Duration
	ingestEvents        map[IngestLabel]uint64
	dispatchEvents      map[DispatchLabel]uint64
	objectStoreFailures uint64
	datastoreHealth     float64
	activeDispatches    atomic.Int64
}

var defaultRecorder = New()

// New constructs an empty Recorder with initialized backing maps so callers can
// immediately record metrics without additional setup.
func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		ingestEvents:    make(map[IngestLabel]uint64),
		dispatchEvents:  make(map[DispatchLabel]uint64),
	}
}

// Default returns the singleton Recorder instance shared across helper
// functions for packages that do not require custom instrumentation pipelines.
func Default() *Recorder {
	return defaultRecorder
}

// ObserveRequest normalizes the request label set and accumulates totals for
// request count and cumulative duration by HTTP method, normalized path, and
// status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// RecordIngest records the terminal outcome of one upload ingest keyed by
// media category.
func (r *Recorder) RecordIngest(category, outcome string) {
	label := IngestLabel{
		Category: normalizeName(category),
		Outcome:  normalizeName(outcome),
	}
	r.mu.Lock()
	r.ingestEvents[label]++
	r.mu.Unlock()
}

// DispatchStarted records the start of an asynchronous transcode submission
// and increments the active dispatch gauge.
func (r *Recorder) DispatchStarted() {
	r.activeDispatches.Add(1)
}

// RecordDispatch records the result of an asynchronous transcode submission
// and decrements the active dispatch gauge, guarding against negative counts
// when concurrent updates race.
func (r *Recorder) RecordDispatch(backend, status string) {
	label := DispatchLabel{
		Backend: normalizeName(backend),
		Status:  normalizeName(status),
	}
	r.mu.Lock()
	r.dispatchEvents[label]++
	r.mu.Unlock()
	r.decrementGauge(&r.activeDispatches)
}

// RecordObjectStoreFailure counts a failed object store upload.
func (r *Recorder) RecordObjectStoreFailure() {
	r.mu.Lock()
	r.objectStoreFailures++
	r.mu.Unlock()
}

// SetDatastoreHealth maps a datastore status string to a numeric health value
// for export (1=ok, -1=degraded).
func (r *Recorder) SetDatastoreHealth(status string) {
	value := -1.0
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ok", "healthy":
		value = 1
	}
	r.mu.Lock()
	r.datastoreHealth = value
	r.mu.Unlock()
}

// ActiveDispatches exposes the current gauge of in-flight transcode submissions.
func (r *Recorder) ActiveDispatches() int64 {
	return r.activeDispatches.Load()
}

// IngestCounts returns a copy of the ingest outcome counters for testing and
// reporting purposes.
func (r *Recorder) IngestCounts() map[IngestLabel]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	counts := make(map[IngestLabel]uint64, len(r.ingestEvents))
	for k, v := range r.ingestEvents {
		counts[k] = v
	}
	return counts
}

// DispatchCounts returns a copy of the dispatch counters and the current
// active dispatch gauge value.
func (r *Recorder) DispatchCounts() (events map[DispatchLabel]uint64, active int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	events = make(map[DispatchLabel]uint64, len(r.dispatchEvents))
	for k, v := range r.dispatchEvents {
		events[k] = v
	}
	return events, r.activeDispatches.Load()
}

// ObjectStoreFailures returns the current failed upload count.
func (r *Recorder) ObjectStoreFailures() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.objectStoreFailures
}

// Reset clears all counters and gauges on the recorder. It is intended for
// test setups.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.ingestEvents = make(map[IngestLabel]uint64)
	r.dispatchEvents = make(map[DispatchLabel]uint64)
	r.objectStoreFailures = 0
	r.datastoreHealth = 0
	r.activeDispatches.Store(0)
}

// Handler exposes the Recorder as an http.Handler that writes Prometheus text
// exposition data with the appropriate content type.
func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders the Recorder's metrics in Prometheus text format, sorting label
// sets to provide stable output for scrapes and tests.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()
	ingestLabels := r.sortedIngestLabels()
	dispatchLabels := r.sortedDispatchLabels()

	fmt.Fprintln(w, "# HELP mediastream_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE mediastream_http_requests_total counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "mediastream_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP mediastream_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE mediastream_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		duration := r.requestDuration[label].Seconds()
		fmt.Fprintf(w, "mediastream_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, duration)
	}

	fmt.Fprintln(w, "# HELP mediastream_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE mediastream_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		count := r.requestCount[label]
		fmt.Fprintf(w, "mediastream_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, count)
	}

	fmt.Fprintln(w, "# HELP mediastream_ingest_total Upload ingest outcomes by media category")
	fmt.Fprintln(w, "# TYPE mediastream_ingest_total counter")
	for _, label := range ingestLabels {
		count := r.ingestEvents[label]
		fmt.Fprintf(w, "mediastream_ingest_total{category=\"%s\",outcome=\"%s\"} %d\n", label.Category, label.Outcome, count)
	}

	fmt.Fprintln(w, "# HELP mediastream_transcode_dispatch_total Transcode job submissions by backend and status")
	fmt.Fprintln(w, "# TYPE mediastream_transcode_dispatch_total counter")
	for _, label := range dispatchLabels {
		count := r.dispatchEvents[label]
		fmt.Fprintf(w, "mediastream_transcode_dispatch_total{backend=\"%s\",status=\"%s\"} %d\n", label.Backend, label.Status, count)
	}

	fmt.Fprintln(w, "# HELP mediastream_transcode_active_dispatches Current number of in-flight transcode submissions")
	fmt.Fprintln(w, "# TYPE mediastream_transcode_active_dispatches gauge")
	fmt.Fprintf(w, "mediastream_transcode_active_dispatches %d\n", r.activeDispatches.Load())

	fmt.Fprintln(w, "# HELP mediastream_object_store_failures_total Total failed object store uploads")
	fmt.Fprintln(w, "# TYPE mediastream_object_store_failures_total counter")
	fmt.Fprintf(w, "mediastream_object_store_failures_total %d\n", r.objectStoreFailures)

	fmt.Fprintln(w, "# HELP mediastream_datastore_health Health reported by the media record store (1=ok,-1=degraded)")
	fmt.Fprintln(w, "# TYPE mediastream_datastore_health gauge")
	fmt.Fprintf(w, "mediastream_datastore_health %f\n", r.datastoreHealth)
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedIngestLabels() []IngestLabel {
	labels := make([]IngestLabel, 0, len(r.ingestEvents))
	for label := range r.ingestEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Category != labels[j].Category {
			return labels[i].Category < labels[j].Category
		}
		return labels[i].Outcome < labels[j].Outcome
	})
	return labels
}

func (r *Recorder) sortedDispatchLabels() []DispatchLabel {
	labels := make([]DispatchLabel, 0, len(r.dispatchEvents))
	for label := range r.dispatchEvents {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Backend != labels[j].Backend {
			return labels[i].Backend < labels[j].Backend
		}
		return labels[i].Status < labels[j].Status
	})
	return labels
}

func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
			continue
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 8 {
		return true
	}
	digitCount := 0
	for _, r := range segment {
		if r >= '0' && r <= '9' {
			digitCount++
		}
	}
	return digitCount >= 3
}

func (r *Recorder) decrementGauge(gauge *atomic.Int64) {
	for {
		current := gauge.Load()
		if current <= 0 {
			return
		}
		if gauge.CompareAndSwap(current, current-1) {
			return
		}
	}
}

func normalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}

// ObserveRequest is a helper on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	defaultRecorder.ObserveRequest(method, path, status, duration)
}

// RecordIngest records an ingest outcome on the default recorder.
func RecordIngest(category, outcome string) {
	defaultRecorder.RecordIngest(category, outcome)
}

// RecordDispatch records a dispatch result on the default recorder.
func RecordDispatch(backend, status string) {
	defaultRecorder.RecordDispatch(backend, status)
}

// RecordObjectStoreFailure counts a failed upload on the default recorder.
func RecordObjectStoreFailure() {
	defaultRecorder.RecordObjectStoreFailure()
}

// SetDatastoreHealth updates datastore health on the default recorder.
func SetDatastoreHealth(status string) {
	defaultRecorder.SetDatastoreHealth(status)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return defaultRecorder.Handler()
}
