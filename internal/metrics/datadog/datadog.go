// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted on a ticker (default once per
// minute) plus one final time on Close, so long extraction runs show up as a
// time series rather than a single spike at exit.
//
// Only the metric names declared in internal/metrics are forwarded; each one
// keeps a fixed set of label keys that become Datadog tags. Unknown metrics
// are dropped.
package datadog

import (
	"context"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"kiesraad/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric.
	// If empty, defaults to "kiesraad".
	JobName string

	// Tags are extra Datadog tags (e.g. []string{"env:prod", "team:data"}).
	Tags []string

	// FlushEvery controls how often buffered metrics are submitted.
	// If <= 0, defaults to 60 seconds.
	FlushEvery time.Duration

	// Test seams; production leaves them nil.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the part of *datadogV2.MetricsApi the backend uses.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// spec describes how one internal metric maps onto a Datadog series.
type spec struct {
	ddName string
	labels []string
}

var counterSpecs = map[string]spec{
	metrics.DocumentsTotal:    {"kiesraad.documents.total", []string{"class", "status"}},
	metrics.RowsTotal:         {"kiesraad.rows.total", []string{"table_kind"}},
	metrics.HTTPRequestsTotal: {"kiesraad.http.requests.total", []string{"status"}},
	metrics.HTTPErrorsTotal:   {"kiesraad.http.errors.total", []string{"status"}},
}

var histogramSpecs = map[string]spec{
	metrics.StageDurationSeconds: {"kiesraad.stage.duration_seconds", []string{"stage", "status"}},
	metrics.HTTPDurationSeconds:  {"kiesraad.http.request_duration_seconds", []string{"status"}},
	metrics.HTTPDownloadBytes:    {"kiesraad.http.download_bytes", []string{"status"}},
}

// seriesKey identifies one buffered series: Datadog name plus its label tags.
type seriesKey struct {
	metric string
	tags   string // "\x00"-joined "key:value" pairs in spec label order
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu         sync.Mutex
	counters   map[seriesKey]float64
	histograms map[seriesKey][]float64
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client and
// starts its flush loop. Credentials come from the DD_API_KEY/DD_SITE
// environment the client reads; network errors surface on Flush.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	job := opts.JobName
	if job == "" {
		job = "kiesraad"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}
	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counters:   make(map[seriesKey]float64),
		histograms: make(map[seriesKey][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)

	t := b.newTicker(b.flushEvery)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Call it once.
func (b *Backend) Close() error {
	close(b.stopCh)
	<-b.doneCh
	return b.Flush()
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	sp, ok := counterSpecs[name]
	if !ok {
		return
	}
	k := keyFor(sp, labels)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[k] += delta
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	sp, ok := histogramSpecs[name]
	if !ok {
		return
	}
	k := keyFor(sp, labels)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.histograms[k] = append(b.histograms[k], value)
}

// keyFor renders the spec's labels as tags; a missing label value becomes "unknown".
func keyFor(sp spec, labels metrics.Labels) seriesKey {
	parts := make([]string, len(sp.labels))
	for i, l := range sp.labels {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		parts[i] = l + ":" + v
	}
	return seriesKey{metric: sp.ddName, tags: strings.Join(parts, "\x00")}
}

func (k seriesKey) tagList() []string {
	if k.tags == "" {
		return nil
	}
	return strings.Split(k.tags, "\x00")
}

type snapshot struct {
	counters   map[seriesKey]float64
	histograms map[seriesKey][]float64
}

func (s snapshot) isEmpty() bool {
	return len(s.counters) == 0 && len(s.histograms) == 0
}

func (b *Backend) snapshotAndReset() snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := snapshot{counters: b.counters, histograms: b.histograms}
	b.counters = make(map[seriesKey]float64)
	b.histograms = make(map[seriesKey][]float64)
	return s
}

// Flush submits buffered metrics and resets the buffers, even when
// submission fails. It returns nil without submitting when nothing is buffered.
func (b *Backend) Flush() error {
	snap := b.snapshotAndReset()
	if snap.isEmpty() {
		return nil
	}

	payload := datadogV2.MetricPayload{Series: b.buildSeries(snap, b.now().Unix())}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	return err
}

// buildSeries turns a snapshot into series at a fixed timestamp: one count per
// counter key, percentile gauges per histogram key. Output order is stable.
func (b *Backend) buildSeries(s snapshot, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(s.counters)+6*len(s.histograms))

	for _, k := range sortedKeys(s.counters) {
		v := s.counters[k]
		if v == 0 {
			continue
		}
		series = append(series, countSeries(k.metric, v, withTags(b.baseTags, k.tagList()...), nowUnix))
	}
	for _, k := range sortedKeys(s.histograms) {
		addPercentiles(&series, withTags(b.baseTags, k.tagList()...), k.metric, s.histograms[k], nowUnix)
	}
	return series
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	out := make([]seriesKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].metric != out[j].metric {
			return out[i].metric < out[j].metric
		}
		return out[i].tags < out[j].tags
	})
	return out
}

// addPercentiles appends p50/p90/p95/p99/max/samples gauges for samples.
// It sorts a copy; empty samples add nothing.
func addPercentiles(series *[]datadogV2.MetricSeries, tags []string, metricPrefix string, samples []float64, nowUnix int64) {
	if len(samples) == 0 {
		return
	}
	cp := append([]float64(nil), samples...)
	sort.Float64s(cp)

	*series = append(*series,
		gaugeSeries(metricPrefix+".p50", percentileNearestRank(cp, 0.50), tags, nowUnix),
		gaugeSeries(metricPrefix+".p90", percentileNearestRank(cp, 0.90), tags, nowUnix),
		gaugeSeries(metricPrefix+".p95", percentileNearestRank(cp, 0.95), tags, nowUnix),
		gaugeSeries(metricPrefix+".p99", percentileNearestRank(cp, 0.99), tags, nowUnix),
		gaugeSeries(metricPrefix+".max", cp[len(cp)-1], tags, nowUnix),
		gaugeSeries(metricPrefix+".samples", float64(len(cp)), tags, nowUnix),
	)
}

func countSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_COUNT.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func gaugeSeries(metric string, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   datadogV2.METRICINTAKETYPE_GAUGE.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func withTags(base []string, extras ...string) []string {
	out := make([]string, 0, len(base)+len(extras))
	out = append(out, base...)
	out = append(out, extras...)
	return out
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)
var _ metrics.Flusher = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
