// Package metrics counts crawl activity with Prometheus collectors. A run
// writes the registry to a node-exporter textfile when it finishes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/coolbeans/cgscrawl/pkg/crawler"
	"github.com/coolbeans/cgscrawl/pkg/fetch"
	"github.com/coolbeans/cgscrawl/pkg/links"
	"github.com/coolbeans/cgscrawl/pkg/statute"
)

const namespace = "cgscrawl"

// Chapter and title results.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Recorder owns a private registry and the crawl collectors. A nil
// *Recorder accepts every call and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	retries       prometheus.Counter
	titles        *prometheus.CounterVec
	chapters      *prometheus.CounterVec
	sections      *prometheus.CounterVec
	lastRun       prometheus.Gauge
}

// NewRecorder creates a Recorder with its collectors registered.
func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches by outcome.",
		}, []string{"outcome"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent per page fetch, including politeness delay and retries.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts repeated after a transient failure.",
		}),
		titles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "titles_total",
			Help:      "Titles processed by result.",
		}, []string{"result"}),
		chapters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chapters_total",
			Help:      "Chapters processed by result.",
		}, []string{"result"}),
		sections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sections_total",
			Help:      "Sections resolved by content outcome.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the crawl metrics were last written.",
		}),
	}

	recorder.registry.MustRegister(
		recorder.fetches,
		recorder.fetchDuration,
		recorder.retries,
		recorder.titles,
		recorder.chapters,
		recorder.sections,
		recorder.lastRun,
	)
	return recorder
}

// Registry exposes the underlying registry.
func (recorder *Recorder) Registry() *prometheus.Registry {
	if recorder == nil {
		return nil
	}
	return recorder.registry
}

// FetchCompleted implements fetch.Observer.
func (recorder *Recorder) FetchCompleted(outcome fetch.Outcome, elapsed time.Duration) {
	if recorder == nil {
		return
	}
	recorder.fetches.WithLabelValues(string(outcome)).Inc()
	recorder.fetchDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// FetchRetried implements fetch.Observer.
func (recorder *Recorder) FetchRetried() {
	if recorder == nil {
		return
	}
	recorder.retries.Inc()
}

// RecordChapter counts a finished chapter and its sections.
func (recorder *Recorder) RecordChapter(chapter *statute.Chapter) {
	if recorder == nil {
		return
	}
	if chapter.Error != "" {
		recorder.chapters.WithLabelValues(ResultFailed).Inc()
		return
	}
	recorder.chapters.WithLabelValues(ResultOK).Inc()
	for _, section := range chapter.Sections {
		recorder.sections.WithLabelValues(crawler.SectionOutcome(section.Content)).Inc()
	}
}

// RecordTitle counts a finished title.
func (recorder *Recorder) RecordTitle(title *statute.Title) {
	if recorder == nil {
		return
	}
	result := ResultOK
	if title.Error != "" {
		result = ResultFailed
	}
	recorder.titles.WithLabelValues(result).Inc()
}

// Hooks returns crawler hooks that feed the recorder.
func (recorder *Recorder) Hooks() crawler.Hooks {
	return crawler.Hooks{
		ChapterCompleted: func(_ string, chapter *statute.Chapter) {
			recorder.RecordChapter(chapter)
		},
		TitleCompleted: recorder.RecordTitle,
		TitlesDiscovered: func(titleLinks []links.IndexLink) {
			// Every result series exists, at zero if nothing happened.
			if recorder == nil {
				return
			}
			for _, result := range []string{ResultOK, ResultFailed} {
				recorder.titles.WithLabelValues(result)
				recorder.chapters.WithLabelValues(result)
			}
		},
	}
}

// WriteTextfile writes the registry in the Prometheus text format, for the
// node exporter textfile collector.
func (recorder *Recorder) WriteTextfile(filePath string) error {
	if recorder == nil {
		return nil
	}
	recorder.lastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(filePath, recorder.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", filePath, err)
	}
	return nil
}
