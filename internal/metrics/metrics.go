// Package metrics collects per-run Prometheus metrics and exports them as a
// node-exporter textfile in the run directory.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"promptduel/internal/eval"
	"promptduel/internal/logging"
	"promptduel/internal/tournament"
)

const namespace = "promptduel"

// Recorder owns a private registry so concurrent runs and tests never share
// series. It implements tournament.Observer.
type Recorder struct {
	registry *prometheus.Registry

	roundsTotal        *prometheus.CounterVec
	promotionsTotal    prometheus.Counter
	evaluationsTotal   *prometheus.CounterVec
	casesTotal         *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	passRate           *prometheus.GaugeVec
	categoryPassRate   *prometheus.GaugeVec
	currentRound       prometheus.Gauge
}

// NewRecorder creates and registers all collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		roundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rounds_total",
				Help:      "Rounds played, by decision",
			},
			[]string{"decision"},
		),
		promotionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "promotions_total",
				Help:      "Challengers promoted to champion",
			},
		),
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Adapter evaluations, by split and prompt",
			},
			[]string{"split", "prompt"},
		),
		casesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_total",
				Help:      "Evaluated cases, by split, prompt and outcome",
			},
			[]string{"split", "prompt", "outcome"}, // outcome: pass, fail
		),
		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Wall time of one adapter evaluation",
				Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
			},
			[]string{"split"},
		),
		passRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pass_rate_percent",
				Help:      "Latest pass rate, by split and prompt",
			},
			[]string{"split", "prompt"},
		),
		categoryPassRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "train_category_pass_rate_percent",
				Help:      "Latest train pass rate per category, by prompt",
			},
			[]string{"category", "prompt"},
		),
		currentRound: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "round",
				Help:      "Last completed round",
			},
		),
	}
	r.registry.MustRegister(
		r.roundsTotal,
		r.promotionsTotal,
		r.evaluationsTotal,
		r.casesTotal,
		r.evaluationDuration,
		r.passRate,
		r.categoryPassRate,
		r.currentRound,
	)
	return r
}

// ObserveEvaluation records one adapter call. Labels look like "train_a".
func (r *Recorder) ObserveEvaluation(label string, s eval.Summary, elapsed time.Duration) {
	split, prompt := splitLabel(label)
	r.evaluationsTotal.WithLabelValues(split, prompt).Inc()
	r.casesTotal.WithLabelValues(split, prompt, "pass").Add(float64(s.PassCount))
	r.casesTotal.WithLabelValues(split, prompt, "fail").Add(float64(s.FailCount))
	r.evaluationDuration.WithLabelValues(split).Observe(elapsed.Seconds())
	r.passRate.WithLabelValues(split, prompt).Set(s.PassRate)
}

// ObserveRound records a finished round.
func (r *Recorder) ObserveRound(rec *tournament.RoundRecord) {
	r.roundsTotal.WithLabelValues(string(rec.Decision.Decision)).Inc()
	if rec.Decision.PromoteB {
		r.promotionsTotal.Inc()
	}
	r.currentRound.Set(float64(rec.Round))
	for cat, s := range rec.Train.ACategoryStats {
		r.categoryPassRate.WithLabelValues(string(cat), "a").Set(s.PassRate)
	}
	for cat, s := range rec.Train.BCategoryStats {
		r.categoryPassRate.WithLabelValues(string(cat), "b").Set(s.PassRate)
	}
}

// WriteTextfile writes every collected series to path in the text
// exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	logging.Metrics("wrote metrics to %s", path)
	return nil
}

func splitLabel(label string) (split, prompt string) {
	i := strings.LastIndexByte(label, '_')
	if i < 0 {
		return label, ""
	}
	return label[:i], label[i+1:]
}
