// Package metrics exposes the info model's guardrail counters for
// diagnostics, optionally as Prometheus gauges on an HTTP /metrics
// endpoint.
package metrics

import (
	"github.com/bimmerbailey/cyro/internal/infomodel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry owns the Prometheus gauges that mirror a Model's Counters. It is
// safe to register once per process; callers that don't need HTTP
// exposition can ignore this type entirely and just call model.Counters().
type Registry struct {
	tokens              prometheus.Gauge
	templates           prometheus.Gauge
	totalTokens         prometheus.Gauge
	totalTemplates      prometheus.Gauge
	seenLines           prometheus.Gauge
	g                   prometheus.Gauge
	renormalizations    prometheus.Gauge
	linesTruncated      prometheus.Gauge
	linesTokenTruncated prometheus.Gauge
	linesDropped        prometheus.Gauge
	alertsEmitted       prometheus.Counter
}

// NewRegistry creates and registers the gauge/counter set under reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics
// handler.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	namespace := "cyro"

	return &Registry{
		tokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vocab_tokens", Help: "Distinct tokens currently tracked.",
		}),
		templates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "vocab_templates", Help: "Distinct templates currently tracked.",
		}),
		totalTokens: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_token_mass", Help: "Sum of decay-scaled token counts.",
		}),
		totalTemplates: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "total_template_mass", Help: "Sum of decay-scaled template counts.",
		}),
		seenLines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "seen_lines", Help: "Lines observed by the model.",
		}),
		g: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "decay_scale", Help: "Current lazy-decay scale factor g.",
		}),
		renormalizations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "renormalizations", Help: "Times g has been folded back into stored counts.",
		}),
		linesTruncated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lines_truncated", Help: "Lines truncated for exceeding max_line_length.",
		}),
		linesTokenTruncated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lines_token_truncated", Help: "Lines whose token count exceeded max_tokens_per_line.",
		}),
		linesDropped: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "lines_dropped", Help: "Lines dropped by guardrails.",
		}),
		alertsEmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "alerts_emitted_total", Help: "Alerts emitted to the sink.",
		}),
	}
}

// Observe updates every gauge from a fresh Counters snapshot. Call this
// just before the /metrics handler serves a scrape, or on a periodic timer.
func (r *Registry) Observe(c infomodel.Counters) {
	r.tokens.Set(float64(c.Tokens))
	r.templates.Set(float64(c.Templates))
	r.totalTokens.Set(c.TotalTokens)
	r.totalTemplates.Set(c.TotalTemplates)
	r.seenLines.Set(float64(c.SeenLines))
	r.g.Set(c.G)
	r.renormalizations.Set(float64(c.Renormalizations))
	r.linesTruncated.Set(float64(c.LinesTruncated))
	r.linesTokenTruncated.Set(float64(c.LinesTokenTruncated))
	r.linesDropped.Set(float64(c.LinesDropped))
}

// IncAlertsEmitted increments the alerts-emitted counter by one.
func (r *Registry) IncAlertsEmitted() {
	r.alertsEmitted.Inc()
}
