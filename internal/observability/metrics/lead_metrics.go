package metrics

import "github.com/prometheus/client_golang/prometheus"

// LeadMetrics exposes counters/histograms for the lead intake flow.
type LeadMetrics struct {
	submissions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	emails         *prometheus.CounterVec
	geolocation    *prometheus.CounterVec
	submitDuration prometheus.Histogram
}

func NewLeadMetrics(reg prometheus.Registerer) *LeadMetrics {
	m := &LeadMetrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "submissions_total",
			Help:      "Lead submissions by outcome",
		}, []string{"outcome"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "security_rejections_total",
			Help:      "Fields rejected by malicious-pattern detection",
		}, []string{"field"}),
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "emails_total",
			Help:      "Notification emails by kind and delivery status",
		}, []string{"kind", "status"}),
		geolocation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "geolocation_total",
			Help:      "Country lookups by status",
		}, []string{"status"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "landing",
			Subsystem: "leads",
			Name:      "submit_duration_seconds",
			Help:      "Latency of lead submission handling",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissions, m.rejections, m.emails, m.geolocation, m.submitDuration)
	return m
}

// ObserveSubmission records a submission outcome such as "created",
// "validation_failed", "rate_limited" or "honeypot".
func (m *LeadMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *LeadMetrics) ObserveSecurityRejection(field string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(field).Inc()
}

func (m *LeadMetrics) ObserveEmail(kind string, sent bool) {
	if m == nil {
		return
	}
	status := "sent"
	if !sent {
		status = "failed"
	}
	m.emails.WithLabelValues(kind, status).Inc()
}

func (m *LeadMetrics) ObserveGeolocation(status string) {
	if m == nil {
		return
	}
	m.geolocation.WithLabelValues(status).Inc()
}

func (m *LeadMetrics) ObserveSubmitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.submitDuration.Observe(seconds)
}
