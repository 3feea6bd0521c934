// Package observability exposes Prometheus metrics for the clinic server:
// HTTP request counters and latencies, plus clinic-domain counters fed from
// the structured event stream.
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	PatientsAdmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_patients_admitted_total",
			Help: "Patients admitted to the waiting queue",
		},
	)

	PatientsTreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_patients_treated_total",
			Help: "Patients successfully treated",
		},
	)

	TreatmentsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_treatments_rejected_total",
			Help: "Treat attempts declined by a precondition",
		},
		[]string{"reason"},
	)

	TreatmentFees = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_treatment_fee_coins",
			Help:    "Fees charged for completed treatments",
			Buckets: []float64{8, 25, 50, 75, 100, 150, 250, 500},
		},
	)

	ExamScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clinic_exam_score",
			Help:    "Dosage slider scores",
			Buckets: []float64{0, 20, 40, 60, 80, 90, 100},
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(PatientsAdmittedTotal)
	prometheus.MustRegister(PatientsTreatedTotal)
	prometheus.MustRegister(TreatmentsRejectedTotal)
	prometheus.MustRegister(TreatmentFees)
	prometheus.MustRegister(ExamScores)
}
