package observability

import (
	"context"
	"encoding/json"

	"klinik-hewan/server/logging"
	loggingclinic "klinik-hewan/server/logging/clinic"
)

// MetricsSink translates clinic events into Prometheus counters. It plugs
// into the logging router next to the console and json sinks, so the
// metrics pipeline rides the same event stream the logs do.
type MetricsSink struct{}

func NewMetricsSink() *MetricsSink {
	return &MetricsSink{}
}

func (s *MetricsSink) Write(event logging.Event) error {
	switch event.Type {
	case loggingclinic.EventPatientAdmitted:
		PatientsAdmittedTotal.Inc()
	case loggingclinic.EventPatientTreated:
		if payload, ok := treatedPayload(event.Payload); ok {
			PatientsTreatedTotal.Inc()
			TreatmentFees.Observe(float64(payload.Fee))
		}
	case loggingclinic.EventTreatmentRejected:
		if payload, ok := rejectedPayload(event.Payload); ok {
			TreatmentsRejectedTotal.WithLabelValues(payload.Reason).Inc()
		}
	case loggingclinic.EventExamResolved:
		if payload, ok := examPayload(event.Payload); ok {
			ExamScores.Observe(float64(payload.Score))
		}
	}
	return nil
}

func (s *MetricsSink) Close(context.Context) error {
	return nil
}

func treatedPayload(raw any) (loggingclinic.PatientTreatedPayload, bool) {
	if payload, ok := raw.(loggingclinic.PatientTreatedPayload); ok {
		return payload, true
	}
	var payload loggingclinic.PatientTreatedPayload
	return payload, decodePayload(raw, &payload)
}

func rejectedPayload(raw any) (loggingclinic.TreatmentRejectedPayload, bool) {
	if payload, ok := raw.(loggingclinic.TreatmentRejectedPayload); ok {
		return payload, true
	}
	var payload loggingclinic.TreatmentRejectedPayload
	return payload, decodePayload(raw, &payload)
}

func examPayload(raw any) (loggingclinic.ExamResolvedPayload, bool) {
	if payload, ok := raw.(loggingclinic.ExamResolvedPayload); ok {
		return payload, true
	}
	var payload loggingclinic.ExamResolvedPayload
	return payload, decodePayload(raw, &payload)
}

// decodePayload handles events that were round-tripped through JSON.
func decodePayload(raw any, out any) bool {
	data, err := json.Marshal(raw)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}
