package clinic

import (
	"context"

	"klinik-hewan/server/logging"
)

const (
	// EventPatientAdmitted is emitted when the scheduler seats a new patient.
	EventPatientAdmitted logging.EventType = "clinic.patient_admitted"
	// EventPatientCalled is emitted when a waiting patient is sent to the exam table.
	EventPatientCalled logging.EventType = "clinic.patient_called"
	// EventPatientTreated is emitted after a successful treatment.
	EventPatientTreated logging.EventType = "clinic.patient_treated"
	// EventTreatmentRejected is emitted when a treat attempt fails a precondition.
	EventTreatmentRejected logging.EventType = "clinic.treatment_rejected"
	// EventExamResolved is emitted when the dosage slider finishes.
	EventExamResolved logging.EventType = "clinic.exam_resolved"
	// EventSessionReset is emitted when the whole clinic session is cleared.
	EventSessionReset logging.EventType = "clinic.session_reset"
	// EventClinicReport is the periodic summary emitted by the scheduler.
	EventClinicReport logging.EventType = "clinic.report"
)

// PatientAdmittedPayload describes a freshly spawned patient.
type PatientAdmittedPayload struct {
	Name      string `json:"name"`
	Species   string `json:"species"`
	Complaint string `json:"complaint"`
	Seat      int    `json:"seat"`
}

// PatientCalledPayload describes a call-next promotion.
type PatientCalledPayload struct {
	Complaint string `json:"complaint"`
	Waiting   int    `json:"waiting"`
}

// PatientTreatedPayload describes a completed treatment.
type PatientTreatedPayload struct {
	Medicine  string `json:"medicine"`
	Fee       int    `json:"fee"`
	ExamScore int    `json:"examScore,omitempty"`
	Examined  bool   `json:"examined"`
}

// TreatmentRejectedPayload describes why a treat attempt was declined.
type TreatmentRejectedPayload struct {
	Reason string `json:"reason"`
}

// ExamResolvedPayload describes a finished dosage slider.
type ExamResolvedPayload struct {
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// ClinicReportPayload summarizes activity since startup.
type ClinicReportPayload struct {
	PatientsAdmitted uint64 `json:"patientsAdmitted"`
	PatientsTreated  uint64 `json:"patientsTreated"`
	ExamsResolved    uint64 `json:"examsResolved"`
	Waiting          int    `json:"waiting"`
	Open             bool   `json:"open"`
}

// PatientAdmitted publishes a patient admission event.
func PatientAdmitted(ctx context.Context, pub logging.Publisher, tick uint64, patient logging.EntityRef, payload PatientAdmittedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPatientAdmitted,
		Tick:     tick,
		Actor:    patient,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryClinic,
		Payload:  payload,
	})
}

// PatientCalled publishes a call-next event.
func PatientCalled(ctx context.Context, pub logging.Publisher, tick uint64, patient logging.EntityRef, payload PatientCalledPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPatientCalled,
		Tick:     tick,
		Actor:    patient,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryClinic,
		Payload:  payload,
	})
}

// PatientTreated publishes a successful treatment event.
func PatientTreated(ctx context.Context, pub logging.Publisher, tick uint64, patient logging.EntityRef, payload PatientTreatedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventPatientTreated,
		Tick:     tick,
		Actor:    patient,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryEconomy,
		Payload:  payload,
	})
}

// TreatmentRejected publishes a declined treat attempt.
func TreatmentRejected(ctx context.Context, pub logging.Publisher, tick uint64, patient logging.EntityRef, payload TreatmentRejectedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventTreatmentRejected,
		Tick:     tick,
		Actor:    patient,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryClinic,
		Payload:  payload,
	})
}

// ExamResolved publishes a finished dosage slider event.
func ExamResolved(ctx context.Context, pub logging.Publisher, tick uint64, patient logging.EntityRef, payload ExamResolvedPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventExamResolved,
		Tick:     tick,
		Actor:    patient,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryClinic,
		Payload:  payload,
	})
}

// SessionReset publishes a full clinic reset.
func SessionReset(ctx context.Context, pub logging.Publisher, tick uint64) {
	publish(ctx, pub, logging.Event{
		Type:     EventSessionReset,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindClinic},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryClinic,
	})
}

// Report publishes the periodic clinic summary.
func Report(ctx context.Context, pub logging.Publisher, tick uint64, payload ClinicReportPayload) {
	publish(ctx, pub, logging.Event{
		Type:     EventClinicReport,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindClinic},
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		Payload:  payload,
	})
}

func publish(ctx context.Context, pub logging.Publisher, event logging.Event) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, event)
}
