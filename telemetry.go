package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	bytesSent             atomic.Uint64
	snapshotsSent         atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastPatients atomic.Uint64
	patientsAdmitted      atomic.Uint64
	patientsTreated       atomic.Uint64
	examsResolved         atomic.Uint64
	debug                 bool
}

type telemetrySnapshot struct {
	BytesSent        uint64 `json:"bytesSent"`
	SnapshotsSent    uint64 `json:"snapshotsSent"`
	TickDuration     int64  `json:"tickDurationMillis"`
	PatientsAdmitted uint64 `json:"patientsAdmitted"`
	PatientsTreated  uint64 `json:"patientsTreated"`
	ExamsResolved    uint64 `json:"examsResolved"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordBroadcast(bytes, patients int) {
	if bytes < 0 {
		bytes = 0
	}
	if patients < 0 {
		patients = 0
	}
	t.bytesSent.Add(uint64(bytes))
	t.snapshotsSent.Add(1)
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastPatients.Store(uint64(patients))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms bytes=%d totalBytes=%d patients=%d\n",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastPatients.Load(),
		)
	}
}

func (t *telemetryCounters) RecordAdmission() {
	t.patientsAdmitted.Add(1)
}

func (t *telemetryCounters) RecordTreatment() {
	t.patientsTreated.Add(1)
}

func (t *telemetryCounters) RecordExamResolved() {
	t.examsResolved.Add(1)
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		BytesSent:        t.bytesSent.Load(),
		SnapshotsSent:    t.snapshotsSent.Load(),
		TickDuration:     t.tickDurationMillis.Load(),
		PatientsAdmitted: t.patientsAdmitted.Load(),
		PatientsTreated:  t.patientsTreated.Load(),
		ExamsResolved:    t.examsResolved.Load(),
	}
}
