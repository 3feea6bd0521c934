package server

import (
	"context"
	"testing"
	"time"

	"klinik-hewan/server/logging"
	loggingclinic "klinik-hewan/server/logging/clinic"
)

func newTestHub() *Hub {
	return NewHub(ClinicConfig{SpawnDelayMin: time.Millisecond, SpawnDelayMax: time.Millisecond}, nil, nil)
}

func TestJoinSeedsStarterVet(t *testing.T) {
	h := newTestHub()
	resp := h.Join()

	if resp.ID != "vet-1" {
		t.Fatalf("first vet id = %q, want vet-1", resp.ID)
	}
	if resp.Vet.Money != 120 {
		t.Fatalf("starting money = %d, want 120", resp.Vet.Money)
	}
	if resp.Vet.Stamina != staminaMax {
		t.Fatalf("starting stamina = %v, want %v", resp.Vet.Stamina, staminaMax)
	}
	if !resp.Vet.Inventory.HasItemByName("Obat Kutu") || !resp.Vet.Inventory.HasItemByName("Vitamin Hewan") {
		t.Fatalf("starter bag = %+v", resp.Vet.Inventory.Items)
	}
	if resp.Config.TickRate != tickRate {
		t.Fatalf("config tick rate = %d, want %d", resp.Config.TickRate, tickRate)
	}

	second := h.Join()
	if second.ID != "vet-2" {
		t.Fatalf("second vet id = %q, want vet-2", second.ID)
	}
	if len(second.Vets) != 2 {
		t.Fatalf("join snapshot lists %d vets, want 2", len(second.Vets))
	}
}

func TestBuyMedicine(t *testing.T) {
	h := newTestHub()
	resp := h.Join()
	vet := h.vets[resp.ID]

	h.Buy(resp.ID, "Perban")
	if vet.Money != 80 {
		t.Fatalf("money after purchase = %d, want 80", vet.Money)
	}
	if !vet.Inventory.HasItemByName("Perban") {
		t.Fatalf("purchased medicine missing from bag")
	}

	h.Buy(resp.ID, "Golden Apple")
	if vet.Money != 80 {
		t.Fatalf("unknown item changed money to %d", vet.Money)
	}

	vet.Money = 5
	h.Buy(resp.ID, "Perban")
	if vet.Money != 5 || len(vet.Inventory.Items) != 3 {
		t.Fatalf("insufficient funds still bought: money=%d bag=%d", vet.Money, len(vet.Inventory.Items))
	}
}

func TestToggleOpenFlips(t *testing.T) {
	h := newTestHub()
	resp := h.Join()

	h.ToggleOpen(resp.ID)
	if !h.clinic.IsOpen() {
		t.Fatalf("clinic closed after first toggle")
	}
	h.ToggleOpen(resp.ID)
	if h.clinic.IsOpen() {
		t.Fatalf("clinic open after second toggle")
	}
}

func TestHubTreatWiresVetResources(t *testing.T) {
	h := newTestHub()
	resp := h.Join()
	vet := h.vets[resp.ID]

	seatPatient(t, h.clinic, ComplaintWound)
	promoteToExam(t, h.clinic, false)

	vet.X = h.clinic.layout.ExamSpot.X
	vet.Y = h.clinic.layout.ExamSpot.Y
	vet.Inventory.Add(Item{Name: "Perban"})

	h.Treat(resp.ID)

	if vet.Money != 120+100 {
		t.Fatalf("money after treatment = %d, want 220", vet.Money)
	}
	if vet.Inventory.HasItemByName("Perban") {
		t.Fatalf("bandage not consumed")
	}
	if vet.Stamina != staminaMax-staminaCostPerService {
		t.Fatalf("stamina after treatment = %v, want %v", vet.Stamina, staminaMax-staminaCostPerService)
	}
}

func TestHubResetKeepsVetResources(t *testing.T) {
	h := newTestHub()
	resp := h.Join()
	vet := h.vets[resp.ID]
	vet.Money = 321

	seatPatient(t, h.clinic, ComplaintFleas)
	h.Reset(resp.ID)

	if len(h.clinic.patients) != 0 {
		t.Fatalf("reset left %d patients", len(h.clinic.patients))
	}
	if vet.Money != 321 {
		t.Fatalf("reset touched vet money: %d", vet.Money)
	}
}

func TestHubCommandsIgnoreUnknownVet(t *testing.T) {
	h := newTestHub()
	h.CallNext("vet-404")
	h.Treat("vet-404")
	h.ExamHit("vet-404")
	h.ToggleOpen("vet-404")
	h.Reset("vet-404")
	h.Buy("vet-404", "Perban")

	if h.clinic.IsOpen() {
		t.Fatalf("unknown vet toggled the clinic")
	}
	if h.UpdateIntent("vet-404", 1, 0, "right") {
		t.Fatalf("unknown vet accepted intent")
	}
}

func TestTelemetryPublisherCounts(t *testing.T) {
	counters := newTelemetryCounters()
	pub := &telemetryPublisher{inner: logging.NopPublisher(), counters: counters}

	pub.Publish(context.Background(), logging.Event{Type: loggingclinic.EventPatientAdmitted})
	pub.Publish(context.Background(), logging.Event{Type: loggingclinic.EventPatientAdmitted})
	pub.Publish(context.Background(), logging.Event{Type: loggingclinic.EventPatientTreated})
	pub.Publish(context.Background(), logging.Event{Type: loggingclinic.EventExamResolved})
	pub.Publish(context.Background(), logging.Event{Type: loggingclinic.EventTreatmentRejected})

	snapshot := counters.Snapshot()
	if snapshot.PatientsAdmitted != 2 {
		t.Fatalf("admissions = %d, want 2", snapshot.PatientsAdmitted)
	}
	if snapshot.PatientsTreated != 1 {
		t.Fatalf("treatments = %d, want 1", snapshot.PatientsTreated)
	}
	if snapshot.ExamsResolved != 1 {
		t.Fatalf("exams = %d, want 1", snapshot.ExamsResolved)
	}
}

func TestUpdateHeartbeatDerivesRTT(t *testing.T) {
	h := newTestHub()
	resp := h.Join()

	now := time.Now()
	rtt, ok := h.UpdateHeartbeat(resp.ID, now, now.Add(-40*time.Millisecond).UnixMilli())
	if !ok {
		t.Fatalf("heartbeat rejected for live vet")
	}
	if rtt < 39*time.Millisecond || rtt > 41*time.Millisecond {
		t.Fatalf("rtt = %v, want ~40ms", rtt)
	}

	if _, ok := h.UpdateHeartbeat("vet-404", now, 0); ok {
		t.Fatalf("heartbeat accepted for unknown vet")
	}
}
