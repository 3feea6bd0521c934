package server

import (
	"math/rand"
	"strings"
	"testing"
	"time"
)

func newTestClinic(seed int64) *Clinic {
	cfg := ClinicConfig{SpawnDelayMin: time.Millisecond, SpawnDelayMax: time.Millisecond}
	return NewClinic(cfg, nil, rand.New(rand.NewSource(seed)))
}

// seatPatient places a patient directly on the next free bench seat,
// bypassing the walk-in animation.
func seatPatient(t *testing.T, c *Clinic, complaint ComplaintID) *patientState {
	t.Helper()
	c.counter++
	seat := c.layout.seatAt(len(c.waitingIDs))
	p := &patientState{
		Patient: Patient{
			ID:          c.counter,
			Name:        patientNameFor(c.counter),
			Species:     patientSpeciesFor(c.counter),
			ComplaintID: complaint,
			Pos:         seat,
			Target:      seat,
			State:       PatientWaiting,
			SpriteID:    spriteFor(patientNameFor(c.counter), c.counter),
		},
		speedTiles: tilesPerSecond,
	}
	c.patients[p.ID] = p
	c.waitingIDs = append(c.waitingIDs, p.ID)
	return p
}

// promoteToExam calls the patient and teleports it onto the exam spot with
// the exam requirement already decided.
func promoteToExam(t *testing.T, c *Clinic, examRequired bool) *patientState {
	t.Helper()
	c.CallNext(time.Now(), nil)
	if c.activeID == 0 {
		t.Fatalf("call-next did not promote a patient")
	}
	p := c.patients[c.activeID]
	p.Pos = c.layout.ExamSpot
	p.Target = c.layout.ExamSpot
	p.State = PatientExam
	p.AtExam = true
	p.examRolled = true
	p.ExamRequired = examRequired
	p.ExamDone = !examRequired
	return p
}

func bagWith(names ...string) *Inventory {
	inv := NewInventory()
	for _, name := range names {
		inv.Add(Item{Name: name, Emoji: medicineEmoji(name)})
	}
	return &inv
}

func treatContext(c *Clinic, bag *Inventory, money *int, stamina float64, toasts *toastCollector, served *int) TreatContext {
	var toaster Toaster
	if toasts != nil {
		toaster = toasts
	}
	return TreatContext{
		PlayerPos: c.layout.ExamSpot,
		Stamina:   stamina,
		Inventory: bag,
		CreditMoney: func(amount int) {
			if money != nil {
				*money += amount
			}
		},
		Toast: toaster,
		AfterServe: func() {
			if served != nil {
				*served++
			}
		},
	}
}

func hasToast(toasts *toastCollector, fragment string) bool {
	for _, message := range toasts.messages {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

func TestSpawnRespectsCapacity(t *testing.T) {
	c := newTestClinic(1)
	now := time.Unix(0, 0)
	c.SetOpen(true, now)

	for i := 0; i < 200; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)

		occupied := len(c.waitingIDs)
		if c.activeID != 0 {
			occupied++
		}
		if occupied > c.maxSeats {
			t.Fatalf("tick %d: %d patients occupy %d seats", i, occupied, c.maxSeats)
		}
	}

	if len(c.waitingIDs) != c.maxSeats {
		t.Fatalf("queue settled at %d, want %d", len(c.waitingIDs), c.maxSeats)
	}
}

func TestClosedClinicAdmitsNobody(t *testing.T) {
	c := newTestClinic(1)
	now := time.Unix(0, 0)

	for i := 0; i < 50; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
	}
	if len(c.patients) != 0 {
		t.Fatalf("closed clinic spawned %d patients", len(c.patients))
	}
}

func TestCloseStopsSpawningButKeepsVisitors(t *testing.T) {
	c := newTestClinic(1)
	now := time.Unix(0, 0)
	c.SetOpen(true, now)
	for i := 0; i < 100; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
	}
	before := len(c.patients)
	if before == 0 {
		t.Fatalf("no patients spawned while open")
	}

	c.SetOpen(false, now)
	for i := 0; i < 20; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
	}
	if len(c.patients) != before {
		t.Fatalf("patient count changed from %d to %d after closing", before, len(c.patients))
	}
}

func TestCallNextIsFIFO(t *testing.T) {
	c := newTestClinic(1)
	first := seatPatient(t, c, ComplaintFleas)
	second := seatPatient(t, c, ComplaintCold)
	third := seatPatient(t, c, ComplaintWound)

	toasts := &toastCollector{}
	c.CallNext(time.Now(), toasts)

	if c.activeID != first.ID {
		t.Fatalf("active = %d, want first seated %d", c.activeID, first.ID)
	}
	if first.State != PatientToExam {
		t.Fatalf("first patient state = %s, want %s", first.State, PatientToExam)
	}
	if !hasToast(toasts, ComplaintText(ComplaintFleas)) {
		t.Fatalf("call-next did not announce the complaint, got %v", toasts.messages)
	}

	// The survivors shift forward one bench seat each.
	if second.Target != c.layout.seatAt(0) {
		t.Fatalf("second patient retargeted to %+v, want seat 0", second.Target)
	}
	if third.Target != c.layout.seatAt(1) {
		t.Fatalf("third patient retargeted to %+v, want seat 1", third.Target)
	}
	if len(c.waitingIDs) != 2 || c.waitingIDs[0] != second.ID {
		t.Fatalf("waiting queue = %v", c.waitingIDs)
	}
}

func TestCallNextRequiresSeatedPatient(t *testing.T) {
	c := newTestClinic(1)
	p := seatPatient(t, c, ComplaintFleas)
	p.Pos = c.layout.PatientSpawn // still walking in
	p.State = PatientEntering

	toasts := &toastCollector{}
	c.CallNext(time.Now(), toasts)

	if c.activeID != 0 {
		t.Fatalf("promoted a patient that had not reached the bench")
	}
	if !hasToast(toasts, "Tunggu pasien duduk dulu.") {
		t.Fatalf("missing seating toast, got %v", toasts.messages)
	}
	if len(c.waitingIDs) != 1 {
		t.Fatalf("queue mutated on failed call-next: %v", c.waitingIDs)
	}
}

func TestCallNextWhileExamBusy(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	busy := promoteToExam(t, c, false)
	seatPatient(t, c, ComplaintCold)

	toasts := &toastCollector{}
	c.CallNext(time.Now(), toasts)

	if c.activeID != busy.ID {
		t.Fatalf("active changed to %d while %d was being examined", c.activeID, busy.ID)
	}
	if !hasToast(toasts, "masih diperiksa") {
		t.Fatalf("missing busy toast, got %v", toasts.messages)
	}
}

func TestCallNextEmptyQueueToasts(t *testing.T) {
	c := newTestClinic(1)

	toasts := &toastCollector{}
	c.CallNext(time.Now(), toasts)
	if !hasToast(toasts, "Klinik masih tutup.") {
		t.Fatalf("closed clinic toast missing, got %v", toasts.messages)
	}

	c.SetOpen(true, time.Now())
	toasts = &toastCollector{}
	c.CallNext(time.Now(), toasts)
	if !hasToast(toasts, "Tidak ada pasien di ruang tunggu.") {
		t.Fatalf("empty queue toast missing, got %v", toasts.messages)
	}
}

func TestTreatHappyPath(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	p := promoteToExam(t, c, false)

	bag := bagWith("Obat Kutu", "Perban")
	money := 0
	served := 0
	toasts := &toastCollector{}

	c.Treat(time.Now(), treatContext(c, bag, &money, staminaMax, toasts, &served))

	if money != 90 {
		t.Fatalf("fee credited = %d, want 90", money)
	}
	if bag.HasItemByName("Obat Kutu") {
		t.Fatalf("medicine was not consumed")
	}
	if !bag.HasItemByName("Perban") {
		t.Fatalf("unrelated bag item was consumed")
	}
	if served != 1 {
		t.Fatalf("after-serve hook ran %d times, want 1", served)
	}
	if p.State != PatientLeaving {
		t.Fatalf("patient state = %s, want %s", p.State, PatientLeaving)
	}
	if c.activeID != 0 {
		t.Fatalf("active id = %d after treatment, want 0", c.activeID)
	}
	if c.lastOutcome == nil || c.lastOutcome.Fee != 90 || c.lastOutcome.Medicine != "Obat Kutu" {
		t.Fatalf("last outcome = %+v", c.lastOutcome)
	}
	if !hasToast(toasts, "Makasih dok") {
		t.Fatalf("missing success toast, got %v", toasts.messages)
	}
}

func TestTreatWithoutMatchingMedicine(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	promoteToExam(t, c, false)

	bag := bagWith("Perban")
	money := 0
	toasts := &toastCollector{}

	c.Treat(time.Now(), treatContext(c, bag, &money, staminaMax, toasts, nil))

	if money != 0 {
		t.Fatalf("fee credited on rejection: %d", money)
	}
	if !bag.HasItemByName("Perban") {
		t.Fatalf("bag mutated on rejection")
	}
	if !hasToast(toasts, "Tidak ada obat yang cocok di tas.") {
		t.Fatalf("missing mismatch toast, got %v", toasts.messages)
	}
	if c.activeID == 0 {
		t.Fatalf("patient left after rejected treatment")
	}
}

func TestTreatOutOfRange(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	promoteToExam(t, c, false)

	toasts := &toastCollector{}
	tc := treatContext(c, bagWith("Obat Kutu"), nil, staminaMax, toasts, nil)
	tc.PlayerPos = vec2{X: 1, Y: 1}

	c.Treat(time.Now(), tc)
	if !hasToast(toasts, "Maju sedikit ke meja periksa dulu.") {
		t.Fatalf("missing range toast, got %v", toasts.messages)
	}
}

func TestTreatBeforeArrivalAtExamSpot(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	c.CallNext(time.Now(), nil)

	toasts := &toastCollector{}
	c.Treat(time.Now(), treatContext(c, bagWith("Obat Kutu"), nil, staminaMax, toasts, nil))
	if !hasToast(toasts, "Pasien belum di exam spot.") {
		t.Fatalf("missing arrival toast, got %v", toasts.messages)
	}
}

func TestTreatWithoutActivePatientIsNoop(t *testing.T) {
	c := newTestClinic(1)
	toasts := &toastCollector{}
	c.Treat(time.Now(), treatContext(c, bagWith("Obat Kutu"), nil, staminaMax, toasts, nil))
	if len(toasts.messages) != 0 {
		t.Fatalf("treat without patient produced toasts: %v", toasts.messages)
	}
}

func TestTreatStaminaGate(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	promoteToExam(t, c, false)

	bag := bagWith("Obat Kutu")
	money := 0
	toasts := &toastCollector{}

	c.Treat(time.Now(), treatContext(c, bag, &money, staminaCostPerService-1, toasts, nil))

	if money != 0 || !bag.HasItemByName("Obat Kutu") {
		t.Fatalf("exhausted vet still completed the treatment")
	}
	if !hasToast(toasts, "Stamina habis") {
		t.Fatalf("missing stamina toast, got %v", toasts.messages)
	}
}

func TestTreatDuplicateInvocationIsSwallowed(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	promoteToExam(t, c, false)

	bag := bagWith("Obat Kutu", "Obat Kutu")
	money := 0
	now := time.Now()

	c.Treat(now, treatContext(c, bag, &money, staminaMax, nil, nil))
	c.Treat(now.Add(50*time.Millisecond), treatContext(c, bag, &money, staminaMax, nil, nil))

	if money != 90 {
		t.Fatalf("duplicate treat charged %d, want 90", money)
	}
	if _, ok := bag.FindFirstByName("Obat Kutu"); !ok {
		t.Fatalf("duplicate treat consumed the second medicine")
	}
}

func TestTreatOpensExamAndDefersResolution(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	p := promoteToExam(t, c, true)

	bag := bagWith("Obat Kutu")
	money := 0
	toasts := &toastCollector{}
	now := time.Now()

	c.Treat(now, treatContext(c, bag, &money, staminaMax, toasts, nil))

	if c.exam == nil {
		t.Fatalf("required exam did not open the dosage slider")
	}
	if money != 0 || !bag.HasItemByName("Obat Kutu") {
		t.Fatalf("deferred treatment consumed resources early")
	}

	// Land every try dead centre for a perfect score.
	for c.exam != nil && !c.exam.Finished {
		c.exam.Cursor = c.exam.ZoneStart + examZoneWidth/2
		c.ExamHit(toasts)
	}

	if !p.ExamDone || p.ExamScore != 100 {
		t.Fatalf("exam result = done=%v score=%d, want done with 100", p.ExamDone, p.ExamScore)
	}
	if !hasToast(toasts, "Mengatur dosis selesai (skor 100)") {
		t.Fatalf("missing exam toast, got %v", toasts.messages)
	}

	c.Treat(now.Add(time.Second), treatContext(c, bag, &money, staminaMax, toasts, nil))

	if money != 99 {
		t.Fatalf("fee after perfect exam = %d, want 99", money)
	}
	if c.lastOutcome == nil || !c.lastOutcome.Examined || c.lastOutcome.ExamScore != 100 {
		t.Fatalf("last outcome = %+v", c.lastOutcome)
	}
	if c.exam != nil {
		t.Fatalf("exam session survived the completed treatment")
	}
}

func TestExamTimeoutResolvesDuringAdvance(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	p := promoteToExam(t, c, true)

	c.Treat(time.Now(), treatContext(c, bagWith("Obat Kutu"), nil, staminaMax, nil, nil))
	if c.exam == nil {
		t.Fatalf("exam did not open")
	}

	toasts := &toastCollector{}
	now := time.Unix(100, 0)
	for i := 0; i < 500 && !p.ExamDone; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, toasts)
	}

	if !p.ExamDone {
		t.Fatalf("exam never timed out")
	}
	if !hasToast(toasts, "Waktu habis!") {
		t.Fatalf("missing timeout toast, got %v", toasts.messages)
	}

	// A second resolution attempt must not change the score or re-toast.
	score := p.ExamScore
	before := len(toasts.messages)
	c.finishExam("timeout", toasts)
	if p.ExamScore != score || len(toasts.messages) != before {
		t.Fatalf("exam resolution was not idempotent")
	}
}

func TestResetClearsSession(t *testing.T) {
	c := newTestClinic(1)
	c.SetOpen(true, time.Now())
	seatPatient(t, c, ComplaintFleas)
	seatPatient(t, c, ComplaintCold)
	promoteToExam(t, c, true)
	c.Treat(time.Now(), treatContext(c, bagWith("Obat Kutu"), nil, staminaMax, nil, nil))

	c.Reset()

	if c.isOpen {
		t.Fatalf("clinic still open after reset")
	}
	if len(c.patients) != 0 || len(c.waitingIDs) != 0 || len(c.leavingIDs) != 0 {
		t.Fatalf("reset left residue: %d patients, %v waiting", len(c.patients), c.waitingIDs)
	}
	if c.activeID != 0 || c.exam != nil || c.lastOutcome != nil {
		t.Fatalf("reset left active state behind")
	}

	// Ids restart from one in the next session.
	c.SetOpen(true, time.Unix(0, 0))
	now := time.Unix(0, 0)
	for i := 0; i < 10 && len(c.patients) == 0; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
	}
	for id := range c.patients {
		if id != 1 {
			t.Fatalf("first patient after reset has id %d, want 1", id)
		}
	}
}

func TestSubscribersReceiveSnapshots(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)

	var got []ClinicSnapshot
	unsubscribe := c.Subscribe(func(s ClinicSnapshot) { got = append(got, s) })

	c.CallNext(time.Now(), nil)
	if len(got) == 0 {
		t.Fatalf("subscriber saw no snapshot after call-next")
	}
	last := got[len(got)-1]
	if last.ActiveID == 0 || len(last.Patients) != 1 {
		t.Fatalf("snapshot = %+v", last)
	}

	unsubscribe()
	count := len(got)
	c.Reset()
	if len(got) != count {
		t.Fatalf("unsubscribed callback still invoked")
	}
}

func TestSnapshotPatientsSortedAndCopied(t *testing.T) {
	c := newTestClinic(1)
	seatPatient(t, c, ComplaintFleas)
	seatPatient(t, c, ComplaintCold)
	seatPatient(t, c, ComplaintWound)

	snapshot := c.Snapshot()
	for i := 1; i < len(snapshot.Patients); i++ {
		if snapshot.Patients[i-1].ID >= snapshot.Patients[i].ID {
			t.Fatalf("patients not sorted by id: %+v", snapshot.Patients)
		}
	}

	snapshot.WaitingIDs[0] = 999
	if c.waitingIDs[0] == 999 {
		t.Fatalf("snapshot shares backing array with the clinic")
	}
}

func TestAdvanceIdleClinicKeepsTickStill(t *testing.T) {
	c := newTestClinic(1)
	c.Advance(time.Now(), 50*time.Millisecond, nil)
	if c.tick != 0 {
		t.Fatalf("idle clinic advanced its tick to %d", c.tick)
	}
}

func TestWalkInScenario(t *testing.T) {
	c := newTestClinic(7)
	now := time.Unix(0, 0)
	c.SetOpen(true, now)

	// Let the first patient walk in and sit down.
	var first *patientState
	for i := 0; i < 400; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
		if len(c.waitingIDs) > 0 {
			candidate := c.patients[c.waitingIDs[0]]
			if candidate.State == PatientWaiting && dist(candidate.Pos, c.layout.seatAt(0)) <= seatArrivalEpsilon {
				first = candidate
				break
			}
		}
	}
	if first == nil {
		t.Fatalf("no patient reached seat 0")
	}

	c.CallNext(now, nil)
	if c.activeID != first.ID {
		t.Fatalf("call-next promoted %d, want %d", c.activeID, first.ID)
	}

	// Walk to the exam table.
	for i := 0; i < 400 && first.State != PatientExam; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
	}
	if first.State != PatientExam || !first.AtExam {
		t.Fatalf("patient never reached the exam table: %+v", first.Patient)
	}

	// Skip the dice roll so the treatment resolves immediately.
	first.ExamRequired = false
	first.ExamDone = true

	cure := CureNamesFor(first.ComplaintID)[0]
	bag := bagWith(cure)
	money := 0
	c.Treat(now, treatContext(c, bag, &money, staminaMax, nil, nil))

	if money != ComputeFee(cure) {
		t.Fatalf("fee = %d, want %d", money, ComputeFee(cure))
	}
	if first.State != PatientLeaving {
		t.Fatalf("treated patient is %s, want %s", first.State, PatientLeaving)
	}

	// Walk out and despawn.
	for i := 0; i < 400; i++ {
		now = now.Add(50 * time.Millisecond)
		c.Advance(now, 50*time.Millisecond, nil)
		if _, ok := c.patients[first.ID]; !ok {
			return
		}
	}
	t.Fatalf("treated patient never left the clinic")
}
