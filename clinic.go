package server

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"klinik-hewan/server/logging"
	loggingclinic "klinik-hewan/server/logging/clinic"
)

// Toaster receives transient user-facing messages. Fire-and-forget; every
// declined operation and every success path reports through it.
type Toaster interface {
	Show(message string)
}

type ToastFunc func(message string)

func (f ToastFunc) Show(message string) {
	if f != nil {
		f(message)
	}
}

// InventoryAccess is the narrow bag contract treatment needs. The clinic
// never holds inventory state itself.
type InventoryAccess interface {
	HasItemByName(name string) bool
	RemoveFirstByName(name string) (Item, bool)
}

// TreatContext carries the external collaborators for one treat attempt:
// the vet's position and stamina are read-only, the bag and purse are
// mutated through callbacks, and AfterServe runs the caller's
// stamina-decay hook.
type TreatContext struct {
	PlayerPos   vec2
	Stamina     float64
	Inventory   InventoryAccess
	CreditMoney func(amount int)
	Toast       Toaster
	AfterServe  func()
}

// TreatmentOutcome records the last completed treatment for snapshots.
type TreatmentOutcome struct {
	PatientID uint64 `json:"patientId"`
	Medicine  string `json:"medicine"`
	Fee       int    `json:"fee"`
	ExamScore int    `json:"examScore"`
	Examined  bool   `json:"examined"`
}

// ClinicSnapshot is the read-only copy of session state handed to every
// subscriber after each meaningful mutation.
type ClinicSnapshot struct {
	IsOpen      bool              `json:"isOpen"`
	WaitingIDs  []uint64          `json:"waitingIds"`
	ActiveID    uint64            `json:"activeId"`
	LeavingIDs  []uint64          `json:"leavingIds"`
	Patients    []Patient         `json:"patients"`
	LastOutcome *TreatmentOutcome `json:"lastOutcome,omitempty"`
	Tick        uint64            `json:"tick"`
}

// ClinicConfig tunes the spawn scheduler.
type ClinicConfig struct {
	SpawnDelayMin time.Duration
	SpawnDelayMax time.Duration
}

func DefaultClinicConfig() ClinicConfig {
	return ClinicConfig{
		SpawnDelayMin: spawnDelayMin,
		SpawnDelayMax: spawnDelayMax,
	}
}

func (cfg ClinicConfig) normalized() ClinicConfig {
	if cfg.SpawnDelayMin <= 0 {
		cfg.SpawnDelayMin = spawnDelayMin
	}
	if cfg.SpawnDelayMax < cfg.SpawnDelayMin {
		cfg.SpawnDelayMax = cfg.SpawnDelayMin
	}
	return cfg
}

// Clinic owns one session of the patient-queue simulation: the waiting
// line, the exam table, the dosage slider, and the fee pipeline. It is not
// safe for concurrent use; the hub serializes access through its tick loop,
// matching the single-threaded model the simulation assumes.
type Clinic struct {
	cfg       ClinicConfig
	layout    clinicLayout
	rng       *rand.Rand
	publisher logging.Publisher

	isOpen      bool
	counter     uint64
	waitingIDs  []uint64
	activeID    uint64
	leavingIDs  []uint64
	patients    map[uint64]*patientState
	nextSpawnAt time.Time
	maxSeats    int
	lastOutcome *TreatmentOutcome

	exam             *examSession
	treatLockedUntil time.Time

	tick             uint64
	subscribers      map[uint64]func(ClinicSnapshot)
	nextSubscriberID uint64
}

// NewClinic constructs a closed, empty clinic session. A nil rng falls back
// to the global source; tests inject a seeded one for deterministic spawns.
func NewClinic(cfg ClinicConfig, publisher logging.Publisher, rng *rand.Rand) *Clinic {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	layout := defaultLayout()
	return &Clinic{
		cfg:         cfg.normalized(),
		layout:      layout,
		rng:         rng,
		publisher:   publisher,
		patients:    make(map[uint64]*patientState),
		waitingIDs:  make([]uint64, 0),
		leavingIDs:  make([]uint64, 0),
		maxSeats:    len(layout.QueueSeats),
		subscribers: make(map[uint64]func(ClinicSnapshot)),
	}
}

func (c *Clinic) randomFloat() float64 {
	if c != nil && c.rng != nil {
		return c.rng.Float64()
	}
	return rand.Float64()
}

func (c *Clinic) randomSpawnDelay() time.Duration {
	window := c.cfg.SpawnDelayMax - c.cfg.SpawnDelayMin
	return c.cfg.SpawnDelayMin + time.Duration(c.randomFloat()*float64(window))
}

func (c *Clinic) randomZoneStart() float64 {
	return c.randomFloat() * (1 - examZoneWidth)
}

// Subscribe registers a snapshot callback and returns its unsubscribe
// function. Every subscriber receives the same snapshot per change.
func (c *Clinic) Subscribe(fn func(ClinicSnapshot)) func() {
	if fn == nil {
		return func() {}
	}
	c.nextSubscriberID++
	id := c.nextSubscriberID
	c.subscribers[id] = fn
	return func() {
		delete(c.subscribers, id)
	}
}

// Snapshot copies the session state for broadcasting.
func (c *Clinic) Snapshot() ClinicSnapshot {
	patients := make([]Patient, 0, len(c.patients))
	for _, p := range c.patients {
		patients = append(patients, p.snapshot())
	}
	sort.Slice(patients, func(i, j int) bool { return patients[i].ID < patients[j].ID })

	var outcome *TreatmentOutcome
	if c.lastOutcome != nil {
		copied := *c.lastOutcome
		outcome = &copied
	}

	return ClinicSnapshot{
		IsOpen:      c.isOpen,
		WaitingIDs:  append([]uint64(nil), c.waitingIDs...),
		ActiveID:    c.activeID,
		LeavingIDs:  append([]uint64(nil), c.leavingIDs...),
		Patients:    patients,
		LastOutcome: outcome,
		Tick:        c.tick,
	}
}

func (c *Clinic) notify() {
	if len(c.subscribers) == 0 {
		return
	}
	snapshot := c.Snapshot()
	for _, fn := range c.subscribers {
		fn(snapshot)
	}
}

// IsOpen reports whether the clinic accepts new patients.
func (c *Clinic) IsOpen() bool {
	return c.isOpen
}

// SetOpen toggles the open flag. Opening rolls a fresh spawn delay;
// closing stops spawning immediately but lets everyone already inside
// finish their visit.
func (c *Clinic) SetOpen(open bool, now time.Time) {
	if c.isOpen == open {
		return
	}
	c.isOpen = open
	if open {
		c.nextSpawnAt = now.Add(c.randomSpawnDelay())
	} else {
		c.nextSpawnAt = time.Time{}
	}
	c.notify()
}

// Reset clears the whole session in one step and notifies subscribers,
// leaving the clinic indistinguishable from a freshly constructed one.
// Safe to call at any time, including mid-minigame.
func (c *Clinic) Reset() {
	c.isOpen = false
	c.counter = 0
	c.waitingIDs = c.waitingIDs[:0]
	c.activeID = 0
	c.leavingIDs = c.leavingIDs[:0]
	c.patients = make(map[uint64]*patientState)
	c.nextSpawnAt = time.Time{}
	c.lastOutcome = nil
	c.exam = nil
	c.treatLockedUntil = time.Time{}
	c.tick = 0

	loggingclinic.SessionReset(context.Background(), c.publisher, c.tick)
	c.notify()
}

// Advance runs one simulation step: spawn check, then movement
// integration, then the dosage slider, then a single notification fan-out.
// That ordering lets a patient spawned this tick start walking this tick.
func (c *Clinic) Advance(now time.Time, dt time.Duration, toast Toaster) {
	if dt > maxFrameDelta {
		dt = maxFrameDelta
	}
	if dt < 0 {
		dt = 0
	}

	if !c.isOpen && len(c.patients) == 0 && c.exam == nil {
		return
	}

	c.tick++

	if c.isOpen {
		if c.nextSpawnAt.IsZero() {
			c.nextSpawnAt = now.Add(c.randomSpawnDelay())
		}
		c.maybeSpawn(now)
	}

	c.integrate(dt.Seconds())
	c.advanceExam(dt.Seconds(), toast)
	c.notify()
}

// maybeSpawn admits at most one patient per call, respecting the open
// flag, the seat capacity (waiting plus the one being examined), and the
// spawn timer.
func (c *Clinic) maybeSpawn(now time.Time) {
	occupied := len(c.waitingIDs)
	if c.activeID != 0 {
		occupied++
	}
	if occupied >= c.maxSeats {
		return
	}
	if now.Before(c.nextSpawnAt) {
		return
	}

	p := c.newPatient()
	c.patients[p.ID] = p
	c.waitingIDs = append(c.waitingIDs, p.ID)
	seatIndex := len(c.waitingIDs) - 1
	p.Target = c.layout.seatAt(seatIndex)

	c.nextSpawnAt = now.Add(c.randomSpawnDelay())

	loggingclinic.PatientAdmitted(context.Background(), c.publisher, c.tick,
		patientRef(p.ID),
		loggingclinic.PatientAdmittedPayload{
			Name:      p.Name,
			Species:   p.Species,
			Complaint: string(p.ComplaintID),
			Seat:      seatIndex,
		})
}

// newPatient rolls the complaint at random and rotates name, species, and
// sprite off the monotonic counter so the cosmetics cycle predictably.
func (c *Clinic) newPatient() *patientState {
	c.counter++

	pool := SpawnPool()
	complaint := pool[int(c.randomFloat()*float64(len(pool)))%len(pool)]
	name := patientNameFor(c.counter)

	spawn := c.layout.PatientSpawn
	return &patientState{
		Patient: Patient{
			ID:          c.counter,
			Name:        name,
			Species:     patientSpeciesFor(c.counter),
			ComplaintID: complaint,
			Pos:         spawn,
			Target:      spawn,
			State:       PatientEntering,
			SpriteID:    spriteFor(name, c.counter),
		},
		speedTiles: tilesPerSecond,
	}
}

// integrate walks every patient toward its target. Patients at the exam
// table stand still; leavers who reach the door are removed.
func (c *Clinic) integrate(dt float64) {
	var departed []uint64
	for _, p := range c.patients {
		if p.State == PatientExam {
			continue
		}
		next, arrived := stepToward(p.Pos, p.Target, p.speedTiles*dt)
		p.Pos = next
		if !arrived {
			continue
		}
		switch p.State {
		case PatientEntering, PatientWaiting:
			p.State = PatientWaiting
		case PatientToExam:
			p.State = PatientExam
			p.AtExam = true
			p.Target = p.Pos
			if !p.examRolled {
				p.examRolled = true
				p.ExamRequired = c.randomFloat() < examRequiredChance
				p.ExamDone = !p.ExamRequired
				p.ExamScore = 0
			}
		case PatientLeaving:
			departed = append(departed, p.ID)
		}
	}

	for _, id := range departed {
		delete(c.patients, id)
		c.leavingIDs = removeID(c.leavingIDs, id)
	}
}

// CallNext promotes the first waiting patient to the exam table. Fails
// with a toast and no state change while another patient is active, while
// the queue is empty, or while the first patient is still walking to seat
// zero.
func (c *Clinic) CallNext(now time.Time, toast Toaster) {
	if c.activeID != 0 {
		name := "Pasien"
		if p, ok := c.patients[c.activeID]; ok {
			name = p.Name
		}
		showToast(toast, fmt.Sprintf("%s masih diperiksa.", name))
		return
	}

	if len(c.waitingIDs) == 0 {
		if !c.isOpen {
			showToast(toast, "Klinik masih tutup.")
		} else {
			showToast(toast, "Tidak ada pasien di ruang tunggu.")
		}
		return
	}

	firstID := c.waitingIDs[0]
	first, ok := c.patients[firstID]
	if !ok {
		return
	}
	if dist(first.Pos, c.layout.seatAt(0)) > seatArrivalEpsilon {
		showToast(toast, "Tunggu pasien duduk dulu.")
		return
	}

	c.waitingIDs = c.waitingIDs[1:]
	for i, pid := range c.waitingIDs {
		if waiting, ok := c.patients[pid]; ok {
			waiting.Target = c.layout.seatAt(i)
		}
	}

	c.activeID = firstID
	first.State = PatientToExam
	first.Target = c.layout.ExamSpot

	showToast(toast, fmt.Sprintf("%s: %s", first.Name, ComplaintText(first.ComplaintID)))
	loggingclinic.PatientCalled(context.Background(), c.publisher, c.tick,
		patientRef(firstID),
		loggingclinic.PatientCalledPayload{
			Complaint: string(first.ComplaintID),
			Waiting:   len(c.waitingIDs),
		})
	c.notify()
}

// Treat resolves the active patient's visit. A short lock window swallows
// duplicate invocations (a repeated key event) so a single visit can never
// consume two medicines or credit two fees.
func (c *Clinic) Treat(now time.Time, tc TreatContext) {
	if now.Before(c.treatLockedUntil) {
		return
	}
	c.treatLockedUntil = now.Add(treatLockWindow)
	c.treat(now, tc)
}

func (c *Clinic) treat(now time.Time, tc TreatContext) {
	if c.activeID == 0 {
		return
	}
	p, ok := c.patients[c.activeID]
	if !ok {
		return
	}

	if p.State != PatientExam || !p.AtExam {
		c.rejectTreatment(p.ID, "not_at_exam_spot", tc.Toast, "Pasien belum di exam spot.")
		return
	}
	if !c.layout.withinExamReach(tc.PlayerPos) {
		c.rejectTreatment(p.ID, "out_of_range", tc.Toast, "Maju sedikit ke meja periksa dulu.")
		return
	}

	validCures := CureNamesFor(p.ComplaintID)
	if len(validCures) == 0 {
		c.rejectTreatment(p.ID, "no_cure_defined", tc.Toast, "Belum ada obat untuk keluhan ini.")
		return
	}

	// Catalog order decides which cure is dispensed, not bag order.
	medicine := ""
	for _, name := range validCures {
		if tc.Inventory != nil && tc.Inventory.HasItemByName(name) {
			medicine = name
			break
		}
	}
	if medicine == "" {
		c.rejectTreatment(p.ID, "no_matching_cure", tc.Toast, "Tidak ada obat yang cocok di tas.")
		return
	}

	if tc.Stamina < staminaCostPerService {
		c.rejectTreatment(p.ID, "exhausted", tc.Toast, "Stamina habis. Istirahat dulu atau makan/minum.")
		return
	}

	// A required exam defers the treatment: open the dosage slider now,
	// consume and charge on the next treat once it has resolved.
	if p.ExamRequired && !p.ExamDone {
		if c.exam == nil {
			c.exam = newExamSession(c.randomZoneStart())
			c.notify()
		}
		return
	}

	if _, taken := tc.Inventory.RemoveFirstByName(medicine); !taken {
		c.rejectTreatment(p.ID, "bag_race", tc.Toast, "Gagal mengambil obat.")
		return
	}

	baseFee := ComputeFee(medicine)
	finalFee := baseFee
	if p.ExamRequired {
		finalFee = ApplyExamOutcome(baseFee, p.ExamScore)
	}
	if tc.CreditMoney != nil {
		tc.CreditMoney(finalFee)
	}

	showToast(tc.Toast, fmt.Sprintf("%s: Makasih dok! Obat %s berhasil. (+%d koin)", p.Name, medicine, finalFee))
	if tc.AfterServe != nil {
		tc.AfterServe()
	}

	p.State = PatientLeaving
	p.AtExam = false
	p.Target = c.layout.PatientSpawn
	c.leavingIDs = append(c.leavingIDs, p.ID)
	c.activeID = 0
	c.exam = nil
	c.lastOutcome = &TreatmentOutcome{
		PatientID: p.ID,
		Medicine:  medicine,
		Fee:       finalFee,
		ExamScore: p.ExamScore,
		Examined:  p.ExamRequired,
	}

	loggingclinic.PatientTreated(context.Background(), c.publisher, c.tick,
		patientRef(p.ID),
		loggingclinic.PatientTreatedPayload{
			Medicine:  medicine,
			Fee:       finalFee,
			ExamScore: p.ExamScore,
			Examined:  p.ExamRequired,
		})
	c.notify()
}

func (c *Clinic) rejectTreatment(patientID uint64, reason string, toast Toaster, message string) {
	showToast(toast, message)
	loggingclinic.TreatmentRejected(context.Background(), c.publisher, c.tick,
		patientRef(patientID),
		loggingclinic.TreatmentRejectedPayload{Reason: reason})
}

// ExamView returns the slider overlay state while a minigame is running.
func (c *Clinic) ExamView() (ExamView, bool) {
	if c.exam == nil || c.exam.Finished {
		return ExamView{}, false
	}
	return c.exam.view(), true
}

// ExamHit records one slider attempt. Exhausting the tries resolves the
// session; earlier attempts re-randomize the target zone.
func (c *Clinic) ExamHit(toast Toaster) {
	if c.exam == nil || c.exam.Finished {
		return
	}
	if c.exam.hit(c.randomZoneStart()) {
		c.finishExam("tries", toast)
	}
}

func (c *Clinic) advanceExam(dt float64, toast Toaster) {
	if c.exam == nil || c.exam.Finished {
		return
	}
	if c.exam.advance(dt) {
		c.finishExam("timeout", toast)
	}
}

// finishExam writes the score onto the active patient exactly once; a
// second resolution attempt is a no-op.
func (c *Clinic) finishExam(reason string, toast Toaster) {
	if c.exam == nil || c.exam.Finished {
		return
	}
	c.exam.Finished = true
	score := c.exam.score()

	if p, ok := c.patients[c.activeID]; ok && c.activeID != 0 {
		p.ExamScore = score
		p.ExamDone = true
	}

	showToast(toast, examFinishToast(reason, score))
	loggingclinic.ExamResolved(context.Background(), c.publisher, c.tick,
		patientRef(c.activeID),
		loggingclinic.ExamResolvedPayload{Score: score, Reason: reason})
	c.notify()
}

func showToast(toast Toaster, message string) {
	if toast != nil {
		toast.Show(message)
	}
}

func patientRef(id uint64) logging.EntityRef {
	return logging.EntityRef{ID: fmt.Sprintf("patient-%d", id), Kind: logging.EntityKindPatient}
}

func removeID(ids []uint64, id uint64) []uint64 {
	filtered := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}
