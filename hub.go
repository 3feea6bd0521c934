package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"klinik-hewan/server/logging"
	loggingclinic "klinik-hewan/server/logging/clinic"
)

// Hub owns all live vets, their websocket subscribers, and the clinic
// session. Every command coming off a socket funnels through here, so the
// clinic itself never needs its own locking.
type Hub struct {
	mu          sync.Mutex
	clinic      *Clinic
	vets        map[string]*vetState
	subscribers map[string]*subscriber
	nextID      atomic.Uint64
	telemetry   *telemetryCounters
	publisher   logging.Publisher
	lastClinic  ClinicSnapshot
}

type subscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewHub wires a clinic session to the given publisher. A nil rng keeps
// the global source; tests pass a seeded one.
func NewHub(cfg ClinicConfig, publisher logging.Publisher, rng *rand.Rand) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	hub := &Hub{
		vets:        make(map[string]*vetState),
		subscribers: make(map[string]*subscriber),
		telemetry:   newTelemetryCounters(),
		publisher:   publisher,
	}
	counted := &telemetryPublisher{inner: publisher, counters: hub.telemetry}
	hub.clinic = NewClinic(cfg, counted, rng)
	hub.clinic.Subscribe(func(snapshot ClinicSnapshot) {
		hub.lastClinic = snapshot
	})
	hub.lastClinic = hub.clinic.Snapshot()
	return hub
}

// Clinic exposes the underlying session for the diagnostics and guide
// endpoints. Callers must not mutate it outside hub methods.
func (h *Hub) Clinic() *Clinic {
	return h.clinic
}

func (h *Hub) Telemetry() telemetrySnapshot {
	return h.telemetry.Snapshot()
}

// ClinicSnapshot returns the clinic state as of the last notification.
// The hub's own subscription keeps it current, so diagnostics and the
// periodic reporter read it without forcing a fresh copy.
func (h *Hub) ClinicSnapshot() ClinicSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastClinic
}

// Join registers a new vet with the starter bag and returns the first
// snapshot.
func (h *Hub) Join() joinResponse {
	id := h.nextID.Add(1)
	vetID := fmt.Sprintf("vet-%d", id)
	now := time.Now()

	inventory := NewInventory()
	inventory.Add(Item{Name: "Obat Kutu", Emoji: medicineEmoji("Obat Kutu")})
	inventory.Add(Item{Name: "Vitamin Hewan", Emoji: medicineEmoji("Vitamin Hewan")})

	vet := &vetState{
		Vet: Vet{
			ID:        vetID,
			X:         clinicWidth / 2,
			Y:         clinicHeight / 2,
			Facing:    defaultFacing,
			Stamina:   staminaMax,
			Money:     120,
			Inventory: inventory,
		},
		lastHeartbeat: now,
	}

	h.mu.Lock()
	h.vets[vetID] = vet
	vets, clinicSnapshot, _ := h.snapshotLocked()
	h.mu.Unlock()

	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)

	return joinResponse{
		Ver:    ProtocolVersion,
		ID:     vetID,
		Vet:    vet.snapshot(),
		Vets:   vets,
		Clinic: clinicSnapshot,
		Config: configMessage{
			Width:          clinicWidth,
			Height:         clinicHeight,
			TilesPerSecond: tilesPerSecond,
			TickRate:       tickRate,
		},
	}
}

// Subscribe associates a websocket connection with an existing vet.
func (h *Hub) Subscribe(vetID string, conn *websocket.Conn) (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.vets[vetID]
	if !ok {
		return nil, false
	}

	state.lastHeartbeat = time.Now()

	if existing, ok := h.subscribers[vetID]; ok {
		existing.conn.Close()
	}

	sub := &subscriber{conn: conn}
	h.subscribers[vetID] = sub
	return sub, true
}

// Disconnect removes a vet and closes any active subscriber connection.
func (h *Hub) Disconnect(vetID string) {
	h.mu.Lock()
	sub, subOK := h.subscribers[vetID]
	if subOK {
		delete(h.subscribers, vetID)
	}
	_, vetOK := h.vets[vetID]
	if vetOK {
		delete(h.vets, vetID)
	}
	h.mu.Unlock()

	if subOK {
		sub.conn.Close()
	}
	if vetOK {
		go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
	}
}

// UpdateIntent stores the latest movement vector and facing for a vet.
func (h *Hub) UpdateIntent(vetID string, dx, dy float64, facing string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.vets[vetID]
	if !ok {
		return false
	}

	state.intentX = dx
	state.intentY = dy
	state.lastInput = time.Now()
	if parsed, ok := parseFacing(facing); ok {
		state.Facing = parsed
	} else {
		state.Facing = deriveFacing(dx, dy, state.Facing)
	}
	return true
}

// UpdateHeartbeat refreshes the liveness timestamp and derives RTT from
// the client-sent clock when it is plausible.
func (h *Hub) UpdateHeartbeat(vetID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.vets[vetID]
	if !ok {
		return 0, false
	}

	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}

	return state.lastRTT, true
}

// CallNext promotes the first seated patient for the given vet.
func (h *Hub) CallNext(vetID string) {
	now := time.Now()
	toasts := &toastCollector{}

	h.mu.Lock()
	if _, ok := h.vets[vetID]; ok {
		h.clinic.CallNext(now, toasts)
	}
	h.mu.Unlock()

	h.deliverToasts(vetID, toasts)
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// Treat resolves the active patient using the vet's bag and purse.
func (h *Hub) Treat(vetID string) {
	now := time.Now()
	toasts := &toastCollector{}

	h.mu.Lock()
	if state, ok := h.vets[vetID]; ok {
		h.clinic.Treat(now, TreatContext{
			PlayerPos:   vec2{X: state.X, Y: state.Y},
			Stamina:     state.Stamina,
			Inventory:   &state.Inventory,
			CreditMoney: func(amount int) { state.Money += amount },
			Toast:       toasts,
			AfterServe:  func() { state.drainStamina(staminaCostPerService) },
		})
	}
	h.mu.Unlock()

	h.deliverToasts(vetID, toasts)
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// ExamHit records one dosage-slider attempt.
func (h *Hub) ExamHit(vetID string) {
	toasts := &toastCollector{}

	h.mu.Lock()
	if _, ok := h.vets[vetID]; ok {
		h.clinic.ExamHit(toasts)
	}
	h.mu.Unlock()

	h.deliverToasts(vetID, toasts)
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// ToggleOpen flips the clinic's open flag.
func (h *Hub) ToggleOpen(vetID string) {
	now := time.Now()
	open := false

	h.mu.Lock()
	_, ok := h.vets[vetID]
	if ok {
		open = !h.clinic.IsOpen()
		h.clinic.SetOpen(open, now)
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	if open {
		h.sendToast(vetID, "Klinik dibuka!")
	} else {
		h.sendToast(vetID, "Klinik ditutup.")
	}
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// Reset clears the clinic session. Vet money, bag, and stamina persist
// across resets.
func (h *Hub) Reset(vetID string) {
	h.mu.Lock()
	_, ok := h.vets[vetID]
	if ok {
		h.clinic.Reset()
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.sendToast(vetID, "Sesi klinik direset.")
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// Buy purchases one unit of a shop medicine into the vet's bag.
func (h *Hub) Buy(vetID string, medicineName string) {
	var message string

	h.mu.Lock()
	state, ok := h.vets[vetID]
	if ok {
		if !IsMedicine(medicineName) {
			message = "Barang itu tidak dijual di sini."
		} else {
			price := MedicinePrice(medicineName)
			if state.Money < price {
				message = "Koin tidak cukup."
			} else {
				state.Money -= price
				state.Inventory.Add(Item{Name: medicineName, Emoji: medicineEmoji(medicineName)})
				message = fmt.Sprintf("Beli %s (-%d koin)", medicineName, price)
			}
		}
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	h.sendToast(vetID, message)
	go h.broadcastState(nil, ClinicSnapshot{}, nil, false)
}

// advance runs a single simulation step and returns updated snapshots plus
// stale subscribers and any clinic toasts raised during the step.
func (h *Hub) advance(now time.Time, dt float64) ([]Vet, ClinicSnapshot, *ExamView, []*subscriber, []string) {
	toasts := &toastCollector{}

	h.mu.Lock()

	toClose := make([]*subscriber, 0)
	for id, state := range h.vets {
		if now.Sub(state.lastHeartbeat) > disconnectAfter {
			if sub, ok := h.subscribers[id]; ok {
				toClose = append(toClose, sub)
				delete(h.subscribers, id)
			}
			delete(h.vets, id)
			log.Printf("disconnecting %s due to heartbeat timeout", id)
			continue
		}

		if state.intentX != 0 || state.intentY != 0 {
			moveVet(state, dt)
		}
		state.regenStamina(dt)
	}

	h.clinic.Advance(now, time.Duration(dt*float64(time.Second)), toasts)
	vets, clinicSnapshot, exam := h.snapshotLocked()
	h.mu.Unlock()

	return vets, clinicSnapshot, exam, toClose, toasts.messages
}

// RunSimulation drives the fixed-rate tick loop until the stop channel
// closes.
func (h *Hub) RunSimulation(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / tickRate)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			if dt <= 0 {
				dt = 1.0 / float64(tickRate)
			}
			last = now

			tickStart := time.Now()
			vets, clinicSnapshot, exam, toClose, toasts := h.advance(now, dt)
			for _, sub := range toClose {
				sub.conn.Close()
			}
			for _, text := range toasts {
				h.broadcastToast(text)
			}
			h.broadcastState(vets, clinicSnapshot, exam, true)
			h.telemetry.RecordTickDuration(time.Since(tickStart))
		}
	}
}

// DiagnosticsSnapshot exposes heartbeat data for the diagnostics endpoint.
func (h *Hub) DiagnosticsSnapshot() []diagnosticsVet {
	h.mu.Lock()
	defer h.mu.Unlock()

	vets := make([]diagnosticsVet, 0, len(h.vets))
	for _, state := range h.vets {
		vets = append(vets, diagnosticsVet{
			Ver:           ProtocolVersion,
			ID:            state.ID,
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		})
	}
	return vets
}

// snapshotLocked copies vets and clinic state for broadcasting while
// holding the mutex.
func (h *Hub) snapshotLocked() ([]Vet, ClinicSnapshot, *ExamView) {
	vets := make([]Vet, 0, len(h.vets))
	for _, state := range h.vets {
		if state.Facing == "" {
			state.Facing = defaultFacing
		}
		vets = append(vets, state.snapshot())
	}

	var exam *ExamView
	if view, ok := h.clinic.ExamView(); ok {
		exam = &view
	}

	return vets, h.clinic.Snapshot(), exam
}

// broadcastState sends the latest snapshot to every subscriber. Callers
// outside the tick loop pass ready=false so the snapshot is taken fresh.
func (h *Hub) broadcastState(vets []Vet, clinicSnapshot ClinicSnapshot, exam *ExamView, ready bool) {
	if !ready {
		h.mu.Lock()
		vets, clinicSnapshot, exam = h.snapshotLocked()
		h.mu.Unlock()
	}

	msg := stateMessage{
		Ver:        ProtocolVersion,
		Type:       "state",
		Vets:       vets,
		Clinic:     clinicSnapshot,
		Exam:       exam,
		Tick:       clinicSnapshot.Tick,
		ServerTime: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("failed to marshal state message: %v", err)
		return
	}
	h.telemetry.RecordBroadcast(len(data), len(clinicSnapshot.Patients))

	h.mu.Lock()
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	for id, sub := range subs {
		if err := sub.write(data); err != nil {
			log.Printf("failed to send update to %s: %v", id, err)
			h.Disconnect(id)
		}
	}
}

func (h *Hub) broadcastToast(text string) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	data, err := json.Marshal(toastMessage{Ver: ProtocolVersion, Type: "toast", Text: text})
	if err != nil {
		return
	}
	for _, sub := range subs {
		_ = sub.write(data)
	}
}

func (h *Hub) sendToast(vetID, text string) {
	if text == "" {
		return
	}
	h.mu.Lock()
	sub, ok := h.subscribers[vetID]
	h.mu.Unlock()
	if !ok {
		return
	}

	data, err := json.Marshal(toastMessage{Ver: ProtocolVersion, Type: "toast", Text: text})
	if err != nil {
		return
	}
	if err := sub.write(data); err != nil {
		log.Printf("failed to send toast to %s: %v", vetID, err)
	}
}

func (h *Hub) deliverToasts(vetID string, toasts *toastCollector) {
	for _, text := range toasts.messages {
		h.sendToast(vetID, text)
	}
}

// WriteMessage serializes writes to the underlying connection so the
// session reader and the broadcast loop never interleave frames.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) write(data []byte) error {
	return s.WriteMessage(websocket.TextMessage, data)
}

// toastCollector buffers toasts raised while the hub mutex is held so the
// socket writes happen after it is released.
type toastCollector struct {
	messages []string
}

func (t *toastCollector) Show(message string) {
	t.messages = append(t.messages, message)
}

// telemetryPublisher counts clinic events on their way to the log router.
type telemetryPublisher struct {
	inner    logging.Publisher
	counters *telemetryCounters
}

func (p *telemetryPublisher) Publish(ctx context.Context, event logging.Event) {
	switch event.Type {
	case loggingclinic.EventPatientAdmitted:
		p.counters.RecordAdmission()
	case loggingclinic.EventPatientTreated:
		p.counters.RecordTreatment()
	case loggingclinic.EventExamResolved:
		p.counters.RecordExamResolved()
	}
	if p.inner != nil {
		p.inner.Publish(ctx, event)
	}
}
