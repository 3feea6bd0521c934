package server

import "time"

const (
	ProtocolVersion   = 1
	writeWait         = 10 * time.Second
	tickRate          = 15 // ticks per second (10–20 Hz)
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	// Coordinates are tile units on the clinic floor plan.
	clinicWidth  = 24.0
	clinicHeight = 24.0

	// Walking speed shared by patients and the vet.
	tilesPerSecond = 3.2

	// Frame delta clamp keeps a stalled loop from teleporting entities.
	maxFrameDelta = 50 * time.Millisecond

	// A patient counts as seated/arrived inside this distance.
	seatArrivalEpsilon = 0.25
	arrivalEpsilon     = 0.05

	// Interaction reach around the exam table and its four neighbours.
	interactRange = 1.25

	// Random pause between two patient spawns.
	spawnDelayMin = 700 * time.Millisecond
	spawnDelayMax = 1800 * time.Millisecond

	// Serving a patient always drains this much stamina.
	staminaCostPerService = 10.0
	staminaMax            = 100.0
	staminaRegenPerSecond = 1.5

	// Dosage slider tunables.
	examRequiredChance = 0.5
	examSliderTries    = 3
	examZoneWidth      = 0.15
	examSweepDuration  = 1600 * time.Millisecond
	examTotalTime      = 10 * time.Second

	// Treat is locked for this long after each resolution attempt so a
	// duplicated key event cannot double-consume a medicine.
	treatLockWindow = 150 * time.Millisecond
)

// TickRate exposes the simulation frequency for diagnostics.
func TickRate() int {
	return tickRate
}

// HeartbeatInterval exposes the expected client heartbeat cadence.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}
