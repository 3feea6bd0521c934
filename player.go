package server

import (
	"math"
	"time"
)

// Vet is the broadcast-facing view of the player running the clinic.
type Vet struct {
	ID        string          `json:"id"`
	X         float64         `json:"x"`
	Y         float64         `json:"y"`
	Facing    FacingDirection `json:"facing"`
	Stamina   float64         `json:"stamina"`
	Money     int             `json:"money"`
	Inventory Inventory       `json:"inventory"`
}

type FacingDirection string

const (
	FacingUp    FacingDirection = "up"
	FacingDown  FacingDirection = "down"
	FacingLeft  FacingDirection = "left"
	FacingRight FacingDirection = "right"

	defaultFacing FacingDirection = FacingDown
)

// vetState is the mutable record behind a Vet snapshot.
type vetState struct {
	Vet
	intentX       float64
	intentY       float64
	lastInput     time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func (s *vetState) snapshot() Vet {
	view := s.Vet
	view.Inventory = s.Inventory.Clone()
	return view
}

// drainStamina applies the flat after-service decay, flooring at zero.
func (s *vetState) drainStamina(amount float64) {
	s.Stamina = clamp(s.Stamina-amount, 0, staminaMax)
}

// regenStamina trickles stamina back between patients.
func (s *vetState) regenStamina(dt float64) {
	s.Stamina = clamp(s.Stamina+staminaRegenPerSecond*dt, 0, staminaMax)
}

// parseFacing validates a facing string received from the client.
func parseFacing(value string) (FacingDirection, bool) {
	switch FacingDirection(value) {
	case FacingUp, FacingDown, FacingLeft, FacingRight:
		return FacingDirection(value), true
	default:
		return "", false
	}
}

// deriveFacing picks the facing direction that best matches the movement
// vector, falling back to the last known facing when idle.
func deriveFacing(dx, dy float64, fallback FacingDirection) FacingDirection {
	if fallback == "" {
		fallback = defaultFacing
	}

	const epsilon = 1e-6

	if math.Abs(dx) < epsilon {
		dx = 0
	}
	if math.Abs(dy) < epsilon {
		dy = 0
	}

	if dx == 0 && dy == 0 {
		return fallback
	}

	if math.Abs(dy) >= math.Abs(dx) && dy != 0 {
		if dy > 0 {
			return FacingDown
		}
		return FacingUp
	}

	if dx > 0 {
		return FacingRight
	}
	return FacingLeft
}
