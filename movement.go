package server

import "math"

// stepToward advances pos linearly toward target by at most maxStep tiles,
// reporting arrival when the remaining distance fits inside the step.
// Walkers stop exactly on their target; there is no overshoot.
func stepToward(pos, target vec2, maxStep float64) (vec2, bool) {
	if !isFiniteVec(target) {
		return pos, true
	}

	dx := target.X - pos.X
	dy := target.Y - pos.Y
	d := math.Hypot(dx, dy)

	if d < arrivalEpsilon {
		return target, true
	}

	step := math.Min(maxStep, d)
	next := vec2{
		X: pos.X + dx/d*step,
		Y: pos.Y + dy/d*step,
	}
	arrived := step == d || dist(next, target) < 1e-4
	if arrived {
		next = target
	}
	return next, arrived
}

func isFiniteVec(v vec2) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}

// moveVet integrates the vet's movement intent for one frame, clamping to
// the clinic bounds.
func moveVet(state *vetState, dt float64) {
	dx := state.intentX
	dy := state.intentY
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	dx /= length
	dy /= length

	state.X = clamp(state.X+dx*tilesPerSecond*dt, 0, clinicWidth-1)
	state.Y = clamp(state.Y+dy*tilesPerSecond*dt, 0, clinicHeight-1)
}
