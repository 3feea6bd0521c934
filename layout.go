package server

import "math"

type vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// clinicLayout pins the fixed furniture of the clinic floor plan: the door
// patients enter and leave through, the exam table, and the waiting bench
// the queue seats run along.
type clinicLayout struct {
	PatientSpawn vec2
	ExamSpot     vec2
	QueueSeats   []vec2
}

// defaultLayout mirrors the clinic map: four bench seats spaced two tiles
// apart starting at the waiting bench, spawn just inside the door.
func defaultLayout() clinicLayout {
	const (
		doorX     = 12.5
		doorY     = 22.0
		benchX    = 2.0
		benchY    = 18.0
		seatGap   = 2.0
		seatCount = 4
	)

	seats := make([]vec2, 0, seatCount)
	for i := 0; i < seatCount; i++ {
		seats = append(seats, vec2{X: benchX + float64(i)*seatGap, Y: benchY})
	}

	return clinicLayout{
		PatientSpawn: vec2{X: doorX, Y: doorY - 1},
		ExamSpot:     vec2{X: 18, Y: 14},
		QueueSeats:   seats,
	}
}

// seatAt returns the queue seat for a waiting-line index. Indexes past the
// last seat collapse onto it; a layout without seats falls back to the
// spawn point.
func (l clinicLayout) seatAt(index int) vec2 {
	if len(l.QueueSeats) == 0 {
		return l.PatientSpawn
	}
	if index >= len(l.QueueSeats) {
		index = len(l.QueueSeats) - 1
	}
	if index < 0 {
		index = 0
	}
	return l.QueueSeats[index]
}

// examNeighbourhood lists the exam spot and its four adjacent tiles: the vet
// may treat from any of them.
func (l clinicLayout) examNeighbourhood() []vec2 {
	spot := l.ExamSpot
	return []vec2{
		spot,
		{X: spot.X, Y: spot.Y + 1},
		{X: spot.X, Y: spot.Y - 1},
		{X: spot.X + 1, Y: spot.Y},
		{X: spot.X - 1, Y: spot.Y},
	}
}

func dist(a, b vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func nearTile(a, b vec2, eps float64) bool {
	return dist(a, b) <= eps
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// withinExamReach reports whether a position can interact with the exam
// table from the spot itself or one of its four neighbours.
func (l clinicLayout) withinExamReach(pos vec2) bool {
	for _, spot := range l.examNeighbourhood() {
		if nearTile(pos, spot, interactRange) {
			return true
		}
	}
	return false
}
