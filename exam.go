package server

import (
	"fmt"
	"math"
)

// examSession is one run of the dosage slider: a cursor sweeping back and
// forth over a randomly placed target zone. The vet gets a fixed number of
// tries; only the best hit counts. Running out of time resolves the session
// on its own.
type examSession struct {
	Cursor     float64
	Dir        float64
	ZoneStart  float64
	BestHit    float64
	TriesLeft  int
	TimeLeftMs float64
	Finished   bool
}

// ExamView is the broadcast-facing copy of the slider overlay.
type ExamView struct {
	Cursor     float64 `json:"cursor"`
	ZoneStart  float64 `json:"zoneStart"`
	ZoneWidth  float64 `json:"zoneWidth"`
	TriesLeft  int     `json:"triesLeft"`
	TimeLeftMs int     `json:"timeLeftMs"`
}

func (s *examSession) view() ExamView {
	return ExamView{
		Cursor:     s.Cursor,
		ZoneStart:  s.ZoneStart,
		ZoneWidth:  examZoneWidth,
		TriesLeft:  s.TriesLeft,
		TimeLeftMs: int(math.Ceil(s.TimeLeftMs)),
	}
}

func newExamSession(zoneStart float64) *examSession {
	return &examSession{
		Cursor:     0,
		Dir:        1,
		ZoneStart:  zoneStart,
		BestHit:    0,
		TriesLeft:  examSliderTries,
		TimeLeftMs: float64(examTotalTime.Milliseconds()),
	}
}

// advance sweeps the cursor for one frame and reports whether the timer ran
// out. The cursor reflects off both ends so overshoot is preserved instead
// of clamped; a fast frame never parks the cursor on an edge.
func (s *examSession) advance(dt float64) (timedOut bool) {
	if s.Finished {
		return false
	}

	speed := 1 / examSweepDuration.Seconds()
	next := s.Cursor + s.Dir*speed*dt
	if next > 1 {
		next = 1 - (next - 1)
		s.Dir = -1
	}
	if next < 0 {
		next = -next
		s.Dir = 1
	}
	s.Cursor = next

	s.TimeLeftMs = math.Max(0, s.TimeLeftMs-dt*1000)
	return s.TimeLeftMs == 0
}

// hit records one attempt: closeness is 1.0 at the zone centre falling to 0
// at the zone edges and beyond. Returns true when that was the last try.
// Each remaining try gets a freshly placed zone; tries are independent.
func (s *examSession) hit(nextZoneStart float64) (exhausted bool) {
	if s.Finished {
		return false
	}

	center := s.ZoneStart + examZoneWidth/2
	halfWidth := examZoneWidth / 2
	closeness := math.Max(0, 1-math.Abs(s.Cursor-center)/halfWidth)
	if closeness > s.BestHit {
		s.BestHit = closeness
	}

	if s.TriesLeft > 0 {
		s.TriesLeft--
	}
	if s.TriesLeft <= 0 {
		return true
	}

	s.ZoneStart = nextZoneStart
	return false
}

// score converts the best hit into the 0–100 exam score.
func (s *examSession) score() int {
	return int(math.Round(s.BestHit * 100))
}

func examFinishToast(reason string, score int) string {
	if reason == "timeout" {
		return fmt.Sprintf("Waktu habis! Mengatur dosis selesai (skor %d)", score)
	}
	return fmt.Sprintf("Mengatur dosis selesai (skor %d)", score)
}
