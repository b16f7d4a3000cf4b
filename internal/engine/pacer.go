package engine

import "time"

// Default predation pacing.
const (
	DefaultRevealDelay = 300 * time.Millisecond // predator over victim before the kill
	DefaultSettleDelay = 50 * time.Millisecond  // pause after the kill
)

// Pacer paces the steps of the predation sequence. Tests collapse every
// delay to zero; interactive consumers replay them in real time.
type Pacer interface {
	Wait(d time.Duration)
}

// RealTime sleeps for each delay, scaled by Speed (1.0 = real time).
type RealTime struct {
	Speed float64
}

func (p RealTime) Wait(d time.Duration) {
	if d <= 0 {
		return
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}
	time.Sleep(time.Duration(float64(d) / speed))
}

// Instant skips every delay.
type Instant struct{}

func (Instant) Wait(time.Duration) {}

// PacerFunc adapts a function to Pacer.
type PacerFunc func(d time.Duration)

func (f PacerFunc) Wait(d time.Duration) { f(d) }
