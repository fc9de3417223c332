package audiocore

import (
	"math"
)

// DefaultDriftThreshold is how many callback periods of accumulated lateness
// are tolerated before queued output is skipped.
const DefaultDriftThreshold = 3.0

// DriftTracker estimates how far the callback cadence has fallen behind the
// nominal period. It is owned by one engine and touched only from its
// callback thread.
type DriftTracker struct {
	threshold float64
	driftMs   float64
	prev      float64
	started   bool
}

// NewDriftTracker returns a tracker; threshold <= 0 selects DefaultDriftThreshold.
func NewDriftTracker(threshold float64) *DriftTracker {
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}
	return &DriftTracker{threshold: threshold}
}

// Reset clears the estimate and takes now (device clock, seconds) as the
// previous callback time.
func (d *DriftTracker) Reset(now float64) {
	d.driftMs = 0
	d.prev = now
	d.started = true
}

// Update accounts for one callback of frames frames at sampleRate and
// returns the milliseconds of output to skip, or 0.
//
// When the accumulated drift exceeds threshold periods, everything beyond
// one period is skipped at once and removed from the estimate, so the
// estimate settles back to one period after each correction.
func (d *DriftTracker) Update(now float64, frames, sampleRate int) float64 {
	if !d.started {
		d.Reset(now)
		return 0
	}
	if sampleRate <= 0 {
		d.prev = now
		return 0
	}

	samplesMs := float64(frames) / (float64(sampleRate) / 1000)
	actualMs := (now - d.prev) * 1000
	d.prev = now
	d.driftMs += actualMs - samplesMs

	if d.driftMs > d.threshold*samplesMs {
		msToSkip := d.driftMs - samplesMs
		d.driftMs -= msToSkip
		return msToSkip
	}
	return 0
}

// DriftMs returns the current estimate in milliseconds.
func (d *DriftTracker) DriftMs() float64 {
	return d.driftMs
}

// Threshold returns the configured threshold in callback periods.
func (d *DriftTracker) Threshold() float64 {
	return d.threshold
}

// SkipBytes converts a skip duration into whole frames of p.
func SkipBytes(msToSkip float64, p StreamParams) int {
	if msToSkip <= 0 {
		return 0
	}
	frames := math.Floor(msToSkip * float64(p.SampleRate) / 1000)
	return int(frames) * p.BytesPerFrame()
}
