package audiocore

// Stream directions used as metric labels.
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Recorder receives engine measurements. Implementations are called from
// the audio callback thread and must not block.
type Recorder interface {
	RecordCallback()
	RecordBytes(direction string, copied, skipped int)
	RecordUnderrun()
	RecordDriftCorrection(msSkipped float64)
	SetDrift(driftMs float64)
	RecordStatusFlag(flag string)
	RecordDroppedChunk(direction string)
	SetQueueDepth(direction string, chunks, bytes int)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RecordCallback()                {}
func (NopRecorder) RecordBytes(string, int, int)   {}
func (NopRecorder) RecordUnderrun()                {}
func (NopRecorder) RecordDriftCorrection(float64)  {}
func (NopRecorder) SetDrift(float64)               {}
func (NopRecorder) RecordStatusFlag(string)        {}
func (NopRecorder) RecordDroppedChunk(string)      {}
func (NopRecorder) SetQueueDepth(string, int, int) {}

var _ Recorder = NopRecorder{}
