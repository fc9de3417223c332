package audiocore

import (
	"strings"
	"sync/atomic"
)

// StatusFlags are driver-reported stream conditions for one callback.
type StatusFlags uint32

const (
	StatusInputUnderflow StatusFlags = 1 << iota
	StatusInputOverflow
	StatusOutputUnderflow
	StatusOutputOverflow
	StatusPrimingOutput
)

// StatusPrefix starts every latched status condition.
const StatusPrefix = "audio status - "

var flagNames = [...]struct {
	flag StatusFlags
	name string
}{
	{StatusInputUnderflow, "input underflow"},
	{StatusInputOverflow, "input overflow"},
	{StatusOutputUnderflow, "output underflow"},
	{StatusOutputOverflow, "output overflow"},
	{StatusPrimingOutput, "priming output"},
}

const (
	inputFlags  = StatusInputUnderflow | StatusInputOverflow
	outputFlags = StatusOutputUnderflow | StatusOutputOverflow | StatusPrimingOutput
)

// Input returns the input-direction subset of f.
func (f StatusFlags) Input() StatusFlags { return f & inputFlags }

// Output returns the output-direction subset of f.
func (f StatusFlags) Output() StatusFlags { return f & outputFlags }

// Names lists the set flags in a fixed order.
func (f StatusFlags) Names() []string {
	var names []string
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			names = append(names, fn.name)
		}
	}
	return names
}

// String renders f as a status condition, e.g.
// "audio status - output underflow priming output". Empty when no flag is set.
func (f StatusFlags) String() string {
	names := f.Names()
	if len(names) == 0 {
		return ""
	}
	return StatusPrefix + strings.Join(names, " ")
}

// StatusLatch holds the most recent condition for one stream direction
// until it is read. Latch is safe to call from the audio callback.
type StatusLatch struct {
	msg atomic.Pointer[string]
}

// Latch records msg, replacing any unread condition.
func (l *StatusLatch) Latch(msg string) {
	if msg == "" {
		return
	}
	l.msg.Store(&msg)
}

// LatchFlags records f if any flag is set.
func (l *StatusLatch) LatchFlags(f StatusFlags) {
	if f != 0 {
		l.Latch(f.String())
	}
}

// Take returns the latched condition and clears it.
func (l *StatusLatch) Take() string {
	if p := l.msg.Swap(nil); p != nil {
		return *p
	}
	return ""
}

// Peek returns the latched condition without clearing it.
func (l *StatusLatch) Peek() string {
	if p := l.msg.Load(); p != nil {
		return *p
	}
	return ""
}
