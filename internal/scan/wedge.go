package scan

import "time"

// DefaultWedgeTimeout distinguishes scanner burst input from human typing:
// a scanner delivers its whole payload in well under this gap per keystroke.
const DefaultWedgeTimeout = 500 * time.Millisecond

// Wedge reassembles keyboard-wedge scanner input from individual key events.
// Characters accumulate in a buffer; a pause longer than the timeout resets
// it, and an Enter key flushes the buffer as one scan.
type Wedge struct {
	clock   Clock
	timeout time.Duration
	lastKey time.Time
	buf     []rune
	emit    func(barcode string)
}

// NewWedge creates a Wedge that forwards completed scans to emit
func NewWedge(clock Clock, timeout time.Duration, emit func(barcode string)) *Wedge {
	if timeout <= 0 {
		timeout = DefaultWedgeTimeout
	}
	return &Wedge{clock: clock, timeout: timeout, emit: emit}
}

// HandleKey processes one key event. Keys are named as delivered by the
// platform: single-character keys append to the buffer, "Enter" flushes,
// anything else (modifiers, navigation) is ignored.
func (w *Wedge) HandleKey(key string) {
	now := w.clock.Now()
	if !w.lastKey.IsZero() && now.Sub(w.lastKey) > w.timeout {
		w.buf = w.buf[:0]
	}
	w.lastKey = now

	if key == "Enter" {
		if len(w.buf) > 0 {
			w.emit(string(w.buf))
			w.buf = w.buf[:0]
		}
		return
	}

	runes := []rune(key)
	if len(runes) == 1 {
		w.buf = append(w.buf, runes[0])
	}
}

// Reset clears any partially accumulated input
func (w *Wedge) Reset() {
	w.buf = w.buf[:0]
	w.lastKey = time.Time{}
}
