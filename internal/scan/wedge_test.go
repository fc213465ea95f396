package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWedge(t *testing.T) {
	t.Run("burst input flushed on enter", func(t *testing.T) {
		clock := newFakeClock()
		var scans []string
		w := NewWedge(clock, DefaultWedgeTimeout, func(b string) { scans = append(scans, b) })

		for _, key := range []string{"I", "T", "M", "1", "2", "3"} {
			w.HandleKey(key)
			clock.Advance(5 * time.Millisecond)
		}
		w.HandleKey("Enter")

		assert.Equal(t, []string{"ITM123"}, scans)
	})

	t.Run("slow typing resets the buffer", func(t *testing.T) {
		clock := newFakeClock()
		var scans []string
		w := NewWedge(clock, DefaultWedgeTimeout, func(b string) { scans = append(scans, b) })

		w.HandleKey("A")
		w.HandleKey("B")
		clock.Advance(time.Second)
		w.HandleKey("C")
		w.HandleKey("Enter")

		assert.Equal(t, []string{"C"}, scans)
	})

	t.Run("enter with empty buffer emits nothing", func(t *testing.T) {
		clock := newFakeClock()
		count := 0
		w := NewWedge(clock, DefaultWedgeTimeout, func(string) { count++ })

		w.HandleKey("Enter")
		assert.Equal(t, 0, count)
	})

	t.Run("modifier keys ignored", func(t *testing.T) {
		clock := newFakeClock()
		var scans []string
		w := NewWedge(clock, DefaultWedgeTimeout, func(b string) { scans = append(scans, b) })

		w.HandleKey("Shift")
		w.HandleKey("A")
		w.HandleKey("Tab")
		w.HandleKey("1")
		w.HandleKey("Enter")

		assert.Equal(t, []string{"A1"}, scans)
	})

	t.Run("reset discards partial input", func(t *testing.T) {
		clock := newFakeClock()
		count := 0
		w := NewWedge(clock, DefaultWedgeTimeout, func(string) { count++ })

		w.HandleKey("A")
		w.Reset()
		w.HandleKey("Enter")

		assert.Equal(t, 0, count)
	})

	t.Run("consecutive scans", func(t *testing.T) {
		clock := newFakeClock()
		var scans []string
		w := NewWedge(clock, DefaultWedgeTimeout, func(b string) { scans = append(scans, b) })

		w.HandleKey("A")
		w.HandleKey("Enter")
		clock.Advance(2 * time.Second)
		w.HandleKey("B")
		w.HandleKey("Enter")

		assert.Equal(t, []string{"A", "B"}, scans)
	})
}
