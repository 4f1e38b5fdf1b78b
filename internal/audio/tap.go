package audio

import (
	"sync/atomic"

	"github.com/medscribe/scribe/pkg/uictl"
)

// Tap gives readers live access to whichever capture controller is
// currently recording. Controllers are single-use, so the active one
// changes on every attempt; Attach swaps the target without the
// readers having to know.
type Tap struct {
	current atomic.Pointer[Controller]
	window  int
}

// NewTap creates a tap whose level readings cover the most recent
// window samples.
func NewTap(window int) *Tap {
	return &Tap{window: window} //nolint:exhaustruct
}

// Attach points the tap at a new controller. Safe to call while
// readers are active.
func (t *Tap) Attach(c *Controller) {
	t.current.Store(c)
}

// Levels returns a control reading recent audio samples from the
// attached controller. Reads return nil while nothing is attached.
func (t *Tap) Levels() uictl.Levels[int16] {
	return levelsView{t}
}

// Elapsed returns a control reading elapsed capture time against the
// duration cap, in nanoseconds.
func (t *Tap) Elapsed() uictl.CappedDial[int64] {
	return elapsedView{t}
}

// Bytes returns a control reading the encoded byte count so far.
func (t *Tap) Bytes() uictl.Dial[int64] {
	return bytesView{t}
}

type levelsView struct{ t *Tap }

func (v levelsView) Read() []int16 {
	c := v.t.current.Load()
	if c == nil {
		return nil
	}

	return c.Levels(v.t.window)
}

type elapsedView struct{ t *Tap }

func (v elapsedView) Read() int64 {
	c := v.t.current.Load()
	if c == nil {
		return 0
	}

	return int64(c.Elapsed())
}

func (v elapsedView) Cap() (num, max int64) {
	c := v.t.current.Load()
	if c == nil {
		return 0, 0
	}

	return int64(c.Elapsed()), int64(c.MaxDuration())
}

type bytesView struct{ t *Tap }

func (v bytesView) Read() int64 {
	c := v.t.current.Load()
	if c == nil {
		return 0
	}

	return c.BytesCaptured()
}
