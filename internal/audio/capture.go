package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// State is the capture controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateFinalizing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateFinalizing:
		return "finalizing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// DeviceAccessError reports that the microphone could not be acquired
// or started. Recoverable by a fresh attempt with a new controller.
type DeviceAccessError struct {
	Err error
}

func (e *DeviceAccessError) Error() string {
	return fmt.Sprintf("microphone unavailable: %v", e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }

// ErrAlreadyStarted is returned by Start on any controller that has
// left Idle. A controller drives exactly one recording attempt.
var ErrAlreadyStarted = errors.New("capture already started: create a new controller per attempt")

// Result is delivered on Done() when a recording finalizes, whether by
// explicit Stop or by reaching the duration cap. Exactly one Result is
// delivered per successful Start; a cancelled recording delivers none.
type Result struct {
	Artifact *Artifact
	Err      error
}

// ControllerConfig configures one recording attempt.
type ControllerConfig struct {
	SampleRate int
	Channels   int

	// MaxDuration bounds the recording; the controller auto-stops and
	// finalizes when it elapses. Must be positive.
	MaxDuration time.Duration

	// Device overrides the capture device, used by tests. When nil a
	// malgo device with the configured profile is used.
	Device Device
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	return c
}

// Controller drives one bounded recording attempt:
//
//	Idle -> Capturing -> Finalizing -> Ready | Failed
//
// Start acquires the device, Stop or the duration cap finalizes the
// accumulated data into one immutable Artifact, Cancel discards it.
// The device is released on every exit path.
type Controller struct {
	conf ControllerConfig
	dev  Device

	mu      sync.Mutex
	state   State
	used    bool
	started time.Time

	bytesCaptured atomic.Int64
	levels        *SampleRingBuffer

	stopOnce   sync.Once
	cancelOnce sync.Once
	stopC      chan struct{}
	cancelC    chan struct{}
	doneC      chan Result
	settledC   chan struct{}
}

// NewController creates a controller for a single recording attempt.
func NewController(conf ControllerConfig) (*Controller, error) {
	conf = conf.withDefaults()

	if conf.MaxDuration <= 0 {
		return nil, errors.New("MaxDuration must be positive")
	}

	if conf.Channels != 1 {
		return nil, errors.New("only mono capture is supported")
	}

	return &Controller{ //nolint:exhaustruct // zero values are the Idle state
		conf:     conf,
		state:    StateIdle,
		levels:   NewSampleRingBuffer(conf.SampleRate), // one second of samples
		stopC:    make(chan struct{}),
		cancelC:  make(chan struct{}),
		doneC:    make(chan Result, 1),
		settledC: make(chan struct{}),
	}, nil
}

// Start acquires the audio device and begins accumulating data. On
// device failure the controller transitions to Failed with a
// DeviceAccessError and no device handle is left open.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.used || c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.used = true
	c.mu.Unlock()

	dev := c.conf.Device
	if dev == nil {
		dev = NewDevice(&DeviceConfig{
			Format:     malgo.FormatS16,
			Channels:   c.conf.Channels,
			SampleRate: c.conf.SampleRate,
		})
	}

	dataC, err := dev.Capture(ctx)
	if err != nil {
		c.setState(StateFailed)
		return &DeviceAccessError{Err: err}
	}

	if err := dev.Start(ctx); err != nil {
		dev.Dealloc(ctx)
		c.setState(StateFailed)
		return &DeviceAccessError{Err: err}
	}

	encoderInput := make(chan []byte, 64)
	out := &bytes.Buffer{}

	encoderConfig := EncoderConfig{ //nolint:exhaustruct // threshold defaulted
		SampleRate: c.conf.SampleRate,
		Channels:   c.conf.Channels,
	}.WithDefaults()

	encoder, err := NewStreamingEncoder(encoderConfig, encoderInput, out)
	if err != nil {
		dev.Dealloc(ctx)
		c.setState(StateFailed)
		return fmt.Errorf("failed to create MP3 encoder: %w", err)
	}

	if err := encoder.Start(ctx); err != nil {
		dev.Dealloc(ctx)
		c.setState(StateFailed)
		return fmt.Errorf("failed to start MP3 encoder: %w", err)
	}

	c.mu.Lock()
	c.dev = dev
	c.state = StateCapturing
	c.started = time.Now()
	c.mu.Unlock()

	go c.run(ctx, dataC, encoderInput, encoder, out)

	return nil
}

// Stop requests finalization of the current recording. Valid only
// while Capturing; from any other state it is a no-op. The finalized
// artifact is delivered on Done().
func (c *Controller) Stop() {
	c.mu.Lock()
	capturing := c.state == StateCapturing
	c.mu.Unlock()

	if !capturing {
		return
	}

	c.stopOnce.Do(func() { close(c.stopC) })
}

// Cancel discards the current recording, releases the device, and
// returns the controller to Idle. Valid only while Capturing; from any
// other state it is a no-op. No artifact is produced. Blocks until the
// device has been released.
func (c *Controller) Cancel() {
	c.mu.Lock()
	capturing := c.state == StateCapturing
	c.mu.Unlock()

	if !capturing {
		return
	}

	c.cancelOnce.Do(func() { close(c.cancelC) })
	<-c.settledC
}

// Done delivers the Result of the recording: exactly one per finalized
// attempt, none for a cancelled one.
func (c *Controller) Done() <-chan Result {
	return c.doneC
}

// State returns the controller's current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Elapsed returns how long the current recording has been running.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started.IsZero() {
		return 0
	}

	return time.Since(c.started)
}

// BytesCaptured returns the number of raw PCM bytes accumulated so far.
func (c *Controller) BytesCaptured() int64 {
	return c.bytesCaptured.Load()
}

// Levels returns up to n most recent captured samples for display.
func (c *Controller) Levels(n int) []int16 {
	return c.levels.ReadSamples(n)
}

// MaxDuration returns the configured recording cap.
func (c *Controller) MaxDuration() time.Duration {
	return c.conf.MaxDuration
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()

	slog.Debug("capture state changed", "state", s.String())
}

// run owns the capture pipeline for the lifetime of one attempt. It is
// the only goroutine that reads the device channel and the only one
// that transitions out of Capturing.
func (c *Controller) run(
	ctx context.Context,
	dataC <-chan DataPacket,
	encoderInput chan []byte,
	encoder *StreamingEncoder,
	out *bytes.Buffer,
) {
	defer close(c.settledC)

	timer := time.NewTimer(c.conf.MaxDuration)
	defer timer.Stop()

	for {
		select {
		case packet := <-dataC:
			encoderInput <- packet
			c.bytesCaptured.Add(int64(len(packet)))
			c.levels.Write(BytesToInt16(packet))

		case <-timer.C:
			slog.Info("recording stopped", "reason", "max_duration_reached",
				"duration", c.conf.MaxDuration)
			c.finalize(ctx, dataC, encoderInput, encoder, out)
			return

		case <-c.stopC:
			c.finalize(ctx, dataC, encoderInput, encoder, out)
			return

		case <-c.cancelC:
			c.discard(ctx, encoderInput, encoder)
			return

		case <-ctx.Done():
			c.discard(ctx, encoderInput, encoder)
			return
		}
	}
}

// finalize stops the device, drains pending packets, waits for the
// encoder to flush, and publishes exactly one Result.
func (c *Controller) finalize(
	ctx context.Context,
	dataC <-chan DataPacket,
	encoderInput chan []byte,
	encoder *StreamingEncoder,
	out *bytes.Buffer,
) {
	c.setState(StateFinalizing)

	elapsed := time.Since(c.started)

	if err := c.dev.Stop(ctx); err != nil {
		slog.Warn("failed to stop audio device", "error", err)
	}

	// Drain whatever the device delivered before it stopped.
drain:
	for {
		select {
		case packet := <-dataC:
			encoderInput <- packet
			c.bytesCaptured.Add(int64(len(packet)))
		default:
			break drain
		}
	}

	close(encoderInput)
	err := encoder.Wait()

	c.dev.Dealloc(ctx)

	if err != nil {
		c.setState(StateFailed)
		c.doneC <- Result{Artifact: nil, Err: fmt.Errorf("failed to encode recording: %w", err)}

		return
	}

	artifact := newArtifact(out.Bytes(), elapsed)
	c.setState(StateReady)
	c.doneC <- Result{Artifact: artifact, Err: nil}
}

// discard releases the device and throws away accumulated data.
func (c *Controller) discard(ctx context.Context, encoderInput chan []byte, encoder *StreamingEncoder) {
	if err := c.dev.Stop(ctx); err != nil {
		slog.Warn("failed to stop audio device", "error", err)
	}

	close(encoderInput)
	_ = encoder.Wait()

	c.dev.Dealloc(ctx)
	c.setState(StateIdle)

	slog.Info("recording cancelled", "bytesDiscarded", c.bytesCaptured.Load())
}
