// Package audio owns microphone capture: the device abstraction, the
// streaming MP3 encoder, and the capture controller that turns a
// bounded recording into one finalized artifact.
package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
	"github.com/medscribe/scribe/pkg/collections"
)

// DataPacket is one batch of raw PCM bytes from the capture device.
type DataPacket = []byte

// Device abstracts the OS audio capture device so the controller can be
// tested against a fake.
type Device interface {
	// EnumerateDevices lists available capture devices.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// Capture initializes the underlying device and returns the channel
	// that will receive packets of sampled bytes once Start() is called.
	Capture(ctx context.Context) (<-chan DataPacket, error)

	// Start starts the audio device.
	Start(ctx context.Context) error

	// Stop stops the audio device. It blocks until pending data has been
	// delivered to the capture channel. If the device has already been
	// deallocated this is a no-op.
	Stop(ctx context.Context) error

	// IsStarted reports whether the device is currently capturing.
	IsStarted() bool

	// Dealloc releases the underlying device and frees resources.
	// Safe to call on every exit path, including after failures.
	Dealloc(ctx context.Context)
}

// DeviceConfig selects the capture profile. The documentation pipeline
// wants mono 16kHz S16LE; noise suppression and echo cancellation are
// not exposed by the backend APIs malgo wraps, so the profile stops at
// format, channels, and rate.
type DeviceConfig struct {
	Format     malgo.FormatType
	Channels   int
	SampleRate int
}

type device struct {
	conf *DeviceConfig

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

// NewDevice creates a capture device with the given profile.
func NewDevice(conf *DeviceConfig) Device {
	return &device{conf: conf}
}

func (d *device) EnumerateDevices(ctx context.Context) ([]Info, error) {
	// An empty context is fine for enumeration only.
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	return collections.Apply(captureDevices, malgoDeviceInfoToDeviceInfo), nil
}

func (d *device) Capture(ctx context.Context) (<-chan DataPacket, error) {
	dataC := make(chan DataPacket, 64)

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = d.conf.Format
	devCnf.Capture.Channels = uint32(d.conf.Channels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, framecount uint32) {
			forwardPacket(dataC, samples)
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		// Do not leave a half-open context behind a failed device init.
		uninitializeContext(mgCtx)
		return nil, fmt.Errorf("failed to initialize malgo capture device: %w", err)
	}

	d.mgCtx = mgCtx
	d.mgDevice = mgDevice

	return dataC, nil
}

// forwardPacket hands one batch of samples to the capture channel.
// malgo reuses the callback buffer between invocations, so the bytes
// must be copied before they leave the audio thread.
func forwardPacket(dataC chan<- DataPacket, samples []byte) {
	dataC <- append(DataPacket(nil), samples...)
}

func (d *device) Start(ctx context.Context) error {
	if d.mgDevice == nil {
		return fmt.Errorf("device nil. have you allocated it with Capture()?")
	}

	if d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(ctx context.Context) error {
	if d.mgDevice == nil {
		// noop
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) IsStarted() bool {
	if d.mgDevice == nil {
		return false
	}

	return d.mgDevice.IsStarted()
}

func (d *device) Dealloc(ctx context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	d.mgCtx.Free()
	d.mgDevice = nil
	d.mgCtx = nil
}

// Info describes one available capture device.
type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
