// Package mic captures audio from the default system microphone through
// miniaudio (github.com/gen2brain/malgo).
//
// A [Device] owns the miniaudio context for the lifetime of the process; each
// call to [Device.Open] starts a fresh capture device whose samples are pushed
// into an unbounded [audio.Queue]. Closing the returned source stops and
// releases the capture device.
package mic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/MrWong99/relayvox/pkg/audio"
)

var _ audio.Input = (*Device)(nil)

// Option configures a [Device].
type Option func(*Device)

// WithSampleRate sets the capture sample rate. Default 16000.
func WithSampleRate(rate int) Option {
	return func(d *Device) { d.sampleRate = rate }
}

// WithPeriod sets the capture period in milliseconds. Default 20.
func WithPeriod(ms int) Option {
	return func(d *Device) { d.periodMs = ms }
}

// WithDeviceName selects a capture device whose name contains the given
// string. The default device is used when empty or not found.
func WithDeviceName(name string) Option {
	return func(d *Device) { d.deviceName = name }
}

// Device is a microphone [audio.Input].
type Device struct {
	sampleRate int
	periodMs   int
	deviceName string

	once    sync.Once
	ctx     *malgo.AllocatedContext
	initErr error
}

// New creates a microphone input. The audio backend is initialised lazily on
// the first Open.
func New(opts ...Option) *Device {
	d := &Device{sampleRate: 16000, periodMs: 20}
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) init() error {
	d.once.Do(func() {
		cfg := malgo.ContextConfig{ThreadPriority: malgo.ThreadPriorityRealtime}
		d.ctx, d.initErr = malgo.InitContext(nil, cfg, func(msg string) {
			slog.Debug("mic: backend", "message", msg)
		})
		if d.initErr != nil {
			d.initErr = fmt.Errorf("mic: init audio context: %w", d.initErr)
		}
	})
	return d.initErr
}

// Open implements [audio.Input]. It starts a capture device producing mono
// float32 frames at the configured sample rate.
func (d *Device) Open(_ context.Context) (audio.Source, error) {
	if err := d.init(); err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(d.sampleRate)
	cfg.PeriodSizeInMilliseconds = uint32(d.periodMs)

	if d.deviceName != "" {
		if id, ok := d.findDevice(); ok {
			cfg.Capture.DeviceID = id.Pointer()
		} else {
			slog.Warn("mic: capture device not found, using default", "device", d.deviceName)
		}
	}

	q := audio.NewQueue()
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			q.Push(audio.PCM16ToFloat32(in))
		},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("mic: init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("mic: start capture device: %w", err)
	}

	var stopOnce sync.Once
	q.OnClose = func() {
		stopOnce.Do(func() {
			if err := dev.Stop(); err != nil {
				slog.Warn("mic: stop capture device", "error", err)
			}
			dev.Uninit()
		})
	}
	slog.Debug("mic: capture started", "sample_rate", d.sampleRate, "period_ms", d.periodMs)
	return q, nil
}

func (d *Device) findDevice() (malgo.DeviceID, bool) {
	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		slog.Warn("mic: list capture devices", "error", err)
		return malgo.DeviceID{}, false
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(d.deviceName)) {
			return info.ID, true
		}
	}
	return malgo.DeviceID{}, false
}

// Close releases the audio backend. Sources opened from d must be closed
// first.
func (d *Device) Close() error {
	if d.ctx == nil {
		return nil
	}
	if err := d.ctx.Uninit(); err != nil {
		return fmt.Errorf("mic: uninit audio context: %w", err)
	}
	d.ctx.Free()
	return nil
}
