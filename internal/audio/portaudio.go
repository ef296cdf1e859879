package audio

import (
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDriver is the production Driver. Construct exactly one per
// process; Close terminates the PortAudio runtime.
type PortAudioDriver struct{}

func NewPortAudioDriver() (*PortAudioDriver, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: portaudio init: %w", err)
	}
	return &PortAudioDriver{}, nil
}

func (d *PortAudioDriver) Close() error {
	return portaudio.Terminate()
}

// Devices lists every device with input channels.
func (d *PortAudioDriver) Devices() ([]DeviceInfo, error) {
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}
	var out []DeviceInfo
	for i, dev := range devs {
		if dev.MaxInputChannels == 0 {
			continue
		}
		out = append(out, DeviceInfo{
			ID:         i,
			Name:       dev.Name,
			MaxInputs:  dev.MaxInputChannels,
			SampleRate: dev.DefaultSampleRate,
		})
	}
	return out, nil
}

func (d *PortAudioDriver) Open(cfg StreamConfig, cb Callback) (Stream, error) {
	dev, err := d.findInput(cfg.Device)
	if err != nil {
		return nil, err
	}

	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = cfg.Channels
	params.SampleRate = float64(cfg.SampleRate)
	params.FramesPerBuffer = cfg.BufferSize

	stream, err := portaudio.OpenStream(params, func(in []float32, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
		cb(in, flags&portaudio.InputOverflow != 0)
	})
	if err != nil {
		return nil, fmt.Errorf("audio: open stream on %q: %w", dev.Name, err)
	}
	return &paStream{s: stream}, nil
}

func (d *PortAudioDriver) findInput(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("audio: default input: %w", err)
		}
		return dev, nil
	}
	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("audio: list devices: %w", err)
	}
	for _, dev := range devs {
		if dev.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Name), strings.ToLower(name)) {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audio: no input device matching %q", name)
}

type paStream struct {
	s *portaudio.Stream
}

func (p *paStream) Start() error { return p.s.Start() }
func (p *paStream) Stop() error  { return p.s.Stop() }
func (p *paStream) Close() error { return p.s.Close() }
