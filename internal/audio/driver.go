package audio

// DeviceInfo describes one capture device as reported by the driver.
type DeviceInfo struct {
	ID         int
	Name       string
	MaxInputs  int
	SampleRate float64
}

// StreamConfig describes the capture stream to open.
type StreamConfig struct {
	SampleRate int
	BufferSize int
	Channels   int

	// Device is matched as a case-insensitive substring against device
	// names. Empty selects the system default input.
	Device string
}

// Callback receives one interleaved buffer from the driver thread.
// overflowed reports that the driver dropped input before this buffer.
// The slice is only valid for the duration of the call.
type Callback func(samples []float32, overflowed bool)

// Stream is an open capture stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver abstracts the audio backend so the input pipeline can be fed
// directly in tests.
type Driver interface {
	Open(cfg StreamConfig, cb Callback) (Stream, error)
	Devices() ([]DeviceInfo, error)
	Close() error
}
