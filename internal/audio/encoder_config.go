package audio

import "errors"

const (
	// DefaultBufferThreshold is 4KB = 2048 mono samples = 128ms @ 16kHz.
	DefaultBufferThreshold = 4096
	// DefaultSampleRate is 16kHz, the rate the transcription pipeline expects.
	DefaultSampleRate = 16000
	// DefaultChannels is mono (1 channel).
	DefaultChannels = 1
)

// EncoderConfig configures the MP3 streaming encoder.
type EncoderConfig struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int

	// Channels is the number of audio channels. Only mono is supported;
	// it is expanded to stereo internally for the shine-mp3 workaround.
	Channels int

	// BufferThreshold is the number of PCM bytes to accumulate before
	// encoding a batch.
	BufferThreshold int
}

// Validate returns an error if the config is invalid.
func (c EncoderConfig) Validate() error {
	if c.SampleRate <= 0 {
		return errors.New("sample rate must be positive")
	}

	if c.Channels != 1 {
		return errors.New("only mono (1 channel) is supported")
	}

	if c.BufferThreshold <= 0 {
		return errors.New("buffer threshold must be positive")
	}

	return nil
}

// WithDefaults returns a config with default values applied to zero fields.
func (c EncoderConfig) WithDefaults() EncoderConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}

	if c.Channels == 0 {
		c.Channels = DefaultChannels
	}

	if c.BufferThreshold == 0 {
		c.BufferThreshold = DefaultBufferThreshold
	}

	return c
}
