package audio

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamingEncoderEncodesPCM(t *testing.T) {
	input := make(chan []byte, 8)
	out := &bytes.Buffer{}

	encoder, err := NewStreamingEncoder(EncoderConfig{}.WithDefaults(), input, out)
	require.NoError(t, err)
	require.NoError(t, encoder.Start(context.Background()))

	// Two threshold-sized chunks of silence.
	input <- make([]byte, DefaultBufferThreshold)
	input <- make([]byte, DefaultBufferThreshold)
	close(input)

	require.NoError(t, encoder.Wait())
	assert.NotEmpty(t, out.Bytes())
}

func TestStreamingEncoderValidation(t *testing.T) {
	input := make(chan []byte)
	out := &bytes.Buffer{}

	_, err := NewStreamingEncoder(EncoderConfig{}.WithDefaults(), nil, out)
	assert.Error(t, err)

	_, err = NewStreamingEncoder(EncoderConfig{}.WithDefaults(), input, nil)
	assert.Error(t, err)

	_, err = NewStreamingEncoder(EncoderConfig{SampleRate: -1, Channels: 1, BufferThreshold: 1}, input, out)
	assert.Error(t, err)

	_, err = NewStreamingEncoder(EncoderConfig{SampleRate: 16000, Channels: 2, BufferThreshold: 1}, input, out)
	assert.Error(t, err)
}
