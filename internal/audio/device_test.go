package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardPacketCopiesSamples(t *testing.T) {
	dataC := make(chan DataPacket, 1)
	samples := []byte{0x01, 0x02, 0x03, 0x04}

	forwardPacket(dataC, samples)

	// The device reuses its callback buffer between invocations.
	samples[0] = 0xFF
	samples[1] = 0xFF

	var got DataPacket
	select {
	case got = <-dataC:
	default:
		require.FailNow(t, "expected a packet on the capture channel")
	}

	assert.Equal(t, DataPacket{0x01, 0x02, 0x03, 0x04}, got)
}
