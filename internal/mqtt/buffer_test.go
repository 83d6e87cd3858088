package mqtt

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(b byte) bufferedMsg {
	return bufferedMsg{topic: TopicSystem, payload: []byte{b}}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(4, zerolog.Nop())
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferDrainOrder(t *testing.T) {
	rb := newRingBuffer(4, zerolog.Nop())
	for i := byte(0); i < 3; i++ {
		rb.push(msg(i))
	}
	assert.Equal(t, 3, rb.len())

	assert.Equal(t, []byte{0, 1, 2}, payloads(rb.drainAll()))
	assert.Zero(t, rb.len())
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	var logs bytes.Buffer
	rb := newRingBuffer(3, zerolog.New(&logs))

	for i := byte(0); i < 6; i++ {
		rb.push(msg(i))
	}

	assert.Equal(t, 3, rb.len())
	assert.Equal(t, []byte{3, 4, 5}, payloads(rb.drainAll()))
	assert.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("dropping oldest")), "overflow logged once")
}

func TestRingBufferReusableAfterDrain(t *testing.T) {
	rb := newRingBuffer(2, zerolog.Nop())
	for round := byte(0); round < 3; round++ {
		rb.push(msg(round * 10))
		rb.push(msg(round*10 + 1))
		rb.push(msg(round*10 + 2))
		require.Equal(t, []byte{round*10 + 1, round*10 + 2}, payloads(rb.drainAll()))
	}
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(2, zerolog.Nop())
	in := bufferedMsg{topic: TopicSystem, payload: []byte(`{"a":1}`), qos: 1, retained: true}
	rb.push(in)

	out := rb.drainAll()
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}
