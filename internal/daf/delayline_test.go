package daf

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityBytes(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		delayMs    int
		want       int
	}{
		{"default 16k 200ms", 16000, 200, 6400},
		{"44.1k 10ms", 44100, 10, 882},
		{"fractional samples truncate", 44100, 1, 88},
		{"zero delay", 8000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewAudioConfig(tt.sampleRate, tt.delayMs).CapacityBytes())
		})
	}
}

func TestAudioConfigValidate(t *testing.T) {
	require.NoError(t, DefaultAudioConfig().Validate())
	require.NoError(t, NewAudioConfig(16000, 0).Validate())

	assert.Error(t, NewAudioConfig(0, 200).Validate())
	assert.Error(t, NewAudioConfig(16000, -1).Validate())

	stereo := DefaultAudioConfig()
	stereo.ChannelCount = 2
	assert.Error(t, stereo.Validate())

	pcm8 := DefaultAudioConfig()
	pcm8.BytesPerSample = 1
	assert.Error(t, pcm8.Validate())
}

// processInFrames runs input through d in frameSize chunks and returns the output
func processInFrames(d *DelayLine, input []byte, frameSize int) []byte {
	out := make([]byte, len(input))
	copy(out, input)
	for off := 0; off < len(out); off += frameSize {
		d.Process(out[off:min(off+frameSize, len(out))])
	}
	return out
}

func TestDelayLineImpulse(t *testing.T) {
	cfg := DefaultAudioConfig()
	d := NewDelayLine(cfg.CapacityBytes())
	require.Equal(t, 6400, d.Capacity())

	input := make([]byte, 12800)
	input[0], input[1] = 0xFF, 0x7F // 0x7FFF little endian

	out := processInFrames(d, input, 640)

	for i, b := range out {
		switch i {
		case 6400:
			assert.Equal(t, byte(0xFF), b)
		case 6401:
			assert.Equal(t, byte(0x7F), b)
		default:
			if b != 0 {
				t.Fatalf("unexpected byte 0x%02x at offset %d", b, i)
			}
		}
	}
}

func TestDelayLinePreservesContent(t *testing.T) {
	const capacity = 6400
	rng := rand.New(rand.NewPCG(1, 2))

	for _, frameSize := range []int{1, 333, 640, 7000} {
		d := NewDelayLine(capacity)

		input := make([]byte, 3*capacity+123)
		for i := range input {
			input[i] = byte(rng.IntN(256))
		}

		// feed the input followed by one capacity of silence to flush it out
		stream := append(append([]byte{}, input...), make([]byte, capacity)...)
		out := processInFrames(d, stream, frameSize)

		assert.Equal(t, make([]byte, capacity), out[:capacity], "frame %d: leading silence", frameSize)
		assert.Equal(t, input, out[capacity:], "frame %d: delayed content", frameSize)
	}
}

func TestDelayLineZeroCapacityIsPassthrough(t *testing.T) {
	d := NewDelayLine(NewAudioConfig(16000, 0).CapacityBytes())
	frame := []byte{1, 2, 3, 4, 5}

	d.Process(frame)

	assert.Equal(t, []byte{1, 2, 3, 4, 5}, frame)
	assert.Zero(t, d.Capacity())
}

func TestDelayLineNegativeCapacity(t *testing.T) {
	d := NewDelayLine(-10)
	frame := []byte{9}
	d.Process(frame)
	assert.Equal(t, []byte{9}, frame)
}

func TestDelayLineDoesNotAllocate(t *testing.T) {
	d := NewDelayLine(6400)
	frame := make([]byte, 640)

	allocs := testing.AllocsPerRun(100, func() {
		d.Process(frame)
	})
	assert.Zero(t, allocs)
}

func BenchmarkDelayLineProcess(b *testing.B) {
	d := NewDelayLine(6400)
	frame := make([]byte, 640)
	b.SetBytes(int64(len(frame)))
	b.ReportAllocs()

	for b.Loop() {
		d.Process(frame)
	}
}
