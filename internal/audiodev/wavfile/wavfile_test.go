package wavfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/daf"
)

// writeWAV encodes samples as a WAV file at path
func writeWAV(t *testing.T, path string, sampleRate, channels int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}))
	require.NoError(t, enc.Close())
}

// readWAV decodes all samples of the WAV file at path
func readWAV(t *testing.T, path string) (*wav.Decoder, []int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	return dec, buf.Data
}

func TestRenderDelaysImpulse(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out", "delayed.wav")

	cfg := daf.DefaultAudioConfig()
	input := make([]int, 8000) // 0.5 s
	input[0] = 32767
	input[100] = -1234
	writeWAV(t, in, cfg.SampleRateHz, 1, input)

	backend := New(Config{InputPath: in, OutputPath: out, TailPadding: cfg.CapacityBytes()})
	ctrl := daf.NewController(backend, daf.Options{})
	require.NoError(t, ctrl.Start(cfg))

	select {
	case <-backend.Exhausted():
	case <-time.After(5 * time.Second):
		t.Fatal("input was never exhausted")
	}
	ctrl.Stop()

	dec, samples := readWAV(t, out)
	assert.Equal(t, uint32(cfg.SampleRateHz), dec.SampleRate)
	assert.Equal(t, uint16(1), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)

	delaySamples := cfg.CapacityBytes() / daf.BytesPerSample
	require.Len(t, samples, len(input)+delaySamples)
	for i, v := range samples {
		switch i {
		case delaySamples:
			assert.Equal(t, 32767, v)
		case delaySamples + 100:
			assert.Equal(t, -1234, v)
		default:
			require.Zero(t, v, "sample %d", i)
		}
	}
}

func TestOpenCaptureRejectsWrongFormat(t *testing.T) {
	dir := t.TempDir()
	stereo := filepath.Join(dir, "stereo.wav")
	writeWAV(t, stereo, 16000, 2, make([]int, 32))
	wrongRate := filepath.Join(dir, "rate.wav")
	writeWAV(t, wrongRate, 48000, 1, make([]int, 32))

	for _, path := range []string{stereo, wrongRate, filepath.Join(dir, "missing.wav")} {
		backend := New(Config{InputPath: path})
		_, err := backend.OpenCapture(daf.DefaultAudioConfig(), 640)
		assert.Error(t, err, path)
	}
}

func TestOpenCaptureRejectsNonWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, []byte("definitely not RIFF data"), 0o600))

	_, err := New(Config{InputPath: path}).OpenCapture(daf.DefaultAudioConfig(), 640)
	assert.Error(t, err)
}

func TestStartFailsWhenInputMissing(t *testing.T) {
	dir := t.TempDir()
	backend := New(Config{InputPath: filepath.Join(dir, "missing.wav"), OutputPath: filepath.Join(dir, "out.wav")})
	ctrl := daf.NewController(backend, daf.Options{})

	err := ctrl.Start(daf.DefaultAudioConfig())

	require.ErrorIs(t, err, daf.ErrDeviceUnavailable)
	assert.NoFileExists(t, filepath.Join(dir, "out.wav"))
}

func TestSinkWriteAfterCloseFails(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.wav")
	sink, err := New(Config{OutputPath: out}).OpenSink(daf.DefaultAudioConfig(), 640)
	require.NoError(t, err)

	n, err := sink.Write([]byte{1, 0, 2, 0})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	_, err = sink.Write([]byte{1, 0})
	assert.ErrorIs(t, err, daf.ErrWriteFailed)

	_, samples := readWAV(t, out)
	assert.Equal(t, []int{1, 2}, samples)
}

func TestDecodeFailureEndsInput(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	cfg := daf.DefaultAudioConfig()
	writeWAV(t, in, cfg.SampleRateHz, 1, make([]int, 1600))

	const padding = 640
	backend := New(Config{
		InputPath:   in,
		OutputPath:  filepath.Join(dir, "out.wav"),
		TailPadding: padding,
		IdleTimeout: time.Millisecond,
	})
	capture, err := backend.OpenCapture(cfg, 320)
	require.NoError(t, err)
	t.Cleanup(func() { _ = capture.Close() })

	// pull the file out from under the decoder
	src := capture.(*source)
	require.NoError(t, src.file.Close())

	buf := make([]byte, 320)
	var emitted int
	for range 10 {
		n, err := capture.Read(buf)
		require.NoError(t, err)
		emitted += n
	}

	assert.GreaterOrEqual(t, emitted, padding)
	assert.Less(t, emitted, 1600*daf.BytesPerSample+padding, "decoding stops at the failure")
	select {
	case <-backend.Exhausted():
	default:
		t.Fatal("input was never marked exhausted")
	}
}
