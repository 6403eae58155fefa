package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/logger"
)

func TestRenderAppendsDelayedTail(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.wav")
	out := filepath.Join(dir, "out.wav")

	settings := testSettings()
	settings.DAF.DelayMs = 100

	samples := make([]int, 1600) // 100 ms
	samples[0] = 1000

	f, err := os.Create(in)
	require.NoError(t, err)
	enc := wav.NewEncoder(f, settings.DAF.SampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:   samples,
		Format: &audio.Format{SampleRate: settings.DAF.SampleRate, NumChannels: 1},
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	require.NoError(t, Render(t.Context(), settings, in, out, nil))

	rf, err := os.Open(out)
	require.NoError(t, err)
	defer rf.Close()
	buf, err := wav.NewDecoder(rf).FullPCMBuffer()
	require.NoError(t, err)

	require.Len(t, buf.Data, 3200)
	assert.Equal(t, 1000, buf.Data[1600])
	assert.Zero(t, buf.Data[0])
}

func TestRenderFailsForMissingInput(t *testing.T) {
	err := Render(t.Context(), testSettings(), filepath.Join(t.TempDir(), "missing.wav"), filepath.Join(t.TempDir(), "out.wav"), nil)
	assert.Error(t, err)
}

func TestRenderRejectsInvalidDelay(t *testing.T) {
	settings := testSettings()
	settings.DAF.DelayMs = -5
	err := Render(t.Context(), settings, "in.wav", "out.wav", nil)
	assert.Error(t, err)
}

func TestNewLoggerDebugLowersLevels(t *testing.T) {
	settings := testSettings()
	settings.Debug = true
	settings.Logging.DefaultLevel = "warn"
	settings.Logging.Console = &logger.ConsoleOutput{Enabled: false, Level: "warn"}

	central, err := NewLogger(settings)
	require.NoError(t, err)
	t.Cleanup(func() { _ = central.Close() })

	assert.NotNil(t, central.Module("dafd"))
	assert.Equal(t, "warn", settings.Logging.Console.Level, "settings are not modified")
}
