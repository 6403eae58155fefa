package malgo

import (
	"runtime"
	"testing"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/daf"
)

func TestNewBackendDefaults(t *testing.T) {
	b := NewBackend(Config{})

	assert.Equal(t, BackendName, b.Name())
	assert.Equal(t, defaultPeriodMs, b.cfg.PeriodMs)
	assert.Equal(t, 100*time.Millisecond, b.cfg.ReadTimeout)
	assert.Equal(t, 100*time.Millisecond, b.cfg.WriteTimeout)
	assert.Equal(t, defaultBufferPeriods, b.cfg.BufferPeriods)
}

func TestRecommendedFrameSize(t *testing.T) {
	b := NewBackend(Config{PeriodMs: 20})

	size, err := b.RecommendedFrameSize(daf.DefaultAudioConfig())
	require.NoError(t, err)
	assert.Equal(t, 640, size)
	assert.Equal(t, uint32(320), b.periodFrames(daf.DefaultAudioConfig()))

	_, err = b.RecommendedFrameSize(daf.NewAudioConfig(10, 200))
	assert.Error(t, err)
}

func TestBackendForPlatform(t *testing.T) {
	backend, err := getBackendForPlatform()
	switch runtime.GOOS {
	case "linux":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendAlsa), backend)
	case "windows":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendWasapi), backend)
	case "darwin":
		require.NoError(t, err)
		assert.Equal(t, malgo.Backend(malgo.BackendCoreaudio), backend)
	default:
		assert.Error(t, err)
	}
}

func TestSelectDeviceWithoutDevices(t *testing.T) {
	_, err := selectDevice(nil, "default")
	assert.Error(t, err)

	_, err = selectDevice(nil, "USB Headset")
	assert.Error(t, err)
}

func TestHexToASCII(t *testing.T) {
	decoded, err := hexToASCII("3a312c30")
	require.NoError(t, err)
	assert.Equal(t, ":1,0", decoded)

	_, err = hexToASCII("zz")
	assert.Error(t, err)
}

func TestIsDefaultName(t *testing.T) {
	for _, name := range []string{"", "default", "sysdefault"} {
		assert.True(t, isDefaultName(name), name)
	}
	assert.False(t, isDefaultName("hw:1,0"))
}
