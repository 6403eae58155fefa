package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/buildinfo"
	"github.com/leadme/daf/internal/conf"
)

func validSettings() *conf.Settings {
	s := &conf.Settings{Version: "test"}
	s.DAF = conf.DAFSettings{SampleRate: 16000, DelayMs: 200, JoinTimeout: 2 * time.Second}
	s.Audio = conf.AudioSettings{
		Backend:       "memory",
		PeriodMs:      20,
		ReadTimeout:   100 * time.Millisecond,
		WriteTimeout:  100 * time.Millisecond,
		BufferPeriods: 8,
	}
	return s
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := RootCommand(validSettings(), buildinfo.NewContext("1.0.0", "2026-10-01"))

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "run", "render", "devices", "config"} {
		assert.Contains(t, names, want)
	}
	assert.Equal(t, "1.0.0 (built 2026-10-01)", root.Version)
}

func TestDelayFlagOverridesSettings(t *testing.T) {
	settings := validSettings()
	root := RootCommand(settings, buildinfo.NewContext("", ""))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--delay", "350", "config"})

	require.NoError(t, root.Execute())
	assert.Equal(t, 350, settings.DAF.DelayMs)
	assert.Contains(t, out.String(), "delayms: 350")
}

func TestInvalidFlagValueFailsBeforeRunning(t *testing.T) {
	root := RootCommand(validSettings(), buildinfo.NewContext("", ""))

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--delay", "9000", "render", "in.wav", "out.wav"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daf.delayms")
}
