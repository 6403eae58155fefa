package config

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadme/daf/internal/conf"
)

func TestConfigCommandMasksSecrets(t *testing.T) {
	settings := &conf.Settings{}
	settings.DAF.DelayMs = 250
	settings.MQTT.Password = "hunter2"

	var stdout, stderr bytes.Buffer
	cmd := Command(settings)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	assert.Contains(t, stdout.String(), "delayms: 250")
	assert.NotContains(t, stdout.String(), "hunter2")
	assert.Contains(t, stderr.String(), "configuration is invalid", "zero settings fail validation")
}
