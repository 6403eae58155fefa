package headset

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  State
	}{
		{name: "no devices", want: State{}},
		{name: "speakers only", names: []string{"Built-in Audio Analog Stereo", "HDMI Output"}, want: State{}},
		{name: "wired headphones", names: []string{"Built-in Audio Headphones"}, want: State{Wired: true}},
		{name: "usb headset", names: []string{"Jabra USB Audio"}, want: State{Wired: true}},
		{name: "bluez a2dp", names: []string{"bluez_sink.00_11_22.a2dp_sink"}, want: State{Bluetooth: true}},
		{name: "bluetooth headset counts as bluetooth", names: []string{"Bluetooth Headset"}, want: State{Bluetooth: true}},
		{name: "both", names: []string{"AirPods Pro", "Front Headphone Jack"}, want: State{Wired: true, Bluetooth: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.names))
		})
	}
}

func TestDeviceProberCachesEnumeration(t *testing.T) {
	calls := 0
	names := []string{"Headphones"}
	p := NewDeviceProber(func() ([]string, error) {
		calls++
		return names, nil
	}, time.Minute)

	for range 3 {
		s, err := p.Probe(t.Context())
		require.NoError(t, err)
		assert.True(t, s.Wired)
	}
	assert.Equal(t, 1, calls)

	names = nil
	p.Invalidate()
	s, err := p.Probe(t.Context())
	require.NoError(t, err)
	assert.False(t, s.Any())
	assert.Equal(t, 2, calls)
}

func TestDeviceProberDoesNotCacheErrors(t *testing.T) {
	calls := 0
	p := NewDeviceProber(func() ([]string, error) {
		calls++
		return nil, fmt.Errorf("enumeration failed")
	}, time.Minute)

	_, err := p.Probe(t.Context())
	require.Error(t, err)
	_, err = p.Probe(t.Context())
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDeviceProberHonoursCancelledContext(t *testing.T) {
	p := NewDeviceProber(func() ([]string, error) { return nil, nil }, time.Minute)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := p.Probe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
