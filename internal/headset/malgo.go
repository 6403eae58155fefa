package headset

import (
	"github.com/gen2brain/malgo"

	malgodev "github.com/leadme/daf/internal/audiodev/malgo"
	"github.com/leadme/daf/internal/errors"
)

// PlaybackDevices lists sound card playback device names through malgo
func PlaybackDevices() ([]string, error) {
	devices, err := malgodev.ListDevices(malgo.Playback)
	if err != nil {
		return nil, errors.New(err).
			Component("headset").
			Category(errors.CategoryHeadset).
			Context("operation", "list_playback_devices").
			Build()
	}

	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names, nil
}
