package headset

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

// State is the headphone connectivity at one point in time
type State struct {
	Wired     bool `json:"wired"`
	Bluetooth bool `json:"bluetooth"`
}

// Any reports whether wired or Bluetooth headphones are connected
func (s State) Any() bool {
	return s.Wired || s.Bluetooth
}

// Prober reads the current connectivity
type Prober interface {
	Probe(ctx context.Context) (State, error)
}

// ProberFunc adapts a function to Prober
type ProberFunc func(ctx context.Context) (State, error)

func (f ProberFunc) Probe(ctx context.Context) (State, error) { return f(ctx) }

// DeviceLister returns the names of the playback devices currently present
type DeviceLister func() ([]string, error)

var (
	wiredMarkers     = []string{"headphone", "headset", "earphone", "usb audio"}
	bluetoothMarkers = []string{"bluez", "bluetooth", "a2dp", "airpods"}
)

// Classify derives connectivity from playback device names. Bluetooth
// markers win when a name matches both lists.
func Classify(names []string) State {
	var s State
	for _, name := range names {
		lower := strings.ToLower(name)
		switch {
		case containsAny(lower, bluetoothMarkers):
			s.Bluetooth = true
		case containsAny(lower, wiredMarkers):
			s.Wired = true
		}
	}
	return s
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

const devicesCacheKey = "playback-devices"

// DeviceProber classifies playback device names. Enumeration can be slow
// so the device list is cached for ttl.
type DeviceProber struct {
	list  DeviceLister
	cache *cache.Cache
}

// NewDeviceProber creates a prober over list
func NewDeviceProber(list DeviceLister, ttl time.Duration) *DeviceProber {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &DeviceProber{
		list:  list,
		cache: cache.New(ttl, ttl*2),
	}
}

// Probe implements Prober
func (p *DeviceProber) Probe(ctx context.Context) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}

	if cached, found := p.cache.Get(devicesCacheKey); found {
		return Classify(cached.([]string)), nil
	}

	names, err := p.list()
	if err != nil {
		return State{}, err
	}
	p.cache.Set(devicesCacheKey, names, cache.DefaultExpiration)

	return Classify(names), nil
}

// Invalidate drops the cached device list
func (p *DeviceProber) Invalidate() {
	p.cache.Delete(devicesCacheKey)
}
