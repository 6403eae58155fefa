// conf/consts.go hard coded constants
package conf

const (
	SampleRate     = 16000 // Default capture and playback sample rate in Hz
	BitDepth       = 16    // PCM is signed 16-bit little endian
	BytesPerSample = 2     // BitDepth / 8
	NumChannels    = 1     // Mono
	DelayMs        = 200   // Default feedback delay

	ConfigFileName = "config.yaml"
	EnvPrefix      = "DAF"
)
