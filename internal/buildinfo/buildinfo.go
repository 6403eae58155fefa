// Package buildinfo carries metadata injected at link time. It is kept apart
// from the user configuration so it cannot be overridden by a config file.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata the build did not provide
const UnknownValue = "unknown"

// BuildInfo provides read access to build-time metadata
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
}

// Context holds the version and build date of the running binary
type Context struct {
	// Version holds the Git version tag from build
	Version string
	// BuildDate is the time when the binary was built
	BuildDate string
}

var _ BuildInfo = (*Context)(nil)

// NewContext creates build metadata from linker-provided values
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion implements BuildInfo.GetVersion
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate implements BuildInfo.GetBuildDate
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// String renders the metadata for --version output
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
