// Package buildinfo carries build-time metadata injected through ldflags.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata missing from the build.
const UnknownValue = "unknown"

// Context holds build metadata. It is not part of user configuration.
type Context struct {
	// Version is the git tag the binary was built from.
	Version string
	// BuildDate is the build timestamp.
	BuildDate string
}

func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release is the Sentry release name, e.g. "pestnet-go@1.2.0".
func (c *Context) Release() string {
	return fmt.Sprintf("pestnet-go@%s", c.GetVersion())
}

func (c *Context) String() string {
	return fmt.Sprintf("pestnet-go %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
