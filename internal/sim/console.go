package sim

import (
	"bytes"
	"strings"
)

// Console collects the text written by the kernel.
type Console struct {
	buf bytes.Buffer
}

// Write implements io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

// String returns everything written so far.
func (c *Console) String() string {
	return c.buf.String()
}

// Lines returns the console output split into lines. A trailing partial
// line is included; blank lines are kept.
func (c *Console) Lines() []string {
	out := strings.TrimSuffix(c.buf.String(), "\n")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}
