// Package log holds the logger shared by the host-side tools.
package log

import (
	"os"

	hclog "github.com/hashicorp/go-hclog"
)

// L is the root logger. It logs at Info level unless the TRACE environment
// variable is set.
var L hclog.Logger

func init() {
	L = hclog.New(&hclog.LoggerOptions{Name: "irqos"})
	L.SetLevel(hclog.Info)

	EnableDebug()
}

// EnableDebug switches L to Trace level if TRACE is set.
func EnableDebug() {
	if str := os.Getenv("TRACE"); str != "" {
		L.SetLevel(hclog.Trace)
	}
}
