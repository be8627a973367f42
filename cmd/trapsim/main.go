// Command trapsim fires a single trap at the trap handling core running on
// simulated hardware and prints what the operator would see.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	clog "irqos/internal/log"
	"irqos/internal/sim"
	"irqos/kernel/syscall"
)

var (
	fScenario   = pflag.StringP("scenario", "s", "syscall", "trap to fire: "+strings.Join(sim.Scenarios(), ", "))
	fSyscall    = pflag.Uint64("syscall", 1, "syscall number placed in RAX")
	fArgs       = pflag.UintSlice("args", nil, "up to five syscall arguments (RBX, RCX, RDX, RSI, RDI)")
	fFaultAddr  = pflag.Uint64("fault-addr", 0, "faulting address reported through CR2")
	fFaultCode  = pflag.Uint64("fault-code", 0, "page fault error code")
	fScancodes  = pflag.UintSlice("scancodes", []uint{0x1e}, "scancodes queued on the keyboard controller")
	fDump       = pflag.BoolP("dump", "d", false, "dump the full result")
	fScreenshot = pflag.String("screenshot", "", "write the console output to this PNG file")
	fWidth      = pflag.Int("width", 640, "screenshot width in pixels")
)

func main() {
	pflag.Parse()

	if err := run(); err != nil {
		clog.L.Error("trapsim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	s, err := scenarioFromFlags()
	if err != nil {
		return err
	}

	res, err := sim.Run(s, clog.L.Named("sim"))
	if err != nil {
		return err
	}

	for _, line := range res.Console {
		fmt.Println(line)
	}

	if *fDump {
		spew.Dump(res)
	}

	if *fScreenshot != "" {
		if err := sim.Screenshot(res.Console, *fScreenshot, *fWidth); err != nil {
			return err
		}
		clog.L.Info("screenshot saved", "path", *fScreenshot)
	}

	return nil
}

func scenarioFromFlags() (sim.Scenario, error) {
	if len(*fArgs) > 5 {
		return sim.Scenario{}, errors.Errorf("at most 5 syscall arguments are supported; got %d", len(*fArgs))
	}

	var vals [5]uint64
	for i, v := range *fArgs {
		vals[i] = uint64(v)
	}

	s := sim.Scenario{
		Name:    *fScenario,
		Syscall: *fSyscall,
		Args: syscall.Args{
			A:    vals[0],
			B:    vals[1],
			C:    vals[2],
			Src:  vals[3],
			Dest: vals[4],
		},
		FaultAddress: *fFaultAddr,
		FaultCode:    *fFaultCode,
	}

	for _, code := range *fScancodes {
		if code > 0xff {
			return sim.Scenario{}, errors.Errorf("scancode %#x does not fit in a byte", code)
		}
		s.Scancodes = append(s.Scancodes, uint8(code))
	}

	return s, nil
}
