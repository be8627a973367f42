package kmain

import (
	"io"

	"irqos/kernel/driver"
	"irqos/kernel/driver/serial"
	"irqos/kernel/driver/vga"
	"irqos/kernel/kfmt"
)

// serialPorts lists the detect functions tried, in order, for mirroring
// the console output to a serial port.
var serialPorts = []driver.DetectFn{detectCOM1}

func detectCOM1() driver.Driver {
	return serial.New(machine, serial.COM1)
}

// attachSerial initializes the drivers returned by detect and returns the
// first one that comes up and accepts output. Init messages go to w. It
// returns nil if no serial port is usable.
func attachSerial(detect []driver.DetectFn, w io.Writer) io.Writer {
	for _, detectFn := range detect {
		drv := detectFn()
		if drv == nil {
			continue
		}

		if err := drv.DriverInit(w); err != nil {
			kfmt.Fprintf(w, "[kmain] %s: %s\n", drv.DriverName(), err.Message)
			continue
		}

		if out, ok := drv.(io.Writer); ok {
			return out
		}
	}

	return nil
}

// console mirrors kernel output to the screen and the serial port. Either
// device may be missing.
type console struct {
	screen *vga.Terminal
	serial io.Writer
}

func (c *console) Write(p []byte) (int, error) {
	if c.screen != nil {
		c.screen.Write(p)
	}
	if c.serial != nil {
		c.serial.Write(p)
	}
	return len(p), nil
}

func (c *console) setColor(fg vga.Color) {
	if c.screen != nil {
		c.screen.SetColor(fg, vga.Black)
	}
}
