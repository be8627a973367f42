package irq

import (
	"testing"

	"irqos/kernel/gate"
)

type portWrite struct {
	port uint16
	val  uint8
}

// portRecorder is a hal.Machine that records port writes.
type portRecorder struct {
	writes []portWrite
	masks  map[uint16]uint8
}

func (r *portRecorder) ReadFaultAddress() uint64 { return 0 }
func (r *portRecorder) ReadFlags() uint64        { return 0 }
func (r *portRecorder) ReadCodeSegment() uint64  { return 0 }
func (r *portRecorder) ReadStackSegment() uint64 { return 0 }
func (r *portRecorder) DisableInterrupts()       {}
func (r *portRecorder) EnableInterrupts()        {}
func (r *portRecorder) Halt()                    {}

func (r *portRecorder) PortReadByte(port uint16) uint8 { return r.masks[port] }

func (r *portRecorder) PortWriteByte(port uint16, val uint8) {
	r.writes = append(r.writes, portWrite{port, val})
}

func (r *portRecorder) writesTo(port uint16) []uint8 {
	var out []uint8
	for _, w := range r.writes {
		if w.port == port {
			out = append(out, w.val)
		}
	}
	return out
}

func TestPICInit(t *testing.T) {
	rec := &portRecorder{masks: map[uint16]uint8{masterDataPort: 0xfc, slaveDataPort: 0xff}}
	pic := NewPIC(rec, gate.IRQBase, gate.IRQBase+8)
	pic.Init()

	expMaster := []uint8{uint8(gate.IRQBase), icw3MasterSlaveAt, icw4Mode8086, 0xfc}
	if got := rec.writesTo(masterDataPort); !equal(got, expMaster) {
		t.Errorf("expected master data writes %v; got %v", expMaster, got)
	}

	expSlave := []uint8{uint8(gate.IRQBase + 8), icw3SlaveIdentity, icw4Mode8086, 0xff}
	if got := rec.writesTo(slaveDataPort); !equal(got, expSlave) {
		t.Errorf("expected slave data writes %v; got %v", expSlave, got)
	}

	if got := rec.writesTo(masterCommandPort); !equal(got, []uint8{icw1Init}) {
		t.Errorf("expected a single ICW1 write to the master command port; got %v", got)
	}
}

func TestPICEndOfInterrupt(t *testing.T) {
	specs := []struct {
		vector    gate.InterruptNumber
		expMaster int
		expSlave  int
	}{
		{gate.TimerIRQ, 1, 0},
		{gate.KeyboardIRQ, 1, 0},
		{gate.IRQBase + 7, 1, 0},
		{gate.IRQBase + 8, 1, 1},
		{gate.IRQBase + 15, 1, 1},
		{gate.Syscall, 0, 0},
		{gate.PageFaultException, 0, 0},
	}

	for specIndex, spec := range specs {
		rec := &portRecorder{}
		pic := NewPIC(rec, gate.IRQBase, gate.IRQBase+8)

		pic.EndOfInterrupt(spec.vector)

		if got := len(rec.writesTo(masterCommandPort)); got != spec.expMaster {
			t.Errorf("[spec %d] expected %d master EOIs; got %d", specIndex, spec.expMaster, got)
		}
		if got := len(rec.writesTo(slaveCommandPort)); got != spec.expSlave {
			t.Errorf("[spec %d] expected %d slave EOIs; got %d", specIndex, spec.expSlave, got)
		}

		if handles := pic.Handles(spec.vector); handles != (spec.expMaster != 0) {
			t.Errorf("[spec %d] unexpected Handles(%d) result %t", specIndex, spec.vector, handles)
		}
	}
}

func equal(a, b []uint8) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
