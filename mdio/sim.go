// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdio

import (
	"fmt"
	"sync"
)

// registers of the indirect window and of the MXL371x the simulator models.
const (
	regBMSR      = 0x01
	regPhyID1    = 0x02
	regPhyID2    = 0x03
	regAddrHi    = 0x0e
	regAddrLoDHi = 0x0f // address-low on the 2nd write, data-high otherwise
	regDataLo    = 0x10
	regPage      = 0x1f

	simPHYID = 0x02434770
	simBMSR  = 0x0009 // extended capabilities, auto-negotiation capable

	sreFamily   = 0x08200000
	sreDeviceID = 0x08200004
	fwStatusReg = 0x08200100
	fwLoaded    = 1 << 0
	fwRunning   = 1 << 1
	cpuCSR      = 0x08200010
	tsensCtrl   = 0x08200200
	tsensData   = 0x08200204
)

const (
	phaseIdle = iota
	phaseAddrLo
	phaseDataLo
)

// Access is a logical 32-bit register access seen by the simulator.
type Access struct {
	Write bool
	Addr  uint32
	Value uint32
}

// Sim is an in-memory model of the MXL371x register file reached through
// the indirect 16-bit MDIO window.
//
// Sim implements phy.MDIOBus. It is safe for concurrent use, but callers
// are expected to serialize composite transactions, as mxl.Bus does.
type Sim struct {
	mu sync.Mutex

	id    uint32
	mem   map[uint32]uint32
	pages map[uint16]map[uint16]uint16
	page  uint16

	phase int
	hi    uint16 // latched address-high half
	addr  uint32 // selected logical address
	dhi   uint16 // latched data-high half
	latch uint32 // value latched by a data-high read

	reads  int
	writes []Access

	// MDIOHook, when set, is called before every narrow access.
	// A non-nil error fails the access.
	MDIOHook func(write bool, reg uint16) error

	// ReadHook, when set, is called under the simulator lock before the
	// logical read of addr is served. It may mutate mem.
	// A non-nil error fails the data-high read.
	ReadHook func(mem map[uint32]uint32, addr uint32) error

	// WriteHook, when set, is called under the simulator lock before the
	// logical write of v at addr is committed. It may mutate mem.
	// A non-nil error fails the data-low write and drops the write.
	WriteHook func(mem map[uint32]uint32, addr, v uint32) error
}

// NewSim returns a simulator with an empty register file.
func NewSim() *Sim {
	sim := &Sim{
		id:    simPHYID,
		mem:   make(map[uint32]uint32),
		pages: make(map[uint16]map[uint16]uint16),
	}
	sim.pageRegs(0)[regBMSR] = simBMSR
	return sim
}

// NewLeucadia returns a simulator modelling a cold MXL3710 (Leucadia,
// revision 1) whose firmware reports running a few status polls after the
// CPU is released, and whose die sits at about 40°C.
func NewLeucadia() *Sim {
	sim := NewSim()
	sim.mem[sreFamily] = 0x3710
	sim.mem[sreDeviceID] = 0x0001_3710
	sim.Emulate(3, 0x1000, 124500)
	return sim
}

// NewWarmLeucadia returns a simulator modelling a MXL3710 whose firmware
// is already running, as after a warm reboot of the host.
func NewWarmLeucadia() *Sim {
	sim := NewLeucadia()
	sim.mem[fwStatusReg] = fwLoaded | fwRunning
	return sim
}

// SetPHYID sets the identifier reported in MII registers 2 and 3.
func (sim *Sim) SetPHYID(id uint32) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.id = id
}

// Set stores v at the logical address addr.
func (sim *Sim) Set(addr, v uint32) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.mem[addr] = v
}

// Get returns the value stored at the logical address addr.
func (sim *Sim) Get(addr uint32) uint32 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.mem[addr]
}

// SetPaged stores v in the MII register reg of page.
func (sim *Sim) SetPaged(page, reg, v uint16) {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	sim.pageRegs(page)[reg] = v
}

// Paged returns the MII register reg of page.
func (sim *Sim) Paged(page, reg uint16) uint16 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.pageRegs(page)[reg]
}

// Page returns the currently selected page.
func (sim *Sim) Page() uint16 {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.page
}

// Reads returns the number of logical reads served so far.
func (sim *Sim) Reads() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.reads
}

// Writes returns a copy of the logical writes committed so far.
func (sim *Sim) Writes() []Access {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return append([]Access(nil), sim.writes...)
}

// Ops returns the number of logical reads and writes seen so far.
func (sim *Sim) Ops() int {
	sim.mu.Lock()
	defer sim.mu.Unlock()
	return sim.reads + len(sim.writes)
}

func (sim *Sim) pageRegs(page uint16) map[uint16]uint16 {
	p, ok := sim.pages[page]
	if !ok {
		p = make(map[uint16]uint16)
		sim.pages[page] = p
	}
	return p
}

// Read implements phy.MDIOBus.
func (sim *Sim) Read(phyAddr, devAddr uint8, reg uint16) (uint16, error) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if sim.MDIOHook != nil {
		if err := sim.MDIOHook(false, reg); err != nil {
			return 0, err
		}
	}
	if devAddr != 0 {
		return 0, fmt.Errorf("mdio: sim: clause-45 access not supported (dev=%d)", devAddr)
	}

	switch {
	case reg == regPage:
		return sim.page, nil
	case sim.page != 0:
		return sim.pageRegs(sim.page)[reg], nil
	}

	switch reg {
	case regPhyID1:
		return uint16(sim.id >> 16), nil
	case regPhyID2:
		return uint16(sim.id), nil
	case regAddrLoDHi:
		if sim.ReadHook != nil {
			if err := sim.ReadHook(sim.mem, sim.addr); err != nil {
				return 0, err
			}
		}
		sim.reads++
		sim.latch = sim.mem[sim.addr]
		return uint16(sim.latch >> 16), nil
	case regDataLo:
		return uint16(sim.latch), nil
	default:
		return sim.pageRegs(0)[reg], nil
	}
}

// Write implements phy.MDIOBus.
func (sim *Sim) Write(phyAddr, devAddr uint8, reg, v uint16) error {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	if sim.MDIOHook != nil {
		if err := sim.MDIOHook(true, reg); err != nil {
			return err
		}
	}
	if devAddr != 0 {
		return fmt.Errorf("mdio: sim: clause-45 access not supported (dev=%d)", devAddr)
	}

	switch {
	case reg == regPage:
		sim.page = v
		return nil
	case sim.page != 0:
		sim.pageRegs(sim.page)[reg] = v
		return nil
	}

	switch reg {
	case regAddrHi:
		sim.hi = v
		sim.phase = phaseAddrLo
	case regAddrLoDHi:
		if sim.phase == phaseAddrLo {
			sim.addr = uint32(sim.hi)<<16 | uint32(v)
			sim.phase = phaseIdle
			return nil
		}
		sim.dhi = v
		sim.phase = phaseDataLo
	case regDataLo:
		if sim.phase != phaseDataLo {
			return fmt.Errorf("mdio: sim: data-low write without data-high (addr=0x%08x)", sim.addr)
		}
		sim.phase = phaseIdle
		val := uint32(sim.dhi)<<16 | uint32(v)
		if sim.WriteHook != nil {
			if err := sim.WriteHook(sim.mem, sim.addr, val); err != nil {
				return err
			}
		}
		sim.mem[sim.addr] = val
		sim.writes = append(sim.writes, Access{Write: true, Addr: sim.addr, Value: val})
	default:
		sim.pageRegs(0)[reg] = v
	}
	return nil
}

// Emulate installs hooks modelling a cold MXL371x coprocessor: holding the
// CPU in reset clears the firmware status, releasing it reports the running
// bit after boot status polls, and each armed temperature measurement
// returns a sample delta higher than the previous one.
func (sim *Sim) Emulate(boot int, t0, delta uint32) {
	sim.mu.Lock()
	defer sim.mu.Unlock()

	var (
		countdown = -1
		sample    = t0
		armed     = false
	)
	sim.WriteHook = func(mem map[uint32]uint32, addr, v uint32) error {
		switch addr {
		case cpuCSR:
			if v != 0 {
				mem[fwStatusReg] = 0
				countdown = -1
				return nil
			}
			countdown = boot
		case tsensCtrl:
			if v&0x100 != 0 {
				armed = true
			}
		}
		return nil
	}
	sim.ReadHook = func(mem map[uint32]uint32, addr uint32) error {
		switch addr {
		case fwStatusReg:
			switch {
			case countdown > 0:
				countdown--
				mem[addr] = fwLoaded
			case countdown == 0:
				mem[addr] = fwLoaded | fwRunning
			}
		case tsensData:
			if armed {
				mem[addr] = sample
				sample += delta
				armed = false
			}
		}
		return nil
	}
}
