// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"fmt"
	"sync"

	"github.com/go-lpc/moca/mxl/internal/regs"
	"github.com/soypat/lneto/phy"
)

// Bus provides 32-bit and 64-bit register access to the coprocessor
// through the narrow 16-bit MDIO window.
//
// Every composite operation holds the bus lock from the address write to
// the last data access, so operations issued from different goroutines
// never interleave their sub-transactions.
type Bus struct {
	mu   sync.Mutex
	mdio phy.MDIOBus
	addr uint8 // PHY address on the MDIO bus
}

// NewBus returns a register bus talking to the PHY at phyAddr.
func NewBus(mdio phy.MDIOBus, phyAddr uint8) *Bus {
	return &Bus{mdio: mdio, addr: phyAddr}
}

func (bus *Bus) mdioRead(reg uint16) (uint16, error) {
	return bus.mdio.Read(bus.addr, 0, reg)
}

func (bus *Bus) mdioWrite(reg, v uint16) error {
	return bus.mdio.Write(bus.addr, 0, reg, v)
}

func (bus *Bus) selectAddr(addr uint32) error {
	err := bus.mdioWrite(regs.MDIO_ADDR_HI, uint16(addr>>16))
	if err != nil {
		return err
	}
	return bus.mdioWrite(regs.MDIO_ADDR_LO, uint16(addr))
}

// Read32 reads the 32-bit register at addr.
func (bus *Bus) Read32(addr uint32) (uint32, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	err := bus.selectAddr(addr)
	if err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}

	hi, err := bus.mdioRead(regs.MDIO_DATA_HI)
	if err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}

	lo, err := bus.mdioRead(regs.MDIO_DATA_LO)
	if err != nil {
		return 0, &BusError{Op: "read", Addr: addr, Err: err}
	}

	return uint32(hi)<<16 | uint32(lo), nil
}

// Write32 writes v to the 32-bit register at addr.
func (bus *Bus) Write32(addr, v uint32) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	err := bus.selectAddr(addr)
	if err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}

	err = bus.mdioWrite(regs.MDIO_DATA_HI, uint16(v>>16))
	if err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}

	err = bus.mdioWrite(regs.MDIO_DATA_LO, uint16(v))
	if err != nil {
		return &BusError{Op: "write", Addr: addr, Err: err}
	}

	return nil
}

// Read64 reads a 64-bit counter as two 32-bit reads, low word at addr
// first then high word at addr+4.
// The two halves are not read atomically: a counter incremented between
// the two reads may yield a torn value.
func (bus *Bus) Read64(addr uint32) (uint64, error) {
	lo, err := bus.Read32(addr)
	if err != nil {
		return 0, err
	}

	hi, err := bus.Read32(addr + 4)
	if err != nil {
		return 0, err
	}

	return uint64(hi)<<32 | uint64(lo), nil
}

// ReadPaged reads the 16-bit MII register reg on page, restoring the
// previously selected page afterwards.
func (bus *Bus) ReadPaged(page, reg uint16) (uint16, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	var v uint16
	err := bus.paged(page, func() error {
		var err error
		v, err = bus.mdioRead(reg)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mxl: could not read paged register 0x%x:0x%x: %w", page, reg, err)
	}
	return v, nil
}

// ModifyPaged clears mask and sets set in the 16-bit MII register reg on
// page, restoring the previously selected page afterwards.
func (bus *Bus) ModifyPaged(page, reg, mask, set uint16) error {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	err := bus.paged(page, func() error {
		v, err := bus.mdioRead(reg)
		if err != nil {
			return err
		}
		return bus.mdioWrite(reg, (v&^mask)|set)
	})
	if err != nil {
		return fmt.Errorf("mxl: could not modify paged register 0x%x:0x%x: %w", page, reg, err)
	}
	return nil
}

func (bus *Bus) paged(page uint16, f func() error) error {
	old, err := bus.mdioRead(regs.PAGE_SELECT)
	if err != nil {
		return fmt.Errorf("could not read page: %w", err)
	}

	err = bus.mdioWrite(regs.PAGE_SELECT, page)
	if err != nil {
		return fmt.Errorf("could not select page: %w", err)
	}

	err = f()

	// always try to restore the page, report the first error.
	if e := bus.mdioWrite(regs.PAGE_SELECT, old); e != nil && err == nil {
		err = fmt.Errorf("could not restore page 0x%x: %w", old, e)
	}
	return err
}

// PHYID reads the 32-bit PHY identifier from MII registers 2 and 3.
func (bus *Bus) PHYID() (uint32, error) {
	bus.mu.Lock()
	defer bus.mu.Unlock()

	hi, err := bus.mdioRead(regs.MII_PHYID1)
	if err != nil {
		return 0, fmt.Errorf("mxl: could not read PHY ID1: %w", err)
	}
	lo, err := bus.mdioRead(regs.MII_PHYID2)
	if err != nil {
		return 0, fmt.Errorf("mxl: could not read PHY ID2: %w", err)
	}
	return uint32(hi)<<16 | uint32(lo), nil
}
