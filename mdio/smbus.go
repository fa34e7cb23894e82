// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mdio

import (
	"fmt"
	"math/bits"

	"github.com/go-daq/smbus"
)

// SMBus accesses clause-22 PHY registers through an I2C-to-MDIO bridge,
// as found on copper SFP modules: MII register n is the 16-bit big-endian
// word at I2C command n of the bridge address.
type SMBus struct {
	conn *smbus.Conn
	addr uint8
}

// OpenSMBus opens the bridge at 7-bit address addr on /dev/i2c-<bus>.
func OpenSMBus(bus int, addr uint8) (*SMBus, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("mdio: could not open smbus %d addr=0x%x: %w", bus, addr, err)
	}
	return &SMBus{conn: conn, addr: addr}, nil
}

// Close closes the underlying SMBus connection.
func (bus *SMBus) Close() error {
	return bus.conn.Close()
}

func checkC22(devAddr uint8, reg uint16) error {
	if devAddr != 0 {
		return fmt.Errorf("mdio: smbus bridge is clause-22 only (dev=%d)", devAddr)
	}
	if reg > 0xff {
		return fmt.Errorf("mdio: smbus bridge register 0x%x out of range", reg)
	}
	return nil
}

// Read implements phy.MDIOBus. phyAddr is implied by the bridge address.
func (bus *SMBus) Read(phyAddr, devAddr uint8, reg uint16) (uint16, error) {
	if err := checkC22(devAddr, reg); err != nil {
		return 0, err
	}
	v, err := bus.conn.ReadWord(bus.addr, uint8(reg))
	if err != nil {
		return 0, fmt.Errorf("mdio: could not read smbus reg=0x%x: %w", reg, err)
	}
	return fromWire(v), nil
}

// Write implements phy.MDIOBus. phyAddr is implied by the bridge address.
func (bus *SMBus) Write(phyAddr, devAddr uint8, reg, v uint16) error {
	if err := checkC22(devAddr, reg); err != nil {
		return err
	}
	err := bus.conn.WriteWord(bus.addr, uint8(reg), toWire(v))
	if err != nil {
		return fmt.Errorf("mdio: could not write smbus reg=0x%x: %w", reg, err)
	}
	return nil
}

// SMBus words travel little-endian, the bridge serves MII words big-endian.
func fromWire(v uint16) uint16 { return bits.ReverseBytes16(v) }
func toWire(v uint16) uint16   { return bits.ReverseBytes16(v) }
