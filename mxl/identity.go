// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"fmt"

	"github.com/go-lpc/moca/mxl/internal/regs"
)

// Chip is the MoCA SoC family of a coprocessor.
type Chip uint8

const (
	Leucadia Chip = iota
	Cardiff
)

func chipFrom(devID uint32) Chip {
	switch devID {
	case 0x3710, 0x3711:
		return Leucadia
	default:
		return Cardiff
	}
}

// Firmware returns the name of the firmware image for the chip family.
func (c Chip) Firmware() string {
	switch c {
	case Leucadia:
		return regs.FW_LEUCADIA
	default:
		return regs.FW_CARDIFF
	}
}

func (c Chip) String() string {
	switch c {
	case Leucadia:
		return "leucadia"
	default:
		return "cardiff"
	}
}

func (c Chip) title() string {
	switch c {
	case Leucadia:
		return "Leucadia"
	default:
		return "Cardiff"
	}
}

// Identity describes the coprocessor as read once at attach time.
type Identity struct {
	Family   uint32 // product family code
	DeviceID uint32
	Revision uint32
	Chip     Chip
}

// Version returns the human readable SoC version string.
func (id Identity) Version() string {
	return fmt.Sprintf("%s Device 0x%04x Rev 0x%04x", id.Chip.title(), id.DeviceID, id.Revision)
}

func readIdentity(bus *Bus) (Identity, error) {
	var id Identity

	v, err := bus.Read32(regs.SRE_PRODUCT_FAMILY_ID)
	if err != nil {
		return id, fmt.Errorf("mxl: could not read product family: %w", err)
	}
	id.Family = v

	v, err = bus.Read32(regs.SRE_DEVICE_ID)
	if err != nil {
		return id, fmt.Errorf("mxl: could not read device id: %w", err)
	}
	id.DeviceID = v & 0xffff
	id.Revision = (v >> regs.SRE_REVISION_ID_OFFSET) & 0xffff
	id.Chip = chipFrom(id.DeviceID)

	return id, nil
}

// Model returns the name of the PHY model matching the 32-bit PHY
// identifier phyID, and whether phyID belongs to the MXL371x family.
func Model(phyID uint32) (string, bool) {
	switch {
	case phyID == regs.PHY_ID_MXL3710:
		return "MaxLinear MXL3710 MoCA 2.5", true
	case phyID == regs.PHY_ID_MXL3711:
		return "MaxLinear MXL3711 MoCA 2.5", true
	case phyID&regs.OUI_MASK == regs.OUI:
		return "MaxLinear MXL371x MoCA 2.5", true
	}
	return "", false
}

// Probe reads the PHY identifier behind bus and returns the matching model.
func Probe(bus *Bus) (string, error) {
	id, err := bus.PHYID()
	if err != nil {
		return "", err
	}
	name, ok := Model(id)
	if !ok {
		return "", fmt.Errorf("mxl: unsupported PHY id 0x%08x", id)
	}
	return name, nil
}
