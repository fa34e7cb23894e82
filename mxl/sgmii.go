// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"fmt"
	"strings"

	"github.com/go-lpc/moca/mxl/internal/regs"
)

// Mode is the host-side interface mode of the coprocessor.
type Mode uint8

const (
	ModeAuto      Mode = 0
	ModeSGMII     Mode = regs.SGMII_MODE_SGMII
	ModeHSGMII    Mode = regs.SGMII_MODE_HSGMII
	Mode1000BaseX Mode = regs.SGMII_MODE_1000BASE_X
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeSGMII:
		return "sgmii"
	case ModeHSGMII:
		return "2500base-x"
	case Mode1000BaseX:
		return "1000base-x"
	default:
		return fmt.Sprintf("Mode(0x%02x)", uint8(m))
	}
}

// Speed returns the line rate of the mode in Mbps, 0 for ModeAuto.
func (m Mode) Speed() int {
	switch m {
	case ModeSGMII, Mode1000BaseX:
		return 1000
	case ModeHSGMII:
		return 2500
	default:
		return 0
	}
}

func (m Mode) valid() bool {
	switch m {
	case ModeSGMII, ModeHSGMII, Mode1000BaseX:
		return true
	}
	return false
}

// ParseMode parses an interface mode name.
// "hsgmii" and "2500" are accepted for the 2500 Mbps mode, "1000" for SGMII.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "sgmii", "1000":
		return ModeSGMII, nil
	case "hsgmii", "2500base-x", "2500":
		return ModeHSGMII, nil
	case "1000base-x":
		return Mode1000BaseX, nil
	}
	return ModeAuto, fmt.Errorf("mxl: unknown interface mode %q", s)
}

// readMode reads the interface mode currently programmed in hardware.
// An unknown hardware value yields ModeAuto.
func readMode(bus *Bus) (Mode, error) {
	v, err := bus.ReadPaged(regs.SGMII_CTRL_PAGE, regs.SGMII_CTRL_REG)
	if err != nil {
		return ModeAuto, err
	}
	m := Mode(v & regs.SGMII_MODE_MASK)
	if !m.valid() {
		return ModeAuto, nil
	}
	return m, nil
}

// resolveMode picks the interface mode: the configured one, then the one
// detected in hardware, then SGMII.
func resolveMode(configured, detected Mode) Mode {
	switch {
	case configured.valid():
		return configured
	case detected.valid():
		return detected
	default:
		return ModeSGMII
	}
}

// writeMode programs m into the interface mode register.
func writeMode(bus *Bus, m Mode) error {
	if !m.valid() {
		return fmt.Errorf("mxl: invalid interface mode %v", m)
	}
	return bus.ModifyPaged(
		regs.SGMII_CTRL_PAGE, regs.SGMII_CTRL_REG,
		regs.SGMII_MODE_MASK, uint16(m),
	)
}
