// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mdio holds transports for the 16-bit management bus used to
// reach MoCA coprocessors: a Linux MII ioctl transport, an SMBus bridge
// and an in-memory simulator.
package mdio // import "github.com/go-lpc/moca/mdio"

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/soypat/lneto/phy"
)

var (
	_ phy.MDIOBus = (*Sim)(nil)
	_ phy.MDIOBus = (*Ioctl)(nil)
	_ phy.MDIOBus = (*SMBus)(nil)
	_ phy.MDIOBus = (*phy.MDIOBitBang)(nil)
)

// Open opens the transport described by uri:
//
//   - sim:             in-memory simulator of a cold MXL3710
//   - sim:warm         in-memory simulator of a MXL3710 with running firmware
//   - mii:<iface>      Linux MII ioctls on network interface iface
//   - smbus:<bus>:<addr> SMBus bridge on /dev/i2c-<bus> at 7-bit address addr
func Open(uri string) (phy.MDIOBus, func() error, error) {
	kind, arg, _ := strings.Cut(uri, ":")
	switch kind {
	case "sim":
		var sim *Sim
		switch arg {
		case "":
			sim = NewLeucadia()
		case "warm":
			sim = NewWarmLeucadia()
		default:
			return nil, nil, fmt.Errorf("mdio: invalid simulator uri %q", uri)
		}
		return sim, func() error { return nil }, nil
	case "mii":
		if arg == "" {
			return nil, nil, fmt.Errorf("mdio: missing interface name in %q", uri)
		}
		bus, err := OpenIoctl(arg)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case "smbus":
		sbus, saddr, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, nil, fmt.Errorf("mdio: invalid smbus uri %q (want smbus:<bus>:<addr>)", uri)
		}
		n, err := strconv.Atoi(sbus)
		if err != nil {
			return nil, nil, fmt.Errorf("mdio: could not parse smbus bus %q: %w", sbus, err)
		}
		a, err := strconv.ParseUint(saddr, 0, 7)
		if err != nil {
			return nil, nil, fmt.Errorf("mdio: could not parse smbus address %q: %w", saddr, err)
		}
		bus, err := OpenSMBus(n, uint8(a))
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	default:
		return nil, nil, fmt.Errorf("mdio: unknown transport %q", uri)
	}
}
