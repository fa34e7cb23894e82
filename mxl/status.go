// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"fmt"

	"github.com/go-lpc/moca/mxl/internal/regs"
)

// LinkState is the MoCA link state.
type LinkState uint8

const (
	LinkDown     LinkState = regs.LINK_DOWN
	LinkUp       LinkState = regs.LINK_UP
	LinkScanning LinkState = regs.LINK_SCANNING
)

func (s LinkState) String() string {
	switch s {
	case LinkUp:
		return "up"
	case LinkScanning:
		return "scanning"
	default:
		return "down"
	}
}

// NetworkState is the MoCA network state.
type NetworkState uint8

const (
	NetIdle      NetworkState = regs.NET_STATE_IDLE
	NetSearching NetworkState = regs.NET_STATE_SEARCHING
	NetNetwork   NetworkState = regs.NET_STATE_NETWORK_MODE
)

func (s NetworkState) String() string {
	switch s {
	case NetNetwork:
		return "network"
	case NetSearching:
		return "searching"
	default:
		return "idle"
	}
}

// Version is a MoCA protocol version: major in the high nibble, minor in
// the low nibble (0x25 is MoCA 2.5).
type Version uint8

func (v Version) Major() uint8 { return uint8(v) >> 4 }
func (v Version) Minor() uint8 { return uint8(v) & 0xf }

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
}

// LinkStatus is the last known MoCA link state.
// Its fields are only meaningful while the firmware is running.
type LinkStatus struct {
	Link        LinkState
	Version     Version
	PHYRate     uint32 // Mbps
	NodeID      uint8
	NCNodeID    uint8 // network coordinator node id
	LOF         uint32 // last operating frequency, MHz
	Network     NetworkState
	ActiveNodes uint32 // bitmask of active nodes, 16 bits
	Security    bool
}

// batch accumulates the failures of a best-effort register batch.
type batch struct {
	bus    *Bus
	failed []RegError
}

func (b *batch) read32(name string, addr uint32, set func(v uint32)) {
	v, err := b.bus.Read32(addr)
	if err != nil {
		b.failed = append(b.failed, RegError{Name: name, Addr: addr, Err: err})
		return
	}
	set(v)
}

func (b *batch) read64(name string, addr uint32, set func(v uint64)) {
	v, err := b.bus.Read64(addr)
	if err != nil {
		b.failed = append(b.failed, RegError{Name: name, Addr: addr, Err: err})
		return
	}
	set(v)
}

func (b *batch) err(op string) error {
	if len(b.failed) == 0 {
		return nil
	}
	return &PartialReadError{Op: op, Failed: b.failed}
}

// refreshStatus reads the status block into st.
// Every register is attempted; fields whose register could not be read
// keep their previous value and are reported in a *PartialReadError.
func refreshStatus(bus *Bus, st *LinkStatus) error {
	b := batch{bus: bus}
	b.read32("link-status", regs.LINK_STATUS_REG, func(v uint32) {
		st.Link = LinkState(v & regs.LINK_STATUS_MASK)
	})
	b.read32("phy-rate", regs.LINK_PHY_RATE_REG, func(v uint32) {
		st.PHYRate = v & 0xffff
	})
	b.read32("moca-version", regs.LINK_MOCA_VER_REG, func(v uint32) {
		st.Version = Version(v & 0xff)
	})
	b.read32("node-id", regs.LINK_NODE_ID_REG, func(v uint32) {
		st.NodeID = uint8(v & 0xff)
	})
	b.read32("nc-node-id", regs.LINK_NC_NODE_ID_REG, func(v uint32) {
		st.NCNodeID = uint8(v & 0xff)
	})
	b.read32("lof", regs.LINK_LOF_REG, func(v uint32) {
		st.LOF = v
	})
	b.read32("network-state", regs.LINK_NETWORK_STATE_REG, func(v uint32) {
		st.Network = NetworkState(v & 0xff)
	})
	b.read32("active-nodes", regs.LINK_ACTIVE_NODES_REG, func(v uint32) {
		st.ActiveNodes = v & 0xffff
	})
	b.read32("security", regs.SECURITY_STATUS_REG, func(v uint32) {
		st.Security = v&regs.SECURITY_ENABLED != 0
	})
	return b.err("status")
}
