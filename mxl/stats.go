// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"github.com/go-lpc/moca/mxl/internal/regs"
)

// Stats holds the MoCA traffic counters.
// Counters restart from zero whenever the firmware is reloaded.
type Stats struct {
	TxPackets   uint64
	TxBytes     uint64
	TxDropped   uint64
	TxBroadcast uint64
	TxMulticast uint64
	RxPackets   uint64
	RxBytes     uint64
	RxDropped   uint64
	RxErrors    uint64
}

// PHYStats is the subset of counters exported as generic PHY statistics.
type PHYStats struct {
	RxPackets uint64
	RxBytes   uint64
	RxErrors  uint64
	TxPackets uint64
	TxBytes   uint64
	TxErrors  uint64
}

// PHYStats projects the MoCA counters onto generic PHY statistics.
// Dropped transmissions are reported as transmit errors.
func (st Stats) PHYStats() PHYStats {
	return PHYStats{
		RxPackets: st.RxPackets,
		RxBytes:   st.RxBytes,
		RxErrors:  st.RxErrors,
		TxPackets: st.TxPackets,
		TxBytes:   st.TxBytes,
		TxErrors:  st.TxDropped,
	}
}

// counters returns the name/value pairs of all counters, in register order.
func (st *Stats) counters() []struct {
	name string
	addr uint32
	ptr  *uint64
} {
	return []struct {
		name string
		addr uint32
		ptr  *uint64
	}{
		{"tx_packets", regs.STATS_TX_TOTAL_PKTS, &st.TxPackets},
		{"tx_bytes", regs.STATS_TX_TOTAL_BYTE, &st.TxBytes},
		{"tx_dropped", regs.STATS_TX_DROP_PKTS, &st.TxDropped},
		{"tx_broadcast", regs.STATS_TX_BCAST_PKTS, &st.TxBroadcast},
		{"tx_multicast", regs.STATS_TX_MCAST_PKTS, &st.TxMulticast},
		{"rx_packets", regs.STATS_RX_TOTAL_PKTS, &st.RxPackets},
		{"rx_bytes", regs.STATS_RX_TOTAL_BYTE, &st.RxBytes},
		{"rx_dropped", regs.STATS_RX_DROP_PKTS, &st.RxDropped},
		{"rx_errors", regs.STATS_RX_ERR_PKTS, &st.RxErrors},
	}
}

// refreshStats reads the nine 64-bit counters into st, best-effort.
func refreshStats(bus *Bus, st *Stats) error {
	b := batch{bus: bus}
	for _, c := range st.counters() {
		ptr := c.ptr
		b.read64(c.name, c.addr, func(v uint64) { *ptr = v })
	}
	return b.err("statistics")
}
