// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the MXL371x MoCA coprocessor.
package regs // import "github.com/go-lpc/moca/mxl/internal/regs"

// PHY identifiers.
const (
	OUI      = 0x0243e000
	OUI_MASK = 0xfffff000

	PHY_ID_MXL3710 = 0x02434770
	PHY_ID_MXL3711 = 0x02434771
)

// Clause-22 MII registers.
const (
	MII_BMCR   = 0x00
	MII_BMSR   = 0x01
	MII_PHYID1 = 0x02
	MII_PHYID2 = 0x03

	PAGE_SELECT = 0x1f
)

// Indirect access window.
//
// MDIO_ADDR_LO and MDIO_DATA_HI share register 0x0f: the coprocessor
// latches the second write after MDIO_ADDR_HI as the low address half.
const (
	MDIO_ADDR_HI = 0x0e
	MDIO_ADDR_LO = MDIO_ADDR_HI + 1
	MDIO_DATA_HI = 0x0f
	MDIO_DATA_LO = MDIO_DATA_HI + 1
)

// System resource engine.
const (
	SRE_PRODUCT_FAMILY_ID  = 0x08200000
	SRE_DEVICE_ID          = 0x08200004
	SRE_REVISION_ID_OFFSET = 16
	SRE_CPU_SRC_SEL_CSR    = 0x08200010

	CPU_HOLD_RESET = 0x8
	CPU_RELEASE    = 0x0
)

// Temperature sensor.
const (
	TSENS_CTRL_REG   = 0x08200200
	TSENS_DATA_REG   = 0x08200204
	RADIO_TSENS_REG1 = 0x0c14c110
	RADIO_TSENS_REG2 = 0x0c14c100
	RADIO_TSENS_REG3 = 0x0c14c108

	TSENS_COEFF_A  = 1338680
	TSENS_COEFF_B  = 277770
	TSENS_RSSI_MAX = 524288
)

// Firmware.
const (
	FW_BASE_ADDR  = 0x00000000
	FW_STATUS_REG = 0x08200100
	FW_LOADED     = 1 << 0
	FW_RUNNING    = 1 << 1
	FW_ERROR      = 1 << 2

	FW_MAX_SIZE = 4 * 1024 * 1024

	FW_LEUCADIA = "ccpu.elf.leucadia"
	FW_CARDIFF  = "ccpu.elf.cardiff"
)

// SGMII/HSGMII configuration (paged).
const (
	SGMII_CTRL_PAGE = 0xa000
	SGMII_CTRL_REG  = 0x10
	SGMII_MODE_MASK = 0xff

	SGMII_MODE_SGMII      = 0x02
	SGMII_MODE_HSGMII     = 0x03
	SGMII_MODE_1000BASE_X = 0x04
)

// MoCA statistics (64-bit counters, low word first).
const (
	STATS_BASE          = 0x0c000000
	STATS_TX_TOTAL_PKTS = STATS_BASE + 0x00
	STATS_TX_TOTAL_BYTE = STATS_BASE + 0x08
	STATS_TX_DROP_PKTS  = STATS_BASE + 0x10
	STATS_TX_BCAST_PKTS = STATS_BASE + 0x18
	STATS_TX_MCAST_PKTS = STATS_BASE + 0x20
	STATS_RX_TOTAL_PKTS = STATS_BASE + 0x28
	STATS_RX_TOTAL_BYTE = STATS_BASE + 0x30
	STATS_RX_DROP_PKTS  = STATS_BASE + 0x38
	STATS_RX_ERR_PKTS   = STATS_BASE + 0x40
)

// MoCA link status.
const (
	LINK_STATUS_REG        = 0x0c100000
	LINK_STATUS_MASK       = 0x07
	LINK_PHY_RATE_REG      = 0x0c100004
	LINK_MOCA_VER_REG      = 0x0c100008
	LINK_NODE_ID_REG       = 0x0c10000c
	LINK_NC_NODE_ID_REG    = 0x0c100010
	LINK_LOF_REG           = 0x0c100014
	LINK_NETWORK_STATE_REG = 0x0c100018
	LINK_ACTIVE_NODES_REG  = 0x0c10001c

	MAC_ADDR_HI = 0x0c100020
	MAC_ADDR_LO = 0x0c100024

	SECURITY_STATUS_REG = 0x0c100200
	SECURITY_ENABLED    = 1 << 0
)

// MoCA link states.
const (
	LINK_DOWN     = 0
	LINK_UP       = 1
	LINK_SCANNING = 2
)

// MoCA network states.
const (
	NET_STATE_IDLE         = 0
	NET_STATE_SEARCHING    = 1
	NET_STATE_NETWORK_MODE = 2
)
