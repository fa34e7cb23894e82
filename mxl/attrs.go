// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"fmt"
	"strconv"
)

// AttrTemp is the name of the live temperature attribute.
const AttrTemp = "temp1_input"

type attr struct {
	name string
	show func(dev *Device) (string, error)
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// snapshot returns the show function of an attribute served from the last
// refreshed snapshots.
func snapshot(f func(dev *Device) string) func(dev *Device) (string, error) {
	return func(dev *Device) (string, error) { return f(dev), nil }
}

func statAttr(name string) attr {
	return attr{name, snapshot(func(dev *Device) string {
		st := dev.Stats()
		for _, c := range st.counters() {
			if c.name == name {
				return strconv.FormatUint(*c.ptr, 10)
			}
		}
		return ""
	})}
}

var attrs = []attr{
	{"moca_link_status", snapshot(func(dev *Device) string { return dev.Status().Link.String() })},
	{"moca_version", snapshot(func(dev *Device) string { return dev.Status().Version.String() })},
	{"moca_phy_rate", snapshot(func(dev *Device) string { return strconv.Itoa(int(dev.Status().PHYRate)) })},
	{"moca_node_id", snapshot(func(dev *Device) string { return strconv.Itoa(int(dev.Status().NodeID)) })},
	{"moca_nc_node_id", snapshot(func(dev *Device) string { return strconv.Itoa(int(dev.Status().NCNodeID)) })},
	{"moca_lof", snapshot(func(dev *Device) string { return strconv.Itoa(int(dev.Status().LOF)) })},
	{"moca_network_state", snapshot(func(dev *Device) string { return dev.Status().Network.String() })},
	{"moca_active_nodes", snapshot(func(dev *Device) string { return fmt.Sprintf("0x%08x", dev.Status().ActiveNodes) })},
	{"moca_security_enabled", snapshot(func(dev *Device) string { return strconv.Itoa(b2i(dev.Status().Security)) })},
	{"moca_chip_type", snapshot(func(dev *Device) string { return dev.Identity().Chip.String() })},
	{"moca_fw_version", snapshot(func(dev *Device) string { return dev.Identity().Version() })},
	{"moca_guid", func(dev *Device) (string, error) {
		g, err := dev.ReadGUID()
		if err != nil {
			return "", err
		}
		return g.String(), nil
	}},
	statAttr("tx_packets"),
	statAttr("tx_bytes"),
	statAttr("tx_dropped"),
	statAttr("tx_broadcast"),
	statAttr("tx_multicast"),
	statAttr("rx_packets"),
	statAttr("rx_bytes"),
	statAttr("rx_dropped"),
	statAttr("rx_errors"),
}

// Attrs returns the names of the text attributes of a device, in display
// order. The live temperature attribute comes last.
func Attrs() []string {
	names := make([]string, 0, len(attrs)+1)
	for _, a := range attrs {
		names = append(names, a.name)
	}
	return append(names, AttrTemp)
}

// Attr returns the text value of the named attribute.
// The temperature and GUID attributes are read from the coprocessor, every
// other attribute is served from the last refreshed snapshots.
func (dev *Device) Attr(ctx context.Context, name string) (string, error) {
	if name == AttrTemp {
		v, err := dev.Temperature(ctx)
		if err != nil {
			return "", err
		}
		return strconv.Itoa(int(v)), nil
	}

	for _, a := range attrs {
		if a.name == name {
			return a.show(dev)
		}
	}
	return "", fmt.Errorf("mxl: unknown attribute %q", name)
}

// Store writes the text value of a writable attribute.
// Only moca_guid is writable: malformed values are rejected with
// ErrMalformedGUID, the zero GUID with ErrZeroGUID.
func (dev *Device) Store(name, value string) error {
	switch name {
	case "moca_guid":
		g, err := ParseGUID(value)
		if err != nil {
			return err
		}
		return dev.SetGUID(g)
	}

	for _, a := range attrs {
		if a.name == name {
			return fmt.Errorf("mxl: attribute %q is read-only", name)
		}
	}
	if name == AttrTemp {
		return fmt.Errorf("mxl: attribute %q is read-only", name)
	}
	return fmt.Errorf("mxl: unknown attribute %q", name)
}
