// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/moca/mxl/internal/regs"
)

func TestAttrs(t *testing.T) {
	sim := newWarm()
	setStatus(sim)
	sim.Set(regs.STATS_TX_BCAST_PKTS, 12)
	sim.Set(regs.MAC_ADDR_HI, 0x02243e01)
	sim.Set(regs.MAC_ADDR_LO, 0x02030000)

	dev := newTestDevice(sim, WithRefreshInterval(time.Hour))
	err := dev.Attach(context.Background())
	if err != nil {
		t.Fatalf("could not attach: %+v", err)
	}
	defer dev.Close()

	err = dev.refresh()
	if err != nil {
		t.Fatalf("could not refresh: %+v", err)
	}

	for _, tc := range []struct {
		name string
		want string
	}{
		{"moca_link_status", "up"},
		{"moca_version", "2.5"},
		{"moca_phy_rate", "2700"},
		{"moca_node_id", "3"},
		{"moca_nc_node_id", "1"},
		{"moca_lof", "1150"},
		{"moca_network_state", "network"},
		{"moca_active_nodes", "0x0000000b"},
		{"moca_security_enabled", "1"},
		{"moca_chip_type", "leucadia"},
		{"moca_fw_version", "Leucadia Device 0x3710 Rev 0x0001"},
		{"moca_guid", "02:24:3e:01:02:03"},
		{"tx_broadcast", "12"},
		{"rx_errors", "0"},
		{AttrTemp, "-275217"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := dev.Attr(context.Background(), tc.name)
			if err != nil {
				t.Fatalf("could not read attribute: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid value: got=%q, want=%q", got, tc.want)
			}
		})
	}

	_, err = dev.Attr(context.Background(), "moca_nope")
	if err == nil {
		t.Fatalf("expected an error")
	}

	names := Attrs()
	if got, want := len(names), 12+9+1; got != want {
		t.Fatalf("invalid number of attributes: got=%d, want=%d", got, want)
	}
}

func TestStore(t *testing.T) {
	sim := newWarm()
	dev := newTestDevice(sim, WithRefreshInterval(time.Hour))
	err := dev.Attach(context.Background())
	if err != nil {
		t.Fatalf("could not attach: %+v", err)
	}
	defer dev.Close()

	for _, tc := range []struct {
		name  string
		value string
		err   error
		msg   string
	}{
		{name: "moca_guid", value: "02:24:3e:aa:bb:cc"},
		{name: "moca_guid", value: "02:24:3e:aa:bb:cc\n"},
		{name: "moca_guid", value: "00:00:00:00:00:00", err: ErrZeroGUID},
		{name: "moca_guid", value: "02:24:3e", err: ErrMalformedGUID},
		{name: "moca_lof", value: "1", msg: "read-only"},
		{name: AttrTemp, value: "1", msg: "read-only"},
		{name: "moca_nope", value: "1", msg: "unknown"},
	} {
		t.Run(tc.name+"="+strings.TrimSpace(tc.value), func(t *testing.T) {
			err := dev.Store(tc.name, tc.value)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
			case tc.msg != "":
				if err == nil || !strings.Contains(err.Error(), tc.msg) {
					t.Fatalf("invalid error: got=%+v, want %q", err, tc.msg)
				}
			case err != nil:
				t.Fatalf("could not store: %+v", err)
			}
		})
	}

	if got, want := dev.GUID().String(), "02:24:3e:aa:bb:cc"; got != want {
		t.Fatalf("invalid GUID: got=%q, want=%q", got, want)
	}
}

func TestServer(t *testing.T) {
	sim := newWarm()
	setStatus(sim)
	sim.Set(0x1000, 0xcafe)

	dev := newTestDevice(sim, WithRefreshInterval(time.Hour))
	err := dev.Attach(context.Background())
	if err != nil {
		t.Fatalf("could not attach: %+v", err)
	}
	defer dev.Close()

	srv, err := NewServer("localhost:0", dev)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}

	errc := make(chan error)
	go func() {
		errc <- srv.Serve()
	}()

	cli, err := Dial(srv.Addr().String())
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	defer cli.Close()

	var str string
	err = cli.Do(&str, "show", "moca_link_status")
	if err != nil {
		t.Fatalf("could not show attribute: %+v", err)
	}
	if str != "up" {
		t.Fatalf("invalid link status: %q", str)
	}

	err = cli.Do(nil, "store", "moca_guid", "02:00:00:00:00:01")
	if err != nil {
		t.Fatalf("could not store GUID: %+v", err)
	}
	if got := dev.GUID(); got != (GUID{2, 0, 0, 0, 0, 1}) {
		t.Fatalf("GUID not stored: %v", got)
	}

	err = cli.Do(nil, "store", "moca_guid", "00:00:00:00:00:00")
	if err == nil || !strings.Contains(err.Error(), "all-zero") {
		t.Fatalf("invalid zero-GUID error: %+v", err)
	}

	var vs map[string]string
	err = cli.Do(&vs, "attrs")
	if err != nil {
		t.Fatalf("could not list attributes: %+v", err)
	}
	if vs["moca_lof"] != "1150" || vs["moca_guid"] != "02:00:00:00:00:01" {
		t.Fatalf("invalid attributes: %v", vs)
	}

	var temp int32
	err = cli.Do(&temp, "temp")
	if err != nil {
		t.Fatalf("could not read temperature: %+v", err)
	}
	if temp != -275217 {
		t.Fatalf("invalid temperature: %d", temp)
	}

	var up bool
	err = cli.Do(&up, "poll")
	if err != nil {
		t.Fatalf("could not poll link: %+v", err)
	}
	if !up {
		t.Fatalf("link should be up")
	}

	err = cli.Do(&str, "r32", "0x1000")
	if err != nil {
		t.Fatalf("could not read register: %+v", err)
	}
	if str != "0x0000cafe" {
		t.Fatalf("invalid register value: %q", str)
	}

	err = cli.Do(nil, "w32", "0x1004", "0xbeef")
	if err != nil {
		t.Fatalf("could not write register: %+v", err)
	}
	if got := sim.Get(0x1004); got != 0xbeef {
		t.Fatalf("invalid register value: 0x%x", got)
	}

	err = cli.Do(nil, "r32")
	if err == nil {
		t.Fatalf("expected an error for missing argument")
	}

	err = cli.Do(nil, "suspend")
	if err != nil {
		t.Fatalf("could not suspend: %+v", err)
	}
	err = cli.Do(nil, "resume")
	if err != nil {
		t.Fatalf("could not resume: %+v", err)
	}
	err = cli.Do(&str, "state")
	if err != nil {
		t.Fatalf("could not read state: %+v", err)
	}
	if str != "not-started" {
		t.Fatalf("invalid state after resume: %q", str)
	}

	err = cli.Do(nil, "reboot")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("invalid error for unknown command: %+v", err)
	}

	err = srv.Close()
	if err != nil {
		t.Fatalf("could not close server: %+v", err)
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("server failed: %+v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServerFail(t *testing.T) {
	dev := newTestDevice(newWarm())
	_, err := NewServer(":invalid", dev)
	if err == nil {
		t.Fatal("expected an error")
	}
}
