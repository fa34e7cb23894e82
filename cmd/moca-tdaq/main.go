// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command moca-tdaq starts a TDAQ node driving one MXL371x MoCA coprocessor.
//
// The node brings the coprocessor up on /init and publishes periodic
// snapshots of its link status and statistics on the /moca output.
//
// Usage: moca-tdaq [tdaq options] [mdio-uri [firmware-dir]]
package main // import "github.com/go-lpc/moca/cmd/moca-tdaq"

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/moca/fwfile"
	"github.com/go-lpc/moca/mdio"
	"github.com/go-lpc/moca/mxl"
)

func main() {
	cmd := flags.New()

	dev := newNode(cmd.Args)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/moca", dev.snapshots)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type node struct {
	uri  string // management bus
	fw   string // firmware directory
	freq time.Duration

	bus      *mxl.Bus
	closeBus func() error
	dev      *mxl.Device

	n    int
	data chan []byte
}

func newNode(args []string) *node {
	dev := &node{
		uri:  "sim:warm",
		fw:   fwfile.DefaultDir,
		freq: 1 * time.Second,
	}
	if len(args) > 0 {
		dev.uri = args[0]
	}
	if len(args) > 1 {
		dev.fw = args[1]
	}
	return dev
}

func (dev *node) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command... (bus=%q)", dev.uri)
	if dev.bus != nil {
		return nil
	}

	bus, closer, err := mdio.Open(dev.uri)
	if err != nil {
		return fmt.Errorf("could not open management bus %q: %w", dev.uri, err)
	}

	dev.bus = mxl.NewBus(bus, 0)
	dev.closeBus = closer

	model, err := mxl.Probe(dev.bus)
	if err != nil {
		dev.release()
		return fmt.Errorf("could not probe coprocessor: %w", err)
	}
	ctx.Msg.Infof("found %s", model)
	return nil
}

func (dev *node) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if dev.bus == nil {
		return fmt.Errorf("could not initialize: node not configured")
	}
	if dev.dev != nil {
		_ = dev.dev.Close()
	}

	dev.dev = mxl.New(
		dev.bus,
		mxl.WithMsgStream(ctx.Msg),
		mxl.WithFirmwareSource(fwfile.Dir(dev.fw)),
		mxl.WithRefreshInterval(dev.freq),
	)
	err := dev.dev.Attach(ctx.Ctx)
	if err != nil {
		dev.dev = nil
		return fmt.Errorf("could not attach coprocessor: %w", err)
	}

	dev.data = make(chan []byte, 1024)
	dev.n = 0
	return nil
}

func (dev *node) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	if dev.dev != nil {
		_ = dev.dev.Close()
		dev.dev = nil
	}
	dev.data = make(chan []byte, 1024)
	dev.n = 0
	return nil
}

func (dev *node) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if dev.dev == nil {
		return fmt.Errorf("could not start: node not initialized")
	}
	dev.n = 0
	return nil
}

func (dev *node) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	n := dev.n
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return nil
}

func (dev *node) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if dev.dev != nil {
		_ = dev.dev.Close()
		dev.dev = nil
	}
	dev.release()
	return nil
}

func (dev *node) release() {
	if dev.closeBus != nil {
		_ = dev.closeBus()
	}
	dev.bus = nil
	dev.closeBus = nil
}

func (dev *node) snapshots(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-dev.data:
		dst.Body = data
	}
	return nil
}

func (dev *node) run(ctx tdaq.Context) error {
	tick := time.NewTicker(dev.freq)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case now := <-tick.C:
			if dev.dev == nil {
				continue
			}
			raw, err := encode(now, dev.dev)
			if err != nil {
				ctx.Msg.Errorf("could not encode snapshot: %+v", err)
				continue
			}
			select {
			case dev.data <- raw:
				dev.n++
			default:
				ctx.Msg.Warnf("output queue full: dropping snapshot")
			}
		}
	}
}

// encode serializes a snapshot of the device state:
//
//	time (unix ns), state, link, version, phy rate (Mbps), node id,
//	nc node id, then the 9 statistics counters.
func encode(now time.Time, dev *mxl.Device) ([]byte, error) {
	var (
		buf = new(bytes.Buffer)
		enc = tdaq.NewEncoder(buf)
		st  = dev.Status()
		vs  = dev.Stats()
	)

	enc.WriteU64(uint64(now.UnixNano()))
	enc.WriteStr(dev.State().String())
	enc.WriteStr(st.Link.String())
	enc.WriteStr(st.Version.String())
	enc.WriteU32(st.PHYRate)
	enc.WriteU32(uint32(st.NodeID))
	enc.WriteU32(uint32(st.NCNodeID))
	for _, v := range []uint64{
		vs.TxPackets, vs.TxBytes, vs.TxDropped, vs.TxBroadcast, vs.TxMulticast,
		vs.RxPackets, vs.RxBytes, vs.RxDropped, vs.RxErrors,
	} {
		enc.WriteU64(v)
	}

	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
