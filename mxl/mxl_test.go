// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/moca/mdio"
	"github.com/go-lpc/moca/mxl/internal/regs"
)

// sleeps records the waits requested by the code under test, without
// actually waiting.
type sleeps struct {
	mu sync.Mutex
	ds []time.Duration
}

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.ds = append(s.ds, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleeps) count(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.ds {
		if v == d {
			n++
		}
	}
	return n
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func quiet() log.MsgStream {
	return log.NewMsgStream("mxl-test", log.LvlError, io.Discard)
}

type fwImages map[string][]byte

func (src fwImages) Fetch(name string) ([]byte, error) {
	img, ok := src[name]
	if !ok {
		return nil, fmt.Errorf("no image %q: %w", name, ErrNotFound)
	}
	return img, nil
}

// newCold returns a simulator modelling a cold Leucadia coprocessor,
// whose firmware reports running after boot status polls.
func newCold(boot int) *mdio.Sim {
	sim := mdio.NewSim()
	sim.Set(regs.SRE_PRODUCT_FAMILY_ID, 0x3710)
	sim.Set(regs.SRE_DEVICE_ID, 0x0001_3710)
	sim.SetPaged(regs.SGMII_CTRL_PAGE, regs.SGMII_CTRL_REG, 0xab00)
	sim.Emulate(boot, 1000, 1000)
	return sim
}

// newWarm returns a simulator modelling a coprocessor with running firmware.
func newWarm() *mdio.Sim {
	sim := newCold(0)
	sim.Set(regs.FW_STATUS_REG, regs.FW_LOADED|regs.FW_RUNNING)
	return sim
}

// failAt makes every read of the logical registers in addrs fail.
func failAt(sim *mdio.Sim, addrs ...uint32) {
	prev := sim.ReadHook
	sim.ReadHook = func(mem map[uint32]uint32, addr uint32) error {
		for _, a := range addrs {
			if a == addr {
				return fmt.Errorf("sim: injected failure at 0x%08x", addr)
			}
		}
		if prev != nil {
			return prev(mem, addr)
		}
		return nil
	}
}
