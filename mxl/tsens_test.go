// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/moca/mdio"
	"github.com/go-lpc/moca/mxl/internal/regs"
)

func TestMillidegrees(t *testing.T) {
	for _, tc := range []struct {
		t0, t1 uint32
		want   int32
		err    error
	}{
		{t0: 1000, t1: 2000, want: (1000*1338680)/524288 - 277770},
		{t0: 0, t1: 0, want: -277770},
		{t0: 5, t1: 5, want: -277770},
		{t0: 0, t1: 524288, want: 1338680 - 277770},
		{t0: 100000, t1: 250000, want: int32(int64(150000)*1338680/524288 - 277770)},
		{t0: 2000, t1: 1000, err: ErrInvalidSample},
		{t0: 1, t1: 0, err: ErrInvalidSample},
		{t0: 0, t1: 0xffffffff, err: ErrInvalidSample},
		{t0: 0, t1: 841_000_000, want: int32(int64(841_000_000)*1338680/524288 - 277770)},
		{t0: 0, t1: 842_000_000, err: ErrInvalidSample},
	} {
		t.Run(fmt.Sprintf("t0=%d-t1=%d", tc.t0, tc.t1), func(t *testing.T) {
			got, err := millidegrees(tc.t0, tc.t1)
			switch {
			case tc.err != nil:
				if !errors.Is(err, tc.err) {
					t.Fatalf("invalid error: got=%+v, want=%+v", err, tc.err)
				}
				if got != 0 {
					t.Fatalf("invalid value on error: %d", got)
				}
				return
			case err != nil:
				t.Fatalf("could not compute temperature: %+v", err)
			}
			if got != tc.want {
				t.Fatalf("invalid temperature: got=%d, want=%d", got, tc.want)
			}
		})
	}
}

func TestTemperature(t *testing.T) {
	sim := newCold(0)
	var sl sleeps
	ts := tsensor{bus: NewBus(sim, 0), sleep: sl.sleep}

	got, err := ts.read(context.Background())
	if err != nil {
		t.Fatalf("could not read temperature: %+v", err)
	}
	if want := int32((1000*1338680)/524288 - 277770); got != want {
		t.Fatalf("invalid temperature: got=%d, want=%d", got, want)
	}

	if n := sl.count(tsensSettle); n != 2 {
		t.Fatalf("invalid number of settling waits: got=%d, want=2", n)
	}

	var seq []regWrite
	for _, w := range sim.Writes() {
		seq = append(seq, regWrite{w.Addr, w.Value})
	}
	want := []regWrite{
		{regs.RADIO_TSENS_REG1, 0x31000001},
		{regs.RADIO_TSENS_REG2, 0x00000401},
		{regs.RADIO_TSENS_REG3, 0x00000001},
		{regs.TSENS_CTRL_REG, 0x01130103},
		{regs.TSENS_CTRL_REG, 0x01130003},
		{regs.RADIO_TSENS_REG2, 0x00000411},
		{regs.TSENS_CTRL_REG, 0x01130003},
		{regs.TSENS_CTRL_REG, 0x01130103},
	}
	if len(seq) != len(want) {
		t.Fatalf("invalid write sequence length: got=%d, want=%d", len(seq), len(want))
	}
	for i := range want {
		if seq[i] != want[i] {
			t.Fatalf("invalid write #%d: got=%#x, want=%#x", i, seq[i], want[i])
		}
	}
}

func TestTemperatureInvalidSample(t *testing.T) {
	sim := mdio.NewSim()
	sim.Emulate(0, 5000, ^uint32(0)) // second sample is one count lower
	ts := tsensor{bus: NewBus(sim, 0), sleep: noSleep}

	_, err := ts.read(context.Background())
	if !errors.Is(err, ErrInvalidSample) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, ErrInvalidSample)
	}
}

func TestTemperatureBusError(t *testing.T) {
	sim := newCold(0)
	failAt(sim, regs.TSENS_DATA_REG)
	ts := tsensor{bus: NewBus(sim, 0), sleep: noSleep}

	_, err := ts.read(context.Background())
	var berr *BusError
	if !errors.As(err, &berr) {
		t.Fatalf("invalid error: %+v", err)
	}
	if berr.Addr != regs.TSENS_DATA_REG {
		t.Fatalf("invalid error address: 0x%08x", berr.Addr)
	}
}

func TestTemperatureCancel(t *testing.T) {
	sim := newCold(0)
	ts := tsensor{bus: NewBus(sim, 0), sleep: sleepCtx}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ts.read(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, context.Canceled)
	}
}
