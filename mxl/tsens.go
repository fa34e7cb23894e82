// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-lpc/moca/mxl/internal/regs"
)

// settling time of one temperature sample (30-40ms).
const tsensSettle = 35 * time.Millisecond

type regWrite struct {
	addr uint32
	val  uint32
}

var (
	// arm the first sample (T0).
	tsensArmT0 = []regWrite{
		{regs.RADIO_TSENS_REG1, 0x31000001},
		{regs.RADIO_TSENS_REG2, 0x00000401},
		{regs.RADIO_TSENS_REG3, 0x00000001},
		{regs.TSENS_CTRL_REG, 0x01130103},
	}

	// re-arm for the second sample (T1).
	tsensArmT1 = []regWrite{
		{regs.TSENS_CTRL_REG, 0x01130003},
		{regs.RADIO_TSENS_REG2, 0x00000411},
		{regs.TSENS_CTRL_REG, 0x01130003},
		{regs.TSENS_CTRL_REG, 0x01130103},
	}
)

// tsensor drives the two-sample differential temperature measurement.
type tsensor struct {
	bus   *Bus
	sleep sleeper

	// mu serializes measurements. The bus stays available to other
	// users while a measurement waits for its samples to settle.
	mu sync.Mutex
}

func (ts *tsensor) sample(ctx context.Context, seq []regWrite) (uint32, error) {
	for _, w := range seq {
		err := ts.bus.Write32(w.addr, w.val)
		if err != nil {
			return 0, err
		}
	}

	err := ts.sleep(ctx, tsensSettle)
	if err != nil {
		return 0, err
	}

	return ts.bus.Read32(regs.TSENS_DATA_REG)
}

func (ts *tsensor) raw(ctx context.Context) (t0, t1 uint32, err error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	t0, err = ts.sample(ctx, tsensArmT0)
	if err != nil {
		return 0, 0, fmt.Errorf("mxl: could not get T0 sample: %w", err)
	}

	t1, err = ts.sample(ctx, tsensArmT1)
	if err != nil {
		return 0, 0, fmt.Errorf("mxl: could not get T1 sample: %w", err)
	}

	return t0, t1, nil
}

// read performs a live measurement and returns the temperature in
// millidegrees Celsius.
func (ts *tsensor) read(ctx context.Context) (int32, error) {
	t0, t1, err := ts.raw(ctx)
	if err != nil {
		return 0, err
	}
	return millidegrees(t0, t1)
}

func millidegrees(t0, t1 uint32) (int32, error) {
	if t1 < t0 {
		return 0, fmt.Errorf("%w (t0=%d, t1=%d)", ErrInvalidSample, t0, t1)
	}

	delta := int64(t1 - t0)
	temp := delta*regs.TSENS_COEFF_A/regs.TSENS_RSSI_MAX - regs.TSENS_COEFF_B
	if temp > math.MaxInt32 {
		return 0, fmt.Errorf("%w (t0=%d, t1=%d)", ErrInvalidSample, t0, t1)
	}

	return int32(temp), nil
}
