// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// refreshReportEvery bounds how often refresh failures are logged.
const refreshReportEvery = 10 * time.Second

// supervisor runs the periodic refresh of a device.
type supervisor struct {
	dev *Device

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	limit *rate.Limiter
}

func newSupervisor(dev *Device) *supervisor {
	return &supervisor{
		dev:   dev,
		limit: rate.NewLimiter(rate.Every(refreshReportEvery), 1),
	}
}

func (sup *supervisor) running() bool {
	sup.mu.Lock()
	defer sup.mu.Unlock()
	return sup.done != nil
}

// start launches the refresh loop. It is a no-op if the loop already runs.
func (sup *supervisor) start() {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	if sup.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sup.cancel = cancel
	sup.done = done

	go sup.loop(ctx, done, sup.dev.cfg.refresh)
}

// stop cancels the refresh loop and waits for an in-flight tick to
// complete. No bus access originates from the loop once stop returns.
func (sup *supervisor) stop() {
	sup.mu.Lock()
	defer sup.mu.Unlock()

	if sup.done == nil {
		return
	}
	sup.cancel()
	<-sup.done

	sup.cancel = nil
	sup.done = nil
}

func (sup *supervisor) loop(ctx context.Context, done chan struct{}, period time.Duration) {
	defer close(done)

	tick := time.NewTicker(period)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			if ctx.Err() != nil {
				return
			}
			sup.tick()
		}
	}
}

func (sup *supervisor) tick() {
	dev := sup.dev
	switch dev.fw.State() {
	case Running:
		// ok.
	case NotStarted:
		ok, err := dev.fw.detect()
		if err != nil {
			sup.report("could not detect firmware: %+v", err)
			return
		}
		if !ok {
			return
		}
	default:
		return
	}

	err := dev.refresh()
	if err != nil {
		sup.report("could not refresh device: %+v", err)
	}
}

func (sup *supervisor) report(format string, args ...any) {
	if !sup.limit.Allow() {
		return
	}
	sup.dev.msg.Warnf(format, args...)
}
