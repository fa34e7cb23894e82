// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/moca/mxl/internal/regs"
)

const (
	fwResetSettle   = 100 * time.Millisecond
	fwReleaseSettle = 500 * time.Millisecond
	fwPollInterval  = 100 * time.Millisecond
	fwPollMax       = 50
	fwProgressStep  = 256 * 1024
)

// State is the firmware bring-up state of a coprocessor.
type State uint8

const (
	NotStarted State = iota
	WarmDetected
	Uploading
	AwaitingRunning
	Running
	Failed
)

func (st State) String() string {
	switch st {
	case NotStarted:
		return "not-started"
	case WarmDetected:
		return "warm-detected"
	case Uploading:
		return "uploading"
	case AwaitingRunning:
		return "awaiting-running"
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(st))
	}
}

// FirmwareSource provides firmware images by name.
// Fetch returns an error wrapping ErrNotFound when name is unknown.
type FirmwareSource interface {
	Fetch(name string) ([]byte, error)
}

// bringup owns the firmware bring-up state machine of one coprocessor.
type bringup struct {
	bus   *Bus
	msg   log.MsgStream
	sleep sleeper

	mu    sync.RWMutex
	state State
}

func (fw *bringup) State() State {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.state
}

func (fw *bringup) set(st State) {
	fw.mu.Lock()
	fw.state = st
	fw.mu.Unlock()
}

// reset forgets the outcome of the last bring-up attempt.
func (fw *bringup) reset() { fw.set(NotStarted) }

func (fw *bringup) fail(err error) error {
	fw.set(Failed)
	return err
}

func busFailure(err error) error {
	return &FirmwareError{Kind: FwBus, Err: err}
}

// detect reads the firmware status and moves to Running when the
// coprocessor reports running firmware. It reports whether it did.
// An error bit is logged and leaves the state untouched, so that the
// next bring-up reloads the firmware.
func (fw *bringup) detect() (bool, error) {
	status, err := fw.bus.Read32(regs.FW_STATUS_REG)
	if err != nil {
		return false, busFailure(err)
	}

	switch {
	case status&regs.FW_RUNNING != 0:
		fw.set(WarmDetected)
		fw.msg.Infof("firmware already running (status=0x%08x)", status)
		fw.set(Running)
		return true, nil
	case status&regs.FW_ERROR != 0:
		fw.msg.Warnf("firmware error bit set (status=0x%08x), forcing reload", status)
	}
	return false, nil
}

// run performs one complete bring-up attempt.
// The image is only fetched when the coprocessor is cold.
func (fw *bringup) run(ctx context.Context, name string, src FirmwareSource) error {
	fw.set(NotStarted)

	ok, err := fw.detect()
	if err != nil {
		return fw.fail(err)
	}
	if ok {
		return nil
	}

	if src == nil {
		return fw.fail(fmt.Errorf("mxl: no firmware source to load %q: %w", name, ErrNotFound))
	}

	img, err := src.Fetch(name)
	if err != nil {
		return fw.fail(fmt.Errorf("mxl: could not fetch firmware %q: %w", name, err))
	}

	return fw.load(ctx, img)
}

// load uploads img into the coprocessor and waits for it to start.
func (fw *bringup) load(ctx context.Context, img []byte) error {
	if len(img) == 0 || len(img) > regs.FW_MAX_SIZE {
		return fw.fail(&FirmwareError{
			Kind: FwInvalidSize,
			Err:  fmt.Errorf("image size %d not in (0, %d]", len(img), regs.FW_MAX_SIZE),
		})
	}

	fw.set(Uploading)
	fw.msg.Infof("loading firmware (%d bytes)...", len(img))

	err := fw.bus.Write32(regs.SRE_CPU_SRC_SEL_CSR, regs.CPU_HOLD_RESET)
	if err != nil {
		return fw.fail(busFailure(err))
	}

	err = fw.sleep(ctx, fwResetSettle)
	if err != nil {
		return fw.fail(err)
	}

	err = fw.upload(img)
	if err != nil {
		return fw.fail(busFailure(err))
	}

	err = fw.bus.Write32(regs.SRE_CPU_SRC_SEL_CSR, regs.CPU_RELEASE)
	if err != nil {
		return fw.fail(busFailure(err))
	}
	fw.set(AwaitingRunning)

	err = fw.sleep(ctx, fwReleaseSettle)
	if err != nil {
		return fw.fail(err)
	}

	return fw.await(ctx)
}

// upload writes img as little-endian words from the firmware base address.
// A partial trailing word is zero-padded.
func (fw *bringup) upload(img []byte) error {
	var (
		word [4]byte
		next = fwProgressStep
	)
	for off := 0; off < len(img); off += 4 {
		word = [4]byte{}
		copy(word[:], img[off:])
		err := fw.bus.Write32(regs.FW_BASE_ADDR+uint32(off), binary.LittleEndian.Uint32(word[:]))
		if err != nil {
			return err
		}
		if off+4 >= next {
			fw.msg.Debugf("uploaded %d/%d bytes", off+4, len(img))
			next += fwProgressStep
		}
	}
	return nil
}

// await polls the firmware status until the running or error bit shows up.
func (fw *bringup) await(ctx context.Context) error {
	var status uint32
	for i := 0; i < fwPollMax; i++ {
		if i > 0 {
			err := fw.sleep(ctx, fwPollInterval)
			if err != nil {
				return fw.fail(err)
			}
		}

		var err error
		status, err = fw.bus.Read32(regs.FW_STATUS_REG)
		if err != nil {
			return fw.fail(busFailure(err))
		}

		switch {
		case status&regs.FW_RUNNING != 0:
			fw.msg.Infof("firmware running after %d poll(s)", i+1)
			fw.set(Running)
			return nil
		case status&regs.FW_ERROR != 0:
			return fw.fail(&FirmwareError{Kind: FwDeviceError, Status: status})
		}
	}

	return fw.fail(&FirmwareError{Kind: FwTimeout, Status: status})
}

// IsFirmwareError reports whether err is a firmware bring-up failure of kind k.
func IsFirmwareError(err error, k FwErrorKind) bool {
	return errors.Is(err, &FirmwareError{Kind: k})
}
