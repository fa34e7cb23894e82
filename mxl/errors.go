// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSample is returned when the second temperature sample is
	// smaller than the first one, or when their difference is out of range.
	ErrInvalidSample = errors.New("mxl: invalid temperature sample")

	// ErrMalformedGUID is returned when a GUID string can not be parsed.
	ErrMalformedGUID = errors.New("mxl: malformed GUID")

	// ErrZeroGUID is returned when the all-zero GUID is supplied.
	ErrZeroGUID = errors.New("mxl: all-zero GUID")

	// ErrNoGUID is returned when the coprocessor has no GUID programmed.
	ErrNoGUID = errors.New("mxl: no GUID programmed")

	// ErrNotFound is returned by firmware sources when an image is missing.
	ErrNotFound = errors.New("mxl: firmware image not found")

	errNotAttached = errors.New("mxl: device not attached")
)

// BusError describes a failed narrow-register transaction.
type BusError struct {
	Op   string // "read" or "write"
	Addr uint32 // logical 32-bit register address
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("mxl: could not %s register 0x%08x: %+v", e.Op, e.Addr, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

// RegError is one failed register of a batch read.
type RegError struct {
	Name string
	Addr uint32
	Err  error
}

// PartialReadError reports the registers of a batch that could not be read.
// Fields backed by the other registers of the batch were updated.
type PartialReadError struct {
	Op     string
	Failed []RegError
}

func (e *PartialReadError) Error() string {
	o := new(strings.Builder)
	fmt.Fprintf(o, "mxl: partial %s read: %d register(s) failed", e.Op, len(e.Failed))
	for i, r := range e.Failed {
		sep := ", "
		if i == 0 {
			sep = " ("
		}
		fmt.Fprintf(o, "%s%s@0x%08x", sep, r.Name, r.Addr)
	}
	if len(e.Failed) > 0 {
		o.WriteString(")")
	}
	return o.String()
}

func (e *PartialReadError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, r := range e.Failed {
		errs[i] = r.Err
	}
	return errs
}

// Has reports whether the register at addr is part of the failed set.
func (e *PartialReadError) Has(addr uint32) bool {
	for _, r := range e.Failed {
		if r.Addr == addr {
			return true
		}
	}
	return false
}

// FwErrorKind classifies firmware bring-up failures.
type FwErrorKind int

const (
	FwInvalidSize FwErrorKind = iota + 1
	FwBus
	FwTimeout
	FwDeviceError
)

func (k FwErrorKind) String() string {
	switch k {
	case FwInvalidSize:
		return "invalid-size"
	case FwBus:
		return "bus"
	case FwTimeout:
		return "timeout"
	case FwDeviceError:
		return "device-error"
	default:
		return fmt.Sprintf("FwErrorKind(%d)", int(k))
	}
}

// FirmwareError describes a failed firmware bring-up.
type FirmwareError struct {
	Kind   FwErrorKind
	Status uint32 // last firmware status word, when known
	Err    error
}

func (e *FirmwareError) Error() string {
	switch e.Kind {
	case FwInvalidSize:
		return fmt.Sprintf("mxl: invalid firmware image: %+v", e.Err)
	case FwTimeout:
		return fmt.Sprintf("mxl: firmware start timeout (status: 0x%08x)", e.Status)
	case FwDeviceError:
		return fmt.Sprintf("mxl: firmware error detected (status: 0x%08x)", e.Status)
	default:
		return fmt.Sprintf("mxl: firmware bring-up failed: %+v", e.Err)
	}
}

func (e *FirmwareError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, &FirmwareError{Kind: k}) to match on kind.
func (e *FirmwareError) Is(target error) bool {
	t, ok := target.(*FirmwareError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
