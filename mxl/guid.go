// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mxl

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-lpc/moca/mxl/internal/regs"
	"github.com/soypat/lneto/ethernet"
)

// GUID is the 6-byte identifier the coprocessor presents on the MoCA
// network. The zero GUID means "no GUID" and is never a valid value.
type GUID [6]byte

// guidPrefix is a MaxLinear OUI with the locally administered bit set.
var guidPrefix = [3]byte{0x02, 0x24, 0x3e}

func (g GUID) IsZero() bool { return g == GUID{} }

func (g GUID) String() string {
	return string(ethernet.AppendAddr(make([]byte, 0, 17), g))
}

// ParseGUID parses six colon-separated hexadecimal octets.
// The all-zero GUID is rejected with ErrZeroGUID.
func ParseGUID(s string) (GUID, error) {
	var g GUID
	s = strings.TrimSpace(s)
	toks := strings.Split(s, ":")
	if len(toks) != len(g) {
		return g, fmt.Errorf("%w: %q", ErrMalformedGUID, s)
	}
	for i, tok := range toks {
		if len(tok) != 2 {
			return g, fmt.Errorf("%w: %q", ErrMalformedGUID, s)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return g, fmt.Errorf("%w: %q", ErrMalformedGUID, s)
		}
		g[i] = byte(v)
	}
	if g.IsZero() {
		return g, ErrZeroGUID
	}
	return g, nil
}

// GUIDSource tells where a resolved GUID comes from.
type GUIDSource uint8

const (
	GUIDExisting GUIDSource = iota
	GUIDConfig
	GUIDAttached
	GUIDGenerated
)

func (src GUIDSource) String() string {
	switch src {
	case GUIDExisting:
		return "existing"
	case GUIDConfig:
		return "config"
	case GUIDAttached:
		return "attached"
	default:
		return "generated"
	}
}

// ResolveGUID picks the GUID of the coprocessor, first match wins:
// the non-zero GUID already programmed in the hardware, the configured
// GUID, a GUID derived from the attached interface address, and finally
// a random locally administered GUID drawn from rnd.
// Zero values stand for absent inputs.
func ResolveGUID(existing, config, attached GUID, rnd io.Reader) (GUID, GUIDSource, error) {
	switch {
	case !existing.IsZero():
		return existing, GUIDExisting, nil
	case !config.IsZero():
		return config, GUIDConfig, nil
	case !attached.IsZero():
		g := attached
		g[0] |= 0x02
		g[5] ^= 0x01
		return g, GUIDAttached, nil
	}

	var g GUID
	copy(g[:3], guidPrefix[:])
	_, err := io.ReadFull(rnd, g[3:])
	if err != nil {
		return GUID{}, GUIDGenerated, fmt.Errorf("mxl: could not generate GUID: %w", err)
	}
	return g, GUIDGenerated, nil
}

func packGUID(g GUID) (hi, lo uint32) {
	hi = uint32(g[0])<<24 | uint32(g[1])<<16 | uint32(g[2])<<8 | uint32(g[3])
	lo = uint32(g[4])<<24 | uint32(g[5])<<16
	return hi, lo
}

func unpackGUID(hi, lo uint32) GUID {
	return GUID{
		byte(hi >> 24), byte(hi >> 16), byte(hi >> 8), byte(hi),
		byte(lo >> 24), byte(lo >> 16),
	}
}

// readGUID reads the GUID currently programmed in the coprocessor.
func readGUID(bus *Bus) (GUID, error) {
	hi, err := bus.Read32(regs.MAC_ADDR_HI)
	if err != nil {
		return GUID{}, err
	}
	lo, err := bus.Read32(regs.MAC_ADDR_LO)
	if err != nil {
		return GUID{}, err
	}
	return unpackGUID(hi, lo), nil
}

// commitGUID programs g into the coprocessor.
func commitGUID(bus *Bus, g GUID) error {
	if g.IsZero() {
		return ErrZeroGUID
	}
	hi, lo := packGUID(g)
	err := bus.Write32(regs.MAC_ADDR_HI, hi)
	if err != nil {
		return err
	}
	return bus.Write32(regs.MAC_ADDR_LO, lo)
}
