// Copyright 2025 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !linux

package mdio

import (
	"errors"
)

var errNoMII = errors.New("mdio: MII ioctls only available on linux")

type Ioctl struct{}

func OpenIoctl(iface string) (*Ioctl, error) { return nil, errNoMII }

func (*Ioctl) Close() error { return nil }
func (*Ioctl) Read(phyAddr, devAddr uint8, reg uint16) (uint16, error) { return 0, errNoMII }
func (*Ioctl) Write(phyAddr, devAddr uint8, reg, v uint16) error { return errNoMII }
